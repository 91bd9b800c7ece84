package repositories

import (
	"context"

	"github.com/anonto42/barrierfree/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository defines the interface for issue reaction data operations
type LikeRepository interface {
	// CreateLike reports false when the user had already liked the issue
	CreateLike(ctx context.Context, issueID string, userID uint) (bool, error)
	// DeleteLike reports false when there was no like to remove
	DeleteLike(ctx context.Context, issueID string, userID uint) (bool, error)
	HasUserLikedIssue(ctx context.Context, issueID string, userID uint) (bool, error)
	GetLikesCountByIssueID(ctx context.Context, issueID string) (int64, error)
	GetLikesCountByIssueIDs(ctx context.Context, issueIDs []string) (int64, error)
	DeleteLikesByIssueID(ctx context.Context, issueID string) (int64, error)
}

// PostgresLikeRepository implements LikeRepository for PostgreSQL
type PostgresLikeRepository struct {
	db *gorm.DB
}

// NewPostgresLikeRepository creates a new PostgresLikeRepository
func NewPostgresLikeRepository(db *gorm.DB) *PostgresLikeRepository {
	return &PostgresLikeRepository{db: db}
}

// CreateLike creates a new like in PostgreSQL
func (r *PostgresLikeRepository) CreateLike(ctx context.Context, issueID string, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Like{IssueID: issueID, UserID: userID})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteLike deletes a like from PostgreSQL
func (r *PostgresLikeRepository) DeleteLike(ctx context.Context, issueID string, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("issue_id = ? AND user_id = ?", issueID, userID).Delete(&models.Like{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// HasUserLikedIssue checks if a user has liked a specific issue
func (r *PostgresLikeRepository) HasUserLikedIssue(ctx context.Context, issueID string, userID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("issue_id = ? AND user_id = ?", issueID, userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetLikesCountByIssueID retrieves the count of likes for a specific issue
func (r *PostgresLikeRepository) GetLikesCountByIssueID(ctx context.Context, issueID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("issue_id = ?", issueID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// GetLikesCountByIssueIDs counts likes across a set of issues (likes a reporter received)
func (r *PostgresLikeRepository) GetLikesCountByIssueIDs(ctx context.Context, issueIDs []string) (int64, error) {
	if len(issueIDs) == 0 {
		return 0, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("issue_id IN ?", issueIDs).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteLikesByIssueID removes every like on a deleted issue
func (r *PostgresLikeRepository) DeleteLikesByIssueID(ctx context.Context, issueID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("issue_id = ?", issueID).Delete(&models.Like{})
	return res.RowsAffected, res.Error
}
