package repositories

import (
	"context"

	"github.com/anonto42/barrierfree/backend/internal/models"
	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentByID(ctx context.Context, id uint) (*models.Comment, error)
	GetCommentsByIssueID(ctx context.Context, issueID string) ([]models.Comment, error)
	CountCommentsByIssueID(ctx context.Context, issueID string) (int64, error)
	// CollectSubtree returns rootID and every descendant ID, breadth first
	CollectSubtree(ctx context.Context, rootID uint) ([]uint, error)
	// DeleteComments removes the given comments and their reactions in one transaction
	DeleteComments(ctx context.Context, ids []uint) (int64, error)
	// DeleteCommentsByIssueID removes a whole issue discussion and its reactions
	DeleteCommentsByIssueID(ctx context.Context, issueID string) (int64, error)
}

// PostgresCommentRepository implements CommentRepository for PostgreSQL
type PostgresCommentRepository struct {
	db *gorm.DB
}

// NewPostgresCommentRepository creates a new PostgresCommentRepository
func NewPostgresCommentRepository(db *gorm.DB) *PostgresCommentRepository {
	return &PostgresCommentRepository{db: db}
}

// CreateComment creates a new comment in PostgreSQL
func (r *PostgresCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// GetCommentByID retrieves a comment by ID from PostgreSQL
func (r *PostgresCommentRepository) GetCommentByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, gormErr(err)
	}
	return &comment, nil
}

// GetCommentsByIssueID retrieves all comments for a specific issue, oldest first
func (r *PostgresCommentRepository) GetCommentsByIssueID(ctx context.Context, issueID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	if err := r.db.WithContext(ctx).Where("issue_id = ?", issueID).Order("created_at").Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *PostgresCommentRepository) CountCommentsByIssueID(ctx context.Context, issueID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("issue_id = ?", issueID).Count(&count).Error
	return count, err
}

func (r *PostgresCommentRepository) CollectSubtree(ctx context.Context, rootID uint) ([]uint, error) {
	db := r.db.WithContext(ctx)
	ids := []uint{rootID}
	frontier := []uint{rootID}
	seen := map[uint]bool{rootID: true}
	for len(frontier) > 0 {
		var children []uint
		if err := db.Model(&models.Comment{}).Where("parent_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, id := range children {
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
			frontier = append(frontier, id)
		}
	}
	return ids, nil
}

func (r *PostgresCommentRepository) DeleteComments(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id IN ?", ids).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Comment{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

func (r *PostgresCommentRepository) DeleteCommentsByIssueID(ctx context.Context, issueID string) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&models.Comment{}).Select("id").Where("issue_id = ?", issueID)
		if err := tx.Where("comment_id IN (?)", sub).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		res := tx.Where("issue_id = ?", issueID).Delete(&models.Comment{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}
