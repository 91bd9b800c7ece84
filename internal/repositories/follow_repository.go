package repositories

import (
	"context"
	"database/sql"

	"github.com/anonto42/barrierfree/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository defines the interface for follow data operations
type FollowRepository interface {
	// CreateFollow inserts the edge and reports false if it already existed
	CreateFollow(ctx context.Context, followerID, followingID uint) (bool, error)
	// DeleteFollow removes the edge and reports false if there was none
	DeleteFollow(ctx context.Context, followerID, followingID uint) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error)
	GetFollowers(ctx context.Context, userID uint) ([]models.User, error)
	GetFollowing(ctx context.Context, userID uint) ([]models.User, error)
	GetFollowersCount(ctx context.Context, userID uint) (int64, error)
	GetFollowingCount(ctx context.Context, userID uint) (int64, error)
	CountSelfFollows(ctx context.Context, userID uint) (int64, error)
	// SyncMutual rewrites is_mutual on every edge touching the user from the
	// edges themselves and reports how many rows changed
	SyncMutual(ctx context.Context, userID uint) (int64, error)
}

// PostgresFollowRepository implements FollowRepository for PostgreSQL
type PostgresFollowRepository struct {
	db *gorm.DB
}

// NewPostgresFollowRepository creates a new PostgresFollowRepository
func NewPostgresFollowRepository(db *gorm.DB) *PostgresFollowRepository {
	return &PostgresFollowRepository{db: db}
}

func (r *PostgresFollowRepository) CreateFollow(ctx context.Context, followerID, followingID uint) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPair(tx, followerID, followingID); err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Follow{FollowerID: followerID, FollowingID: followingID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		return r.syncMutual(tx, followerID, followingID)
	})
	return created, err
}

func (r *PostgresFollowRepository) DeleteFollow(ctx context.Context, followerID, followingID uint) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPair(tx, followerID, followingID); err != nil {
			return err
		}
		res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Model(&models.Follow{}).
			Where("follower_id = ? AND following_id = ?", followingID, followerID).
			Update("is_mutual", false).Error
	})
	return deleted, err
}

// lockPair takes row locks on both users in id order. A→B and B→A then
// commit one after the other and the second sees the first's edge.
func lockPair(tx *gorm.DB, a, b uint) error {
	var ids []uint
	return lockPairQuery(tx, a, b).Pluck("id", &ids).Error
}

func lockPairQuery(tx *gorm.DB, a, b uint) *gorm.DB {
	return tx.Model(&models.User{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", []uint{a, b}).
		Order("id")
}

const syncMutualSQL = `UPDATE follows AS f
SET is_mutual = EXISTS (
	SELECT 1 FROM follows AS r
	WHERE r.follower_id = f.following_id AND r.following_id = f.follower_id
)
WHERE (f.follower_id = @user OR f.following_id = @user)
AND f.is_mutual IS DISTINCT FROM EXISTS (
	SELECT 1 FROM follows AS r
	WHERE r.follower_id = f.following_id AND r.following_id = f.follower_id
)`

func (r *PostgresFollowRepository) SyncMutual(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Exec(syncMutualSQL, sql.Named("user", userID))
	return res.RowsAffected, res.Error
}

// syncMutual marks both edges mutual when the reverse edge exists
func (r *PostgresFollowRepository) syncMutual(tx *gorm.DB, followerID, followingID uint) error {
	res := tx.Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followingID, followerID).
		Update("is_mutual", true)
	if res.Error != nil || res.RowsAffected == 0 {
		return res.Error
	}
	return tx.Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Update("is_mutual", true).Error
}

func (r *PostgresFollowRepository) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("follower_id = ? AND following_id = ?", followerID, followingID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresFollowRepository) GetFollowers(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	db := r.db.WithContext(ctx)
	err := db.Where("id IN (?)",
		db.Table("follows").Select("follower_id").Where("following_id = ?", userID),
	).Find(&users).Error
	return users, err
}

func (r *PostgresFollowRepository) GetFollowing(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	db := r.db.WithContext(ctx)
	err := db.Where("id IN (?)",
		db.Table("follows").Select("following_id").Where("follower_id = ?", userID),
	).Find(&users).Error
	return users, err
}

// GetFollowersCount counts edges pointing at the user, excluding malformed self edges
func (r *PostgresFollowRepository) GetFollowersCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("following_id = ? AND follower_id <> ?", userID, userID).Count(&count).Error
	return count, err
}

func (r *PostgresFollowRepository) GetFollowingCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("follower_id = ? AND following_id <> ?", userID, userID).Count(&count).Error
	return count, err
}

func (r *PostgresFollowRepository) CountSelfFollows(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("follower_id = ? AND following_id = ?", userID, userID).Count(&count).Error
	return count, err
}
