package repositories

import (
	"context"
	"time"

	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GrantRepository stores capabilities and the audit trail of privileged actions
type GrantRepository interface {
	HasCapability(ctx context.Context, userID uint, capability string) (bool, error)
	ListCapabilities(ctx context.Context, userID uint) ([]string, error)
	// Grant adds the capability and an audit entry atomically; false if already held
	Grant(ctx context.Context, userID uint, capability string, actorID uint) (bool, error)
	// Revoke removes the capability and writes an audit entry atomically; false if not held
	Revoke(ctx context.Context, userID uint, capability string, actorID uint) (bool, error)
	RecordAudit(ctx context.Context, entry *models.AuditEntry) error
}

// PostgresGrantRepository implements GrantRepository for PostgreSQL
type PostgresGrantRepository struct {
	db *gorm.DB
}

// NewPostgresGrantRepository creates a new PostgresGrantRepository
func NewPostgresGrantRepository(db *gorm.DB) *PostgresGrantRepository {
	return &PostgresGrantRepository{db: db}
}

func (r *PostgresGrantRepository) HasCapability(ctx context.Context, userID uint, capability string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RoleGrant{}).
		Where("user_id = ? AND capability = ?", userID, capability).Count(&count).Error
	return count > 0, err
}

func (r *PostgresGrantRepository) ListCapabilities(ctx context.Context, userID uint) ([]string, error) {
	var caps []string
	err := r.db.WithContext(ctx).Model(&models.RoleGrant{}).Where("user_id = ?", userID).
		Order("capability").Pluck("capability", &caps).Error
	return caps, err
}

func (r *PostgresGrantRepository) Grant(ctx context.Context, userID uint, capability string, actorID uint) (bool, error) {
	granted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.RoleGrant{
			UserID:     userID,
			Capability: capability,
			GrantedBy:  actorID,
		})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		granted = true
		return tx.Create(newAuditEntry(actorID, models.AuditGrant, userID, capability)).Error
	})
	return granted, err
}

func (r *PostgresGrantRepository) Revoke(ctx context.Context, userID uint, capability string, actorID uint) (bool, error) {
	revoked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND capability = ?", userID, capability).Delete(&models.RoleGrant{})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		revoked = true
		return tx.Create(newAuditEntry(actorID, models.AuditRevoke, userID, capability)).Error
	})
	return revoked, err
}

func (r *PostgresGrantRepository) RecordAudit(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func newAuditEntry(actorID uint, action string, subjectID uint, detail string) *models.AuditEntry {
	return &models.AuditEntry{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Action:    action,
		SubjectID: subjectID,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
}
