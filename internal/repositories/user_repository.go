package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/barrierfree/backend/internal/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error)
	ListUserIDs(ctx context.Context) ([]uint, error)
	UpdateProfile(ctx context.Context, id uint, displayName, avatarURL string) error
	// SubmitCertification fills the application slot unless a pending application occupies it
	SubmitCertification(ctx context.Context, id uint, app models.CertificationApplication) (bool, error)
	// DecideCertification closes a pending application; on approval role and badge change in the same write
	DecideCertification(ctx context.Context, id uint, decision models.CertificationStatus, reviewerID uint, reason string, at time.Time) (bool, error)
	// ResetCertification returns the user to resident; reports whether anything changed
	ResetCertification(ctx context.Context, id uint) (bool, error)
	AdjustStat(ctx context.Context, id uint, field models.StatField, delta int64) error
	SetStats(ctx context.Context, id uint, stats models.UserStats) error
}

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// CreateUser creates a new user in PostgreSQL
func (r *PostgresUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleResident
	}
	return gormErr(r.db.WithContext(ctx).Create(user).Error)
}

// GetUserByID retrieves a user by ID from PostgreSQL
func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, gormErr(err)
	}
	return &user, nil
}

// GetUserByFirebaseUID retrieves a user by Firebase UID from PostgreSQL
func (r *PostgresUserRepository) GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("firebase_uid = ?", firebaseUID).First(&user).Error; err != nil {
		return nil, gormErr(err)
	}
	return &user, nil
}

// ListUserIDs returns every user ID, used by full reconciliation
func (r *PostgresUserRepository) ListUserIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.User{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}

// UpdateProfile changes the display fields only
func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, id uint, displayName, avatarURL string) error {
	updates := map[string]interface{}{}
	if displayName != "" {
		updates["display_name"] = displayName
	}
	if avatarURL != "" {
		updates["avatar_url"] = avatarURL
	}
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepository) SubmitCertification(ctx context.Context, id uint, app models.CertificationApplication) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND cert_status IS DISTINCT FROM ?", id, models.CertificationPending).
		Updates(map[string]interface{}{
			"cert_type":          app.Type,
			"cert_info":          app.Info,
			"cert_status":        models.CertificationPending,
			"cert_apply_time":    app.ApplyTime,
			"cert_review_time":   nil,
			"cert_reviewer_id":   nil,
			"cert_reject_reason": "",
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PostgresUserRepository) DecideCertification(ctx context.Context, id uint, decision models.CertificationStatus, reviewerID uint, reason string, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"cert_status":        decision,
		"cert_review_time":   at,
		"cert_reviewer_id":   reviewerID,
		"cert_reject_reason": reason,
	}
	switch decision {
	case models.CertificationApproved:
		// role and badge follow the applied-for type, decided inside the same statement
		updates["role"] = gorm.Expr("cert_type")
		updates["badge"] = gorm.Expr(badgeCaseExpr())
	case models.CertificationRejected:
	default:
		return false, fmt.Errorf("unsupported certification decision %q", decision)
	}

	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND cert_status = ?", id, models.CertificationPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PostgresUserRepository) ResetCertification(ctx context.Context, id uint) (bool, error) {
	res := resetCertification(r.db.WithContext(ctx), id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// resetCertification matches only users that still carry something to clear.
// Never-applied users store an empty status string rather than NULL.
func resetCertification(db *gorm.DB, id uint) *gorm.DB {
	return db.Model(&models.User{}).
		Where("id = ? AND (role <> ? OR badge <> '' OR COALESCE(cert_status, '') <> '' OR COALESCE(cert_type, '') <> '' OR professional_profile IS NOT NULL)", id, models.RoleResident).
		Updates(map[string]interface{}{
			"role":                 models.RoleResident,
			"badge":                "",
			"cert_type":            "",
			"cert_info":            nil,
			"cert_status":          "",
			"cert_apply_time":      nil,
			"cert_review_time":     nil,
			"cert_reviewer_id":     nil,
			"cert_reject_reason":   "",
			"professional_profile": nil,
		})
}

// AdjustStat applies ±delta in one statement, clamped at zero
func (r *PostgresUserRepository) AdjustStat(ctx context.Context, id uint, field models.StatField, delta int64) error {
	if !validStatField(field) {
		return fmt.Errorf("unknown stat field %q", field)
	}
	col := string(field)
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		UpdateColumn(col, gorm.Expr("GREATEST("+col+" + ?, 0)", delta)).Error
}

// SetStats overwrites all counters with reconciled values
func (r *PostgresUserRepository) SetStats(ctx context.Context, id uint, stats models.UserStats) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			string(models.StatFollowing): stats.FollowingCount,
			string(models.StatFollowers): stats.FollowersCount,
			string(models.StatLikes):     stats.LikesCount,
		}).Error
}

func validStatField(field models.StatField) bool {
	switch field {
	case models.StatFollowing, models.StatFollowers, models.StatLikes:
		return true
	}
	return false
}

func badgeCaseExpr() string {
	expr := "CASE cert_type"
	for _, role := range []models.Role{models.RoleDesigner, models.RoleContractor, models.RoleCommunityWorker} {
		expr += fmt.Sprintf(" WHEN '%s' THEN '%s'", role, models.Badges[role])
	}
	return expr + " ELSE '' END"
}
