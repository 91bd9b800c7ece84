package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/labstack/gommon/log"
	"gorm.io/datatypes"
)

// CertificationService runs the single-slot role elevation workflow
type CertificationService struct {
	base
	guard *Guard
}

// Apply files an application for a privileged role. At most one application
// per user may be pending.
func (s *CertificationService) Apply(ctx context.Context, caller *Caller, role models.Role, info map[string]string) (*models.CertificationApplication, error) {
	if err := s.guard.Authorize(caller, OpApplyCertification, 0); err != nil {
		return nil, err
	}
	required, ok := models.CertifiableRoles[role]
	if !ok {
		return nil, apperrors.Validation("cannot apply for role %q", role)
	}
	var missing []string
	for _, field := range required {
		if strings.TrimSpace(info[field]) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, apperrors.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}

	stored := make(datatypes.JSONMap, len(info))
	for k, v := range info {
		stored[k] = strings.TrimSpace(v)
	}
	now := time.Now()
	app := models.CertificationApplication{
		Type:      role,
		Info:      stored,
		Status:    models.CertificationPending,
		ApplyTime: &now,
	}
	filed, err := s.deps.Users.SubmitCertification(ctx, caller.ID(), app)
	if err != nil {
		return nil, storeErr("submit certification", "user", err)
	}
	if !filed {
		s.deps.Metrics.Conflict(ctx, "certification.apply")
		return nil, apperrors.StateConflict("an application is already pending review")
	}
	s.deps.Metrics.Transition(ctx, "certification", string(models.CertificationPending))
	return &app, nil
}

// Review approves or rejects the user's pending application. Approval changes
// role and badge in the same write.
func (s *CertificationService) Review(ctx context.Context, caller *Caller, userID uint, decision models.CertificationStatus, reason string) error {
	if err := s.guard.Authorize(caller, OpReviewCertification, 0); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	switch decision {
	case models.CertificationApproved:
		reason = ""
	case models.CertificationRejected:
		if reason == "" {
			return apperrors.Validation("a rejection needs a reason")
		}
	default:
		return apperrors.Validation("decision must be approved or rejected")
	}

	user, err := s.deps.Users.GetUserByID(ctx, userID)
	if err != nil {
		return storeErr("load applicant", "user", err)
	}
	decided, err := s.deps.Users.DecideCertification(ctx, userID, decision, caller.ID(), reason, time.Now())
	if err != nil {
		return apperrors.Internal("decide certification", err)
	}
	if !decided {
		return apperrors.NotFound("no pending application for this user")
	}

	action := models.AuditCertApprove
	if decision == models.CertificationRejected {
		action = models.AuditCertReject
	}
	s.audit(ctx, caller.ID(), action, userID, string(user.Certification.Type))
	s.deps.Metrics.Transition(ctx, "certification", string(decision))
	s.notify(ctx, models.Notification{
		Type:        models.NotifyCertReview,
		ActorID:     caller.ID(),
		RecipientID: userID,
		TargetType:  "user",
		Message:     "your " + string(user.Certification.Type) + " application was " + string(decision),
	})
	return nil
}

// Revoke returns the user to resident. Revoking a resident changes nothing.
func (s *CertificationService) Revoke(ctx context.Context, caller *Caller, userID uint) error {
	if err := s.guard.Authorize(caller, OpRevokeCertification, 0); err != nil {
		return err
	}
	if _, err := s.deps.Users.GetUserByID(ctx, userID); err != nil {
		return storeErr("load user", "user", err)
	}
	changed, err := s.deps.Users.ResetCertification(ctx, userID)
	if err != nil {
		return apperrors.Internal("reset certification", err)
	}
	if changed {
		s.audit(ctx, caller.ID(), models.AuditCertRevoke, userID, "")
		s.deps.Metrics.Transition(ctx, "certification", string(models.CertificationRemoved))
	}
	return nil
}

// Status returns the caller's application, nil when none was ever filed
func (s *CertificationService) Status(ctx context.Context, caller *Caller) (*models.CertificationApplication, error) {
	if caller == nil || caller.User == nil {
		return nil, apperrors.Permission("authentication required")
	}
	user, err := s.deps.Users.GetUserByID(ctx, caller.ID())
	if err != nil {
		return nil, storeErr("load user", "user", err)
	}
	if user.Certification.Status == "" {
		return nil, nil
	}
	return &user.Certification, nil
}

func (s *CertificationService) audit(ctx context.Context, actorID uint, action string, subjectID uint, detail string) {
	entry := &models.AuditEntry{ActorID: actorID, Action: action, SubjectID: subjectID, Detail: detail}
	if err := s.deps.Grants.RecordAudit(ctx, entry); err != nil {
		s.logger.Errorj(log.JSON{"msg": "audit entry lost", "action": action, "subject": subjectID, "error": err.Error()})
	}
}
