package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func designerInfo() map[string]string {
	return map[string]string{
		"realName":     "Lin Mei",
		"organization": "Open Access Studio",
		"portfolio":    "https://example.org/lin",
	}
}

func TestSinglePendingApplication(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	applicant := h.user("applicant", models.RoleResident)
	admin := h.user("admin", models.RoleResident, models.CapabilityAdmin)

	app, err := h.svc.Certification.Apply(ctx, applicant, models.RoleDesigner, designerInfo())
	require.NoError(t, err)
	assert.Equal(t, models.CertificationPending, app.Status)

	_, err = h.svc.Certification.Apply(ctx, applicant, models.RoleDesigner, designerInfo())
	assert.ErrorIs(t, err, apperrors.ErrStateConflict)

	require.NoError(t, h.svc.Certification.Review(ctx, admin, applicant.ID(), models.CertificationRejected, "portfolio link is broken"))
	status, err := h.svc.Certification.Status(ctx, applicant)
	require.NoError(t, err)
	assert.Equal(t, models.CertificationRejected, status.Status)
	assert.Equal(t, "portfolio link is broken", status.RejectReason)

	app, err = h.svc.Certification.Apply(ctx, applicant, models.RoleDesigner, designerInfo())
	require.NoError(t, err)
	assert.Equal(t, models.CertificationPending, app.Status)
	assert.Contains(t, h.store.notificationTypes(applicant.ID()), string(models.NotifyCertReview))
}

func TestConcurrentApplicationsFileOnce(t *testing.T) {
	h := newHarness(t)
	applicant := h.user("applicant", models.RoleResident)

	var filed, conflicts atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Certification.Apply(context.Background(), applicant, models.RoleDesigner, designerInfo())
			switch {
			case err == nil:
				filed.Add(1)
			case apperrors.KindOf(err) == apperrors.KindStateConflict:
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, filed.Load())
	assert.EqualValues(t, 7, conflicts.Load())
}

func TestApprovalElevatesRoleAndBadge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	applicant := h.user("applicant", models.RoleResident)
	admin := h.user("admin", models.RoleResident, models.CapabilityAdmin)

	_, err := h.svc.Certification.Apply(ctx, applicant, models.RoleContractor, map[string]string{
		"companyName":   "Level Build",
		"licenseNumber": "LB-2291",
		"contactPhone":  "555-0100",
	})
	require.NoError(t, err)
	require.NoError(t, h.svc.Certification.Review(ctx, admin, applicant.ID(), models.CertificationApproved, "ignored"))

	promoted, err := h.svc.Guard.LoadCaller(ctx, applicant.ID())
	require.NoError(t, err)
	assert.Equal(t, models.RoleContractor, promoted.Role())
	assert.Equal(t, models.Badges[models.RoleContractor], promoted.User.Badge)
	assert.Empty(t, promoted.User.Certification.RejectReason)

	err = h.svc.Certification.Review(ctx, admin, applicant.ID(), models.CertificationApproved, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	last := h.store.audits[len(h.store.audits)-1]
	assert.Equal(t, models.AuditCertApprove, last.Action)
	assert.Equal(t, admin.ID(), last.ActorID)
	assert.Equal(t, string(models.RoleContractor), last.Detail)
}

func TestApplicationValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	applicant := h.user("applicant", models.RoleResident)

	_, err := h.svc.Certification.Apply(ctx, applicant, models.RoleGovernment, designerInfo())
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = h.svc.Certification.Apply(ctx, applicant, models.RoleDesigner, map[string]string{"realName": "Lin", "portfolio": "  "})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Contains(t, err.Error(), "organization, portfolio")

	status, err := h.svc.Certification.Status(ctx, applicant)
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestReviewRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	applicant := h.user("applicant", models.RoleResident)
	admin := h.user("admin", models.RoleResident, models.CapabilityAdmin)
	gov := h.user("gov", models.RoleGovernment)
	_, err := h.svc.Certification.Apply(ctx, applicant, models.RoleDesigner, designerInfo())
	require.NoError(t, err)

	tests := []struct {
		name     string
		caller   *Caller
		userID   uint
		decision models.CertificationStatus
		reason   string
		want     error
	}{
		{"non-admin", gov, applicant.ID(), models.CertificationApproved, "", apperrors.ErrPermission},
		{"rejection without reason", admin, applicant.ID(), models.CertificationRejected, " ", apperrors.ErrValidation},
		{"unknown decision", admin, applicant.ID(), models.CertificationRemoved, "", apperrors.ErrValidation},
		{"unknown user", admin, 999, models.CertificationApproved, "", apperrors.ErrNotFound},
		{"user without application", admin, gov.ID(), models.CertificationApproved, "", apperrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.svc.Certification.Review(ctx, tt.caller, tt.userID, tt.decision, tt.reason)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	status, err := h.svc.Certification.Status(ctx, applicant)
	require.NoError(t, err)
	assert.Equal(t, models.CertificationPending, status.Status)
}

func TestRevokeCertificationIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user("admin", models.RoleResident, models.CapabilityAdmin)
	designer := h.user("designer", models.RoleDesigner)
	resident := h.user("resident", models.RoleResident)

	require.NoError(t, h.svc.Certification.Revoke(ctx, admin, designer.ID()))
	demoted, err := h.svc.Guard.LoadCaller(ctx, designer.ID())
	require.NoError(t, err)
	assert.Equal(t, models.RoleResident, demoted.Role())
	assert.Empty(t, demoted.User.Badge)

	audits := len(h.store.audits)
	require.NoError(t, h.svc.Certification.Revoke(ctx, admin, designer.ID()))
	require.NoError(t, h.svc.Certification.Revoke(ctx, admin, resident.ID()))
	assert.Len(t, h.store.audits, audits)

	assert.ErrorIs(t, h.svc.Certification.Revoke(ctx, resident, designer.ID()), apperrors.ErrPermission)
	assert.ErrorIs(t, h.svc.Certification.Revoke(ctx, admin, 999), apperrors.ErrNotFound)
}
