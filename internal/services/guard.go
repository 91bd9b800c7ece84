package services

import (
	"context"
	"errors"
	"strings"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/anonto42/barrierfree/backend/internal/repositories"
	"github.com/labstack/gommon/log"
)

// Operation names a guarded action
type Operation string

const (
	OpReportIssue         Operation = "issue.report"
	OpVerifyIssue         Operation = "issue.verify"
	OpDeleteIssue         Operation = "issue.delete"
	OpSubmitProposal      Operation = "proposal.submit"
	OpCreateProject       Operation = "project.create"
	OpAdvanceStage        Operation = "project.advance"
	OpConfirmCompletion   Operation = "issue.complete"
	OpApplyCertification  Operation = "certification.apply"
	OpReviewCertification Operation = "certification.review"
	OpRevokeCertification Operation = "certification.revoke"
	OpManageCapabilities  Operation = "capability.manage"
	OpReconcileStats      Operation = "stats.reconcile"
	OpDeleteComment       Operation = "comment.delete"
)

// rule grants an operation to any caller matching one of its clauses. A rule
// with no clauses admits every resolved caller.
type rule struct {
	roles      []models.Role
	owner      bool
	capability string
	denied     string
}

var permissions = map[Operation]rule{
	OpReportIssue:         {},
	OpApplyCertification:  {},
	OpVerifyIssue:         {roles: []models.Role{models.RoleDesigner, models.RoleContractor, models.RoleGovernment}, denied: "only designers, contractors or government reviewers can verify issues"},
	OpDeleteIssue:         {owner: true, denied: "only the reporter can delete an issue"},
	OpSubmitProposal:      {roles: []models.Role{models.RoleDesigner}, denied: "only certified designers can submit proposals"},
	OpCreateProject:       {roles: []models.Role{models.RoleContractor}, denied: "only certified contractors can claim issues"},
	OpAdvanceStage:        {owner: true, denied: "only the assigned contractor can update this project"},
	OpConfirmCompletion:   {owner: true, roles: []models.Role{models.RoleCommunityWorker}, denied: "only the reporter or a community worker can confirm completion"},
	OpReviewCertification: {capability: models.CapabilityAdmin, denied: "administrator access required"},
	OpRevokeCertification: {capability: models.CapabilityAdmin, denied: "administrator access required"},
	OpManageCapabilities:  {capability: models.CapabilityAdmin, denied: "administrator access required"},
	OpReconcileStats:      {capability: models.CapabilityAdmin, denied: "administrator access required"},
	OpDeleteComment:       {owner: true, capability: models.CapabilityAdmin, denied: "only the author can delete this comment"},
}

// Caller is a resolved identity
type Caller struct {
	User         *models.User
	Capabilities map[string]bool
}

func (c *Caller) ID() uint          { return c.User.ID }
func (c *Caller) Role() models.Role { return c.User.Role }

// Has reports whether the caller holds a capability
func (c *Caller) Has(capability string) bool { return c.Capabilities[capability] }

// Guard resolves identities and answers permission questions
type Guard struct {
	base
}

// Resolve maps the identity provider's opaque ID to a caller
func (g *Guard) Resolve(ctx context.Context, callerID string) (*Caller, error) {
	if callerID == "" {
		return nil, apperrors.Permission("authentication required")
	}
	user, err := g.deps.Users.GetUserByFirebaseUID(ctx, callerID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.Permission("unknown identity")
	}
	if err != nil {
		return nil, apperrors.Internal("resolve caller", err)
	}
	return g.withCapabilities(ctx, user)
}

// EnsureUser resolves the caller, registering first-seen identities as residents
func (g *Guard) EnsureUser(ctx context.Context, callerID, displayName string) (*Caller, error) {
	caller, err := g.Resolve(ctx, callerID)
	if err == nil || !errors.Is(err, apperrors.ErrPermission) || callerID == "" {
		return caller, err
	}
	if displayName == "" {
		displayName = "resident"
	}
	user := &models.User{FirebaseUID: callerID, DisplayName: displayName, Role: models.RoleResident}
	if err := g.deps.Users.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.Internal("register caller", err)
		}
		// registered concurrently by another request
		return g.Resolve(ctx, callerID)
	}
	g.logger.Infoj(log.JSON{"msg": "registered identity", "user_id": user.ID})
	return g.withCapabilities(ctx, user)
}

// LoadCaller resolves by internal user ID, used by operator tooling
func (g *Guard) LoadCaller(ctx context.Context, userID uint) (*Caller, error) {
	user, err := g.deps.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storeErr("load caller", "user", err)
	}
	return g.withCapabilities(ctx, user)
}

func (g *Guard) withCapabilities(ctx context.Context, user *models.User) (*Caller, error) {
	caps, err := g.deps.Grants.ListCapabilities(ctx, user.ID)
	if err != nil {
		return nil, apperrors.Internal("load capabilities", err)
	}
	caller := &Caller{User: user, Capabilities: make(map[string]bool, len(caps))}
	for _, c := range caps {
		caller.Capabilities[c] = true
	}
	return caller, nil
}

// Authorize checks op against the permission table. ownerID is the owner of
// the target entity, zero when the operation has none.
func (g *Guard) Authorize(caller *Caller, op Operation, ownerID uint) error {
	if caller == nil || caller.User == nil {
		return apperrors.Permission("authentication required")
	}
	r, ok := permissions[op]
	if !ok {
		return apperrors.Permission("operation %s is not permitted", op)
	}
	if len(r.roles) == 0 && !r.owner && r.capability == "" {
		return nil
	}
	if r.owner && ownerID != 0 && caller.ID() == ownerID {
		return nil
	}
	for _, role := range r.roles {
		if caller.Role() == role {
			return nil
		}
	}
	if r.capability != "" && caller.Has(r.capability) {
		return nil
	}
	return apperrors.Permission("%s", r.denied)
}

// Grant gives userID a capability. Granting a held capability is a no-op.
func (g *Guard) Grant(ctx context.Context, caller *Caller, userID uint, capability string) error {
	if err := g.Authorize(caller, OpManageCapabilities, 0); err != nil {
		return err
	}
	return g.grant(ctx, caller.ID(), userID, capability)
}

// Bootstrap grants a capability without an acting admin (actor 0 in the audit
// trail). It is only reachable from operator tooling.
func (g *Guard) Bootstrap(ctx context.Context, userID uint, capability string) error {
	return g.grant(ctx, 0, userID, capability)
}

func (g *Guard) grant(ctx context.Context, actorID, userID uint, capability string) error {
	capability = strings.TrimSpace(capability)
	if capability == "" {
		return apperrors.Validation("capability is required")
	}
	if _, err := g.deps.Users.GetUserByID(ctx, userID); err != nil {
		return storeErr("grant capability", "user", err)
	}
	granted, err := g.deps.Grants.Grant(ctx, userID, capability, actorID)
	if err != nil {
		return apperrors.Internal("grant capability", err)
	}
	if granted {
		g.logger.Infoj(log.JSON{"msg": "capability granted", "user_id": userID, "capability": capability, "actor": actorID})
	}
	return nil
}

// Revoke removes a capability; revoking one that is not held is a no-op.
// An admin cannot revoke their own admin capability.
func (g *Guard) Revoke(ctx context.Context, caller *Caller, userID uint, capability string) error {
	if err := g.Authorize(caller, OpManageCapabilities, 0); err != nil {
		return err
	}
	if userID == caller.ID() && capability == models.CapabilityAdmin {
		return apperrors.Validation("administrators cannot revoke their own admin capability")
	}
	return g.revoke(ctx, caller.ID(), userID, capability)
}

// BootstrapRevoke is Revoke for operator tooling
func (g *Guard) BootstrapRevoke(ctx context.Context, userID uint, capability string) error {
	return g.revoke(ctx, 0, userID, capability)
}

func (g *Guard) revoke(ctx context.Context, actorID, userID uint, capability string) error {
	revoked, err := g.deps.Grants.Revoke(ctx, userID, capability, actorID)
	if err != nil {
		return apperrors.Internal("revoke capability", err)
	}
	if revoked {
		g.logger.Infoj(log.JSON{"msg": "capability revoked", "user_id": userID, "capability": capability, "actor": actorID})
	}
	return nil
}
