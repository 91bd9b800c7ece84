// Package services implements the issue lifecycle: authorization, role
// certification, issue reporting and verification, proposal intake, staged
// construction projects, completion and the derived-counter engine.
//
// Every mutation is a single conditional write against the stored state, so
// two independent requests racing on the same issue or project cannot both
// succeed. Writes that span two documents are ordered so the first one is
// the gate, and the second is retried until it converges.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/collaborators"
	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/anonto42/barrierfree/backend/internal/repositories"
	"github.com/anonto42/barrierfree/backend/internal/telemetry"
	"github.com/cenkalti/backoff/v4"
	"github.com/labstack/gommon/log"
)

// Deps are the stores and collaborators the services are built from
type Deps struct {
	Users         repositories.UserRepository
	Grants        repositories.GrantRepository
	Issues        repositories.IssueRepository
	Proposals     repositories.ProposalRepository
	Projects      repositories.ProjectRepository
	Follows       repositories.FollowRepository
	Likes         repositories.LikeRepository
	Comments      repositories.CommentRepository
	CommentLikes  repositories.CommentLikeRepository
	Notifications repositories.NotificationRepository

	Moderator collaborators.ContentModerator
	Analyzer  collaborators.ImageAnalyzer
	Media     collaborators.MediaResolver
	Metrics   *telemetry.Metrics

	// ConvergeTimeout bounds the retries of a second, dependent write
	ConvergeTimeout time.Duration
}

// Services bundles every component
type Services struct {
	Guard         *Guard
	Certification *CertificationService
	Issues        *IssueService
	Proposals     *ProposalService
	Projects      *ProjectService
	Completion    *CompletionService
	Stats         *StatsEngine
	Social        *SocialService
}

// New wires the components together
func New(d Deps) *Services {
	if d.Moderator == nil {
		d.Moderator = collaborators.PassThrough{}
	}
	if d.Analyzer == nil {
		d.Analyzer = collaborators.PassThrough{}
	}
	if d.Media == nil {
		d.Media = collaborators.PassThrough{}
	}
	if d.ConvergeTimeout <= 0 {
		d.ConvergeTimeout = 10 * time.Second
	}

	b := &base{deps: d}
	guard := &Guard{base: b.named("guard")}
	stats := &StatsEngine{base: b.named("stats"), guard: guard}
	issues := &IssueService{base: b.named("issues"), guard: guard, stats: stats}
	projects := &ProjectService{base: b.named("projects"), guard: guard, issues: issues}
	return &Services{
		Guard:         guard,
		Certification: &CertificationService{base: b.named("certification"), guard: guard},
		Issues:        issues,
		Proposals:     &ProposalService{base: b.named("proposals"), guard: guard, issues: issues},
		Projects:      projects,
		Completion:    &CompletionService{base: b.named("completion"), guard: guard, issues: issues, projects: projects},
		Stats:         stats,
		Social:        &SocialService{base: b.named("social"), guard: guard, stats: stats},
	}
}

// base carries the shared dependencies and a component-prefixed logger
type base struct {
	deps   Deps
	logger *log.Logger
}

func (b *base) named(component string) base {
	l := log.New(component)
	l.SetHeader(`${time_rfc3339} ${level} ${prefix}`)
	return base{deps: b.deps, logger: l}
}

// moderate rejects content the moderation service fails; a moderation outage
// also blocks the write.
func (b *base) moderate(ctx context.Context, text string, imageRefs []string) error {
	if text != "" {
		v, err := b.deps.Moderator.CheckText(ctx, text)
		if err != nil {
			return b.external("moderation", err)
		}
		if !v.Pass {
			return apperrors.Validation("content rejected by moderation: %s", v.Reason)
		}
	}
	for _, ref := range imageRefs {
		url, err := b.deps.Media.ResolveURL(ctx, ref)
		if err != nil {
			return b.external("media", err)
		}
		v, err := b.deps.Moderator.CheckImage(ctx, url)
		if err != nil {
			return b.external("moderation", err)
		}
		if !v.Pass {
			return apperrors.Validation("image rejected by moderation: %s", v.Reason)
		}
	}
	return nil
}

func (b *base) external(service string, err error) error {
	if apperrors.KindOf(err) == apperrors.KindExternalService {
		return err
	}
	return apperrors.External(service, err)
}

// notify records a notification; failures never fail the operation
func (b *base) notify(ctx context.Context, n models.Notification) {
	if b.deps.Notifications == nil || n.RecipientID == 0 || n.RecipientID == n.ActorID {
		return
	}
	if err := b.deps.Notifications.CreateNotification(ctx, &n); err != nil {
		b.logger.Warnj(log.JSON{"msg": "notification dropped", "type": n.Type, "recipient": n.RecipientID, "error": err.Error()})
	}
}

// errRetry marks a lost race in a converging write
var errRetry = errors.New("state moved, retrying")

// converge retries op with exponential backoff until it succeeds, fails with
// a caller-facing error kind, or ConvergeTimeout elapses. It ignores
// cancellation of ctx so a caller that walks away cannot strand half of a
// two-document change.
func (b *base) converge(ctx context.Context, op func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.deps.ConvergeTimeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = b.deps.ConvergeTimeout
	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil || errors.Is(err, errRetry) {
			return err
		}
		switch apperrors.KindOf(err) {
		case apperrors.KindInternal, apperrors.KindExternalService:
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}

// storeErr translates repository errors for the entity named
func storeErr(op, entity string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound), errors.Is(err, repositories.ErrInvalidID):
		return apperrors.NotFound("%s not found", entity)
	}
	return apperrors.Internal(op, err)
}
