package router

import (
	"context"
	"fmt"
	"log"

	"github.com/anonto42/barrierfree/backend/internal/collaborators"
	"github.com/anonto42/barrierfree/backend/internal/repositories"
	"github.com/anonto42/barrierfree/backend/internal/services"
	"github.com/anonto42/barrierfree/backend/internal/telemetry"
	"github.com/anonto42/barrierfree/backend/pkg/config"
)

// Stores are the repositories built over the two databases
type Stores struct {
	Users         *repositories.PostgresUserRepository
	Grants        *repositories.PostgresGrantRepository
	Issues        *repositories.MongoIssueRepository
	Proposals     *repositories.MongoProposalRepository
	Projects      *repositories.MongoProjectRepository
	Follows       *repositories.PostgresFollowRepository
	Likes         *repositories.PostgresLikeRepository
	Comments      *repositories.PostgresCommentRepository
	CommentLikes  repositories.CommentLikeRepository
	Notifications repositories.NotificationRepository
}

// NewStores builds every repository and ensures the Mongo indexes the
// conditional writes depend on.
func NewStores(ctx context.Context, db *config.DB) (*Stores, error) {
	s := &Stores{
		Users:         repositories.NewPostgresUserRepository(db.Postgres),
		Grants:        repositories.NewPostgresGrantRepository(db.Postgres),
		Issues:        repositories.NewMongoIssueRepository(db.Database),
		Proposals:     repositories.NewMongoProposalRepository(db.Database),
		Projects:      repositories.NewMongoProjectRepository(db.Database),
		Follows:       repositories.NewPostgresFollowRepository(db.Postgres),
		Likes:         repositories.NewPostgresLikeRepository(db.Postgres),
		Comments:      repositories.NewPostgresCommentRepository(db.Postgres),
		CommentLikes:  repositories.NewPostgresCommentLikeRepository(db.Postgres),
		Notifications: repositories.NewPostgresNotificationRepository(db.Postgres),
	}
	for name, ensure := range map[string]func(context.Context) error{
		"issues":    s.Issues.EnsureIndexes,
		"proposals": s.Proposals.EnsureIndexes,
		"projects":  s.Projects.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return nil, fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}
	log.Println("MongoDB indexes ensured.")
	return s, nil
}

// NewServices wires the core components. media may be nil, in which case
// references are served as given.
func NewServices(cfg *config.Config, s *Stores, media collaborators.MediaResolver) (*services.Services, error) {
	deps := services.Deps{
		Users:           s.Users,
		Grants:          s.Grants,
		Issues:          s.Issues,
		Proposals:       s.Proposals,
		Projects:        s.Projects,
		Follows:         s.Follows,
		Likes:           s.Likes,
		Comments:        s.Comments,
		CommentLikes:    s.CommentLikes,
		Notifications:   s.Notifications,
		Media:           media,
		Metrics:         telemetry.NewMetrics(),
		ConvergeTimeout: cfg.ConvergeTimeout,
	}
	if cfg.AnthropicAPIKey != "" {
		claude, err := collaborators.NewClaude(cfg.AnthropicAPIKey, cfg.AIModel, cfg.AITimeout)
		if err != nil {
			return nil, err
		}
		deps.Moderator, deps.Analyzer = claude, claude
	} else {
		log.Println("ANTHROPIC_API_KEY not set; moderation and diagnosis are disabled.")
	}
	return services.New(deps), nil
}
