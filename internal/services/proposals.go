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

// ProposalService accepts design proposals while an issue is still pending
type ProposalService struct {
	base
	guard  *Guard
	issues *IssueService
}

// Submit stores a designer's proposal. The proposal count is reserved on the
// issue first, conditional on the issue still being pending, so a claim that
// lands before the reservation closes the window.
func (s *ProposalService) Submit(ctx context.Context, caller *Caller, issueID string, req models.SubmitProposalRequest) (*models.DesignProposal, error) {
	if err := s.guard.Authorize(caller, OpSubmitProposal, 0); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperrors.Validation("content is required")
	}
	issue, err := s.issues.load(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.Status != models.IssuePending {
		return nil, apperrors.StateConflict("issue is no longer accepting proposals")
	}
	if err := s.moderate(ctx, content, req.Images); err != nil {
		return nil, err
	}

	reserved, err := s.deps.Issues.ReserveProposalSlot(ctx, issueID)
	if err != nil {
		return nil, storeErr("reserve proposal", "issue", err)
	}
	if !reserved {
		s.deps.Metrics.Conflict(ctx, "proposal.submit")
		return nil, apperrors.StateConflict("issue is no longer accepting proposals")
	}

	proposal := &models.DesignProposal{
		IssueID:        issue.ID,
		DesignerID:     caller.ID(),
		Content:        content,
		Images:         req.Images,
		CostAdjustment: req.CostAdjustment,
	}
	if err := s.deps.Proposals.CreateProposal(ctx, proposal); err != nil {
		s.releaseSlot(ctx, issueID)
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.StateConflict("duplicate submission")
		}
		return nil, apperrors.Internal("create proposal", err)
	}

	s.notify(ctx, models.Notification{
		Type:        models.NotifyProposal,
		ActorID:     caller.ID(),
		RecipientID: issue.OwnerID,
		TargetID:    issueID,
		TargetType:  "issue",
		Message:     "a designer proposed a solution for your report",
	})
	return proposal, nil
}

func (s *ProposalService) releaseSlot(ctx context.Context, issueID string) {
	err := s.converge(ctx, func(ctx context.Context) error {
		return s.deps.Issues.AdjustCounter(ctx, issueID, models.IssueProposals, -1)
	})
	if err != nil {
		s.logger.Errorj(log.JSON{"msg": "proposal count left high", "issue": issueID, "error": err.Error()})
	}
}

// List returns the issue's proposals, newest first
func (s *ProposalService) List(ctx context.Context, issueID string) ([]models.DesignProposal, error) {
	if _, err := s.issues.load(ctx, issueID); err != nil {
		return nil, err
	}
	proposals, err := s.deps.Proposals.GetProposalsByIssueID(ctx, issueID)
	if err != nil {
		return nil, apperrors.Internal("list proposals", err)
	}
	return proposals, nil
}

// BackfillReport summarises a legacy migration run
type BackfillReport struct {
	Issues   int `json:"issues"`
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
}

// BackfillLegacySolutions moves inline designer solutions into the proposals
// collection. The first solution per designer wins, later ones are dropped
// as duplicates. Running it again finds nothing to do.
func (s *ProposalService) BackfillLegacySolutions(ctx context.Context) (BackfillReport, error) {
	var report BackfillReport
	issues, err := s.deps.Issues.ListIssuesWithLegacySolutions(ctx)
	if err != nil {
		return report, apperrors.Internal("list legacy issues", err)
	}
	for _, issue := range issues {
		issueID := issue.ID.Hex()
		for _, legacy := range issue.DesignerSolutions {
			createdAt := legacy.CreatedAt
			if createdAt.IsZero() {
				createdAt = issue.CreatedAt
			}
			err := s.deps.Proposals.CreateProposal(ctx, &models.DesignProposal{
				IssueID:        issue.ID,
				DesignerID:     legacy.DesignerID,
				Content:        legacy.Content,
				Images:         legacy.Images,
				CostAdjustment: legacy.CostAdjustment,
				Migrated:       true,
				CreatedAt:      createdAt,
			})
			switch {
			case err == nil:
				report.Migrated++
			case errors.Is(err, repositories.ErrDuplicate):
				report.Skipped++
			default:
				return report, apperrors.Internal("migrate proposal", err)
			}
		}

		count, err := s.deps.Proposals.CountProposalsByIssueID(ctx, issueID)
		if err != nil {
			return report, apperrors.Internal("count proposals", err)
		}
		if err := s.deps.Issues.SetCounter(ctx, issueID, models.IssueProposals, count); err != nil {
			return report, apperrors.Internal("set proposal count", err)
		}
		if err := s.deps.Issues.ClearLegacySolutions(ctx, issueID); err != nil {
			return report, apperrors.Internal("clear legacy solutions", err)
		}
		report.Issues++
	}
	s.logger.Infoj(log.JSON{"msg": "legacy solutions backfilled", "issues": report.Issues,
		"migrated": report.Migrated, "skipped": report.Skipped})
	return report, nil
}
