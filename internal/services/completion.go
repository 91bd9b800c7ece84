package services

import (
	"context"
	"time"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/labstack/gommon/log"
)

// CompletionService performs the terminal transition of an issue
type CompletionService struct {
	base
	guard    *Guard
	issues   *IssueService
	projects *ProjectService
}

// Confirm accepts the finished work. The issue is completed and published as
// a case in one conditional write; the record is then mirrored onto the
// project, retried until it lands.
func (s *CompletionService) Confirm(ctx context.Context, caller *Caller, issueID string, req models.ConfirmCompletionRequest) (*models.Completion, error) {
	issue, err := s.issues.load(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(caller, OpConfirmCompletion, issue.OwnerID); err != nil {
		return nil, err
	}
	if err := completable(issue.Status); err != nil {
		s.deps.Metrics.Conflict(ctx, "issue.complete")
		return nil, err
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, apperrors.Validation("rating must be between 1 and 5")
	}
	if err := s.moderate(ctx, req.Feedback, req.AfterImages); err != nil {
		return nil, err
	}

	completion := models.Completion{
		ConfirmedBy:     caller.ID(),
		ConfirmedByRole: caller.Role(),
		Timestamp:       time.Now(),
		Images:          req.AfterImages,
		Feedback:        req.Feedback,
		Rating:          req.Rating,
	}
	ok, err := s.deps.Issues.Complete(ctx, issueID, completion)
	if err != nil {
		return nil, storeErr("complete issue", "issue", err)
	}
	if !ok {
		s.deps.Metrics.Conflict(ctx, "issue.complete")
		current, err := s.issues.load(ctx, issueID)
		if err != nil {
			return nil, err
		}
		if err := completable(current.Status); err != nil {
			return nil, err
		}
		return nil, apperrors.StateConflict("already confirmed")
	}
	s.deps.Metrics.Transition(ctx, "issue", string(models.IssueCompleted))

	if issue.ConstructionProjectID != nil {
		s.mirror(ctx, issue.ConstructionProjectID.Hex(), completion)
	}
	return &completion, nil
}

func completable(status models.IssueStatus) error {
	switch status {
	case models.IssueInProgress:
		return nil
	case models.IssueCompleted:
		return apperrors.StateConflict("already confirmed")
	}
	return apperrors.StateConflict("construction not started")
}

func (s *CompletionService) mirror(ctx context.Context, projectID string, completion models.Completion) {
	err := s.converge(ctx, func(ctx context.Context) error {
		_, err := s.deps.Projects.MirrorCompletion(ctx, projectID, completion, completion.Timestamp)
		if err != nil {
			return storeErr("mirror completion", "project", err)
		}
		return nil
	})
	if err != nil {
		// lifecycle reconciliation copies it over later
		s.logger.Errorj(log.JSON{"msg": "completion not mirrored", "project": projectID, "error": err.Error()})
		return
	}
	s.deps.Metrics.Transition(ctx, "project", string(models.ProjectCompleted))

	project, err := s.projects.load(ctx, projectID)
	if err != nil {
		return
	}
	s.notify(ctx, models.Notification{
		Type:        models.NotifyCompleted,
		ActorID:     completion.ConfirmedBy,
		RecipientID: project.ContractorID,
		TargetID:    projectID,
		TargetType:  "project",
		Message:     "the reporter confirmed your work as complete",
	})
}
