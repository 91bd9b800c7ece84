package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/anonto42/barrierfree/backend/internal/repositories"
	"github.com/labstack/gommon/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// maxStageAttempts bounds optimistic retries when unrelated writes bump the version
const maxStageAttempts = 5

// staleClaimAge is how long a claim may point at a missing project before
// lifecycle reconciliation releases it
const staleClaimAge = 5 * time.Minute

// ProjectService creates and advances construction projects
type ProjectService struct {
	base
	guard  *Guard
	issues *IssueService
}

// Create claims a pending issue for the calling contractor and opens its
// three-stage pipeline. The claim is written first; if the project cannot be
// stored the claim is released again.
func (s *ProjectService) Create(ctx context.Context, caller *Caller, issueID string, req models.CreateProjectRequest) (*models.ConstructionProject, error) {
	if err := s.guard.Authorize(caller, OpCreateProject, 0); err != nil {
		return nil, err
	}
	title, contact := strings.TrimSpace(req.Title), strings.TrimSpace(req.Contact)
	if title == "" || contact == "" {
		return nil, apperrors.Validation("title and contact are required")
	}
	issue, err := s.issues.load(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.Status != models.IssuePending || issue.ConstructionProjectID != nil {
		s.deps.Metrics.Conflict(ctx, "issue.claim")
		return nil, apperrors.StateConflict("issue has already been claimed")
	}

	projectID := primitive.NewObjectID()
	if err := s.issues.claim(ctx, issueID, projectID); err != nil {
		return nil, err
	}

	now := time.Now()
	project := &models.ConstructionProject{
		ID:           projectID,
		IssueID:      issue.ID,
		ContractorID: caller.ID(),
		Title:        title,
		Contact:      contact,
		Stages:       models.NewStages(now),
		CurrentStage: 0,
		Status:       models.ProjectPreparing,
		StartedAt:    now,
	}
	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.ConvergeTimeout)
	defer cancel()
	if err := s.deps.Projects.CreateProject(insertCtx, project); err != nil {
		if releaseErr := s.issues.releaseClaim(ctx, issueID, projectID); releaseErr != nil {
			s.logger.Errorj(log.JSON{"msg": "claim not released", "issue": issueID, "project": projectID.Hex(), "error": releaseErr.Error()})
		}
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.StateConflict("issue has already been claimed")
		}
		return nil, apperrors.Internal("create project", err)
	}

	s.deps.Metrics.Transition(ctx, "project", string(models.ProjectPreparing))
	s.notify(ctx, models.Notification{
		Type:        models.NotifyClaimed,
		ActorID:     caller.ID(),
		RecipientID: issue.OwnerID,
		TargetID:    issueID,
		TargetType:  "issue",
		Message:     "a contractor has taken on your report",
	})
	return project, nil
}

// AdvanceStage completes stage i of the pipeline, starts stage i+1 and moves
// the issue forward through the shared transition table.
func (s *ProjectService) AdvanceStage(ctx context.Context, caller *Caller, projectID string, i int, req models.AdvanceStageRequest) (*models.ConstructionProject, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(caller, OpAdvanceStage, project.ContractorID); err != nil {
		return nil, err
	}
	if i < 0 || i >= models.StageCount {
		return nil, apperrors.Validation("stage index must be between 0 and %d", models.StageCount-1)
	}
	if req.Cost < 0 {
		return nil, apperrors.Validation("cost cannot be negative")
	}

	var next *models.ConstructionProject
	for attempt := 0; ; attempt++ {
		if err := stageAdvanceable(project, i); err != nil {
			s.deps.Metrics.Conflict(ctx, "project.advance")
			return nil, err
		}
		next = completeStage(project, i, req, time.Now())
		ok, err := s.deps.Projects.ReplaceStages(ctx, next, project.Version)
		if err != nil {
			return nil, apperrors.Internal("advance stage", err)
		}
		if ok {
			break
		}
		if attempt+1 == maxStageAttempts {
			s.deps.Metrics.Conflict(ctx, "project.advance")
			return nil, apperrors.StateConflict("project is being updated concurrently, please retry")
		}
		if project, err = s.load(ctx, projectID); err != nil {
			return nil, err
		}
	}
	s.deps.Metrics.Transition(ctx, "project", string(next.Status))

	issueID := next.IssueID.Hex()
	target := models.StageTransitions[i].IssueStatus
	if err := s.syncIssue(ctx, issueID, target); err != nil {
		s.logger.Errorj(log.JSON{"msg": "issue status behind project", "issue": issueID, "project": projectID, "target": target, "error": err.Error()})
	}

	if issue, err := s.deps.Issues.GetIssueByID(ctx, issueID); err == nil {
		s.notify(ctx, models.Notification{
			Type:        models.NotifyStage,
			ActorID:     caller.ID(),
			RecipientID: issue.OwnerID,
			TargetID:    projectID,
			TargetType:  "project",
			Message:     fmt.Sprintf("the %s stage of your report's project is complete", models.StageNames[i]),
		})
	}
	return next, nil
}

// stageAdvanceable reports why stage i cannot be completed now, if it cannot
func stageAdvanceable(p *models.ConstructionProject, i int) error {
	if p.Status == models.ProjectCompleted || p.Completion != nil {
		return apperrors.StateConflict("project is already completed")
	}
	if i >= len(p.Stages) {
		return apperrors.Validation("stage %d does not exist", i)
	}
	switch p.Stages[i].Status {
	case models.StageCompleted:
		return apperrors.StateConflict("stage %d is already completed", i)
	case models.StagePending:
		return apperrors.StateConflict("stage %d has not started yet", i)
	}
	return nil
}

// completeStage returns a copy of p with stage i completed and the pipeline
// position recomputed. p is not modified.
func completeStage(p *models.ConstructionProject, i int, req models.AdvanceStageRequest, now time.Time) *models.ConstructionProject {
	next := *p
	next.Stages = append([]models.Stage(nil), p.Stages...)

	stage := &next.Stages[i]
	stage.Status = models.StageCompleted
	stage.CompletedAt = &now
	stage.Cost = req.Cost
	if len(req.Images) > 0 {
		stage.Images = req.Images
	}
	if req.Description != "" {
		stage.Description = req.Description
	}

	next.CurrentStage = i
	if i+1 < len(next.Stages) {
		if following := &next.Stages[i+1]; following.Status == models.StagePending {
			following.Status = models.StageInProgress
			following.StartedAt = &now
		}
		next.CurrentStage = i + 1
	}

	t := models.StageTransitions[i]
	next.Status = t.ProjectStatus
	next.AcceptanceComplete = next.AcceptanceComplete || t.AcceptanceComplete
	next.ActualCost = models.TotalCost(next.Stages)
	return &next
}

// syncIssue moves the issue forward to target, never backwards, retrying
// until the write lands or the issue is already there
func (s *ProjectService) syncIssue(ctx context.Context, issueID string, target models.IssueStatus) error {
	return s.converge(ctx, func(ctx context.Context) error {
		issue, err := s.deps.Issues.GetIssueByID(ctx, issueID)
		if err != nil {
			return storeErr("load issue", "issue", err)
		}
		if !issue.Status.Before(target) {
			return nil
		}
		ok, err := s.deps.Issues.AdvanceStatus(ctx, issueID, issue.Status, target)
		if err != nil {
			return err
		}
		if !ok {
			return errRetry
		}
		s.deps.Metrics.Transition(ctx, "issue", string(target))
		return nil
	})
}

// Get returns a project by ID
func (s *ProjectService) Get(ctx context.Context, projectID string) (*models.ConstructionProject, error) {
	return s.load(ctx, projectID)
}

// GetByIssue returns the project bound to an issue
func (s *ProjectService) GetByIssue(ctx context.Context, issueID string) (*models.ConstructionProject, error) {
	project, err := s.deps.Projects.GetProjectByIssueID(ctx, issueID)
	if err != nil {
		return nil, storeErr("load project", "project", err)
	}
	return project, nil
}

func (s *ProjectService) load(ctx context.Context, projectID string) (*models.ConstructionProject, error) {
	project, err := s.deps.Projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, storeErr("load project", "project", err)
	}
	return project, nil
}

// Resync brings the issue in line with its project: a missing completion
// mirror is copied over and a lagging issue status is advanced. It reports
// whether anything was repaired.
func (s *ProjectService) Resync(ctx context.Context, projectID string) (bool, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return false, err
	}
	issueID := project.IssueID.Hex()
	issue, err := s.issues.load(ctx, issueID)
	if err != nil {
		return false, apperrors.Integrity("project %s references missing issue %s", projectID, issueID)
	}

	repaired := false
	switch {
	case issue.Completion != nil && project.Completion == nil:
		ok, err := s.deps.Projects.MirrorCompletion(ctx, projectID, *issue.Completion, issue.Completion.Timestamp)
		if err != nil {
			return false, apperrors.Internal("mirror completion", err)
		}
		repaired = ok
	case issue.Completion == nil && project.Completion != nil:
		return false, apperrors.Integrity("project %s is completed but issue %s is not", projectID, issueID)
	}

	target := models.IssueStatusFor(project)
	if target == models.IssueCompleted {
		return repaired, nil
	}
	if target.Before(issue.Status) && issue.Status != models.IssueCompleted {
		return repaired, apperrors.Integrity("issue %s is %s but project %s implies %s", issueID, issue.Status, projectID, target)
	}
	if issue.Status.Before(target) {
		if err := s.syncIssue(ctx, issueID, target); err != nil {
			return repaired, err
		}
		repaired = true
	}
	return repaired, nil
}

// LifecycleReport summarises a ResyncAll run
type LifecycleReport struct {
	Projects  int `json:"projects"`
	Repaired  int `json:"repaired"`
	Released  int `json:"released"`
	Malformed int `json:"malformed"`
}

// ResyncAll resyncs every project and releases stale claims whose project
// was never stored.
func (s *ProjectService) ResyncAll(ctx context.Context) (LifecycleReport, error) {
	var report LifecycleReport
	ids, err := s.deps.Projects.ListProjectIDs(ctx)
	if err != nil {
		return report, apperrors.Internal("list projects", err)
	}
	for _, id := range ids {
		report.Projects++
		repaired, err := s.Resync(ctx, id)
		if errors.Is(err, apperrors.ErrDataIntegrity) {
			report.Malformed++
			s.logger.Errorj(log.JSON{"msg": "lifecycle drift", "project": id, "error": err.Error()})
			continue
		}
		if err != nil {
			return report, err
		}
		if repaired {
			report.Repaired++
		}
	}

	released, err := s.releaseStaleClaims(ctx)
	report.Released = released
	return report, err
}

// releaseStaleClaims walks processing issues. Released issues leave the
// filter, so the window only advances past the ones that stayed.
func (s *ProjectService) releaseStaleClaims(ctx context.Context) (int, error) {
	released := 0
	filter := models.IssueFilter{Status: models.IssueProcessing}
	var skip int64
	for {
		issues, err := s.deps.Issues.ListIssues(ctx, filter, skip, maxPageSize)
		if err != nil {
			return released, apperrors.Internal("list claimed issues", err)
		}
		kept := int64(len(issues))
		for _, issue := range issues {
			if issue.ConstructionProjectID == nil || time.Since(issue.UpdatedAt) < staleClaimAge {
				continue
			}
			_, err := s.deps.Projects.GetProjectByID(ctx, issue.ConstructionProjectID.Hex())
			if !errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			ok, err := s.deps.Issues.ReleaseClaim(ctx, issue.ID.Hex(), *issue.ConstructionProjectID)
			if err != nil {
				return released, apperrors.Internal("release claim", err)
			}
			if ok {
				released++
				kept--
				s.logger.Warnj(log.JSON{"msg": "stale claim released", "issue": issue.ID.Hex()})
			}
		}
		if len(issues) < maxPageSize {
			return released, nil
		}
		skip += kept
	}
}
