package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/anonto42/barrierfree/backend/internal/repositories"
	"github.com/labstack/gommon/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// IssueService owns the issue aggregate and its primary state machine
type IssueService struct {
	base
	guard *Guard
	stats *StatsEngine
}

// IssueDetail is an issue with resolved media and its project, if any
type IssueDetail struct {
	*models.Issue
	ImageURLs []string                    `json:"image_urls,omitempty"`
	Project   *models.ConstructionProject `json:"project,omitempty"`
}

// Report creates a pending issue. Content and images are moderated before
// anything is written; the diagnosis is advisory and never blocks the report.
func (s *IssueService) Report(ctx context.Context, caller *Caller, req models.ReportIssueRequest) (*models.Issue, error) {
	if err := s.guard.Authorize(caller, OpReportIssue, 0); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperrors.Validation("content is required")
	}
	if err := s.moderate(ctx, content, req.ImageRefs); err != nil {
		return nil, err
	}

	issue := &models.Issue{
		OwnerID:   caller.ID(),
		Content:   content,
		ImageRefs: req.ImageRefs,
		Location:  req.Location,
		Diagnosis: s.diagnose(ctx, req.ImageRefs, &req.Location),
	}
	if err := s.deps.Issues.CreateIssue(ctx, issue); err != nil {
		return nil, apperrors.Internal("create issue", err)
	}
	s.deps.Metrics.Transition(ctx, "issue", string(models.IssuePending))
	return issue, nil
}

func (s *IssueService) diagnose(ctx context.Context, imageRefs []string, location *models.Location) string {
	if len(imageRefs) == 0 {
		return ""
	}
	url, err := s.deps.Media.ResolveURL(ctx, imageRefs[0])
	if err == nil {
		var diagnosis string
		diagnosis, err = s.deps.Analyzer.Diagnose(ctx, url, location)
		if err == nil {
			return diagnosis
		}
	}
	s.logger.Warnj(log.JSON{"msg": "diagnosis skipped", "error": err.Error()})
	return ""
}

// Verify marks the issue as confirmed by a professional. Verifying twice is a no-op.
func (s *IssueService) Verify(ctx context.Context, caller *Caller, issueID string) (*models.Issue, error) {
	if err := s.guard.Authorize(caller, OpVerifyIssue, 0); err != nil {
		return nil, err
	}
	issue, err := s.load(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.Verified {
		return issue, nil
	}
	if issue.Status == models.IssueCompleted {
		return nil, apperrors.StateConflict("issue is already completed")
	}

	ok, err := s.deps.Issues.MarkVerified(ctx, issueID, caller.ID(), time.Now())
	if err != nil {
		return nil, storeErr("verify issue", "issue", err)
	}
	issue, err = s.load(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if !ok && !issue.Verified {
		// completed between the read and the write
		return nil, apperrors.StateConflict("issue is already completed")
	}
	return issue, nil
}

// claim reserves a pending issue for projectID
func (s *IssueService) claim(ctx context.Context, issueID string, projectID primitive.ObjectID) error {
	ok, err := s.deps.Issues.Claim(ctx, issueID, projectID)
	if err != nil {
		return storeErr("claim issue", "issue", err)
	}
	if ok {
		s.deps.Metrics.Transition(ctx, "issue", string(models.IssueProcessing))
		return nil
	}
	if _, err := s.load(ctx, issueID); err != nil {
		return err
	}
	s.deps.Metrics.Conflict(ctx, "issue.claim")
	return apperrors.StateConflict("issue has already been claimed")
}

// releaseClaim undoes a claim whose project was never stored
func (s *IssueService) releaseClaim(ctx context.Context, issueID string, projectID primitive.ObjectID) error {
	return s.converge(ctx, func(ctx context.Context) error {
		_, err := s.deps.Issues.ReleaseClaim(ctx, issueID, projectID)
		return err
	})
}

// Delete removes a pending issue owned by the caller, then its discussion,
// reactions and proposals.
func (s *IssueService) Delete(ctx context.Context, caller *Caller, issueID string) error {
	issue, err := s.load(ctx, issueID)
	if err != nil {
		return err
	}
	if err := s.guard.Authorize(caller, OpDeleteIssue, issue.OwnerID); err != nil {
		return err
	}
	issueID = issue.ID.Hex()
	if issue.Status != models.IssuePending || issue.ConstructionProjectID != nil {
		return apperrors.StateConflict("issue has been claimed and can no longer be deleted")
	}
	deleted, err := s.deps.Issues.DeleteUnclaimed(ctx, issueID, caller.ID())
	if err != nil {
		return storeErr("delete issue", "issue", err)
	}
	if !deleted {
		if _, err := s.load(ctx, issueID); err != nil {
			return err
		}
		s.deps.Metrics.Conflict(ctx, "issue.delete")
		return apperrors.StateConflict("issue has been claimed and can no longer be deleted")
	}

	// the issue is gone; dependents are removed until the cascade converges
	var likes int64
	err = s.converge(ctx, func(ctx context.Context) error {
		if _, err := s.deps.Comments.DeleteCommentsByIssueID(ctx, issueID); err != nil {
			return err
		}
		n, err := s.deps.Likes.DeleteLikesByIssueID(ctx, issueID)
		if err != nil {
			return err
		}
		likes += n
		_, err = s.deps.Proposals.DeleteProposalsByIssueID(ctx, issueID)
		return err
	})
	if err != nil {
		s.logger.Errorj(log.JSON{"msg": "issue cascade incomplete", "issue": issueID, "error": err.Error()})
		return apperrors.Internal("delete issue dependents", err)
	}
	if likes > 0 {
		s.stats.AdjustUser(ctx, issue.OwnerID, models.StatLikes, -likes)
	}
	return nil
}

// Get returns an issue with resolved image URLs and its project
func (s *IssueService) Get(ctx context.Context, issueID string) (*IssueDetail, error) {
	issue, err := s.load(ctx, issueID)
	if err != nil {
		return nil, err
	}
	detail := &IssueDetail{Issue: issue, ImageURLs: s.resolveAll(ctx, issue.ImageRefs)}
	if issue.ConstructionProjectID != nil {
		project, err := s.deps.Projects.GetProjectByIssueID(ctx, issueID)
		switch {
		case err == nil:
			detail.Project = project
		case !errors.Is(err, repositories.ErrNotFound):
			return nil, apperrors.Internal("load project", err)
		}
	}
	return detail, nil
}

// resolveAll maps references to URLs, keeping the reference when the blob
// store cannot resolve it
func (s *IssueService) resolveAll(ctx context.Context, refs []string) []string {
	urls := make([]string, 0, len(refs))
	for _, ref := range refs {
		url, err := s.deps.Media.ResolveURL(ctx, ref)
		if err != nil {
			s.logger.Warnj(log.JSON{"msg": "media unresolved", "ref": ref, "error": err.Error()})
			url = ref
		}
		urls = append(urls, url)
	}
	return urls
}

// List returns issues newest first
func (s *IssueService) List(ctx context.Context, filter models.IssueFilter, page, limit int) ([]models.Issue, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.Validation("unknown status %q", filter.Status)
	}
	skip, size := pageWindow(page, limit)
	issues, err := s.deps.Issues.ListIssues(ctx, filter, skip, size)
	if err != nil {
		return nil, apperrors.Internal("list issues", err)
	}
	return issues, nil
}

// Cases lists completed issues published to the case library
func (s *IssueService) Cases(ctx context.Context, page, limit int) ([]models.Issue, error) {
	return s.List(ctx, models.IssueFilter{CasesOnly: true}, page, limit)
}

func (s *IssueService) load(ctx context.Context, issueID string) (*models.Issue, error) {
	issue, err := s.deps.Issues.GetIssueByID(ctx, issueID)
	if err != nil {
		return nil, storeErr("load issue", "issue", err)
	}
	return issue, nil
}

func pageWindow(page, limit int) (skip, size int64) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return int64((page - 1) * limit), int64(limit)
}
