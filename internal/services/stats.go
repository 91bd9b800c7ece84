package services

import (
	"context"
	"errors"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/labstack/gommon/log"
)

// StatsEngine maintains the derived counters. Increments are single atomic
// updates clamped at zero; reconciliation recounts the source rows and
// overwrites whatever is stored.
type StatsEngine struct {
	base
	guard *Guard
}

// AdjustUser applies delta to one of the user's counters. A failed
// adjustment is logged and left for reconciliation.
func (e *StatsEngine) AdjustUser(ctx context.Context, userID uint, field models.StatField, delta int64) {
	if delta == 0 {
		return
	}
	if err := e.deps.Users.AdjustStat(ctx, userID, field, delta); err != nil {
		e.logger.Warnj(log.JSON{"msg": "user counter not adjusted", "user": userID, "field": field, "delta": delta, "error": err.Error()})
	}
}

// AdjustIssue applies delta to one of the issue's counters
func (e *StatsEngine) AdjustIssue(ctx context.Context, issueID string, counter models.IssueCounter, delta int64) {
	if delta == 0 {
		return
	}
	if err := e.deps.Issues.AdjustCounter(ctx, issueID, counter, delta); err != nil {
		e.logger.Warnj(log.JSON{"msg": "issue counter not adjusted", "issue": issueID, "counter": counter, "delta": delta, "error": err.Error()})
	}
}

// ReconcileUser recounts follows in both directions and likes received on
// the user's issues, and rewrites the mutual flag on the user's edges. Self-follow edges are left out of the counts and
// reported as a data integrity error after the counters are written.
func (e *StatsEngine) ReconcileUser(ctx context.Context, userID uint) (models.UserStats, error) {
	user, err := e.deps.Users.GetUserByID(ctx, userID)
	if err != nil {
		return models.UserStats{}, storeErr("load user", "user", err)
	}

	var stats models.UserStats
	if stats.FollowingCount, err = e.deps.Follows.GetFollowingCount(ctx, userID); err != nil {
		return stats, apperrors.Internal("count following", err)
	}
	if stats.FollowersCount, err = e.deps.Follows.GetFollowersCount(ctx, userID); err != nil {
		return stats, apperrors.Internal("count followers", err)
	}
	issueIDs, err := e.deps.Issues.ListIssueIDsByOwner(ctx, userID)
	if err != nil {
		return stats, apperrors.Internal("list user issues", err)
	}
	if len(issueIDs) > 0 {
		if stats.LikesCount, err = e.deps.Likes.GetLikesCountByIssueIDs(ctx, issueIDs); err != nil {
			return stats, apperrors.Internal("count likes", err)
		}
	}
	if err := e.deps.Users.SetStats(ctx, userID, stats); err != nil {
		return stats, apperrors.Internal("write user stats", err)
	}
	e.deps.Metrics.Drift(ctx, "user", userDrift(user.Stats, stats))

	mutual, err := e.deps.Follows.SyncMutual(ctx, userID)
	if err != nil {
		return stats, apperrors.Internal("sync mutual follows", err)
	}
	e.deps.Metrics.Drift(ctx, "follow", mutual)

	selfEdges, err := e.deps.Follows.CountSelfFollows(ctx, userID)
	if err != nil {
		return stats, apperrors.Internal("count self follows", err)
	}
	if selfEdges > 0 {
		return stats, apperrors.Integrity("user %d has %d self-follow edges", userID, selfEdges)
	}
	return stats, nil
}

// IssueCounts are the recomputed counters of one issue
type IssueCounts struct {
	Likes     int64 `json:"likes_count"`
	Comments  int64 `json:"comments_count"`
	Proposals int64 `json:"design_proposal_count"`
}

// ReconcileIssue recounts likes, comments and proposals of one issue
func (e *StatsEngine) ReconcileIssue(ctx context.Context, issueID string) (IssueCounts, error) {
	var counts IssueCounts
	issue, err := e.deps.Issues.GetIssueByID(ctx, issueID)
	if err != nil {
		return counts, storeErr("load issue", "issue", err)
	}
	if counts.Likes, err = e.deps.Likes.GetLikesCountByIssueID(ctx, issueID); err != nil {
		return counts, apperrors.Internal("count likes", err)
	}
	if counts.Comments, err = e.deps.Comments.CountCommentsByIssueID(ctx, issueID); err != nil {
		return counts, apperrors.Internal("count comments", err)
	}
	if counts.Proposals, err = e.deps.Proposals.CountProposalsByIssueID(ctx, issueID); err != nil {
		return counts, apperrors.Internal("count proposals", err)
	}

	for counter, value := range map[models.IssueCounter]int64{
		models.IssueLikes:     counts.Likes,
		models.IssueComments:  counts.Comments,
		models.IssueProposals: counts.Proposals,
	} {
		if err := e.deps.Issues.SetCounter(ctx, issueID, counter, value); err != nil {
			return counts, apperrors.Internal("write issue counter", err)
		}
	}
	e.deps.Metrics.Drift(ctx, "issue",
		abs(issue.LikesCount-counts.Likes)+abs(issue.CommentsCount-counts.Comments)+abs(issue.DesignProposalCount-counts.Proposals))
	return counts, nil
}

// ReconcileReport summarises a reconciliation run
type ReconcileReport struct {
	Users     int               `json:"users"`
	Issues    int               `json:"issues"`
	Malformed int               `json:"malformed"`
	Stats     *models.UserStats `json:"stats,omitempty"`
}

// ReconcileAll recounts every user and every issue. Integrity problems are
// logged and counted; the run carries on past them.
func (e *StatsEngine) ReconcileAll(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	userIDs, err := e.deps.Users.ListUserIDs(ctx)
	if err != nil {
		return report, apperrors.Internal("list users", err)
	}
	for _, id := range userIDs {
		_, err := e.ReconcileUser(ctx, id)
		if err := e.tally(&report, err, log.JSON{"user": id}); err != nil {
			return report, err
		}
		report.Users++
	}

	for page := 1; ; page++ {
		skip, size := pageWindow(page, maxPageSize)
		issues, err := e.deps.Issues.ListIssues(ctx, models.IssueFilter{}, skip, size)
		if err != nil {
			return report, apperrors.Internal("list issues", err)
		}
		for _, issue := range issues {
			_, err := e.ReconcileIssue(ctx, issue.ID.Hex())
			if err := e.tally(&report, err, log.JSON{"issue": issue.ID.Hex()}); err != nil {
				return report, err
			}
			report.Issues++
		}
		if int64(len(issues)) < size {
			break
		}
	}
	e.logger.Infoj(log.JSON{"msg": "reconciliation finished", "users": report.Users, "issues": report.Issues, "malformed": report.Malformed})
	return report, nil
}

// tally swallows integrity errors into the report and returns anything else
func (e *StatsEngine) tally(report *ReconcileReport, err error, fields log.JSON) error {
	if !errors.Is(err, apperrors.ErrDataIntegrity) {
		return err
	}
	report.Malformed++
	fields["msg"] = "malformed source rows"
	fields["error"] = err.Error()
	e.logger.Errorj(fields)
	return nil
}

// Reconcile is the guarded entry point. With a userID it recounts that user
// and the issues they reported, otherwise everything.
func (e *StatsEngine) Reconcile(ctx context.Context, caller *Caller, userID uint) (ReconcileReport, error) {
	if err := e.guard.Authorize(caller, OpReconcileStats, 0); err != nil {
		return ReconcileReport{}, err
	}
	if userID == 0 {
		return e.ReconcileAll(ctx)
	}

	var report ReconcileReport
	stats, err := e.ReconcileUser(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrDataIntegrity) {
			e.logger.Errorj(log.JSON{"msg": "malformed source rows", "user": userID, "error": err.Error()})
		}
		return report, err
	}
	report.Users, report.Stats = 1, &stats

	issueIDs, err := e.deps.Issues.ListIssueIDsByOwner(ctx, userID)
	if err != nil {
		return report, apperrors.Internal("list user issues", err)
	}
	for _, id := range issueIDs {
		if _, err := e.ReconcileIssue(ctx, id); err != nil {
			return report, err
		}
		report.Issues++
	}
	return report, nil
}

func userDrift(before, after models.UserStats) int64 {
	return abs(before.FollowingCount-after.FollowingCount) +
		abs(before.FollowersCount-after.FollowersCount) +
		abs(before.LikesCount-after.LikesCount)
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
