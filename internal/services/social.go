package services

import (
	"context"
	"strings"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/models"
)

// SocialService handles follows, reactions, comments and profiles. Every
// change to a source row triggers the matching counter adjustment.
type SocialService struct {
	base
	guard *Guard
	stats *StatsEngine
}

// Follow creates the edge caller→targetID. Following twice is a no-op.
func (s *SocialService) Follow(ctx context.Context, caller *Caller, targetID uint) error {
	if err := s.checkFollowTarget(ctx, caller, targetID); err != nil {
		return err
	}
	created, err := s.deps.Follows.CreateFollow(ctx, caller.ID(), targetID)
	if err != nil {
		return apperrors.Internal("follow", err)
	}
	if !created {
		return nil
	}
	s.stats.AdjustUser(ctx, caller.ID(), models.StatFollowing, 1)
	s.stats.AdjustUser(ctx, targetID, models.StatFollowers, 1)
	s.notify(ctx, models.Notification{
		Type:        models.NotifyFollow,
		ActorID:     caller.ID(),
		RecipientID: targetID,
		TargetType:  "user",
		Message:     caller.User.DisplayName + " started following you",
	})
	return nil
}

// Unfollow removes the edge. Unfollowing someone not followed is a no-op.
func (s *SocialService) Unfollow(ctx context.Context, caller *Caller, targetID uint) error {
	if err := s.checkFollowTarget(ctx, caller, targetID); err != nil {
		return err
	}
	deleted, err := s.deps.Follows.DeleteFollow(ctx, caller.ID(), targetID)
	if err != nil {
		return apperrors.Internal("unfollow", err)
	}
	if deleted {
		s.stats.AdjustUser(ctx, caller.ID(), models.StatFollowing, -1)
		s.stats.AdjustUser(ctx, targetID, models.StatFollowers, -1)
	}
	return nil
}

func (s *SocialService) checkFollowTarget(ctx context.Context, caller *Caller, targetID uint) error {
	if caller == nil || caller.User == nil {
		return apperrors.Permission("authentication required")
	}
	if caller.ID() == targetID {
		return apperrors.Validation("you cannot follow yourself")
	}
	if _, err := s.deps.Users.GetUserByID(ctx, targetID); err != nil {
		return storeErr("load user", "user", err)
	}
	return nil
}

// Followers lists the users following userID
func (s *SocialService) Followers(ctx context.Context, userID uint) ([]models.UserCompact, error) {
	users, err := s.deps.Follows.GetFollowers(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("list followers", err)
	}
	return compact(users), nil
}

// Following lists the users userID follows
func (s *SocialService) Following(ctx context.Context, userID uint) ([]models.UserCompact, error) {
	users, err := s.deps.Follows.GetFollowing(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("list following", err)
	}
	return compact(users), nil
}

func compact(users []models.User) []models.UserCompact {
	out := make([]models.UserCompact, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToCompact())
	}
	return out
}

// LikeIssue adds the caller's reaction to an issue. Liking twice is a no-op.
func (s *SocialService) LikeIssue(ctx context.Context, caller *Caller, issueID string) error {
	issue, err := s.reactable(ctx, caller, issueID)
	if err != nil {
		return err
	}
	issueID = issue.ID.Hex()
	created, err := s.deps.Likes.CreateLike(ctx, issueID, caller.ID())
	if err != nil {
		return apperrors.Internal("like issue", err)
	}
	if created {
		s.stats.AdjustIssue(ctx, issueID, models.IssueLikes, 1)
		s.stats.AdjustUser(ctx, issue.OwnerID, models.StatLikes, 1)
	}
	return nil
}

// UnlikeIssue removes the caller's reaction, if any
func (s *SocialService) UnlikeIssue(ctx context.Context, caller *Caller, issueID string) error {
	issue, err := s.reactable(ctx, caller, issueID)
	if err != nil {
		return err
	}
	issueID = issue.ID.Hex()
	deleted, err := s.deps.Likes.DeleteLike(ctx, issueID, caller.ID())
	if err != nil {
		return apperrors.Internal("unlike issue", err)
	}
	if deleted {
		s.stats.AdjustIssue(ctx, issueID, models.IssueLikes, -1)
		s.stats.AdjustUser(ctx, issue.OwnerID, models.StatLikes, -1)
	}
	return nil
}

func (s *SocialService) reactable(ctx context.Context, caller *Caller, issueID string) (*models.Issue, error) {
	if caller == nil || caller.User == nil {
		return nil, apperrors.Permission("authentication required")
	}
	issue, err := s.deps.Issues.GetIssueByID(ctx, issueID)
	if err != nil {
		return nil, storeErr("load issue", "issue", err)
	}
	return issue, nil
}

// Comment adds a moderated comment, optionally as a reply within the same issue
func (s *SocialService) Comment(ctx context.Context, caller *Caller, issueID string, req models.CreateCommentRequest) (*models.Comment, error) {
	issue, err := s.reactable(ctx, caller, issueID)
	if err != nil {
		return nil, err
	}
	issueID = issue.ID.Hex()
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperrors.Validation("content is required")
	}
	if req.ParentID != nil {
		parent, err := s.deps.Comments.GetCommentByID(ctx, *req.ParentID)
		if err != nil {
			return nil, storeErr("load parent comment", "parent comment", err)
		}
		if parent.IssueID != issueID {
			return nil, apperrors.Validation("parent comment belongs to another issue")
		}
	}
	if err := s.moderate(ctx, content, nil); err != nil {
		return nil, err
	}

	comment := &models.Comment{IssueID: issueID, UserID: caller.ID(), ParentID: req.ParentID, Content: content}
	if err := s.deps.Comments.CreateComment(ctx, comment); err != nil {
		return nil, apperrors.Internal("create comment", err)
	}
	s.stats.AdjustIssue(ctx, issueID, models.IssueComments, 1)
	return comment, nil
}

// ListComments returns an issue's comments oldest first
func (s *SocialService) ListComments(ctx context.Context, issueID string) ([]models.Comment, error) {
	if _, err := s.deps.Issues.GetIssueByID(ctx, issueID); err != nil {
		return nil, storeErr("load issue", "issue", err)
	}
	comments, err := s.deps.Comments.GetCommentsByIssueID(ctx, issueID)
	if err != nil {
		return nil, apperrors.Internal("list comments", err)
	}
	return comments, nil
}

// DeleteComment removes a comment and every reply beneath it. The subtree is
// collected first, then deleted with its reactions in one batch, and the
// issue's counter drops by the batch size.
func (s *SocialService) DeleteComment(ctx context.Context, caller *Caller, commentID uint) (int64, error) {
	comment, err := s.deps.Comments.GetCommentByID(ctx, commentID)
	if err != nil {
		return 0, storeErr("load comment", "comment", err)
	}
	if err := s.guard.Authorize(caller, OpDeleteComment, comment.UserID); err != nil {
		return 0, err
	}
	ids, err := s.deps.Comments.CollectSubtree(ctx, commentID)
	if err != nil {
		return 0, apperrors.Internal("collect replies", err)
	}
	deleted, err := s.deps.Comments.DeleteComments(ctx, ids)
	if err != nil {
		return 0, apperrors.Internal("delete comments", err)
	}
	s.stats.AdjustIssue(ctx, comment.IssueID, models.IssueComments, -deleted)
	return deleted, nil
}

// LikeComment reacts to a comment and returns its reaction count
func (s *SocialService) LikeComment(ctx context.Context, caller *Caller, commentID uint) (int64, error) {
	return s.reactComment(ctx, caller, commentID, s.deps.CommentLikes.CreateCommentLike)
}

// UnlikeComment withdraws a reaction and returns the remaining count
func (s *SocialService) UnlikeComment(ctx context.Context, caller *Caller, commentID uint) (int64, error) {
	return s.reactComment(ctx, caller, commentID, s.deps.CommentLikes.DeleteCommentLike)
}

func (s *SocialService) reactComment(ctx context.Context, caller *Caller, commentID uint, apply func(context.Context, uint, uint) (bool, error)) (int64, error) {
	if caller == nil || caller.User == nil {
		return 0, apperrors.Permission("authentication required")
	}
	if _, err := s.deps.Comments.GetCommentByID(ctx, commentID); err != nil {
		return 0, storeErr("load comment", "comment", err)
	}
	if _, err := apply(ctx, commentID, caller.ID()); err != nil {
		return 0, apperrors.Internal("comment reaction", err)
	}
	count, err := s.deps.CommentLikes.GetLikesCount(ctx, commentID)
	if err != nil {
		return 0, apperrors.Internal("count comment reactions", err)
	}
	return count, nil
}

// Profile returns a user's public record
func (s *SocialService) Profile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.deps.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storeErr("load user", "user", err)
	}
	return user, nil
}

// UpdateProfile edits the caller's display name and avatar
func (s *SocialService) UpdateProfile(ctx context.Context, caller *Caller, req models.UpdateProfileRequest) (*models.User, error) {
	if caller == nil || caller.User == nil {
		return nil, apperrors.Permission("authentication required")
	}
	name := strings.TrimSpace(req.DisplayName)
	if name != "" {
		if err := s.moderate(ctx, name, nil); err != nil {
			return nil, err
		}
	}
	if err := s.deps.Users.UpdateProfile(ctx, caller.ID(), name, req.AvatarURL); err != nil {
		return nil, storeErr("update profile", "user", err)
	}
	return s.Profile(ctx, caller.ID())
}
