package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user("alice", models.RoleResident)
	bob := h.user("bob", models.RoleDesigner)

	assert.ErrorIs(t, h.svc.Social.Follow(ctx, alice, alice.ID()), apperrors.ErrValidation)
	assert.ErrorIs(t, h.svc.Social.Follow(ctx, alice, 999), apperrors.ErrNotFound)

	require.NoError(t, h.svc.Social.Follow(ctx, alice, bob.ID()))
	require.NoError(t, h.svc.Social.Follow(ctx, alice, bob.ID()))
	assert.EqualValues(t, 1, h.stats(alice.ID()).FollowingCount)
	assert.EqualValues(t, 1, h.stats(bob.ID()).FollowersCount)
	assert.Equal(t, []string{string(models.NotifyFollow)}, h.store.notificationTypes(bob.ID()))

	followers, err := h.svc.Social.Followers(ctx, bob.ID())
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "alice", followers[0].DisplayName)

	require.NoError(t, h.svc.Social.Unfollow(ctx, alice, bob.ID()))
	require.NoError(t, h.svc.Social.Unfollow(ctx, alice, bob.ID()))
	assert.Zero(t, h.stats(alice.ID()).FollowingCount)
	assert.Zero(t, h.stats(bob.ID()).FollowersCount)
}

func TestConcurrentFollowTogglesKeepCountersExact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	target := h.user("target", models.RoleResident)
	fans := make([]*Caller, 6)
	for i := range fans {
		fans[i] = h.user(fmt.Sprintf("fan%d", i), models.RoleResident)
	}

	var wg sync.WaitGroup
	for round := range 20 {
		for _, fan := range fans {
			wg.Add(1)
			go func(fan *Caller, follow bool) {
				defer wg.Done()
				var err error
				if follow {
					err = h.svc.Social.Follow(ctx, fan, target.ID())
				} else {
					err = h.svc.Social.Unfollow(ctx, fan, target.ID())
				}
				assert.NoError(t, err)
			}(fan, round%2 == 0)
		}
	}
	wg.Wait()

	edges, err := h.store.GetFollowersCount(ctx, target.ID())
	require.NoError(t, err)
	stats := h.stats(target.ID())
	assert.GreaterOrEqual(t, stats.FollowersCount, int64(0))
	assert.Equal(t, edges, stats.FollowersCount)
	for _, fan := range fans {
		following, err := h.store.GetFollowingCount(ctx, fan.ID())
		require.NoError(t, err)
		assert.Equal(t, following, h.stats(fan.ID()).FollowingCount)
	}
}

func TestLikesMoveIssueAndOwnerCounters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner", models.RoleResident)
	fan := h.user("fan", models.RoleResident)
	issue := h.report(owner)

	require.NoError(t, h.svc.Social.LikeIssue(ctx, fan, issue.ID.Hex()))
	require.NoError(t, h.svc.Social.LikeIssue(ctx, fan, issue.ID.Hex()))
	assert.EqualValues(t, 1, h.issue(issue.ID).LikesCount)
	assert.EqualValues(t, 1, h.stats(owner.ID()).LikesCount)

	require.NoError(t, h.svc.Social.UnlikeIssue(ctx, fan, issue.ID.Hex()))
	require.NoError(t, h.svc.Social.UnlikeIssue(ctx, fan, issue.ID.Hex()))
	assert.Zero(t, h.issue(issue.ID).LikesCount)
	assert.Zero(t, h.stats(owner.ID()).LikesCount)

	assert.ErrorIs(t, h.svc.Social.LikeIssue(ctx, fan, "not-an-id"), apperrors.ErrNotFound)
}

func TestCommentThreads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner", models.RoleResident)
	other := h.user("other", models.RoleResident)
	admin := h.user("admin", models.RoleResident, models.CapabilityAdmin)
	issue := h.report(owner)
	elsewhere := h.report(owner)

	root, err := h.svc.Social.Comment(ctx, owner, issue.ID.Hex(), models.CreateCommentRequest{Content: "still blocked today"})
	require.NoError(t, err)
	reply, err := h.svc.Social.Comment(ctx, other, issue.ID.Hex(), models.CreateCommentRequest{Content: "same here", ParentID: &root.ID})
	require.NoError(t, err)
	_, err = h.svc.Social.Comment(ctx, owner, issue.ID.Hex(), models.CreateCommentRequest{Content: "thanks", ParentID: &reply.ID})
	require.NoError(t, err)
	sibling, err := h.svc.Social.Comment(ctx, other, issue.ID.Hex(), models.CreateCommentRequest{Content: "reported to the council"})
	require.NoError(t, err)
	assert.EqualValues(t, 4, h.issue(issue.ID).CommentsCount)

	_, err = h.svc.Social.Comment(ctx, other, elsewhere.ID.Hex(), models.CreateCommentRequest{Content: "wrong thread", ParentID: &root.ID})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = h.svc.Social.Comment(ctx, other, issue.ID.Hex(), models.CreateCommentRequest{Content: "buy spam now"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = h.svc.Social.Comment(ctx, other, issue.ID.Hex(), models.CreateCommentRequest{Content: "   "})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	count, err := h.svc.Social.LikeComment(ctx, owner, reply.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	count, err = h.svc.Social.LikeComment(ctx, owner, reply.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	_, err = h.svc.Social.DeleteComment(ctx, other, root.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermission)

	deleted, err := h.svc.Social.DeleteComment(ctx, owner, root.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)
	assert.EqualValues(t, 1, h.issue(issue.ID).CommentsCount)
	_, err = h.svc.Social.LikeComment(ctx, owner, reply.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	deleted, err = h.svc.Social.DeleteComment(ctx, admin, sibling.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
	assert.Zero(t, h.issue(issue.ID).CommentsCount)

	comments, err := h.svc.Social.ListComments(ctx, issue.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.user("user", models.RoleResident)

	updated, err := h.svc.Social.UpdateProfile(ctx, user, models.UpdateProfileRequest{DisplayName: "  Wheelchair Wanderer ", AvatarURL: "https://cdn.example.org/a.png"})
	require.NoError(t, err)
	assert.Equal(t, "Wheelchair Wanderer", updated.DisplayName)
	assert.Equal(t, "https://cdn.example.org/a.png", updated.AvatarURL)

	_, err = h.svc.Social.UpdateProfile(ctx, user, models.UpdateProfileRequest{DisplayName: "spam king"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = h.svc.Social.Profile(ctx, 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
