package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/barrierfree/backend/internal/collaborators"
	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/anonto42/barrierfree/backend/internal/repositories"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeStore keeps every aggregate in memory behind one mutex and honours the
// same conditional-write contract as the Mongo and Postgres repositories.
type fakeStore struct {
	mu sync.Mutex

	clock time.Time

	users    map[uint]*models.User
	nextUser uint
	grants   map[uint]map[string]bool
	audits   []models.AuditEntry

	issues    map[primitive.ObjectID]*models.Issue
	projects  map[primitive.ObjectID]*models.ConstructionProject
	proposals []*models.DesignProposal

	follows      map[[2]uint]*models.Follow
	likes        map[string]map[uint]bool
	comments     map[uint]*models.Comment
	nextComment  uint
	commentLikes map[uint]map[uint]bool

	notifications []models.Notification

	failProjectInsert error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:        time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		users:        map[uint]*models.User{},
		grants:       map[uint]map[string]bool{},
		issues:       map[primitive.ObjectID]*models.Issue{},
		projects:     map[primitive.ObjectID]*models.ConstructionProject{},
		follows:      map[[2]uint]*models.Follow{},
		likes:        map[string]map[uint]bool{},
		comments:     map[uint]*models.Comment{},
		commentLikes: map[uint]map[uint]bool{},
	}
}

// tick returns a strictly increasing timestamp; callers hold mu
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func parseID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, repositories.ErrInvalidID
	}
	return objID, nil
}

// users

func (f *fakeStore) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if user.FirebaseUID != "" && u.FirebaseUID == user.FirebaseUID {
			return repositories.ErrDuplicate
		}
	}
	f.nextUser++
	user.ID = f.nextUser
	if user.Role == "" {
		user.Role = models.RoleResident
	}
	user.CreatedAt = f.tick()
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeStore) GetUserByFirebaseUID(_ context.Context, uid string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.FirebaseUID == uid {
			c := *u
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeStore) ListUserIDs(context.Context) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uint, 0, len(f.users))
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, id uint, displayName, avatarURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if displayName != "" {
		u.DisplayName = displayName
	}
	if avatarURL != "" {
		u.AvatarURL = avatarURL
	}
	return nil
}

func (f *fakeStore) SubmitCertification(_ context.Context, id uint, app models.CertificationApplication) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return false, nil
	}
	if u.Certification.Status == models.CertificationPending {
		return false, nil
	}
	u.Certification = app
	return true, nil
}

func (f *fakeStore) DecideCertification(_ context.Context, id uint, decision models.CertificationStatus, reviewerID uint, reason string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.Certification.Status != models.CertificationPending {
		return false, nil
	}
	u.Certification.Status = decision
	u.Certification.ReviewTime = &at
	u.Certification.ReviewerID = &reviewerID
	u.Certification.RejectReason = reason
	if decision == models.CertificationApproved {
		u.Role = u.Certification.Type
		u.Badge = models.Badges[u.Role]
	}
	return true, nil
}

func (f *fakeStore) ResetCertification(_ context.Context, id uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return false, nil
	}
	if u.Role == models.RoleResident && u.Badge == "" && u.Certification.Status == "" && u.ProfessionalProfile == nil {
		return false, nil
	}
	u.Role = models.RoleResident
	u.Badge = ""
	u.Certification = models.CertificationApplication{}
	u.ProfessionalProfile = nil
	return true, nil
}

func (f *fakeStore) AdjustStat(_ context.Context, id uint, field models.StatField, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil
	}
	var target *int64
	switch field {
	case models.StatFollowing:
		target = &u.Stats.FollowingCount
	case models.StatFollowers:
		target = &u.Stats.FollowersCount
	case models.StatLikes:
		target = &u.Stats.LikesCount
	default:
		return fmt.Errorf("unknown stat field %q", field)
	}
	*target = max(*target+delta, 0)
	return nil
}

func (f *fakeStore) SetStats(_ context.Context, id uint, stats models.UserStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.Stats = stats
	}
	return nil
}

// grants

func (f *fakeStore) HasCapability(_ context.Context, userID uint, capability string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grants[userID][capability], nil
}

func (f *fakeStore) ListCapabilities(_ context.Context, userID uint) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var caps []string
	for c, held := range f.grants[userID] {
		if held {
			caps = append(caps, c)
		}
	}
	sort.Strings(caps)
	return caps, nil
}

func (f *fakeStore) Grant(_ context.Context, userID uint, capability string, actorID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grants[userID][capability] {
		return false, nil
	}
	if f.grants[userID] == nil {
		f.grants[userID] = map[string]bool{}
	}
	f.grants[userID][capability] = true
	f.audits = append(f.audits, models.AuditEntry{ActorID: actorID, Action: models.AuditGrant, SubjectID: userID, Detail: capability})
	return true, nil
}

func (f *fakeStore) Revoke(_ context.Context, userID uint, capability string, actorID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.grants[userID][capability] {
		return false, nil
	}
	delete(f.grants[userID], capability)
	f.audits = append(f.audits, models.AuditEntry{ActorID: actorID, Action: models.AuditRevoke, SubjectID: userID, Detail: capability})
	return true, nil
}

func (f *fakeStore) RecordAudit(_ context.Context, entry *models.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, *entry)
	return nil
}

// issues

func (f *fakeStore) CreateIssue(_ context.Context, issue *models.Issue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue.ID = primitive.NewObjectID()
	issue.Status = models.IssuePending
	issue.CreatedAt = f.tick()
	issue.UpdatedAt = issue.CreatedAt
	stored := *issue
	f.issues[issue.ID] = &stored
	return nil
}

func (f *fakeStore) GetIssueByID(_ context.Context, id string) (*models.Issue, error) {
	objID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[objID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *issue
	return &c, nil
}

func (f *fakeStore) ListIssues(_ context.Context, filter models.IssueFilter, skip, limit int64) ([]models.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Issue
	for _, issue := range f.issues {
		if filter.OwnerID != 0 && issue.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && issue.Status != filter.Status {
			continue
		}
		if filter.CasesOnly && !issue.IsCase {
			continue
		}
		out = append(out, *issue)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if skip >= int64(len(out)) {
		return []models.Issue{}, nil
	}
	out = out[skip:]
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ListIssueIDsByOwner(_ context.Context, ownerID uint) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, issue := range f.issues {
		if issue.OwnerID == ownerID {
			ids = append(ids, id.Hex())
		}
	}
	return ids, nil
}

func (f *fakeStore) ListIssuesWithLegacySolutions(context.Context) ([]models.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Issue
	for _, issue := range f.issues {
		if len(issue.DesignerSolutions) > 0 {
			out = append(out, *issue)
		}
	}
	return out, nil
}

// updateIssue applies mutate under the lock when cond holds
func (f *fakeStore) updateIssue(id string, cond func(*models.Issue) bool, mutate func(*models.Issue)) (bool, error) {
	objID, err := parseID(id)
	if err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[objID]
	if !ok || !cond(issue) {
		return false, nil
	}
	mutate(issue)
	issue.UpdatedAt = f.tick()
	return true, nil
}

func (f *fakeStore) MarkVerified(_ context.Context, id string, by uint, at time.Time) (bool, error) {
	return f.updateIssue(id,
		func(i *models.Issue) bool { return !i.Verified && i.Status != models.IssueCompleted },
		func(i *models.Issue) { i.Verified, i.VerifiedBy, i.VerifiedAt = true, &by, &at })
}

func (f *fakeStore) Claim(_ context.Context, id string, projectID primitive.ObjectID) (bool, error) {
	return f.updateIssue(id,
		func(i *models.Issue) bool { return i.Status == models.IssuePending && i.ConstructionProjectID == nil },
		func(i *models.Issue) { i.Status, i.ConstructionProjectID = models.IssueProcessing, &projectID })
}

func (f *fakeStore) ReleaseClaim(_ context.Context, id string, projectID primitive.ObjectID) (bool, error) {
	return f.updateIssue(id,
		func(i *models.Issue) bool {
			return i.Status == models.IssueProcessing && i.ConstructionProjectID != nil && *i.ConstructionProjectID == projectID
		},
		func(i *models.Issue) { i.Status, i.ConstructionProjectID = models.IssuePending, nil })
}

func (f *fakeStore) ReserveProposalSlot(_ context.Context, id string) (bool, error) {
	return f.updateIssue(id,
		func(i *models.Issue) bool { return i.Status == models.IssuePending },
		func(i *models.Issue) { i.DesignProposalCount++ })
}

func (f *fakeStore) AdvanceStatus(_ context.Context, id string, from, to models.IssueStatus) (bool, error) {
	if !from.Before(to) {
		return false, fmt.Errorf("issue status cannot move from %s to %s", from, to)
	}
	return f.updateIssue(id,
		func(i *models.Issue) bool { return i.Status == from },
		func(i *models.Issue) { i.Status = to })
}

func (f *fakeStore) Complete(_ context.Context, id string, completion models.Completion) (bool, error) {
	return f.updateIssue(id,
		func(i *models.Issue) bool { return i.Status == models.IssueInProgress && i.Completion == nil },
		func(i *models.Issue) { i.Status, i.IsCase, i.Completion = models.IssueCompleted, true, &completion })
}

func (f *fakeStore) DeleteUnclaimed(_ context.Context, id string, ownerID uint) (bool, error) {
	objID, err := parseID(id)
	if err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[objID]
	if !ok || issue.OwnerID != ownerID || issue.Status != models.IssuePending || issue.ConstructionProjectID != nil {
		return false, nil
	}
	delete(f.issues, objID)
	return true, nil
}

func issueCounter(i *models.Issue, counter models.IssueCounter) *int64 {
	switch counter {
	case models.IssueLikes:
		return &i.LikesCount
	case models.IssueComments:
		return &i.CommentsCount
	default:
		return &i.DesignProposalCount
	}
}

func (f *fakeStore) AdjustCounter(_ context.Context, id string, counter models.IssueCounter, delta int64) error {
	_, err := f.updateIssue(id, func(*models.Issue) bool { return true }, func(i *models.Issue) {
		c := issueCounter(i, counter)
		*c = max(*c+delta, 0)
	})
	return err
}

func (f *fakeStore) SetCounter(_ context.Context, id string, counter models.IssueCounter, value int64) error {
	_, err := f.updateIssue(id, func(*models.Issue) bool { return true }, func(i *models.Issue) {
		*issueCounter(i, counter) = value
	})
	return err
}

func (f *fakeStore) ClearLegacySolutions(_ context.Context, id string) error {
	_, err := f.updateIssue(id, func(*models.Issue) bool { return true }, func(i *models.Issue) {
		i.DesignerSolutions = nil
	})
	return err
}

// projects

func copyProject(p *models.ConstructionProject) *models.ConstructionProject {
	c := *p
	c.Stages = append([]models.Stage(nil), p.Stages...)
	return &c
}

func (f *fakeStore) CreateProject(_ context.Context, project *models.ConstructionProject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failProjectInsert != nil {
		return f.failProjectInsert
	}
	if project.ID.IsZero() {
		project.ID = primitive.NewObjectID()
	}
	for _, p := range f.projects {
		if p.ID == project.ID || p.IssueID == project.IssueID {
			return repositories.ErrDuplicate
		}
	}
	project.Version = 1
	project.CreatedAt = f.tick()
	f.projects[project.ID] = copyProject(project)
	return nil
}

func (f *fakeStore) GetProjectByID(_ context.Context, id string) (*models.ConstructionProject, error) {
	objID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[objID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyProject(p), nil
}

func (f *fakeStore) GetProjectByIssueID(_ context.Context, issueID string) (*models.ConstructionProject, error) {
	objID, err := parseID(issueID)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.projects {
		if p.IssueID == objID {
			return copyProject(p), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeStore) ReplaceStages(_ context.Context, project *models.ConstructionProject, expectedVersion int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.projects[project.ID]
	if !ok || stored.Version != expectedVersion {
		return false, nil
	}
	stored.Stages = append([]models.Stage(nil), project.Stages...)
	stored.CurrentStage = project.CurrentStage
	stored.Status = project.Status
	stored.AcceptanceComplete = project.AcceptanceComplete
	stored.ActualCost = project.ActualCost
	stored.Version++
	project.Version = stored.Version
	return true, nil
}

func (f *fakeStore) MirrorCompletion(_ context.Context, id string, completion models.Completion, endedAt time.Time) (bool, error) {
	objID, err := parseID(id)
	if err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[objID]
	if !ok {
		return false, repositories.ErrNotFound
	}
	if p.Completion != nil {
		return false, nil
	}
	p.Completion, p.EndedAt, p.Status = &completion, &endedAt, models.ProjectCompleted
	p.Version++
	return true, nil
}

func (f *fakeStore) ListProjectIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.projects {
		ids = append(ids, id.Hex())
	}
	return ids, nil
}

// proposals

func (f *fakeStore) CreateProposal(_ context.Context, proposal *models.DesignProposal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.proposals {
		if p.IssueID == proposal.IssueID && p.DesignerID == proposal.DesignerID {
			return repositories.ErrDuplicate
		}
	}
	proposal.ID = primitive.NewObjectID()
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = f.tick()
	}
	stored := *proposal
	f.proposals = append(f.proposals, &stored)
	return nil
}

func (f *fakeStore) GetProposalsByIssueID(_ context.Context, issueID string) ([]models.DesignProposal, error) {
	objID, err := parseID(issueID)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.DesignProposal{}
	for _, p := range f.proposals {
		if p.IssueID == objID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) CountProposalsByIssueID(ctx context.Context, issueID string) (int64, error) {
	proposals, err := f.GetProposalsByIssueID(ctx, issueID)
	return int64(len(proposals)), err
}

func (f *fakeStore) DeleteProposalsByIssueID(_ context.Context, issueID string) (int64, error) {
	objID, err := parseID(issueID)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.proposals[:0]
	for _, p := range f.proposals {
		if p.IssueID != objID {
			kept = append(kept, p)
		}
	}
	n := int64(len(f.proposals) - len(kept))
	f.proposals = kept
	return n, nil
}

// follows

func (f *fakeStore) CreateFollow(_ context.Context, followerID, followingID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]uint{followerID, followingID}
	if _, ok := f.follows[key]; ok {
		return false, nil
	}
	edge := &models.Follow{FollowerID: followerID, FollowingID: followingID}
	if reverse, ok := f.follows[[2]uint{followingID, followerID}]; ok {
		reverse.IsMutual, edge.IsMutual = true, true
	}
	f.follows[key] = edge
	return true, nil
}

func (f *fakeStore) DeleteFollow(_ context.Context, followerID, followingID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]uint{followerID, followingID}
	if _, ok := f.follows[key]; !ok {
		return false, nil
	}
	delete(f.follows, key)
	if reverse, ok := f.follows[[2]uint{followingID, followerID}]; ok {
		reverse.IsMutual = false
	}
	return true, nil
}

func (f *fakeStore) IsFollowing(_ context.Context, followerID, followingID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.follows[[2]uint{followerID, followingID}]
	return ok, nil
}

func (f *fakeStore) edgeUsers(match func(models.Follow) (uint, bool)) []models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	var users []models.User
	for _, e := range f.follows {
		if id, ok := match(*e); ok {
			if u, found := f.users[id]; found {
				users = append(users, *u)
			}
		}
	}
	return users
}

func (f *fakeStore) GetFollowers(_ context.Context, userID uint) ([]models.User, error) {
	return f.edgeUsers(func(e models.Follow) (uint, bool) { return e.FollowerID, e.FollowingID == userID }), nil
}

func (f *fakeStore) GetFollowing(_ context.Context, userID uint) ([]models.User, error) {
	return f.edgeUsers(func(e models.Follow) (uint, bool) { return e.FollowingID, e.FollowerID == userID }), nil
}

func (f *fakeStore) countEdges(match func(models.Follow) bool) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, e := range f.follows {
		if match(*e) {
			n++
		}
	}
	return n
}

func (f *fakeStore) GetFollowersCount(_ context.Context, userID uint) (int64, error) {
	return f.countEdges(func(e models.Follow) bool { return e.FollowingID == userID && e.FollowerID != userID }), nil
}

func (f *fakeStore) GetFollowingCount(_ context.Context, userID uint) (int64, error) {
	return f.countEdges(func(e models.Follow) bool { return e.FollowerID == userID && e.FollowingID != userID }), nil
}

func (f *fakeStore) CountSelfFollows(_ context.Context, userID uint) (int64, error) {
	return f.countEdges(func(e models.Follow) bool { return e.FollowerID == userID && e.FollowingID == userID }), nil
}

func (f *fakeStore) SyncMutual(_ context.Context, userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var changed int64
	for key, e := range f.follows {
		if key[0] != userID && key[1] != userID {
			continue
		}
		_, mutual := f.follows[[2]uint{key[1], key[0]}]
		if e.IsMutual != mutual {
			e.IsMutual = mutual
			changed++
		}
	}
	return changed, nil
}

// likes

func (f *fakeStore) CreateLike(_ context.Context, issueID string, userID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.likes[issueID][userID] {
		return false, nil
	}
	if f.likes[issueID] == nil {
		f.likes[issueID] = map[uint]bool{}
	}
	f.likes[issueID][userID] = true
	return true, nil
}

func (f *fakeStore) DeleteLike(_ context.Context, issueID string, userID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.likes[issueID][userID] {
		return false, nil
	}
	delete(f.likes[issueID], userID)
	return true, nil
}

func (f *fakeStore) HasUserLikedIssue(_ context.Context, issueID string, userID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.likes[issueID][userID], nil
}

func (f *fakeStore) GetLikesCountByIssueID(_ context.Context, issueID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.likes[issueID])), nil
}

func (f *fakeStore) GetLikesCountByIssueIDs(_ context.Context, issueIDs []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range issueIDs {
		n += int64(len(f.likes[id]))
	}
	return n, nil
}

func (f *fakeStore) DeleteLikesByIssueID(_ context.Context, issueID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.likes[issueID]))
	delete(f.likes, issueID)
	return n, nil
}

// comments

func (f *fakeStore) CreateComment(_ context.Context, comment *models.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextComment++
	comment.ID = f.nextComment
	comment.CreatedAt = f.tick()
	stored := *comment
	f.comments[comment.ID] = &stored
	return nil
}

func (f *fakeStore) GetCommentByID(_ context.Context, id uint) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cc := *c
	return &cc, nil
}

func (f *fakeStore) GetCommentsByIssueID(_ context.Context, issueID string) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Comment{}
	for _, c := range f.comments {
		if c.IssueID == issueID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CountCommentsByIssueID(ctx context.Context, issueID string) (int64, error) {
	comments, err := f.GetCommentsByIssueID(ctx, issueID)
	return int64(len(comments)), err
}

func (f *fakeStore) CollectSubtree(_ context.Context, rootID uint) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []uint{rootID}
	for i := 0; i < len(ids); i++ {
		for _, c := range f.comments {
			if c.ParentID != nil && *c.ParentID == ids[i] {
				ids = append(ids, c.ID)
			}
		}
	}
	return ids, nil
}

func (f *fakeStore) DeleteComments(_ context.Context, ids []uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := f.comments[id]; ok {
			delete(f.comments, id)
			delete(f.commentLikes, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteCommentsByIssueID(_ context.Context, issueID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, c := range f.comments {
		if c.IssueID == issueID {
			delete(f.comments, id)
			delete(f.commentLikes, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateCommentLike(_ context.Context, commentID, userID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commentLikes[commentID][userID] {
		return false, nil
	}
	if f.commentLikes[commentID] == nil {
		f.commentLikes[commentID] = map[uint]bool{}
	}
	f.commentLikes[commentID][userID] = true
	return true, nil
}

func (f *fakeStore) DeleteCommentLike(_ context.Context, commentID, userID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.commentLikes[commentID][userID] {
		return false, nil
	}
	delete(f.commentLikes[commentID], userID)
	return true, nil
}

func (f *fakeStore) GetLikesCount(_ context.Context, commentID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.commentLikes[commentID])), nil
}

// notifications

func (f *fakeStore) CreateNotification(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = uint(len(f.notifications) + 1)
	f.notifications = append(f.notifications, *n)
	return nil
}

func (f *fakeStore) GetByRecipientID(_ context.Context, recipientID uint, _, _ int) ([]models.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) GetGrouped(context.Context, uint) ([]models.Notification, []models.Notification, []models.Notification, []models.Notification, error) {
	return nil, nil, nil, nil, nil
}

func (f *fakeStore) GetUnreadCount(context.Context, uint) (int64, error) { return 0, nil }

func (f *fakeStore) MarkAsRead(context.Context, uint, uint) error { return nil }

func (f *fakeStore) MarkAllAsRead(context.Context, uint) error { return nil }

func (f *fakeStore) notificationTypes(recipientID uint) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, n := range f.notifications {
		if n.RecipientID == recipientID {
			types = append(types, n.Type)
		}
	}
	return types
}

// keywordModerator fails any text containing "spam" and any image ref
// containing "nsfw"
type keywordModerator struct {
	down bool
}

func (m keywordModerator) CheckText(_ context.Context, text string) (collaborators.Verdict, error) {
	if m.down {
		return collaborators.Verdict{}, context.DeadlineExceeded
	}
	if strings.Contains(strings.ToLower(text), "spam") {
		return collaborators.Verdict{Pass: false, Reason: "advertising"}, nil
	}
	return collaborators.Verdict{Pass: true}, nil
}

func (m keywordModerator) CheckImage(_ context.Context, url string) (collaborators.Verdict, error) {
	if m.down {
		return collaborators.Verdict{}, context.DeadlineExceeded
	}
	return collaborators.Verdict{Pass: !strings.Contains(url, "nsfw"), Reason: "explicit"}, nil
}

type stubAnalyzer struct {
	err error
}

func (a stubAnalyzer) Diagnose(_ context.Context, url string, _ *models.Location) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return "obstruction in " + url, nil
}

var errStoreDown = errors.New("connection refused")

type harness struct {
	t     *testing.T
	store *fakeStore
	svc   *Services
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newFakeStore()
	svc := New(Deps{
		Users:           store,
		Grants:          store,
		Issues:          store,
		Proposals:       store,
		Projects:        store,
		Follows:         store,
		Likes:           store,
		Comments:        store,
		CommentLikes:    store,
		Notifications:   store,
		Moderator:       keywordModerator{},
		Analyzer:        stubAnalyzer{},
		ConvergeTimeout: 2 * time.Second,
	})
	return &harness{t: t, store: store, svc: svc}
}

// user registers a user with role and capabilities and returns its caller
func (h *harness) user(name string, role models.Role, capabilities ...string) *Caller {
	h.t.Helper()
	ctx := context.Background()
	u := &models.User{FirebaseUID: "uid-" + name, DisplayName: name, Role: role}
	require.NoError(h.t, h.store.CreateUser(ctx, u))
	for _, c := range capabilities {
		_, err := h.store.Grant(ctx, u.ID, c, 0)
		require.NoError(h.t, err)
	}
	caller, err := h.svc.Guard.LoadCaller(ctx, u.ID)
	require.NoError(h.t, err)
	return caller
}

func (h *harness) report(owner *Caller) *models.Issue {
	h.t.Helper()
	issue, err := h.svc.Issues.Report(context.Background(), owner, models.ReportIssueRequest{
		Content:  "the ramp at the north entrance is blocked by bicycles",
		Location: models.Location{Latitude: 31.23, Longitude: 121.47, Address: "North gate"},
	})
	require.NoError(h.t, err)
	return issue
}

func (h *harness) issue(id primitive.ObjectID) *models.Issue {
	h.t.Helper()
	issue, err := h.store.GetIssueByID(context.Background(), id.Hex())
	require.NoError(h.t, err)
	return issue
}

func (h *harness) project(id primitive.ObjectID) *models.ConstructionProject {
	h.t.Helper()
	p, err := h.store.GetProjectByID(context.Background(), id.Hex())
	require.NoError(h.t, err)
	return p
}

func (h *harness) stats(id uint) models.UserStats {
	h.t.Helper()
	u, err := h.store.GetUserByID(context.Background(), id)
	require.NoError(h.t, err)
	return u.Stats
}
