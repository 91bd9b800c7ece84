package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/barrierfree/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IssueRepository defines the interface for issue data operations.
// Every mutating method is a single conditional update; the bool result
// reports whether the condition matched.
type IssueRepository interface {
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssueByID(ctx context.Context, id string) (*models.Issue, error)
	ListIssues(ctx context.Context, filter models.IssueFilter, skip, limit int64) ([]models.Issue, error)
	ListIssueIDsByOwner(ctx context.Context, ownerID uint) ([]string, error)
	ListIssuesWithLegacySolutions(ctx context.Context) ([]models.Issue, error)
	MarkVerified(ctx context.Context, id string, by uint, at time.Time) (bool, error)
	Claim(ctx context.Context, id string, projectID primitive.ObjectID) (bool, error)
	ReleaseClaim(ctx context.Context, id string, projectID primitive.ObjectID) (bool, error)
	// ReserveProposalSlot counts one more proposal only while the intake window is open
	ReserveProposalSlot(ctx context.Context, id string) (bool, error)
	AdvanceStatus(ctx context.Context, id string, from, to models.IssueStatus) (bool, error)
	Complete(ctx context.Context, id string, completion models.Completion) (bool, error)
	DeleteUnclaimed(ctx context.Context, id string, ownerID uint) (bool, error)
	AdjustCounter(ctx context.Context, id string, counter models.IssueCounter, delta int64) error
	SetCounter(ctx context.Context, id string, counter models.IssueCounter, value int64) error
	ClearLegacySolutions(ctx context.Context, id string) error
}

// MongoIssueRepository implements IssueRepository for MongoDB
type MongoIssueRepository struct {
	collection *mongo.Collection
}

// NewMongoIssueRepository creates a new MongoIssueRepository
func NewMongoIssueRepository(db *mongo.Database) *MongoIssueRepository {
	return &MongoIssueRepository{collection: db.Collection("issues")}
}

// EnsureIndexes creates the indexes the listings rely on
func (r *MongoIssueRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "is_case", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	return err
}

// CreateIssue inserts a new issue in the pending state
func (r *MongoIssueRepository) CreateIssue(ctx context.Context, issue *models.Issue) error {
	now := time.Now()
	issue.ID = primitive.NewObjectID()
	issue.Status = models.IssuePending
	issue.CreatedAt = now
	issue.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, issue)
	return mongoErr(err)
}

// GetIssueByID retrieves an issue by ID
func (r *MongoIssueRepository) GetIssueByID(ctx context.Context, id string) (*models.Issue, error) {
	objID, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var issue models.Issue
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&issue); err != nil {
		return nil, mongoErr(err)
	}
	return &issue, nil
}

// ListIssues retrieves issues newest first
func (r *MongoIssueRepository) ListIssues(ctx context.Context, filter models.IssueFilter, skip, limit int64) ([]models.Issue, error) {
	query := bson.M{}
	sortKey := "created_at"
	if filter.OwnerID != 0 {
		query["owner_id"] = filter.OwnerID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.CasesOnly {
		query["is_case"] = true
		sortKey = "updated_at"
	}

	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: sortKey, Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err = cursor.All(ctx, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// ListIssueIDsByOwner returns the hex IDs of every issue a user reported
func (r *MongoIssueRepository) ListIssueIDsByOwner(ctx context.Context, ownerID uint) ([]string, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID.Hex())
	}
	return ids, cursor.Err()
}

// ListIssuesWithLegacySolutions finds issues still carrying inline proposals
func (r *MongoIssueRepository) ListIssuesWithLegacySolutions(ctx context.Context) ([]models.Issue, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"designer_solutions.0": bson.M{"$exists": true}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err = cursor.All(ctx, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// MarkVerified flips verified false→true unless the issue is already completed
func (r *MongoIssueRepository) MarkVerified(ctx context.Context, id string, by uint, at time.Time) (bool, error) {
	filter := bson.M{"verified": bson.M{"$ne": true}, "status": bson.M{"$ne": models.IssueCompleted}}
	update := bson.M{"$set": bson.M{"verified": true, "verified_by": by, "verified_at": at, "updated_at": at}}
	return r.updateWhere(ctx, id, filter, update)
}

// Claim moves a pending, unclaimed issue to processing and records the project reference
func (r *MongoIssueRepository) Claim(ctx context.Context, id string, projectID primitive.ObjectID) (bool, error) {
	filter := bson.M{"status": models.IssuePending, "construction_project_id": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{
		"status":                  models.IssueProcessing,
		"construction_project_id": projectID,
		"updated_at":              time.Now(),
	}}
	return r.updateWhere(ctx, id, filter, update)
}

// ReleaseClaim undoes Claim when the project insert did not go through
func (r *MongoIssueRepository) ReleaseClaim(ctx context.Context, id string, projectID primitive.ObjectID) (bool, error) {
	filter := bson.M{"status": models.IssueProcessing, "construction_project_id": projectID}
	update := bson.M{
		"$set":   bson.M{"status": models.IssuePending, "updated_at": time.Now()},
		"$unset": bson.M{"construction_project_id": ""},
	}
	return r.updateWhere(ctx, id, filter, update)
}

// ReserveProposalSlot increments design_proposal_count if the issue is still pending
func (r *MongoIssueRepository) ReserveProposalSlot(ctx context.Context, id string) (bool, error) {
	filter := bson.M{"status": models.IssuePending}
	update := bson.M{"$inc": bson.M{string(models.IssueProposals): 1}, "$set": bson.M{"updated_at": time.Now()}}
	return r.updateWhere(ctx, id, filter, update)
}

// AdvanceStatus moves the issue from one status to the next
func (r *MongoIssueRepository) AdvanceStatus(ctx context.Context, id string, from, to models.IssueStatus) (bool, error) {
	if !from.Before(to) {
		return false, fmt.Errorf("issue status cannot move from %s to %s", from, to)
	}
	filter := bson.M{"status": from}
	update := bson.M{"$set": bson.M{"status": to, "updated_at": time.Now()}}
	return r.updateWhere(ctx, id, filter, update)
}

// Complete writes the completion record and publishes the issue as a case
func (r *MongoIssueRepository) Complete(ctx context.Context, id string, completion models.Completion) (bool, error) {
	filter := bson.M{"status": models.IssueInProgress, "completion": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{
		"status":     models.IssueCompleted,
		"is_case":    true,
		"completion": completion,
		"updated_at": completion.Timestamp,
	}}
	return r.updateWhere(ctx, id, filter, update)
}

// DeleteUnclaimed deletes the issue only while it is pending and owned by ownerID
func (r *MongoIssueRepository) DeleteUnclaimed(ctx context.Context, id string, ownerID uint) (bool, error) {
	objID, err := objectID(id)
	if err != nil {
		return false, err
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{
		"_id":                     objID,
		"owner_id":                ownerID,
		"status":                  models.IssuePending,
		"construction_project_id": bson.M{"$exists": false},
	})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

// AdjustCounter applies a ±delta to a counter; decrements never go below zero
func (r *MongoIssueRepository) AdjustCounter(ctx context.Context, id string, counter models.IssueCounter, delta int64) error {
	objID, err := objectID(id)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": objID}
	if delta < 0 {
		filter[string(counter)] = bson.M{"$gte": -delta}
	}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{string(counter): delta}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 && delta < 0 {
		// counter smaller than the decrement: clamp at zero instead
		_, err = r.collection.UpdateOne(ctx,
			bson.M{"_id": objID, string(counter): bson.M{"$lt": -delta}},
			bson.M{"$set": bson.M{string(counter): 0}})
	}
	return err
}

// SetCounter overwrites a counter with a recomputed value
func (r *MongoIssueRepository) SetCounter(ctx context.Context, id string, counter models.IssueCounter, value int64) error {
	_, err := r.updateWhere(ctx, id, bson.M{}, bson.M{"$set": bson.M{string(counter): value}})
	return err
}

// ClearLegacySolutions removes the inline proposal array after a backfill
func (r *MongoIssueRepository) ClearLegacySolutions(ctx context.Context, id string) error {
	_, err := r.updateWhere(ctx, id, bson.M{}, bson.M{"$unset": bson.M{"designer_solutions": ""}})
	return err
}

func (r *MongoIssueRepository) updateWhere(ctx context.Context, id string, filter bson.M, update bson.M) (bool, error) {
	objID, err := objectID(id)
	if err != nil {
		return false, err
	}
	filter["_id"] = objID
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, mongoErr(err)
	}
	return res.MatchedCount == 1, nil
}
