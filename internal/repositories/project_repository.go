package repositories

import (
	"context"
	"time"

	"github.com/anonto42/barrierfree/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProjectRepository defines the interface for construction project data operations
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *models.ConstructionProject) error
	GetProjectByID(ctx context.Context, id string) (*models.ConstructionProject, error)
	GetProjectByIssueID(ctx context.Context, issueID string) (*models.ConstructionProject, error)
	// ReplaceStages writes the pipeline fields only if the stored version still equals expectedVersion
	ReplaceStages(ctx context.Context, project *models.ConstructionProject, expectedVersion int64) (bool, error)
	// MirrorCompletion copies the completion record once; later calls match nothing
	MirrorCompletion(ctx context.Context, id string, completion models.Completion, endedAt time.Time) (bool, error)
	ListProjectIDs(ctx context.Context) ([]string, error)
}

// MongoProjectRepository implements ProjectRepository for MongoDB
type MongoProjectRepository struct {
	collection *mongo.Collection
}

// NewMongoProjectRepository creates a new MongoProjectRepository
func NewMongoProjectRepository(db *mongo.Database) *MongoProjectRepository {
	return &MongoProjectRepository{collection: db.Collection("construction_projects")}
}

// EnsureIndexes makes issue_id unique so an issue can never have two projects
func (r *MongoProjectRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "issue_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "contractor_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

// CreateProject inserts a project; the caller assigns the ID beforehand
func (r *MongoProjectRepository) CreateProject(ctx context.Context, project *models.ConstructionProject) error {
	now := time.Now()
	if project.ID.IsZero() {
		project.ID = primitive.NewObjectID()
	}
	project.CreatedAt = now
	project.UpdatedAt = now
	project.Version = 1
	_, err := r.collection.InsertOne(ctx, project)
	return mongoErr(err)
}

// GetProjectByID retrieves a project by ID
func (r *MongoProjectRepository) GetProjectByID(ctx context.Context, id string) (*models.ConstructionProject, error) {
	objID, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": objID})
}

// GetProjectByIssueID retrieves the project bound to an issue
func (r *MongoProjectRepository) GetProjectByIssueID(ctx context.Context, issueID string) (*models.ConstructionProject, error) {
	objID, err := objectID(issueID)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"issue_id": objID})
}

// ReplaceStages performs the optimistic write of a stage advance
func (r *MongoProjectRepository) ReplaceStages(ctx context.Context, project *models.ConstructionProject, expectedVersion int64) (bool, error) {
	project.UpdatedAt = time.Now()
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": project.ID, "version": expectedVersion},
		bson.M{
			"$set": bson.M{
				"stages":              project.Stages,
				"current_stage":       project.CurrentStage,
				"status":              project.Status,
				"acceptance_complete": project.AcceptanceComplete,
				"actual_cost":         project.ActualCost,
				"updated_at":          project.UpdatedAt,
			},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return false, mongoErr(err)
	}
	if res.MatchedCount == 1 {
		project.Version = expectedVersion + 1
	}
	return res.MatchedCount == 1, nil
}

// MirrorCompletion attaches the issue's completion record to the project
func (r *MongoProjectRepository) MirrorCompletion(ctx context.Context, id string, completion models.Completion, endedAt time.Time) (bool, error) {
	objID, err := objectID(id)
	if err != nil {
		return false, err
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objID, "completion": bson.M{"$exists": false}},
		bson.M{
			"$set": bson.M{
				"completion": completion,
				"status":     models.ProjectCompleted,
				"ended_at":   endedAt,
				"updated_at": endedAt,
			},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return false, mongoErr(err)
	}
	return res.MatchedCount == 1, nil
}

// ListProjectIDs returns every project ID, used by lifecycle reconciliation
func (r *MongoProjectRepository) ListProjectIDs(ctx context.Context) ([]string, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
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

func (r *MongoProjectRepository) findOne(ctx context.Context, filter bson.M) (*models.ConstructionProject, error) {
	var project models.ConstructionProject
	if err := r.collection.FindOne(ctx, filter).Decode(&project); err != nil {
		return nil, mongoErr(err)
	}
	return &project, nil
}
