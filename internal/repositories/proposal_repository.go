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

// ProposalRepository defines the interface for design proposal data operations
type ProposalRepository interface {
	// CreateProposal returns ErrDuplicate when the designer already proposed for the issue
	CreateProposal(ctx context.Context, proposal *models.DesignProposal) error
	GetProposalsByIssueID(ctx context.Context, issueID string) ([]models.DesignProposal, error)
	CountProposalsByIssueID(ctx context.Context, issueID string) (int64, error)
	DeleteProposalsByIssueID(ctx context.Context, issueID string) (int64, error)
}

// MongoProposalRepository implements ProposalRepository for MongoDB
type MongoProposalRepository struct {
	collection *mongo.Collection
}

// NewMongoProposalRepository creates a new MongoProposalRepository
func NewMongoProposalRepository(db *mongo.Database) *MongoProposalRepository {
	return &MongoProposalRepository{collection: db.Collection("design_proposals")}
}

// EnsureIndexes creates the (issue_id, designer_id) uniqueness guard
func (r *MongoProposalRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "issue_id", Value: 1}, {Key: "designer_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "issue_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

// CreateProposal inserts a proposal
func (r *MongoProposalRepository) CreateProposal(ctx context.Context, proposal *models.DesignProposal) error {
	proposal.ID = primitive.NewObjectID()
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, proposal)
	return mongoErr(err)
}

// GetProposalsByIssueID lists proposals newest first
func (r *MongoProposalRepository) GetProposalsByIssueID(ctx context.Context, issueID string) ([]models.DesignProposal, error) {
	objID, err := objectID(issueID)
	if err != nil {
		return nil, err
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"issue_id": objID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	proposals := []models.DesignProposal{}
	if err = cursor.All(ctx, &proposals); err != nil {
		return nil, err
	}
	return proposals, nil
}

// CountProposalsByIssueID counts proposals for reconciliation
func (r *MongoProposalRepository) CountProposalsByIssueID(ctx context.Context, issueID string) (int64, error) {
	objID, err := objectID(issueID)
	if err != nil {
		return 0, err
	}
	return r.collection.CountDocuments(ctx, bson.M{"issue_id": objID})
}

// DeleteProposalsByIssueID removes every proposal of a deleted issue
func (r *MongoProposalRepository) DeleteProposalsByIssueID(ctx context.Context, issueID string) (int64, error) {
	objID, err := objectID(issueID)
	if err != nil {
		return 0, err
	}
	res, err := r.collection.DeleteMany(ctx, bson.M{"issue_id": objID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
