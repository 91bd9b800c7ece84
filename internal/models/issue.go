package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Location of a reported obstruction
type Location struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
	Address   string  `json:"address,omitempty" bson:"address,omitempty"`
}

// Completion is written once when the reporter (or a community worker)
// accepts the finished work, and never changes afterwards.
type Completion struct {
	ConfirmedBy     uint      `json:"confirmed_by" bson:"confirmed_by"`
	ConfirmedByRole Role      `json:"confirmed_by_role" bson:"confirmed_by_role"`
	Timestamp       time.Time `json:"timestamp" bson:"timestamp"`
	Images          []string  `json:"images,omitempty" bson:"images,omitempty"`
	Feedback        string    `json:"feedback,omitempty" bson:"feedback,omitempty"`
	Rating          int       `json:"rating" bson:"rating"`
}

// LegacySolution is the inline proposal shape older issues still carry.
// BackfillLegacySolutions moves these into the design_proposals collection.
type LegacySolution struct {
	DesignerID     uint      `json:"designer_id" bson:"designer_id"`
	Content        string    `json:"content" bson:"content"`
	Images         []string  `json:"images,omitempty" bson:"images,omitempty"`
	CostAdjustment float64   `json:"cost_adjustment,omitempty" bson:"cost_adjustment,omitempty"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// Issue is a reported accessibility obstruction stored in MongoDB
type Issue struct {
	ID                    primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerID               uint                `json:"owner_id" bson:"owner_id"`
	Content               string              `json:"content" bson:"content"`
	ImageRefs             []string            `json:"image_refs,omitempty" bson:"image_refs,omitempty"`
	Location              Location            `json:"location" bson:"location"`
	Diagnosis             string              `json:"diagnosis,omitempty" bson:"diagnosis,omitempty"`
	Status                IssueStatus         `json:"status" bson:"status"`
	Verified              bool                `json:"verified" bson:"verified"`
	VerifiedBy            *uint               `json:"verified_by,omitempty" bson:"verified_by,omitempty"`
	VerifiedAt            *time.Time          `json:"verified_at,omitempty" bson:"verified_at,omitempty"`
	IsCase                bool                `json:"is_case" bson:"is_case"`
	DesignerSolutions     []LegacySolution    `json:"-" bson:"designer_solutions,omitempty"`
	DesignProposalCount   int64               `json:"design_proposal_count" bson:"design_proposal_count"`
	ConstructionProjectID *primitive.ObjectID `json:"construction_project_id,omitempty" bson:"construction_project_id,omitempty"`
	Completion            *Completion         `json:"completion,omitempty" bson:"completion,omitempty"`
	LikesCount            int64               `json:"likes_count" bson:"likes_count"`
	CommentsCount         int64               `json:"comments_count" bson:"comments_count"`
	CreatedAt             time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at" bson:"updated_at"`
}

// IssueCounter names a derived counter on the issue document
type IssueCounter string

const (
	IssueLikes     IssueCounter = "likes_count"
	IssueComments  IssueCounter = "comments_count"
	IssueProposals IssueCounter = "design_proposal_count"
)

// IssueFilter narrows issue listings
type IssueFilter struct {
	OwnerID   uint
	Status    IssueStatus
	CasesOnly bool
}

// ReportIssueRequest defines the request body for reporting an issue
type ReportIssueRequest struct {
	Content   string   `json:"content" validate:"max=2000"`
	ImageRefs []string `json:"image_refs,omitempty" validate:"omitempty,max=9,dive,required"`
	Location  Location `json:"location"`
}

// ConfirmCompletionRequest defines the request body for accepting finished work
type ConfirmCompletionRequest struct {
	AfterImages []string `json:"after_images,omitempty" validate:"omitempty,max=9,dive,required"`
	Feedback    string   `json:"feedback,omitempty" validate:"max=1000"`
	Rating      int      `json:"rating" validate:"min=1,max=5"`
}
