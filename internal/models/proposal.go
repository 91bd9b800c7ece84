package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DesignProposal is a designer's remediation plan for one issue.
// (issue_id, designer_id) is unique.
type DesignProposal struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	IssueID        primitive.ObjectID `json:"issue_id" bson:"issue_id"`
	DesignerID     uint               `json:"designer_id" bson:"designer_id"`
	Content        string             `json:"content" bson:"content"`
	Images         []string           `json:"images,omitempty" bson:"images,omitempty"`
	CostAdjustment float64            `json:"cost_adjustment" bson:"cost_adjustment"`
	Migrated       bool               `json:"-" bson:"migrated,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}

// SubmitProposalRequest defines the request body for a design proposal
type SubmitProposalRequest struct {
	Content        string   `json:"content" validate:"required,min=1,max=5000"`
	Images         []string `json:"images,omitempty" validate:"omitempty,max=9,dive,required"`
	CostAdjustment float64  `json:"cost_adjustment"`
}
