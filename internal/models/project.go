package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Stage is one phase of the construction pipeline
type Stage struct {
	Name        string      `json:"name" bson:"name"`
	Status      StageStatus `json:"status" bson:"status"`
	Images      []string    `json:"images,omitempty" bson:"images,omitempty"`
	Description string      `json:"description,omitempty" bson:"description,omitempty"`
	Cost        float64     `json:"cost" bson:"cost"`
	StartedAt   *time.Time  `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// ConstructionProject is the staged engagement that remediates one issue.
// Version is bumped on every write and guards optimistic updates.
type ConstructionProject struct {
	ID                 primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	IssueID            primitive.ObjectID `json:"issue_id" bson:"issue_id"`
	ContractorID       uint               `json:"contractor_id" bson:"contractor_id"`
	Title              string             `json:"title" bson:"title"`
	Contact            string             `json:"contact" bson:"contact"`
	Stages             []Stage            `json:"stages" bson:"stages"`
	CurrentStage       int                `json:"current_stage" bson:"current_stage"`
	Status             ProjectStatus      `json:"status" bson:"status"`
	AcceptanceComplete bool               `json:"acceptance_complete" bson:"acceptance_complete"`
	ActualCost         float64            `json:"actual_cost" bson:"actual_cost"`
	Completion         *Completion        `json:"completion,omitempty" bson:"completion,omitempty"`
	StartedAt          time.Time          `json:"started_at" bson:"started_at"`
	EndedAt            *time.Time         `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
	Version            int64              `json:"version" bson:"version"`
	CreatedAt          time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" bson:"updated_at"`
}

// NewStages builds the fixed pipeline with the first stage already active
func NewStages(now time.Time) []Stage {
	stages := make([]Stage, StageCount)
	for i := range stages {
		stages[i] = Stage{Name: StageNames[i], Status: StagePending}
	}
	stages[0].Status = StageInProgress
	stages[0].StartedAt = &now
	return stages
}

// TotalCost sums the per-stage costs
func TotalCost(stages []Stage) float64 {
	var total float64
	for _, s := range stages {
		total += s.Cost
	}
	return total
}

// CreateProjectRequest defines the request body for claiming an issue
type CreateProjectRequest struct {
	Title   string `json:"title" validate:"required,min=2,max=100"`
	Contact string `json:"contact" validate:"required,max=100"`
}

// AdvanceStageRequest defines the request body for completing a stage
type AdvanceStageRequest struct {
	Images      []string `json:"images,omitempty" validate:"omitempty,max=9,dive,required"`
	Description string   `json:"description,omitempty" validate:"max=1000"`
	Cost        float64  `json:"cost" validate:"min=0"`
}
