package models

import "time"

// Notification types
const (
	NotifyFollow     = "follow"
	NotifyProposal   = "proposal"
	NotifyClaimed    = "project_created"
	NotifyStage      = "stage_completed"
	NotifyCompleted  = "completed"
	NotifyCertReview = "certification_review"
)

// Notification represents a user notification (PostgreSQL)
type Notification struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Type        string    `json:"type" gorm:"size:30;index"`
	ActorID     uint      `json:"actor_id" gorm:"index"`
	RecipientID uint      `json:"recipient_id" gorm:"index"`
	TargetID    string    `json:"target_id"`                  // issue ID, project ID, user ID
	TargetType  string    `json:"target_type" gorm:"size:20"` // issue, project, user
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}
