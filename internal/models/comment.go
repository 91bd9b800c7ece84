package models

import "time"

// Comment is a node in an issue's discussion tree
type Comment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	IssueID   string    `json:"issue_id" gorm:"size:24;index"` // MongoDB ObjectID hex
	UserID    uint      `json:"user_id" gorm:"index"`
	ParentID  *uint     `json:"parent_id,omitempty" gorm:"index"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	ParentID *uint  `json:"parent_id,omitempty"`
	Content  string `json:"content" validate:"required,min=1,max=500"`
}
