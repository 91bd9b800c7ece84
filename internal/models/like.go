package models

import "time"

// Like represents a reaction on an issue
type Like struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	IssueID   string    `json:"issue_id" gorm:"size:24;index;uniqueIndex:idx_issue_user_like"` // MongoDB ObjectID hex
	UserID    uint      `json:"user_id" gorm:"index;uniqueIndex:idx_issue_user_like"`
	CreatedAt time.Time `json:"created_at"`
}
