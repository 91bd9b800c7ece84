package models

import "time"

// Follow is a directed edge; its existence is the source of truth for follower counts
type Follow struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	FollowerID  uint      `json:"follower_id" gorm:"index;uniqueIndex:idx_follower_following"`
	FollowingID uint      `json:"following_id" gorm:"index;uniqueIndex:idx_follower_following"`
	IsMutual    bool      `json:"is_mutual" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`
}
