package models

import "time"

// CapabilityAdmin allows certification review, capability grants and reconciliation
const CapabilityAdmin = "admin"

// RoleGrant records that a user holds a capability
type RoleGrant struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UserID     uint      `json:"user_id" gorm:"uniqueIndex:idx_user_capability"`
	Capability string    `json:"capability" gorm:"size:40;uniqueIndex:idx_user_capability"`
	GrantedBy  uint      `json:"granted_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditEntry is an append-only record of a privileged action
type AuditEntry struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	ActorID   uint      `json:"actor_id" gorm:"index"`
	Action    string    `json:"action" gorm:"size:40;index"`
	SubjectID uint      `json:"subject_id" gorm:"index"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Audit actions
const (
	AuditGrant       = "capability.grant"
	AuditRevoke      = "capability.revoke"
	AuditCertApprove = "certification.approve"
	AuditCertReject  = "certification.reject"
	AuditCertRevoke  = "certification.revoke"
)
