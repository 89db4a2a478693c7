// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Platform identifies the target social network of a scheduled post.
type Platform string

// Supported platforms. Only LinkedIn is actively published by the engine;
// other values are stored but never selected for a sweep.
const (
	PlatformLinkedIn Platform = "linkedin"
	PlatformTwitter  Platform = "twitter"
	PlatformFacebook Platform = "facebook"
)

// PostStatus is the lifecycle state of a scheduled post.
type PostStatus string

const (
	StatusPending   PostStatus = "pending"
	StatusPosted    PostStatus = "posted"
	StatusFailed    PostStatus = "failed"
	StatusCancelled PostStatus = "cancelled"
)

// ScheduledPost is one user's intent to publish content at a future instant.
//
// The engine only ever mutates the status-related fields (Status, Attempts,
// LastError, ExternalPostID, PostedAt); everything else belongs to the user.
// PostedAt is set if and only if Status == posted. A cancelled post is never
// touched by the engine again.
type ScheduledPost struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`
	User   User `gorm:"foreignKey:UserID" json:"-"`
	// Payload is the post body exactly as the scheduling client submitted it
	// (raw JSON). Field extraction and cleaning happen at publish time so the
	// stored intent is never rewritten.
	Payload     string     `gorm:"type:jsonb;not null" json:"payload"`
	Platform    Platform   `gorm:"type:varchar(32);not null;default:linkedin;index" json:"platform"`
	ScheduledAt time.Time  `gorm:"not null;index" json:"scheduled_at"`
	Status      PostStatus `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	Attempts    int        `gorm:"not null;default:0" json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	// ExternalPostID is the identifier the social network returned on success.
	ExternalPostID string     `json:"external_post_id,omitempty"`
	PostedAt       *time.Time `json:"posted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Due reports whether the post is eligible for publishing at the given instant.
func (p *ScheduledPost) Due(now time.Time) bool {
	return p.Status == StatusPending && !p.ScheduledAt.After(now)
}

// Terminal reports whether the engine will never touch this post again.
func (p *ScheduledPost) Terminal() bool {
	return p.Status == StatusPosted || p.Status == StatusCancelled
}
