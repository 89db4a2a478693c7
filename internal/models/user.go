package models

import (
	"time"
)

// User is the owner of scheduled posts. Account creation and session handling
// live in the external auth service; this service only reads the publishing
// credentials and the auto-post entitlement flag.
type User struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Name  string `json:"name"`
	// LinkedInURN is the member URN used as the author of published posts.
	LinkedInURN string `json:"linkedin_urn,omitempty"`
	// LinkedInToken is the OAuth access token for the publish call. Never
	// serialized in API responses.
	LinkedInToken string `json:"-"`
	// AutoPostEnabled is the yes/no capability check maintained by billing.
	AutoPostEnabled bool      `gorm:"not null;default:false" json:"auto_post_enabled"`
	IsAdmin         bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
