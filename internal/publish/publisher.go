// Package publish abstracts the external social-network publish call.
package publish

import (
	"context"

	"postpilot/internal/content"
)

// Credentials identifies the member a post is published as.
type Credentials struct {
	// AuthorURN is the platform member URN (e.g. "urn:li:person:xxxx").
	AuthorURN string
	// AccessToken is the member's OAuth token.
	AccessToken string
}

// Publisher performs the external publish call. Implementations must be
// blocking with a bounded timeout and return either the external post ID or
// an error; the engine treats any error (including timeouts) as a failed
// publish attempt.
type Publisher interface {
	Publish(ctx context.Context, processed content.Processed, creds Credentials) (string, error)
}
