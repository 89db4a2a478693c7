package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"postpilot/internal/content"
)

// LinkedInClient publishes UGC posts through the LinkedIn REST API.
type LinkedInClient struct {
	baseURL string
	http    *http.Client
}

// NewLinkedInClient creates a LinkedIn publisher. The timeout bounds the whole
// publish call including connection setup and response read.
func NewLinkedInClient(baseURL string, timeout time.Duration) *LinkedInClient {
	return &LinkedInClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type shareCommentary struct {
	Text string `json:"text"`
}

type shareContent struct {
	ShareCommentary    shareCommentary `json:"shareCommentary"`
	ShareMediaCategory string          `json:"shareMediaCategory"`
	Media              []shareMedia    `json:"media,omitempty"`
}

type shareMedia struct {
	Status      string `json:"status"`
	OriginalURL string `json:"originalUrl"`
}

type ugcPostRequest struct {
	Author          string                  `json:"author"`
	LifecycleState  string                  `json:"lifecycleState"`
	SpecificContent map[string]shareContent `json:"specificContent"`
	Visibility      map[string]string       `json:"visibility"`
}

type ugcPostResponse struct {
	ID string `json:"id"`
}

// Publish creates a UGC post as the credentialed member and returns the
// post ID assigned by LinkedIn.
func (c *LinkedInClient) Publish(ctx context.Context, processed content.Processed, creds Credentials) (string, error) {
	mediaCategory := "NONE"
	var media []shareMedia
	if processed.ImageRef != "" {
		mediaCategory = "IMAGE"
		media = []shareMedia{{Status: "READY", OriginalURL: processed.ImageRef}}
	}

	reqBody := ugcPostRequest{
		Author:         creds.AuthorURN,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]shareContent{
			"com.linkedin.ugc.ShareContent": {
				ShareCommentary:    shareCommentary{Text: processed.Body},
				ShareMediaCategory: mediaCategory,
				Media:              media,
			},
		},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode publish request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/ugcPosts", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("publish call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("publish rejected by platform: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	// LinkedIn returns the new post ID both in the X-RestLi-Id header and the body.
	if id := resp.Header.Get("X-RestLi-Id"); id != "" {
		return id, nil
	}
	var parsed ugcPostResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.ID != "" {
		return parsed.ID, nil
	}
	return "", fmt.Errorf("publish succeeded but no post ID was returned")
}
