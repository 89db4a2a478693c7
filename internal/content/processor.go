// Package content validates and normalizes raw scheduled-post payloads into
// publishable content.
//
// Scheduling clients have historically been loose about field names, so the
// body and image reference are extracted from a small synonym table tried in
// priority order. Cleaning is deterministic and idempotent: running the
// processor on its own output yields the same output.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxContentLength is the hard body limit of the target network (LinkedIn).
const MaxContentLength = 3000

// bodyFields and imageFields are the accepted payload field names, in
// priority order. First non-empty match wins.
var (
	bodyFields  = []string{"content", "text", "body", "postContent", "post_content", "message"}
	imageFields = []string{"image", "imageUrl", "image_url", "mediaUrl", "media_url"}
)

var (
	// disallowedRunes strips anything outside a conservative allow-list of
	// word characters, whitespace and common punctuation, so control or
	// encoding garbage never reaches the external API.
	disallowedRunes = regexp.MustCompile(`[^\w\s.,!?;:'"()\[\]{}@#&%+=*/-]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	sentenceEnds    = regexp.MustCompile(`([.!?]) `)
)

// ErrEmptyContent rejects payloads whose body is missing or whitespace-only.
var ErrEmptyContent = errors.New("empty content")

// LengthError rejects bodies over MaxContentLength, carrying the measured length.
type LengthError struct {
	Length int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("exceeds platform limit: %d characters (max %d)", e.Length, MaxContentLength)
}

// Processed is a validated, publish-ready payload.
type Processed struct {
	Body     string
	ImageRef string
}

// Process validates a raw payload and returns publishable content or the
// rejection reason. The input map is never mutated.
func Process(raw map[string]any) (Processed, error) {
	body := extractString(raw, bodyFields)
	if strings.TrimSpace(body) == "" {
		return Processed{}, ErrEmptyContent
	}

	cleaned := Clean(body)
	if n := utf8.RuneCountInString(cleaned); n > MaxContentLength {
		return Processed{}, &LengthError{Length: n}
	}

	return Processed{
		Body:     cleaned,
		ImageRef: extractString(raw, imageFields),
	}, nil
}

// ProcessPayload decodes a stored raw payload and processes it. Payloads that
// are not JSON objects are treated as a bare text body, which keeps very old
// scheduling clients working.
func ProcessPayload(payload []byte) (Processed, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		raw = map[string]any{"content": string(payload)}
	}
	return Process(raw)
}

// Clean normalizes a body for publishing: strips disallowed runes, collapses
// whitespace runs to single spaces, trims the ends, then reintroduces a
// paragraph break after sentence-ending punctuation for on-platform
// readability. Clean(Clean(s)) == Clean(s) for all s.
func Clean(body string) string {
	s := disallowedRunes.ReplaceAllString(body, "")
	s = whitespaceRuns.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = sentenceEnds.ReplaceAllString(s, "$1\n\n")
	return s
}

func extractString(raw map[string]any, fields []string) string {
	for _, f := range fields {
		if v, ok := raw[f]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}
