package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess(t *testing.T) {
	tests := []struct {
		name          string
		raw           map[string]any
		expectedBody  string
		expectedImage string
		expectedErr   error
	}{
		{
			name:         "Simple body",
			raw:          map[string]any{"content": "Hello world"},
			expectedBody: "Hello world",
		},
		{
			name:          "Image reference is optional",
			raw:           map[string]any{"content": "Hello", "image_url": "https://cdn.example.com/a.png"},
			expectedBody:  "Hello",
			expectedImage: "https://cdn.example.com/a.png",
		},
		{
			name:         "Synonym field names are tolerated",
			raw:          map[string]any{"postContent": "From a legacy client"},
			expectedBody: "From a legacy client",
		},
		{
			name:         "Priority order prefers content over message",
			raw:          map[string]any{"message": "second", "content": "first"},
			expectedBody: "first",
		},
		{
			name:        "Missing body",
			raw:         map[string]any{"title": "no body here"},
			expectedErr: ErrEmptyContent,
		},
		{
			name:        "Whitespace-only body",
			raw:         map[string]any{"content": "   "},
			expectedErr: ErrEmptyContent,
		},
		{
			name:         "Whitespace runs collapse and ends trim",
			raw:          map[string]any{"content": "  Hello   \t world  "},
			expectedBody: "Hello world",
		},
		{
			name:         "Paragraph break after sentence end",
			raw:          map[string]any{"content": "First thought. Second thought! Third?"},
			expectedBody: "First thought.\n\nSecond thought!\n\nThird?",
		},
		{
			name:         "Control characters are stripped",
			raw:          map[string]any{"content": "clean\x00me\x07 please"},
			expectedBody: "cleanme please",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Process(tt.raw)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedBody, got.Body)
			assert.Equal(t, tt.expectedImage, got.ImageRef)
		})
	}
}

func TestProcessLengthBoundary(t *testing.T) {
	atLimit := strings.Repeat("a", MaxContentLength)
	got, err := Process(map[string]any{"content": atLimit})
	require.NoError(t, err)
	assert.Len(t, got.Body, MaxContentLength)

	over := strings.Repeat("a", MaxContentLength+1)
	_, err = Process(map[string]any{"content": over})
	require.Error(t, err)

	var lenErr *LengthError
	require.ErrorAs(t, err, &lenErr)
	assert.Equal(t, MaxContentLength+1, lenErr.Length)
	assert.Contains(t, err.Error(), "exceeds platform limit")
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"Hello world",
		"First. Second. Third.",
		"  messy\t\twhitespace \n everywhere  ",
		"Sentence one! Sentence two? Done.",
		"symbols #go @dev 100% (really) [yes] {sure} a/b a-b",
		"",
		"one.two.three. four",
	}
	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		assert.Equal(t, once, twice, "cleaning %q was not idempotent", in)
	}
}

func TestProcessPayload(t *testing.T) {
	got, err := ProcessPayload([]byte(`{"text":"from json","imageUrl":"x.png"}`))
	require.NoError(t, err)
	assert.Equal(t, "from json", got.Body)
	assert.Equal(t, "x.png", got.ImageRef)

	// Non-JSON payloads fall back to bare text.
	got, err = ProcessPayload([]byte("just plain text"))
	require.NoError(t, err)
	assert.Equal(t, "just plain text", got.Body)
}
