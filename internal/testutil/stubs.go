// Package testutil provides shared test doubles and fixtures.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"postpilot/internal/content"
	"postpilot/internal/models"
	"postpilot/internal/publish"

	"gorm.io/gorm"
)

// PostStoreStub is an in-memory ScheduledPostRepository with the same
// conditional-update semantics as the real store. All methods are safe for
// concurrent use, and reads return copies so callers hold independent
// snapshots, which is what the claim fencing relies on.
type PostStoreStub struct {
	mu     sync.Mutex
	posts  map[uint]*models.ScheduledPost
	nextID uint

	// FindDueErr simulates an unreachable store.
	FindDueErr error
}

// NewPostStoreStub creates an empty in-memory scheduled post store.
func NewPostStoreStub() *PostStoreStub {
	return &PostStoreStub{posts: make(map[uint]*models.ScheduledPost), nextID: 1}
}

// Seed inserts a post directly, assigning an ID when missing.
func (s *PostStoreStub) Seed(post *models.ScheduledPost) *models.ScheduledPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	if post.ID == 0 {
		post.ID = s.nextID
		s.nextID++
	} else if post.ID >= s.nextID {
		s.nextID = post.ID + 1
	}
	cp := *post
	s.posts[post.ID] = &cp
	return post
}

// Snapshot returns a copy of the stored post, for assertions.
func (s *PostStoreStub) Snapshot(id uint) (models.ScheduledPost, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return models.ScheduledPost{}, false
	}
	return *p, true
}

func (s *PostStoreStub) Create(_ context.Context, post *models.ScheduledPost) error {
	s.Seed(post)
	return nil
}

func (s *PostStoreStub) GetByID(_ context.Context, id uint) (*models.ScheduledPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *PostStoreStub) ListByUser(_ context.Context, userID uint, limit, offset int) ([]*models.ScheduledPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ScheduledPost
	for _, p := range s.posts {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *PostStoreStub) FindDue(_ context.Context, now time.Time) ([]*models.ScheduledPost, error) {
	if s.FindDueErr != nil {
		return nil, s.FindDueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*models.ScheduledPost
	for _, p := range s.posts {
		if p.Status == models.StatusPending && p.Platform == models.PlatformLinkedIn && !p.ScheduledAt.After(now) {
			cp := *p
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(due[j].ScheduledAt) })
	return due, nil
}

func (s *PostStoreStub) ClaimAttempt(_ context.Context, post *models.ScheduledPost) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.posts[post.ID]
	if !ok || stored.Status != models.StatusPending || stored.Attempts != post.Attempts {
		return false, nil
	}
	stored.Attempts++
	post.Attempts++
	return true, nil
}

func (s *PostStoreStub) MarkPosted(_ context.Context, post *models.ScheduledPost, externalID string, postedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.posts[post.ID]
	if !ok || stored.Status != models.StatusPending {
		return false, nil
	}
	stored.Status = models.StatusPosted
	stored.ExternalPostID = externalID
	stored.PostedAt = &postedAt
	stored.LastError = ""
	stored.Attempts = post.Attempts

	post.Status = models.StatusPosted
	post.ExternalPostID = externalID
	post.PostedAt = &postedAt
	post.LastError = ""
	return true, nil
}

func (s *PostStoreStub) MarkFailed(_ context.Context, post *models.ScheduledPost, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.posts[post.ID]
	if !ok || stored.Status != models.StatusPending {
		return false, nil
	}
	stored.Status = models.StatusFailed
	stored.LastError = reason
	stored.Attempts = post.Attempts

	post.Status = models.StatusFailed
	post.LastError = reason
	return true, nil
}

func (s *PostStoreStub) Cancel(_ context.Context, id, userID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.posts[id]
	if !ok || stored.UserID != userID || stored.Status != models.StatusPending {
		return false, nil
	}
	stored.Status = models.StatusCancelled
	return true, nil
}

func (s *PostStoreStub) Requeue(_ context.Context, id, userID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.posts[id]
	if !ok || stored.UserID != userID || stored.Status != models.StatusFailed {
		return false, nil
	}
	stored.Status = models.StatusPending
	return true, nil
}

func (s *PostStoreStub) Delete(_ context.Context, id, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.posts[id]
	if ok && stored.UserID == userID {
		delete(s.posts, id)
	}
	return nil
}

// UserRepoStub is an in-memory UserRepository.
type UserRepoStub struct {
	mu    sync.Mutex
	users map[uint]*models.User
}

// NewUserRepoStub creates a user repo stub pre-loaded with the given users.
func NewUserRepoStub(users ...*models.User) *UserRepoStub {
	s := &UserRepoStub{users: make(map[uint]*models.User)}
	for _, u := range users {
		cp := *u
		s.users[u.ID] = &cp
	}
	return s
}

// EnabledUser is a convenience fixture: a user entitled to auto-posting with
// LinkedIn credentials in place.
func EnabledUser(id uint) *models.User {
	return &models.User{
		ID:              id,
		Email:           "user@example.com",
		LinkedInURN:     "urn:li:person:42",
		LinkedInToken:   "token-42",
		AutoPostEnabled: true,
	}
}

func (s *UserRepoStub) GetByID(_ context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *UserRepoStub) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// PublisherStub is a publish.Publisher test double that records calls.
type PublisherStub struct {
	mu     sync.Mutex
	calls  int
	bodies []string

	// ExternalID is returned on success (default "stub-post-id").
	ExternalID string
	// Err, when set, makes every publish fail.
	Err error
	// Delay simulates a slow external API.
	Delay time.Duration
	// PanicMsg, when set, makes Publish panic. Used to verify failure isolation.
	PanicMsg string
}

var _ publish.Publisher = (*PublisherStub)(nil)

func (p *PublisherStub) Publish(ctx context.Context, processed content.Processed, _ publish.Credentials) (string, error) {
	p.mu.Lock()
	p.calls++
	p.bodies = append(p.bodies, processed.Body)
	p.mu.Unlock()

	if p.PanicMsg != "" {
		panic(p.PanicMsg)
	}
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.Err != nil {
		return "", p.Err
	}
	if p.ExternalID != "" {
		return p.ExternalID, nil
	}
	return "stub-post-id", nil
}

// Calls reports how many publish calls were made.
func (p *PublisherStub) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Bodies returns the published bodies in call order.
func (p *PublisherStub) Bodies() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.bodies...)
}

// ErrPublishRejected is a ready-made publish failure for tests.
var ErrPublishRejected = errors.New("publish rejected by platform: status 500")
