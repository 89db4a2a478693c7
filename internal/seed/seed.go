// Package seed provides helpers to create development and demo data. These
// helpers are intended for development and testing only.
package seed

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"postpilot/internal/models"
	"postpilot/internal/timeutil"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options controls how much data Seed generates.
type Options struct {
	Users            int
	PostsPerUser     int
	DueFraction      float64 // fraction of pending posts scheduled in the past
	ClearFirst       bool
	DisableSomeUsers bool // leave some users without the auto-post entitlement
}

// DefaultOptions matches a useful local-dev dataset.
func DefaultOptions() Options {
	return Options{
		Users:            8,
		PostsPerUser:     6,
		DueFraction:      0.3,
		ClearFirst:       true,
		DisableSomeUsers: true,
	}
}

// Seed populates the database with fake users and scheduled posts across the
// whole status space, including a handful of already-due pending posts so a
// manual sweep has something to do immediately.
func Seed(db *gorm.DB, opts Options) error {
	gofakeit.Seed(time.Now().UnixNano())
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	log.Println("Starting database seeding...")

	if opts.ClearFirst {
		if err := clearData(db); err != nil {
			return fmt.Errorf("failed to clear data: %w", err)
		}
	}

	users, err := createUsers(db, opts)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("Created %d users", len(users))

	total := 0
	for _, user := range users {
		posts, err := createScheduledPosts(db, r, user, opts)
		if err != nil {
			return fmt.Errorf("failed to create posts for user %d: %w", user.ID, err)
		}
		total += len(posts)
	}
	log.Printf("Created %d scheduled posts", total)

	log.Println("Database seeding completed")
	return nil
}

func clearData(db *gorm.DB) error {
	if err := db.Exec("DELETE FROM scheduled_posts").Error; err != nil {
		return err
	}
	return db.Exec("DELETE FROM users").Error
}

func createUsers(db *gorm.DB, opts Options) ([]*models.User, error) {
	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		enabled := true
		if opts.DisableSomeUsers && i%4 == 3 {
			enabled = false
		}
		user := &models.User{
			Email:           gofakeit.Email(),
			Name:            gofakeit.Name(),
			LinkedInURN:     fmt.Sprintf("urn:li:person:%s", gofakeit.LetterN(10)),
			LinkedInToken:   gofakeit.UUID(),
			AutoPostEnabled: enabled,
			IsAdmin:         i == 0,
		}
		if err := db.Create(user).Error; err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// payloadVariants mirrors the loose field naming seen from real scheduling
// clients so dev data exercises the synonym table.
var payloadVariants = []string{"content", "text", "body", "postContent", "message"}

func createScheduledPosts(db *gorm.DB, r *rand.Rand, user *models.User, opts Options) ([]*models.ScheduledPost, error) {
	posts := make([]*models.ScheduledPost, 0, opts.PostsPerUser)
	now := time.Now().UTC()

	for i := 0; i < opts.PostsPerUser; i++ {
		field := payloadVariants[r.Intn(len(payloadVariants))]
		payload := map[string]any{
			field: gofakeit.Paragraph(1, 3, 12, " "),
		}
		if r.Intn(2) == 0 {
			payload["imageUrl"] = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}

		post := &models.ScheduledPost{
			UserID:   user.ID,
			Payload:  string(raw),
			Platform: models.PlatformLinkedIn,
			Status:   models.StatusPending,
		}

		switch r.Intn(10) {
		case 0: // already published
			post.Status = models.StatusPosted
			postedAt := now.Add(-time.Duration(r.Intn(72)) * time.Hour)
			post.ScheduledAt = postedAt.Add(-time.Minute)
			post.PostedAt = &postedAt
			post.Attempts = 1
			post.ExternalPostID = fmt.Sprintf("urn:li:share:%s", gofakeit.LetterN(12))
		case 1: // failed, awaiting requeue
			post.Status = models.StatusFailed
			post.ScheduledAt = now.Add(-time.Duration(r.Intn(48)) * time.Hour)
			post.Attempts = 1
			post.LastError = "publish rejected by platform: status 500"
		case 2: // cancelled by the owner
			post.Status = models.StatusCancelled
			post.ScheduledAt = now.Add(time.Duration(r.Intn(48)) * time.Hour)
		default:
			if r.Float64() < opts.DueFraction {
				post.ScheduledAt = now.Add(-time.Duration(1+r.Intn(120)) * time.Minute)
			} else {
				post.ScheduledAt = now.Add(time.Duration(1+r.Intn(7*24*60)) * time.Minute)
			}
		}

		if err := db.Create(post).Error; err != nil {
			return nil, err
		}
		log.Printf("  post %d for %s: %s (local %s)",
			post.ID, user.Email, post.Status, timeutil.ToLocalDisplay(post.ScheduledAt))
		posts = append(posts, post)
	}
	return posts, nil
}
