// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"time"

	"postpilot/internal/cache"
	"postpilot/internal/models"

	"gorm.io/gorm"
)

// ScheduledPostRepository defines the interface for scheduled post data operations.
//
// ClaimAttempt, MarkPosted, MarkFailed, Cancel and Requeue are conditional
// updates: they apply only when the row is still in the expected status and
// report whether they did. ClaimAttempt is the at-most-once primitive: a
// sweep that loses the claim must skip the post, because the winner is about
// to publish it.
type ScheduledPostRepository interface {
	Create(ctx context.Context, post *models.ScheduledPost) error
	GetByID(ctx context.Context, id uint) (*models.ScheduledPost, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.ScheduledPost, error)
	FindDue(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error)
	ClaimAttempt(ctx context.Context, post *models.ScheduledPost) (bool, error)
	MarkPosted(ctx context.Context, post *models.ScheduledPost, externalID string, postedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, post *models.ScheduledPost, reason string) (bool, error)
	Cancel(ctx context.Context, id, userID uint) (bool, error)
	Requeue(ctx context.Context, id, userID uint) (bool, error)
	Delete(ctx context.Context, id, userID uint) error
}

// scheduledPostRepository implements ScheduledPostRepository
type scheduledPostRepository struct {
	db *gorm.DB
}

// NewScheduledPostRepository creates a new scheduled post repository.
func NewScheduledPostRepository(db *gorm.DB) ScheduledPostRepository {
	return &scheduledPostRepository{db: db}
}

func (r *scheduledPostRepository) Create(ctx context.Context, post *models.ScheduledPost) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return err
	}
	cache.Invalidate(ctx, cache.ScheduleListKey(post.UserID))
	return nil
}

func (r *scheduledPostRepository) GetByID(ctx context.Context, id uint) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		return r.db.WithContext(ctx).First(&post, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *scheduledPostRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.ScheduledPost, error) {
	var posts []*models.ScheduledPost
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("scheduled_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// FindDue returns the pending LinkedIn posts due at the given instant,
// earliest-due first so a backlog drains in fairness order.
func (r *scheduledPostRepository) FindDue(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error) {
	var posts []*models.ScheduledPost
	err := r.db.WithContext(ctx).
		Where("status = ? AND platform = ? AND scheduled_at <= ?",
			models.StatusPending, models.PlatformLinkedIn, now).
		Order("scheduled_at ASC").
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// ClaimAttempt atomically increments the attempt counter, but only when the
// post is still pending and nobody raced us since we read it (the attempts
// value acts as the fencing token). Exactly one of any number of concurrent
// sweeps wins the claim.
func (r *scheduledPostRepository) ClaimAttempt(ctx context.Context, post *models.ScheduledPost) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ScheduledPost{}).
		Where("id = ? AND status = ? AND attempts = ?", post.ID, models.StatusPending, post.Attempts).
		Update("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	post.Attempts++
	cache.InvalidatePost(ctx, post.ID, post.UserID)
	return true, nil
}

func (r *scheduledPostRepository) MarkPosted(ctx context.Context, post *models.ScheduledPost, externalID string, postedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ScheduledPost{}).
		Where("id = ? AND status = ?", post.ID, models.StatusPending).
		Updates(map[string]interface{}{
			"status":           models.StatusPosted,
			"external_post_id": externalID,
			"posted_at":        postedAt,
			"last_error":       "",
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	post.Status = models.StatusPosted
	post.ExternalPostID = externalID
	post.PostedAt = &postedAt
	post.LastError = ""
	cache.InvalidatePost(ctx, post.ID, post.UserID)
	return true, nil
}

func (r *scheduledPostRepository) MarkFailed(ctx context.Context, post *models.ScheduledPost, reason string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ScheduledPost{}).
		Where("id = ? AND status = ?", post.ID, models.StatusPending).
		Updates(map[string]interface{}{
			"status":     models.StatusFailed,
			"last_error": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	post.Status = models.StatusFailed
	post.LastError = reason
	cache.InvalidatePost(ctx, post.ID, post.UserID)
	return true, nil
}

// Cancel moves an owner's pending post to cancelled. Cancellation is only
// meaningful before the post is claimed by a sweep; the conditional update
// makes a lost race harmless.
func (r *scheduledPostRepository) Cancel(ctx context.Context, id, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ScheduledPost{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, models.StatusPending).
		Update("status", models.StatusCancelled)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	cache.InvalidatePost(ctx, id, userID)
	return true, nil
}

// Requeue is the explicit recovery path for failed posts: failed posts are
// never retried automatically, the owner (or an operator) puts them back.
func (r *scheduledPostRepository) Requeue(ctx context.Context, id, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ScheduledPost{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, models.StatusFailed).
		Update("status", models.StatusPending)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	cache.InvalidatePost(ctx, id, userID)
	return true, nil
}

func (r *scheduledPostRepository) Delete(ctx context.Context, id, userID uint) error {
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.ScheduledPost{}).Error
	if err != nil {
		return err
	}
	cache.InvalidatePost(ctx, id, userID)
	return nil
}
