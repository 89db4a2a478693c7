// Package engine orchestrates auto-posting sweeps over due scheduled posts.
//
// A sweep finds every pending LinkedIn post whose scheduled time has passed,
// claims each one through the store's conditional update, validates and cleans
// its content, publishes it through the external network client and records
// the outcome. Multiple trigger paths (platform cron, the local poller,
// manual endpoints) may run sweeps concurrently or in rapid succession; the
// claim discipline in the store, not any trigger-side lock, is what makes a
// post publish at most once.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"postpilot/internal/content"
	"postpilot/internal/middleware"
	"postpilot/internal/models"
	"postpilot/internal/observability"
	"postpilot/internal/publish"
	"postpilot/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Engine runs auto-posting sweeps.
type Engine struct {
	posts          repository.ScheduledPostRepository
	users          repository.UserRepository
	publisher      publish.Publisher
	publishTimeout time.Duration
	logger         *slog.Logger
	clock          func() time.Time
}

// NewEngine creates an engine. publishTimeout bounds each external publish call.
func NewEngine(
	posts repository.ScheduledPostRepository,
	users repository.UserRepository,
	publisher publish.Publisher,
	publishTimeout time.Duration,
) *Engine {
	return &Engine{
		posts:          posts,
		users:          users,
		publisher:      publisher,
		publishTimeout: publishTimeout,
		logger:         middleware.Logger,
		clock:          time.Now,
	}
}

// RunSweep executes one sweep and returns its report. trigger names the
// calling path ("cron", "manual", "poller") for logs and metrics only.
//
// Per-post failures never abort the sweep; each due post is handled to a
// terminal outcome independently. A store failure while finding due work
// aborts the whole sweep with no partial report, leaving every post pending
// for the next sweep.
func (e *Engine) RunSweep(ctx context.Context, trigger string) (*SweepReport, error) {
	sweepID := uuid.NewString()
	ctx = middleware.WithSweepID(ctx, sweepID)

	ctx, span := observability.Tracer.Start(ctx, "engine.RunSweep")
	defer span.End()
	span.SetAttributes(
		attribute.String("sweep.id", sweepID),
		attribute.String("sweep.trigger", trigger),
	)

	now := e.clock().UTC()
	start := time.Now()

	due, err := e.posts.FindDue(ctx, now)
	if err != nil {
		observability.SweepRuns.WithLabelValues(trigger, "error").Inc()
		return nil, fmt.Errorf("find due posts: %w", err)
	}

	report := &SweepReport{
		SweepID: sweepID,
		Errors:  []FailureEntry{},
		RanAt:   now,
	}

	e.logger.InfoContext(ctx, "sweep started",
		slog.String("trigger", trigger),
		slog.Int("due", len(due)),
	)

	for _, post := range due {
		e.processPost(ctx, post, report)
	}

	observability.SweepRuns.WithLabelValues(trigger, "ok").Inc()
	observability.SweepDuration.Observe(time.Since(start).Seconds())

	e.logger.InfoContext(ctx, "sweep finished",
		slog.String("trigger", trigger),
		slog.Int("processed", report.Processed),
		slog.Int("posted", report.Posted),
		slog.Int("failed", report.Failed),
		slog.Duration("elapsed", time.Since(start)),
	)

	return report, nil
}

// processPost takes one due post to a terminal outcome. Panics local to one
// post are converted into a failed transition plus a report entry.
func (e *Engine) processPost(ctx context.Context, post *models.ScheduledPost, report *SweepReport) {
	ctx, span := observability.Tracer.Start(ctx, "engine.processPost")
	defer span.End()
	span.SetAttributes(attribute.Int("post.id", int(post.ID)))

	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "panic while processing post",
				slog.Uint64("post_id", uint64(post.ID)),
				slog.Any("panic", r),
			)
			e.fail(ctx, post, report, fmt.Sprintf("internal error: %v", r))
		}
	}()

	claimed, err := e.posts.ClaimAttempt(ctx, post)
	if err != nil {
		// Post stays pending; a later sweep retries it.
		e.logger.ErrorContext(ctx, "claim failed",
			slog.Uint64("post_id", uint64(post.ID)),
			slog.String("error", err.Error()),
		)
		report.Failed++
		report.Errors = append(report.Errors, FailureEntry{PostID: post.ID, Reason: "claim failed: " + err.Error()})
		return
	}
	if !claimed {
		// A concurrent sweep got here first; it will finish the job.
		observability.ClaimConflicts.Inc()
		e.logger.InfoContext(ctx, "skipping post claimed by concurrent sweep",
			slog.Uint64("post_id", uint64(post.ID)),
		)
		return
	}

	report.Processed++

	user, err := e.users.GetByID(ctx, post.UserID)
	if err != nil {
		e.fail(ctx, post, report, "load post owner: "+err.Error())
		return
	}
	if !user.AutoPostEnabled {
		e.fail(ctx, post, report, "auto-posting not enabled for user")
		return
	}

	processed, err := content.ProcessPayload([]byte(post.Payload))
	if err != nil {
		// Invalid content cannot succeed on retry without user edits, so no
		// publish attempt is made.
		e.fail(ctx, post, report, err.Error())
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, e.publishTimeout)
	defer cancel()

	pubStart := time.Now()
	externalID, err := e.publisher.Publish(pubCtx, processed, publish.Credentials{
		AuthorURN:   user.LinkedInURN,
		AccessToken: user.LinkedInToken,
	})
	observability.ObservePublish(string(post.Platform), pubStart, err)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = fmt.Sprintf("publish timed out after %s", e.publishTimeout)
		}
		e.fail(ctx, post, report, reason)
		return
	}

	applied, err := e.posts.MarkPosted(ctx, post, externalID, e.clock().UTC())
	if err != nil {
		// Published but could not record it. Surface loudly; this is the one
		// window where a retry could double-post.
		e.logger.ErrorContext(ctx, "published but failed to record outcome",
			slog.Uint64("post_id", uint64(post.ID)),
			slog.String("external_post_id", externalID),
			slog.String("error", err.Error()),
		)
		report.Failed++
		report.Errors = append(report.Errors, FailureEntry{PostID: post.ID, Reason: "record outcome: " + err.Error()})
		return
	}
	if !applied {
		// The post left pending under our claim (e.g. cancelled mid-publish).
		observability.ClaimConflicts.Inc()
		e.logger.WarnContext(ctx, "post state changed during publish; outcome not recorded",
			slog.Uint64("post_id", uint64(post.ID)),
			slog.String("external_post_id", externalID),
		)
		return
	}

	observability.SweepPosts.WithLabelValues("posted").Inc()
	report.Posted++

	e.logger.InfoContext(ctx, "post published",
		slog.Uint64("post_id", uint64(post.ID)),
		slog.Uint64("user_id", uint64(post.UserID)),
		slog.String("external_post_id", externalID),
	)
}

// fail transitions the claimed post to failed with the given reason and
// records it in the report. A lost conditional update means another actor
// already moved the post; the report entry is kept either way so the caller
// sees what happened in this sweep.
func (e *Engine) fail(ctx context.Context, post *models.ScheduledPost, report *SweepReport, reason string) {
	applied, err := e.posts.MarkFailed(ctx, post, reason)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to record failure",
			slog.Uint64("post_id", uint64(post.ID)),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
	} else if !applied {
		e.logger.WarnContext(ctx, "failure not recorded; post no longer pending",
			slog.Uint64("post_id", uint64(post.ID)),
			slog.String("reason", reason),
		)
	}

	observability.SweepPosts.WithLabelValues("failed").Inc()
	report.Failed++
	report.Errors = append(report.Errors, FailureEntry{PostID: post.ID, Reason: reason})

	e.logger.WarnContext(ctx, "post failed",
		slog.Uint64("post_id", uint64(post.ID)),
		slog.String("reason", reason),
	)
}
