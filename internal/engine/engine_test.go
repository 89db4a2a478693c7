package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"postpilot/internal/models"
	"postpilot/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(posts *testutil.PostStoreStub, users *testutil.UserRepoStub, pub *testutil.PublisherStub) *Engine {
	e := NewEngine(posts, users, pub, 5*time.Second)
	e.clock = func() time.Time { return testNow }
	return e
}

func duePost(userID uint, payload string) *models.ScheduledPost {
	return &models.ScheduledPost{
		UserID:      userID,
		Payload:     payload,
		Platform:    models.PlatformLinkedIn,
		ScheduledAt: testNow.Add(-5 * time.Minute),
		Status:      models.StatusPending,
	}
}

func TestEngine_RunSweep_HappyPath(t *testing.T) {
	posts := testutil.NewPostStoreStub()
	users := testutil.NewUserRepoStub(testutil.EnabledUser(1))
	pub := &testutil.PublisherStub{ExternalID: "abc123"}

	p := posts.Seed(duePost(1, `{"content":"Hello world. This is fine!"}`))

	e := newTestEngine(posts, users, pub)
	report, err := e.RunSweep(context.Background(), "cron")

	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Posted)
	assert.Equal(t, 0, report.Failed)
	assert.Empty(t, report.Errors)
	assert.NotEmpty(t, report.SweepID)
	assert.Equal(t, 1, pub.Calls())

	stored, ok := posts.Snapshot(p.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusPosted, stored.Status)
	assert.Equal(t, "abc123", stored.ExternalPostID)
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.PostedAt)
	assert.Equal(t, testNow, *stored.PostedAt)
	assert.Empty(t, stored.LastError)
}

func TestEngine_RunSweep_PublishesCleanedContent(t *testing.T) {
	posts := testutil.NewPostStoreStub()
	users := testutil.NewUserRepoStub(testutil.EnabledUser(1))
	pub := &testutil.PublisherStub{}

	posts.Seed(duePost(1, `{"content":"  First thought.   Second thought!  "}`))

	e := newTestEngine(posts, users, pub)
	_, err := e.RunSweep(context.Background(), "cron")
	require.NoError(t, err)

	bodies := pub.Bodies()
	require.Len(t, bodies, 1)
	assert.Equal(t, "First thought.\n\nSecond thought!", bodies[0])
}

func TestEngine_RunSweep_SkipsNotDueAndTerminal(t *testing.T) {
	posts := testutil.NewPostStoreStub()
	users := testutil.NewUserRepoStub(testutil.EnabledUser(1))
	pub := &testutil.PublisherStub{}

	future := duePost(1, `{"content":"later"}`)
	future.ScheduledAt = testNow.Add(time.Hour)
	posts.Seed(future)

	cancelled := duePost(1, `{"content":"cancelled"}`)
	cancelled.Status = models.StatusCancelled
	posts.Seed(cancelled)

	otherPlatform := duePost(1, `{"content":"elsewhere"}`)
	otherPlatform.Platform = models.PlatformTwitter
	posts.Seed(otherPlatform)

	e := newTestEngine(posts, users, pub)
	report, err := e.RunSweep(context.Background(), "cron")

	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 0, pub.Calls())
}

func TestEngine_RunSweep_ProcessesInScheduledOrder(t *testing.T) {
	posts := testutil.NewPostStoreStub()
	users := testutil.NewUserRepoStub(testutil.EnabledUser(1))
	pub := &testutil.PublisherStub{}

	second := duePost(1, `{"content":"second"}`)
	second.ScheduledAt = testNow.Add(-1 * time.Minute)
	posts.Seed(second)

	first := duePost(1, `{"content":"first"}`)
	first.ScheduledAt = testNow.Add(-10 * time.Minute)
	posts.Seed(first)

	e := newTestEngine(posts, users, pub)
	report, err := e.RunSweep(context.Background(), "poller")

	require.NoError(t, err)
	assert.Equal(t, 2, report.Posted)
	assert.Equal(t, []string{"first", "second"}, pub.Bodies())
}

func TestEngine_RunSweep_EmptyContentFailsWithoutPublish(t *testing.T) {
	posts := testutil.NewPostStoreStub()
	users := testutil.NewUserRepoStub(testutil.EnabledUser(1))
	pub := &testutil.PublisherStub{}

	p := posts.Seed(duePost(1, `{"content":"   "}`))

	e := newTestEngine(posts, users, pub)
	report, err := e.RunSweep(context.Background(), "cron")

	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, p.ID, report.Errors[0].PostID)
	assert.Equal(t, 0, pub.Calls(), "empty content must never reach the network")

	stored, _ := posts.Snapshot(p.ID)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Contains(t, stored.LastError, "empty")
}

func TestEngine_RunSweep_OverlongContentFailsWithoutPublish(t *testing.T) {
	posts := testutil.NewPostStoreStub()
	users := testutil.NewUserRepoStub(testutil.EnabledUser(1))
	pub := &testutil.PublisherStub{}

	long := strings.Repeat("a", 3001)
	p := posts.Seed(duePost(1, `{"content":"`+long+`"}`))

	e := newTestEngine(posts, users, pub)
	report, err := e.RunSweep(context.Background(), "cron")

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, pub.Calls())

	stored, _ := posts.Snapshot(p.ID)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Contains(t, stored.LastError, "3001")
}

func TestEngine_RunSweep_PublishErrorMarksFailed(t *testing.T) {
	posts := testutil.NewPostStoreStub()
	users := testutil.NewUserRepoStub(testutil.EnabledUser(1))
	pub := &testutil.PublisherStub{Err: testutil.ErrPublishRejected}

	p := posts.Seed(duePost(1, `{"content":"hello"}`))

	e := newTestEngine(posts, users, pub)
	report, err := e.RunSweep(context.Background(), "cron")

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, pub.Calls())

	stored, _ := posts.Snapshot(p.ID)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Contains(t, stored.LastError, "publish rejected")
	assert.Equal(t, 1, stored.Attempts)
}

func TestEngine_RunSweep_PublishTimeoutMarksFailed(t *testing.T) {
	posts := testutil.NewPostStoreStub()
	users := testutil.NewUserRepoStub(testutil.EnabledUser(1))
	pub := &testutil.PublisherStub{Delay: 200 * time.Millisecond}

	p := posts.Seed(duePost(1, `{"content":"hello"}`))

	e := NewEngine(posts, users, pub, 20*time.Millisecond)
	e.clock = func() time.Time { return testNow }
	report, err := e.RunSweep(context.Background(), "cron")

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	stored, _ := posts.Snapshot(p.ID)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Contains(t, stored.LastError, "timed out")
}

func TestEngine_RunSweep_AutoPostDisabled(t *testing.T) {
	posts := testutil.NewPostStoreStub()
	disabled := testutil.EnabledUser(1)
	disabled.AutoPostEnabled = false
	users := testutil.NewUserRepoStub(disabled)
	pub := &testutil.PublisherStub{}

	p := posts.Seed(duePost(1, `{"content":"hello"}`))

	e := newTestEngine(posts, users, pub)
	report, err := e.RunSweep(context.Background(), "cron")

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, pub.Calls())

	stored, _ := posts.Snapshot(p.ID)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Contains(t, stored.LastError, "not enabled")
}

func TestEngine_RunSweep_MissingOwnerMarksFailed(t *testing.T) {
	posts := testutil.NewPostStoreStub()
	users := testutil.NewUserRepoStub() // no users at all
	pub := &testutil.PublisherStub{}

	p := posts.Seed(duePost(99, `{"content":"hello"}`))

	e := newTestEngine(posts, users, pub)
	report, err := e.RunSweep(context.Background(), "cron")

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, pub.Calls())

	stored, _ := posts.Snapshot(p.ID)
	assert.Equal(t, models.StatusFailed, stored.Status)
}

func TestEngine_RunSweep_StoreUnreachableAbortsSweep(t *testing.T) {
	posts := testutil.NewPostStoreStub()
	posts.FindDueErr = assert.AnError
	users := testutil.NewUserRepoStub(testutil.EnabledUser(1))
	pub := &testutil.PublisherStub{}

	e := newTestEngine(posts, users, pub)
	report, err := e.RunSweep(context.Background(), "cron")

	require.Error(t, err)
	assert.Nil(t, report)
	assert.Equal(t, 0, pub.Calls())
}

func TestEngine_RunSweep_PanicIsIsolatedToThePost(t *testing.T) {
	posts := testutil.NewPostStoreStub()
	users := testutil.NewUserRepoStub(testutil.EnabledUser(1))
	pub := &testutil.PublisherStub{PanicMsg: "boom"}

	p := posts.Seed(duePost(1, `{"content":"hello"}`))

	e := newTestEngine(posts, users, pub)

	var report *SweepReport
	var err error
	require.NotPanics(t, func() {
		report, err = e.RunSweep(context.Background(), "cron")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Reason, "internal error")
	assert.Contains(t, report.Errors[0].Reason, "boom")

	stored, _ := posts.Snapshot(p.ID)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Contains(t, stored.LastError, "boom")
}

// Two sweeps racing over the same due post must produce exactly one publish
// call and exactly one terminal transition; the loser of the claim skips.
func TestEngine_RunSweep_ConcurrentSweepsPublishAtMostOnce(t *testing.T) {
	posts := testutil.NewPostStoreStub()
	users := testutil.NewUserRepoStub(testutil.EnabledUser(1))
	pub := &testutil.PublisherStub{ExternalID: "only-once"}

	p := posts.Seed(duePost(1, `{"content":"race me"}`))

	e := newTestEngine(posts, users, pub)

	const sweeps = 8
	reports := make([]*SweepReport, sweeps)
	errs := make([]error, sweeps)
	var wg sync.WaitGroup
	for i := 0; i < sweeps; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], errs[i] = e.RunSweep(context.Background(), "manual")
		}(i)
	}
	wg.Wait()

	for i := 0; i < sweeps; i++ {
		require.NoError(t, errs[i])
	}

	assert.Equal(t, 1, pub.Calls(), "the post must be published exactly once")

	totalProcessed, totalPosted := 0, 0
	for _, r := range reports {
		totalProcessed += r.Processed
		totalPosted += r.Posted
	}
	assert.Equal(t, 1, totalProcessed)
	assert.Equal(t, 1, totalPosted)

	stored, _ := posts.Snapshot(p.ID)
	assert.Equal(t, models.StatusPosted, stored.Status)
	assert.Equal(t, "only-once", stored.ExternalPostID)
	assert.Equal(t, 1, stored.Attempts)
}

func TestEngine_RunSweep_FailedPostIsNotRetriedBySubsequentSweep(t *testing.T) {
	posts := testutil.NewPostStoreStub()
	users := testutil.NewUserRepoStub(testutil.EnabledUser(1))
	pub := &testutil.PublisherStub{Err: testutil.ErrPublishRejected}

	posts.Seed(duePost(1, `{"content":"hello"}`))

	e := newTestEngine(posts, users, pub)
	_, err := e.RunSweep(context.Background(), "cron")
	require.NoError(t, err)
	require.Equal(t, 1, pub.Calls())

	// A second sweep finds nothing; the post is failed, not pending.
	report, err := e.RunSweep(context.Background(), "cron")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 1, pub.Calls())
}
