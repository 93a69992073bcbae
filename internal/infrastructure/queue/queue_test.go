package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestQueue(t *testing.T, config Config) *JobQueue {
	t.Helper()

	q, err := NewJobQueue(config, zap.NewNop())
	require.NoError(t, err)
	return q
}

func startQueue(t *testing.T, q *JobQueue) {
	t.Helper()

	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
}

func TestEnqueue_UnknownTypeFailsSynchronously(t *testing.T) {
	q := newTestQueue(t, DefaultConfig())
	q.Register(JobSyncScheduled, func(ctx context.Context, job *Job) error { return nil })
	startQueue(t, q)

	_, err := q.Enqueue(JobType("video:transcode"), PriorityNormal, nil)

	assert.ErrorIs(t, err, ErrUnknownJobType)
}

func TestEnqueue_RequiresRegisteredHandler(t *testing.T) {
	q := newTestQueue(t, DefaultConfig())
	startQueue(t, q)

	_, err := q.Enqueue(JobAnalyticsRollup, PriorityLow, nil)

	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestEnqueue_RejectsWhenNotRunning(t *testing.T) {
	q := newTestQueue(t, DefaultConfig())
	q.Register(JobSyncScheduled, func(ctx context.Context, job *Job) error { return nil })

	_, err := q.Enqueue(JobSyncScheduled, PriorityNormal, nil)

	assert.ErrorIs(t, err, ErrQueueNotRunning)
}

func TestEnqueue_InvalidPriority(t *testing.T) {
	q := newTestQueue(t, DefaultConfig())
	q.Register(JobSyncScheduled, func(ctx context.Context, job *Job) error { return nil })
	startQueue(t, q)

	_, err := q.Enqueue(JobSyncScheduled, Priority(11), nil)

	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestEnqueue_ReturnsJobIDImmediately(t *testing.T) {
	q := newTestQueue(t, DefaultConfig())
	release := make(chan struct{})
	q.Register(JobSyncScheduled, func(ctx context.Context, job *Job) error {
		<-release
		return nil
	})
	startQueue(t, q)

	id, err := q.Enqueue(JobSyncScheduled, PriorityNormal, nil)
	close(release)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
}

func TestEnqueue_NormalizesSyncPayload(t *testing.T) {
	q := newTestQueue(t, DefaultConfig())
	payloads := make(chan map[string]any, 1)
	q.Register(JobSyncScheduled, func(ctx context.Context, job *Job) error {
		payloads <- job.Payload
		return nil
	})
	startQueue(t, q)

	_, err := q.Enqueue(JobSyncScheduled, PriorityNormal, map[string]any{"organizationId": "org-1"})
	require.NoError(t, err)

	select {
	case payload := <-payloads:
		assert.Equal(t, []string{"shopify", "meta"}, payload["platforms"])
		assert.Equal(t, "incremental", payload["syncType"])
		assert.Equal(t, "system", payload["triggeredBy"])
		assert.Equal(t, "org-1", payload["organizationId"])
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestEnqueue_SinglePlatformAndManualTrigger(t *testing.T) {
	q := newTestQueue(t, DefaultConfig())
	payloads := make(chan map[string]any, 1)
	q.Register(JobSyncImmediate, func(ctx context.Context, job *Job) error {
		payloads <- job.Payload
		return nil
	})
	startQueue(t, q)

	_, err := q.Enqueue(JobSyncImmediate, PriorityCritical, map[string]any{"platform": "shopify"})
	require.NoError(t, err)

	select {
	case payload := <-payloads:
		assert.Equal(t, []string{"shopify"}, payload["platforms"])
		assert.Equal(t, "manual", payload["triggeredBy"])
		assert.NotContains(t, payload, "platform")
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestDispatch_PriorityOrderWithFIFOTieBreak(t *testing.T) {
	config := DefaultConfig()
	config.MaxParallelism = 1
	q := newTestQueue(t, config)

	var mu sync.Mutex
	var order []string
	gate := make(chan struct{})
	done := make(chan struct{}, 8)

	q.Register(JobSyncManual, func(ctx context.Context, job *Job) error {
		name := job.Payload["name"].(string)
		if name == "blocker" {
			<-gate
		} else {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
		done <- struct{}{}
		return nil
	})
	startQueue(t, q)

	// The blocker occupies the single worker while the backlog builds up.
	_, err := q.Enqueue(JobSyncManual, PriorityCritical, map[string]any{"name": "blocker"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	for _, job := range []struct {
		name     string
		priority Priority
	}{
		{"low-a", PriorityLow},
		{"critical", PriorityCritical},
		{"normal-a", PriorityNormal},
		{"normal-b", PriorityNormal},
		{"background", PriorityBackground},
	} {
		_, err := q.Enqueue(JobSyncManual, job.priority, map[string]any{"name": job.name})
		require.NoError(t, err)
	}
	close(gate)

	for i := 0; i < 6; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("jobs did not finish")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"critical", "normal-a", "normal-b", "low-a", "background"}, order)
}

func TestDispatch_RetriesWithBackoffThenSucceeds(t *testing.T) {
	q := newTestQueue(t, DefaultConfig())

	var mu sync.Mutex
	attempts := 0
	finished := make(chan struct{})
	q.Register(JobSyncScheduled, func(ctx context.Context, job *Job) error {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			return errors.New("transient platform error")
		}
		close(finished)
		return nil
	})
	startQueue(t, q)

	policy := RetryPolicy{MaxAttempts: 3, InitialBackoff: 5 * time.Millisecond, ExponentialBase: 2}
	_, err := q.EnqueueWithPolicy(JobSyncScheduled, PriorityNormal, nil, policy)
	require.NoError(t, err)

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not succeed after retries")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestDispatch_StopsRetryingAfterMaxAttempts(t *testing.T) {
	q := newTestQueue(t, DefaultConfig())

	var mu sync.Mutex
	attempts := 0
	q.Register(JobCleanupOldData, func(ctx context.Context, job *Job) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("still broken")
	})
	startQueue(t, q)

	policy := RetryPolicy{MaxAttempts: 2, InitialBackoff: 5 * time.Millisecond, ExponentialBase: 2}
	_, err := q.EnqueueWithPolicy(JobCleanupOldData, PriorityBackground, nil, policy)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts == 2
	}, 5*time.Second, 10*time.Millisecond)

	// No further attempts after exhaustion.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestEnqueue_QueueFull(t *testing.T) {
	config := DefaultConfig()
	config.MaxParallelism = 1
	config.Capacity = 1
	q := newTestQueue(t, config)

	gate := make(chan struct{})
	q.Register(JobSyncManual, func(ctx context.Context, job *Job) error {
		<-gate
		return nil
	})
	startQueue(t, q)
	defer close(gate)

	// First job occupies the worker, second fills the backlog.
	_, err := q.Enqueue(JobSyncManual, PriorityNormal, nil)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.pending) == 0
	}, 5*time.Second, 5*time.Millisecond)

	_, err = q.Enqueue(JobSyncManual, PriorityNormal, nil)
	require.NoError(t, err)

	_, err = q.Enqueue(JobSyncManual, PriorityNormal, nil)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestStop_DrainsBacklog(t *testing.T) {
	config := DefaultConfig()
	config.MaxParallelism = 2
	q := newTestQueue(t, config)

	var mu sync.Mutex
	completed := 0
	q.Register(JobAnalyticsCalculate, func(ctx context.Context, job *Job) error {
		mu.Lock()
		completed++
		mu.Unlock()
		return nil
	})
	require.NoError(t, q.Start(context.Background()))

	for i := 0; i < 20; i++ {
		_, err := q.Enqueue(JobAnalyticsCalculate, PriorityLow, nil)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, completed)
}

func TestRetryPolicy_BackoffGrowsExponentially(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, InitialBackoff: 2 * time.Second, ExponentialBase: 2}

	assert.Equal(t, 2*time.Second, policy.BackoffFor(1))
	assert.Equal(t, 4*time.Second, policy.BackoffFor(2))
	assert.Equal(t, 8*time.Second, policy.BackoffFor(3))
}

func TestDefaultRetryPolicy_PerTypeOverrides(t *testing.T) {
	assert.Equal(t, RetryPolicy{MaxAttempts: 3, InitialBackoff: 2 * time.Second, ExponentialBase: 2}, DefaultRetryPolicy(JobSyncScheduled))
	assert.Equal(t, RetryPolicy{MaxAttempts: 3, InitialBackoff: 1 * time.Second, ExponentialBase: 2}, DefaultRetryPolicy(JobEmailSend))
	assert.Equal(t, RetryPolicy{MaxAttempts: 2, InitialBackoff: 5 * time.Second, ExponentialBase: 2}, DefaultRetryPolicy(JobCleanupOldData))
	assert.Equal(t, RetryPolicy{MaxAttempts: 2, InitialBackoff: 5 * time.Second, ExponentialBase: 2}, DefaultRetryPolicy(JobType("maintenance:reindex")))
}

func TestJobType_Validation(t *testing.T) {
	assert.True(t, JobSyncInitial.IsValid())
	assert.True(t, JobType("maintenance:vacuum").IsValid())
	assert.False(t, JobType("maintenance:").IsValid())
	assert.False(t, JobType("sync:everything").IsValid())
	assert.False(t, JobType("").IsValid())
}
