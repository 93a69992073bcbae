package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storepulse/backend/internal/infrastructure/metrics"
)

// Handler executes one job. A returned error triggers a retry per the job's
// policy; a nil return completes the job.
type Handler func(ctx context.Context, job *Job) error

// Config holds configuration for the job queue.
type Config struct {
	// MaxParallelism is the number of jobs in flight at once, system-wide.
	MaxParallelism int
	// Capacity bounds the pending backlog.
	Capacity int
	// DrainTimeout is how long Stop waits for in-flight jobs by default.
	DrainTimeout time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		MaxParallelism: 10,
		Capacity:       1000,
		DrainTimeout:   30 * time.Second,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MaxParallelism <= 0 {
		return ErrInvalidConfig
	}
	if c.Capacity <= 0 {
		return ErrInvalidConfig
	}
	if c.DrainTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// JobQueue dispatches jobs to registered handlers in priority order: higher
// priority drains first, FIFO among equals. A bounded worker pool caps
// concurrent execution; failed jobs re-enter the backlog after exponential
// backoff.
type JobQueue struct {
	config   Config
	logger   *zap.Logger
	handlers map[JobType]Handler

	mu       sync.Mutex
	cond     *sync.Cond
	pending  jobHeap
	nextSeq  uint64
	running  bool
	draining bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJobQueue creates a new job queue
func NewJobQueue(config Config, logger *zap.Logger) (*JobQueue, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	q := &JobQueue{
		config:   config,
		logger:   logger,
		handlers: make(map[JobType]Handler),
		pending:  make(jobHeap, 0, config.Capacity),
	}
	q.cond = sync.NewCond(&q.mu)
	return q, nil
}

// Register binds a handler to a job type. Use JobMaintenanceWildcard to
// handle every maintenance:* job. Registration is not safe to interleave
// with Start.
func (q *JobQueue) Register(t JobType, handler Handler) {
	q.handlers[t] = handler
}

// Start launches the worker pool.
func (q *JobQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = true
	q.draining = false
	q.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	for i := 0; i < q.config.MaxParallelism; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	q.logger.Info("Job queue started",
		zap.Int("workers", q.config.MaxParallelism),
		zap.Int("capacity", q.config.Capacity),
	)
	return nil
}

// Stop drains the backlog and waits for in-flight jobs. The context bounds
// the wait; on expiry remaining work is abandoned via context cancellation.
func (q *JobQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.draining = true
	q.cond.Broadcast()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("Job queue stopped gracefully")
		if q.cancel != nil {
			q.cancel()
		}
		return nil
	case <-ctx.Done():
		q.logger.Warn("Job queue stop timed out, abandoning remaining jobs")
		if q.cancel != nil {
			q.cancel()
		}
		<-done
		return ctx.Err()
	}
}

// Enqueue validates and queues a job with the type's default retry policy,
// returning its id immediately. Execution happens on the worker pool.
func (q *JobQueue) Enqueue(t JobType, priority Priority, payload map[string]any) (uuid.UUID, error) {
	if !t.IsValid() {
		return uuid.Nil, ErrUnknownJobType
	}
	return q.EnqueueWithPolicy(t, priority, payload, DefaultRetryPolicy(t))
}

// EnqueueWithPolicy queues a job with an explicit retry policy.
func (q *JobQueue) EnqueueWithPolicy(t JobType, priority Priority, payload map[string]any, policy RetryPolicy) (uuid.UUID, error) {
	if !t.IsValid() {
		return uuid.Nil, ErrUnknownJobType
	}
	if q.resolveHandler(t) == nil {
		return uuid.Nil, ErrNoHandler
	}
	if priority == 0 {
		priority = PriorityNormal
	}
	if !priority.IsValid() {
		return uuid.Nil, ErrInvalidPriority
	}

	if t.IsSync() {
		payload = normalizeSyncPayload(t, payload)
	}

	job := &Job{
		ID:         uuid.New(),
		Type:       t,
		Priority:   priority,
		Payload:    payload,
		Retry:      policy,
		EnqueuedAt: time.Now(),
	}

	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return uuid.Nil, ErrQueueNotRunning
	}
	if len(q.pending) >= q.config.Capacity {
		q.mu.Unlock()
		return uuid.Nil, ErrQueueFull
	}
	q.nextSeq++
	job.seq = q.nextSeq
	heap.Push(&q.pending, job)
	metrics.SetQueueDepth(len(q.pending))
	q.cond.Signal()
	q.mu.Unlock()

	metrics.IncJobEnqueued(string(t))
	q.logger.Debug("Job enqueued",
		zap.String("job_id", job.ID.String()),
		zap.String("type", string(t)),
		zap.Int("priority", int(priority)),
	)
	return job.ID, nil
}

// worker pops the highest-priority pending job and runs it.
func (q *JobQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	q.logger.Debug("Queue worker started", zap.Int("worker_id", workerID))
	for {
		job := q.pop()
		if job == nil {
			q.logger.Debug("Queue worker stopping", zap.Int("worker_id", workerID))
			return
		}
		q.process(ctx, job, workerID)
	}
}

// pop blocks until a job is available. It returns nil once the queue is
// draining and the backlog is empty.
func (q *JobQueue) pop() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) == 0 {
		if q.draining {
			return nil
		}
		q.cond.Wait()
	}

	job := heap.Pop(&q.pending).(*Job)
	metrics.SetQueueDepth(len(q.pending))
	return job
}

// requeue puts a retried job back on the backlog. Retries landing during
// shutdown are dropped; a later run picks the work up through its session.
func (q *JobQueue) requeue(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.draining {
		q.logger.Warn("Dropping retry for stopped queue",
			zap.String("job_id", job.ID.String()),
			zap.String("type", string(job.Type)),
		)
		return
	}
	q.nextSeq++
	job.seq = q.nextSeq
	heap.Push(&q.pending, job)
	metrics.SetQueueDepth(len(q.pending))
	q.cond.Signal()
}

// process runs one attempt of a job and schedules a retry on failure.
func (q *JobQueue) process(ctx context.Context, job *Job, workerID int) {
	handler := q.resolveHandler(job.Type)
	job.Attempts++

	start := time.Now()
	err := handler(ctx, job)
	metrics.ObserveJobDuration(string(job.Type), time.Since(start))

	if err == nil {
		metrics.IncJobCompleted(string(job.Type), "success")
		q.logger.Info("Job completed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("type", string(job.Type)),
			zap.Int("attempts", job.Attempts),
			zap.Duration("duration", time.Since(start)),
		)
		return
	}

	if job.Attempts < job.Retry.MaxAttempts {
		delay := job.Retry.BackoffFor(job.Attempts)
		metrics.IncJobRetried(string(job.Type))
		q.logger.Warn("Job failed, scheduling retry",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("type", string(job.Type)),
			zap.Int("attempt", job.Attempts),
			zap.Int("max_attempts", job.Retry.MaxAttempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			select {
			case <-time.After(delay):
				q.requeue(job)
			case <-ctx.Done():
			}
		}()
		return
	}

	metrics.IncJobCompleted(string(job.Type), "failed")
	q.logger.Error("Job failed permanently",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("type", string(job.Type)),
		zap.Int("attempts", job.Attempts),
		zap.Error(err),
	)
}

// resolveHandler finds the handler for a type, falling back to the
// maintenance wildcard for maintenance:* jobs.
func (q *JobQueue) resolveHandler(t JobType) Handler {
	if h, ok := q.handlers[t]; ok {
		return h
	}
	if t.IsMaintenance() {
		return q.handlers[JobMaintenanceWildcard]
	}
	return nil
}

// jobHeap orders jobs by priority (higher first), then enqueue order.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(*Job)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}
