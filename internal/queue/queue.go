package queue

import (
	"context"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voiceqc.dev/voiceqc/internal/globaltime"
)

// DefaultMaxConcurrent caps simultaneously active jobs.
const DefaultMaxConcurrent = 2

// RunFunc executes one job to its terminal state. It must not panic the
// queue; panics are recovered and treated as job completion.
type RunFunc func(ctx context.Context, jobID string)

// Status is the queue-level health view.
type Status struct {
	QueueLength int `json:"queue_length"`
	ActiveCount int `json:"active_count"`
}

type pendingJob struct {
	id         string
	priority   int
	enqueuedAt time.Time
	seq        uint64
}

// Queue is a priority-ordered, bounded-concurrency background job queue.
// Jobs are identified by dialog UUID; a given id is never queued and
// active at the same time. The queue drains greedily: it never idles
// while a job and a free worker slot both exist.
type Queue struct {
	mu            sync.Mutex
	maxConcurrent int
	run           RunFunc
	logger        zerolog.Logger

	pending []pendingJob
	active  map[string]struct{}
	seq     uint64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func New(maxConcurrent int, run RunFunc, logger zerolog.Logger) *Queue {
	if maxConcurrent < 1 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Queue{
		maxConcurrent: maxConcurrent,
		run:           run,
		logger:        logger,
		active:        make(map[string]struct{}),
	}
}

// Start begins draining. The context is propagated into every job run;
// canceling it aborts chunk loops between provider calls.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.started = true
	q.mu.Unlock()

	q.drain()
}

// Stop cancels the run context and waits for active jobs to finish.
// Queued jobs that were never admitted stay queued and are dropped with
// the queue.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	cancel := q.cancel
	q.mu.Unlock()

	cancel()
	q.wg.Wait()
}

// Enqueue inserts a job. Re-enqueuing an id that is already queued or
// active is a no-op; the return value reports whether the job was
// inserted. Higher priority runs first, FIFO within a priority tier.
func (q *Queue) Enqueue(jobID string, priority int) bool {
	if jobID == "" {
		return false
	}

	q.mu.Lock()
	if _, isActive := q.active[jobID]; isActive {
		q.mu.Unlock()
		return false
	}
	for _, job := range q.pending {
		if job.id == jobID {
			q.mu.Unlock()
			return false
		}
	}

	q.seq++
	q.pending = append(q.pending, pendingJob{
		id:         jobID,
		priority:   priority,
		enqueuedAt: globaltime.UTC(),
		seq:        q.seq,
	})
	// seq breaks ties for jobs enqueued within the same clock tick.
	sort.SliceStable(q.pending, func(i, j int) bool {
		if q.pending[i].priority != q.pending[j].priority {
			return q.pending[i].priority > q.pending[j].priority
		}
		return q.pending[i].seq < q.pending[j].seq
	})
	q.mu.Unlock()

	q.logger.Debug().Str("job_id", jobID).Int("priority", priority).Msg("job enqueued")
	q.drain()
	return true
}

// Dequeue removes a queued job. Active jobs cannot be canceled through
// the queue; this mirrors the admission-only control surface.
func (q *Queue) Dequeue(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, job := range q.pending {
		if job.id == jobID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) IsQueued(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.pending {
		if job.id == jobID {
			return true
		}
	}
	return false
}

func (q *Queue) IsActive(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.active[jobID]
	return ok
}

// Position returns the 1-based queue position, or 0 when the job is not
// queued.
func (q *Queue) Position(jobID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, job := range q.pending {
		if job.id == jobID {
			return i + 1
		}
	}
	return 0
}

func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{
		QueueLength: len(q.pending),
		ActiveCount: len(q.active),
	}
}

// drain admits queued jobs while worker slots are free. Runner
// completion re-drains, so the queue is work-conserving.
func (q *Queue) drain() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}

	var admitted []string
	for len(q.active) < q.maxConcurrent && len(q.pending) > 0 {
		head := q.pending[0]
		q.pending = q.pending[1:]
		q.active[head.id] = struct{}{}
		admitted = append(admitted, head.id)
	}
	// Add must happen under the lock: Stop flips started before it
	// calls Wait, so every admitted job is counted before Wait runs.
	q.wg.Add(len(admitted))
	runCtx := q.ctx
	q.mu.Unlock()

	for _, jobID := range admitted {
		go q.runJob(runCtx, jobID)
	}
}

func (q *Queue) runJob(ctx context.Context, jobID string) {
	defer q.wg.Done()

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				q.logger.Error().
					Str("job_id", jobID).
					Interface("panic", rec).
					Str("stack", string(debug.Stack())).
					Msg("job runner panicked")
			}
		}()
		q.run(ctx, jobID)
	}()

	q.mu.Lock()
	delete(q.active, jobID)
	q.mu.Unlock()

	q.drain()
}
