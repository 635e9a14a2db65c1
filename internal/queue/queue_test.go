package queue

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// gateRunner blocks each job until its release channel is closed, so
// tests control exactly which jobs are in flight.
type gateRunner struct {
	mu      sync.Mutex
	order   []string
	started chan string
	release map[string]chan struct{}
}

func newGateRunner(jobIDs ...string) *gateRunner {
	release := make(map[string]chan struct{}, len(jobIDs))
	for _, id := range jobIDs {
		release[id] = make(chan struct{})
	}
	return &gateRunner{
		started: make(chan string, len(jobIDs)),
		release: release,
	}
}

func (g *gateRunner) run(_ context.Context, jobID string) {
	g.mu.Lock()
	g.order = append(g.order, jobID)
	gate := g.release[jobID]
	g.mu.Unlock()

	g.started <- jobID
	if gate != nil {
		<-gate
	}
}

func (g *gateRunner) releaseJob(jobID string) {
	g.mu.Lock()
	gate := g.release[jobID]
	g.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

func (g *gateRunner) waitStarted(t *testing.T) string {
	t.Helper()
	select {
	case id := <-g.started:
		return id
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a job to start")
		return ""
	}
}

func (g *gateRunner) runOrder() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	order := make([]string, len(g.order))
	copy(order, g.order)
	return order
}

func waitInactive(t *testing.T, q *Queue) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status := q.Status()
		if status.ActiveCount == 0 && status.QueueLength == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("queue did not drain: %+v", q.Status())
}

func TestEnqueueRejectsDuplicates(t *testing.T) {
	t.Parallel()

	runner := newGateRunner("a")
	q := New(2, runner.run, zerolog.Nop())

	if !q.Enqueue("a", 0) {
		t.Fatalf("first enqueue must be accepted")
	}
	if q.Enqueue("a", 5) {
		t.Fatalf("duplicate of a queued job must be rejected")
	}
	if status := q.Status(); status.QueueLength != 1 {
		t.Fatalf("unexpected queue length: %d", status.QueueLength)
	}

	q.Start(context.Background())
	defer q.Stop()

	runner.waitStarted(t)
	if q.Enqueue("a", 0) {
		t.Fatalf("duplicate of an active job must be rejected")
	}

	runner.releaseJob("a")
	waitInactive(t, q)

	// Terminal jobs may be enqueued again.
	runner.mu.Lock()
	runner.release["a"] = make(chan struct{})
	close(runner.release["a"])
	runner.mu.Unlock()
	if !q.Enqueue("a", 0) {
		t.Fatalf("re-enqueue after completion must be accepted")
	}
	waitInactive(t, q)
}

func TestConcurrencyNeverExceedsLimit(t *testing.T) {
	t.Parallel()

	jobs := []string{"j1", "j2", "j3", "j4", "j5"}
	runner := newGateRunner(jobs...)
	q := New(2, runner.run, zerolog.Nop())

	for _, id := range jobs {
		q.Enqueue(id, 0)
	}
	q.Start(context.Background())
	defer q.Stop()

	seen := map[string]bool{}
	for len(seen) < len(jobs) {
		first := runner.waitStarted(t)
		second := runner.waitStarted(t)
		seen[first] = true
		seen[second] = true

		if status := q.Status(); status.ActiveCount > 2 {
			t.Fatalf("active count exceeded limit: %d", status.ActiveCount)
		}

		runner.releaseJob(first)
		runner.releaseJob(second)

		if len(jobs)-len(seen) == 1 {
			last := runner.waitStarted(t)
			seen[last] = true
			runner.releaseJob(last)
		}
	}

	waitInactive(t, q)
	if order := runner.runOrder(); len(order) != len(jobs) {
		t.Fatalf("expected all jobs to run exactly once, got %v", order)
	}
}

func TestPriorityOrderingWithFIFOTieBreak(t *testing.T) {
	t.Parallel()

	done := make(chan string, 4)
	q := New(1, func(_ context.Context, jobID string) {
		done <- jobID
	}, zerolog.Nop())

	q.Enqueue("low", 1)
	q.Enqueue("high-first", 5)
	q.Enqueue("mid", 3)
	q.Enqueue("high-second", 5)

	q.Start(context.Background())
	defer q.Stop()

	want := []string{"high-first", "high-second", "mid", "low"}
	for i, expected := range want {
		select {
		case got := <-done:
			if got != expected {
				t.Fatalf("run %d: got %q, want %q", i, got, expected)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for job %d", i)
		}
	}
}

func TestDequeueRemovesQueuedOnly(t *testing.T) {
	t.Parallel()

	runner := newGateRunner("a")
	q := New(1, runner.run, zerolog.Nop())

	q.Enqueue("a", 0)
	q.Enqueue("b", 0)

	if !q.Dequeue("b") {
		t.Fatalf("dequeue of a queued job must succeed")
	}
	if q.Dequeue("b") {
		t.Fatalf("dequeue of an absent job must report false")
	}
	if q.IsQueued("b") {
		t.Fatalf("job b must be gone")
	}

	q.Start(context.Background())
	defer q.Stop()

	runner.waitStarted(t)
	if q.Dequeue("a") {
		t.Fatalf("active jobs must not be dequeueable")
	}
	runner.releaseJob("a")
	waitInactive(t, q)
}

func TestHighPriorityJumpsQueue(t *testing.T) {
	t.Parallel()

	runner := newGateRunner("j1", "j2", "j3", "urgent")
	q := New(2, runner.run, zerolog.Nop())
	q.Start(context.Background())
	defer q.Stop()

	q.Enqueue("j1", 0)
	q.Enqueue("j2", 0)
	runner.waitStarted(t)
	runner.waitStarted(t)

	q.Enqueue("j3", 0)
	q.Enqueue("urgent", 10)

	if pos := q.Position("urgent"); pos != 1 {
		t.Fatalf("urgent job must be at position 1, got %d", pos)
	}
	if pos := q.Position("j3"); pos != 2 {
		t.Fatalf("j3 must be at position 2, got %d", pos)
	}

	status := q.Status()
	if status.ActiveCount != 2 || status.QueueLength != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}

	runner.releaseJob("j1")
	if next := runner.waitStarted(t); next != "urgent" {
		t.Fatalf("expected urgent job to run next, got %q", next)
	}

	runner.releaseJob("j2")
	if next := runner.waitStarted(t); next != "j3" {
		t.Fatalf("expected j3 to run last, got %q", next)
	}

	runner.releaseJob("j3")
	runner.releaseJob("urgent")
	waitInactive(t, q)
}

func TestStopWaitsForActiveJobs(t *testing.T) {
	t.Parallel()

	finished := make(chan struct{})
	q := New(1, func(ctx context.Context, _ string) {
		<-ctx.Done()
		close(finished)
	}, zerolog.Nop())

	q.Start(context.Background())
	q.Enqueue("a", 0)

	deadline := time.Now().Add(2 * time.Second)
	for !q.IsActive("a") {
		if time.Now().After(deadline) {
			t.Fatalf("job never became active")
		}
		time.Sleep(5 * time.Millisecond)
	}

	q.Stop()

	select {
	case <-finished:
	default:
		t.Fatalf("Stop returned before the active job finished")
	}
	if q.IsActive("a") {
		t.Fatalf("job must not be active after Stop")
	}
}

func TestStopOutlivesConcurrentEnqueues(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	started := 0
	q := New(2, func(_ context.Context, _ string) {
		mu.Lock()
		started++
		mu.Unlock()
	}, zerolog.Nop())
	q.Start(context.Background())

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			q.Enqueue("job-"+strconv.Itoa(i), i%3)
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Stop()

	// Every job admitted before Stop returned must already have run.
	mu.Lock()
	afterStop := started
	mu.Unlock()
	if q.Status().ActiveCount != 0 {
		t.Fatalf("active jobs after Stop: %+v", q.Status())
	}

	close(stop)
	wg.Wait()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	final := started
	mu.Unlock()
	if final != afterStop {
		t.Fatalf("%d job(s) ran after Stop returned", final-afterStop)
	}
}

func TestRunnerPanicDoesNotBlockSlot(t *testing.T) {
	t.Parallel()

	done := make(chan string, 2)
	q := New(1, func(_ context.Context, jobID string) {
		if jobID == "bad" {
			panic("runner bug")
		}
		done <- jobID
	}, zerolog.Nop())

	q.Start(context.Background())
	defer q.Stop()

	q.Enqueue("bad", 5)
	q.Enqueue("good", 0)

	select {
	case got := <-done:
		if got != "good" {
			t.Fatalf("unexpected job: %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("panicking job blocked the worker slot")
	}
	waitInactive(t, q)
}
