package progress

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestEmitDeliversToSubscribedJobOnly(t *testing.T) {
	t.Parallel()

	reporter := NewReporter(zerolog.Nop())

	var gotA, gotB []Event
	reporter.Subscribe("job-a", func(e Event) { gotA = append(gotA, e) })
	reporter.Subscribe("job-b", func(e Event) { gotB = append(gotB, e) })

	reporter.Emit("job-a", Event{Stage: StageTranslatingText, Progress: 50})
	reporter.Emit("job-b", Event{Stage: StageComplete, Progress: 100})
	reporter.Emit("job-c", Event{Stage: StageError})

	if len(gotA) != 1 || gotA[0].Stage != StageTranslatingText {
		t.Fatalf("unexpected events for job-a: %+v", gotA)
	}
	if len(gotB) != 1 || gotB[0].Stage != StageComplete {
		t.Fatalf("unexpected events for job-b: %+v", gotB)
	}
}

func TestSubscribeDoesNotClobberOtherJobs(t *testing.T) {
	t.Parallel()

	reporter := NewReporter(zerolog.Nop())

	var first int
	reporter.Subscribe("job-1", func(Event) { first++ })
	reporter.Subscribe("job-2", func(Event) {})

	reporter.Emit("job-1", Event{Stage: StageProcessing})
	if first != 1 {
		t.Fatalf("expected job-1 observer to survive job-2 subscription, got %d calls", first)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	reporter := NewReporter(zerolog.Nop())

	calls := 0
	reporter.Subscribe("job-1", func(Event) { calls++ })
	reporter.Unsubscribe("job-1")
	reporter.Emit("job-1", Event{Stage: StageComplete, Progress: 100})

	if calls != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", calls)
	}
}

func TestEmitRecoversObserverPanic(t *testing.T) {
	t.Parallel()

	reporter := NewReporter(zerolog.Nop())
	reporter.Subscribe("job-1", func(Event) { panic("observer bug") })

	// Must not propagate.
	reporter.Emit("job-1", Event{Stage: StageError, Message: "boom"})

	delivered := false
	reporter.Subscribe("job-1", func(Event) { delivered = true })
	reporter.Emit("job-1", Event{Stage: StageComplete})
	if !delivered {
		t.Fatalf("reporter must keep working after an observer panic")
	}
}
