package progress

import (
	"sync"

	"github.com/rs/zerolog"
)

// Stage identifies where a job is in its pipeline.
type Stage string

const (
	StageQueued              Stage = "queued"
	StageUploading           Stage = "uploading"
	StageProcessing          Stage = "processing"
	StageTranslatingText     Stage = "translating_text"
	StageTranslatingSpeakers Stage = "translating_speakers"
	StageComplete            Stage = "complete"
	StageError               Stage = "error"
)

// Event is one progress tick. Progress runs 0-100 and may reset to a
// lower value at a stage boundary. Events are ephemeral: only the
// currently subscribed observer sees them.
type Event struct {
	Stage    Stage  `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// Callback receives events for one job.
type Callback func(Event)

// Reporter dispatches progress events to per-job observers. Each job id
// has its own callback slot, so concurrently running jobs cannot steal
// each other's events.
type Reporter struct {
	mu     sync.Mutex
	subs   map[string]Callback
	logger zerolog.Logger
}

func NewReporter(logger zerolog.Logger) *Reporter {
	return &Reporter{
		subs:   make(map[string]Callback),
		logger: logger,
	}
}

// Subscribe registers the observer for a job, replacing any previous
// observer for the same job id.
func (r *Reporter) Subscribe(jobID string, callback Callback) {
	if r == nil || jobID == "" || callback == nil {
		return
	}
	r.mu.Lock()
	r.subs[jobID] = callback
	r.mu.Unlock()
}

// Unsubscribe drops the observer for a job.
func (r *Reporter) Unsubscribe(jobID string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.subs, jobID)
	r.mu.Unlock()
}

// Emit delivers one event to the job's observer, if any. A panicking
// observer is logged and recovered so it cannot take a worker down.
func (r *Reporter) Emit(jobID string, event Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	callback := r.subs[jobID]
	r.mu.Unlock()

	if callback == nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("job_id", jobID).
				Str("stage", string(event.Stage)).
				Interface("panic", rec).
				Msg("progress observer panicked")
		}
	}()
	callback(event)
}
