package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"voiceqc.dev/voiceqc/internal/keypool"
	"voiceqc.dev/voiceqc/internal/langdetect"
	"voiceqc.dev/voiceqc/internal/progress"
	"voiceqc.dev/voiceqc/internal/translation"
)

const (
	defaultChunkSize  = 3
	defaultChunkDelay = 500 * time.Millisecond
)

// JobRecord is the persisted state a runner needs before translating.
type JobRecord struct {
	DialogUUID     string
	SourceLang     string
	Transcript     string
	Segments       []translation.Segment
	HasTranslation bool
}

// Result is a terminal translation outcome to persist.
type Result struct {
	Text         string
	Segments     []translation.TranslatedSegment
	SourceLang   string
	ProviderName string
}

// Store is the persistence gateway the runner drives.
type Store interface {
	GetJobRecord(ctx context.Context, dialogUUID, targetLang string) (*JobRecord, error)
	SaveTranslationResult(ctx context.Context, dialogUUID, targetLang string, result Result) error
	MarkFailed(ctx context.Context, dialogUUID, targetLang, errorMessage string) error
}

// RunnerOptions tunes per-job execution.
type RunnerOptions struct {
	TargetLang string
	ChunkSize  int
	ChunkDelay time.Duration
}

// Runner drives one job through its pipeline: load record, translate the
// full transcript, translate speaker utterances in chunks, persist. Every
// provider failure is absorbed by the fallback chain; only exhaustion of
// the chain, a permanent input error, an empty key pool, or a
// persistence error reaches the failed state.
type Runner struct {
	store    Store
	chain    []translation.Provider
	keys     *keypool.Pool
	reporter *progress.Reporter
	logger   zerolog.Logger
	opts     RunnerOptions
}

func NewRunner(
	store Store,
	chain []translation.Provider,
	keys *keypool.Pool,
	reporter *progress.Reporter,
	logger zerolog.Logger,
	opts RunnerOptions,
) *Runner {
	if opts.ChunkSize < 1 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.ChunkDelay < 0 {
		opts.ChunkDelay = defaultChunkDelay
	}
	return &Runner{
		store:    store,
		chain:    chain,
		keys:     keys,
		reporter: reporter,
		logger:   logger,
		opts:     opts,
	}
}

// Run executes one job to a terminal state. It is the queue's RunFunc.
func (r *Runner) Run(ctx context.Context, jobID string) {
	logger := r.logger.With().Str("dialog_uuid", jobID).Str("target_lang", r.opts.TargetLang).Logger()

	r.emit(jobID, progress.StageProcessing, 0, "loading dialog")

	record, err := r.store.GetJobRecord(ctx, jobID, r.opts.TargetLang)
	if err != nil {
		r.fail(ctx, jobID, logger, fmt.Sprintf("load dialog: %v", err))
		return
	}
	if record == nil {
		r.fail(ctx, jobID, logger, "dialog record not found")
		return
	}

	if strings.TrimSpace(record.Transcript) == "" || len(record.Segments) == 0 {
		// The job exits without a failed status here; the warn log and
		// error-stage event make the skip visible to operators.
		logger.Warn().Msg("dialog is missing transcript or speaker segments, skipping")
		r.emit(jobID, progress.StageError, 0, "transcript or speaker segments missing")
		return
	}

	if record.HasTranslation {
		logger.Info().Msg("translation already present, nothing to do")
		r.emit(jobID, progress.StageComplete, 100, "translation already present")
		return
	}

	sourceLang := record.SourceLang
	if sourceLang == "" {
		sourceLang = langdetect.DetectISO6391(record.Transcript)
		logger.Debug().Str("source_lang", sourceLang).Msg("detected transcript language")
	}

	credential, err := r.selectCredential()
	if err != nil {
		r.fail(ctx, jobID, logger, err.Error())
		return
	}

	r.emit(jobID, progress.StageTranslatingText, 0, "translating transcript")
	translatedText, providerName, err := r.translateTextChain(ctx, logger, record.Transcript, sourceLang, credential)
	if err != nil {
		r.fail(ctx, jobID, logger, fmt.Sprintf("translate transcript: %v", err))
		return
	}
	r.emit(jobID, progress.StageTranslatingText, 100, "transcript translated")

	translatedSegments, err := r.translateSegmentsChunked(ctx, logger, jobID, record.Segments, sourceLang, credential)
	if err != nil {
		r.fail(ctx, jobID, logger, fmt.Sprintf("translate speaker segments: %v", err))
		return
	}

	result := Result{
		Text:         translatedText,
		Segments:     translatedSegments,
		SourceLang:   sourceLang,
		ProviderName: providerName,
	}
	if err := r.store.SaveTranslationResult(ctx, jobID, r.opts.TargetLang, result); err != nil {
		r.fail(ctx, jobID, logger, fmt.Sprintf("persist translation: %v", err))
		return
	}

	r.emit(jobID, progress.StageComplete, 100, "translation complete")
	logger.Info().Str("provider", providerName).Int("segments", len(translatedSegments)).Msg("job completed")
}

// selectCredential acquires one pool credential when the chain contains a
// credentialed provider. An exhausted pool fails the job: there is no key
// to attempt the primary with.
func (r *Runner) selectCredential() (*keypool.Credential, error) {
	needsKey := false
	for _, provider := range r.chain {
		if provider.Credentialed() {
			needsKey = true
			break
		}
	}
	if !needsKey || r.keys == nil {
		return nil, nil
	}

	credential, err := r.keys.SelectActive()
	if err != nil {
		if errors.Is(err, keypool.ErrNoActiveCredential) {
			return nil, fmt.Errorf("no active provider credential available")
		}
		return nil, fmt.Errorf("select provider credential: %w", err)
	}
	return &credential, nil
}

func (r *Runner) translateTextChain(
	ctx context.Context,
	logger zerolog.Logger,
	text, sourceLang string,
	credential *keypool.Credential,
) (string, string, error) {
	var lastErr error
	for _, provider := range r.chain {
		req := translation.TextRequest{
			Text:       text,
			SourceLang: sourceLang,
			TargetLang: r.opts.TargetLang,
		}
		credentialed := provider.Credentialed() && credential != nil
		if credentialed {
			req.APIKey = credential.Secret
		}

		resp, err := provider.TranslateText(ctx, req)
		if err == nil {
			r.recordOutcome(ctx, logger, credentialed, credential, true)
			return resp.Text, provider.Name(), nil
		}

		if translation.IsPermanent(err) {
			return "", "", err
		}
		r.recordOutcome(ctx, logger, credentialed, credential, false)
		logger.Warn().Err(err).Str("provider", provider.Name()).Msg("translation backend failed, trying next")
		lastErr = err
	}
	return "", "", fmt.Errorf("all translation backends failed: %w", lastErr)
}

func (r *Runner) translateSegmentsChunked(
	ctx context.Context,
	logger zerolog.Logger,
	jobID string,
	segments []translation.Segment,
	sourceLang string,
	credential *keypool.Credential,
) ([]translation.TranslatedSegment, error) {
	total := len(segments)
	r.emit(jobID, progress.StageTranslatingSpeakers, 0, fmt.Sprintf("translating %d utterances", total))

	translated := make([]translation.TranslatedSegment, 0, total)
	for start := 0; start < total; start += r.opts.ChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("job canceled: %w", err)
		}

		end := start + r.opts.ChunkSize
		if end > total {
			end = total
		}
		r.emit(jobID, progress.StageTranslatingSpeakers, start*100/total,
			fmt.Sprintf("translating utterances %d-%d of %d", start+1, end, total))

		chunk, err := r.translateChunkChain(ctx, logger, segments[start:end], sourceLang, credential)
		if err != nil {
			return nil, err
		}
		translated = append(translated, chunk...)

		if end < total && r.opts.ChunkDelay > 0 {
			// Small pause between chunks keeps provider rate limits happy.
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("job canceled: %w", ctx.Err())
			case <-time.After(r.opts.ChunkDelay):
			}
		}
	}

	r.emit(jobID, progress.StageTranslatingSpeakers, 100, "utterances translated")
	return translated, nil
}

func (r *Runner) translateChunkChain(
	ctx context.Context,
	logger zerolog.Logger,
	chunk []translation.Segment,
	sourceLang string,
	credential *keypool.Credential,
) ([]translation.TranslatedSegment, error) {
	var lastErr error
	for _, provider := range r.chain {
		req := translation.SegmentsRequest{
			Segments:   chunk,
			SourceLang: sourceLang,
			TargetLang: r.opts.TargetLang,
		}
		credentialed := provider.Credentialed() && credential != nil
		if credentialed {
			req.APIKey = credential.Secret
		}

		resp, err := provider.TranslateSegments(ctx, req)
		if err == nil {
			r.recordOutcome(ctx, logger, credentialed, credential, true)
			return resp.Segments, nil
		}

		if translation.IsPermanent(err) {
			return nil, err
		}
		r.recordOutcome(ctx, logger, credentialed, credential, false)
		logger.Warn().Err(err).Str("provider", provider.Name()).Msg("translation backend failed, trying next")
		lastErr = err
	}
	return nil, fmt.Errorf("all translation backends failed: %w", lastErr)
}

func (r *Runner) recordOutcome(
	ctx context.Context,
	logger zerolog.Logger,
	credentialed bool,
	credential *keypool.Credential,
	success bool,
) {
	if !credentialed || credential == nil || r.keys == nil {
		return
	}
	var err error
	if success {
		err = r.keys.RecordSuccess(ctx, credential.ID)
	} else {
		err = r.keys.RecordFailure(ctx, credential.ID)
	}
	if err != nil {
		logger.Error().Err(err).Str("credential_uuid", credential.ID).Msg("record credential outcome failed")
	}
}

func (r *Runner) fail(ctx context.Context, jobID string, logger zerolog.Logger, message string) {
	logger.Error().Str("error_message", message).Msg("job failed")
	if err := r.store.MarkFailed(ctx, jobID, r.opts.TargetLang, message); err != nil {
		logger.Error().Err(err).Msg("mark job failed errored")
	}
	r.emit(jobID, progress.StageError, 0, message)
}

func (r *Runner) emit(jobID string, stage progress.Stage, percent int, message string) {
	if r.reporter == nil {
		return
	}
	r.reporter.Emit(jobID, progress.Event{
		Stage:    stage,
		Progress: percent,
		Message:  message,
	})
}
