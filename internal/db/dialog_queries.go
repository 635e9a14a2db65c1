package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voiceqc.dev/voiceqc/internal/queue"
	"voiceqc.dev/voiceqc/internal/translation"
)

const (
	TranslationStatusCompleted = "completed"
	TranslationStatusFailed    = "failed"
)

// InsertDialogParams carries one validated dialog import.
type InsertDialogParams struct {
	DialogUUID string
	Title      *string
	SourceLang string
	Transcript string
	Segments   []InsertSegmentParams
}

// InsertSegmentParams is one speaker utterance on import.
type InsertSegmentParams struct {
	Speaker string
	Text    string
	StartMS *int64
	EndMS   *int64
}

// DialogSummary is the listing/lookup view of a dialog.
type DialogSummary struct {
	DialogUUID   string     `json:"dialog_uuid"`
	Title        *string    `json:"title,omitempty"`
	SourceLang   string     `json:"source_lang"`
	SegmentCount int        `json:"segment_count"`
	CreatedAt    time.Time  `json:"created_at"`
	Translation  *JobStatus `json:"translation,omitempty"`
}

// JobStatus is the persisted terminal state of one translation job.
type JobStatus struct {
	TargetLang   string    `json:"target_lang"`
	Status       string    `json:"status"`
	ProviderName string    `json:"provider_name,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// InsertDialog stores a dialog with its segments in one transaction.
func (p *Pool) InsertDialog(ctx context.Context, params InsertDialogParams) error {
	return p.InTx(ctx, func(tx *Tx) error {
		const dialogQuery = `
INSERT INTO voiceqc.dialogs (dialog_uuid, title, source_lang, transcript)
VALUES ($1::uuid, $2, $3, $4)
RETURNING dialog_id
`
		var dialogID int64
		if err := tx.QueryRow(
			ctx,
			dialogQuery,
			strings.TrimSpace(params.DialogUUID),
			params.Title,
			strings.TrimSpace(params.SourceLang),
			params.Transcript,
		).Scan(&dialogID); err != nil {
			return fmt.Errorf("insert dialog: %w", err)
		}

		const segmentQuery = `
INSERT INTO voiceqc.dialog_segments (dialog_id, position, speaker, text, start_ms, end_ms)
VALUES ($1, $2, $3, $4, $5, $6)
`
		for i, segment := range params.Segments {
			if _, err := tx.Exec(
				ctx,
				segmentQuery,
				dialogID,
				i,
				segment.Speaker,
				segment.Text,
				segment.StartMS,
				segment.EndMS,
			); err != nil {
				return fmt.Errorf("insert dialog segment %d: %w", i, err)
			}
		}
		return nil
	})
}

// GetDialogSummary resolves one dialog with its translation state for a
// target language. Returns ErrNoRows when the dialog does not exist.
func (p *Pool) GetDialogSummary(ctx context.Context, dialogUUID, targetLang string) (*DialogSummary, error) {
	const q = `
SELECT
	d.dialog_uuid::text,
	d.title,
	d.source_lang,
	(SELECT COUNT(*) FROM voiceqc.dialog_segments s WHERE s.dialog_id = d.dialog_id),
	d.created_at,
	t.target_lang,
	t.status,
	t.provider_name,
	t.error_message,
	t.updated_at
FROM voiceqc.dialogs d
LEFT JOIN voiceqc.dialog_translations t
	ON t.dialog_id = d.dialog_id
	AND t.target_lang = $2
WHERE d.dialog_uuid = $1::uuid
LIMIT 1
`

	var (
		summary     DialogSummary
		tTargetLang *string
		tStatus     *string
		tProvider   *string
		tError      *string
		tUpdatedAt  *time.Time
	)
	err := p.QueryRow(ctx, q, strings.TrimSpace(dialogUUID), strings.TrimSpace(targetLang)).Scan(
		&summary.DialogUUID,
		&summary.Title,
		&summary.SourceLang,
		&summary.SegmentCount,
		&summary.CreatedAt,
		&tTargetLang,
		&tStatus,
		&tProvider,
		&tError,
		&tUpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query dialog summary: %w", err)
	}

	if tTargetLang != nil && tStatus != nil && tUpdatedAt != nil {
		status := JobStatus{
			TargetLang: *tTargetLang,
			Status:     *tStatus,
			UpdatedAt:  *tUpdatedAt,
		}
		if tProvider != nil {
			status.ProviderName = *tProvider
		}
		status.ErrorMessage = tError
		summary.Translation = &status
	}
	return &summary, nil
}

// ListDialogs returns the newest dialogs with their translation state.
func (p *Pool) ListDialogs(ctx context.Context, targetLang string, limit int) ([]DialogSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	const q = `
SELECT
	d.dialog_uuid::text,
	d.title,
	d.source_lang,
	(SELECT COUNT(*) FROM voiceqc.dialog_segments s WHERE s.dialog_id = d.dialog_id),
	d.created_at,
	t.target_lang,
	t.status,
	t.provider_name,
	t.error_message,
	t.updated_at
FROM voiceqc.dialogs d
LEFT JOIN voiceqc.dialog_translations t
	ON t.dialog_id = d.dialog_id
	AND t.target_lang = $1
ORDER BY d.created_at DESC, d.dialog_id DESC
LIMIT $2
`

	rows, err := p.Query(ctx, q, strings.TrimSpace(targetLang), limit)
	if err != nil {
		return nil, fmt.Errorf("query dialogs: %w", err)
	}
	defer rows.Close()

	items := make([]DialogSummary, 0, limit)
	for rows.Next() {
		var (
			summary     DialogSummary
			tTargetLang *string
			tStatus     *string
			tProvider   *string
			tError      *string
			tUpdatedAt  *time.Time
		)
		if err := rows.Scan(
			&summary.DialogUUID,
			&summary.Title,
			&summary.SourceLang,
			&summary.SegmentCount,
			&summary.CreatedAt,
			&tTargetLang,
			&tStatus,
			&tProvider,
			&tError,
			&tUpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan dialog row: %w", err)
		}
		if tTargetLang != nil && tStatus != nil && tUpdatedAt != nil {
			status := JobStatus{
				TargetLang: *tTargetLang,
				Status:     *tStatus,
				UpdatedAt:  *tUpdatedAt,
			}
			if tProvider != nil {
				status.ProviderName = *tProvider
			}
			status.ErrorMessage = tError
			summary.Translation = &status
		}
		items = append(items, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dialog rows: %w", err)
	}
	return items, nil
}

// GetJobRecord loads everything a job runner needs. A completed
// translation for the target language marks the record idempotent;
// failed rows do not block a retry.
func (p *Pool) GetJobRecord(ctx context.Context, dialogUUID, targetLang string) (*queue.JobRecord, error) {
	const dialogQuery = `
SELECT
	d.dialog_id,
	d.dialog_uuid::text,
	d.source_lang,
	d.transcript,
	EXISTS (
		SELECT 1
		FROM voiceqc.dialog_translations t
		WHERE t.dialog_id = d.dialog_id
		  AND t.target_lang = $2
		  AND t.status = 'completed'
	)
FROM voiceqc.dialogs d
WHERE d.dialog_uuid = $1::uuid
LIMIT 1
`

	var (
		dialogID int64
		record   queue.JobRecord
	)
	err := p.QueryRow(ctx, dialogQuery, strings.TrimSpace(dialogUUID), strings.TrimSpace(targetLang)).Scan(
		&dialogID,
		&record.DialogUUID,
		&record.SourceLang,
		&record.Transcript,
		&record.HasTranslation,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, fmt.Errorf("dialog %s not found", dialogUUID)
		}
		return nil, fmt.Errorf("query dialog for job: %w", err)
	}

	const segmentsQuery = `
SELECT segment_id, speaker, text
FROM voiceqc.dialog_segments
WHERE dialog_id = $1
ORDER BY position ASC, segment_id ASC
`

	rows, err := p.Query(ctx, segmentsQuery, dialogID)
	if err != nil {
		return nil, fmt.Errorf("query dialog segments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var segment translation.Segment
		if err := rows.Scan(&segment.SegmentID, &segment.Speaker, &segment.Text); err != nil {
			return nil, fmt.Errorf("scan dialog segment: %w", err)
		}
		record.Segments = append(record.Segments, segment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dialog segments: %w", err)
	}

	return &record, nil
}

// SaveTranslationResult upserts the completed translation and replaces
// its per-segment rows atomically.
func (p *Pool) SaveTranslationResult(ctx context.Context, dialogUUID, targetLang string, result queue.Result) error {
	return p.InTx(ctx, func(tx *Tx) error {
		const upsertQuery = `
INSERT INTO voiceqc.dialog_translations (
	dialog_id,
	target_lang,
	source_lang,
	status,
	translated_text,
	provider_name,
	error_message
)
SELECT d.dialog_id, $2, $3, 'completed', $4, $5, NULL
FROM voiceqc.dialogs d
WHERE d.dialog_uuid = $1::uuid
ON CONFLICT (dialog_id, target_lang)
DO UPDATE SET
	source_lang = EXCLUDED.source_lang,
	status = 'completed',
	translated_text = EXCLUDED.translated_text,
	provider_name = EXCLUDED.provider_name,
	error_message = NULL,
	updated_at = now()
RETURNING dialog_translation_id
`
		var translationID int64
		if err := tx.QueryRow(
			ctx,
			upsertQuery,
			strings.TrimSpace(dialogUUID),
			strings.TrimSpace(targetLang),
			strings.TrimSpace(result.SourceLang),
			result.Text,
			strings.TrimSpace(result.ProviderName),
		).Scan(&translationID); err != nil {
			if IsNoRows(err) {
				return fmt.Errorf("dialog %s not found", dialogUUID)
			}
			return fmt.Errorf("upsert dialog translation: %w", err)
		}

		const deleteQuery = `
DELETE FROM voiceqc.segment_translations
WHERE dialog_translation_id = $1
`
		if _, err := tx.Exec(ctx, deleteQuery, translationID); err != nil {
			return fmt.Errorf("clear segment translations: %w", err)
		}

		const segmentQuery = `
INSERT INTO voiceqc.segment_translations (dialog_translation_id, segment_id, speaker, translated_text)
VALUES ($1, $2, $3, $4)
`
		for _, segment := range result.Segments {
			if _, err := tx.Exec(ctx, segmentQuery, translationID, segment.SegmentID, segment.Speaker, segment.Text); err != nil {
				return fmt.Errorf("insert segment translation %d: %w", segment.SegmentID, err)
			}
		}
		return nil
	})
}

// MarkFailed records a terminal job failure with its error message.
func (p *Pool) MarkFailed(ctx context.Context, dialogUUID, targetLang, errorMessage string) error {
	const q = `
INSERT INTO voiceqc.dialog_translations (dialog_id, target_lang, status, error_message)
SELECT d.dialog_id, $2, 'failed', $3
FROM voiceqc.dialogs d
WHERE d.dialog_uuid = $1::uuid
ON CONFLICT (dialog_id, target_lang)
DO UPDATE SET
	status = 'failed',
	error_message = EXCLUDED.error_message,
	updated_at = now()
`

	tag, err := p.Exec(ctx, q, strings.TrimSpace(dialogUUID), strings.TrimSpace(targetLang), errorMessage)
	if err != nil {
		return fmt.Errorf("mark translation failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dialog %s not found", dialogUUID)
	}
	return nil
}

// GetTranslation loads the stored translation with its segments.
func (p *Pool) GetTranslation(ctx context.Context, dialogUUID, targetLang string) (*StoredTranslation, error) {
	const q = `
SELECT
	t.dialog_translation_id,
	d.dialog_uuid::text,
	t.target_lang,
	t.source_lang,
	t.status,
	t.translated_text,
	t.provider_name,
	t.error_message,
	t.updated_at
FROM voiceqc.dialog_translations t
JOIN voiceqc.dialogs d
	ON d.dialog_id = t.dialog_id
WHERE d.dialog_uuid = $1::uuid
  AND t.target_lang = $2
LIMIT 1
`

	var (
		stored        StoredTranslation
		translationID int64
	)
	err := p.QueryRow(ctx, q, strings.TrimSpace(dialogUUID), strings.TrimSpace(targetLang)).Scan(
		&translationID,
		&stored.DialogUUID,
		&stored.TargetLang,
		&stored.SourceLang,
		&stored.Status,
		&stored.TranslatedText,
		&stored.ProviderName,
		&stored.ErrorMessage,
		&stored.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query stored translation: %w", err)
	}

	const segmentsQuery = `
SELECT st.segment_id, st.speaker, st.translated_text
FROM voiceqc.segment_translations st
WHERE st.dialog_translation_id = $1
ORDER BY st.segment_id ASC
`
	rows, err := p.Query(ctx, segmentsQuery, translationID)
	if err != nil {
		return nil, fmt.Errorf("query translated segments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var segment StoredSegmentTranslation
		if err := rows.Scan(&segment.SegmentID, &segment.Speaker, &segment.TranslatedText); err != nil {
			return nil, fmt.Errorf("scan translated segment: %w", err)
		}
		stored.Segments = append(stored.Segments, segment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate translated segments: %w", err)
	}

	return &stored, nil
}

// StoredTranslation is the read view of a persisted translation.
type StoredTranslation struct {
	DialogUUID     string                     `json:"dialog_uuid"`
	TargetLang     string                     `json:"target_lang"`
	SourceLang     string                     `json:"source_lang"`
	Status         string                     `json:"status"`
	TranslatedText string                     `json:"translated_text"`
	ProviderName   string                     `json:"provider_name"`
	ErrorMessage   *string                    `json:"error_message,omitempty"`
	UpdatedAt      time.Time                  `json:"updated_at"`
	Segments       []StoredSegmentTranslation `json:"segments"`
}

// StoredSegmentTranslation is one translated utterance in the read view.
type StoredSegmentTranslation struct {
	SegmentID      int64  `json:"segment_id"`
	Speaker        string `json:"speaker"`
	TranslatedText string `json:"translated_text"`
}
