package translation

import "context"

// Provider translates call transcripts and speaker segments between
// languages.
type Provider interface {
	TranslateText(ctx context.Context, req TextRequest) (*TextResponse, error)
	TranslateSegments(ctx context.Context, req SegmentsRequest) (*SegmentsResponse, error)
	Name() string
	// Credentialed reports whether the provider authenticates with a
	// pool-managed API key. Failures of credentialed providers count
	// against the key that was used.
	Credentialed() bool
}

// Segment is one speaker utterance of a dialog.
type Segment struct {
	SegmentID int64
	Speaker   string
	Text      string
}

// TranslatedSegment pairs a segment with its translated text.
type TranslatedSegment struct {
	SegmentID int64
	Speaker   string
	Text      string
}

// TextRequest describes one full-transcript translation request.
type TextRequest struct {
	Text       string
	SourceLang string // ISO 639-1 (for example: "es", "en")
	TargetLang string
	APIKey     string // set for credentialed providers only
}

// TextResponse contains translated text and provider metadata.
type TextResponse struct {
	Text         string
	SourceLang   string
	TargetLang   string
	ProviderName string
	LatencyMs    int64
}

// SegmentsRequest describes a batch of speaker utterances to translate.
type SegmentsRequest struct {
	Segments   []Segment
	SourceLang string
	TargetLang string
	APIKey     string
}

// SegmentsResponse contains translated utterances in request order.
type SegmentsResponse struct {
	Segments     []TranslatedSegment
	ProviderName string
	LatencyMs    int64
}
