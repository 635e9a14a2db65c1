package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultLibreEndpoint points to the public LibreTranslate instance.
const DefaultLibreEndpoint = "https://libretranslate.com"

// LibreProvider translates text via a LibreTranslate server. It needs no
// pool-managed credential and serves as the secondary backend.
type LibreProvider struct {
	translateURL string
	client       *http.Client
}

// NewLibreProviderFromEnv builds the provider from VQ_LIBRE_ENDPOINT.
func NewLibreProviderFromEnv() *LibreProvider {
	return NewLibreProvider(os.Getenv("VQ_LIBRE_ENDPOINT"))
}

func NewLibreProvider(endpoint string) *LibreProvider {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		trimmed = DefaultLibreEndpoint
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		parsed, _ = url.Parse(DefaultLibreEndpoint)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/translate"

	return &LibreProvider{
		translateURL: parsed.String(),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (p *LibreProvider) Name() string {
	return "libre"
}

func (p *LibreProvider) Credentialed() bool {
	return false
}

func (p *LibreProvider) TranslateText(ctx context.Context, req TextRequest) (*TextResponse, error) {
	if p == nil {
		return nil, Permanentf("libre provider is nil")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, Permanentf("text is required")
	}
	targetLang := normalizeLangCode(req.TargetLang)
	if targetLang == "" {
		return nil, Permanentf("target language is required")
	}

	started := time.Now()
	translated, err := p.translate(ctx, text, normalizeLangCode(req.SourceLang), targetLang)
	if err != nil {
		return nil, err
	}

	return &TextResponse{
		Text:         translated,
		SourceLang:   normalizeLangCode(req.SourceLang),
		TargetLang:   targetLang,
		ProviderName: p.Name(),
		LatencyMs:    time.Since(started).Milliseconds(),
	}, nil
}

func (p *LibreProvider) TranslateSegments(ctx context.Context, req SegmentsRequest) (*SegmentsResponse, error) {
	if p == nil {
		return nil, Permanentf("libre provider is nil")
	}
	targetLang := normalizeLangCode(req.TargetLang)
	if targetLang == "" {
		return nil, Permanentf("target language is required")
	}

	started := time.Now()
	sourceLang := normalizeLangCode(req.SourceLang)
	translated := make([]TranslatedSegment, 0, len(req.Segments))
	for _, segment := range req.Segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			translated = append(translated, TranslatedSegment{
				SegmentID: segment.SegmentID,
				Speaker:   segment.Speaker,
			})
			continue
		}
		out, err := p.translate(ctx, text, sourceLang, targetLang)
		if err != nil {
			return nil, fmt.Errorf("translate segment %d: %w", segment.SegmentID, err)
		}
		translated = append(translated, TranslatedSegment{
			SegmentID: segment.SegmentID,
			Speaker:   segment.Speaker,
			Text:      out,
		})
	}

	return &SegmentsResponse{
		Segments:     translated,
		ProviderName: p.Name(),
		LatencyMs:    time.Since(started).Milliseconds(),
	}, nil
}

func (p *LibreProvider) translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if sourceLang == "" {
		sourceLang = "auto"
	}

	body, err := json.Marshal(libreRequest{
		Query:  text,
		Source: sourceLang,
		Target: targetLang,
		Format: "text",
	})
	if err != nil {
		return "", Permanent(fmt.Errorf("marshal translation request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.translateURL, bytes.NewReader(body))
	if err != nil {
		return "", Permanent(fmt.Errorf("build translation request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", Transient(fmt.Errorf("send translation request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Transient(fmt.Errorf("read translation response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respBody))
		var errPayload libreErrorResponse
		if unmarshalErr := json.Unmarshal(respBody, &errPayload); unmarshalErr == nil {
			if m := strings.TrimSpace(errPayload.Error); m != "" {
				msg = m
			}
		}
		statusErr := fmt.Errorf("translation endpoint status %d: %s", resp.StatusCode, msg)
		if isRetryableStatus(resp.StatusCode) {
			return "", Transient(statusErr)
		}
		return "", Permanent(statusErr)
	}

	var parsed libreResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", Transient(fmt.Errorf("decode translation response: %w", err))
	}
	translated := strings.TrimSpace(parsed.TranslatedText)
	if translated == "" {
		return "", Transientf("translation response was empty")
	}
	return translated, nil
}

type libreRequest struct {
	Query  string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
}

type libreErrorResponse struct {
	Error string `json:"error"`
}
