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

const (
	// DefaultOpenAIEndpoint points to the hosted OpenAI-compatible API.
	DefaultOpenAIEndpoint = "https://api.openai.com/v1"
	// DefaultOpenAIModel is the default chat model used for translation.
	DefaultOpenAIModel = "gpt-4o-mini"
)

// OpenAIProvider translates text by calling an OpenAI-compatible chat
// completions endpoint. It authenticates with a pool-managed API key
// supplied per request.
type OpenAIProvider struct {
	endpointURL string
	model       string
	client      *http.Client
}

// NewOpenAIProviderFromEnv builds the provider from env vars.
//   - VQ_OPENAI_ENDPOINT (default: https://api.openai.com/v1)
//   - VQ_OPENAI_MODEL (default: gpt-4o-mini)
func NewOpenAIProviderFromEnv() *OpenAIProvider {
	endpoint := strings.TrimSpace(os.Getenv("VQ_OPENAI_ENDPOINT"))
	if endpoint == "" {
		endpoint = DefaultOpenAIEndpoint
	}
	model := strings.TrimSpace(os.Getenv("VQ_OPENAI_MODEL"))
	if model == "" {
		model = DefaultOpenAIModel
	}
	return NewOpenAIProvider(endpoint, model)
}

// NewOpenAIProvider builds the provider for the given endpoint/model.
func NewOpenAIProvider(endpoint, model string) *OpenAIProvider {
	trimmedModel := strings.TrimSpace(model)
	if trimmedModel == "" {
		trimmedModel = DefaultOpenAIModel
	}
	return &OpenAIProvider{
		endpointURL: chatCompletionsURL(normalizeEndpoint(endpoint)),
		model:       trimmedModel,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Credentialed() bool {
	return true
}

// ModelName returns the configured model identifier.
func (p *OpenAIProvider) ModelName() string {
	if p == nil {
		return ""
	}
	return p.model
}

func (p *OpenAIProvider) TranslateText(ctx context.Context, req TextRequest) (*TextResponse, error) {
	if p == nil {
		return nil, Permanentf("openai provider is nil")
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
	translated, err := p.complete(ctx, buildTranslationPrompt(text, targetLang), req.APIKey)
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

func (p *OpenAIProvider) TranslateSegments(ctx context.Context, req SegmentsRequest) (*SegmentsResponse, error) {
	if p == nil {
		return nil, Permanentf("openai provider is nil")
	}
	targetLang := normalizeLangCode(req.TargetLang)
	if targetLang == "" {
		return nil, Permanentf("target language is required")
	}

	started := time.Now()
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
		out, err := p.complete(ctx, buildTranslationPrompt(text, targetLang), req.APIKey)
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

func (p *OpenAIProvider) complete(ctx context.Context, prompt, apiKey string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{
				Role:    "user",
				Content: prompt,
			},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", Permanent(fmt.Errorf("marshal translation request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpointURL, bytes.NewReader(body))
	if err != nil {
		return "", Permanent(fmt.Errorf("build translation request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(apiKey); key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}

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
		var errPayload chatErrorResponse
		if unmarshalErr := json.Unmarshal(respBody, &errPayload); unmarshalErr == nil {
			if m := strings.TrimSpace(errPayload.Error.Message); m != "" {
				msg = m
			}
		}
		statusErr := fmt.Errorf("translation endpoint status %d: %s", resp.StatusCode, msg)
		if isRetryableStatus(resp.StatusCode) {
			return "", Transient(statusErr)
		}
		return "", Permanent(statusErr)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", Transient(fmt.Errorf("decode translation response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", Transientf("translation response missing choices")
	}

	translated := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if translated == "" {
		return "", Transientf("translation response was empty")
	}
	return translated, nil
}

func isRetryableStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func buildTranslationPrompt(text, targetLang string) string {
	return fmt.Sprintf(
		"Translate the following call-center transcript text into %s. Output only the translation, without additional explanation.\n\n%s",
		languageLabel(targetLang),
		text,
	)
}

func normalizeEndpoint(raw string) string {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		return DefaultOpenAIEndpoint
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	parsed, err := url.Parse(endpoint)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return DefaultOpenAIEndpoint
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	if parsed.Path == "" {
		parsed.Path = "/v1"
	}
	return parsed.String()
}

func chatCompletionsURL(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return DefaultOpenAIEndpoint + "/chat/completions"
	}

	path := strings.TrimRight(parsed.Path, "/")
	switch {
	case strings.HasSuffix(path, "/chat/completions"):
		parsed.Path = path
	case strings.HasSuffix(path, "/v1"):
		parsed.Path = path + "/chat/completions"
	case path == "":
		parsed.Path = "/v1/chat/completions"
	default:
		parsed.Path = path + "/v1/chat/completions"
	}

	return parsed.String()
}
