package dialogschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func validPayload() string {
	return `{
		"payload_version": "v1",
		"title": "support call 4211",
		"source_lang": "es",
		"transcript": "hola, necesito ayuda con mi pedido",
		"segments": [
			{"speaker": "agent", "text": "hola", "start_ms": 0, "end_ms": 900},
			{"speaker": "customer", "text": "necesito ayuda con mi pedido", "start_ms": 1200, "end_ms": 4100}
		]
	}`
}

func TestValidateDialogPayloadAccepted(t *testing.T) {
	t.Parallel()

	dialog, err := ValidateDialogPayload(json.RawMessage(validPayload()))
	if err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
	if dialog.PayloadVersion != "v1" {
		t.Fatalf("unexpected payload version: %q", dialog.PayloadVersion)
	}
	if len(dialog.Segments) != 2 {
		t.Fatalf("unexpected segment count: %d", len(dialog.Segments))
	}
	if dialog.SourceLang == nil || *dialog.SourceLang != "es" {
		t.Fatalf("source_lang not decoded: %+v", dialog.SourceLang)
	}
	if dialog.Segments[0].StartMS == nil || *dialog.Segments[0].StartMS != 0 {
		t.Fatalf("start_ms not decoded: %+v", dialog.Segments[0])
	}
}

func TestValidateDialogPayloadRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(m map[string]any)
		wantErr string
	}{
		{
			name:    "missing transcript",
			mutate:  func(m map[string]any) { delete(m, "transcript") },
			wantErr: "schema validation failed",
		},
		{
			name:    "empty segments",
			mutate:  func(m map[string]any) { m["segments"] = []any{} },
			wantErr: "schema validation failed",
		},
		{
			name:    "wrong payload version",
			mutate:  func(m map[string]any) { m["payload_version"] = "v2" },
			wantErr: "schema validation failed",
		},
		{
			name:    "unknown field",
			mutate:  func(m map[string]any) { m["audio_url"] = "https://example.com/a.wav" },
			wantErr: "schema validation failed",
		},
		{
			name:    "invalid source language",
			mutate:  func(m map[string]any) { m["source_lang"] = "spanish" },
			wantErr: "schema validation failed",
		},
		{
			name: "blank transcript",
			mutate: func(m map[string]any) {
				m["transcript"] = "   "
			},
			wantErr: "transcript must not be blank",
		},
		{
			name: "segment time range inverted",
			mutate: func(m map[string]any) {
				m["segments"] = []any{map[string]any{
					"speaker":  "agent",
					"text":     "hola",
					"start_ms": 5000,
					"end_ms":   100,
				}}
			},
			wantErr: "end_ms must be >= start_ms",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var doc map[string]any
			if err := json.Unmarshal([]byte(validPayload()), &doc); err != nil {
				t.Fatalf("unmarshal fixture: %v", err)
			}
			tc.mutate(doc)
			raw, err := json.Marshal(doc)
			if err != nil {
				t.Fatalf("marshal mutated fixture: %v", err)
			}

			_, err = ValidateDialogPayload(raw)
			if err == nil {
				t.Fatalf("expected rejection")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("unexpected error %q, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidateDialogPayloadRejectsTrailingContent(t *testing.T) {
	t.Parallel()

	if _, err := ValidateDialogPayload(json.RawMessage(validPayload() + `{"extra": true}`)); err == nil {
		t.Fatalf("trailing content must be rejected")
	}
}

func TestValidateDialogPayloadRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	if _, err := ValidateDialogPayload(json.RawMessage("  ")); err == nil {
		t.Fatalf("empty payload must be rejected")
	}
}
