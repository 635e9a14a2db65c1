package translation

import (
	"context"
	"testing"
)

func TestDictionaryTranslateText(t *testing.T) {
	t.Parallel()

	provider := NewDictionaryProvider()
	resp, err := provider.TranslateText(context.Background(), TextRequest{
		Text:       "Hola, gracias por su llamada.",
		SourceLang: "es",
		TargetLang: "en",
	})
	if err != nil {
		t.Fatalf("translate text: %v", err)
	}
	want := "hello, thank you for su call."
	if resp.Text != want {
		t.Fatalf("unexpected translation: got %q want %q", resp.Text, want)
	}
	if resp.ProviderName != "dictionary" {
		t.Fatalf("unexpected provider name: %q", resp.ProviderName)
	}
}

func TestDictionaryIsDeterministic(t *testing.T) {
	t.Parallel()

	provider := NewDictionaryProvider()
	req := TextRequest{Text: "gracias cliente", SourceLang: "es", TargetLang: "en"}
	first, err := provider.TranslateText(context.Background(), req)
	if err != nil {
		t.Fatalf("translate text: %v", err)
	}
	second, err := provider.TranslateText(context.Background(), req)
	if err != nil {
		t.Fatalf("translate text: %v", err)
	}
	if first.Text != second.Text {
		t.Fatalf("expected deterministic output: %q != %q", first.Text, second.Text)
	}
}

func TestDictionaryUnknownPairPassesThrough(t *testing.T) {
	t.Parallel()

	provider := NewDictionaryProvider()
	resp, err := provider.TranslateSegments(context.Background(), SegmentsRequest{
		Segments: []Segment{
			{SegmentID: 1, Speaker: "agent", Text: "goedemorgen"},
		},
		SourceLang: "nl",
		TargetLang: "en",
	})
	if err != nil {
		t.Fatalf("translate segments: %v", err)
	}
	if len(resp.Segments) != 1 {
		t.Fatalf("unexpected segment count: %d", len(resp.Segments))
	}
	if resp.Segments[0].Text != "goedemorgen" {
		t.Fatalf("expected pass-through, got %q", resp.Segments[0].Text)
	}
	if resp.Segments[0].Speaker != "agent" {
		t.Fatalf("expected speaker preserved, got %q", resp.Segments[0].Speaker)
	}
}
