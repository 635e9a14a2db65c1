package translation

import (
	"context"
	"strings"
	"time"
	"unicode"
)

// DictionaryProvider is the terminal fallback backend. It substitutes
// words through a small static dictionary and leaves unknown words
// untouched, so it is deterministic and never fails. Output quality is
// best-effort; availability is the point.
type DictionaryProvider struct{}

func NewDictionaryProvider() *DictionaryProvider {
	return &DictionaryProvider{}
}

func (p *DictionaryProvider) Name() string {
	return "dictionary"
}

func (p *DictionaryProvider) Credentialed() bool {
	return false
}

func (p *DictionaryProvider) TranslateText(ctx context.Context, req TextRequest) (*TextResponse, error) {
	started := time.Now()
	translated := substituteWords(req.Text, normalizeLangCode(req.SourceLang), normalizeLangCode(req.TargetLang))
	return &TextResponse{
		Text:         translated,
		SourceLang:   normalizeLangCode(req.SourceLang),
		TargetLang:   normalizeLangCode(req.TargetLang),
		ProviderName: p.Name(),
		LatencyMs:    time.Since(started).Milliseconds(),
	}, nil
}

func (p *DictionaryProvider) TranslateSegments(ctx context.Context, req SegmentsRequest) (*SegmentsResponse, error) {
	started := time.Now()
	sourceLang := normalizeLangCode(req.SourceLang)
	targetLang := normalizeLangCode(req.TargetLang)

	translated := make([]TranslatedSegment, 0, len(req.Segments))
	for _, segment := range req.Segments {
		translated = append(translated, TranslatedSegment{
			SegmentID: segment.SegmentID,
			Speaker:   segment.Speaker,
			Text:      substituteWords(segment.Text, sourceLang, targetLang),
		})
	}

	return &SegmentsResponse{
		Segments:     translated,
		ProviderName: p.Name(),
		LatencyMs:    time.Since(started).Milliseconds(),
	}, nil
}

func substituteWords(text, sourceLang, targetLang string) string {
	entries := dictionaryFor(sourceLang, targetLang)
	if len(entries) == 0 {
		return strings.TrimSpace(text)
	}

	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		prefix, word, suffix := splitPunctuation(field)
		if replacement, ok := entries[strings.ToLower(word)]; ok {
			out = append(out, prefix+replacement+suffix)
			continue
		}
		out = append(out, field)
	}
	return strings.Join(out, " ")
}

func splitPunctuation(field string) (prefix, word, suffix string) {
	runes := []rune(field)
	start := 0
	for start < len(runes) && !unicode.IsLetter(runes[start]) && !unicode.IsNumber(runes[start]) {
		start++
	}
	end := len(runes)
	for end > start && !unicode.IsLetter(runes[end-1]) && !unicode.IsNumber(runes[end-1]) {
		end--
	}
	return string(runes[:start]), string(runes[start:end]), string(runes[end:])
}

func dictionaryFor(sourceLang, targetLang string) map[string]string {
	if entries, ok := staticDictionaries[sourceLang+">"+targetLang]; ok {
		return entries
	}
	return nil
}

// staticDictionaries covers the highest-frequency call-center vocabulary
// for the language pairs the fallback must handle.
var staticDictionaries = map[string]map[string]string{
	"es>en": {
		"hola":     "hello",
		"gracias":  "thank you",
		"por":      "for",
		"favor":    "please",
		"sí":       "yes",
		"si":       "yes",
		"no":       "no",
		"cuenta":   "account",
		"ayuda":    "help",
		"problema": "problem",
		"llamada":  "call",
		"cliente":  "customer",
		"buenos":   "good",
		"días":     "morning",
		"tarde":    "afternoon",
		"adiós":    "goodbye",
		"momento":  "moment",
		"espere":   "wait",
		"nombre":   "name",
		"número":   "number",
	},
	"fr>en": {
		"bonjour":  "hello",
		"merci":    "thank you",
		"oui":      "yes",
		"non":      "no",
		"compte":   "account",
		"aide":     "help",
		"appel":    "call",
		"client":   "customer",
		"nom":      "name",
		"numéro":   "number",
		"attendez": "wait",
		"problème": "problem",
	},
	"de>en": {
		"hallo":   "hello",
		"danke":   "thank you",
		"ja":      "yes",
		"nein":    "no",
		"konto":   "account",
		"hilfe":   "help",
		"anruf":   "call",
		"kunde":   "customer",
		"name":    "name",
		"nummer":  "number",
		"moment":  "moment",
		"problem": "problem",
	},
	"en>es": {
		"hello":    "hola",
		"thanks":   "gracias",
		"yes":      "sí",
		"no":       "no",
		"account":  "cuenta",
		"help":     "ayuda",
		"call":     "llamada",
		"customer": "cliente",
		"name":     "nombre",
		"number":   "número",
		"wait":     "espere",
		"problem":  "problema",
	},
}
