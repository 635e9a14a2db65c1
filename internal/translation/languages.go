package translation

import (
	"sort"
	"strings"

	"voiceqc.dev/voiceqc/internal/language"
)

var translationLanguageLabels = map[string]string{
	"ar": "Arabic",
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"hi": "Hindi",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"pl": "Polish",
	"pt": "Portuguese",
	"ru": "Russian",
	"th": "Thai",
	"tl": "Tagalog",
	"tr": "Turkish",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

func SupportedLanguageCodes() []string {
	codes := make([]string, 0, len(translationLanguageLabels))
	for code := range translationLanguageLabels {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func languageLabel(lang string) string {
	normalized := normalizeLangCode(lang)
	if label, ok := translationLanguageLabels[normalized]; ok {
		return label
	}
	fallback := strings.TrimSpace(lang)
	if fallback == "" {
		fallback = "English"
	}
	return fallback
}

func normalizeLangCode(raw string) string {
	return language.NormalizeCode(raw)
}
