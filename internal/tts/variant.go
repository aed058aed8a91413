package tts

import "sort"

// Variant identifies which pretrained model a request resolves to. The
// English model serves the default language; every other supported
// language is served by the multilingual model.
type Variant string

const (
	VariantEnglish      Variant = "english"
	VariantMultilingual Variant = "multilingual"
)

// Variants returns every known variant in a stable order.
func Variants() []Variant {
	return []Variant{VariantEnglish, VariantMultilingual}
}

// DefaultLanguage is the language code served by the English model.
const DefaultLanguage = "en"

// supportedLanguages mirrors the language set published by the upstream
// chatterbox multilingual model.
var supportedLanguages = map[string]bool{
	"ar": true, "da": true, "de": true, "el": true, "en": true,
	"es": true, "fi": true, "fr": true, "he": true, "hi": true,
	"it": true, "ja": true, "ko": true, "ms": true, "nl": true,
	"no": true, "pl": true, "pt": true, "ru": true, "sv": true,
	"sw": true, "tr": true, "zh": true,
}

// SupportedLanguages returns the sorted list of accepted language codes.
func SupportedLanguages() []string {
	out := make([]string, 0, len(supportedLanguages))
	for code := range supportedLanguages {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// IsSupportedLanguage reports whether code is an accepted language tag.
func IsSupportedLanguage(code string) bool {
	return supportedLanguages[code]
}

// ResolveVariant maps a language code to the model variant that serves it.
// The caller is expected to have validated the language first.
func ResolveVariant(language string) Variant {
	if language == "" || language == DefaultLanguage {
		return VariantEnglish
	}
	return VariantMultilingual
}
