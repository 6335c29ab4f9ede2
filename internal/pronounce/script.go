package pronounce

import "strings"

// ScriptFamily groups languages by how their text is compared.
type ScriptFamily int

const (
	// Latin covers alphabetic languages written in the Latin script. Text is
	// tokenised on whitespace and phonetic hints are available.
	Latin ScriptFamily = iota

	// CJK covers Chinese, Japanese and Korean. Text is compared character by
	// character with all whitespace removed.
	CJK

	// Other covers remaining alphabetic scripts (Cyrillic, Greek, Arabic, ...).
	// Text is tokenised like Latin but no phonetic hints are produced.
	Other
)

// String returns the lowercase family name.
func (f ScriptFamily) String() string {
	switch f {
	case Latin:
		return "latin"
	case CJK:
		return "cjk"
	case Other:
		return "other"
	default:
		return "unknown"
	}
}

// languageFamilies maps lowercase language names and ISO 639-1 codes to their
// script family. Unlisted languages default to [Latin].
var languageFamilies = map[string]ScriptFamily{
	"japanese":  CJK,
	"ja":        CJK,
	"chinese":   CJK,
	"mandarin":  CJK,
	"cantonese": CJK,
	"zh":        CJK,
	"korean":    CJK,
	"ko":        CJK,

	"russian":   Other,
	"ru":        Other,
	"ukrainian": Other,
	"uk":        Other,
	"greek":     Other,
	"el":        Other,
	"arabic":    Other,
	"ar":        Other,
	"hebrew":    Other,
	"he":        Other,
	"hindi":     Other,
	"hi":        Other,
	"thai":      Other,
	"th":        Other,
}

// Classify returns the script family of a language given by name
// ("japanese") or code ("ja", "zh-TW"). Matching is case-insensitive.
func Classify(language string) ScriptFamily {
	lang := strings.ToLower(strings.TrimSpace(language))
	if f, ok := languageFamilies[lang]; ok {
		return f
	}
	// Region-qualified codes such as "zh-TW" or "pt_BR".
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		if f, ok := languageFamilies[lang[:i]]; ok {
			return f
		}
	}
	return Latin
}
