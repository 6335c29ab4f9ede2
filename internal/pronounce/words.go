package pronounce

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const defaultPhoneticThreshold = 0.70

// WordResult describes one target token of a tokenised comparison.
type WordResult struct {
	// Target is the normalised target token.
	Target string `json:"target"`

	// Heard is the transcribed token at the same position, or "" when the
	// transcription was shorter.
	Heard string `json:"heard"`

	// Match is true when Heard equals Target.
	Match bool `json:"match"`

	// SoundsLike is true for a mismatch whose Double Metaphone codes overlap
	// and whose Jaro-Winkler similarity reaches the phonetic threshold. Only
	// computed for [Latin] text.
	SoundsLike bool `json:"sounds_like"`
}

// compareWords aligns normalised tokens positionally.
func (s *Scorer) compareWords(target, heard string, family ScriptFamily) []WordResult {
	targetTokens := strings.Fields(target)
	heardTokens := strings.Fields(heard)

	out := make([]WordResult, len(targetTokens))
	for i, tt := range targetTokens {
		w := WordResult{Target: tt}
		if i < len(heardTokens) {
			w.Heard = heardTokens[i]
			w.Match = w.Heard == tt
		}
		if !w.Match && w.Heard != "" && family == Latin {
			w.SoundsLike = s.soundsLike(tt, w.Heard)
		}
		out[i] = w
	}
	return out
}

// soundsLike reports whether two words share a Double Metaphone code and are
// similar enough by Jaro-Winkler.
func (s *Scorer) soundsLike(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	if !codesOverlap([]string{ap, as}, []string{bp, bs}) {
		return false
	}
	return matchr.JaroWinkler(a, b, false) >= s.phoneticThreshold
}

func codesOverlap(a, b []string) bool {
	for _, x := range a {
		if x == "" {
			continue
		}
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
