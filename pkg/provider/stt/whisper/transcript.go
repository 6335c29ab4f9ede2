package whisper

import (
	"strings"
	"time"

	"github.com/audiora/audiora/pkg/provider/stt"
)

// segment is one stretch of recognised speech. probs holds the recogniser's
// probability for each word or token in it.
type segment struct {
	text  string
	words []stt.WordDetail
	probs []float64
}

// assemble joins segments into a transcript. Confidence is the mean of all
// probabilities and stays nil when there are none.
func assemble(segs []segment, dur time.Duration) stt.Transcript {
	tr := stt.Transcript{Duration: dur}
	var (
		texts []string
		sum   float64
		n     int
	)
	for _, s := range segs {
		if t := strings.TrimSpace(s.text); t != "" {
			texts = append(texts, t)
		}
		tr.Words = append(tr.Words, s.words...)
		for _, p := range s.probs {
			sum += p
			n++
		}
	}
	tr.Text = strings.Join(texts, " ")
	if n > 0 {
		tr.Confidence = stt.Confidence(sum / float64(n))
	}
	return tr
}

// control reports whether a token is a marker such as "[_BEG_]" or
// "<|endoftext|>" rather than speech.
func control(token string) bool {
	return strings.HasPrefix(token, "[_") || strings.HasPrefix(token, "<|")
}
