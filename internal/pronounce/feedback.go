package pronounce

import "fmt"

const (
	feedbackPoorAudio = "The audio was hard to make out. Try recording again in a quieter place, closer to the microphone."
	feedbackPerfect   = "Perfect! Your pronunciation matched exactly."

	feedbackUnscorable = "We couldn't score this attempt. Please try again."
)

// feedback picks the message tier for a scored attempt. Low-confidence
// tiers never quote the transcription.
func (s *Scorer) feedback(res Result, target, transcribed string, conf *float64) string {
	switch {
	case res.PoorAudio:
		return feedbackPoorAudio
	case res.ExactMatch:
		return feedbackPerfect
	case conf != nil && *conf < s.thresholds.LowConfidence:
		return clarityFeedback(res.Score)
	default:
		return detailedFeedback(res.Score, target, transcribed)
	}
}

func clarityFeedback(score int) string {
	switch {
	case score >= 80:
		return "Good attempt! Try speaking a little more clearly so every sound comes through."
	case score >= 60:
		return "You're getting there. Slow down and articulate each syllable clearly."
	case score >= 40:
		return "Parts of that were unclear. Listen to the reference again and speak slowly and distinctly."
	default:
		return "We couldn't make out most of that. Speak slowly and clearly, one word at a time."
	}
}

func detailedFeedback(score int, target, transcribed string) string {
	switch {
	case score >= 90:
		return fmt.Sprintf("Excellent! Very close to %q. We heard %q.", target, transcribed)
	case score >= 75:
		return fmt.Sprintf("Great job! We heard %q for %q. Just a few small differences.", transcribed, target)
	case score >= 60:
		return fmt.Sprintf("Good effort. We heard %q, but the target was %q. Focus on the words that differ.", transcribed, target)
	case score >= 40:
		return fmt.Sprintf("Keep practicing. We heard %q instead of %q. Listen to the reference and try again.", transcribed, target)
	default:
		return fmt.Sprintf("That didn't quite match. The target was %q and we heard %q. Try breaking it into smaller parts.", target, transcribed)
	}
}
