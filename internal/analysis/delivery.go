package analysis

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// DeliveryReport holds rule-based speech-delivery metrics computed from a
// transcript, plus a display-ready coaching summary.
type DeliveryReport struct {
	TotalWords      int            `bson:"total_words" json:"totalWords"`
	DurationSeconds float64        `bson:"duration_seconds" json:"durationSeconds"`
	WordsPerMinute  float64        `bson:"words_per_minute" json:"wordsPerMinute"`
	FillerCounts    map[string]int `bson:"filler_counts" json:"fillerCounts"`
	FillerTotal     int            `bson:"filler_total" json:"fillerTotal"`
	FillerRatio     float64        `bson:"filler_ratio" json:"fillerRatio"`
	PauseCount      int            `bson:"pause_count" json:"pauseCount"`
	SentenceVariety float64        `bson:"sentence_variety" json:"sentenceVariety"`
	Tone            string         `bson:"tone" json:"tone"`
	Fluency         string         `bson:"fluency" json:"fluency"`
	Suggestions     []string       `bson:"suggestions" json:"suggestions"`
	CoachSummary    string         `bson:"coach_summary" json:"coachSummary"`
}

// Single-token fillers are matched against the tokenized stream; the phrase
// fillers contain spaces and are matched against the raw lowercased text.
var fillerTokens = []string{"um", "uh", "like", "actually", "basically", "right", "well", "okay"}

var fillerPhrases = []string{"you know", "i mean"}

var positiveWords = []string{"confident", "excited", "happy", "great", "good", "love", "enjoy", "passionate", "success", "achieve"}

var negativeWords = []string{"nervous", "worried", "afraid", "difficult", "problem", "hate", "bad", "fail", "stress", "unsure"}

var (
	pausePattern   = regexp.MustCompile(`\.{2,}|-{2,}|—{2,}`)
	sentenceSplit  = regexp.MustCompile(`[.!?]+`)
	tokenCutset    = ".,!?;:\"'()[]{}…-—"
	wordsPerSecond = 1.5
)

// AnalyzeDelivery computes delivery metrics for a transcript. durationSeconds
// may be zero, in which case the duration is estimated from the word count.
// Returns nil for a blank transcript; delivery analysis is best-effort
// enrichment and a missing report is not an error.
func AnalyzeDelivery(transcript string, durationSeconds float64) *DeliveryReport {
	if strings.TrimSpace(transcript) == "" {
		return nil
	}

	lower := strings.ToLower(transcript)
	rawTokens := strings.Fields(lower)
	tokens := make([]string, 0, len(rawTokens))
	for _, tok := range rawTokens {
		if t := strings.Trim(tok, tokenCutset); t != "" {
			tokens = append(tokens, t)
		}
	}

	totalWords := len(rawTokens)

	duration := durationSeconds
	if duration <= 0 {
		duration = float64(totalWords) / wordsPerSecond
	}
	wpm := 0.0
	if duration > 0 {
		wpm = float64(totalWords) / (duration / 60.0)
	}

	fillerCounts := make(map[string]int)
	fillerTotal := 0
	for _, tok := range tokens {
		for _, filler := range fillerTokens {
			if tok == filler {
				fillerCounts[filler]++
				fillerTotal++
				break
			}
		}
	}
	for _, phrase := range fillerPhrases {
		if n := strings.Count(lower, phrase); n > 0 {
			fillerCounts[phrase] += n
			fillerTotal += n
		}
	}

	fillerRatio := 0.0
	if totalWords > 0 {
		fillerRatio = float64(fillerTotal) / float64(totalWords)
	}

	pauseCount := len(pausePattern.FindAllString(transcript, -1))
	variety := sentenceVariety(transcript)
	tone := toneOf(lower)
	fluency := fluencyBucket(fillerRatio)
	suggestions := buildSuggestions(fillerTotal, pauseCount, variety, wpm, tone)

	report := &DeliveryReport{
		TotalWords:      totalWords,
		DurationSeconds: duration,
		WordsPerMinute:  wpm,
		FillerCounts:    fillerCounts,
		FillerTotal:     fillerTotal,
		FillerRatio:     fillerRatio,
		PauseCount:      pauseCount,
		SentenceVariety: variety,
		Tone:            tone,
		Fluency:         fluency,
		Suggestions:     suggestions,
	}
	report.CoachSummary = coachSummary(report)
	return report
}

// sentenceVariety is the population standard deviation of sentence lengths
// in words. A single sentence yields 0.
func sentenceVariety(transcript string) float64 {
	parts := sentenceSplit.Split(transcript, -1)
	lengths := make([]float64, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		lengths = append(lengths, float64(len(strings.Fields(p))))
	}
	if len(lengths) == 0 {
		return 0
	}

	mean := 0.0
	for _, l := range lengths {
		mean += l
	}
	mean /= float64(len(lengths))

	variance := 0.0
	for _, l := range lengths {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(lengths))
	return math.Sqrt(variance)
}

func toneOf(lower string) string {
	positive, negative := 0, 0
	for _, w := range positiveWords {
		positive += strings.Count(lower, w)
	}
	for _, w := range negativeWords {
		negative += strings.Count(lower, w)
	}
	switch {
	case positive > negative:
		return "positive"
	case negative > positive:
		return "cautious"
	default:
		return "neutral"
	}
}

// fluencyBucket maps a filler-to-word ratio to a coarse label. Boundaries are
// inclusive-exclusive: a ratio of exactly 0.02 is "Good", not "Excellent".
func fluencyBucket(fillerRatio float64) string {
	switch {
	case fillerRatio < 0.02:
		return "Excellent"
	case fillerRatio < 0.05:
		return "Good"
	case fillerRatio < 0.10:
		return "Average"
	default:
		return "Needs Improvement"
	}
}

func buildSuggestions(fillerTotal, pauseCount int, variety, wpm float64, tone string) []string {
	var suggestions []string
	if fillerTotal > 5 {
		suggestions = append(suggestions, "Try to avoid filler words to sound more articulate.")
	}
	if pauseCount > 5 {
		suggestions = append(suggestions, "Reduce long pauses to keep your answer flowing.")
	}
	if variety < 5 {
		suggestions = append(suggestions, "Vary your sentence lengths to keep the listener engaged.")
	}
	if wpm < 80 {
		suggestions = append(suggestions, "Try to speak a bit faster to maintain energy.")
	}
	if wpm > 160 {
		suggestions = append(suggestions, "Slow down a little so the interviewer can follow you.")
	}
	if tone == "cautious" {
		suggestions = append(suggestions, "Use more confident language when describing your work.")
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions, "Great delivery! Keep up the clear and confident speaking style.")
	}
	return suggestions
}

func coachSummary(r *DeliveryReport) string {
	lines := []string{
		"Delivery Analysis:",
		fmt.Sprintf("- Pace: %.0f words per minute over %.0f seconds (%d words).", r.WordsPerMinute, r.DurationSeconds, r.TotalWords),
		fmt.Sprintf("- Fluency: %s (%d filler words, %.1f%% of speech).", r.Fluency, r.FillerTotal, r.FillerRatio*100),
		fmt.Sprintf("- Pauses: %d long pauses detected.", r.PauseCount),
		fmt.Sprintf("- Sentence variety: %.1f.", r.SentenceVariety),
		fmt.Sprintf("- Tone: %s.", r.Tone),
		"Suggestions:",
	}
	for _, s := range r.Suggestions {
		lines = append(lines, "- "+s)
	}
	return strings.Join(lines, "\n")
}
