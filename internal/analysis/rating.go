package analysis

import (
	"regexp"
	"strconv"
	"strings"
)

// ScoreResult is the structured form of an LLM scoring response. Rating is
// nil when the response carries no parseable rating in [0,5].
type ScoreResult struct {
	Summary string
	Rating  *float64
}

var ratingValuePattern = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*/\s*5`)

// ParseScoringResponse splits an LLM scoring response into summary text and a
// numeric rating. The summary is everything preceding the first line that
// starts with "Rating:"; the rating is the decimal immediately preceding a
// "/5" marker at or after that line. Returns ok=false for a blank response,
// which callers treat as a degraded scoring result.
func ParseScoringResponse(text string) (ScoreResult, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ScoreResult{}, false
	}

	lines := strings.Split(text, "\n")
	ratingLine := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "Rating:") {
			ratingLine = i
			break
		}
	}
	if ratingLine == -1 {
		return ScoreResult{Summary: trimmed}, true
	}

	summary := strings.TrimSpace(strings.Join(lines[:ratingLine], "\n"))

	var rating *float64
	rest := strings.Join(lines[ratingLine:], "\n")
	if m := ratingValuePattern.FindStringSubmatch(rest); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 0 && v <= 5 {
			rating = &v
		}
	}

	return ScoreResult{Summary: summary, Rating: rating}, true
}
