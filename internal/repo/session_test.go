package repo

import "testing"

// TestQuestionFieldPath checks the positional update paths sent to Mongo.
func TestQuestionFieldPath(t *testing.T) {
	cases := []struct {
		index int
		field string
		want  string
	}{
		{0, "transcription", "questions.0.transcription"},
		{3, "rating_score", "questions.3.rating_score"},
		{1, "analysis.heuristics", "questions.1.analysis.heuristics"},
	}
	for _, tc := range cases {
		if got := questionFieldPath(tc.index, tc.field); got != tc.want {
			t.Errorf("questionFieldPath(%d, %q) = %q, want %q", tc.index, tc.field, got, tc.want)
		}
	}
}
