package repo

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned when a session id matches no document.
var ErrSessionNotFound = errors.New("session not found")

// InterviewSession is one mock-interview attempt. The questions array is
// fixed-length at creation; index i always refers to the same question.
type InterviewSession struct {
	ID        string            `bson:"_id" json:"sessionId"`
	OwnerID   string            `bson:"owner_id" json:"ownerId"`
	Label     string            `bson:"label" json:"label"`
	Questions []QuestionAttempt `bson:"questions" json:"questions"`
	CreatedAt time.Time         `bson:"created_at" json:"createdAt"`
}

// QuestionAttempt is the per-question slot accumulating pipeline output.
// Derived fields start empty/nil and are filled by the pipeline; Analysis is
// a kind-keyed bag so new analysis types need no schema migration.
type QuestionAttempt struct {
	PromptText      string                 `bson:"prompt_text" json:"promptText"`
	Category        string                 `bson:"category" json:"category"`
	Transcription   string                 `bson:"transcription" json:"transcription"`
	DeliverySummary string                 `bson:"delivery_summary" json:"deliverySummary"`
	Summary         string                 `bson:"summary" json:"summary"`
	RatingScore     *float64               `bson:"rating_score" json:"ratingScore"`
	Analysis        map[string]interface{} `bson:"analysis,omitempty" json:"analysis,omitempty"`
}

// QuestionRecord is an approved entry from the crowdsourced question pool.
type QuestionRecord struct {
	Text  string `bson:"text"`
	Topic string `bson:"topic"`
}
