package features

import (
	"errors"
	"fmt"
)

// ErrorKind classifies orchestrator failures for the transport layer.
type ErrorKind string

const (
	KindNoQuestionsAvailable ErrorKind = "no_questions_available"
	KindUploadMissing        ErrorKind = "upload_missing"
	KindExtractionFailed     ErrorKind = "extraction_failed"
	KindEmptyTranscript      ErrorKind = "empty_transcript"
	KindSessionNotFound      ErrorKind = "session_not_found"
	KindIndexOutOfRange      ErrorKind = "index_out_of_range"
	KindSubmissionInFlight   ErrorKind = "submission_in_flight"
	KindPipelineFailed       ErrorKind = "pipeline_failed"
)

// Pipeline stage names, reported with unclassified failures for diagnostics.
const (
	StageUpload        = "upload"
	StageExtraction    = "extraction"
	StageTranscription = "transcription"
	StageScoring       = "scoring"
	StagePersist       = "persist"
	StageEnqueue       = "enqueue"
)

// Error is a stage-aware orchestrator error.
type Error struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Stage == "" {
		if e.Err == nil {
			return string(e.Kind)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s at stage %s", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%s at stage %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the error kind, or KindPipelineFailed for foreign errors.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindPipelineFailed
}
