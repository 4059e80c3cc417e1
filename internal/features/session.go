package features

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"interviewprep/internal/analysis"
	"interviewprep/internal/config"
	"interviewprep/internal/prompts"
	"interviewprep/internal/repo"
	"interviewprep/internal/service"
	redisutil "interviewprep/internal/utils/redis"
	"interviewprep/internal/utils/sse"
	rabbit "interviewprep/pkg/rabbit/pkg"
)

// AnonymousOwner is the sentinel owner id for unauthenticated sessions.
const AnonymousOwner = "anonymous"

// scoringUnavailableSummary is written when LLM scoring degrades, so a
// degraded answer still reaches a terminal status.
const scoringUnavailableSummary = "Automated scoring was unavailable for this answer. The transcript and delivery analysis above are still complete."

// QuestionStatus is the derived per-question state exposed to polling clients.
type QuestionStatus string

const (
	StatusIdle       QuestionStatus = "idle"
	StatusProcessing QuestionStatus = "processing"
	StatusDone       QuestionStatus = "done"
)

type QuestionPreview struct {
	PromptText string `json:"promptText"`
	Category   string `json:"category"`
}

type CreatedSession struct {
	SessionID     string            `json:"sessionId"`
	QuestionCount int               `json:"questionCount"`
	Questions     []QuestionPreview `json:"questions"`
}

// Extractor converts an uploaded video into a decodable audio track.
type Extractor interface {
	Extract(ctx context.Context, videoPath string) (string, error)
}

// Transcriber turns an audio file into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Completer produces LLM text completions, degrading instead of failing.
type Completer interface {
	Complete(ctx context.Context, prompt string) service.Completion
}

// UploadStore persists and disposes of transient video/audio files.
type UploadStore interface {
	SaveUpload(src io.Reader, ext string) (string, error)
	Cleanup(paths ...string)
}

// Deps bundles the adapters the orchestrator coordinates. Everything is an
// interface so the pipeline runs against fakes in tests.
type Deps struct {
	Uploads     UploadStore
	Extractor   Extractor
	Transcriber Transcriber
	LLM         Completer
	Prompts     *prompts.Builder
	Locker      redisutil.Redis
	Rabbit      rabbit.Rabbit
}

// Service is the mock-interview session orchestrator.
type Service struct {
	repo          *repo.Repository
	uploads       UploadStore
	extractor     Extractor
	transcriber   Transcriber
	llm           Completer
	prompts       *prompts.Builder
	locker        redisutil.Redis
	rabbit        rabbit.Rabbit
	workers       *AnswerWorkerPool
	logger        *zap.Logger
	questionCount int
	lockTTL       time.Duration
	inflight      sync.Map // key: "sessionID:index"
}

func New(repository *repo.Repository, deps Deps, cfg *config.Config, logger *zap.Logger) *Service {
	return &Service{
		repo:          repository,
		uploads:       deps.Uploads,
		extractor:     deps.Extractor,
		transcriber:   deps.Transcriber,
		llm:           deps.LLM,
		prompts:       deps.Prompts,
		locker:        deps.Locker,
		rabbit:        deps.Rabbit,
		workers:       NewAnswerWorkerPool(cfg.Session.WorkerCount, cfg.Session.QueueSize, cfg.Session.EnqueueWait),
		logger:        logger,
		questionCount: cfg.Session.QuestionCount,
		lockTTL:       cfg.Redis.LockTTL,
	}
}

func (s *Service) Start() {
	s.workers.Start(s)
}

func (s *Service) Stop() {
	s.workers.Stop()
}

// WorkerMetrics exposes pipeline pool counters for the metrics endpoint.
func (s *Service) WorkerMetrics() map[string]interface{} {
	return s.workers.Metrics()
}

// CreateSession draws questions from the approved pool and persists a fresh
// session with empty attempts. Only client-facing question fields are
// returned; analysis state stays internal.
func (s *Service) CreateSession(ctx context.Context, ownerID, label string) (*CreatedSession, error) {
	if ownerID == "" {
		ownerID = AnonymousOwner
	}

	records, err := s.repo.Question.SampleApproved(ctx, s.questionCount)
	if err != nil {
		s.logger.Error("Failed to sample question pool", zap.Error(err))
		return nil, &Error{Kind: KindPipelineFailed, Stage: StagePersist, Err: err}
	}
	if len(records) == 0 {
		return nil, &Error{Kind: KindNoQuestionsAvailable, Err: errors.New("approved question pool is empty")}
	}

	// Generate a unique session ID
	var sessionID string
	for {
		sessionID = uuid.NewString()
		exists, err := s.repo.Session.Exists(ctx, sessionID)
		if err != nil {
			s.logger.Error("Failed to query session", zap.Error(err))
			return nil, fmt.Errorf("failed to query session: %w", err)
		}
		if !exists {
			break
		}
	}

	attempts := make([]repo.QuestionAttempt, len(records))
	previews := make([]QuestionPreview, len(records))
	for i, record := range records {
		attempts[i] = repo.QuestionAttempt{
			PromptText: record.Text,
			Category:   record.Topic,
		}
		previews[i] = QuestionPreview{
			PromptText: record.Text,
			Category:   record.Topic,
		}
	}

	session := &repo.InterviewSession{
		ID:        sessionID,
		OwnerID:   ownerID,
		Label:     label,
		Questions: attempts,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Session.Create(ctx, session); err != nil {
		s.logger.Error("Failed to create session", zap.Error(err))
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("Created interview session",
		zap.String("sessionId", sessionID),
		zap.String("ownerId", ownerID),
		zap.Int("questionCount", len(attempts)))

	return &CreatedSession{
		SessionID:     sessionID,
		QuestionCount: len(attempts),
		Questions:     previews,
	}, nil
}

// SubmitAnswer runs the per-answer pipeline for one question slot. The call
// blocks until the pipeline finishes; concurrent calls for distinct slots
// are independent, a second call for the same slot is rejected while the
// first is in flight.
func (s *Service) SubmitAnswer(ctx context.Context, sessionID string, questionIndex int, questionText string, upload io.Reader, ext string) error {
	session, err := s.repo.Session.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repo.ErrSessionNotFound) {
			return &Error{Kind: KindSessionNotFound, Err: err}
		}
		return &Error{Kind: KindPipelineFailed, Stage: StagePersist, Err: err}
	}
	if questionIndex < 0 || questionIndex >= len(session.Questions) {
		return &Error{Kind: KindIndexOutOfRange, Err: fmt.Errorf("question index %d out of range [0,%d)", questionIndex, len(session.Questions))}
	}
	if upload == nil {
		return &Error{Kind: KindUploadMissing, Stage: StageUpload, Err: errors.New("no video payload")}
	}
	if questionText == "" {
		questionText = session.Questions[questionIndex].PromptText
	}

	slotKey := fmt.Sprintf("%s:%d", sessionID, questionIndex)
	if _, loaded := s.inflight.LoadOrStore(slotKey, struct{}{}); loaded {
		return &Error{Kind: KindSubmissionInFlight, Err: fmt.Errorf("submission for %s already in flight", slotKey)}
	}
	defer s.inflight.Delete(slotKey)

	// Cross-instance guard; best-effort when redis is down.
	lockKey := "submission:" + slotKey
	acquired, err := s.locker.SetNX(ctx, lockKey, "1", s.lockTTL)
	if err != nil {
		s.logger.Warn("Submission lock unavailable, relying on in-process guard", zap.String("key", lockKey), zap.Error(err))
	} else if !acquired {
		return &Error{Kind: KindSubmissionInFlight, Err: fmt.Errorf("submission for %s locked by another instance", slotKey)}
	}
	defer func() {
		if _, err := s.locker.Delete(context.Background(), lockKey); err != nil {
			s.logger.Warn("Failed to release submission lock", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	job := answerJob{
		SessionID:    sessionID,
		Index:        questionIndex,
		QuestionText: questionText,
		Upload:       upload,
		Ext:          ext,
		Result:       make(chan error, 1),
	}
	if !s.workers.Enqueue(s.logger, job) {
		return &Error{Kind: KindPipelineFailed, Stage: StageEnqueue, Err: errors.New("pipeline queue is full")}
	}
	return <-job.Result
}

// runPipeline executes the sequential answer stages. Failures up through
// transcription abort with no store writes; scoring failures degrade.
func (s *Service) runPipeline(ctx context.Context, job answerJob) error {
	logger := s.logger.With(zap.String("sessionId", job.SessionID), zap.Int("questionIndex", job.Index))

	videoPath, err := s.uploads.SaveUpload(job.Upload, job.Ext)
	if err != nil {
		return &Error{Kind: KindUploadMissing, Stage: StageUpload, Err: err}
	}
	var audioPath string
	defer func() {
		s.uploads.Cleanup(videoPath, audioPath)
	}()

	s.notify(job.SessionID, job.Index, StageExtraction, StatusIdle)
	audioPath, err = s.extractor.Extract(ctx, videoPath)
	if err != nil {
		logger.Error("Audio extraction failed", zap.Error(err))
		return &Error{Kind: KindExtractionFailed, Stage: StageExtraction, Err: err}
	}

	s.notify(job.SessionID, job.Index, StageTranscription, StatusIdle)
	transcript, err := s.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		logger.Error("Transcription failed", zap.Error(err))
		return &Error{Kind: KindEmptyTranscript, Stage: StageTranscription, Err: err}
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return &Error{Kind: KindEmptyTranscript, Stage: StageTranscription, Err: errors.New("transcription produced no text")}
	}

	report := analysis.AnalyzeDelivery(transcript, 0)

	fields := map[string]interface{}{
		"transcription":       transcript,
		"delivery_summary":    report.CoachSummary,
		"analysis.heuristics": report,
	}
	if err := s.updateQuestion(ctx, job.SessionID, job.Index, fields); err != nil {
		return err
	}
	s.notify(job.SessionID, job.Index, StageScoring, StatusProcessing)

	prompt := s.prompts.BuildScoringPrompt(job.QuestionText, transcript, report.CoachSummary)
	completion := s.llm.Complete(ctx, prompt)

	summary := scoringUnavailableSummary
	var rating *float64
	if completion.Degraded {
		logger.Warn("LLM scoring degraded, persisting partial result", zap.String("reason", completion.Reason))
	} else if parsed, ok := analysis.ParseScoringResponse(completion.Text); ok {
		if parsed.Summary != "" {
			summary = parsed.Summary
		}
		rating = parsed.Rating
	}

	if err := s.updateQuestion(ctx, job.SessionID, job.Index, map[string]interface{}{
		"summary":      summary,
		"rating_score": rating,
	}); err != nil {
		return err
	}

	s.notify(job.SessionID, job.Index, StageScoring, StatusDone)
	s.publishCompletion(job.SessionID, job.Index, rating)

	logger.Info("Answer pipeline completed", zap.Bool("scored", rating != nil))
	return nil
}

func (s *Service) updateQuestion(ctx context.Context, sessionID string, index int, fields map[string]interface{}) error {
	err := s.repo.Session.UpdateQuestionFields(ctx, sessionID, index, fields)
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrSessionNotFound) {
		return &Error{Kind: KindSessionNotFound, Stage: StagePersist, Err: err}
	}
	return &Error{Kind: KindPipelineFailed, Stage: StagePersist, Err: err}
}

// GetStatus derives the per-question progress tags for polling clients.
func (s *Service) GetStatus(ctx context.Context, sessionID string) ([]QuestionStatus, error) {
	session, err := s.repo.Session.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repo.ErrSessionNotFound) {
			return nil, &Error{Kind: KindSessionNotFound, Err: err}
		}
		return nil, err
	}

	statuses := make([]QuestionStatus, len(session.Questions))
	for i := range session.Questions {
		statuses[i] = statusOf(&session.Questions[i])
	}
	return statuses, nil
}

// GetResult returns the full session snapshot; partial state is fine, the
// client polls status until every question is done.
func (s *Service) GetResult(ctx context.Context, sessionID string) (*repo.InterviewSession, error) {
	session, err := s.repo.Session.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repo.ErrSessionNotFound) {
			return nil, &Error{Kind: KindSessionNotFound, Err: err}
		}
		return nil, err
	}
	return session, nil
}

// statusOf derives a question's status from its stored fields: no transcript
// means the slot is untouched, a transcript without an LLM summary means the
// pipeline is mid-flight, both present means terminal.
func statusOf(q *repo.QuestionAttempt) QuestionStatus {
	if q.Transcription == "" {
		return StatusIdle
	}
	if q.Summary == "" {
		return StatusProcessing
	}
	return StatusDone
}

func (s *Service) notify(sessionID string, index int, stage string, status QuestionStatus) {
	sse.SendToSession(sessionID, map[string]interface{}{
		"type":          "pipeline_progress",
		"sessionId":     sessionID,
		"questionIndex": index,
		"stage":         stage,
		"status":        status,
		"timestamp":     time.Now().Unix(),
	})
}

func (s *Service) publishCompletion(sessionID string, index int, rating *float64) {
	event := map[string]interface{}{
		"type":          "answer_analyzed",
		"sessionId":     sessionID,
		"questionIndex": index,
		"scored":        rating != nil,
		"timestamp":     time.Now().Unix(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.rabbit.Publish(context.Background(), body); err != nil {
		s.logger.Warn("Failed to publish completion event", zap.String("sessionId", sessionID), zap.Error(err))
	}
}
