package features

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"interviewprep/internal/config"
	"interviewprep/internal/prompts"
	"interviewprep/internal/repo"
	"interviewprep/internal/service"
	redisutil "interviewprep/internal/utils/redis"
	rabbit "interviewprep/pkg/rabbit/pkg"
)

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*repo.InterviewSession
	updates  int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*repo.InterviewSession{}}
}

func (f *fakeSessionStore) Create(ctx context.Context, session *repo.InterviewSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionStore) Get(ctx context.Context, sessionID string) (*repo.InterviewSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, repo.ErrSessionNotFound
	}
	snapshot := *session
	snapshot.Questions = append([]repo.QuestionAttempt(nil), session.Questions...)
	return &snapshot, nil
}

func (f *fakeSessionStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[sessionID]
	return ok, nil
}

func (f *fakeSessionStore) UpdateQuestionFields(ctx context.Context, sessionID string, questionIndex int, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return repo.ErrSessionNotFound
	}
	q := &session.Questions[questionIndex]
	for field, value := range fields {
		switch field {
		case "transcription":
			q.Transcription = value.(string)
		case "delivery_summary":
			q.DeliverySummary = value.(string)
		case "summary":
			q.Summary = value.(string)
		case "rating_score":
			if v, ok := value.(*float64); ok {
				q.RatingScore = v
			} else {
				q.RatingScore = nil
			}
		default:
			// A dotted path like "analysis.heuristics" nests under the
			// Analysis bag, matching the store's $set semantics.
			if rest, ok := strings.CutPrefix(field, "analysis."); ok {
				if q.Analysis == nil {
					q.Analysis = map[string]interface{}{}
				}
				q.Analysis[rest] = value
			}
		}
	}
	f.updates++
	return nil
}

func (f *fakeSessionStore) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

type fakeQuestionPool struct {
	records []repo.QuestionRecord
	err     error
}

func (f *fakeQuestionPool) SampleApproved(ctx context.Context, n int) ([]repo.QuestionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if n > len(f.records) {
		n = len(f.records)
	}
	return f.records[:n], nil
}

type fakeUploads struct {
	mu      sync.Mutex
	saveErr error
	saved   int
	cleaned []string
}

func (f *fakeUploads) SaveUpload(src io.Reader, ext string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	if src != nil {
		io.Copy(io.Discard, src)
	}
	f.saved++
	return fmt.Sprintf("/tmp/fake/video-%d%s", f.saved, ext), nil
}

func (f *fakeUploads) Cleanup(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		if p != "" {
			f.cleaned = append(f.cleaned, p)
		}
	}
}

func (f *fakeUploads) cleanedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cleaned...)
}

type fakeExtractor struct {
	err error
}

func (f *fakeExtractor) Extract(ctx context.Context, videoPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return strings.TrimSuffix(videoPath, ".webm") + ".wav", nil
}

type fakeTranscriber struct {
	text string
	err  error
	// When set, Transcribe signals started and blocks until release is closed.
	started chan struct{}
	release chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	return f.text, f.err
}

type fakeCompleter struct {
	completion service.Completion
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) service.Completion {
	return f.completion
}

type testEnv struct {
	svc         *Service
	sessions    *fakeSessionStore
	pool        *fakeQuestionPool
	uploads     *fakeUploads
	extractor   *fakeExtractor
	transcriber *fakeTranscriber
	completer   *fakeCompleter
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWorkers(t, 2)
}

func newTestEnvWorkers(t *testing.T, workerCount int) *testEnv {
	t.Helper()

	env := &testEnv{
		sessions: newFakeSessionStore(),
		pool: &fakeQuestionPool{records: []repo.QuestionRecord{
			{Text: "Tell me about yourself.", Topic: "behavioral"},
			{Text: "Describe a hard bug you fixed.", Topic: "technical"},
		}},
		uploads:     &fakeUploads{},
		extractor:   &fakeExtractor{},
		transcriber: &fakeTranscriber{text: "I led the migration project and it went well."},
		completer: &fakeCompleter{completion: service.Completion{
			Text: "Good answer overall.\nRating:\n3/5",
		}},
	}

	cfg := &config.Config{
		Session: config.SessionConfig{
			QuestionCount: 2,
			WorkerCount:   workerCount,
			QueueSize:     4,
			EnqueueWait:   time.Second,
		},
		Redis: config.RedisConfig{LockTTL: time.Minute},
	}

	repository := &repo.Repository{
		Session:  env.sessions,
		Question: env.pool,
	}
	deps := Deps{
		Uploads:     env.uploads,
		Extractor:   env.extractor,
		Transcriber: env.transcriber,
		LLM:         env.completer,
		Prompts:     prompts.NewBuilder("", zap.NewNop()),
		Locker:      redisutil.Dummy(),
		Rabbit:      &rabbit.Dummy{},
	}

	env.svc = New(repository, deps, cfg, zap.NewNop())
	env.svc.Start()
	t.Cleanup(env.svc.Stop)
	return env
}

func (env *testEnv) createSession(t *testing.T) string {
	t.Helper()
	created, err := env.svc.CreateSession(context.Background(), "user-1", "practice")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return created.SessionID
}

func assertKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("error kind = %s, want %s (err: %v)", got, want, err)
	}
}

func TestCreateSessionEmptyPool(t *testing.T) {
	env := newTestEnv(t)
	env.pool.records = nil

	_, err := env.svc.CreateSession(context.Background(), "user-1", "")
	assertKind(t, err, KindNoQuestionsAvailable)
}

func TestCreateSessionReturnsPreviewsOnly(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.svc.CreateSession(context.Background(), "", "warmup")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if created.QuestionCount != 2 || len(created.Questions) != 2 {
		t.Fatalf("QuestionCount = %d, Questions = %d, want 2 each", created.QuestionCount, len(created.Questions))
	}
	if created.Questions[0].PromptText != "Tell me about yourself." {
		t.Errorf("Questions[0].PromptText = %q", created.Questions[0].PromptText)
	}

	stored, err := env.sessions.Get(context.Background(), created.SessionID)
	if err != nil {
		t.Fatalf("stored session missing: %v", err)
	}
	if stored.OwnerID != AnonymousOwner {
		t.Errorf("OwnerID = %q, want %q for empty owner", stored.OwnerID, AnonymousOwner)
	}
	for i, q := range stored.Questions {
		if q.Transcription != "" || q.Summary != "" || q.RatingScore != nil {
			t.Errorf("question %d should start empty: %+v", i, q)
		}
	}

	statuses, err := env.svc.GetStatus(context.Background(), created.SessionID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	for i, st := range statuses {
		if st != StatusIdle {
			t.Errorf("status[%d] = %s, want idle", i, st)
		}
	}
}

func TestSubmitAnswerUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	err := env.svc.SubmitAnswer(context.Background(), "missing", 0, "", strings.NewReader("x"), ".webm")
	assertKind(t, err, KindSessionNotFound)
}

func TestSubmitAnswerIndexOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	for _, idx := range []int{-1, 2, 99} {
		err := env.svc.SubmitAnswer(context.Background(), id, idx, "", strings.NewReader("x"), ".webm")
		assertKind(t, err, KindIndexOutOfRange)
	}
}

func TestSubmitAnswerMissingUpload(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	err := env.svc.SubmitAnswer(context.Background(), id, 0, "", nil, ".webm")
	assertKind(t, err, KindUploadMissing)
}

func TestSubmitAnswerExtractionFailure(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	env.extractor.err = errors.New("ffmpeg exited with status 1")

	err := env.svc.SubmitAnswer(context.Background(), id, 0, "", strings.NewReader("x"), ".webm")
	assertKind(t, err, KindExtractionFailed)

	if n := env.sessions.updateCount(); n != 0 {
		t.Errorf("store updates = %d, want 0 before transcription succeeds", n)
	}
	if len(env.uploads.cleanedPaths()) == 0 {
		t.Error("saved upload should be cleaned up after failure")
	}
}

func TestSubmitAnswerEmptyTranscript(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	env.transcriber.text = "   \n\t "

	err := env.svc.SubmitAnswer(context.Background(), id, 0, "", strings.NewReader("x"), ".webm")
	assertKind(t, err, KindEmptyTranscript)

	if n := env.sessions.updateCount(); n != 0 {
		t.Errorf("store updates = %d, want 0 for empty transcript", n)
	}
}

func TestSubmitAnswerHappyPath(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	if err := env.svc.SubmitAnswer(context.Background(), id, 0, "", strings.NewReader("video-bytes"), ".webm"); err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}

	session, err := env.sessions.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	q := session.Questions[0]
	if q.Transcription != env.transcriber.text {
		t.Errorf("Transcription = %q", q.Transcription)
	}
	if q.DeliverySummary == "" {
		t.Error("DeliverySummary should be set")
	}
	if q.Summary != "Good answer overall." {
		t.Errorf("Summary = %q", q.Summary)
	}
	if q.RatingScore == nil || *q.RatingScore != 3 {
		t.Errorf("RatingScore = %v, want 3", q.RatingScore)
	}
	if q.Analysis["heuristics"] == nil {
		t.Error("heuristics report should be persisted")
	}
	if n := env.sessions.updateCount(); n != 2 {
		t.Errorf("store updates = %d, want 2 (analysis then scoring)", n)
	}

	statuses, err := env.svc.GetStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if statuses[0] != StatusDone || statuses[1] != StatusIdle {
		t.Errorf("statuses = %v, want [done idle]", statuses)
	}

	if len(env.uploads.cleanedPaths()) < 2 {
		t.Errorf("cleanup should cover video and audio, got %v", env.uploads.cleanedPaths())
	}
}

func TestSubmitAnswerDegradedScoring(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	env.completer.completion = service.Completion{Degraded: true, Reason: "gateway returned non-200 status: 503"}

	if err := env.svc.SubmitAnswer(context.Background(), id, 1, "", strings.NewReader("x"), ".webm"); err != nil {
		t.Fatalf("SubmitAnswer() error = %v, degraded scoring must not fail the call", err)
	}

	session, _ := env.sessions.Get(context.Background(), id)
	q := session.Questions[1]
	if q.Summary != scoringUnavailableSummary {
		t.Errorf("Summary = %q, want fallback summary", q.Summary)
	}
	if q.RatingScore != nil {
		t.Errorf("RatingScore = %v, want nil when scoring degraded", *q.RatingScore)
	}
	if q.Transcription == "" || q.DeliverySummary == "" {
		t.Error("transcript and delivery analysis must survive scoring degradation")
	}

	statuses, _ := env.svc.GetStatus(context.Background(), id)
	if statuses[1] != StatusDone {
		t.Errorf("status = %s, want done even when degraded", statuses[1])
	}
}

func TestSubmitAnswerSameSlotInFlight(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	env.transcriber.started = make(chan struct{}, 1)
	env.transcriber.release = make(chan struct{})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- env.svc.SubmitAnswer(context.Background(), id, 0, "", strings.NewReader("x"), ".webm")
	}()
	<-env.transcriber.started

	err := env.svc.SubmitAnswer(context.Background(), id, 0, "", strings.NewReader("y"), ".webm")
	assertKind(t, err, KindSubmissionInFlight)

	close(env.transcriber.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first submission error = %v", err)
	}

	// The slot is free again once the first submission finished.
	env.transcriber.started = nil
	if err := env.svc.SubmitAnswer(context.Background(), id, 0, "", strings.NewReader("z"), ".webm"); err != nil {
		t.Fatalf("resubmission after completion error = %v", err)
	}
}

func TestSubmitAnswerDistinctSlotsConcurrent(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			errs[idx] = env.svc.SubmitAnswer(context.Background(), id, idx, "", strings.NewReader("x"), ".webm")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("submission %d error = %v", i, err)
		}
	}

	statuses, _ := env.svc.GetStatus(context.Background(), id)
	for i, st := range statuses {
		if st != StatusDone {
			t.Errorf("status[%d] = %s, want done", i, st)
		}
	}
}

func TestStopUnblocksQueuedSubmission(t *testing.T) {
	env := newTestEnvWorkers(t, 1)
	id := env.createSession(t)

	env.transcriber.started = make(chan struct{}, 1)
	env.transcriber.release = make(chan struct{})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- env.svc.SubmitAnswer(context.Background(), id, 0, "", strings.NewReader("x"), ".webm")
	}()
	<-env.transcriber.started

	// With a single busy worker the second submission stays queued.
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- env.svc.SubmitAnswer(context.Background(), id, 1, "", strings.NewReader("y"), ".webm")
	}()
	waitForEnqueued(t, env.svc, 2)

	stopDone := make(chan struct{})
	go func() {
		env.svc.Stop()
		close(stopDone)
	}()
	close(env.transcriber.release)

	// The queued submission may complete or be failed at shutdown; the
	// guarantee is that neither caller stays blocked.
	waitOn := func(name string, done <-chan error) {
		t.Helper()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("%s submission still blocked after shutdown", name)
		}
	}
	waitOn("first", firstDone)
	waitOn("second", secondDone)

	select {
	case <-stopDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func waitForEnqueued(t *testing.T, svc *Service, want int64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if svc.WorkerMetrics()["total_jobs_enqueued"].(int64) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d enqueued jobs before shutdown", want)
}

func TestStatusDerivation(t *testing.T) {
	rating := 4.0
	cases := []struct {
		name string
		q    repo.QuestionAttempt
		want QuestionStatus
	}{
		{"untouched", repo.QuestionAttempt{}, StatusIdle},
		{"transcribed only", repo.QuestionAttempt{Transcription: "text", DeliverySummary: "d"}, StatusProcessing},
		{"complete", repo.QuestionAttempt{Transcription: "text", Summary: "s", RatingScore: &rating}, StatusDone},
		{"degraded complete", repo.QuestionAttempt{Transcription: "text", Summary: scoringUnavailableSummary}, StatusDone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusOf(&tc.q); got != tc.want {
				t.Errorf("statusOf() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestGetResultUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.GetResult(context.Background(), "missing")
	assertKind(t, err, KindSessionNotFound)
}
