package features

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// answerJob is one queued submit-answer pipeline run. Result receives the
// pipeline outcome exactly once; the submitting request blocks on it.
type answerJob struct {
	SessionID    string
	Index        int
	QuestionText string
	Upload       io.Reader
	Ext          string
	EnqueuedAt   time.Time
	Result       chan error
}

// AnswerWorkerPool bounds how many answer pipelines (ffmpeg + two network
// round-trips each) run at once.
type AnswerWorkerPool struct {
	jobQueue        chan answerJob
	workerCount     int
	maxTaskWaitTime time.Duration
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	stopOnce        sync.Once
	// Metrics
	totalJobsEnqueued  int64
	totalJobsProcessed int64
	totalJobsDropped   int64
	activeWorkers      int64
}

func NewAnswerWorkerPool(workerCount, queueSize int, maxTaskWaitTime time.Duration) *AnswerWorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &AnswerWorkerPool{
		jobQueue:        make(chan answerJob, queueSize),
		workerCount:     workerCount,
		maxTaskWaitTime: maxTaskWaitTime,
		ctx:             ctx,
		cancel:          cancel,
	}
}

func (wp *AnswerWorkerPool) Start(service *Service) {
	service.logger.Info("Starting answer worker pool",
		zap.Int("workerCount", wp.workerCount),
		zap.Int("queueCapacity", cap(wp.jobQueue)))

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(service, i)
	}
}

func (wp *AnswerWorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		wp.cancel()
		close(wp.jobQueue)
		wp.wg.Wait()
	})
}

func (wp *AnswerWorkerPool) worker(service *Service, workerID int) {
	defer wp.wg.Done()
	atomic.AddInt64(&wp.activeWorkers, 1)
	defer atomic.AddInt64(&wp.activeWorkers, -1)

	for {
		select {
		case job, ok := <-wp.jobQueue:
			if !ok {
				service.logger.Info("Worker stopping - job queue closed", zap.Int("workerID", workerID))
				return
			}

			waitTime := time.Since(job.EnqueuedAt)
			service.logger.Debug("Worker processing answer job",
				zap.Int("workerID", workerID),
				zap.String("sessionID", job.SessionID),
				zap.Int("questionIndex", job.Index),
				zap.Duration("waitTime", waitTime))

			startTime := time.Now()
			err := service.runPipeline(wp.ctx, job)
			job.Result <- err

			atomic.AddInt64(&wp.totalJobsProcessed, 1)

			service.logger.Debug("Worker completed answer job",
				zap.Int("workerID", workerID),
				zap.String("sessionID", job.SessionID),
				zap.Int("questionIndex", job.Index),
				zap.Duration("processingTime", time.Since(startTime)),
				zap.Duration("totalTime", time.Since(job.EnqueuedAt)))

		case <-wp.ctx.Done():
			service.logger.Info("Worker stopping - context cancelled", zap.Int("workerID", workerID))
			wp.failPending()
			return
		}
	}
}

// failPending answers every job still queued at shutdown so blocked
// submitters unblock. Stop closes the queue right after cancelling, which
// terminates the range.
func (wp *AnswerWorkerPool) failPending() {
	for job := range wp.jobQueue {
		atomic.AddInt64(&wp.totalJobsDropped, 1)
		job.Result <- &Error{Kind: KindPipelineFailed, Stage: StageEnqueue, Err: errors.New("worker pool stopped")}
	}
}

func (wp *AnswerWorkerPool) Enqueue(logger *zap.Logger, job answerJob) bool {
	job.EnqueuedAt = time.Now()

	select {
	case wp.jobQueue <- job:
		atomic.AddInt64(&wp.totalJobsEnqueued, 1)
		logger.Debug("Enqueued answer job",
			zap.String("sessionID", job.SessionID),
			zap.Int("questionIndex", job.Index),
			zap.Int("queueSize", len(wp.jobQueue)),
			zap.Int("queueCapacity", cap(wp.jobQueue)))
		return true

	case <-time.After(wp.maxTaskWaitTime):
		atomic.AddInt64(&wp.totalJobsDropped, 1)
		logger.Error("Job enqueue timeout - queue may be full or workers unavailable",
			zap.String("sessionID", job.SessionID),
			zap.Int("questionIndex", job.Index),
			zap.Duration("timeout", wp.maxTaskWaitTime),
			zap.Int("queueSize", len(wp.jobQueue)),
			zap.Int64("activeWorkers", atomic.LoadInt64(&wp.activeWorkers)))
		return false
	}
}

// Metrics returns worker pool counters
func (wp *AnswerWorkerPool) Metrics() map[string]interface{} {
	return map[string]interface{}{
		"total_jobs_enqueued":  atomic.LoadInt64(&wp.totalJobsEnqueued),
		"total_jobs_processed": atomic.LoadInt64(&wp.totalJobsProcessed),
		"total_jobs_dropped":   atomic.LoadInt64(&wp.totalJobsDropped),
		"active_workers":       atomic.LoadInt64(&wp.activeWorkers),
		"queue_size":           len(wp.jobQueue),
		"queue_capacity":       cap(wp.jobQueue),
	}
}
