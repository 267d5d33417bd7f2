// internal/worker/worker.go

// Package worker binds the compilation pipeline to the task queue. Each task
// runs one job attempt; retry policy lives here, not in the pipeline.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/photobooksgallery/ar-compiler/internal/bus"
	"github.com/photobooksgallery/ar-compiler/internal/pipeline"
	"github.com/photobooksgallery/ar-compiler/internal/storage"
	"github.com/photobooksgallery/ar-compiler/internal/webhook"
	"github.com/photobooksgallery/ar-compiler/pkg/schema"
)

// TaskTypeCompile is the queue task type for AR compilation jobs.
const TaskTypeCompile = "ar:compile"

// Queue settings applied when enqueueing compile tasks.
const (
	QueueName    = "ar-compile"
	MaxRetry     = 3
	Retention    = 24 * time.Hour
	TaskDeadline = 15 * time.Minute
)

// Bus subjects for compile progress and terminal events.
const (
	SubjectLifecycle = "ar.compile.lifecycle"
	SubjectDone      = "ar.compile.done"
)

// NewCompileTask packs a job into a queue task with the compile queue's
// retry and retention policy.
func NewCompileTask(job *schema.CompilationJob) (*asynq.Task, []asynq.Option, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal compile job: %w", err)
	}
	opts := []asynq.Option{
		asynq.Queue(QueueName),
		asynq.MaxRetry(MaxRetry),
		asynq.Timeout(TaskDeadline),
		asynq.Retention(Retention),
	}
	return asynq.NewTask(TaskTypeCompile, payload), opts, nil
}

// Worker consumes compile tasks and reports outcomes.
type Worker struct {
	pipe     *pipeline.Pipeline
	store    *storage.Manager
	notifier webhook.Notifier
	events   *bus.Client
	logger   *slog.Logger
}

// New creates a worker. events may be nil when no bus is configured.
func New(pipe *pipeline.Pipeline, store *storage.Manager, notifier webhook.Notifier, events *bus.Client, logger *slog.Logger) *Worker {
	return &Worker{
		pipe:     pipe,
		store:    store,
		notifier: notifier,
		events:   events,
		logger:   logger,
	}
}

// ProcessTask runs one compile attempt. The returned error drives the queue:
// nil acks, plain errors retry with backoff, SkipRetry-wrapped errors fail
// the task immediately.
func (w *Worker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var job schema.CompilationJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return fmt.Errorf("unmarshal compile job: %v: %w", err, asynq.SkipRetry)
	}
	if job.ProjectID == "" {
		return fmt.Errorf("compile job missing project_id: %w", asynq.SkipRetry)
	}
	if len(job.Photos()) == 0 {
		return fmt.Errorf("compile job %s has no photos: %w", job.ProjectID, asynq.SkipRetry)
	}

	jobID := uuid.NewString()
	logger := w.logger.With("job_id", jobID, "project_id", job.ProjectID)
	logger.Info("compile task received", "photos", len(job.Photos()), "retry", retryCount(ctx))

	if job.StorageDir == "" {
		layout, err := w.store.EnsureProjectDir(job.ProjectID)
		if err != nil {
			return fmt.Errorf("provision storage for %s: %w", job.ProjectID, err)
		}
		job.StorageDir = layout.Dir
	}

	start := time.Now()
	res := w.pipe.Run(ctx, &job, func(stage schema.CompileStage) {
		w.publishLifecycle(jobID, &job, stage, start)
	})

	w.publishDone(jobID, &job, res)

	if res.Success {
		w.notify(ctx, logger, func() error {
			return w.notifier.NotifyComplete(ctx, job.ProjectID, res.ViewURL, res.QRCodeURL)
		})
		logger.Info("compile task done", "elapsed_ms", res.CompilationTimeMs)
		return nil
	}

	// Failure paths. The backend hears about a failure exactly once: on the
	// final attempt. Earlier retryable attempts stay internal to the queue.
	final := res.FailureType != schema.FailureTypeRetryable || lastAttempt(ctx)
	if final {
		w.notify(ctx, logger, func() error {
			return w.notifier.NotifyFailed(ctx, job.ProjectID, res.Error)
		})
	}

	logger.Error("compile task failed",
		"step", res.FailedStep, "failure_type", string(res.FailureType), "err", res.Error)

	if res.FailureType == schema.FailureTypeRetryable {
		return fmt.Errorf("compile %s failed at %s: %s", job.ProjectID, res.FailedStep, res.Error)
	}
	return fmt.Errorf("compile %s failed at %s: %s: %w", job.ProjectID, res.FailedStep, res.Error, asynq.SkipRetry)
}

func (w *Worker) notify(ctx context.Context, logger *slog.Logger, send func() error) {
	if w.notifier == nil {
		return
	}
	if err := send(); err != nil {
		// Delivery already retried inside the client. Failing the task here
		// would recompile a finished project, so only log.
		logger.Error("result notification failed", "err", err)
	}
}

func (w *Worker) publishLifecycle(jobID string, job *schema.CompilationJob, stage schema.CompileStage, start time.Time) {
	if w.events == nil {
		return
	}
	ev := schema.CompileLifecycleEvent{
		JobID:           jobID,
		ProjectID:       job.ProjectID,
		Stage:           stage,
		MarkersCount:    len(job.Photos()),
		ProcessingStart: start.UnixMilli(),
		HappenedAt:      time.Now().UnixMilli(),
	}
	if err := w.events.PublishJSON(SubjectLifecycle, ev); err != nil {
		w.logger.Warn("lifecycle publish failed", "stage", string(stage), "err", err)
	}
}

func (w *Worker) publishDone(jobID string, job *schema.CompilationJob, res *schema.CompilationResult) {
	if w.events == nil {
		return
	}
	ev := schema.CompileDone{
		JobID:             jobID,
		ProjectID:         job.ProjectID,
		Success:           res.Success,
		CompilationTimeMs: res.CompilationTimeMs,
		MarkerMindURL:     res.MarkerMindURL,
		ViewerHTMLURL:     res.ViewerHTMLURL,
		QRCodeURL:         res.QRCodeURL,
		Error:             res.Error,
		FailureType:       res.FailureType,
		HappenedAt:        time.Now().UnixMilli(),
	}
	if err := w.events.PublishJSON(SubjectDone, ev); err != nil {
		w.logger.Warn("done publish failed", "err", err)
	}
}

func retryCount(ctx context.Context) int {
	n, _ := asynq.GetRetryCount(ctx)
	return n
}

// lastAttempt reports whether the queue will not retry this task again.
func lastAttempt(ctx context.Context) bool {
	n, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	max, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return n >= max
}
