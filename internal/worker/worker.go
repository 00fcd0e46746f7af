package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/astra-labs/astra-core/internal/core/domain"
	"github.com/astra-labs/astra-core/internal/core/ports/driven"
	"github.com/astra-labs/astra-core/internal/core/ports/driving"
)

// Worker drains the task queue, running the indexer for each task.
// Several goroutines share one queue consumer, so concurrency stays
// within a single consumer-group member.
type Worker struct {
	taskQueue     driven.TaskQueue
	indexService  driving.IndexService
	documentStore driven.DocumentStore
	logger        *slog.Logger

	concurrency    int
	dequeueTimeout int // seconds

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig wires the worker's dependencies.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	IndexService   driving.IndexService
	DocumentStore  driven.DocumentStore
	Logger         *slog.Logger
	Concurrency    int // parallel task processors
	DequeueTimeout int // seconds to wait per dequeue poll
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		indexService:   cfg.IndexService,
		documentStore:  cfg.DocumentStore,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start launches the processing goroutines. They run until Stop is
// called or the context ends. Calling Start on a running worker is a
// no-op.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop signals the processing goroutines and waits for in-flight
// tasks to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop polls the queue until stopped.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}

		w.processTask(ctx, task, logger)
	}
}

// processTask dispatches one task to its handler and acks or nacks
// it by the outcome.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "owner_id", task.OwnerID)
	logger.Info("processing task")

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeIndexDocument:
		err = w.handleIndexDocument(ctx, task)
	case domain.TaskTypeReindexAll:
		err = w.handleReindexAll(ctx, task)
	default:
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}

	duration := time.Since(startTime)

	if err != nil {
		logger.Error("task failed",
			"duration", duration,
			"error", err,
		)
		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)

	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// handleIndexDocument handles an index_document task.
func (w *Worker) handleIndexDocument(ctx context.Context, task *domain.Task) error {
	documentID := task.DocumentID()
	if documentID == "" {
		return fmt.Errorf("doc_id not found in task payload")
	}

	report, err := w.indexService.Index(ctx, documentID, task.SkipExisting())
	if err != nil {
		return err
	}

	if len(report.Metrics.Errors) > 0 {
		w.logger.Warn("indexing finished with batch errors",
			"doc_id", documentID,
			"chunks_indexed", report.ChunksIndexed,
			"total_chunks", report.TotalChunks,
			"errors", report.Metrics.Errors,
		)
	}

	return nil
}

// handleReindexAll handles a reindex_all task.
// Documents are indexed one by one; individual failures are collected
// and the task only fails when every document fails.
func (w *Worker) handleReindexAll(ctx context.Context, task *domain.Task) error {
	const pageSize = 100

	var failures []string
	total := 0

	for offset := 0; ; offset += pageSize {
		docs, err := w.documentStore.List(ctx, task.OwnerID, pageSize, offset)
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}
		if len(docs) == 0 {
			break
		}

		for _, doc := range docs {
			total++
			if _, err := w.indexService.Index(ctx, doc.ID, true); err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", doc.ID, err))
			}
		}

		if len(docs) < pageSize {
			break
		}
	}

	if len(failures) > 0 {
		w.logger.Warn("some documents failed to reindex",
			"total", total,
			"failed", len(failures),
		)
		if len(failures) == total {
			return fmt.Errorf("reindex failed for all %d documents", total)
		}
	}

	return nil
}

// Health describes worker liveness and queue reachability.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health reports whether the worker is running and its queue backend
// is reachable.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{Running: running}
	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
