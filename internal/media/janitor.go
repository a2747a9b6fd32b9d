package media

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vidtube/backend/internal/metrics"
)

// JanitorConfig controls the concurrency characteristics of the janitor.
type JanitorConfig struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// Janitor asynchronously deletes blobs that are no longer referenced, such as
// a replaced avatar or the files of a deleted video. Deletion is best effort:
// failures are logged and never reach the request that scheduled them.
type Janitor struct {
	store   BlobStore
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var errJanitorClosed = errors.New("blob janitor closed")

// NewJanitor constructs a background worker pool that deletes blobs.
func NewJanitor(store BlobStore, cfg JanitorConfig, logger *slog.Logger) *Janitor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	j := &Janitor{
		store:   store,
		logger:  logger,
		timeout: cfg.Timeout,
		jobs:    make(chan string, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	j.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go j.worker()
	}

	return j
}

// Discard schedules deletion of the blobs at the given locations. Empty
// locations are skipped. It never blocks on a full queue; overflow is logged
// and dropped.
func (j *Janitor) Discard(locations ...string) {
	if j == nil {
		return
	}
	for _, location := range locations {
		if strings.TrimSpace(location) == "" {
			continue
		}
		if err := j.enqueue(location); err != nil {
			j.logger.Warn("blob cleanup not scheduled", "location", location, "error", err)
		}
	}
}

func (j *Janitor) enqueue(location string) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return errJanitorClosed
	}

	select {
	case j.jobs <- location:
		return nil
	default:
		return errors.New("blob janitor queue full")
	}
}

// Shutdown waits for the worker pool to drain outstanding jobs.
func (j *Janitor) Shutdown(ctx context.Context) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.jobs)
	}
	j.mu.Unlock()

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		j.cancel()
		return ctx.Err()
	case <-done:
		j.cancel()
		return nil
	}
}

func (j *Janitor) worker() {
	defer j.wg.Done()

	for location := range j.jobs {
		j.handle(location)
	}
}

func (j *Janitor) handle(location string) {
	if j.store == nil {
		j.logger.Error("blob janitor missing store", "location", location)
		return
	}

	ctx, cancel := context.WithTimeout(j.ctx, j.timeout)
	defer cancel()

	if err := j.store.Delete(ctx, location); err != nil {
		j.logger.Error("blob cleanup failed", "location", location, "error", err)
		metrics.RecordBlobCleanup(false)
		return
	}
	metrics.RecordBlobCleanup(true)
	j.logger.Debug("blob deleted", "location", location)
}
