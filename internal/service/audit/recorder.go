package audit

import (
	"context"
	"sync"
	"time"

	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/models"
)

const (
	defaultCountWorkers = 2
	defaultBufferSize   = 1024

	// Writes during drain run without a request context
	drainWriteTimeout = 5 * time.Second
)

type auditWriter interface {
	Record(ctx context.Context, record models.AuditRecord) (models.AuditRecord, error)
}

// Recorder writes audit records asynchronously: Submit never blocks the
// request path, workers drain a buffered channel in the background.
// When the buffer is full the record is dropped and counted, never queued.
type Recorder struct {
	countWorkers int
	records      chan models.AuditRecord

	writer auditWriter
	logger logger.Logger

	mu      sync.Mutex
	dropped uint64
}

func NewRecorder(writer auditWriter, l logger.Logger) *Recorder {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Recorder{
		countWorkers: defaultCountWorkers,
		records:      make(chan models.AuditRecord, defaultBufferSize),
		writer:       writer,
		logger:       l,
	}
}

// Submit queues the record for background persistence. Fire and forget: a
// full buffer drops the record with a warning instead of blocking.
func (r *Recorder) Submit(record models.AuditRecord) {
	select {
	case r.records <- record:
	default:
		r.mu.Lock()
		r.dropped++
		dropped := r.dropped
		r.mu.Unlock()

		r.logger.Warn("audit buffer full, record dropped", "path", record.Path, "dropped_total", dropped)
	}
}

// Run starts the worker pool and returns a channel closed once every worker
// has stopped. After ctx is done the workers drain what is already buffered
// before exiting, so accepted records survive a graceful shutdown.
func (r *Recorder) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < r.countWorkers; i++ {
		wg.Add(1)
		go func() {
			r.worker(ctx)
			wg.Done()
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		r.logger.Debug("Audit recorder stopped")
	}()

	return idleStopped
}

func (r *Recorder) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return

		case record := <-r.records:
			r.write(ctx, record)
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case record := <-r.records:
			ctx, cancel := context.WithTimeout(context.Background(), drainWriteTimeout)
			r.write(ctx, record)
			cancel()
		default:
			return
		}
	}
}

// write persists one record. Failures are logged and swallowed: the audit
// trail must never take the serving path down with it.
func (r *Recorder) write(ctx context.Context, record models.AuditRecord) {
	if _, err := r.writer.Record(ctx, record); err != nil {
		r.logger.Error("failed to persist audit record", "error", err, "path", record.Path)
	}
}

// Dropped reports how many records were lost to a full buffer
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
