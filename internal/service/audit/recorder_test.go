package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/models"
)

type writerFunc func(ctx context.Context, record models.AuditRecord) (models.AuditRecord, error)

func (f writerFunc) Record(ctx context.Context, record models.AuditRecord) (models.AuditRecord, error) {
	return f(ctx, record)
}

type recordingWriter struct {
	mu      sync.Mutex
	records []models.AuditRecord
}

func (w *recordingWriter) Record(ctx context.Context, record models.AuditRecord) (models.AuditRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, record)
	return record, nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}

func Test_Recorder(t *testing.T) {
	t.Parallel()

	t.Run("submitted records are persisted", func(t *testing.T) {
		writer := &recordingWriter{}
		recorder := NewRecorder(writer, nil)

		ctx, cancel := context.WithCancel(t.Context())
		stopped := recorder.Run(ctx)

		recorder.Submit(models.AuditRecord{Method: "GET", Path: "/auth/me", StatusCode: 200})
		recorder.Submit(models.AuditRecord{Method: "POST", Path: "/auth/login", StatusCode: 401})

		require.Eventually(t, func() bool { return writer.count() == 2 },
			time.Second, 10*time.Millisecond, "both records should be written by workers")

		cancel()
		<-stopped
	})

	t.Run("buffered records drain on shutdown", func(t *testing.T) {
		writer := &recordingWriter{}
		recorder := NewRecorder(writer, nil)

		// Queue before any worker runs, then let Run drain them
		for i := 0; i < 5; i++ {
			recorder.Submit(models.AuditRecord{Method: "GET", Path: "/demo/items", StatusCode: 200})
		}

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		<-recorder.Run(ctx)

		assert.Equal(t, 5, writer.count(), "accepted records must survive a graceful shutdown")
	})

	t.Run("full buffer drops instead of blocking", func(t *testing.T) {
		recorder := &Recorder{
			countWorkers: 1,
			records:      make(chan models.AuditRecord, 1),
			writer: writerFunc(func(ctx context.Context, record models.AuditRecord) (models.AuditRecord, error) {
				return record, nil
			}),
			logger: logger.NewNoOpLogger(),
		}

		// No workers running: second submit overflows the one-slot buffer
		recorder.Submit(models.AuditRecord{Path: "/a"})
		recorder.Submit(models.AuditRecord{Path: "/b"})

		assert.Equal(t, uint64(1), recorder.Dropped(), "overflow must be counted as dropped")
	})
}
