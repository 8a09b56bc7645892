package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/egile-labs/egile-marketing/internal/models"
)

type fakeWriter struct {
	mu      sync.Mutex
	records []*models.RequestUsage
	block   chan struct{}
}

func (w *fakeWriter) WriteUsage(ctx context.Context, record *models.RequestUsage) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, record)
	return nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}

func TestRecordWritesAsynchronously(t *testing.T) {
	writer := &fakeWriter{}
	svc := NewService(writer, 8)

	svc.Record(&models.RequestUsage{RequestID: "req_1", TotalTokens: 42})

	deadline := time.After(2 * time.Second)
	for writer.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("record was never written")
		case <-time.After(10 * time.Millisecond):
		}
	}

	svc.Close()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	if writer.records[0].RequestID != "req_1" {
		t.Errorf("RequestID = %q, want %q", writer.records[0].RequestID, "req_1")
	}
}

func TestCloseDrainsQueuedRecords(t *testing.T) {
	writer := &fakeWriter{block: make(chan struct{})}
	svc := NewService(writer, 16)

	for i := 0; i < 5; i++ {
		svc.Record(&models.RequestUsage{RequestID: "req_drain"})
	}

	close(writer.block)
	svc.Close()

	if got := writer.count(); got != 5 {
		t.Errorf("records written = %d, want 5", got)
	}
}

func TestRecordDropsWhenBufferFull(t *testing.T) {
	writer := &fakeWriter{block: make(chan struct{})}
	svc := NewService(writer, 1)

	// The writer goroutine is parked on block; one record fits the buffer,
	// one may be in flight, the rest must be dropped without blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			svc.Record(&models.RequestUsage{RequestID: "req_full"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full buffer")
	}

	close(writer.block)
	svc.Close()

	if got := writer.count(); got > 2 {
		t.Errorf("records written = %d, want at most 2", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	svc := NewService(&fakeWriter{}, 4)
	svc.Close()
	svc.Close()
}
