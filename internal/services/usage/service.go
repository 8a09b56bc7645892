// Package usage records per-request token consumption off the hot path.
package usage

import (
	"context"
	"sync"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/egile-labs/egile-marketing/internal/models"
)

const (
	defaultBufferSize = 256
	insertTimeout     = 5 * time.Second
)

// Writer persists a single usage record. *database.DB satisfies it through
// Store; tests supply fakes.
type Writer interface {
	WriteUsage(ctx context.Context, record *models.RequestUsage) error
}

// Service buffers usage records and writes them asynchronously so a slow
// database never blocks completion requests. Records are dropped with a
// warning when the buffer is full.
type Service struct {
	writer  Writer
	records chan *models.RequestUsage
	done    chan struct{}
	wg      sync.WaitGroup

	closeOnce sync.Once
}

// NewService starts the background writer goroutine.
func NewService(writer Writer, bufferSize int) *Service {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	s := &Service{
		writer:  writer,
		records: make(chan *models.RequestUsage, bufferSize),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// Record enqueues a usage record without blocking.
func (s *Service) Record(record *models.RequestUsage) {
	select {
	case s.records <- record:
	default:
		fiberlog.Warnf("Usage buffer full, dropping record for request %s", record.RequestID)
	}
}

func (s *Service) run() {
	defer s.wg.Done()

	for {
		select {
		case record := <-s.records:
			s.write(record)
		case <-s.done:
			// Drain whatever is still queued before exiting
			for {
				select {
				case record := <-s.records:
					s.write(record)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) write(record *models.RequestUsage) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	if err := s.writer.WriteUsage(ctx, record); err != nil {
		fiberlog.Errorf("Failed to write usage record for request %s: %v", record.RequestID, err)
	}
}

// Close stops the writer goroutine after draining queued records.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}
