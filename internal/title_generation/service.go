package title_generation

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eternisai/enchanted-chat/internal/logger"
)

// Store persists a generated title for a conversation.
type Store interface {
	SaveGeneratedTitle(ctx context.Context, userID, conversationID, title string) error
}

// Service generates titles in the background after a first exchange.
type Service struct {
	generator  *Generator
	store      Store
	logger     *logger.Logger
	titleChan  chan Job
	workerPool sync.WaitGroup
	shutdown   chan struct{}
	closed     atomic.Bool
	timeout    time.Duration
}

// NewService creates a new title generation service and starts its workers.
func NewService(generator *Generator, store Store, log *logger.Logger, workerPoolSize int) *Service {
	if workerPoolSize < 1 {
		workerPoolSize = 1
	}

	s := &Service{
		generator: generator,
		store:     store,
		logger:    log.WithComponent("title_queue"),
		titleChan: make(chan Job, 100),
		shutdown:  make(chan struct{}),
		timeout:   60 * time.Second,
	}

	for i := 0; i < workerPoolSize; i++ {
		s.workerPool.Add(1)
		go s.worker()
	}

	s.logger.Info("title generation service started", slog.Int("worker_pool_size", workerPoolSize))

	return s
}

// worker processes title generation jobs.
func (s *Service) worker() {
	defer s.workerPool.Done()

	for {
		select {
		case job := <-s.titleChan:
			s.handleJob(job)
		case <-s.shutdown:
			// Drain remaining jobs
			for {
				select {
				case job := <-s.titleChan:
					s.handleJob(job)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) handleJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	ctx = logger.WithUserID(ctx, job.User.ID)
	ctx = logger.WithConversationID(ctx, job.ConversationID)
	ctx = logger.WithOperation(ctx, "title_generation")
	log := s.logger.WithContext(ctx)

	result := s.generator.Generate(ctx, job.Request)

	if err := s.store.SaveGeneratedTitle(ctx, job.User.ID, job.ConversationID, result.Title); err != nil {
		log.Error("failed to save generated title", slog.String("error", err.Error()))
		return
	}

	log.Info("title saved",
		slog.String("title", result.Title),
		slog.Int("attempts", result.Attempts),
		slog.Bool("fallback", result.Fallback))
}

// Enqueue schedules a job. It never blocks; a full queue drops the job.
func (s *Service) Enqueue(ctx context.Context, job Job) bool {
	log := s.logger.WithContext(ctx)

	if s.closed.Load() {
		log.Warn("service is shutting down, cannot queue title generation")
		return false
	}

	select {
	case s.titleChan <- job:
		log.Debug("title generation queued", slog.String("conversation_id", job.ConversationID))
		return true
	default:
		log.Warn("title generation queue full, dropping request", slog.String("conversation_id", job.ConversationID))
		return false
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (s *Service) Shutdown() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.logger.Info("shutting down title generation service")
	close(s.shutdown)
	s.workerPool.Wait()
	s.logger.Info("title generation service shutdown complete")
}
