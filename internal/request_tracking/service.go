package request_tracking

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eternisai/enchanted-chat/internal/chat"
	"github.com/eternisai/enchanted-chat/internal/logger"
	"github.com/eternisai/enchanted-chat/internal/metrics"
	pgdb "github.com/eternisai/enchanted-chat/internal/storage/pg/sqlc"
	"github.com/google/uuid"
)

// Config sizes the logging worker pool.
type Config struct {
	Workers    int
	BufferSize int
	Timeout    time.Duration
	// Provider is stored on every row, see GetProviderFromBaseURL.
	Provider string
}

type Service struct {
	queries              pgdb.Querier
	metrics              *metrics.Metrics
	logChan              chan logRequest
	workerPool           sync.WaitGroup
	shutdown             chan struct{}
	closed               atomic.Bool
	logger               *logger.Logger
	droppedRequestsTotal atomic.Int64
	cfg                  Config
}

type logRequest struct {
	ctx  context.Context
	info RequestInfo
}

type RequestInfo struct {
	UserID           string
	ConversationID   string
	Endpoint         string
	Model            string
	Provider         string
	Temperature      *float64
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
	Latency          time.Duration
	Status           string
}

func NewService(queries pgdb.Querier, m *metrics.Metrics, log *logger.Logger, cfg Config) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize < 0 {
		cfg.BufferSize = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	s := &Service{
		queries:  queries,
		metrics:  m,
		logChan:  make(chan logRequest, cfg.BufferSize),
		shutdown: make(chan struct{}),
		logger:   log.WithComponent("request_tracking"),
		cfg:      cfg,
	}

	for i := 0; i < cfg.Workers; i++ {
		s.workerPool.Add(1)
		go s.logWorker()
	}

	return s
}

// RecordUsage records one upstream call from the chat dispatcher. It never blocks.
func (s *Service) RecordUsage(ctx context.Context, usage chat.Usage) {
	s.metrics.UpstreamRequest(usage.Endpoint, usage.Status, usage.Latency, usage.PromptTokens, usage.CompletionTokens)

	info := RequestInfo{
		UserID:         usage.UserID,
		ConversationID: usage.ConversationID,
		Endpoint:       usage.Endpoint,
		Model:          usage.Model,
		Provider:       s.cfg.Provider,
		Temperature:    &usage.Temperature,
		Latency:        usage.Latency,
		Status:         usage.Status,
	}
	if usage.TotalTokens > 0 {
		info.PromptTokens = &usage.PromptTokens
		info.CompletionTokens = &usage.CompletionTokens
		info.TotalTokens = &usage.TotalTokens
	}

	if err := s.LogRequestAsync(ctx, info); err != nil {
		s.logger.WithContext(ctx).Debug("request log not queued", slog.String("error", err.Error()))
	}
}

// logWorker processes log requests from the channel.
func (s *Service) logWorker() {
	defer s.workerPool.Done()

	for {
		select {
		case logReq := <-s.logChan:
			s.handleLogRequest(logReq)
		case <-s.shutdown:
			// Process remaining log requests before shutdown.
			for {
				select {
				case logReq := <-s.logChan:
					s.handleLogRequest(logReq)
				default:
					return
				}
			}
		}
	}
}

// processLogRequest handles the actual database insertion.
func (s *Service) processLogRequest(ctx context.Context, info RequestInfo) {
	var model *string
	if info.Model != "" {
		model = &info.Model
	}

	var conversationID uuid.NullUUID
	if id, err := uuid.Parse(info.ConversationID); err == nil {
		conversationID = uuid.NullUUID{UUID: id, Valid: true}
	}

	var temperature sql.NullFloat64
	if info.Temperature != nil {
		temperature = sql.NullFloat64{Float64: *info.Temperature, Valid: true}
	}

	err := s.queries.CreateRequestLog(ctx, pgdb.CreateRequestLogParams{
		UserID:           info.UserID,
		ConversationID:   conversationID,
		Endpoint:         info.Endpoint,
		Model:            model,
		Provider:         info.Provider,
		Temperature:      temperature,
		PromptTokens:     nullInt32(info.PromptTokens),
		CompletionTokens: nullInt32(info.CompletionTokens),
		TotalTokens:      nullInt32(info.TotalTokens),
		LatencyMs:        int32(info.Latency.Milliseconds()),
		Status:           info.Status,
	})
	s.metrics.TrackingWrite(err)

	if err != nil {
		s.logger.Error("failed to insert request log",
			slog.String("user_id", info.UserID),
			slog.String("endpoint", info.Endpoint),
			slog.String("provider", info.Provider),
			slog.String("error", err.Error()))
	}
}

// LogRequestAsync queues a log request to be processed by the worker pool.
func (s *Service) LogRequestAsync(ctx context.Context, info RequestInfo) error {
	if s.closed.Load() {
		s.logger.Warn("request tracking service is shutting down, dropping request",
			slog.String("user_id", info.UserID),
			slog.String("endpoint", info.Endpoint))
		return fmt.Errorf("service shutting down")
	}

	logReq := logRequest{
		ctx:  ctx,
		info: info,
	}

	select {
	case s.logChan <- logReq:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		dropped := s.droppedRequestsTotal.Add(1)
		s.metrics.TrackingDropped()
		s.logger.Error("request log queue full, request dropped",
			slog.String("user_id", info.UserID),
			slog.String("endpoint", info.Endpoint),
			slog.String("model", info.Model),
			slog.Int64("total_dropped", dropped),
			slog.Int("queue_size", s.cfg.BufferSize))
		return fmt.Errorf("log queue is full, dropping request")
	}
}

// DroppedRequests returns how many log requests were dropped because the queue was full.
func (s *Service) DroppedRequests() int64 {
	return s.droppedRequestsTotal.Load()
}

// Shutdown stops accepting requests and waits for queued ones to be written. Safe to call twice.
func (s *Service) Shutdown() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	close(s.shutdown)
	s.workerPool.Wait()
}

// handleLogRequest ensures each request has a reasonable timeout and then processes it.
func (s *Service) handleLogRequest(lr logRequest) {
	ctx := lr.ctx

	var cancel context.CancelFunc
	if dl, ok := ctx.Deadline(); !ok || time.Until(dl) < time.Second {
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
	}

	s.processLogRequest(ctx, lr.info)

	if cancel != nil {
		cancel()
	}
}

func nullInt32(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

// GetProviderFromBaseURL maps base URLs to provider names.
func GetProviderFromBaseURL(baseURL string) string {
	baseURL = strings.TrimRight(baseURL, "/")

	switch baseURL {
	case "https://openrouter.ai/api/v1":
		return "openrouter"
	case "https://api.openai.com/v1":
		return "openai"
	default:
		return "unknown"
	}
}
