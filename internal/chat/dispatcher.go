package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eternisai/enchanted-chat/internal/logger"
	"github.com/eternisai/enchanted-chat/internal/upstream"
)

// DefaultTemperature is the sampling temperature used for regular turns.
const DefaultTemperature = 0.7

// Usage record statuses.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusLimited   = "limited"
	StatusCancelled = "cancelled"
)

// Completer is the subset of the upstream client used by the dispatcher.
type Completer interface {
	CreateChatCompletion(ctx context.Context, request upstream.ChatCompletionRequest) (*upstream.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, request upstream.ChatCompletionRequest) (*upstream.Stream, error)
}

// ModelCatalog validates requested model identifiers.
type ModelCatalog interface {
	Contains(ctx context.Context, modelID string) (bool, error)
}

// InstructionSource returns a user's custom instructions, or nil when none exist.
type InstructionSource interface {
	Lookup(ctx context.Context, userID string) (*CustomInstruction, error)
}

// Usage describes one upstream call.
type Usage struct {
	UserID           string
	ConversationID   string
	Endpoint         string
	Model            string
	Temperature      float64
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Latency          time.Duration
	Status           string
}

// UsageRecorder receives one record per upstream call. It must not block.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, usage Usage)
}

// DispatcherConfig holds dispatcher settings.
type DispatcherConfig struct {
	DefaultModel string
	Location     *time.Location
}

// Dispatcher runs one request/response turn against the upstream API.
type Dispatcher struct {
	client       Completer
	catalog      ModelCatalog
	instructions InstructionSource
	usage        UsageRecorder
	logger       *logger.Logger

	defaultModel string
	location     *time.Location
	now          func() time.Time
}

// NewDispatcher creates a dispatcher. usage may be nil.
func NewDispatcher(client Completer, catalog ModelCatalog, instructions InstructionSource, usage UsageRecorder, log *logger.Logger, cfg DispatcherConfig) *Dispatcher {
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}

	return &Dispatcher{
		client:       client,
		catalog:      catalog,
		instructions: instructions,
		usage:        usage,
		logger:       log.WithComponent("chat_dispatcher"),
		defaultModel: cfg.DefaultModel,
		location:     location,
		now:          time.Now,
	}
}

// DefaultModel returns the model used when a request names none or an unknown one.
func (d *Dispatcher) DefaultModel() string {
	return d.defaultModel
}

// Send performs a non-streaming turn and returns the assistant reply text.
func (d *Dispatcher) Send(ctx context.Context, user User, history []Message, model string, temperature float64) (string, error) {
	log := d.logger.WithContext(ctx)

	request, err := d.prepare(ctx, user, history, model, temperature)
	if err != nil {
		return "", err
	}

	log.Info("sending message",
		slog.String("model", request.Model),
		slog.Float64("temperature", temperature),
		slog.Int("message_count", len(request.Messages)))

	start := time.Now()
	resp, err := d.client.CreateChatCompletion(ctx, request)
	if err != nil {
		mapped := mapUpstreamError(err)
		d.record(ctx, user, "send", request, nil, time.Since(start), mapped)
		log.Error("upstream completion failed",
			slog.String("error", err.Error()),
			slog.String("model", request.Model),
			slog.Float64("temperature", temperature))
		return "", mapped
	}

	d.record(ctx, user, "send", request, resp.Usage, time.Since(start), nil)
	log.Debug("reply received",
		slog.String("model", request.Model),
		slog.Int("reply_length", len(resp.Content())))

	return resp.Content(), nil
}

// Stream performs a streaming turn. The returned stream must be closed by the
// caller; cancelling ctx also closes the upstream connection.
func (d *Dispatcher) Stream(ctx context.Context, user User, history []Message, model string, temperature float64) (*Stream, error) {
	log := d.logger.WithContext(ctx)

	request, err := d.prepare(ctx, user, history, model, temperature)
	if err != nil {
		return nil, err
	}

	log.Info("starting stream",
		slog.String("model", request.Model),
		slog.Float64("temperature", temperature),
		slog.Int("message_count", len(request.Messages)))

	start := time.Now()
	upstreamStream, err := d.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		mapped := mapUpstreamError(err)
		d.record(ctx, user, "stream", request, nil, time.Since(start), mapped)
		log.Error("upstream stream failed",
			slog.String("error", err.Error()),
			slog.String("model", request.Model),
			slog.Float64("temperature", temperature))
		return nil, mapped
	}

	return &Stream{
		upstream: upstreamStream,
		model:    request.Model,
		onClose: func(usage *upstream.Usage, streamErr error) {
			d.record(ctx, user, "stream", request, usage, time.Since(start), streamErr)
		},
	}, nil
}

// prepare resolves the model and assembles the full message list. A catalog
// failure aborts the turn before any upstream call.
func (d *Dispatcher) prepare(ctx context.Context, user User, history []Message, model string, temperature float64) (upstream.ChatCompletionRequest, error) {
	resolved, err := d.resolveModel(ctx, model)
	if err != nil {
		return upstream.ChatCompletionRequest{}, err
	}

	instr, err := d.instructions.Lookup(ctx, user.ID)
	if err != nil {
		// The turn proceeds without instructions.
		d.logger.WithContext(ctx).Warn("failed to load custom instructions",
			slog.String("error", err.Error()))
		instr = nil
	}

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, BuildSystemPrompt(user, instr, d.now().In(d.location)))
	messages = append(messages, history...)
	messages = ApplyCustomCommand(messages, instr)

	return upstream.ChatCompletionRequest{
		Model:       resolved,
		Messages:    toWire(messages),
		Temperature: temperature,
	}, nil
}

// resolveModel substitutes the default model for empty or unknown identifiers.
func (d *Dispatcher) resolveModel(ctx context.Context, model string) (string, error) {
	log := d.logger.WithContext(ctx)

	if model == "" {
		log.Debug("no model requested, using default", slog.String("model", d.defaultModel))
		return d.defaultModel, nil
	}

	ok, err := d.catalog.Contains(ctx, model)
	if err != nil {
		log.Error("model catalog unavailable",
			slog.String("error", err.Error()),
			slog.String("requested_model", model))
		return "", fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	if !ok {
		log.Info("unknown model requested, using default",
			slog.String("requested_model", model),
			slog.String("model", d.defaultModel))
		return d.defaultModel, nil
	}

	return model, nil
}

func (d *Dispatcher) record(ctx context.Context, user User, endpoint string, request upstream.ChatCompletionRequest, usage *upstream.Usage, latency time.Duration, err error) {
	if d.usage == nil {
		return
	}

	record := Usage{
		UserID:         user.ID,
		ConversationID: logger.ConversationIDFromContext(ctx),
		Endpoint:       endpoint,
		Model:          request.Model,
		Temperature:    request.Temperature,
		Latency:        latency,
		Status:         requestStatus(err),
	}
	if usage != nil {
		record.PromptTokens = usage.PromptTokens
		record.CompletionTokens = usage.CompletionTokens
		record.TotalTokens = usage.TotalTokens
	}

	d.usage.RecordUsage(context.WithoutCancel(ctx), record)
}
