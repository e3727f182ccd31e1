package title_generation

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/eternisai/enchanted-chat/internal/chat"
	"github.com/eternisai/enchanted-chat/internal/config"
	"github.com/eternisai/enchanted-chat/internal/logger"
	"github.com/eternisai/enchanted-chat/internal/metrics"
)

// fallbackTimeFormat renders DD/MM/YYYY HH:mm.
const fallbackTimeFormat = "02/01/2006 15:04"

// Sender sends a one-shot message list through the chat dispatcher.
type Sender interface {
	Send(ctx context.Context, user chat.User, history []chat.Message, model string, temperature float64) (string, error)
}

// Generator asks the model for a short title, retrying with an increasingly
// insistent prompt, and falls back to a dated default.
type Generator struct {
	sender  Sender
	cfg     config.TitleGenerationConfig
	logger  *logger.Logger
	metrics *metrics.Metrics

	location *time.Location
	now      func() time.Time
}

// NewGenerator creates a generator with prompts and bounds from config. m may be nil.
func NewGenerator(sender Sender, cfg *config.TitleGenerationConfig, location *time.Location, log *logger.Logger, m *metrics.Metrics) *Generator {
	if location == nil {
		location = time.UTC
	}

	return &Generator{
		sender:   sender,
		cfg:      *cfg,
		logger:   log.WithComponent("title_generation"),
		metrics:  m,
		location: location,
		now:      time.Now,
	}
}

// Synthesize returns a title for the first exchange. It never fails.
func (g *Generator) Synthesize(ctx context.Context, user chat.User, firstUserMessage, firstAssistantMessage, model string) string {
	return g.Generate(ctx, Request{
		User:                  user,
		FirstUserMessage:      firstUserMessage,
		FirstAssistantMessage: firstAssistantMessage,
		Model:                 model,
	}).Title
}

// Generate runs the attempt loop and reports how the title was obtained.
func (g *Generator) Generate(ctx context.Context, req Request) Result {
	log := g.logger.WithContext(ctx)

	for n := 1; n <= g.cfg.MaxAttempts; n++ {
		a := g.attempt(ctx, req, n)

		switch {
		case a.err != nil:
			log.Warn("title attempt failed",
				slog.Int("attempt", n),
				slog.String("error", a.err.Error()))
		default:
			log.Info("title attempt",
				slog.Int("attempt", n),
				slog.String("raw", a.raw),
				slog.String("cleaned", a.title),
				slog.String("outcome", a.outcome.String()))
		}

		if a.outcome == OutcomeAccepted {
			g.metrics.TitleGenerated("accepted", n)
			return Result{Title: a.title, Attempts: n}
		}

		if ctx.Err() != nil {
			log.Warn("title generation cancelled, using fallback", slog.Int("attempt", n))
			return g.fallback(n)
		}
	}

	log.Warn("no valid title generated, using fallback", slog.Int("max_attempts", g.cfg.MaxAttempts))
	return g.fallback(g.cfg.MaxAttempts)
}

func (g *Generator) fallback(attempts int) Result {
	g.metrics.TitleGenerated("fallback", attempts)
	return Result{
		Title:    g.FallbackTitle(),
		Attempts: attempts,
		Fallback: true,
	}
}

// FallbackTitle returns the dated default title.
func (g *Generator) FallbackTitle() string {
	return g.cfg.FallbackPrefix + " " + g.now().In(g.location).Format(fallbackTimeFormat)
}

func (g *Generator) attempt(ctx context.Context, req Request, n int) attempt {
	prompt := g.cfg.Prompt
	if n > 1 {
		prompt += " " + g.cfg.InsistPrompt
	}

	messages := []chat.Message{
		{Role: chat.RoleSystem, Content: prompt},
		{Role: chat.RoleUser, Content: req.FirstUserMessage},
		{Role: chat.RoleAssistant, Content: req.FirstAssistantMessage},
	}

	raw, err := g.sender.Send(ctx, req.User, messages, req.Model, g.temperature(n))
	if err != nil {
		return attempt{outcome: OutcomeRetry, err: err}
	}

	title := CleanTitle(raw)
	if !g.valid(title) {
		return attempt{outcome: OutcomeRetry, raw: raw, title: title}
	}

	return attempt{outcome: OutcomeAccepted, raw: raw, title: title}
}

// temperature escalates per attempt: base, base+step, base+2*step...
func (g *Generator) temperature(n int) float64 {
	return g.cfg.BaseTemperature + float64(n-1)*g.cfg.TemperatureStep
}

func (g *Generator) valid(title string) bool {
	length := utf8.RuneCountInString(title)
	return length >= g.cfg.MinLength && length <= g.cfg.MaxLength
}

