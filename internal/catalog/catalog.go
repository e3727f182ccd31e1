package catalog

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/eternisai/enchanted-chat/internal/logger"
	"github.com/eternisai/enchanted-chat/internal/metrics"
	"github.com/eternisai/enchanted-chat/internal/upstream"
)

// CacheKey is the key under which the filtered model list is cached.
const CacheKey = "openai.models"

// ModelDescriptor is a cached catalog entry.
type ModelDescriptor struct {
	ID                  string           `json:"id"`
	Name                string           `json:"name"`
	ContextLength       int              `json:"context_length"`
	MaxCompletionTokens *int             `json:"max_completion_tokens"`
	Pricing             upstream.Pricing `json:"pricing"`
}

// ModelLister fetches the raw model list from the provider.
type ModelLister interface {
	ListModels(ctx context.Context) ([]upstream.Model, error)
}

// Config configures the catalog.
type Config struct {
	TTL             time.Duration
	FreeModelSuffix string
}

// Catalog caches the free-tier model list with a fixed TTL.
// Concurrent misses share a single upstream fetch.
type Catalog struct {
	lister  ModelLister
	cache   *cache.Cache
	group   singleflight.Group
	suffix  string
	ttl     time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// New creates a catalog. m may be nil.
func New(lister ModelLister, log *logger.Logger, m *metrics.Metrics, cfg Config) *Catalog {
	return &Catalog{
		lister:  lister,
		cache:   cache.New(cfg.TTL, 2*cfg.TTL),
		suffix:  cfg.FreeModelSuffix,
		ttl:     cfg.TTL,
		logger:  log.WithComponent("model_catalog"),
		metrics: m,
	}
}

// Models returns the cached free-tier models sorted by display name, fetching
// them on a miss. Fetch errors propagate and nothing is cached. The result is
// a copy the caller may modify.
func (c *Catalog) Models(ctx context.Context) ([]ModelDescriptor, error) {
	models, err := c.lookup(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(models), nil
}

// lookup returns the shared cached slice, which must not be modified.
func (c *Catalog) lookup(ctx context.Context) ([]ModelDescriptor, error) {
	if cached, ok := c.cache.Get(CacheKey); ok {
		c.metrics.CatalogLookup(metrics.CatalogHit)
		return cached.([]ModelDescriptor), nil
	}

	c.metrics.CatalogLookup(metrics.CatalogMiss)
	return c.load(ctx, false)
}

// Contains reports whether modelID is in the catalog.
func (c *Catalog) Contains(ctx context.Context, modelID string) (bool, error) {
	models, err := c.lookup(ctx)
	if err != nil {
		return false, err
	}

	for _, m := range models {
		if m.ID == modelID {
			return true, nil
		}
	}
	return false, nil
}

// Refresh refetches the list and replaces the cached entry.
func (c *Catalog) Refresh(ctx context.Context) ([]ModelDescriptor, error) {
	models, err := c.load(ctx, true)
	if err != nil {
		return nil, err
	}
	return slices.Clone(models), nil
}

func (c *Catalog) load(ctx context.Context, force bool) ([]ModelDescriptor, error) {
	// The shared fetch must outlive the caller that happened to start it.
	fetchCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(CacheKey, func() (interface{}, error) {
		// A fetch may have completed between the miss and this call.
		if !force {
			if cached, ok := c.cache.Get(CacheKey); ok {
				return cached, nil
			}
		}
		return c.fetch(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.metrics.CatalogLookup(metrics.CatalogError)
			return nil, res.Err
		}
		return res.Val.([]ModelDescriptor), nil
	}
}

func (c *Catalog) fetch(ctx context.Context) ([]ModelDescriptor, error) {
	log := c.logger.WithContext(ctx)
	start := time.Now()

	raw, err := c.lister.ListModels(ctx)
	if err != nil {
		log.Error("failed to fetch model list", slog.String("error", err.Error()))
		return nil, err
	}

	models := filterFree(raw, c.suffix)
	c.cache.Set(CacheKey, models, cache.DefaultExpiration)
	c.metrics.CatalogFetched(time.Since(start), len(models))

	log.Info("model catalog refreshed",
		slog.Int("upstream_models", len(raw)),
		slog.Int("free_models", len(models)),
		slog.Duration("ttl", c.ttl),
		slog.Duration("duration", time.Since(start)))

	return models, nil
}

// filterFree keeps models whose id ends with suffix, stably sorted by name.
func filterFree(raw []upstream.Model, suffix string) []ModelDescriptor {
	models := make([]ModelDescriptor, 0, len(raw))
	for _, m := range raw {
		if !strings.HasSuffix(m.ID, suffix) {
			continue
		}

		descriptor := ModelDescriptor{
			ID:            m.ID,
			Name:          m.Name,
			ContextLength: m.ContextLength,
			Pricing:       m.Pricing,
		}
		if m.TopProvider != nil {
			descriptor.MaxCompletionTokens = m.TopProvider.MaxCompletionTokens
		}
		models = append(models, descriptor)
	}

	sort.SliceStable(models, func(i, j int) bool {
		return models[i].Name < models[j].Name
	})

	return models
}
