// Package fx supplies the USD to KRW exchange rate used by the billing
// engine.
//
// A Provider fetches at most once per TTL window and serves the cached quote
// in between. When a fetch fails the default rate is served and nothing is
// cached, so the next call tries the source again.
package fx

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"mysubs/internal/cache"
	"mysubs/internal/metrics"
)

// DefaultRate is served when the source cannot be reached.
const DefaultRate = 1350

const cacheKey = "USD/KRW"

// Quote is one exchange rate observation.
type Quote struct {
	Rate      float64   `json:"rate"`
	FetchedAt time.Time `json:"updatedAt"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	Cached    bool      `json:"cached"`
	Fallback  bool      `json:"fallback,omitempty"`
}

// Config configures a Provider.
type Config struct {
	TTL         time.Duration
	DefaultRate float64
	Now         func() time.Time
	Logger      *slog.Logger
}

// Provider caches quotes from a Source.
type Provider struct {
	source   Source
	cache    *cache.LRUCache[Quote]
	fallback float64
	now      func() time.Time
	logger   *slog.Logger
	group    singleflight.Group
}

// NewProvider creates a provider. Zero config values select a one hour TTL,
// DefaultRate, time.Now and a discarding logger.
func NewProvider(source Source, cfg Config) *Provider {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.DefaultRate <= 0 {
		cfg.DefaultRate = DefaultRate
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Provider{
		source:   source,
		cache:    cache.NewLRUCache[Quote](1, cfg.TTL, cache.WithClock(cfg.Now)),
		fallback: cfg.DefaultRate,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
}

// Quote returns the current rate, fetching it when the cached one expired.
func (p *Provider) Quote(ctx context.Context) Quote {
	if q, expiresAt, ok := p.cache.GetWithExpiry(cacheKey); ok {
		q.Cached = true
		q.ExpiresAt = expiresAt
		metrics.FXLookups.WithLabelValues("cached").Inc()
		return q
	}

	v, _, _ := p.group.Do(cacheKey, func() (any, error) {
		return p.refresh(ctx), nil
	})
	return v.(Quote)
}

// Rate is Quote without the metadata.
func (p *Provider) Rate(ctx context.Context) float64 {
	return p.Quote(ctx).Rate
}

// Cache exposes the quote cache so it can be swept by a cache.Manager.
func (p *Provider) Cache() cache.Cleaner {
	return p.cache
}

func (p *Provider) refresh(ctx context.Context) Quote {
	now := p.now()
	rate, err := p.source.FetchRate(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "Exchange rate fetch failed, using default rate",
			"error", err, "exchange_rate", p.fallback)
		metrics.FXLookups.WithLabelValues("fallback").Inc()
		metrics.FXRate.Set(p.fallback)
		return Quote{Rate: p.fallback, FetchedAt: now, Fallback: true}
	}

	q := Quote{Rate: rate, FetchedAt: now}
	p.cache.Set(cacheKey, q)
	_, q.ExpiresAt, _ = p.cache.GetWithExpiry(cacheKey)
	metrics.FXLookups.WithLabelValues("fetched").Inc()
	metrics.FXRate.Set(rate)
	p.logger.InfoContext(ctx, "Exchange rate refreshed", "exchange_rate", rate)
	return q
}
