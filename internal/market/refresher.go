package market

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/calc-back/pkg/config"
	"github.com/calc-back/pkg/models"
	"github.com/sirupsen/logrus"
)

// MarketFeed fetches the full market snapshot for the configured universe
type MarketFeed interface {
	FetchMarkets(ctx context.Context) ([]models.Asset, error)
}

// RateFeed fetches the USD multiplier for a single currency code
type RateFeed interface {
	FetchRate(ctx context.Context, currency string) (float64, error)
}

// SnapshotCache persists the last-good snapshot and rate across restarts.
// Implementations must tolerate a cold cache (found=false, no error).
type SnapshotCache interface {
	GetSnapshot(ctx context.Context) ([]models.Asset, bool, error)
	SetSnapshot(ctx context.Context, assets []models.Asset) error
	GetRate(ctx context.Context) (models.ExchangeRate, bool, error)
	SetRate(ctx context.Context, rate models.ExchangeRate) error
}

// EventPublisher fans a completed refresh cycle out to external consumers
type EventPublisher interface {
	PublishRefresh(event models.RefreshEvent) error
}

// Refresher drives the periodic two-step refresh cycle: exchange rate first,
// then the market snapshot, so the valuation engine never observes fresh
// prices paired with an uninitialized rate. A single-flight guard ensures a
// new cycle only starts when no prior cycle is still pending.
type Refresher struct {
	store *Store
	rates *RateStore

	markets MarketFeed
	fx      RateFeed
	cache   SnapshotCache   // optional
	events  EventPublisher  // optional

	currency string
	interval time.Duration

	listeners   []func(models.RefreshEvent)
	listenersMu sync.RWMutex

	inFlight int32
	running  bool
	done     chan struct{}
	wg       sync.WaitGroup
	logger   *logrus.Entry
}

// NewRefresher creates a new refresher. cache and events may be nil.
func NewRefresher(
	store *Store,
	rates *RateStore,
	markets MarketFeed,
	fx RateFeed,
	cache SnapshotCache,
	events EventPublisher,
	cfg *config.Config,
	logger *logrus.Logger,
) *Refresher {
	return &Refresher{
		store:    store,
		rates:    rates,
		markets:  markets,
		fx:       fx,
		cache:    cache,
		events:   events,
		currency: cfg.Rates.Currency,
		interval: cfg.Refresh.Interval,
		done:     make(chan struct{}),
		logger:   logger.WithField("component", "refresher"),
	}
}

// OnRefresh registers a listener invoked after every successful cycle.
// Listeners must be registered before Start.
func (r *Refresher) OnRefresh(fn func(models.RefreshEvent)) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Start warm-starts from the cache, performs the initial refresh, and then
// refreshes on the configured interval until Stop.
func (r *Refresher) Start(ctx context.Context) error {
	if r.running {
		return nil
	}
	r.running = true

	r.warmStart(ctx)

	r.wg.Add(1)
	go r.refreshLoop(ctx)

	return nil
}

// Stop stops the periodic refresh
func (r *Refresher) Stop() error {
	if !r.running {
		return nil
	}

	close(r.done)
	r.wg.Wait()
	r.running = false

	return nil
}

// ForceRefresh runs one refresh cycle immediately
func (r *Refresher) ForceRefresh(ctx context.Context) {
	r.refresh(ctx)
}

// refreshLoop runs the initial cycle and then the periodic ticker
func (r *Refresher) refreshLoop(ctx context.Context) {
	defer r.wg.Done()

	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// warmStart hydrates the stores from the last-good cached snapshot so a
// restart does not begin from an empty calculator
func (r *Refresher) warmStart(ctx context.Context) {
	if r.cache == nil {
		return
	}

	if rate, found, err := r.cache.GetRate(ctx); err != nil {
		r.logger.WithError(err).Warn("Failed to read cached exchange rate")
	} else if found {
		r.rates.Restore(rate)
	}

	assets, found, err := r.cache.GetSnapshot(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to read cached market snapshot")
		return
	}
	if !found || len(assets) == 0 {
		return
	}

	r.store.Replace(assets)
	r.logger.WithField("assets", len(assets)).Info("Warm-started market store from cache")
}

// refresh performs one two-step refresh cycle
func (r *Refresher) refresh(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&r.inFlight, 0, 1) {
		r.logger.Debug("Refresh cycle still in flight, skipping tick")
		return
	}
	defer atomic.StoreInt32(&r.inFlight, 0)

	start := time.Now()

	// Exchange rate first. A rate failure keeps the previous value (or the
	// fallback constant) and never fails the cycle.
	if multiplier, err := r.fx.FetchRate(ctx, r.currency); err != nil {
		r.logger.WithError(err).Warn("Exchange rate fetch failed, keeping previous rate")
	} else if err := r.rates.Set(multiplier); err != nil {
		r.logger.WithError(err).Warn("Rejected exchange rate value")
	} else if r.cache != nil {
		if err := r.cache.SetRate(ctx, r.rates.Rate()); err != nil {
			r.logger.WithError(err).Debug("Failed to cache exchange rate")
		}
	}

	assets, err := r.markets.FetchMarkets(ctx)
	if err != nil {
		r.store.SetError(err)
		if r.store.State() == models.StateFailed {
			r.logger.WithError(err).Error("Market data fetch failed with no prior snapshot")
		} else {
			r.logger.WithError(err).Warn("Market data fetch failed, retaining last-good snapshot")
		}
		return
	}

	r.store.Replace(assets)

	if r.cache != nil {
		if err := r.cache.SetSnapshot(ctx, assets); err != nil {
			r.logger.WithError(err).Debug("Failed to cache market snapshot")
		}
	}

	rate := r.rates.Rate()
	event := models.RefreshEvent{
		State:      r.store.State(),
		AssetCount: len(assets),
		Currency:   rate.Currency,
		Rate:       rate.Multiplier,
		Duration:   time.Since(start).Milliseconds(),
		Timestamp:  time.Now(),
	}

	if r.events != nil {
		if err := r.events.PublishRefresh(event); err != nil {
			r.logger.WithError(err).Warn("Failed to publish refresh event")
		}
	}

	r.notify(event)

	r.logger.WithFields(logrus.Fields{
		"assets":      event.AssetCount,
		"rate":        event.Rate,
		"duration_ms": event.Duration,
	}).Info("Refresh cycle completed")
}

// notify invokes registered listeners
func (r *Refresher) notify(event models.RefreshEvent) {
	r.listenersMu.RLock()
	defer r.listenersMu.RUnlock()

	for _, fn := range r.listeners {
		fn(event)
	}
}
