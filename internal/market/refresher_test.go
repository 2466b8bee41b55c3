package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calc-back/pkg/config"
	"github.com/calc-back/pkg/models"
)

type fakeMarketFeed struct {
	mu     sync.Mutex
	assets []models.Asset
	err    error
	calls  int
	order  *[]string
	block  chan struct{} // optional, fetch waits on it when set
	called chan struct{} // optional, closed on first call
}

func (f *fakeMarketFeed) FetchMarkets(ctx context.Context) ([]models.Asset, error) {
	f.mu.Lock()
	f.calls++
	if f.order != nil {
		*f.order = append(*f.order, "markets")
	}
	if f.called != nil && f.calls == 1 {
		close(f.called)
	}
	block := f.block
	assets, err := f.assets, f.err
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return assets, err
}

func (f *fakeMarketFeed) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeMarketFeed) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeRateFeed struct {
	mu    sync.Mutex
	rate  float64
	err   error
	order *[]string
}

func (f *fakeRateFeed) FetchRate(ctx context.Context, currency string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.order != nil {
		*f.order = append(*f.order, "rate")
	}
	return f.rate, f.err
}

type fakeCache struct {
	mu       sync.Mutex
	assets   []models.Asset
	rate     models.ExchangeRate
	hasRate  bool
	setSnaps int
	setRates int
}

func (f *fakeCache) GetSnapshot(ctx context.Context) ([]models.Asset, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assets, len(f.assets) > 0, nil
}

func (f *fakeCache) SetSnapshot(ctx context.Context, assets []models.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets = assets
	f.setSnaps++
	return nil
}

func (f *fakeCache) GetRate(ctx context.Context) (models.ExchangeRate, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rate, f.hasRate, nil
}

func (f *fakeCache) SetRate(ctx context.Context, rate models.ExchangeRate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rate = rate
	f.hasRate = true
	f.setRates++
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.RefreshEvent
}

func (f *fakePublisher) PublishRefresh(event models.RefreshEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) published() []models.RefreshEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := make([]models.RefreshEvent, len(f.events))
	copy(events, f.events)
	return events
}

func refresherConfig() *config.Config {
	return &config.Config{
		Rates:   config.RatesConfig{Currency: "ILS", Fallback: 3.5},
		Refresh: config.RefreshConfig{Interval: time.Minute},
	}
}

func TestRefresher_ForceRefreshUpdatesStores(t *testing.T) {
	store := NewStore(testLogger())
	rates := NewRateStore("ILS", 3.5, testLogger())
	markets := &fakeMarketFeed{assets: []models.Asset{
		{Symbol: "BTC", PriceUSD: 50000},
		{Symbol: "ETH", PriceUSD: 2000},
	}}
	fx := &fakeRateFeed{rate: 3.72}
	cache := &fakeCache{}
	publisher := &fakePublisher{}

	r := NewRefresher(store, rates, markets, fx, cache, publisher, refresherConfig(), testLogger())

	var notified []models.RefreshEvent
	r.OnRefresh(func(event models.RefreshEvent) {
		notified = append(notified, event)
	})

	r.ForceRefresh(context.Background())

	assert.Equal(t, models.StateReady, store.State())
	assert.Equal(t, 2, store.Count())
	assert.Equal(t, 3.72, rates.Multiplier())
	assert.False(t, rates.Rate().Fallback)

	assert.Equal(t, 1, cache.setSnaps)
	assert.Equal(t, 1, cache.setRates)

	events := publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, models.StateReady, events[0].State)
	assert.Equal(t, 2, events[0].AssetCount)
	assert.Equal(t, "ILS", events[0].Currency)
	assert.Equal(t, 3.72, events[0].Rate)

	require.Len(t, notified, 1)
	assert.Equal(t, 2, notified[0].AssetCount)
}

func TestRefresher_RateFetchedBeforeMarkets(t *testing.T) {
	store := NewStore(testLogger())
	rates := NewRateStore("ILS", 3.5, testLogger())

	var order []string
	markets := &fakeMarketFeed{assets: []models.Asset{{Symbol: "BTC", PriceUSD: 50000}}, order: &order}
	fx := &fakeRateFeed{rate: 3.72, order: &order}

	r := NewRefresher(store, rates, markets, fx, nil, nil, refresherConfig(), testLogger())
	r.ForceRefresh(context.Background())

	require.Len(t, order, 2)
	assert.Equal(t, []string{"rate", "markets"}, order)
}

func TestRefresher_RateFailureNeverFailsCycle(t *testing.T) {
	store := NewStore(testLogger())
	rates := NewRateStore("ILS", 3.5, testLogger())
	markets := &fakeMarketFeed{assets: []models.Asset{{Symbol: "BTC", PriceUSD: 50000}}}
	fx := &fakeRateFeed{err: errors.New("fx feed down")}

	r := NewRefresher(store, rates, markets, fx, nil, nil, refresherConfig(), testLogger())
	r.ForceRefresh(context.Background())

	// Markets still load; the fallback rate keeps serving
	assert.Equal(t, models.StateReady, store.State())
	assert.Equal(t, 3.5, rates.Multiplier())
	assert.True(t, rates.Rate().Fallback)
}

func TestRefresher_MarketFailureRetainsSnapshot(t *testing.T) {
	store := NewStore(testLogger())
	rates := NewRateStore("ILS", 3.5, testLogger())
	markets := &fakeMarketFeed{assets: []models.Asset{{Symbol: "BTC", PriceUSD: 50000}}}
	fx := &fakeRateFeed{rate: 3.72}
	publisher := &fakePublisher{}

	r := NewRefresher(store, rates, markets, fx, nil, publisher, refresherConfig(), testLogger())

	r.ForceRefresh(context.Background())
	require.Equal(t, models.StateReady, store.State())

	markets.fail(errors.New("rate limited"))
	r.ForceRefresh(context.Background())

	assert.Equal(t, models.StateReady, store.State())
	assert.Equal(t, 1, store.Count())
	assert.EqualError(t, store.LastError(), "rate limited")

	// A failed cycle publishes nothing
	assert.Len(t, publisher.published(), 1)
}

func TestRefresher_SingleFlight(t *testing.T) {
	store := NewStore(testLogger())
	rates := NewRateStore("ILS", 3.5, testLogger())
	block := make(chan struct{})
	markets := &fakeMarketFeed{
		assets: []models.Asset{{Symbol: "BTC", PriceUSD: 50000}},
		block:  block,
		called: make(chan struct{}),
	}
	fx := &fakeRateFeed{rate: 3.72}

	r := NewRefresher(store, rates, markets, fx, nil, nil, refresherConfig(), testLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.ForceRefresh(context.Background())
	}()

	// Wait until the first cycle is mid-fetch, then try to start another
	<-markets.called
	r.ForceRefresh(context.Background())

	close(block)
	wg.Wait()

	assert.Equal(t, 1, markets.callCount())
}

func TestRefresher_WarmStartFromCache(t *testing.T) {
	store := NewStore(testLogger())
	rates := NewRateStore("ILS", 3.5, testLogger())
	markets := &fakeMarketFeed{err: errors.New("feed down"), called: make(chan struct{})}
	fx := &fakeRateFeed{err: errors.New("fx down")}
	cache := &fakeCache{
		assets:  []models.Asset{{Symbol: "BTC", PriceUSD: 49000}},
		rate:    models.ExchangeRate{Currency: "ILS", Multiplier: 3.65},
		hasRate: true,
	}

	r := NewRefresher(store, rates, markets, fx, cache, nil, refresherConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Start(ctx))
	<-markets.called
	require.NoError(t, r.Stop())

	// Both feeds are down, but the cached last-good data serves
	assert.Equal(t, models.StateReady, store.State())
	assert.Equal(t, 1, store.Count())
	assert.Equal(t, 3.65, rates.Multiplier())
}
