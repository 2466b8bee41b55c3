package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/calc-back/internal/api"
	"github.com/calc-back/internal/cache"
	"github.com/calc-back/internal/external"
	"github.com/calc-back/internal/market"
	"github.com/calc-back/internal/messaging"
	"github.com/calc-back/internal/session"
	"github.com/calc-back/internal/websocket"
	"github.com/calc-back/pkg/config"
	"github.com/calc-back/pkg/models"
)

// App represents the main application
type App struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Core components
	store      *market.Store
	rates      *market.RateStore
	refresher  *market.Refresher
	sessionMgr *session.Manager
	wsHub      *websocket.Hub
	apiServer  *api.Server

	// Optional infrastructure
	redisCache *cache.RedisClient
	natsClient *messaging.NATSClient
}

// New creates a new application instance
func New(cfg *config.Config, logger *logrus.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Initialize initializes all application components
func (a *App) Initialize() error {
	a.store = market.NewStore(a.logger)
	a.rates = market.NewRateStore(a.cfg.Rates.Currency, a.cfg.Rates.Fallback, a.logger)

	if err := a.initializeCache(); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	if err := a.initializeMessaging(); err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	a.initializeRefresher()

	a.sessionMgr = session.NewManager(&a.cfg.Session, a.logger)
	a.wsHub = websocket.NewHub(&a.cfg.WebSocket, a.logger)
	a.apiServer = api.NewServer(a.cfg, a.logger, a.store, a.rates, a.sessionMgr, a.wsHub)

	// Push every successful refresh out to connected clients
	a.refresher.OnRefresh(func(event models.RefreshEvent) {
		a.wsHub.BroadcastMarketUpdate(event.State, a.store.Assets(), a.rates.Rate())
	})

	return nil
}

// initializeCache connects the optional Redis snapshot cache
func (a *App) initializeCache() error {
	if !a.cfg.Redis.Enabled {
		return nil
	}

	redisCache, err := cache.NewRedisClient(&a.cfg.Redis, a.cfg.GetRedisAddr(), a.logger)
	if err != nil {
		// Cache is an optimization; run without it rather than fail startup
		a.logger.WithError(err).Warn("Redis unavailable, continuing without snapshot cache")
		return nil
	}

	a.redisCache = redisCache
	return nil
}

// initializeMessaging connects the optional NATS event publisher
func (a *App) initializeMessaging() error {
	if !a.cfg.NATS.Enabled {
		return nil
	}

	natsClient, err := messaging.NewNATSClient(&a.cfg.NATS, a.logger)
	if err != nil {
		a.logger.WithError(err).Warn("NATS unavailable, continuing without event publishing")
		return nil
	}

	a.natsClient = natsClient
	return nil
}

// initializeRefresher wires the refresh cycle to the feeds and stores
func (a *App) initializeRefresher() {
	gecko := external.NewCoinGeckoClient(&a.cfg.Market, a.logger)
	fx := external.NewExchangeRateClient(&a.cfg.Rates, a.logger)

	var snapshotCache market.SnapshotCache
	if a.redisCache != nil {
		snapshotCache = a.redisCache
	}

	var events market.EventPublisher
	if a.natsClient != nil {
		events = a.natsClient
	}

	a.refresher = market.NewRefresher(a.store, a.rates, gecko, fx, snapshotCache, events, a.cfg, a.logger)
}

// Start starts the application
func (a *App) Start() error {
	// WebSocket hub first so refresh broadcasts have somewhere to go
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.wsHub.Run(a.ctx)
	}()

	if err := a.sessionMgr.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start session manager: %w", err)
	}

	if err := a.refresher.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start refresher: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.apiServer.Start(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the application
func (a *App) Stop() error {
	a.logger.Info("Stopping application...")

	a.cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		a.logger.Warn("Timeout waiting for goroutines to finish")
	}

	a.stopServicesWithTimeout()

	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing Redis")
		}
	}
	if a.natsClient != nil {
		if err := a.natsClient.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing NATS")
		}
	}

	a.logger.Info("Application stopped")
	return nil
}

// stopServicesWithTimeout stops each service with a timeout
func (a *App) stopServicesWithTimeout() {
	if a.apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.apiServer.Stop(ctx); err != nil {
			a.logger.WithError(err).Error("Error stopping API server")
		}
		cancel()
	}

	if a.refresher != nil {
		if err := a.refresher.Stop(); err != nil {
			a.logger.WithError(err).Error("Error stopping refresher")
		}
	}

	if a.sessionMgr != nil {
		if err := a.sessionMgr.Stop(); err != nil {
			a.logger.WithError(err).Error("Error stopping session manager")
		}
	}
}

// GetContext returns the application context
func (a *App) GetContext() context.Context {
	return a.ctx
}
