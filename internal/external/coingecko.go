package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/calc-back/pkg/config"
	"github.com/calc-back/pkg/models"
	"github.com/sirupsen/logrus"
)

// CoinGeckoClient fetches market snapshots from the CoinGecko API
type CoinGeckoClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	coins      []string
	topN       int
	logger     *logrus.Entry

	// Rate limiting (30 calls/min for free tier)
	rateLimiter chan struct{}
}

// coinGeckoMarket represents one asset record from /coins/markets
type coinGeckoMarket struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	CurrentPrice float64 `json:"current_price"`
	Image        string  `json:"image"`
}

// NewCoinGeckoClient creates a new CoinGecko client
func NewCoinGeckoClient(cfg *config.MarketConfig, logger *logrus.Logger) *CoinGeckoClient {
	client := &CoinGeckoClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		coins:       cfg.Coins,
		topN:        cfg.TopN,
		logger:      logger.WithField("component", "coingecko"),
		rateLimiter: make(chan struct{}, 1),
	}

	// First call goes through immediately, later calls are paced
	client.rateLimiter <- struct{}{}
	go client.rateLimitWorker(cfg.RateLimitWait)

	return client
}

// rateLimitWorker replenishes the rate limiter token
func (c *CoinGeckoClient) rateLimitWorker(wait time.Duration) {
	ticker := time.NewTicker(wait)
	defer ticker.Stop()

	for range ticker.C {
		select {
		case c.rateLimiter <- struct{}{}:
		default:
		}
	}
}

// FetchMarkets fetches the full current snapshot for the configured universe:
// the explicit coin allow-list, or top N by market capitalization when the
// list is empty. Symbols are canonicalized to uppercase at this boundary.
func (c *CoinGeckoClient) FetchMarkets(ctx context.Context) ([]models.Asset, error) {
	select {
	case <-c.rateLimiter:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("order", "market_cap_desc")
	params.Set("sparkline", "false")
	if len(c.coins) > 0 {
		params.Set("ids", strings.Join(c.coins, ","))
		params.Set("per_page", "250")
	} else {
		params.Set("per_page", fmt.Sprintf("%d", c.topN))
	}
	params.Set("page", "1")

	endpoint := fmt.Sprintf("%s/coins/markets?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var markets []coinGeckoMarket
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	assets := make([]models.Asset, 0, len(markets))
	for _, m := range markets {
		if m.Symbol == "" {
			continue
		}
		assets = append(assets, models.Asset{
			Symbol:   strings.ToUpper(m.Symbol),
			Name:     m.Name,
			PriceUSD: m.CurrentPrice,
			LogoURL:  m.Image,
		})
	}

	c.logger.WithField("assets", len(assets)).Debug("Fetched market snapshot")

	return assets, nil
}
