package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/calc-back/pkg/config"
	"github.com/sirupsen/logrus"
)

// ExchangeRateClient fetches fiat conversion rates relative to USD
type ExchangeRateClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *logrus.Entry
}

// ratesResponse represents the exchange-rate feed payload
type ratesResponse struct {
	Result string             `json:"result"`
	Base   string             `json:"base_code"`
	Rates  map[string]float64 `json:"rates"`
}

// NewExchangeRateClient creates a new exchange-rate client
func NewExchangeRateClient(cfg *config.RatesConfig, logger *logrus.Logger) *ExchangeRateClient {
	return &ExchangeRateClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		logger:  logger.WithField("component", "exchange-rate"),
	}
}

// FetchRate fetches the USD multiplier for a single currency code
func (c *ExchangeRateClient) FetchRate(ctx context.Context, currency string) (float64, error) {
	endpoint := fmt.Sprintf("%s/latest/USD", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var payload ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	if payload.Result != "" && payload.Result != "success" {
		return 0, fmt.Errorf("feed reported result %q", payload.Result)
	}

	rate, exists := payload.Rates[currency]
	if !exists {
		return 0, fmt.Errorf("currency %s not present in feed", currency)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("feed returned non-positive rate %f for %s", rate, currency)
	}

	c.logger.WithFields(logrus.Fields{
		"currency": currency,
		"rate":     rate,
	}).Debug("Fetched exchange rate")

	return rate, nil
}
