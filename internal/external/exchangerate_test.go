package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calc-back/pkg/config"
)

func ratesConfig(baseURL string) *config.RatesConfig {
	return &config.RatesConfig{
		BaseURL:  baseURL,
		Currency: "ILS",
		Fallback: 3.5,
		Timeout:  time.Second,
	}
}

func TestExchangeRateClient_FetchRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/USD", r.URL.Path)
		w.Write([]byte(`{"result":"success","base_code":"USD","rates":{"ILS":3.72,"EUR":0.92}}`))
	}))
	defer server.Close()

	client := NewExchangeRateClient(ratesConfig(server.URL), testLogger())

	rate, err := client.FetchRate(context.Background(), "ILS")
	require.NoError(t, err)
	assert.Equal(t, 3.72, rate)
}

func TestExchangeRateClient_CurrencyMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"success","base_code":"USD","rates":{"EUR":0.92}}`))
	}))
	defer server.Close()

	client := NewExchangeRateClient(ratesConfig(server.URL), testLogger())

	_, err := client.FetchRate(context.Background(), "ILS")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ILS")
}

func TestExchangeRateClient_FeedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"error","error-type":"invalid-key"}`))
	}))
	defer server.Close()

	client := NewExchangeRateClient(ratesConfig(server.URL), testLogger())

	_, err := client.FetchRate(context.Background(), "ILS")
	require.Error(t, err)
}

func TestExchangeRateClient_NonPositiveRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"success","rates":{"ILS":0}}`))
	}))
	defer server.Close()

	client := NewExchangeRateClient(ratesConfig(server.URL), testLogger())

	_, err := client.FetchRate(context.Background(), "ILS")
	require.Error(t, err)
}

func TestExchangeRateClient_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewExchangeRateClient(ratesConfig(server.URL), testLogger())

	_, err := client.FetchRate(context.Background(), "ILS")
	require.Error(t, err)
}
