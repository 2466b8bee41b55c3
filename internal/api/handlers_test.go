package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calc-back/internal/market"
	"github.com/calc-back/internal/session"
	"github.com/calc-back/internal/websocket"
	"github.com/calc-back/pkg/config"
	"github.com/calc-back/pkg/models"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{
		Session: config.SessionConfig{
			TTL:             30 * time.Minute,
			CleanupInterval: 5 * time.Minute,
			HistoryLimit:    100,
		},
		WebSocket: config.WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			MaxMessageSize:  4096,
			PingInterval:    30 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
		},
	}

	store := market.NewStore(log)
	store.Replace([]models.Asset{
		{Symbol: "BTC", Name: "Bitcoin", PriceUSD: 50000},
		{Symbol: "ETH", Name: "Ethereum", PriceUSD: 2000},
	})

	rates := market.NewRateStore("ILS", 3.5, log)
	sessions := session.NewManager(&cfg.Session, log)
	hub := websocket.NewHub(&cfg.WebSocket, log)

	return NewServer(cfg, log, store, rates, sessions, hub)
}

func doJSON(t *testing.T, s *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("X-Session-Token", token)
	}

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health models.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, models.StateReady, health.State)
	assert.Equal(t, 2, health.Assets)
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/api/v1/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ready", status["state"])
	assert.NotContains(t, status, "error")
}

func TestAssetsEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/api/v1/assets", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.AssetsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.StateReady, resp.State)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "BTC", resp.Assets[0].Symbol)
	assert.Equal(t, "ETH", resp.Assets[1].Symbol)
	assert.Equal(t, 3.5, resp.Rate.Multiplier)
}

func TestPortfolioIssuesSessionToken(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/api/v1/portfolio", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	token := rec.Header().Get("X-Session-Token")
	assert.NotEmpty(t, token)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "calc_session", cookies[0].Name)
	assert.Equal(t, token, cookies[0].Value)

	// Presenting the token reuses the session; no new token is issued
	rec = doJSON(t, s, "GET", "/api/v1/portfolio", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Session-Token"))
}

func TestPortfolioEditFlow(t *testing.T) {
	s := newTestServer(t)

	// Fresh session starts with one blank line item
	rec := doJSON(t, s, "GET", "/api/v1/portfolio", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	token := rec.Header().Get("X-Session-Token")
	require.NotEmpty(t, token)

	var resp models.PortfolioResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "0.00", resp.Totals.USD)

	// Set the first line to 0.5 BTC
	rec = doJSON(t, s, "PUT", "/api/v1/portfolio/items/0", token, lineItemUpdate{
		Amount: strPtr("0.5"),
		Symbol: strPtr("btc"),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "BTC", resp.Items[0].Symbol)
	assert.Equal(t, "25000.00", resp.Totals.USD)
	assert.Equal(t, "87500.00", resp.Totals.Local)
	require.NotNil(t, resp.Totals.BTC)
	assert.Equal(t, "0.50000000", *resp.Totals.BTC)

	// Add a second line and value 10 ETH on it
	rec = doJSON(t, s, "POST", "/api/v1/portfolio/items", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)

	rec = doJSON(t, s, "PUT", "/api/v1/portfolio/items/1", token, lineItemUpdate{
		Amount: strPtr("10"),
		Symbol: strPtr("ETH"),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "45000.00", resp.Totals.USD)

	// Remove the BTC line; only ETH remains
	rec = doJSON(t, s, "DELETE", "/api/v1/portfolio/items/0", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "ETH", resp.Items[0].Symbol)
	assert.Equal(t, "20000.00", resp.Totals.USD)
}

func TestUpdateItemOutOfRange(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "PUT", "/api/v1/portfolio/items/7", "", lineItemUpdate{Amount: strPtr("1")})
	require.Equal(t, http.StatusNotFound, rec.Code)

	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.NotEmpty(t, errResp.Error)
}

func TestUpdateItemBadIndex(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "PUT", "/api/v1/portfolio/items/abc", "", lineItemUpdate{Amount: strPtr("1")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFillAll(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/api/v1/portfolio/fill", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.PortfolioResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "BTC", resp.Items[0].Symbol)
	assert.Equal(t, "ETH", resp.Items[1].Symbol)
	assert.Equal(t, "0.00", resp.Totals.USD)
}

func TestConvertEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/api/v1/convert?symbol=ETH&usd=2000", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Conversion *models.Conversion `json:"conversion"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Conversion)
	assert.Equal(t, "1.00000000", resp.Conversion.TargetAmount)
	assert.Equal(t, "0.04000000", resp.Conversion.BTCEquivalent)
}

func TestConvertNotComputable(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/api/v1/convert?symbol=DOGE&usd=100", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Conversion *models.Conversion `json:"conversion"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Conversion)
}

func TestHistorySaveAndList(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/api/v1/portfolio", "", nil)
	token := rec.Header().Get("X-Session-Token")
	require.NotEmpty(t, token)

	rec = doJSON(t, s, "PUT", "/api/v1/portfolio/items/0", token, lineItemUpdate{
		Amount: strPtr("0.5"),
		Symbol: strPtr("BTC"),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Save the current calculation
	rec = doJSON(t, s, "POST", "/api/v1/history", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var entry models.HistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, "25000.00", entry.Totals.USD)

	// Edit after saving; the saved entry keeps the old figures
	rec = doJSON(t, s, "PUT", "/api/v1/portfolio/items/0", token, lineItemUpdate{Amount: strPtr("1")})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, "POST", "/api/v1/history", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, "GET", "/api/v1/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var history models.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Equal(t, 2, history.Count)
	assert.Equal(t, "50000.00", history.Entries[0].Totals.USD)
	assert.Equal(t, "25000.00", history.Entries[1].Totals.USD)
}

func TestHistoryIsPerSession(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/api/v1/history", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	tokenA := rec.Header().Get("X-Session-Token")
	require.NotEmpty(t, tokenA)

	rec = doJSON(t, s, "GET", "/api/v1/history", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var history models.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Equal(t, 0, history.Count)
}

func strPtr(s string) *string {
	return &s
}
