package models

// WebSocketMessage represents generic WebSocket message structure
type WebSocketMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// MarketUpdate is pushed to WebSocket clients after every successful
// refresh cycle.
type MarketUpdate struct {
	State  DataState    `json:"state"`
	Assets []Asset      `json:"assets"`
	Rate   ExchangeRate `json:"rate"`
}

// ErrorResponse represents error message structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthStatus represents system health information
type HealthStatus struct {
	Status      string    `json:"status"`
	State       DataState `json:"state"`
	Assets      int       `json:"assets"`
	Sessions    int       `json:"sessions"`
	Connections int       `json:"connections"`
	Timestamp   string    `json:"timestamp"`
	Version     string    `json:"version"`
}

// AssetsResponse represents the asset listing API response
type AssetsResponse struct {
	State  DataState    `json:"state"`
	Assets []Asset      `json:"assets"`
	Rate   ExchangeRate `json:"rate"`
	Count  int          `json:"count"`
	Error  string       `json:"error,omitempty"`
}

// PortfolioResponse represents the line-item editor API response
type PortfolioResponse struct {
	Items  []LineItem `json:"items"`
	Totals Totals     `json:"totals"`
}

// HistoryResponse represents the history ledger API response
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
	Count   int            `json:"count"`
}
