package models

import (
	"time"
)

// DataState is the overall data-readiness state of the market store.
//
// Transitions: Loading -> Ready on the first successful refresh,
// Loading -> Failed on the first refresh error, Failed -> Ready on a later
// success. Ready is never demoted: a failed refresh after data has loaded
// keeps the last-good snapshot.
type DataState string

const (
	StateLoading DataState = "loading"
	StateReady   DataState = "ready"
	StateFailed  DataState = "failed"
)

// RefreshEvent describes one completed refresh cycle.
type RefreshEvent struct {
	State      DataState `json:"state"`
	AssetCount int       `json:"asset_count"`
	Currency   string    `json:"currency"`
	Rate       float64   `json:"rate"`
	Duration   int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}
