package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/calc-back/internal/session"
	"github.com/calc-back/internal/valuation"
	"github.com/calc-back/pkg/models"
)

const sessionCookie = "calc_session"

// resolveSession finds or creates the caller's session. New tokens are
// handed back via both the X-Session-Token header and a cookie so browser
// and non-browser clients can hold on to them.
func (s *Server) resolveSession(w http.ResponseWriter, r *http.Request) *session.Session {
	token := r.Header.Get("X-Session-Token")
	if token == "" {
		if cookie, err := r.Cookie(sessionCookie); err == nil {
			token = cookie.Value
		}
	}

	sess, created := s.sessions.GetOrCreate(token)
	if created {
		w.Header().Set("X-Session-Token", sess.Token)
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sess.Token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	return sess
}

// computeTotals recomputes the session's totals from current inputs.
// There is no cached valuation state: every call re-evaluates.
func (s *Server) computeTotals(sess *session.Session) models.Totals {
	return valuation.ComputeTotals(sess.Portfolio.Items(), s.store.Snapshot(), s.rates.Rate())
}

// handleHealth returns system health information
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:      "ok",
		State:       s.store.State(),
		Assets:      s.store.Count(),
		Sessions:    s.sessions.Count(),
		Connections: s.wsHub.ClientCount(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Version:     "1.0.0",
	})
}

// handleStatus returns the data-readiness state the UI gates on
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"state": s.store.State(),
	}
	if err := s.store.LastError(); err != nil {
		status["error"] = err.Error()
	}
	if t := s.store.LastRefresh(); !t.IsZero() {
		status["last_refresh"] = t.UTC().Format(time.RFC3339)
	}

	s.respondJSON(w, http.StatusOK, status)
}

// handleGetAssets returns the current market snapshot in display order
func (s *Server) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	resp := models.AssetsResponse{
		State:  s.store.State(),
		Assets: s.store.Assets(),
		Rate:   s.rates.Rate(),
	}
	resp.Count = len(resp.Assets)
	if err := s.store.LastError(); err != nil {
		resp.Error = err.Error()
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleGetRate returns the current exchange rate
func (s *Server) handleGetRate(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.rates.Rate())
}

// handleGetPortfolio returns the session's line items and freshly computed totals
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	sess := s.resolveSession(w, r)

	s.respondJSON(w, http.StatusOK, models.PortfolioResponse{
		Items:  sess.Portfolio.Items(),
		Totals: s.computeTotals(sess),
	})
}

// handleAddItem appends a blank line item
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	sess := s.resolveSession(w, r)
	items := sess.Portfolio.Add()

	s.respondJSON(w, http.StatusOK, models.PortfolioResponse{
		Items:  items,
		Totals: s.computeTotals(sess),
	})
}

// lineItemUpdate carries a partial line-item edit
type lineItemUpdate struct {
	Amount *string `json:"amount,omitempty"`
	Symbol *string `json:"symbol,omitempty"`
}

// handleUpdateItem edits the amount and/or symbol of one line item
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var update lineItemUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sess := s.resolveSession(w, r)

	var items []models.LineItem
	if update.Amount != nil {
		if items, err = sess.Portfolio.UpdateAmount(index, *update.Amount); err != nil {
			s.sendError(w, err.Error(), http.StatusNotFound)
			return
		}
	}
	if update.Symbol != nil {
		if items, err = sess.Portfolio.UpdateSymbol(index, *update.Symbol); err != nil {
			s.sendError(w, err.Error(), http.StatusNotFound)
			return
		}
	}
	if items == nil {
		items = sess.Portfolio.Items()
	}

	s.respondJSON(w, http.StatusOK, models.PortfolioResponse{
		Items:  items,
		Totals: s.computeTotals(sess),
	})
}

// handleRemoveItem deletes one line item by position
func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess := s.resolveSession(w, r)

	items, err := sess.Portfolio.Remove(index)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusNotFound)
		return
	}

	s.respondJSON(w, http.StatusOK, models.PortfolioResponse{
		Items:  items,
		Totals: s.computeTotals(sess),
	})
}

// handleFillAll replaces the line items with one per known symbol
func (s *Server) handleFillAll(w http.ResponseWriter, r *http.Request) {
	sess := s.resolveSession(w, r)
	items := sess.Portfolio.FillAll(s.store.Symbols())

	s.respondJSON(w, http.StatusOK, models.PortfolioResponse{
		Items:  items,
		Totals: s.computeTotals(sess),
	})
}

// handleGetTotals recomputes and returns the session's aggregate totals
func (s *Server) handleGetTotals(w http.ResponseWriter, r *http.Request) {
	sess := s.resolveSession(w, r)
	s.respondJSON(w, http.StatusOK, s.computeTotals(sess))
}

// handleConvert answers a buy-side query. An unparseable amount or a
// missing price yields an empty result, not an error.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	usd := r.URL.Query().Get("usd")

	conversion, ok := valuation.Convert(symbol, usd, s.store.Snapshot())
	if !ok {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"conversion": nil,
		})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"conversion": conversion,
	})
}

// handleGetHistory returns the session's saved snapshots, newest first
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	sess := s.resolveSession(w, r)
	entries := sess.History.Entries()

	s.respondJSON(w, http.StatusOK, models.HistoryResponse{
		Entries: entries,
		Count:   len(entries),
	})
}

// handleSaveHistory captures the current calculation into the ledger
func (s *Server) handleSaveHistory(w http.ResponseWriter, r *http.Request) {
	sess := s.resolveSession(w, r)

	entry := sess.History.Save(sess.Portfolio.Items(), s.computeTotals(sess), s.rates.Rate())

	s.respondJSON(w, http.StatusCreated, entry)
}

// handleWebSocket upgrades the connection and hands it to the hub
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.ServeWS(w, r)
}
