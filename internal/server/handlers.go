package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/souhailsouid/adele/internal/feeds"
	"github.com/souhailsouid/adele/internal/model"
)

// maxScanTickers bounds a single POST /api/scan request
const maxScanTickers = 50

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":      "healthy",
		"service":     "adele",
		"persistence": s.cfg.Store != nil,
		"billing":     s.cfg.Billing != nil,
		"cache":       s.cfg.Cache != nil,
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleRecommendation serves the weighted position recommendation for a ticker
func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.collect(w, r)
	if !ok {
		return
	}

	result := s.cfg.Recommender.Recommend(snap)
	if s.cfg.Store != nil {
		if saved, err := s.cfg.Store.SaveRecommendation(result); err != nil {
			s.log.Warn().Err(err).Str("ticker", result.Ticker).Msg("Failed to save recommendation")
		} else {
			w.Header().Set("X-Snapshot-ID", saved.ID)
		}
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleInstitutionalFlow serves the institutional flow detection for a ticker
func (s *Server) handleInstitutionalFlow(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.collect(w, r)
	if !ok {
		return
	}

	result := s.cfg.Detector.Detect(snap)
	if s.cfg.Store != nil {
		if saved, err := s.cfg.Store.SaveFlowDetection(result); err != nil {
			s.log.Warn().Err(err).Str("ticker", result.Ticker).Msg("Failed to save flow detection")
		} else {
			w.Header().Set("X-Snapshot-ID", saved.ID)
		}
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleHistory lists saved scores for a ticker, newest first
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}

	ticker, err := model.NormalizeTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind != "" && kind != model.KindRecommendation && kind != model.KindInstitutional {
		s.writeError(w, http.StatusBadRequest, "kind must be recommendation or institutional_flow")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	history, err := s.cfg.Store.History(ticker, kind, limit)
	if err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to load history")
		s.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":  ticker,
		"history": history,
	})
}

type scanRequest struct {
	Tickers []string `json:"tickers"`
}

// handleScan runs the institutional flow detector over several tickers
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Tickers) == 0 {
		s.writeError(w, http.StatusBadRequest, "tickers is required")
		return
	}
	if len(req.Tickers) > maxScanTickers {
		s.writeError(w, http.StatusBadRequest, "too many tickers, max "+strconv.Itoa(maxScanTickers))
		return
	}

	seen := make(map[string]bool, len(req.Tickers))
	tickers := make([]string, 0, len(req.Tickers))
	for _, t := range req.Tickers {
		n, err := model.NormalizeTicker(t)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid ticker: "+t)
			return
		}
		if !seen[n] {
			seen[n] = true
			tickers = append(tickers, n)
		}
	}

	results, err := s.cfg.Detector.ScanMany(r.Context(), tickers)
	failures := []string{}
	if err != nil {
		if len(results) == 0 {
			s.writeUpstreamError(w, err)
			return
		}
		failures = strings.Split(err.Error(), "\n")
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"errors":  failures,
	})
}

// collect normalizes the ticker URL param and gathers its snapshot, writing the error response on failure
func (s *Server) collect(w http.ResponseWriter, r *http.Request) (*model.Snapshot, bool) {
	ticker, err := model.NormalizeTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	snap, err := s.cfg.Market.Collect(r.Context(), ticker)
	if err != nil {
		s.writeUpstreamError(w, err)
		return nil, false
	}
	return snap, true
}

// writeUpstreamError maps data source failures onto HTTP statuses
func (s *Server) writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidTicker):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, feeds.ErrUnknownFeed):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusGatewayTimeout, "upstream timed out")
	default:
		s.log.Warn().Err(err).Msg("Upstream failure")
		s.writeError(w, http.StatusBadGateway, "upstream unavailable: "+err.Error())
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
