package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/souhailsouid/adele/internal/model"
)

// requireUser returns the calling user, writing 401 when the header is missing
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	if s.cfg.Store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return "", false
	}
	userID := r.Header.Get(UserHeader)
	if userID == "" {
		s.writeError(w, http.StatusUnauthorized, UserHeader+" header required")
		return "", false
	}
	return userID, true
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	entries, err := s.cfg.Store.Watchlist(userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load watchlist")
		s.writeError(w, http.StatusInternalServerError, "failed to load watchlist")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"watchlist": entries,
	})
}

type watchlistRequest struct {
	Ticker string `json:"ticker"`
}

func (s *Server) handleAddToWatchlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req watchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ticker, err := model.NormalizeTicker(req.Ticker)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.cfg.Store.AddToWatchlist(userID, ticker); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to add to watchlist")
		s.writeError(w, http.StatusInternalServerError, "failed to update watchlist")
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]string{
		"ticker": ticker,
	})
}

func (s *Server) handleRemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	ticker, err := model.NormalizeTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	removed, err := s.cfg.Store.RemoveFromWatchlist(userID, ticker)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to remove from watchlist")
		s.writeError(w, http.StatusInternalServerError, "failed to update watchlist")
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, ticker+" is not in the watchlist")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
