package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/souhailsouid/adele/internal/cache"
)

// handleMarketFeed serves one cached data feed for a ticker
func (s *Server) handleMarketFeed(w http.ResponseWriter, r *http.Request) {
	data, err := s.cfg.Market.Feed(r.Context(), chi.URLParam(r, "ticker"), chi.URLParam(r, "feed"))
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
	})
}

// handleEconomicCalendar serves the economic calendar, defaulting to the coming week
func (s *Server) handleEconomicCalendar(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	today := s.now().UTC()
	if from == "" {
		from = today.Format("2006-01-02")
	}
	if to == "" {
		to = today.AddDate(0, 0, 7).Format("2006-01-02")
	}

	fromDate, err1 := time.Parse("2006-01-02", from)
	toDate, err2 := time.Parse("2006-01-02", to)
	if err1 != nil || err2 != nil {
		s.writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD")
		return
	}
	if toDate.Before(fromDate) {
		s.writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	events, err := s.cfg.Market.EconomicCalendar(r.Context(), from, to)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"from": from,
		"to":   to,
		"data": events,
	})
}

// handleProxy passes a GET through to a configured provider, cached for a few minutes
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	source, ok := s.cfg.RawSources[provider]
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown provider: "+provider)
		return
	}

	upstreamPath, ok := proxyPath(chi.URLParam(r, "*"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	query := r.URL.Query()

	key := provider + upstreamPath + "?" + query.Encode()
	data, err := cache.Fetch(s.cfg.Cache, "raw", key, func() (json.RawMessage, error) {
		return source.Raw(r.Context(), upstreamPath, query)
	})
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to write proxy response")
	}
}

// proxyPath unescapes the wildcard segment and accepts it only when it is already clean.
// chi matches on RawPath, so escaped dot segments arrive here still encoded.
func proxyPath(param string) (string, bool) {
	unescaped, err := url.PathUnescape(param)
	if err != nil {
		return "", false
	}
	p := "/" + strings.TrimPrefix(unescaped, "/")
	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return "", false
		}
	}
	if path.Clean(p) != strings.TrimSuffix(p, "/") && p != "/" {
		return "", false
	}
	return p, true
}
