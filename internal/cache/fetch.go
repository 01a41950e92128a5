package cache

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Fetch returns the cached value for kind/key when fresh, otherwise calls load and caches
// its result. When load fails, stale data is served if any exists.
func Fetch[T any](s *Store, kind, key string, load func() (T, error)) (T, error) {
	var zero T
	if s == nil {
		return load()
	}

	if raw, err := s.GetIfFresh(kind, key); err != nil {
		log.Warn().Err(err).Str("kind", kind).Str("key", key).Msg("Cache read failed")
	} else if raw != nil {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		// unreadable entries would otherwise also be served as stale data
		if err := s.Delete(kind, key); err != nil {
			log.Warn().Err(err).Str("kind", kind).Str("key", key).Msg("Cache delete failed")
		}
	}

	v, loadErr := load()
	if loadErr == nil {
		if err := s.Store(kind, key, v, TTLFor(kind)); err != nil {
			log.Warn().Err(err).Str("kind", kind).Str("key", key).Msg("Cache write failed")
		}
		return v, nil
	}

	raw, err := s.Get(kind, key)
	if err != nil || raw == nil {
		return zero, loadErr
	}
	var stale T
	if err := json.Unmarshal(raw, &stale); err != nil {
		return zero, fmt.Errorf("%w (stale entry unreadable: %v)", loadErr, err)
	}
	log.Warn().Err(loadErr).Str("kind", kind).Str("key", key).Msg("Serving stale cache entry")
	return stale, nil
}
