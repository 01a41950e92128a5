package cache

import "time"

// TTL constants per cached kind.
const (
	TTLFlow          = 2 * time.Minute
	TTLDarkPool      = 2 * time.Minute
	TTLQuote         = time.Minute
	TTLPrices        = time.Hour
	TTLInsider       = 6 * time.Hour
	TTLCongress      = 6 * time.Hour
	TTLInstitutional = 6 * time.Hour
	TTLDCF           = 24 * time.Hour
	TTLEconomic      = time.Hour
	TTLRaw           = 5 * time.Minute
)

// TTLFor returns the TTL for a cache kind, TTLRaw when unknown.
func TTLFor(kind string) time.Duration {
	switch kind {
	case "flow":
		return TTLFlow
	case "darkpool":
		return TTLDarkPool
	case "quote":
		return TTLQuote
	case "prices":
		return TTLPrices
	case "insider":
		return TTLInsider
	case "congress":
		return TTLCongress
	case "institutional":
		return TTLInstitutional
	case "dcf":
		return TTLDCF
	case "economic":
		return TTLEconomic
	default:
		return TTLRaw
	}
}
