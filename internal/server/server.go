package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"

	"github.com/souhailsouid/adele/internal/cache"
	"github.com/souhailsouid/adele/internal/model"
	"github.com/souhailsouid/adele/internal/payment"
)

// UserHeader identifies the dashboard user on watchlist, billing and gated routes
const UserHeader = "X-User-ID"

// MarketData gathers feeds through the response cache
type MarketData interface {
	Collect(ctx context.Context, ticker string) (*model.Snapshot, error)
	Feed(ctx context.Context, ticker, feed string) (interface{}, error)
	EconomicCalendar(ctx context.Context, from, to string) ([]model.EconomicEvent, error)
}

// Recommender produces the position recommendation
type Recommender interface {
	Recommend(snap *model.Snapshot) *model.Recommendation
}

// FlowDetector produces institutional flow detections
type FlowDetector interface {
	Detect(snap *model.Snapshot) *model.FlowDetection
	ScanMany(ctx context.Context, tickers []string) ([]*model.FlowDetection, error)
}

// RawSource passes arbitrary GET requests through to a data provider
type RawSource interface {
	Raw(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
}

// Store persists scores, watchlists and subscriptions
type Store interface {
	SaveRecommendation(r *model.Recommendation) (*model.ScoreSnapshot, error)
	SaveFlowDetection(d *model.FlowDetection) (*model.ScoreSnapshot, error)
	History(ticker, kind string, limit int) ([]model.ScoreSnapshot, error)

	AddToWatchlist(userID, ticker string) error
	RemoveFromWatchlist(userID, ticker string) (bool, error)
	Watchlist(userID string) ([]model.WatchlistEntry, error)

	CreateSubscription(userID, email string) (*model.UserSubscription, error)
	GetSubscription(userID string) (*model.UserSubscription, error)
	UpdateSubscriptionStatus(userID, status, paymentID string) error
	UpdateStripeSubscriptionID(userID, stripeSubscriptionID string) error
	UserByStripeSubscription(stripeSubscriptionID string) (string, error)
	CloseSubscription(userID string) error
}

// Billing creates checkouts and reads Stripe webhooks
type Billing interface {
	CreateCheckoutSession(userID, email string) (string, string, error)
	VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error)
	ProcessEvent(event *stripe.Event) (*payment.EventResult, error)
	CancelSubscription(subscriptionID string) error
}

// Config holds server configuration. Store, Billing, Cache and RawSources are optional;
// leave them nil (not a typed nil) to disable the routes that need them.
type Config struct {
	Port                string
	Log                 zerolog.Logger
	DevMode             bool
	AllowedOrigins      []string
	Market              MarketData
	Recommender         Recommender
	Detector            FlowDetector
	Store               Store
	Billing             Billing
	Cache               *cache.Store
	RawSources          map[string]RawSource
	RequireSubscription bool
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
	now    func() time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
		now:    time.Now,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", UserHeader},
		ExposedHeaders:   []string{"X-Snapshot-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.cfg.RequireSubscription {
				r.Use(s.subscriptionMiddleware)
			}
			r.Route("/signals/{ticker}", func(r chi.Router) {
				r.Get("/recommendation", s.handleRecommendation)
				r.Get("/institutional-flow", s.handleInstitutionalFlow)
				r.Get("/history", s.handleHistory)
			})
			r.Post("/scan", s.handleScan)
		})

		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", s.handleGetWatchlist)
			r.Post("/", s.handleAddToWatchlist)
			r.Delete("/{ticker}", s.handleRemoveFromWatchlist)
		})

		r.Route("/market", func(r chi.Router) {
			r.Get("/economic-calendar", s.handleEconomicCalendar)
			r.Get("/{ticker}/{feed}", s.handleMarketFeed)
		})

		r.Get("/proxy/{provider}/*", s.handleProxy)

		r.Route("/billing", func(r chi.Router) {
			r.Post("/checkout", s.handleCheckout)
			r.Post("/webhook", s.handleWebhook)
			r.Get("/subscription", s.handleSubscription)
			r.Delete("/subscription", s.handleCancelSubscription)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// subscriptionMiddleware rejects users without an active subscription
func (s *Server) subscriptionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Store == nil {
			s.writeError(w, http.StatusServiceUnavailable, "subscriptions are not available")
			return
		}
		userID := r.Header.Get(UserHeader)
		if userID == "" {
			s.writeError(w, http.StatusUnauthorized, UserHeader+" header required")
			return
		}

		sub, err := s.cfg.Store.GetSubscription(userID)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load subscription")
			s.writeError(w, http.StatusInternalServerError, "failed to load subscription")
			return
		}
		if !sub.Active(s.now()) {
			s.writeError(w, http.StatusPaymentRequired, "an active subscription is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
