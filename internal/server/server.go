// Package server exposes the analysis engine over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"MarketLens/internal/analysis"
	"MarketLens/internal/logging"
	"MarketLens/internal/metrics"
)

// Options holds server configuration.
type Options struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	CORSOrigin     string
}

func (o Options) withDefaults() Options {
	if o.Addr == "" {
		o.Addr = ":8080"
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = 15 * time.Second
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = 60 * time.Second
	}
	if o.IdleTimeout == 0 {
		o.IdleTimeout = 60 * time.Second
	}
	if o.RequestTimeout == 0 {
		o.RequestTimeout = 45 * time.Second
	}
	if o.CORSOrigin == "" {
		o.CORSOrigin = "*"
	}
	return o
}

// Deps are the services behind the routes. Logs and Metrics may be nil.
type Deps struct {
	Analyzer *analysis.Analyzer
	Market   *analysis.Market
	Logs     *logging.RingBuffer
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Server is the HTTP front of MarketLens.
type Server struct {
	router *mux.Router
	server *http.Server
	deps   Deps
	opts   Options
	logger zerolog.Logger
}

// New creates a Server with all routes registered.
func New(opts Options, deps Deps) *Server {
	opts = opts.withDefaults()
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		opts:   opts,
		logger: deps.Logger.With().Str("component", "server").Logger(),
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.corsMiddleware)

	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.timeoutMiddleware)
	api.Use(s.jsonContentTypeMiddleware)

	api.HandleFunc("/deep-analysis/{ticker}", s.deepAnalysis).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/signal/{ticker}", s.signal).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/market/valuation", s.valuation).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/market/per-history", s.peHistory).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/dca", s.dca).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/risk-return", s.riskReturn).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/history/{ticker}", s.history).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/logs", s.logs).Methods(http.MethodGet, http.MethodOptions)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "route_not_found", "no route for "+r.URL.Path)
	})
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.opts.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down http server")
	return s.server.Shutdown(ctx)
}

type ctxKey int

const requestIDKey ctxKey = iota

// requestID returns the id assigned by requestIDMiddleware.
func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return "unknown"
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()[:8]
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// requestLoggingMiddleware logs every request and records its latency by route template.
func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.deps.Metrics.ObserveRequest(route, strconv.Itoa(wrapper.statusCode), elapsed)
		s.logger.Info().
			Str("request_id", requestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", elapsed).
			Msg("request")
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.opts.CORSOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// responseWrapper captures HTTP status codes for logging.
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
