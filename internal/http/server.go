// Package http exposes the fleet analytics engine over a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"fleetrev/internal/analytics"
	"fleetrev/internal/cache"
	applog "fleetrev/internal/log"
	"fleetrev/internal/storage"
)

// Repository is the persistence surface the handlers depend on.
type Repository interface {
	ListRecords(ctx context.Context, filter storage.RecordFilter) ([]analytics.Record, error)
	InsertRecords(ctx context.Context, records []analytics.Record) (int, error)
	GetFilterOptions(ctx context.Context) (storage.FilterOptions, error)
	GetSettings(ctx context.Context) (map[string]string, error)
	UpsertSetting(ctx context.Context, key, value, description string) error
	ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]storage.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
}

// ImportPublisher announces finished imports to the alert worker.
type ImportPublisher interface {
	PublishImportCompleted(ctx context.Context, filesProcessed, recordsImported int) error
}

// Options configures NewServer.
type Options struct {
	Addr       string
	Repository Repository

	// Publisher may be nil; uploads then skip the import announcement.
	Publisher ImportPublisher

	Detector analytics.DetectorOptions

	CacheSize            int
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration
}

type Server struct {
	http.Server
	repo        Repository
	publisher   ImportPublisher
	detector    analytics.DetectorOptions
	rateLimiter *rateLimiter

	// Analytics responses are cached per filter key and purged on upload.
	statsCache   *cache.LRUCache[analytics.DashboardStats]
	chartsCache  *cache.LRUCache[analytics.ChartData]
	cacheManager *cache.Manager

	structured   *applog.StructuredLogger
	shutdownOnce sync.Once
}

// NewServer configures routes and caches, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    opts.Addr,
			Handler: mux,
		},
		repo:         opts.Repository,
		publisher:    opts.Publisher,
		detector:     opts.Detector,
		rateLimiter:  newRateLimiter(),
		statsCache:   cache.NewLRUCache[analytics.DashboardStats](opts.CacheSize, opts.CacheTTL),
		chartsCache:  cache.NewLRUCache[analytics.ChartData](opts.CacheSize, opts.CacheTTL),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.statsCache)
	s.cacheManager.Register(s.chartsCache)
	s.cacheManager.StartCleanup(opts.CacheCleanupInterval)

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentHTTP,
	})
	s.structured = applog.NewStructuredLogger(logger)
	s.Server.Handler = applog.Middleware(logger)(mux)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/analytics/summary", s.withSecurityHeaders(s.handleSummary))
	mux.HandleFunc("GET /api/analytics/dashboard-stats", s.withSecurityHeaders(s.handleDashboardStats))
	mux.HandleFunc("GET /api/analytics/charts", s.withSecurityHeaders(s.handleCharts))
	mux.HandleFunc("GET /api/analytics/filters", s.withSecurityHeaders(s.handleFilters))
	mux.HandleFunc("GET /api/analytics/export/excel", s.withSecurityHeaders(s.handleExportExcel))
	mux.HandleFunc("GET /api/analytics/export/pdf", s.withSecurityHeaders(s.handleExportPDF))

	mux.HandleFunc("POST /api/records/upload", s.withSecurityHeaders(s.handleUpload))

	mux.HandleFunc("GET /api/settings", s.withSecurityHeaders(s.handleGetSettings))
	mux.HandleFunc("PUT /api/settings", s.withSecurityHeaders(s.handlePutSettings))

	mux.HandleFunc("GET /api/notifications", s.withSecurityHeaders(s.handleListNotifications))
	mux.HandleFunc("POST /api/notifications/{id}/read", s.withSecurityHeaders(s.handleMarkNotificationRead))

	return s
}

// Shutdown stops the cleanup goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to a handler.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ip := clientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.structured.LogHTTPStart(ctx, r, ip)

		// Mutating endpoints are rate limited per client IP.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(ip) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", ip, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), ip)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
