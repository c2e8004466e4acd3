// Package http serves the work log dashboard: a server-rendered day view with
// the eleven daily slots, form posts for logging, and JSON endpoints for
// scripting.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"worklog/internal/cache"
	"worklog/internal/core"
	"worklog/internal/journal"
	applog "worklog/internal/log"
	appweb "worklog/web"
)

type Server struct {
	http.Server
	templates *template.Template

	days      journal.DayReader
	writer    journal.SlotWriter
	summaries journal.SummaryReader
	publisher journal.UpdatePublisher // optional

	location *time.Location
	now      func() time.Time

	rateLimiter *rateLimiter
	metrics     *securityMetrics

	log     *applog.Logger
	httpLog *applog.StructuredLogger

	// Month summaries are cheap but hit on every dashboard load.
	summaryCache *cache.LRUCache[core.MonthlySummary]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// Options carries the optional collaborators for NewServer.
type Options struct {
	// Publisher fans mutations out to the archive worker. May be nil.
	Publisher journal.UpdatePublisher

	// Now overrides the clock, used by tests. Defaults to time.Now.
	Now func() time.Time
}

// NewServer configures routes and templates, returning a ready-to-run server.
// All times shown and all "today" decisions use loc, the configured fixed
// offset.
func NewServer(addr string, days journal.DayReader, writer journal.SlotWriter, summaries journal.SummaryReader, loc *time.Location, opts Options) *Server {
	mux := http.NewServeMux()

	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	if loc == nil {
		loc = core.DefaultLocation()
	}

	baseLog := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentHTTP,
	})

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		log:          baseLog,
		httpLog:      applog.NewStructuredLogger(baseLog),
		days:         days,
		writer:       writer,
		summaries:    summaries,
		publisher:    opts.Publisher,
		location:     loc,
		now:          nowFn,
		rateLimiter:  newRateLimiter(),
		metrics:      &securityMetrics{},
		summaryCache: cache.NewLRUCache[core.MonthlySummary](100, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}
	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/slots", s.withSecurityHeaders(s.handleLogSlot))
	mux.HandleFunc("/holiday", s.withSecurityHeaders(s.handleHoliday))
	// UI partials
	mux.HandleFunc("/ui/month-summary", s.withSecurityHeaders(s.handleMonthSummaryPartial))
	// JSON API
	mux.HandleFunc("/api/day", s.withSecurityHeaders(s.handleAPIDay))
	mux.HandleFunc("/api/summary", s.withSecurityHeaders(s.handleAPISummary))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r, s.metrics)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = context.WithValue(ctx, applog.LoggerContextKey, s.log.With(applog.FieldRequestID, requestID))
		r = r.WithContext(ctx)

		s.httpLog.LogHTTPStart(ctx, r, clientIP)

		if detectSuspiciousRequest(r, s.metrics) {
			slog.WarnContext(ctx, "Suspicious request pattern detected",
				"client_ip", clientIP,
				"method", r.Method,
				"url", r.URL.Path,
				"user_agent", r.Header.Get("User-Agent"))
		}

		// Rate limit mutations only, reads are cheap.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.httpLog.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) summaryCacheKey(year, month int) string {
	return fmt.Sprintf("summary:%04d-%02d", year, month)
}

func (s *Server) invalidateSummary(dateKey string) {
	if len(dateKey) >= 7 {
		s.summaryCache.DeletePrefix("summary:" + dateKey[:7])
	}
}

func (s *Server) getSummary(ctx context.Context, year, month int) (core.MonthlySummary, error) {
	key := s.summaryCacheKey(year, month)
	if data, found := s.summaryCache.Get(key); found {
		slog.DebugContext(ctx, "Summary cache hit", "year", year, "month", month)
		return data, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	data, err := s.summaries.MonthSummary(cctx, year, month)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("month summary (year=%d, month=%d): %w", year, month, err)
	}

	s.summaryCache.Set(key, data)
	return data, nil
}
