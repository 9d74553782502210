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
	"os/user"
	"sync"
	"time"

	"kasboek/internal/backup"
	"kasboek/internal/config"
	"kasboek/internal/journal"
	"kasboek/internal/ledger"
	applog "kasboek/internal/log"
	"kasboek/internal/recommend"
	appweb "kasboek/web"
)

// recentLimit is how many transactions the dashboard shows.
const recentLimit = 10

// EventRecorder is the journal surface the server needs; a nil recorder
// disables auditing without changing the handlers.
type EventRecorder interface {
	Record(ctx context.Context, e journal.Event) error
	Recent(ctx context.Context, limit int) ([]journal.Event, error)
}

type Server struct {
	http.Server
	templates *template.Template

	cfg         *config.Config
	store       ledger.Store
	headers     ledger.HeaderValidator
	recommender *recommend.Recommender
	backups     *backup.Service
	events      EventRecorder
	logger      *applog.Logger

	// requestShutdown triggers the same graceful stop as SIGINT; wired
	// by main, used by the quit endpoint.
	requestShutdown func()

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// Options carries the optional collaborators for NewServer.
type Options struct {
	Headers         ledger.HeaderValidator
	Recommender     *recommend.Recommender
	Backups         *backup.Service
	Events          EventRecorder
	Logger          *applog.Logger
	RequestShutdown func()
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server.
func NewServer(addr string, cfg *config.Config, store ledger.Store, opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		cfg:             cfg,
		store:           store,
		headers:         opts.Headers,
		recommender:     opts.Recommender,
		backups:         opts.Backups,
		events:          opts.Events,
		logger:          opts.Logger,
		requestShutdown: opts.RequestShutdown,
		rateLimiter:     newRateLimiter(),
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.withMiddleware(s.handleIndex))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/transactions", s.withMiddleware(s.handleCreateTransaction))
	mux.HandleFunc("/api/balance", s.withMiddleware(s.handleBalance))
	mux.HandleFunc("/api/transactions", s.withMiddleware(s.handleRecentTransactions))
	mux.HandleFunc("/api/transactions/all", s.withMiddleware(s.handleAllTransactions))
	mux.HandleFunc("/api/recommend-category", s.withMiddleware(s.handleRecommendCategory))
	mux.HandleFunc("/api/events", s.withMiddleware(s.handleEvents))
	mux.HandleFunc("/backup", s.withMiddleware(s.handleBackup))
	mux.HandleFunc("/quit", s.withMiddleware(s.handleQuit))

	mux.HandleFunc("/settings", s.withMiddleware(s.handleSettingsPage))
	mux.HandleFunc("/settings/workbook-file", s.withMiddleware(s.handleSetWorkbookFile))
	mux.HandleFunc("/settings/workbook-path", s.withMiddleware(s.handleSetWorkbookPath))
	mux.HandleFunc("/settings/workbook-upload", s.withMiddleware(s.handleWorkbookUpload))
	mux.HandleFunc("/settings/backup-directory", s.withMiddleware(s.handleSetBackupDirectory))
	mux.HandleFunc("/settings/log-directory", s.withMiddleware(s.handleSetLogDirectory))
	mux.HandleFunc("/settings/log-level", s.withMiddleware(s.handleSetLogLevel))
	mux.HandleFunc("/settings/sheet-name", s.withMiddleware(s.handleSetSheetName))

	return s
}

// Shutdown stops the rate limiter cleanup and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// withMiddleware adds security headers, rate limiting on POSTs, request
// IDs, and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := clientIP(r)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.DebugContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// currentUser returns the OS username shown in the page header and
// recorded in the journal.
func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return "onbekend"
	}
	return u.Username
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
