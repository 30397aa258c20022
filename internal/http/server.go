package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/report"
	"fintrack/internal/services"
)

// TransactionService is the owner-scoped transaction API the handlers call.
type TransactionService interface {
	List(ctx context.Context, p auth.Principal) ([]core.Transaction, error)
	Create(ctx context.Context, p auth.Principal, in core.TransactionInput) (core.Transaction, error)
	Update(ctx context.Context, p auth.Principal, in core.TransactionUpdateInput) (core.Transaction, error)
	Delete(ctx context.Context, p auth.Principal, id string) error
	Purge(ctx context.Context, p auth.Principal) (services.PurgeResult, error)
	Report(ctx context.Context, p auth.Principal, r report.Range, topN int) (report.Report, error)
	Export(ctx context.Context, p auth.Principal, r report.Range) ([]core.Transaction, error)
}

// ContactService stores contact form submissions.
type ContactService interface {
	Submit(ctx context.Context, p auth.Principal, in core.ContactInput) (core.ContactMessage, error)
}

// Config wires the server's collaborators.
type Config struct {
	Addr string
	// RateLimitPerMinute of 0 disables rate limiting.
	RateLimitPerMinute int
	Verifier           auth.TokenVerifier
	// Ready reports whether dependencies are reachable; nil means always ready.
	Ready   func(ctx context.Context) error
	Metrics *metrics.Metrics
	Logger  *log.Logger
	// Now defaults to time.Now; reports and export filenames use it.
	Now func() time.Time
}

type Server struct {
	http.Server
	mux      *http.ServeMux
	txns     TransactionService
	contacts ContactService
	ready    func(ctx context.Context) error
	metrics  *metrics.Metrics
	logger   *log.Logger
	now      func() time.Time

	detector    *security.Detector
	rateLimiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, txns TransactionService, contacts ContactService) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		mux:      http.NewServeMux(),
		txns:     txns,
		contacts: contacts,
		ready:    cfg.Ready,
		metrics:  cfg.Metrics,
		logger:   logger.WithComponent(log.ComponentHTTP),
		now:      now,
		detector: security.NewDetector(),
	}

	s.handle("GET /api/transactions", s.handleListTransactions)
	s.handle("POST /api/transactions", s.handleCreateTransaction)
	s.handle("PUT /api/transactions", s.handleUpdateTransaction)
	s.handle("DELETE /api/transactions", s.handleDeleteTransaction)
	s.handle("DELETE /api/account/data", s.handlePurgeAccount)

	s.handle("GET /api/reports", s.handleReport)
	s.handle("GET /api/reports/export.csv", s.handleExportCSV)
	s.handle("GET /api/reports/statement.pdf", s.handleStatementPDF)

	s.handle("GET /api/categories", s.handleCategories)
	s.handle("POST /api/contact", s.handleContact)

	// Health checks and metrics need no principal.
	s.handle("GET /healthz", s.handleHealth)
	s.handle("GET /readyz", s.handleReady)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var h http.Handler = s.mux
	if cfg.Verifier != nil {
		h = auth.Middleware(cfg.Verifier, s.logInvalidToken)(h)
	}
	if cfg.RateLimitPerMinute > 0 {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}, s.metrics)
		h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, logger, func(w http.ResponseWriter, _ *http.Request) {
			TooManyRequestsError().Write(w)
		})(h)
	}
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(logger)(h)
	h = trace.NewMiddleware(s.detector.ExtractClientIP, logger, s.metrics).Middleware(h)
	h = otelhttp.NewHandler(h, "fintrack.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// handle registers h and records a request metric labelled with the route.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	route := pattern
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		route = pattern[i+1:]
	}
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.RecordHTTPRequest(r.Method, route, rec.status, time.Since(start))
	}))
}

func (s *Server) logInvalidToken(r *http.Request, err error) {
	log.FromContext(r.Context()).WithComponent(log.ComponentAuth).WarnContext(r.Context(), "Rejected bearer token",
		log.FieldPath, r.URL.Path,
		log.FieldError, err)
}

// requirePrincipal returns the caller or writes 401.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok || p.IsZero() {
		UnauthorizedError().Write(w)
		return auth.Principal{}, false
	}
	return p, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "Service unavailable.").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// statusRecorder captures the status code for route metrics.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
