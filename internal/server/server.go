// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/nvellore/fraudwatch/internal/accounts"
	"github.com/nvellore/fraudwatch/internal/analyze"
	"github.com/nvellore/fraudwatch/internal/config"
	"github.com/nvellore/fraudwatch/internal/events"
	"github.com/nvellore/fraudwatch/internal/health"
	"github.com/nvellore/fraudwatch/internal/kvstore"
	"github.com/nvellore/fraudwatch/internal/logging"
	"github.com/nvellore/fraudwatch/internal/metrics"
	"github.com/nvellore/fraudwatch/internal/predict"
	"github.com/nvellore/fraudwatch/internal/ratelimit"
	"github.com/nvellore/fraudwatch/internal/realtime"
	"github.com/nvellore/fraudwatch/internal/security"
	"github.com/nvellore/fraudwatch/internal/session"
	"github.com/nvellore/fraudwatch/internal/stats"
	"github.com/nvellore/fraudwatch/internal/traces"
	"github.com/nvellore/fraudwatch/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg            *config.Config
	kv             kvstore.Store
	guard          *session.Guard
	analyzeService *analyze.Service
	aggregator     *stats.Aggregator
	summaryTimer   *stats.Timer
	realtimeHub    *realtime.Hub
	rateLimiter    *ratelimit.Limiter
	healthReg      *health.Registry
	db             *sql.DB // nil if using in-memory
	router         *gin.Engine
	httpSrv        *http.Server
	logger         *slog.Logger
	cancelRunCtx   context.CancelFunc // cancels background goroutines started in Run
	tracesShutdown func(context.Context) error

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStore sets a custom kv store (for testing)
func WithStore(kv kvstore.Store) Option {
	return func(s *Server) {
		s.kv = kv
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set store/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	// Tracing (no-op without an OTLP endpoint)
	shutdown, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	s.tracesShutdown = shutdown

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if s.kv == nil {
		if cfg.DatabaseURL != "" {
			db, err := sql.Open("postgres", cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("failed to open database: %w", err)
			}

			// Configure connection pool
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(5 * time.Minute)

			// Test connection
			if err := db.Ping(); err != nil {
				return nil, fmt.Errorf("failed to connect to database: %w", err)
			}

			pgStore := kvstore.NewPostgresStore(db)
			if err := pgStore.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("failed to migrate kv store: %w", err)
			}

			s.db = db
			s.kv = pgStore
			s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
		} else {
			s.kv = kvstore.NewMemoryStore()
			s.logger.Info("using in-memory storage (set DATABASE_URL for persistence)")
		}
	}

	// Prediction services. In production, refuse endpoints pointing at
	// internal addresses.
	if cfg.IsProduction() {
		for name, target := range map[string]string{
			"PREDICT_TRANSACTION_URL": cfg.TransactionURL,
			"PREDICT_INVOICE_URL":     cfg.InvoiceURL,
			"PREDICT_SPAM_URL":        cfg.SpamURL,
		} {
			if err := security.ValidateEndpointURL(target); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	client := predict.NewClient(predict.Config{
		RelayURL:       cfg.RelayURL,
		TransactionURL: cfg.TransactionURL,
		InvoiceURL:     cfg.InvoiceURL,
		SpamURL:        cfg.SpamURL,
		Timeout:        cfg.PredictTimeout,
	})

	// Domain services
	accountStore := accounts.NewStore(s.kv)
	s.guard = session.NewGuard(accountStore, s.kv)

	txStore := events.NewTransactionStore(s.kv)
	spamStore := events.NewSpamStore(s.kv)
	invStore := events.NewInvoiceStore(s.kv)

	s.analyzeService = analyze.NewService(client, txStore, spamStore, invStore, cfg.SpamRule)
	s.aggregator = stats.NewAggregator(txStore, spamStore, invStore, cfg.SpamRule)

	// Realtime hub streams summary recomputes and fresh analyses
	s.realtimeHub = realtime.NewHub(s.logger)
	s.analyzeService.SetBroadcaster(s.realtimeHub)
	s.summaryTimer = stats.NewTimer(s.aggregator, cfg.SummaryInterval, s.logger, func(summary *stats.Summary) {
		s.realtimeHub.BroadcastSummary(summary)
	})

	// Health checks
	s.healthReg = health.NewRegistry()
	s.healthReg.Register("storage", func(ctx context.Context) health.Status {
		if s.db != nil {
			if err := s.db.PingContext(ctx); err != nil {
				return health.Status{Name: "storage", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "storage", Healthy: true, Detail: "postgres"}
		}
		return health.Status{Name: "storage", Healthy: true, Detail: "memory"}
	})

	// Set up router
	gin.SetMode(ginMode(cfg))
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)
	return s, nil
}

func ginMode(cfg *config.Config) string {
	if cfg.IsProduction() {
		return gin.ReleaseMode
	}
	return gin.DebugMode
}

func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (the SPA runs on its own origin in development)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit. Invoice uploads get a larger cap on their route.
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxUploadSize))

	// Rate limiting
	limiterCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPS > 0 {
		limiterCfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
	}
	s.rateLimiter = ratelimit.New(limiterCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket for real-time dashboard streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// V1 API group
	v1 := s.router.Group("/v1")
	v1.GET("/platform", s.platformHandler)

	// Auth: signup, login, session inspection
	sessionHandler := session.NewHandler(s.guard)
	sessionHandler.RegisterRoutes(v1)

	statsHandler := stats.NewHandler(s.aggregator, events.NewTransactionStore(s.kv), events.NewSpamStore(s.kv), events.NewInvoiceStore(s.kv))

	// Employee area: analysis forms plus the summary feed. The admission
	// check re-reads the session on every request.
	analyzeHandler := analyze.NewHandler(s.analyzeService, s.cfg.SpamRule)
	employeeAnalyze := v1.Group("/analyze", session.Require(s.guard, accounts.TypeEmployee))
	analyzeHandler.RegisterRoutes(employeeAnalyze)

	dashboard := v1.Group("/dashboard", session.Require(s.guard, accounts.TypeEmployee))
	statsHandler.RegisterDashboardRoutes(dashboard)

	// Admin area: aggregate view over every collection
	admin := v1.Group("/admin", session.Require(s.guard, accounts.TypeAdmin))
	statsHandler.RegisterAdminRoutes(admin)
}

// -----------------------------------------------------------------------------
// Info & health handlers
// -----------------------------------------------------------------------------

func (s *Server) platformHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"platform": gin.H{
			"name":     "FraudWatch",
			"version":  "0.1.0",
			"env":      s.cfg.Env,
			"spamRule": s.cfg.SpamRule,
		},
		"services": gin.H{
			"transaction": s.cfg.TransactionURL,
			"invoice":     s.cfg.InvoiceURL,
			"spam":        s.cfg.SpamURL,
		},
		"realtime": s.realtimeHub.Stats(),
	})
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthReg.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"version":   "0.1.0",
		"checks":    statuses,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the server and blocks until a shutdown signal or fatal error.
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start summary recompute timer
	go s.summaryTimer.Start(runCtx)

	// Sample database pool stats
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, timer)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	// Stop summary timer
	if s.summaryTimer != nil {
		s.summaryTimer.Stop()
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush traces
	if s.tracesShutdown != nil {
		if err := s.tracesShutdown(ctx); err != nil {
			s.logger.Error("traces shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
