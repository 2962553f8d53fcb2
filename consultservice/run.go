package consultservice

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/medsage/medsage-server/internal/api"
	"github.com/medsage/medsage-server/internal/api/recovery"
	"github.com/medsage/medsage-server/internal/auth"
	"github.com/medsage/medsage-server/internal/config"
	"github.com/medsage/medsage-server/internal/health"
	"github.com/medsage/medsage-server/internal/medbot"
	"github.com/medsage/medsage-server/internal/platform/logger"
	"github.com/medsage/medsage-server/internal/services"
	"github.com/medsage/medsage-server/internal/store"
	"github.com/medsage/medsage-server/internal/store/mongostore"
)

// Run starts the consultation service HTTP server and blocks until shutdown or error.
func Run() error {
	_ = godotenv.Load()

	log := logger.New("consult-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Int("http_port", cfg.HTTPPort).
		Str("mongo_database", cfg.MongoDatabase).
		Str("bot_base_url", cfg.BotBaseURL).
		Int("session_ttl_seconds", cfg.SessionTTLSeconds).
		Msg("Consultation service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	// Initialize dependencies (store, consultation proxy)
	st, bot, disconnect, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer disconnect()

	tokens := auth.NewTokenManager(
		cfg.JWTSecret,
		cfg.JWTRefreshSecret,
		time.Duration(cfg.AccessTokenTTLHours)*time.Hour,
		time.Duration(cfg.RefreshTokenTTLHours)*time.Hour,
	)

	// Start health checkers and build the router
	svcHealth := startHealthCheckers(ctx, cfg, log, st, bot)
	router := buildRouter(st, bot, tokens, cfg, log, svcHealth.IsHealthy)

	// HTTP server and serve
	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}
}

// initDependencies constructs required components and enforces fail-fast on
// an unreachable store. The consultation service itself may be down at
// startup; auth endpoints must still come up.
func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, medbot.Client, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongostore.Open(connectCtx, cfg.MongoURI)
	if err != nil {
		log.Error().Err(err).Msg("MongoDB unavailable")
		return nil, nil, nil, err
	}
	db := client.Database(cfg.MongoDatabase)

	if err := mongostore.EnsureIndexes(connectCtx, db); err != nil {
		log.Error().Err(err).Msg("Failed to ensure indexes")
		_ = client.Disconnect(context.Background())
		return nil, nil, nil, err
	}

	st := mongostore.New(db)
	bot := medbot.New(cfg.BotBaseURL, time.Duration(cfg.BotTimeoutSeconds)*time.Second)

	disconnect := func() { _ = client.Disconnect(context.Background()) }
	return st, bot, disconnect, nil
}

// buildRouter wires HTTP routes to handlers.
func buildRouter(st store.Store, bot medbot.Client, tokens *auth.TokenManager, cfg *config.Config, log zerolog.Logger, isHealthy func() bool) *mux.Router {
	root := mux.NewRouter()
	root.Use(recovery.Middleware)
	root.Use(corsMiddleware)

	authMW := auth.Middleware(tokens)

	apiRouter := root.PathPrefix("/api").Subrouter()

	// Users
	userSvc := services.NewUserService(st, tokens, cfg.BcryptCost)
	userHandler := api.NewUserHandler(userSvc)
	apiRouter.HandleFunc("/users/register", userHandler.Register).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/users/login", userHandler.Login).Methods("POST", "OPTIONS")
	apiRouter.Handle("/users/logout", authMW(http.HandlerFunc(userHandler.Logout))).Methods("POST", "OPTIONS")
	apiRouter.Handle("/users/profile", authMW(http.HandlerFunc(userHandler.GetProfile))).Methods("GET", "OPTIONS")
	apiRouter.Handle("/users/profile", authMW(http.HandlerFunc(userHandler.UpdateProfile))).Methods("PUT", "OPTIONS")

	// Consultations
	consultSvc := services.NewConsultationService(st, bot, time.Duration(cfg.SessionTTLSeconds)*time.Second, log)
	consultHandler := api.NewConsultationHandler(consultSvc, cfg.BotBaseURL)
	conv := apiRouter.PathPrefix("/conversations").Subrouter()
	conv.Use(authMW)
	conv.HandleFunc("/start", consultHandler.Start).Methods("POST", "OPTIONS")
	conv.HandleFunc("/continue/{sessionId}", consultHandler.Continue).Methods("POST", "OPTIONS")
	conv.HandleFunc("/end/{sessionId}", consultHandler.End).Methods("POST", "OPTIONS")
	conv.HandleFunc("/active/{sessionId}", consultHandler.GetActive).Methods("GET", "OPTIONS")
	conv.HandleFunc("/history", consultHandler.History).Methods("GET", "OPTIONS")
	conv.HandleFunc("/bot-health", consultHandler.BotHealth).Methods("GET", "OPTIONS")

	// Health
	healthHandler := api.NewHealthHandler(isHealthy)
	apiRouter.HandleFunc("/health", healthHandler.CheckHealth).Methods("GET")

	return root
}

// corsMiddleware allows the browser frontend to call the API cross-origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// startHealthCheckers starts component checkers and the service-level aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store, bot medbot.Client) *health.ServiceHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)

	botChecker := medbot.NewBotHealthChecker(bot, log, probeTimeout)
	go botChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker, botChecker)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
