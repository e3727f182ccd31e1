package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/eternisai/enchanted-chat/internal/auth"
	"github.com/eternisai/enchanted-chat/internal/catalog"
	"github.com/eternisai/enchanted-chat/internal/chat"
	"github.com/eternisai/enchanted-chat/internal/config"
	"github.com/eternisai/enchanted-chat/internal/conversations"
	"github.com/eternisai/enchanted-chat/internal/instructions"
	"github.com/eternisai/enchanted-chat/internal/logger"
	"github.com/eternisai/enchanted-chat/internal/metrics"
	"github.com/eternisai/enchanted-chat/internal/request_tracking"
	"github.com/eternisai/enchanted-chat/internal/storage/pg"
	"github.com/eternisai/enchanted-chat/internal/streaming"
	"github.com/eternisai/enchanted-chat/internal/title_generation"
	"github.com/eternisai/enchanted-chat/internal/upstream"
	"github.com/eternisai/enchanted-chat/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))
	log.Info("setting gin mode", slog.String("mode", cfg.GinMode))
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	db, err := pg.InitDatabase(ctx, cfg.DatabaseURL, pg.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTime) * time.Minute,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Minute,
	})
	if err != nil {
		log.Error("failed to initialize database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tokenValidator, err := newTokenValidator(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize token validator", slog.String("error", err.Error()))
		os.Exit(1)
	}

	m := metrics.New()

	upstreamClient := upstream.NewClient(upstream.Config{
		BaseURL: cfg.UpstreamBaseURL,
		APIKey:  cfg.UpstreamAPIKey,
		Timeout: time.Duration(cfg.UpstreamTimeoutSeconds) * time.Second,
		Title:   "Enchanted Chat",
	})

	modelCatalog := catalog.New(upstreamClient, log, m, catalog.Config{
		TTL:             cfg.CatalogTTL,
		FreeModelSuffix: cfg.Chat.FreeModelSuffix,
	})
	var warmer *catalog.Warmer
	if cfg.CatalogWarmSchedule != "" {
		warmer, err = catalog.NewWarmer(modelCatalog, cfg.CatalogWarmSchedule, log)
		if err != nil {
			log.Error("invalid catalog warm schedule", slog.String("error", err.Error()))
			os.Exit(1)
		}
		warmer.Start()
	}

	broadcaster, err := newBroadcaster(cfg, log)
	if err != nil {
		log.Error("failed to initialize broadcaster", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Services
	userService := users.NewService(users.NewRepository(db.Queries), log)
	instructionService := instructions.NewService(instructions.NewRepository(db.Queries), log)
	trackingService := request_tracking.NewService(db.Queries, m, log, request_tracking.Config{
		Workers:    cfg.RequestTrackingWorkerPoolSize,
		BufferSize: cfg.RequestTrackingBufferSize,
		Timeout:    time.Duration(cfg.RequestTrackingTimeoutSeconds) * time.Second,
		Provider:   request_tracking.GetProviderFromBaseURL(cfg.UpstreamBaseURL),
	})

	dispatcher := chat.NewDispatcher(upstreamClient, modelCatalog, instructionService, trackingService, log, chat.DispatcherConfig{
		DefaultModel: cfg.Chat.DefaultModel,
		Location:     cfg.Location(),
	})
	titleGenerator := title_generation.NewGenerator(dispatcher, cfg.TitleGeneration, cfg.Location(), log, m)

	conversationRepo := conversations.NewRepository(db.Queries)

	var titleService *title_generation.Service
	var titleQueue conversations.TitleQueue
	if cfg.TitleGeneration.AutoGenerate {
		titleStore := conversations.NewTitleStore(conversationRepo, broadcaster, log)
		titleService = title_generation.NewService(titleGenerator, titleStore, log, cfg.TitleGeneration.Workers)
		titleQueue = titleService
	}

	conversationService := conversations.NewService(conversationRepo, dispatcher, titleGenerator, titleQueue,
		userService, broadcaster, log, conversations.Config{Temperature: cfg.Chat.Temperature})

	var limiter *request_tracking.RateLimiter
	var sendLimits []gin.HandlerFunc
	if cfg.RateLimitEnabled {
		limiter = request_tracking.NewRateLimiter(cfg.RateLimitMessagesPerMinute, cfg.RateLimitBurst, log)
		sendLimits = append(sendLimits, limiter.Middleware())
	}

	// Handlers
	instructionHandler := instructions.NewHandler(instructionService, log)
	conversationHandler := conversations.NewHandler(conversationService, modelCatalog, broadcaster, log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.RequestLoggingMiddleware(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "instance_id": logger.GetInstanceID()})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api/v1")
	api.Use(auth.NewMiddleware(tokenValidator).RequireAuth())
	api.Use(userService.LoadUser())
	{
		conversationHandler.RegisterRoutes(api, sendLimits...)
		instructionHandler.RegisterRoutes(api)
		api.GET("/rate-limit/status", request_tracking.RateLimitStatusHandler(limiter))
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   splitOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", logger.RequestIDHeader},
		ExposedHeaders:   []string{logger.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
	})

	port := ":" + cfg.Port
	srv := &http.Server{
		Addr:              port,
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("chat server listening", slog.String("addr", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	if cfg.RateLimitEnabled {
		log.Info("rate limiting enabled",
			slog.Int("messages_per_minute", cfg.RateLimitMessagesPerMinute),
			slog.Int("burst", cfg.RateLimitBurst))
	} else {
		log.Info("rate limiting disabled")
	}

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	if titleService != nil {
		titleService.Shutdown()
	}
	trackingService.Shutdown()
	if warmer != nil {
		warmer.Stop(shutdownCtx)
	}
	if err := broadcaster.Close(); err != nil {
		log.Warn("failed to close broadcaster", slog.String("error", err.Error()))
	}
	if err := db.Close(); err != nil {
		log.Warn("failed to close database", slog.String("error", err.Error()))
	}

	log.Info("server exited")
}

func newTokenValidator(ctx context.Context, cfg *config.Config, log *logger.Logger) (auth.TokenValidator, error) {
	switch cfg.ValidatorType {
	case "firebase":
		if cfg.FirebaseProjectID == "" {
			return nil, errors.New("firebase project ID is required")
		}
		log.Info("creating firebase token validator", slog.String("project_id", cfg.FirebaseProjectID))
		validator, err := auth.NewFirebaseTokenValidator(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredJSON)
		if err != nil {
			return nil, err
		}
		return validator, nil

	case "jwk":
		log.Info("creating JWT token validator", slog.String("jwks_url", cfg.JWTJWKSURL))
		validator, err := auth.NewTokenValidator(ctx, cfg.JWTJWKSURL)
		if err != nil {
			return nil, err
		}
		return validator, nil

	default:
		return nil, errors.New("validator type must be either 'firebase' or 'jwk'")
	}
}

// newBroadcaster fans events out over NATS when configured, in process otherwise.
func newBroadcaster(cfg *config.Config, log *logger.Logger) (streaming.Broadcaster, error) {
	if cfg.NatsURL == "" {
		log.Info("NATS_URL not set, conversation events stay on this instance")
		return streaming.NewLocalHub(log), nil
	}

	nc, err := streaming.Connect(cfg.NatsURL, log)
	if err != nil {
		return nil, err
	}
	return streaming.NewNATSBroadcaster(nc, log), nil
}

func splitOrigins(origins string) []string {
	var out []string
	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
