package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/boardhub/boardhub-api/internal/config"
	"github.com/boardhub/boardhub-api/internal/domain/chat"
	"github.com/boardhub/boardhub-api/internal/domain/post"
	"github.com/boardhub/boardhub-api/internal/domain/profile"
	"github.com/boardhub/boardhub-api/internal/domain/relationships"
	"github.com/boardhub/boardhub-api/internal/middleware"
	"github.com/boardhub/boardhub-api/internal/pkg/breaker"
	"github.com/boardhub/boardhub-api/internal/pkg/database"
	"github.com/boardhub/boardhub-api/internal/pkg/events"
	"github.com/boardhub/boardhub-api/internal/pkg/jwt"
	"github.com/boardhub/boardhub-api/internal/pkg/logger"
	"github.com/boardhub/boardhub-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting BoardHub API")

	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if cfg.MigrateOnBoot {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.Migrate(ctx, db)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to apply schema")
		}
	}

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	exporter := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaChatTopic)
	defer func() {
		if err := exporter.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing Kafka writer")
		}
	}()

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Lookups ----------
	breakerCfg := breaker.Config{
		MaxFailures: cfg.LookupBreakerTrips,
		Interval:    time.Minute,
		Timeout:     cfg.LookupBreakerTimeout,
	}
	postLookup := post.NewLookup(post.NewRepository(db), cfg.LookupTimeout, breakerCfg)
	profileLookup := profile.NewLookup(profile.NewRepository(db), cfg.LookupTimeout, breakerCfg)

	// ---------- Change feed ----------
	var exp chat.EventExporter
	if exporter != nil {
		exp = exporter
	}
	chatHub := chat.NewHub(redis, exp)
	go chatHub.Run()

	// ---------- Services ----------
	relRepo := relationships.NewRepository(db)
	chatService := chat.NewService(
		chat.NewRepository(db),
		relRepo,
		&postLookupAdapter{lookup: postLookup},
		&profileLookupAdapter{lookup: profileLookup},
		chatHub,
	)
	relService := relationships.NewService(relRepo, chatService)

	// ---------- Handlers ----------
	chatHandler := chat.NewHandler(
		chatService,
		chatHub,
		chat.NewRateLimiter(redis, cfg.ChatRateLimit, cfg.ChatRateWindow),
		cfg.AllowedOrigins,
	)
	relHandler := relationships.NewHandler(relService, &blockedProfileAdapter{lookup: profileLookup})

	r := newRouter(cfg, middleware.Auth(jwtService), chatHandler, relHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Closing the hub ends every websocket feed
	chatHub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func newRouter(cfg *config.Config, authMiddleware func(http.Handler) http.Handler, chatHandler *chat.Handler, relHandler *relationships.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket sits outside the compressed group; upgrades need the raw writer
	r.Handle("/ws", chatHandler.WSRoute(authMiddleware))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})
	if !cfg.IsProduction() {
		r.Handle("/debug/vars", expvar.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Compress(5))

		r.Mount("/chat", chatHandler.Routes(authMiddleware))
		r.Mount("/", relHandler.Routes(authMiddleware))
	})

	return r
}

// Adapters from the lookup packages to the shapes chat and relationships expect

type postLookupAdapter struct {
	lookup *post.Lookup
}

func (a *postLookupAdapter) GetPost(ctx context.Context, postID uuid.UUID) (*chat.PostInfo, error) {
	p, err := a.lookup.Get(ctx, postID)
	if err != nil || p == nil {
		return nil, err
	}
	return &chat.PostInfo{
		ID:          p.ID,
		AuthorID:    p.AuthorID,
		IsAnonymous: p.IsAnonymous,
		Title:       p.Title,
	}, nil
}

type profileLookupAdapter struct {
	lookup *profile.Lookup
}

func (a *profileLookupAdapter) GetProfile(ctx context.Context, userID uuid.UUID) (*chat.ProfileInfo, error) {
	p, err := a.lookup.Get(ctx, userID)
	if errors.Is(err, profile.ErrProfileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat.ProfileInfo{
		UserID:      p.UserID,
		DisplayName: p.Nickname,
		AvatarURL:   p.Avatar(),
	}, nil
}

type blockedProfileAdapter struct {
	lookup *profile.Lookup
}

func (a *blockedProfileAdapter) GetUserProfile(ctx context.Context, userID uuid.UUID) (*relationships.UserProfile, error) {
	p, err := a.lookup.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &relationships.UserProfile{
		ID:          p.UserID,
		DisplayName: p.Nickname,
		AvatarURL:   p.Avatar(),
	}, nil
}
