package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	echoapi "go.pilab.hu/codegrant/api/echo"
	"go.pilab.hu/codegrant/cache"
	cacheredis "go.pilab.hu/codegrant/cache/redis"
	"go.pilab.hu/codegrant/config"
	"go.pilab.hu/codegrant/domain"
	"go.pilab.hu/codegrant/internal/metrics"
	"go.pilab.hu/codegrant/internal/server"
	"go.pilab.hu/codegrant/internal/telemetry"
	applog "go.pilab.hu/codegrant/log"
	"go.pilab.hu/codegrant/memory"
	"go.pilab.hu/codegrant/mongodb"
	"go.pilab.hu/codegrant/services"
)

// backends holds the selected repository set plus the hooks the rest of the
// bootstrap needs from it.
type backends struct {
	codes  domain.AuthorizationCodeRepository
	tokens domain.TokenRepository
	users  domain.UserRepository
	health echoapi.HealthFunc
	close  func(ctx context.Context)
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		zerolog.New(os.Stdout).With().Timestamp().Logger().
			Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
		zerolog.New(os.Stdout).With().Timestamp().Logger().Warn().
			Str("configured_log_level", cfg.LogLevel).
			Str("fallback_log_level", logLevel.String()).
			Err(parseErr).
			Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}
	appLogger := applog.NewZerologAdapter(logLevel, cfg.LogPretty)

	ctx := context.Background()
	appLogger.Info(ctx, "Starting codegrant server...", map[string]any{
		"http_port":  cfg.HTTPPort,
		"code_store": cfg.CodeStore,
		"issuer":     cfg.Issuer,
		"log_level":  cfg.LogLevel,
	})

	tracerProvider, err := telemetry.InitTracer(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err)
	}
	meterProvider, err := telemetry.InitMeterProvider(prometheus.DefaultRegisterer)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize MeterProvider", err)
	}
	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	stores, err := buildBackends(ctx, cfg)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize storage backend", err)
	}

	tokenSigner := services.NewTokenSigner()
	tokenSigner.AddKeySigner(cfg.JWTSecretKey)
	tokenCache := cache.NewMemoryTokenStore(1 * time.Minute)

	grantService := services.NewGrantService(stores.codes, nil, cfg.AuthCodeTTL(), appLogger)
	tokenService := services.NewTokenService(stores.tokens, tokenCache, cfg.Issuer, tokenSigner, cfg.AccessTokenTTL())
	claimsService := services.NewUserClaimsService(stores.users)

	oauthAPI := echoapi.NewOAuth2API(grantService, tokenService, claimsService, stores.health)

	httpServer := server.NewHTTPServer(cfg, appLogger, oauthAPI)
	go func() {
		appLogger.Info(context.Background(), fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(context.Background(), "Failed to start HTTP server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(ctx, fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err)
	}

	telemetry.Shutdown(shutdownCtx, tracerProvider, meterProvider)

	if err := tokenCache.Close(); err != nil {
		appLogger.Error(shutdownCtx, "Token cache shutdown error", err)
	}
	stores.close(shutdownCtx)

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}

// buildBackends wires the repository set selected by CODE_STORE.
//
// mongo keeps codes, tokens and users in MongoDB. memory keeps everything in
// process. redis puts the authorization codes, the contended data, in Redis
// and keeps tokens and users in process.
func buildBackends(ctx context.Context, cfg *config.ServerConfig) (*backends, error) {
	switch cfg.CodeStore {
	case config.StoreMongo:
		if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
			return nil, fmt.Errorf("initializing mongodb: %w", err)
		}
		db := mongodb.GetDB()

		codes, err := mongodb.NewAuthCodeRepository(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("initializing auth code repository: %w", err)
		}
		tokens, err := mongodb.NewTokenRepository(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("initializing token repository: %w", err)
		}

		return &backends{
			codes:  codes,
			tokens: tokens,
			users:  mongodb.NewUserRepository(db),
			health: mongodb.Ping,
			close:  mongodb.CloseMongoDB,
		}, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("pinging redis: %w", err)
		}

		return &backends{
			codes:  cacheredis.NewCodeStore(client, "codegrant"),
			tokens: memory.NewTokenRepository(),
			users:  memory.NewUserRepository(),
			health: func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close: func(context.Context) {
				if err := client.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing redis client")
				}
			},
		}, nil

	case config.StoreMemory:
		return &backends{
			codes:  memory.NewAuthCodeRepository(),
			tokens: memory.NewTokenRepository(),
			users:  memory.NewUserRepository(),
			close:  func(context.Context) {},
		}, nil

	default:
		return nil, fmt.Errorf("unknown code store %q", cfg.CodeStore)
	}
}
