package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/skillbridge/skillbridge-oauth/internal/adapter/partner"
	"github.com/skillbridge/skillbridge-oauth/internal/config"
	"github.com/skillbridge/skillbridge-oauth/internal/domain"
	httptransport "github.com/skillbridge/skillbridge-oauth/internal/http"
	"github.com/skillbridge/skillbridge-oauth/internal/http/handler"
	httpmiddleware "github.com/skillbridge/skillbridge-oauth/internal/http/middleware"
	"github.com/skillbridge/skillbridge-oauth/internal/repository"
	"github.com/skillbridge/skillbridge-oauth/internal/seed"
	"github.com/skillbridge/skillbridge-oauth/internal/server"
	"github.com/skillbridge/skillbridge-oauth/internal/service"
	"github.com/skillbridge/skillbridge-oauth/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newPGXPool,
			newTokenStore,
			newPartnerRegistry,
			newPartnerTokenStore,
			newClientRegistry,
			partner.NewTokenEndpointClient,
			newUserDirectory,
			newGrantService,
			service.NewPartnerTokenManager,
			service.NewReciprocalService,
			newProfileSource,
			newPublisher,
			handler.NewTokenHandler,
			handler.NewPartnerHandler,
			handler.NewAdminHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, seedSampleData, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newTokenStore(pool *pgxpool.Pool) repository.TokenStore {
	return repository.NewPostgresTokenStore(pool)
}

func newPartnerRegistry(pool *pgxpool.Pool, logger *zap.Logger) repository.PartnerRegistry {
	return repository.NewPostgresPartnerRegistry(pool, logger)
}

func newPartnerTokenStore(pool *pgxpool.Pool) repository.PartnerTokenStore {
	return repository.NewPostgresPartnerTokenStore(pool)
}

func newClientRegistry(pool *pgxpool.Pool, logger *zap.Logger) repository.ClientRegistry {
	return repository.NewPostgresClientRegistry(pool, logger)
}

func newUserDirectory() (service.UserDirectory, error) {
	users, err := seed.SampleUsers()
	if err != nil {
		return nil, err
	}
	return service.NewInMemoryUserDirectory(users...), nil
}

func newGrantService(
	clients repository.ClientRegistry,
	tokens repository.TokenStore,
	users service.UserDirectory,
	cfg config.Config,
	logger *zap.Logger,
) *service.TokenGrantService {
	return service.NewTokenGrantService(clients, tokens, users, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, logger)
}

func newProfileSource() service.ProfileSource {
	return &service.StaticProfileSource{
		Profiles: []domain.Profile{
			{
				ProfileID: "11111111-1111-1111-1111-111111111111",
				Name:      domain.Name{FirstName: "Maggie", LastName: "Simpson", Nicknames: []string{"Maggie"}},
				Capabilities: []string{
					domain.CapabilityWeight,
					domain.CapabilityDiaperChange,
					domain.CapabilityInfantFeeding,
					domain.CapabilitySleep,
				},
			},
		},
	}
}

func newPublisher(
	lc fx.Lifecycle,
	manager *service.PartnerTokenManager,
	profiles service.ProfileSource,
	cfg config.Config,
	logger *zap.Logger,
) *service.ProfilePublisher {
	publisher := service.NewProfilePublisher(manager, profiles, cfg.ProfileEndpoint, cfg.PublisherQueueSize, logger)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			publisher.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			publisher.Stop()
			return nil
		},
	})

	return publisher
}

func newAuthMiddleware(grants *service.TokenGrantService) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{Grants: grants}
}

func seedSampleData(cfg config.Config, clients repository.ClientRegistry, partners repository.PartnerRegistry, logger *zap.Logger) error {
	if !cfg.SeedSampleData {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return seed.Load(ctx, clients, partners, logger)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
