package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/auth"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/events"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/handler"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/service"
	"github.com/cloud-wave-best-zizon/marketplace-service/pkg/config"
	pkgtls "github.com/cloud-wave-best-zizon/marketplace-service/pkg/tls"
)

type eventProducer interface {
	service.OrderEventPublisher
	HealthCheck(ctx context.Context) error
	Close() error
}

func newProducer(cfg *config.Config, logger *zap.Logger) (eventProducer, error) {
	if cfg.KafkaBrokers == "" {
		logger.Info("KAFKA_BROKERS not set, order events are not published")
		return events.NopProducer{}, nil
	}
	return events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	tlsConfig := &pkgtls.TLSConfig{}
	if err := envconfig.Process("", tlsConfig); err != nil {
		return fmt.Errorf("load TLS config: %w", err)
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Service configuration",
		zap.String("port", cfg.Port),
		zap.String("app_env", cfg.AppEnv),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("kafka_brokers", cfg.KafkaBrokers),
		zap.Bool("internal_tls", cfg.InternalTLSEnabled))

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(context.Background()); err != nil {
			logger.Warn("Store close failed", zap.Error(err))
		}
	}()

	producer, err := newProducer(cfg, logger)
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	defer producer.Close()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL, auth.NewMemoryDenylist())
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	devMode := cfg.IsDevelopment()

	accountService := service.NewAccountService(st.accounts, hasher, tokens, logger)
	itemService := service.NewItemService(st.items, logger)
	orderService := service.NewOrderService(st.orders, st.items, st.accounts, producer, logger)

	checks := []handler.HealthCheck{{Name: "kafka", Check: producer.HealthCheck}}
	if st.check != nil {
		checks = append(checks, *st.check)
	}

	router := handler.NewRouter(handler.RouterConfig{
		Accounts:    handler.NewAccountHandler(accountService, logger, devMode),
		Items:       handler.NewItemHandler(itemService, logger, devMode),
		Orders:      handler.NewOrderHandler(orderService, logger, devMode),
		Tokens:      tokens,
		Logger:      logger,
		FrontendURL: cfg.FrontendURL,
		Checks:      checks,
		Info: gin.H{
			"port":         cfg.Port,
			"store":        cfg.StoreDriver,
			"internal_tls": cfg.InternalTLSEnabled,
		},
	})

	var wg sync.WaitGroup
	servers := []*http.Server{}

	// HTTP Server for ALB
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	servers = append(servers, httpServer)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("Starting HTTP server", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// mTLS Server for service-to-service calls
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if cfg.InternalTLSEnabled {
		tlsCfg, err := pkgtls.LoadTLSConfig(tlsConfig, logger)
		if err != nil {
			logger.Error("Failed to load TLS config, internal listener disabled", zap.Error(err))
		} else {
			reloader := pkgtls.NewReloader(tlsCfg)
			httpsServer := &http.Server{
				Addr:              ":" + cfg.InternalTLSPort,
				Handler:           router,
				TLSConfig:         reloader.ServerConfig(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			servers = append(servers, httpsServer)

			wg.Add(1)
			go func() {
				defer wg.Done()
				logger.Info("Starting mTLS server for internal communication", zap.String("port", cfg.InternalTLSPort))
				if err := httpsServer.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("mTLS server failed", zap.Error(err))
				}
			}()

			go func() {
				if err := pkgtls.WatchCertificates(watchCtx, tlsConfig, reloader.Store, logger); err != nil {
					logger.Error("Certificate watcher stopped", zap.Error(err))
				}
			}()
		}
	}

	<-ctx.Done()

	logger.Info("Shutting down servers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", zap.Error(err))
		}
	}

	wg.Wait()
	logger.Info("All servers stopped")
	return nil
}
