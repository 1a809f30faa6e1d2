package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/handler"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/repository"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/repository/memory"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/repository/mongodb"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/service"
	"github.com/cloud-wave-best-zizon/marketplace-service/pkg/config"
)

type stores struct {
	accounts service.AccountRepository
	items    service.ItemRepository
	orders   service.OrderRepository
	check    *handler.HealthCheck
	close    func(ctx context.Context) error
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDynamoDB:
		client, err := repository.NewDynamoDBClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create dynamodb client: %w", err)
		}
		if cfg.DynamoDBCreateTables {
			if err := repository.EnsureTables(ctx, client, cfg); err != nil {
				return nil, fmt.Errorf("ensure tables: %w", err)
			}
			logger.Info("DynamoDB tables ready")
		}
		return &stores{
			accounts: repository.NewAccountRepository(client, cfg.AccountTableName),
			items:    repository.NewItemRepository(client, cfg.ItemTableName),
			orders:   repository.NewOrderRepository(client, cfg.OrderTableName),
			close:    func(context.Context) error { return nil },
		}, nil

	case config.StoreMongo:
		store, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, err
		}
		return &stores{
			accounts: store,
			items:    store,
			orders:   store,
			check:    &handler.HealthCheck{Name: "mongodb", Check: store.Ping},
			close:    store.Close,
		}, nil

	case config.StoreMemory:
		logger.Warn("Using in-memory store, data is lost on restart")
		store := memory.NewStore()
		return &stores{
			accounts: store,
			items:    store,
			orders:   store,
			close:    func(context.Context) error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
