package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/auth"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/service"
	"github.com/cloud-wave-best-zizon/marketplace-service/pkg/config"
)

var demoItems = []domain.CreateItemRequest{
	{Name: "Desk Lamp", Description: "Warm white LED lamp", Price: decimal.RequireFromString("24.99"), Category: domain.CategoryHomeGarden, Stock: 12},
	{Name: "Paperback Novel", Description: "Secondhand, good condition", Price: decimal.RequireFromString("7.50"), Category: domain.CategoryBooks, Stock: 3},
	{Name: "Running Shoes", Description: "Size 42, worn twice", Price: decimal.RequireFromString("45.00"), Category: domain.CategorySports, Stock: 1},
	{Name: "USB-C Charger", Description: "65W power adapter", Price: decimal.RequireFromString("19.90"), Category: domain.CategoryElectronics, Stock: 8},
}

func newSeedCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo seller account and a few catalog items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), password)
		},
	}
	cmd.Flags().StringVar(&password, "password", "demo-seller", "password for the demo seller account")
	return cmd
}

func runSeed(ctx context.Context, password string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close(context.Background())

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL, auth.NewMemoryDenylist())
	accounts := service.NewAccountService(st.accounts, auth.NewPasswordHasher(cfg.BcryptCost), tokens, logger)
	items := service.NewItemService(st.items, logger)

	created, err := seedDemo(ctx, st, accounts, items, password, logger)
	if err != nil {
		return err
	}
	for _, item := range created {
		fmt.Printf("%s\t%s\t%s\n", item.ID, item.Name, item.Price.StringFixed(2))
	}
	return nil
}

const demoSellerEmail = "seller@example.com"

// seedDemo registers the demo seller if needed and lists whichever demo
// items that seller does not already have, so repeated runs add nothing.
func seedDemo(ctx context.Context, st *stores, accounts *service.AccountService, items *service.ItemService, password string, logger *zap.Logger) ([]domain.CatalogItem, error) {
	seller, err := accounts.Register(ctx, domain.RegisterRequest{
		FirstName: "Demo",
		LastName:  "Seller",
		Email:     demoSellerEmail,
		Password:  password,
		Phone:     "010-0000-0000",
	})
	switch {
	case errors.Is(err, domain.ErrConflict):
		logger.Info("Demo seller already exists", zap.String("email", demoSellerEmail))
		if seller, err = st.accounts.GetAccountByEmail(ctx, demoSellerEmail); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("register demo seller: %w", err)
	}

	existing, err := items.Search(ctx, domain.ItemFilter{})
	if err != nil {
		return nil, err
	}
	listed := make(map[string]struct{})
	for _, item := range existing {
		if item.SellerID == seller.ID {
			listed[item.Name] = struct{}{}
		}
	}

	var created []domain.CatalogItem
	for _, req := range demoItems {
		if _, ok := listed[req.Name]; ok {
			continue
		}
		item, err := items.Create(ctx, seller.ID, req)
		if err != nil {
			return nil, fmt.Errorf("create %q: %w", req.Name, err)
		}
		created = append(created, *item)
	}

	logger.Info("Seed complete",
		zap.String("seller_id", seller.ID),
		zap.Int("created", len(created)),
		zap.Int("already_listed", len(listed)))
	return created, nil
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Print the fixed item category set",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, c := range domain.Categories() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", c.ID, c.Name)
			}
		},
	}
}
