package service

import (
	"context"
	"time"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
)

// AccountRepository persists accounts. Implementations enforce email and
// phone uniqueness and return domain conflict/not-found errors.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetAccounts(ctx context.Context, ids []string) (map[string]*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	UpdateAccount(ctx context.Context, account *domain.Account) error
	DeleteAccount(ctx context.Context, id string) error
}

type ItemRepository interface {
	CreateItem(ctx context.Context, item *domain.CatalogItem) error
	GetItem(ctx context.Context, id string) (*domain.CatalogItem, error)
	GetItems(ctx context.Context, ids []string) (map[string]*domain.CatalogItem, error)
	SearchItems(ctx context.Context, filter domain.ItemFilter) ([]domain.CatalogItem, error)
	UpdateItem(ctx context.Context, item *domain.CatalogItem) error
	DeleteItem(ctx context.Context, id string) error
}

// OrderRepository persists orders with their lines embedded. CreateOrder
// writes the order and all its lines in one document write.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListOrdersBySeller(ctx context.Context, sellerID string) ([]domain.Order, error)
	// UpdateOrder writes the order-level patchable fields and UpdatedAt.
	UpdateOrder(ctx context.Context, order *domain.Order) error
	// UpdateLineStatus sets one line's status and updated_at. Other lines and
	// order-level fields, UpdatedAt included, are left as they are.
	UpdateLineStatus(ctx context.Context, orderID, lineID string, status domain.LineStatus, at time.Time) error
	DeleteOrder(ctx context.Context, id string) error
}
