package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/auth"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/events"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/repository/memory"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu      sync.Mutex
	created []events.OrderCreatedEvent
	changed []events.LineStatusChangedEvent
	deleted []events.OrderDeletedEvent
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, e events.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return nil
}

func (p *recordingPublisher) PublishLineStatusChanged(_ context.Context, e events.LineStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, e)
	return nil
}

func (p *recordingPublisher) PublishOrderDeleted(_ context.Context, e events.OrderDeletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, e)
	return nil
}

type fixture struct {
	store     *memory.Store
	publisher *recordingPublisher
	accounts  *AccountService
	items     *ItemService
	orders    *OrderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	logger := zap.NewNop()
	publisher := &recordingPublisher{}
	tokens := auth.NewTokenManager("test-secret", time.Hour, auth.NewMemoryDenylist())

	return &fixture{
		store:     store,
		publisher: publisher,
		accounts:  NewAccountService(store, auth.NewPasswordHasher(bcrypt.MinCost), tokens, logger),
		items:     NewItemService(store, logger),
		orders:    NewOrderService(store, store, store, publisher, logger),
	}
}

func (f *fixture) register(t *testing.T, email, phone string) *domain.Account {
	t.Helper()
	acc, err := f.accounts.Register(context.Background(), domain.RegisterRequest{
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		Password:  "password123",
		Phone:     phone,
	})
	require.NoError(t, err)
	return acc
}

func (f *fixture) listItem(t *testing.T, sellerID, name, desc string, price int64, category domain.Category) *domain.CatalogItem {
	t.Helper()
	item, err := f.items.Create(context.Background(), sellerID, domain.CreateItemRequest{
		Name:        name,
		Description: desc,
		Price:       decimal.NewFromInt(price),
		Category:    category,
		Stock:       10,
	})
	require.NoError(t, err)
	return item
}

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}
