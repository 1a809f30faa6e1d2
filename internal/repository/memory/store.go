// Package memory is a process-local implementation of the account, item and
// order repositories. It backs tests and STORE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
)

// Store holds the three collections. Values are copied on the way in and
// out so callers never alias stored state.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	items    map[string]domain.CatalogItem
	orders   map[string]domain.Order
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]domain.Account),
		items:    make(map[string]domain.CatalogItem),
		orders:   make(map[string]domain.Order),
	}
}

// Accounts

func (s *Store) CreateAccount(_ context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; ok {
		return domain.Conflictf("account %s already exists", account.ID)
	}
	if err := s.checkUniqueLocked(account); err != nil {
		return err
	}
	s.accounts[account.ID] = copyAccount(*account)
	return nil
}

func (s *Store) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.NotFound("user")
	}
	out := copyAccount(a)
	return &out, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = domain.NormalizeEmail(email)
	for _, a := range s.accounts {
		if a.Email == email {
			out := copyAccount(a)
			return &out, nil
		}
	}
	return nil, domain.NotFound("user")
}

func (s *Store) GetAccounts(_ context.Context, ids []string) (map[string]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*domain.Account, len(ids))
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			c := copyAccount(a)
			out[id] = &c
		}
	}
	return out, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, copyAccount(a))
	}
	sort.Slice(out, func(i, j int) bool {
		return before(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *Store) UpdateAccount(_ context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; !ok {
		return domain.NotFound("user")
	}
	if err := s.checkUniqueLocked(account); err != nil {
		return err
	}
	s.accounts[account.ID] = copyAccount(*account)
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return domain.NotFound("user")
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) checkUniqueLocked(account *domain.Account) error {
	for id, other := range s.accounts {
		if id == account.ID {
			continue
		}
		if other.Email == account.Email {
			return domain.Conflictf("email already registered")
		}
		if other.Phone == account.Phone {
			return domain.Conflictf("phone already registered")
		}
	}
	return nil
}

// Items

func (s *Store) CreateItem(_ context.Context, item *domain.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; ok {
		return domain.Conflictf("item %s already exists", item.ID)
	}
	s.items[item.ID] = *item
	return nil
}

func (s *Store) GetItem(_ context.Context, id string) (*domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, domain.NotFound("item")
	}
	return &item, nil
}

func (s *Store) GetItems(_ context.Context, ids []string) (map[string]*domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*domain.CatalogItem, len(ids))
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			out[id] = &item
		}
	}
	return out, nil
}

func (s *Store) SearchItems(_ context.Context, filter domain.ItemFilter) ([]domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CatalogItem, 0)
	for _, item := range s.items {
		item := item
		if filter.Matches(&item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return before(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *Store) UpdateItem(_ context.Context, item *domain.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; !ok {
		return domain.NotFound("item")
	}
	s.items[item.ID] = *item
	return nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return domain.NotFound("item")
	}
	delete(s.items, id)
	return nil
}

// Orders

func (s *Store) CreateOrder(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; ok {
		return domain.Conflictf("order %s already exists", order.ID)
	}
	s.orders[order.ID] = copyOrder(*order)
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.NotFound("order")
	}
	out := copyOrder(o)
	return &out, nil
}

func (s *Store) ListOrders(_ context.Context) ([]domain.Order, error) {
	return s.listOrders(func(*domain.Order) bool { return true }), nil
}

func (s *Store) ListOrdersByBuyer(_ context.Context, buyerID string) ([]domain.Order, error) {
	return s.listOrders(func(o *domain.Order) bool { return o.BuyerID == buyerID }), nil
}

func (s *Store) ListOrdersBySeller(_ context.Context, sellerID string) ([]domain.Order, error) {
	return s.listOrders(func(o *domain.Order) bool { return o.HasSeller(sellerID) }), nil
}

func (s *Store) listOrders(keep func(*domain.Order) bool) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, 0)
	for _, o := range s.orders {
		o := o
		if keep(&o) {
			out = append(out, copyOrder(o))
		}
	}
	// newest first
	sort.Slice(out, func(i, j int) bool {
		return before(out[j].CreatedAt, out[i].CreatedAt, out[j].ID, out[i].ID)
	})
	return out
}

func (s *Store) UpdateOrder(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.orders[order.ID]
	if !ok {
		return domain.NotFound("order")
	}
	stored.ShippingAddress = order.ShippingAddress
	stored.Notes = order.Notes
	stored.UpdatedAt = order.UpdatedAt
	s.orders[order.ID] = stored
	return nil
}

func (s *Store) UpdateLineStatus(_ context.Context, orderID, lineID string, status domain.LineStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.orders[orderID]
	if !ok {
		return domain.NotFound("order")
	}
	idx := stored.LineIndex(lineID)
	if idx < 0 {
		return domain.NotFound("order line")
	}
	stored = copyOrder(stored)
	stored.Lines[idx].Status = status
	stored.Lines[idx].UpdatedAt = at
	s.orders[orderID] = stored
	return nil
}

func (s *Store) DeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return domain.NotFound("order")
	}
	delete(s.orders, id)
	return nil
}

func copyAccount(a domain.Account) domain.Account {
	if a.Age != nil {
		age := *a.Age
		a.Age = &age
	}
	return a
}

func copyOrder(o domain.Order) domain.Order {
	o.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return o
}

func before(a, b time.Time, idA, idB string) bool {
	if a.Equal(b) {
		return idA < idB
	}
	return a.Before(b)
}
