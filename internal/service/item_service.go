package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
)

type ItemService struct {
	repo   ItemRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewItemService(repo ItemRepository, logger *zap.Logger) *ItemService {
	return &ItemService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

func (s *ItemService) Search(ctx context.Context, filter domain.ItemFilter) ([]domain.CatalogItem, error) {
	filter.Text = strings.TrimSpace(filter.Text)
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return []domain.CatalogItem{}, nil
	}
	return s.repo.SearchItems(ctx, filter)
}

func (s *ItemService) Get(ctx context.Context, id string) (*domain.CatalogItem, error) {
	return s.repo.GetItem(ctx, id)
}

func (s *ItemService) Create(ctx context.Context, sellerID string, req domain.CreateItemRequest) (*domain.CatalogItem, error) {
	now := s.now().UTC()
	item := &domain.CatalogItem{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Stock:       req.Stock,
		SellerID:    sellerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("Item created",
		zap.String("item_id", item.ID),
		zap.String("seller_id", sellerID),
		zap.String("category", string(item.Category)))
	return item, nil
}

// Update patches an item. Only its seller may change it.
func (s *ItemService) Update(ctx context.Context, callerID, id string, patch domain.ItemPatch) (*domain.CatalogItem, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.SellerID != callerID {
		return nil, domain.Forbiddenf("only the seller can modify this item")
	}

	patch.Apply(item)
	item.Name = strings.TrimSpace(item.Name)
	if err := item.Validate(); err != nil {
		return nil, err
	}
	item.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("Item updated", zap.String("item_id", id))
	return item, nil
}

func (s *ItemService) Delete(ctx context.Context, callerID, id string) error {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if item.SellerID != callerID {
		return domain.Forbiddenf("only the seller can delete this item")
	}

	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Item deleted", zap.String("item_id", id))
	return nil
}

// Categories returns the fixed category set, independent of stored items.
func (s *ItemService) Categories() []domain.CategoryInfo {
	return domain.Categories()
}
