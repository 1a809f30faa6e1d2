package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/auth"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/events"
	"github.com/cloud-wave-best-zizon/marketplace-service/pkg/requestid"
)

type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, event events.OrderCreatedEvent) error
	PublishLineStatusChanged(ctx context.Context, event events.LineStatusChangedEvent) error
	PublishOrderDeleted(ctx context.Context, event events.OrderDeletedEvent) error
}

type OrderService struct {
	orders   OrderRepository
	items    ItemRepository
	accounts AccountRepository
	producer OrderEventPublisher
	logger   *zap.Logger
	now      func() time.Time
	otp      func() (string, error)
}

func NewOrderService(orders OrderRepository, items ItemRepository, accounts AccountRepository, producer OrderEventPublisher, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders:   orders,
		items:    items,
		accounts: accounts,
		producer: producer,
		logger:   logger,
		now:      time.Now,
		otp:      auth.GenerateOTP,
	}
}

// CreateOrder validates the requested lines against the catalog, snapshots
// price and seller per line, and stores the order with only the hash of a
// freshly drawn OTP. The plaintext OTP is returned here and nowhere else.
func (s *OrderService) CreateOrder(ctx context.Context, buyerID string, req domain.CreateOrderRequest) (*domain.CreatedOrder, error) {
	if len(req.Lines) == 0 {
		return nil, domain.Validationf("an order needs at least one line")
	}
	if _, err := s.accounts.GetAccount(ctx, buyerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Validationf("buyer %s not found", buyerID)
		}
		return nil, err
	}

	itemIDs := make([]string, 0, len(req.Lines))
	for _, l := range req.Lines {
		if l.Quantity < 1 {
			return nil, domain.Validationf("quantity for item %s must be at least 1", l.ItemID)
		}
		itemIDs = append(itemIDs, l.ItemID)
	}

	catalog, err := s.items.GetItems(ctx, itemIDs)
	if err != nil {
		return nil, err
	}

	sellerIDs := make([]string, 0, len(catalog))
	for _, item := range catalog {
		sellerIDs = append(sellerIDs, item.SellerID)
	}
	sellers, err := s.accounts.GetAccounts(ctx, sellerIDs)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	lines := make([]domain.OrderLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		item, ok := catalog[l.ItemID]
		if !ok {
			return nil, domain.Validationf("item %s not found", l.ItemID)
		}
		if _, ok := sellers[item.SellerID]; !ok {
			return nil, domain.Validationf("seller of item %s not found", l.ItemID)
		}
		if l.Price != nil && !l.Price.Equal(item.Price) {
			return nil, domain.Validationf("price of item %s has changed", l.ItemID)
		}
		if l.SellerID != "" && l.SellerID != item.SellerID {
			return nil, domain.Validationf("seller of item %s does not match", l.ItemID)
		}

		lines = append(lines, domain.OrderLine{
			ID:        uuid.NewString(),
			ItemID:    item.ID,
			Quantity:  l.Quantity,
			Price:     item.Price,
			SellerID:  item.SellerID,
			Status:    domain.LineStatusPending,
			UpdatedAt: now,
		})
	}

	total := domain.ComputeTotal(lines)
	if req.TotalAmount != nil && !req.TotalAmount.Equal(total) {
		return nil, domain.Validationf("total_amount %s does not match line total %s", req.TotalAmount.String(), total.String())
	}

	otp, err := s.otp()
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:              uuid.NewString(),
		BuyerID:         buyerID,
		Lines:           lines,
		TotalAmount:     total,
		OTPHash:         auth.HashOTP(otp),
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.logger.Error("Failed to save order",
			zap.String("order_id", order.ID),
			zap.Error(err))
		return nil, err
	}

	event := events.OrderCreatedEvent{
		EventID:     uuid.NewString(),
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		SellerIDs:   order.SellerIDs(),
		TotalAmount: order.TotalAmount,
		Lines:       events.Summarize(order.Lines),
		Timestamp:   now,
		RequestID:   requestid.FromContext(ctx),
	}
	if err := s.producer.PublishOrderCreated(ctx, event); err != nil {
		// the order is already stored; publishing is best-effort
		s.logger.Error("Failed to publish event",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	s.logger.Info("Order created successfully",
		zap.String("order_id", order.ID),
		zap.String("buyer_id", order.BuyerID),
		zap.String("total_amount", order.TotalAmount.String()),
		zap.Int("lines", len(order.Lines)))

	views, err := s.resolve(ctx, []domain.Order{*order})
	if err != nil {
		return nil, err
	}
	return &domain.CreatedOrder{OrderView: views[0], OTP: otp}, nil
}

// GetOrder returns an order to its buyer or to any seller with a line in it.
func (s *OrderService) GetOrder(ctx context.Context, callerID, id string) (*domain.OrderView, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.IsParticipant(callerID) {
		return nil, domain.Forbiddenf("you are not a party to this order")
	}
	return s.view(ctx, order)
}

// ListOrders returns every order the caller bought from or sells in.
func (s *OrderService) ListOrders(ctx context.Context, callerID string) ([]domain.OrderView, error) {
	all, err := s.orders.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	mine := make([]domain.Order, 0, len(all))
	for i := range all {
		if all[i].IsParticipant(callerID) {
			mine = append(mine, all[i])
		}
	}
	return s.resolve(ctx, mine)
}

func (s *OrderService) ListByBuyer(ctx context.Context, callerID, buyerID string) ([]domain.OrderView, error) {
	if callerID != buyerID {
		return nil, domain.Forbiddenf("you can only list your own purchases")
	}
	orders, err := s.orders.ListOrdersByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, orders)
}

// ListBySeller returns the orders containing at least one line sold by
// sellerID.
func (s *OrderService) ListBySeller(ctx context.Context, callerID, sellerID string) ([]domain.OrderView, error) {
	if callerID != sellerID {
		return nil, domain.Forbiddenf("you can only list your own sales")
	}
	orders, err := s.orders.ListOrdersBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, orders)
}

func (s *OrderService) UpdateOrder(ctx context.Context, callerID, id string, patch domain.OrderPatch) (*domain.OrderView, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != callerID {
		return nil, domain.Forbiddenf("only the buyer can modify this order")
	}

	patch.Apply(order)
	order.UpdatedAt = s.now().UTC()

	if err := s.orders.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("Order updated", zap.String("order_id", id))
	return s.view(ctx, order)
}

// UpdateLineStatus sets the status of one line. Moving a line to delivered
// requires the order's OTP; a mismatch fails with InvalidOTP and changes
// nothing. The line's seller may set any status; the buyer may only cancel.
func (s *OrderService) UpdateLineStatus(ctx context.Context, callerID, orderID, lineID string, req domain.UpdateLineStatusRequest) (*domain.OrderView, error) {
	if !req.Status.Valid() {
		return nil, domain.Validationf("unknown status %q", req.Status)
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	idx := order.LineIndex(lineID)
	if idx < 0 {
		return nil, domain.NotFound("order line")
	}
	line := order.Lines[idx]

	switch {
	case line.SellerID == callerID:
	case order.BuyerID == callerID && req.Status == domain.LineStatusCancelled:
	default:
		return nil, domain.Forbiddenf("you cannot change the status of this line")
	}

	if req.Status == domain.LineStatusDelivered {
		if req.OTP == "" {
			return nil, &domain.Error{Kind: domain.KindInvalidOTP, Message: "otp is required to confirm delivery"}
		}
		if !auth.VerifyOTP(req.OTP, order.OTPHash) {
			s.logger.Warn("Delivery OTP mismatch",
				zap.String("order_id", orderID),
				zap.String("line_id", lineID),
				zap.String("caller_id", callerID))
			return nil, &domain.Error{Kind: domain.KindInvalidOTP, Message: "invalid OTP"}
		}
	}

	now := s.now().UTC()
	if err := s.orders.UpdateLineStatus(ctx, orderID, lineID, req.Status, now); err != nil {
		return nil, err
	}

	event := events.LineStatusChangedEvent{
		EventID:   uuid.NewString(),
		OrderID:   orderID,
		LineID:    lineID,
		SellerID:  line.SellerID,
		From:      line.Status,
		To:        req.Status,
		ChangedBy: callerID,
		Timestamp: now,
		RequestID: requestid.FromContext(ctx),
	}
	if err := s.producer.PublishLineStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish event",
			zap.String("order_id", orderID),
			zap.Error(err))
	}

	s.logger.Info("Order line status updated",
		zap.String("order_id", orderID),
		zap.String("line_id", lineID),
		zap.String("from", string(line.Status)),
		zap.String("to", string(req.Status)))

	updated, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, updated)
}

func (s *OrderService) DeleteOrder(ctx context.Context, callerID, id string) error {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if order.BuyerID != callerID {
		return domain.Forbiddenf("only the buyer can delete this order")
	}

	if err := s.orders.DeleteOrder(ctx, id); err != nil {
		return err
	}

	event := events.OrderDeletedEvent{
		EventID:   uuid.NewString(),
		OrderID:   id,
		DeletedBy: callerID,
		Timestamp: s.now().UTC(),
		RequestID: requestid.FromContext(ctx),
	}
	if err := s.producer.PublishOrderDeleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish event",
			zap.String("order_id", id),
			zap.Error(err))
	}

	s.logger.Info("Order deleted", zap.String("order_id", id))
	return nil
}

func (s *OrderService) view(ctx context.Context, order *domain.Order) (*domain.OrderView, error) {
	views, err := s.resolve(ctx, []domain.Order{*order})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// resolve joins buyers and catalog items onto orders with one batched fetch
// per collection. Missing references resolve to nil.
func (s *OrderService) resolve(ctx context.Context, orders []domain.Order) ([]domain.OrderView, error) {
	buyerSet := make(map[string]struct{})
	itemSet := make(map[string]struct{})
	for _, o := range orders {
		buyerSet[o.BuyerID] = struct{}{}
		for _, l := range o.Lines {
			itemSet[l.ItemID] = struct{}{}
		}
	}

	buyers, err := s.accounts.GetAccounts(ctx, keys(buyerSet))
	if err != nil {
		return nil, err
	}
	items, err := s.items.GetItems(ctx, keys(itemSet))
	if err != nil {
		return nil, err
	}

	views := make([]domain.OrderView, 0, len(orders))
	for _, o := range orders {
		v := domain.OrderView{
			ID:              o.ID,
			BuyerID:         o.BuyerID,
			Lines:           make([]domain.OrderLineView, 0, len(o.Lines)),
			TotalAmount:     o.TotalAmount,
			ShippingAddress: o.ShippingAddress,
			Notes:           o.Notes,
			CreatedAt:       o.CreatedAt,
			UpdatedAt:       o.UpdatedAt,
		}
		if b, ok := buyers[o.BuyerID]; ok {
			pub := b.Public()
			v.Buyer = &pub
		}
		for _, l := range o.Lines {
			v.Lines = append(v.Lines, domain.OrderLineView{OrderLine: l, Item: items[l.ItemID]})
		}
		views = append(views, v)
	}
	return views, nil
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
