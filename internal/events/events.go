package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
)

type EventType string

const (
	TypeOrderCreated      EventType = "order.created"
	TypeLineStatusChanged EventType = "order.line_status_changed"
	TypeOrderDeleted      EventType = "order.deleted"
)

// OrderCreatedEvent never carries the OTP, hashed or not.
type OrderCreatedEvent struct {
	EventID     string          `json:"event_id"`
	OrderID     string          `json:"order_id"`
	BuyerID     string          `json:"buyer_id"`
	SellerIDs   []string        `json:"seller_ids"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Lines       []LineSummary   `json:"lines"`
	Timestamp   time.Time       `json:"timestamp"`
	RequestID   string          `json:"request_id"`
}

type LineSummary struct {
	LineID   string          `json:"line_id"`
	ItemID   string          `json:"item_id"`
	SellerID string          `json:"seller_id"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type LineStatusChangedEvent struct {
	EventID   string            `json:"event_id"`
	OrderID   string            `json:"order_id"`
	LineID    string            `json:"line_id"`
	SellerID  string            `json:"seller_id"`
	From      domain.LineStatus `json:"from"`
	To        domain.LineStatus `json:"to"`
	ChangedBy string            `json:"changed_by"`
	Timestamp time.Time         `json:"timestamp"`
	RequestID string            `json:"request_id"`
}

type OrderDeletedEvent struct {
	EventID   string    `json:"event_id"`
	OrderID   string    `json:"order_id"`
	DeletedBy string    `json:"deleted_by"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

func Summarize(lines []domain.OrderLine) []LineSummary {
	out := make([]LineSummary, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineSummary{
			LineID:   l.ID,
			ItemID:   l.ItemID,
			SellerID: l.SellerID,
			Quantity: l.Quantity,
			Price:    l.Price,
		})
	}
	return out
}
