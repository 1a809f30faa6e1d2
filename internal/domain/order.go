package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LineStatus string

const (
	LineStatusPending    LineStatus = "pending"
	LineStatusProcessing LineStatus = "processing"
	LineStatusShipped    LineStatus = "shipped"
	LineStatusDelivered  LineStatus = "delivered"
	LineStatusCancelled  LineStatus = "cancelled"
)

func (s LineStatus) Valid() bool {
	switch s {
	case LineStatusPending, LineStatusProcessing, LineStatusShipped,
		LineStatusDelivered, LineStatusCancelled:
		return true
	}
	return false
}

type Order struct {
	ID              string          `json:"id"`
	BuyerID         string          `json:"buyer_id"`
	Lines           []OrderLine     `json:"lines"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	OTPHash         string          `json:"-"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderLine snapshots price and seller at order creation; later catalog
// edits do not reach it.
type OrderLine struct {
	ID        string          `json:"id"`
	ItemID    string          `json:"item_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	SellerID  string          `json:"seller_id"`
	Status    LineStatus      `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func ComputeTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// LineIndex returns the index of the line with the given id, or -1.
func (o *Order) LineIndex(lineID string) int {
	for i := range o.Lines {
		if o.Lines[i].ID == lineID {
			return i
		}
	}
	return -1
}

func (o *Order) HasSeller(sellerID string) bool {
	for _, l := range o.Lines {
		if l.SellerID == sellerID {
			return true
		}
	}
	return false
}

// SellerIDs returns the distinct sellers of the order in line order.
func (o *Order) SellerIDs() []string {
	seen := make(map[string]struct{}, len(o.Lines))
	ids := make([]string, 0, len(o.Lines))
	for _, l := range o.Lines {
		if _, ok := seen[l.SellerID]; ok {
			continue
		}
		seen[l.SellerID] = struct{}{}
		ids = append(ids, l.SellerID)
	}
	return ids
}

func (o *Order) IsParticipant(accountID string) bool {
	return o.BuyerID == accountID || o.HasSeller(accountID)
}

type CreateOrderLine struct {
	ItemID   string           `json:"item_id" binding:"required"`
	Quantity int              `json:"quantity"`
	Price    *decimal.Decimal `json:"price"`
	SellerID string           `json:"seller_id"`
}

type CreateOrderRequest struct {
	Lines           []CreateOrderLine `json:"lines" binding:"required,min=1,dive"`
	TotalAmount     *decimal.Decimal  `json:"total_amount"`
	ShippingAddress string            `json:"shipping_address"`
	Notes           string            `json:"notes"`
}

type OrderPatch struct {
	ShippingAddress *string `json:"shipping_address"`
	Notes           *string `json:"notes"`
}

func (p OrderPatch) Apply(o *Order) {
	if p.ShippingAddress != nil {
		o.ShippingAddress = *p.ShippingAddress
	}
	if p.Notes != nil {
		o.Notes = *p.Notes
	}
}

type UpdateLineStatusRequest struct {
	Status LineStatus `json:"status" binding:"required"`
	OTP    string     `json:"otp"`
}

// OrderView is an order with its buyer and line items resolved for display.
// Item is nil when the referenced catalog item no longer exists.
type OrderView struct {
	ID              string          `json:"id"`
	Buyer           *Account        `json:"buyer"`
	BuyerID         string          `json:"buyer_id"`
	Lines           []OrderLineView `json:"lines"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type OrderLineView struct {
	OrderLine
	Item *CatalogItem `json:"item"`
}

// CreatedOrder is the only representation that carries the plaintext OTP.
type CreatedOrder struct {
	OrderView
	OTP string `json:"otp"`
}
