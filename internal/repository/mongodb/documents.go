package mongodb

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
)

type accountDoc struct {
	ID           string    `bson:"_id"`
	FirstName    string    `bson:"first_name"`
	LastName     string    `bson:"last_name"`
	Email        string    `bson:"email"`
	Phone        string    `bson:"phone"`
	Age          *int      `bson:"age,omitempty"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

type itemDoc struct {
	ID          string               `bson:"_id"`
	Name        string               `bson:"name"`
	Description string               `bson:"description"`
	Price       primitive.Decimal128 `bson:"price"`
	Category    string               `bson:"category"`
	Stock       int                  `bson:"stock"`
	SellerID    string               `bson:"seller_id"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

type orderLineDoc struct {
	ID        string               `bson:"id"`
	ItemID    string               `bson:"item_id"`
	Quantity  int                  `bson:"quantity"`
	Price     primitive.Decimal128 `bson:"price"`
	SellerID  string               `bson:"seller_id"`
	Status    string               `bson:"status"`
	UpdatedAt time.Time            `bson:"updated_at"`
}

type orderDoc struct {
	ID              string               `bson:"_id"`
	BuyerID         string               `bson:"buyer_id"`
	Lines           []orderLineDoc       `bson:"lines"`
	TotalAmount     primitive.Decimal128 `bson:"total_amount"`
	OTPHash         string               `bson:"otp_hash"`
	ShippingAddress string               `bson:"shipping_address"`
	Notes           string               `bson:"notes"`
	CreatedAt       time.Time            `bson:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("decimal %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(v.String())
}

func toAccountDoc(a *domain.Account) accountDoc {
	return accountDoc{
		ID:           a.ID,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Email:        a.Email,
		Phone:        a.Phone,
		Age:          a.Age,
		PasswordHash: a.PasswordHash,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (d accountDoc) toDomain() domain.Account {
	return domain.Account{
		ID:           d.ID,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Email:        d.Email,
		Phone:        d.Phone,
		Age:          d.Age,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func toItemDoc(i *domain.CatalogItem) (itemDoc, error) {
	price, err := toDecimal128(i.Price)
	if err != nil {
		return itemDoc{}, err
	}
	return itemDoc{
		ID:          i.ID,
		Name:        i.Name,
		Description: i.Description,
		Price:       price,
		Category:    string(i.Category),
		Stock:       i.Stock,
		SellerID:    i.SellerID,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}, nil
}

func (d itemDoc) toDomain() (domain.CatalogItem, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return domain.CatalogItem{}, err
	}
	return domain.CatalogItem{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Price:       price,
		Category:    domain.Category(d.Category),
		Stock:       d.Stock,
		SellerID:    d.SellerID,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func toOrderDoc(o *domain.Order) (orderDoc, error) {
	total, err := toDecimal128(o.TotalAmount)
	if err != nil {
		return orderDoc{}, err
	}

	lines := make([]orderLineDoc, 0, len(o.Lines))
	for _, l := range o.Lines {
		price, err := toDecimal128(l.Price)
		if err != nil {
			return orderDoc{}, err
		}
		lines = append(lines, orderLineDoc{
			ID:        l.ID,
			ItemID:    l.ItemID,
			Quantity:  l.Quantity,
			Price:     price,
			SellerID:  l.SellerID,
			Status:    string(l.Status),
			UpdatedAt: l.UpdatedAt,
		})
	}

	return orderDoc{
		ID:              o.ID,
		BuyerID:         o.BuyerID,
		Lines:           lines,
		TotalAmount:     total,
		OTPHash:         o.OTPHash,
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}, nil
}

func (d orderDoc) toDomain() (domain.Order, error) {
	total, err := fromDecimal128(d.TotalAmount)
	if err != nil {
		return domain.Order{}, err
	}

	lines := make([]domain.OrderLine, 0, len(d.Lines))
	for _, l := range d.Lines {
		price, err := fromDecimal128(l.Price)
		if err != nil {
			return domain.Order{}, err
		}
		lines = append(lines, domain.OrderLine{
			ID:        l.ID,
			ItemID:    l.ItemID,
			Quantity:  l.Quantity,
			Price:     price,
			SellerID:  l.SellerID,
			Status:    domain.LineStatus(l.Status),
			UpdatedAt: l.UpdatedAt,
		})
	}

	return domain.Order{
		ID:              d.ID,
		BuyerID:         d.BuyerID,
		Lines:           lines,
		TotalAmount:     total,
		OTPHash:         d.OTPHash,
		ShippingAddress: d.ShippingAddress,
		Notes:           d.Notes,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}
