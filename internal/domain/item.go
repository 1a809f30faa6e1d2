package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryElectronics  Category = "Electronics"
	CategoryClothing     Category = "Clothing"
	CategoryBooks        Category = "Books"
	CategoryHomeGarden   Category = "Home & Garden"
	CategorySports       Category = "Sports"
	CategoryToys         Category = "Toys"
	CategoryHealthBeauty Category = "Health & Beauty"
	CategoryAutomotive   Category = "Automotive"
	CategoryOther        Category = "Other"
)

type CategoryInfo struct {
	ID   int      `json:"id"`
	Name Category `json:"name"`
}

var categories = []CategoryInfo{
	{ID: 1, Name: CategoryElectronics},
	{ID: 2, Name: CategoryClothing},
	{ID: 3, Name: CategoryBooks},
	{ID: 4, Name: CategoryHomeGarden},
	{ID: 5, Name: CategorySports},
	{ID: 6, Name: CategoryToys},
	{ID: 7, Name: CategoryHealthBeauty},
	{ID: 8, Name: CategoryAutomotive},
	{ID: 9, Name: CategoryOther},
}

// Categories returns the fixed category set. The slice is a copy.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categories))
	copy(out, categories)
	return out
}

func (c Category) Valid() bool {
	for _, info := range categories {
		if info.Name == c {
			return true
		}
	}
	return false
}

type CatalogItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    Category        `json:"category"`
	Stock       int             `json:"stock"`
	SellerID    string          `json:"seller_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Validate checks the field-level rules every stored item satisfies.
func (i *CatalogItem) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return Validationf("name is required")
	}
	if i.Price.IsNegative() {
		return Validationf("price must not be negative")
	}
	if i.Stock < 0 {
		return Validationf("stock must not be negative")
	}
	if !i.Category.Valid() {
		return Validationf("unknown category %q", i.Category)
	}
	return nil
}

type CreateItemRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    Category        `json:"category" binding:"required"`
	Stock       int             `json:"stock"`
}

type ItemPatch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *Category        `json:"category"`
	Stock       *int             `json:"stock"`
}

func (p ItemPatch) Apply(item *CatalogItem) {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Price != nil {
		item.Price = *p.Price
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.Stock != nil {
		item.Stock = *p.Stock
	}
}

// ItemFilter selects catalog items. Zero-valued fields do not constrain.
type ItemFilter struct {
	Text          string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	Category      Category
	ExcludeSeller string
}

// Matches reports whether item passes every constraint of f. Text matches a
// case-insensitive substring of the name or the description.
func (f ItemFilter) Matches(item *CatalogItem) bool {
	if f.ExcludeSeller != "" && item.SellerID == f.ExcludeSeller {
		return false
	}
	if f.Category != "" && item.Category != f.Category {
		return false
	}
	if f.MinPrice != nil && item.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && item.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.Text != "" {
		needle := strings.ToLower(f.Text)
		if !strings.Contains(strings.ToLower(item.Name), needle) &&
			!strings.Contains(strings.ToLower(item.Description), needle) {
			return false
		}
	}
	return true
}
