package product

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Stock is never negative once a write commits.
type Product struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Sizes       []string        `json:"sizes"`
	Colors      []string        `json:"colors"`
	Images      []string        `json:"images"`
	Stock       int             `json:"stock"`
	Rating      float64         `json:"rating"`
	NumReviews  int             `json:"numReviews"`
	Reviews     []Review        `json:"reviews,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type Review struct {
	ID        int       `json:"id"`
	UserID    int       `json:"userId"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating" validate:"gte=1,lte=5"`
	Comment   string    `json:"comment" validate:"max=2000"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary is the slice of product data shown next to a cart line.
type Summary struct {
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Images []string        `json:"images"`
	Stock  int             `json:"stock"`
}

func (p Product) Summary() Summary {
	return Summary{Name: p.Name, Price: p.Price, Images: p.Images, Stock: p.Stock}
}

// Patch lists the fields an admin may change. Rating and reviews are
// maintained by the system and cannot be patched.
type Patch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	Stock       *int             `json:"stock"`
	Images      *[]string        `json:"images"`
	Sizes       *[]string        `json:"sizes"`
	Colors      *[]string        `json:"colors"`
}

func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.Category == nil &&
		p.Stock == nil && p.Images == nil && p.Sizes == nil && p.Colors == nil
}

func (p Patch) apply(to *Product) {
	if p.Name != nil {
		to.Name = *p.Name
	}
	if p.Description != nil {
		to.Description = *p.Description
	}
	if p.Price != nil {
		to.Price = *p.Price
	}
	if p.Category != nil {
		to.Category = *p.Category
	}
	if p.Stock != nil {
		to.Stock = *p.Stock
	}
	if p.Images != nil {
		to.Images = *p.Images
	}
	if p.Sizes != nil {
		to.Sizes = *p.Sizes
	}
	if p.Colors != nil {
		to.Colors = *p.Colors
	}
}

const (
	SortNewest    = "newest"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortName      = "name"

	DefaultLimit = 20
	MaxLimit     = 100
)

type Filter struct {
	Category string
	Search   string
	Sort     string
	Limit    int
	Offset   int
}

func (f Filter) normalize() Filter {
	switch f.Sort {
	case SortNewest, SortPriceLow, SortPriceHigh, SortName:
	default:
		f.Sort = SortNewest
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

type Category struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
