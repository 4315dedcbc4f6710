package cart

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/wichananm65/marketplace-backend/internal/product"
)

// Line is one stored cart entry. A cart holds at most one line per product.
type Line struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

// Item is a line populated for display. Product is nil when the product has
// been deleted since it was added.
type Item struct {
	ProductID int              `json:"productId"`
	Quantity  int              `json:"quantity"`
	Product   *product.Summary `json:"product"`
}

type Cart struct {
	UserID    int             `json:"userId"`
	Items     []Item          `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	ItemCount int             `json:"itemCount"`
}

// LockKey is the lock.Locker key serializing one user's cart mutations.
func LockKey(userID int) string {
	return "cart:" + strconv.Itoa(userID)
}

func buildCart(userID int, lines []Line, products []product.Product) Cart {
	byID := make(map[int]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	c := Cart{UserID: userID, Items: make([]Item, 0, len(lines)), Subtotal: decimal.Zero}
	for _, l := range lines {
		item := Item{ProductID: l.ProductID, Quantity: l.Quantity}
		if p, ok := byID[l.ProductID]; ok {
			s := p.Summary()
			item.Product = &s
			c.Subtotal = c.Subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		c.ItemCount += l.Quantity
		c.Items = append(c.Items, item)
	}
	return c
}
