package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "pending"
	StatusShipped   = "shipped"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"

	PaymentPending = "pending"
	PaymentCOD     = "cod"
)

// transitions lists the statuses reachable from each status. Delivered and
// cancelled are terminal.
var transitions = map[string][]string{
	StatusPending: {StatusShipped, StatusCancelled},
	StatusShipped: {StatusDelivered},
}

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Line is a purchased product with its price captured at checkout.
type Line struct {
	ProductID int             `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Total sums the captured subtotals of lines.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

type ShippingDetails struct {
	Address string `json:"address" validate:"required"`
	City    string `json:"city"`
	ZipCode string `json:"zipCode"`
	Phone   string `json:"phone"`
}

// Order is immutable after creation except for its status.
type Order struct {
	ID              int             `json:"id"`
	UserID          int             `json:"userId"`
	Items           []Line          `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"paymentStatus"`
	PaymentMethod   string          `json:"paymentMethod"`
	ShippingDetails ShippingDetails `json:"shippingDetails"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// New builds a pending cash-on-delivery order whose total is derived from lines.
func New(userID int, lines []Line, shipping ShippingDetails) Order {
	items := make([]Line, len(lines))
	copy(items, lines)
	return Order{
		UserID:          userID,
		Items:           items,
		TotalAmount:     Total(items),
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		PaymentMethod:   PaymentCOD,
		ShippingDetails: shipping,
	}
}

type Filter struct {
	Status string
}
