package address

import "time"

// Address is a saved shipping destination owned by one user.
type Address struct {
	ID        int       `json:"id"`
	UserID    int       `json:"userId"`
	Label     string    `json:"label"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	ZipCode   string    `json:"zipCode"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Input is the client-editable part of an address.
type Input struct {
	Label   string `json:"label" validate:"max=60"`
	Address string `json:"address" validate:"required,max=500"`
	City    string `json:"city" validate:"max=120"`
	ZipCode string `json:"zipCode" validate:"max=20"`
	Phone   string `json:"phone" validate:"max=30"`
}

func (a *Address) apply(in Input) {
	a.Label = in.Label
	a.Address = in.Address
	a.City = in.City
	a.ZipCode = in.ZipCode
	a.Phone = in.Phone
}
