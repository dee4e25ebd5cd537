package address

import (
	"strconv"
	"strings"

	"github.com/bugisthegod/techmart-storefront/internal/guard"
)

// Address is a saved delivery address. IsDefault is 1 for the user's default address.
type Address struct {
	ID            int64  `json:"id"`
	UserID        int64  `json:"userId"`
	ReceiverName  string `json:"receiverName"`
	ReceiverPhone string `json:"receiverPhone"`
	Province      string `json:"province"`
	City          string `json:"city"`
	District      string `json:"district"`
	DetailAddress string `json:"detailAddress"`
	PostalCode    string `json:"postalCode"`
	IsDefault     int    `json:"isDefault"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

func (a Address) Default() bool {
	return a.IsDefault == 1
}

// OrderID is the form orders reference the address by.
func (a Address) OrderID() string {
	return strconv.FormatInt(a.ID, 10)
}

// Request creates or replaces an address. A nil IsDefault leaves the default untouched.
type Request struct {
	ReceiverName  string `json:"receiverName" validate:"required,max=50"`
	ReceiverPhone string `json:"receiverPhone" validate:"required,max=20"`
	Province      string `json:"province" validate:"required,max=50"`
	City          string `json:"city" validate:"required,max=50"`
	District      string `json:"district" validate:"max=50"`
	DetailAddress string `json:"detailAddress" validate:"required,max=200"`
	PostalCode    string `json:"postalCode" validate:"required,max=20"`
	IsDefault     *int   `json:"isDefault,omitempty" validate:"omitempty,oneof=0 1"`
}

// clean trims every field and strips markup before validation.
func (r Request) clean() Request {
	text := func(v string) string { return strings.TrimSpace(guard.StripHTMLTags(v)) }
	r.ReceiverName = text(r.ReceiverName)
	r.ReceiverPhone = strings.TrimSpace(guard.SanitizePhone(r.ReceiverPhone))
	r.Province = text(r.Province)
	r.City = text(r.City)
	r.District = text(r.District)
	r.DetailAddress = text(r.DetailAddress)
	r.PostalCode = text(r.PostalCode)
	return r
}

// Preferred picks the address a checkout starts with: the default one, else the first.
func Preferred(list []Address) (Address, bool) {
	for _, a := range list {
		if a.Default() {
			return a, true
		}
	}
	if len(list) == 0 {
		return Address{}, false
	}
	return list[0], true
}
