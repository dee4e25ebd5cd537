package orders

import (
	"github.com/bugisthegod/techmart-storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

// OrderRequest is the checkout payload. The order is built from the selected cart rows.
type OrderRequest struct {
	AddressID   string            `json:"addressId,omitempty" validate:"max=64"`
	FreightType enums.FreightType `json:"freightType,omitempty"`
	Comment     string            `json:"comment,omitempty" validate:"max=500"`
}

type OrderItem struct {
	OrderID      int64           `json:"orderId"`
	OrderNo      string          `json:"orderNo"`
	ProductID    int64           `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductImage string          `json:"productImage,omitempty"`
	ProductPrice decimal.Decimal `json:"productPrice"`
	Quantity     int             `json:"quantity"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
}

type Order struct {
	ID            int64             `json:"id"`
	OrderNo       string            `json:"orderNo"`
	UserID        int64             `json:"userId"`
	Status        enums.OrderStatus `json:"status"`
	TotalAmount   decimal.Decimal   `json:"totalAmount"`
	PayAmount     decimal.Decimal   `json:"payAmount"`
	FreightAmount decimal.Decimal   `json:"freightAmount"`
	AddressID     string            `json:"addressId,omitempty"`
	FreightType   enums.FreightType `json:"freightType,omitempty"`
	Comment       string            `json:"comment,omitempty"`
	Items         []OrderItem       `json:"items"`
	CreatedAt     string            `json:"createdAt,omitempty"`
}

// ItemsTotal sums the line totals of the order.
func (o Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.TotalAmount)
	}
	return total
}
