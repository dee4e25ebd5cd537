package enums

import "fmt"

// OrderStatus is the numeric order lifecycle code reported by the backend.
type OrderStatus int

const (
	OrderStatusPending   OrderStatus = 0
	OrderStatusPaid      OrderStatus = 1
	OrderStatusShipped   OrderStatus = 2
	OrderStatusCompleted OrderStatus = 3
	OrderStatusCancelled OrderStatus = 4
)

var orderStatusNames = map[OrderStatus]string{
	OrderStatusPending:   "pending",
	OrderStatusPaid:      "paid",
	OrderStatusShipped:   "shipped",
	OrderStatusCompleted: "completed",
	OrderStatusCancelled: "cancelled",
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	_, ok := orderStatusNames[s]
	return ok
}

// ParseOrderStatus converts a status name into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for status, name := range orderStatusNames {
		if name == value {
			return status, nil
		}
	}
	return 0, fmt.Errorf("invalid order status %q", value)
}
