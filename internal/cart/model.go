package cart

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Product is the product snapshot embedded in a cart row.
type Product struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"productId,omitempty"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock,omitempty"`
	MainImage string          `json:"mainImage,omitempty"`
}

// Item is one cart row. Selected is 1 or 0 on the wire.
type Item struct {
	ID         int64   `json:"id"`
	CartItemID int64   `json:"cartItemId,omitempty"`
	UserID     int64   `json:"userId,omitempty"`
	ProductID  int64   `json:"productId"`
	Product    Product `json:"product"`
	Quantity   int     `json:"quantity"`
	Selected   int     `json:"selected"`
}

// RowID is the identifier used by the cart item endpoints.
func (i Item) RowID() int64 {
	if i.ID != 0 {
		return i.ID
	}
	return i.CartItemID
}

func (i Item) IsSelected() bool {
	return i.Selected == 1
}

// LineTotal is price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// wireCart is the server representation. Aggregates are optional and
// older servers report totalPrice instead of totalAmount.
type wireCart struct {
	Items          []Item              `json:"items"`
	TotalItems     *int                `json:"totalItems"`
	TotalAmount    decimal.NullDecimal `json:"totalAmount"`
	TotalPrice     decimal.NullDecimal `json:"totalPrice"`
	SelectedAmount decimal.NullDecimal `json:"selectedAmount"`
	SelectedCount  *int                `json:"selectedCount"`
}

// Snapshot is the client mirror of the server cart.
type Snapshot struct {
	Items          []Item          `json:"items"`
	TotalItems     int             `json:"totalItems"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	SelectedAmount decimal.Decimal `json:"selectedAmount"`
	SelectedCount  int             `json:"selectedCount"`
}

// Empty reports whether the snapshot holds no rows.
func (s Snapshot) Empty() bool {
	return len(s.Items) == 0
}

// Item returns the row with the given id.
func (s Snapshot) Item(cartItemID int64) (Item, bool) {
	for _, item := range s.Items {
		if item.RowID() == cartItemID {
			return item, true
		}
	}
	return Item{}, false
}

// Consistent reports whether the selected aggregates match the selected rows.
func (s Snapshot) Consistent() bool {
	amount, count := selectedTotals(s.Items)
	return amount.Equal(s.SelectedAmount) && count == s.SelectedCount
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Items = append([]Item(nil), s.Items...)
	return out
}

// withSelection flips one row and recomputes the selected aggregates from the rows.
func (s Snapshot) withSelection(cartItemID int64, selected bool) (Snapshot, bool) {
	out := s.clone()
	found := false
	for i := range out.Items {
		if out.Items[i].RowID() == cartItemID {
			out.Items[i].Selected = selectedFlag(selected)
			found = true
		}
	}
	if !found {
		return s, false
	}
	out.SelectedAmount, out.SelectedCount = selectedTotals(out.Items)
	return out, true
}

func selectedTotals(items []Item) (decimal.Decimal, int) {
	amount := decimal.Zero
	count := 0
	for _, item := range items {
		if item.IsSelected() {
			amount = amount.Add(item.LineTotal())
			count++
		}
	}
	return amount, count
}

func selectedFlag(selected bool) int {
	if selected {
		return 1
	}
	return 0
}

// normalize converts a server cart into a snapshot, deriving whatever aggregates were omitted.
// The second result is false when the server's selected aggregates disagreed with its rows.
func normalize(w wireCart) (Snapshot, bool) {
	snap := Snapshot{Items: append([]Item(nil), w.Items...)}
	if snap.Items == nil {
		snap.Items = []Item{}
	}

	total := decimal.Zero
	quantity := 0
	for _, item := range snap.Items {
		total = total.Add(item.LineTotal())
		quantity += item.Quantity
	}
	switch {
	case w.TotalAmount.Valid:
		snap.TotalAmount = w.TotalAmount.Decimal
	case w.TotalPrice.Valid:
		snap.TotalAmount = w.TotalPrice.Decimal
	default:
		snap.TotalAmount = total
	}
	snap.TotalItems = quantity
	if w.TotalItems != nil {
		snap.TotalItems = *w.TotalItems
	}

	derivedAmount, derivedCount := selectedTotals(snap.Items)
	snap.SelectedAmount, snap.SelectedCount = derivedAmount, derivedCount
	agreed := true
	if w.SelectedAmount.Valid && !w.SelectedAmount.Decimal.Equal(derivedAmount) {
		agreed = false
	}
	if w.SelectedCount != nil && *w.SelectedCount != derivedCount {
		agreed = false
	}
	return snap, agreed
}

func decodeCart(raw json.RawMessage) (*wireCart, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var w wireCart
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	return &w, nil
}
