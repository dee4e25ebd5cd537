package storefronttest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
)

type productResponse struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Stock     int         `json:"stock"`
	MainImage string      `json:"mainImage"`
}

type cartItemResponse struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"userId"`
	ProductID int64           `json:"productId"`
	Product   productResponse `json:"product"`
	Quantity  int             `json:"quantity"`
	Selected  int             `json:"selected"`
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// cartLocked renders the user's cart. Callers hold b.mu.
func (b *Backend) cartLocked(userID int64) map[string]any {
	items := make([]cartItemResponse, 0, len(b.carts[userID]))
	total := decimal.Zero
	selectedAmount := decimal.Zero
	totalItems, selectedCount := 0, 0
	for _, item := range b.carts[userID] {
		p := b.products[item.ProductID]
		line := p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
		totalItems += item.Quantity
		selected := 0
		if item.Selected {
			selected = 1
			selectedAmount = selectedAmount.Add(line)
			selectedCount++
		}
		items = append(items, cartItemResponse{
			ID:        item.ID,
			UserID:    userID,
			ProductID: p.ID,
			Product:   productResponse{ID: p.ID, Name: p.Name, Price: money(p.Price), Stock: p.Stock, MainImage: p.MainImage},
			Quantity:  item.Quantity,
			Selected:  selected,
		})
	}
	if b.omitAggregates {
		return map[string]any{"items": items}
	}
	return map[string]any{
		"items":          items,
		"totalItems":     totalItems,
		"totalPrice":     money(total),
		"selectedAmount": money(selectedAmount),
		"selectedCount":  selectedCount,
	}
}

func (b *Backend) findItemLocked(userID, cartItemID int64) (*cartItem, int) {
	for i, item := range b.carts[userID] {
		if item.ID == cartItemID {
			return item, i
		}
	}
	return nil, -1
}

func (b *Backend) handleCartLoad(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeSuccess(w, b.cartLocked(authUserID(r)))
}

func (b *Backend) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID int64 `json:"productId"`
		Quantity  int   `json:"quantity"`
		Selected  *int  `json:"selected"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Quantity < 1 {
		writeError(w, http.StatusBadRequest, "Quantity must be at least 1")
		return
	}

	userID := authUserID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.products[body.ProductID]
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	selected := body.Selected == nil || *body.Selected == 1

	for _, item := range b.carts[userID] {
		if item.ProductID == p.ID {
			if item.Quantity+body.Quantity > p.Stock {
				writeError(w, http.StatusBadRequest, "Insufficient stock")
				return
			}
			item.Quantity += body.Quantity
			item.Selected = selected
			writeSuccess(w, b.cartLocked(userID))
			return
		}
	}
	if body.Quantity > p.Stock {
		writeError(w, http.StatusBadRequest, "Insufficient stock")
		return
	}
	b.nextItemID++
	b.carts[userID] = append(b.carts[userID], &cartItem{ID: b.nextItemID, ProductID: p.ID, Quantity: body.Quantity, Selected: selected, CreatedAt: b.now()})
	writeSuccess(w, b.cartLocked(userID))
}

func (b *Backend) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	cartItemID, ok := pathID(r, "cartItemID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid cart item id")
		return
	}
	userID := authUserID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	_, idx := b.findItemLocked(userID, cartItemID)
	if idx < 0 {
		writeError(w, http.StatusNotFound, "Cart item not found")
		return
	}
	items := b.carts[userID]
	b.carts[userID] = append(items[:idx:idx], items[idx+1:]...)
	writeSuccess(w, b.cartLocked(userID))
}

func (b *Backend) handleCartUpdate(w http.ResponseWriter, r *http.Request) {
	cartItemID, ok := pathID(r, "cartItemID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid cart item id")
		return
	}
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || quantity < 1 {
		writeError(w, http.StatusBadRequest, "Quantity must be at least 1")
		return
	}
	userID := authUserID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	item, _ := b.findItemLocked(userID, cartItemID)
	if item == nil {
		writeError(w, http.StatusNotFound, "Cart item not found")
		return
	}
	if quantity > b.products[item.ProductID].Stock {
		writeError(w, http.StatusBadRequest, "Insufficient stock")
		return
	}
	item.Quantity = quantity
	writeSuccess(w, b.cartLocked(userID))
}

func (b *Backend) handleCartSelect(w http.ResponseWriter, r *http.Request) {
	cartItemID, ok := pathID(r, "cartItemID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid cart item id")
		return
	}
	selected, err := strconv.Atoi(r.URL.Query().Get("selected"))
	if err != nil || (selected != 0 && selected != 1) {
		writeError(w, http.StatusBadRequest, "selected must be 0 or 1")
		return
	}
	userID := authUserID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	item, _ := b.findItemLocked(userID, cartItemID)
	if item == nil {
		writeError(w, http.StatusNotFound, "Cart item not found")
		return
	}
	item.Selected = selected == 1
	if b.bareSelect {
		writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Msg: "success"})
		return
	}
	writeSuccess(w, b.cartLocked(userID))
}

func (b *Backend) handleCartClear(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.carts[authUserID(r)] = nil
	b.mu.Unlock()
	writeSuccess(w, map[string]any{})
}
