package storefronttest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bugisthegod/techmart-storefront/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var freightByType = map[string]decimal.Decimal{
	"":         decimal.Zero,
	"standard": decimal.Zero,
	"express":  decimal.RequireFromString("15.00"),
}

type orderItemResponse struct {
	OrderID      int64       `json:"orderId"`
	OrderNo      string      `json:"orderNo"`
	ProductID    int64       `json:"productId"`
	ProductName  string      `json:"productName"`
	ProductImage string      `json:"productImage"`
	ProductPrice json.Number `json:"productPrice"`
	Quantity     int         `json:"quantity"`
	TotalAmount  json.Number `json:"totalAmount"`
}

func (o *order) response() map[string]any {
	total := decimal.Zero
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		line := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		total = total.Add(line)
		items = append(items, orderItemResponse{
			OrderID:      o.ID,
			OrderNo:      o.OrderNo,
			ProductID:    it.ProductID,
			ProductName:  it.Name,
			ProductImage: it.Image,
			ProductPrice: money(it.Price),
			Quantity:     it.Quantity,
			TotalAmount:  money(line),
		})
	}
	return map[string]any{
		"id":            o.ID,
		"orderNo":       o.OrderNo,
		"userId":        o.UserID,
		"status":        o.Status,
		"totalAmount":   money(total),
		"payAmount":     money(total.Add(o.FreightAmount)),
		"freightAmount": money(o.FreightAmount),
		"addressId":     o.AddressID,
		"freightType":   o.FreightType,
		"comment":       o.Comment,
		"items":         items,
		"createdAt":     o.CreatedAt.Format(time.RFC3339),
	}
}

func (b *Backend) handleOrderToken(w http.ResponseWriter, r *http.Request) {
	tok := uuid.NewString()
	b.mu.Lock()
	b.orderTokens[tok] = authUserID(r)
	b.mu.Unlock()
	writeSuccess(w, tok)
}

func (b *Backend) handleOrderCreate(w http.ResponseWriter, r *http.Request) {
	tok := strings.TrimSpace(r.Header.Get("Idempotency-Token"))
	if tok == "" {
		writeError(w, http.StatusBadRequest, "Missing Idempotency-Token header")
		return
	}
	var body struct {
		AddressID   string `json:"addressId"`
		FreightType string `json:"freightType"`
		Comment     string `json:"comment"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	freight, ok := freightByType[body.FreightType]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown freight type")
		return
	}

	userID := authUserID(r)
	b.mu.Lock()
	defer b.mu.Unlock()

	if orderID, replay := b.consumedTokens[tok]; replay {
		writeSuccess(w, b.orders[orderID].response())
		return
	}
	owner, known := b.orderTokens[tok]
	if !known || owner != userID {
		writeError(w, http.StatusBadRequest, "Invalid order token")
		return
	}
	if body.AddressID != "" && b.addressByRefLocked(userID, body.AddressID) == nil {
		writeError(w, http.StatusBadRequest, "Address not found")
		return
	}

	var kept []*cartItem
	var items []orderItem
	for _, item := range b.carts[userID] {
		if !item.Selected {
			kept = append(kept, item)
			continue
		}
		p := b.products[item.ProductID]
		items = append(items, orderItem{ProductID: p.ID, Name: p.Name, Image: p.MainImage, Price: p.Price, Quantity: item.Quantity})
	}
	if len(items) == 0 {
		writeError(w, http.StatusBadRequest, "No items selected")
		return
	}

	b.nextOrderID++
	o := &order{
		ID:            b.nextOrderID,
		OrderNo:       fmt.Sprintf("TM%s%04d", b.now().UTC().Format("20060102"), b.nextOrderID),
		UserID:        userID,
		Status:        OrderPending,
		AddressID:     body.AddressID,
		FreightType:   body.FreightType,
		Comment:       body.Comment,
		FreightAmount: freight,
		Items:         items,
		CreatedAt:     b.now().UTC(),
	}
	b.orders[o.ID] = o
	b.carts[userID] = kept
	delete(b.orderTokens, tok)
	b.consumedTokens[tok] = o.ID
	writeSuccess(w, o.response())
}

func (b *Backend) ownedOrderLocked(w http.ResponseWriter, r *http.Request) *order {
	id, ok := pathID(r, "orderID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return nil
	}
	o, ok := b.orders[id]
	if !ok || o.UserID != authUserID(r) {
		writeError(w, http.StatusNotFound, "Order not found")
		return nil
	}
	return o
}

func (b *Backend) handleOrderGet(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o := b.ownedOrderLocked(w, r); o != nil {
		writeSuccess(w, o.response())
	}
}

func (b *Backend) handleOrderList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	params := pagination.Normalize(pagination.Params{Page: page, Size: size})
	page, size = params.Page, params.Size
	var status *int
	if raw := q.Get("status"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		status = &v
	}

	userID := authUserID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	var matched []*order
	for _, o := range b.orders {
		if o.UserID != userID || (status != nil && o.Status != *status) {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	content := []map[string]any{}
	start := page * size
	for i := start; i < len(matched) && i < start+size; i++ {
		content = append(content, matched[i].response())
	}
	writeSuccess(w, map[string]any{
		"content":       content,
		"totalElements": len(matched),
		"totalPages":    (len(matched) + size - 1) / size,
		"size":          size,
		"number":        page,
	})
}

func (b *Backend) transition(w http.ResponseWriter, r *http.Request, from, to int, conflict string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := b.ownedOrderLocked(w, r)
	if o == nil {
		return
	}
	if o.Status != from {
		writeError(w, http.StatusConflict, conflict)
		return
	}
	o.Status = to
	writeSuccess(w, o.response())
}

func (b *Backend) handleOrderPay(w http.ResponseWriter, r *http.Request) {
	b.transition(w, r, OrderPending, OrderPaid, "Order cannot be paid")
}

func (b *Backend) handleOrderCancel(w http.ResponseWriter, r *http.Request) {
	b.transition(w, r, OrderPending, OrderCancelled, "Order cannot be cancelled")
}
