package storefronttest

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

type addressBody struct {
	ReceiverName  string `json:"receiverName"`
	ReceiverPhone string `json:"receiverPhone"`
	Province      string `json:"province"`
	City          string `json:"city"`
	District      string `json:"district"`
	DetailAddress string `json:"detailAddress"`
	PostalCode    string `json:"postalCode"`
	IsDefault     *int   `json:"isDefault"`
}

// missing names the first required field left blank.
func (a addressBody) missing() string {
	for _, f := range []struct{ name, value string }{
		{"receiverName", a.ReceiverName},
		{"receiverPhone", a.ReceiverPhone},
		{"province", a.Province},
		{"city", a.City},
		{"detailAddress", a.DetailAddress},
		{"postalCode", a.PostalCode},
	} {
		if strings.TrimSpace(f.value) == "" {
			return f.name
		}
	}
	return ""
}

func (a *address) apply(body addressBody, now time.Time) {
	a.ReceiverName = body.ReceiverName
	a.ReceiverPhone = body.ReceiverPhone
	a.Province = body.Province
	a.City = body.City
	a.District = body.District
	a.DetailAddress = body.DetailAddress
	a.PostalCode = body.PostalCode
	a.UpdatedAt = now
}

func (a *address) response(userID int64) map[string]any {
	isDefault := 0
	if a.Default {
		isDefault = 1
	}
	return map[string]any{
		"id":            a.ID,
		"userId":        userID,
		"receiverName":  a.ReceiverName,
		"receiverPhone": a.ReceiverPhone,
		"province":      a.Province,
		"city":          a.City,
		"district":      a.District,
		"detailAddress": a.DetailAddress,
		"postalCode":    a.PostalCode,
		"isDefault":     isDefault,
		"createdAt":     a.CreatedAt.Format(time.RFC3339),
		"updatedAt":     a.UpdatedAt.Format(time.RFC3339),
	}
}

func (b *Backend) addressLocked(userID, addressID int64) *address {
	for _, a := range b.addresses[userID] {
		if a.ID == addressID {
			return a
		}
	}
	return nil
}

// addressByRefLocked resolves the string form orders carry.
func (b *Backend) addressByRefLocked(userID int64, ref string) *address {
	id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
	if err != nil {
		return nil
	}
	return b.addressLocked(userID, id)
}

func (b *Backend) makeDefaultLocked(userID int64, target *address) {
	for _, a := range b.addresses[userID] {
		a.Default = a == target
	}
}

// AddressCount is the number of saved addresses of the user.
func (b *Backend) AddressCount(userID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.addresses[userID])
}

func (b *Backend) handleAddressList(w http.ResponseWriter, r *http.Request) {
	userID := authUserID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]any, 0, len(b.addresses[userID]))
	for _, a := range b.addresses[userID] {
		out = append(out, a.response(userID))
	}
	writeSuccess(w, out)
}

func (b *Backend) handleAddressDefault(w http.ResponseWriter, r *http.Request) {
	userID := authUserID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.addresses[userID] {
		if a.Default {
			writeSuccess(w, a.response(userID))
			return
		}
	}
	writeError(w, http.StatusNotFound, "Default address not found")
}

func (b *Backend) handleAddressCreate(w http.ResponseWriter, r *http.Request) {
	var body addressBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if field := body.missing(); field != "" {
		writeError(w, http.StatusBadRequest, field+" is required")
		return
	}
	userID := authUserID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now().UTC()
	b.nextAddressID++
	a := &address{ID: b.nextAddressID, CreatedAt: now}
	a.apply(body, now)
	first := len(b.addresses[userID]) == 0
	b.addresses[userID] = append(b.addresses[userID], a)
	if first || (body.IsDefault != nil && *body.IsDefault == 1) {
		b.makeDefaultLocked(userID, a)
	}
	writeSuccess(w, a.response(userID))
}

func (b *Backend) handleAddressUpdate(w http.ResponseWriter, r *http.Request) {
	addressID, ok := pathID(r, "addressID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address id")
		return
	}
	var body addressBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if field := body.missing(); field != "" {
		writeError(w, http.StatusBadRequest, field+" is required")
		return
	}
	userID := authUserID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.addressLocked(userID, addressID)
	if a == nil {
		writeError(w, http.StatusNotFound, "Address not found")
		return
	}
	a.apply(body, b.now().UTC())
	if body.IsDefault != nil && *body.IsDefault == 1 {
		b.makeDefaultLocked(userID, a)
	}
	writeSuccess(w, a.response(userID))
}

func (b *Backend) handleAddressDelete(w http.ResponseWriter, r *http.Request) {
	addressID, ok := pathID(r, "addressID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address id")
		return
	}
	userID := authUserID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.addresses[userID]
	for i, a := range list {
		if a.ID != addressID {
			continue
		}
		list = append(list[:i:i], list[i+1:]...)
		b.addresses[userID] = list
		// The oldest remaining address inherits the default.
		if a.Default && len(list) > 0 {
			b.makeDefaultLocked(userID, list[0])
		}
		writeSuccess(w, nil)
		return
	}
	writeError(w, http.StatusNotFound, "Address not found")
}

func (b *Backend) handleAddressSetDefault(w http.ResponseWriter, r *http.Request) {
	addressID, ok := pathID(r, "addressID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address id")
		return
	}
	userID := authUserID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.addressLocked(userID, addressID)
	if a == nil {
		writeError(w, http.StatusNotFound, "Address not found")
		return
	}
	b.makeDefaultLocked(userID, a)
	writeSuccess(w, a.response(userID))
}
