// Package storefronttest runs an in-process fake of the techmart REST backend for tests.
package storefronttest

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bugisthegod/techmart-storefront/pkg/config"
	"github.com/shopspring/decimal"
)

// Route names accepted by Fail, FailNetwork, Block and Calls.
const (
	RouteLogin       = "users.login"
	RouteRegister    = "users.register"
	RouteLogout      = "users.logout"
	RouteProfile     = "users.profile"
	RouteCartAdd     = "cart.add"
	RouteCartRemove  = "cart.remove"
	RouteCartUpdate  = "cart.update"
	RouteCartSelect  = "cart.select"
	RouteCartLoad    = "cart.load"
	RouteCartClear   = "cart.clear"
	RouteOrderToken  = "orders.token"
	RouteOrderCreate = "orders.create"
	RouteOrderGet    = "orders.get"
	RouteOrderList   = "orders.list"
	RouteOrderPay    = "orders.pay"
	RouteOrderCancel = "orders.cancel"

	RouteAddressList       = "addresses.list"
	RouteAddressDefault    = "addresses.default"
	RouteAddressCreate     = "addresses.create"
	RouteAddressUpdate     = "addresses.update"
	RouteAddressDelete     = "addresses.delete"
	RouteAddressSetDefault = "addresses.set_default"
)

// Order statuses used by the fake backend.
const (
	OrderPending   = 0
	OrderPaid      = 1
	OrderShipped   = 2
	OrderCompleted = 3
	OrderCancelled = 4
)

type user struct {
	ID           int64
	Username     string
	Email        string
	Phone        *string
	Avatar       *string
	PasswordHash []byte
	CreatedAt    time.Time
}

type product struct {
	ID        int64
	Name      string
	Price     decimal.Decimal
	Stock     int
	MainImage string
}

type cartItem struct {
	ID        int64
	ProductID int64
	Quantity  int
	Selected  bool
	CreatedAt time.Time
}

type order struct {
	ID            int64
	OrderNo       string
	UserID        int64
	Status        int
	AddressID     string
	FreightType   string
	Comment       string
	FreightAmount decimal.Decimal
	Items         []orderItem
	CreatedAt     time.Time
}

type orderItem struct {
	ProductID int64
	Name      string
	Image     string
	Price     decimal.Decimal
	Quantity  int
}

type address struct {
	ID            int64
	ReceiverName  string
	ReceiverPhone string
	Province      string
	City          string
	District      string
	DetailAddress string
	PostalCode    string
	Default       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type failure struct {
	status  int
	network bool
}

// Barrier parks requests to a route until released.
type Barrier struct {
	arrived  chan struct{}
	release  chan struct{}
	once     sync.Once
	released sync.Once
}

// Arrived is closed once the first request hits the barrier.
func (b *Barrier) Arrived() <-chan struct{} { return b.arrived }

// Release lets every parked and future request through.
func (b *Barrier) Release() { b.released.Do(func() { close(b.release) }) }

// Backend is the fake techmart API. All state is guarded by mu.
type Backend struct {
	server *httptest.Server
	issuer issuer

	// TokenTTL is the lifetime of tokens minted at login.
	TokenTTL time.Duration

	mu             sync.Mutex
	now            func() time.Time
	users          map[int64]*user
	usernames      map[string]int64
	products       map[int64]*product
	carts          map[int64][]*cartItem
	orderTokens    map[string]int64
	consumedTokens map[string]int64
	orders         map[int64]*order
	addresses      map[int64][]*address
	revoked        map[string]struct{}
	failures       map[string]failure
	barriers       map[string]*Barrier
	calls          map[string]int
	loginOverride  any
	omitAggregates bool
	bareSelect     bool
	nextUserID     int64
	nextItemID     int64
	nextOrderID    int64
	nextAddressID  int64
}

// NewBackend starts the fake backend and stops it when t finishes.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		issuer:         issuer{secret: []byte("storefronttest-secret"), name: "techmart"},
		TokenTTL:       time.Hour,
		now:            time.Now,
		users:          map[int64]*user{},
		usernames:      map[string]int64{},
		products:       map[int64]*product{},
		carts:          map[int64][]*cartItem{},
		orderTokens:    map[string]int64{},
		consumedTokens: map[string]int64{},
		orders:         map[int64]*order{},
		addresses:      map[int64][]*address{},
		revoked:        map[string]struct{}{},
		failures:       map[string]failure{},
		barriers:       map[string]*Barrier{},
		calls:          map[string]int{},
	}
	b.server = httptest.NewServer(b.router())
	t.Cleanup(func() {
		b.mu.Lock()
		for _, barrier := range b.barriers {
			barrier.Release()
		}
		b.mu.Unlock()
		b.server.Close()
	})
	return b
}

// URL is the root URL; clients append /api themselves.
func (b *Backend) URL() string {
	return b.server.URL
}

// SetNow replaces the backend clock.
func (b *Backend) SetNow(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// AddUser creates an account without going through registration validation.
func (b *Backend) AddUser(username, password, email string) int64 {
	hash, err := hashPassword(password)
	if err != nil {
		panic(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(username, email, nil, hash)
}

func (b *Backend) addUserLocked(username, email string, phone *string, hash []byte) int64 {
	b.nextUserID++
	id := b.nextUserID
	b.users[id] = &user{ID: id, Username: username, Email: email, Phone: phone, PasswordHash: hash, CreatedAt: b.now().UTC()}
	b.usernames[username] = id
	b.carts[id] = nil
	return id
}

// AddProduct registers a product that can be added to carts. price is a decimal string.
func (b *Backend) AddProduct(id int64, name, price string, stock int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.products[id] = &product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock, MainImage: "/images/" + name + ".png"}
}

// MintToken issues a signed token for userID expiring at exp.
func (b *Backend) MintToken(userID int64, exp time.Time) string {
	b.mu.Lock()
	u := b.users[userID]
	now := b.now()
	b.mu.Unlock()
	username := ""
	if u != nil {
		username = u.Username
	}
	tok, err := b.issuer.mint(userID, username, now, exp)
	if err != nil {
		panic(err)
	}
	return tok
}

// OverrideLogin makes a successful login return data verbatim inside the envelope.
func (b *Backend) OverrideLogin(data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loginOverride = data
}

// OmitAggregates strips totals from cart responses, leaving only items.
func (b *Backend) OmitAggregates(omit bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.omitAggregates = omit
}

// AcknowledgeSelection makes the selection endpoint answer success without a cart.
func (b *Backend) AcknowledgeSelection(bare bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bareSelect = bare
}

// Fail makes every request to route answer with status until Heal.
func (b *Backend) Fail(route string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = failure{status: status}
}

// FailNetwork makes route drop the connection without a response.
func (b *Backend) FailNetwork(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = failure{network: true}
}

func (b *Backend) Heal(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, route)
}

// Block parks requests to route until the returned barrier is released.
func (b *Backend) Block(route string) *Barrier {
	barrier := &Barrier{arrived: make(chan struct{}), release: make(chan struct{})}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.barriers[route] = barrier
	return barrier
}

// Calls reports how many requests route has received.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// SetSelected flips an item's selection server side, bypassing the API.
func (b *Backend) SetSelected(userID, cartItemID int64, selected bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, item := range b.carts[userID] {
		if item.ID == cartItemID {
			item.Selected = selected
		}
	}
}

// CartSize is the number of rows in the user's server side cart.
func (b *Backend) CartSize(userID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.carts[userID])
}

// OrderStatus returns the status of an order, or -1 when unknown.
func (b *Backend) OrderStatus(orderID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o, ok := b.orders[orderID]; ok {
		return o.Status
	}
	return -1
}

// Revoked reports whether tok was invalidated by logout.
func (b *Backend) Revoked(tok string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.revoked[tok]
	return ok
}

// APIConfig points a client at the fake backend.
func (b *Backend) APIConfig() config.APIConfig {
	return config.APIConfig{BaseURL: b.server.URL, Timeout: 5 * time.Second}
}
