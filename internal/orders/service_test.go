package orders

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/bugisthegod/techmart-storefront/internal/api"
	"github.com/bugisthegod/techmart-storefront/internal/guard"
	"github.com/bugisthegod/techmart-storefront/internal/session"
	"github.com/bugisthegod/techmart-storefront/internal/storefronttest"
	"github.com/bugisthegod/techmart-storefront/internal/token"
	"github.com/bugisthegod/techmart-storefront/pkg/config"
	"github.com/bugisthegod/techmart-storefront/pkg/enums"
	pkgerrors "github.com/bugisthegod/techmart-storefront/pkg/errors"
	"github.com/bugisthegod/techmart-storefront/pkg/logger"
	"github.com/bugisthegod/techmart-storefront/pkg/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	backend *storefronttest.Backend
	client  *api.Client
	guard   *guard.Guard
	session *session.Manager
	orders  *Service
	userID  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{backend: storefronttest.NewBackend(t)}
	f.guard = guard.New(memory.New(), logger.Nop(), nil)
	tokens := api.TokenSourceFunc(func(ctx context.Context) (string, bool) {
		return f.guard.Read(ctx, guard.KeyToken)
	})
	f.client = api.NewClient(f.backend.APIConfig(), tokens, logger.Nop(), nil)
	f.session = session.NewManager(f.guard, token.NewLifecycle(config.SessionConfig{}), f.client, logger.Nop(), nil)
	f.orders = NewService(f.client, f.session, f.guard, logger.Nop(), nil)

	f.backend.AddProduct(1, "Keyboard", "12.50", 10)
	f.backend.AddProduct(2, "Mouse", "7.25", 10)
	f.userID = f.backend.AddUser("alice", "secret-pass", "alice@example.com")
	return f
}

// withCart signs alice in and puts both products in her cart, the second one unselected.
func (f *fixture) withCart(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.True(t, f.session.Login(ctx, "alice", "secret-pass").Success)
	for _, add := range []map[string]any{
		{"productId": 1, "quantity": 2, "selected": 1},
		{"productId": 2, "quantity": 1, "selected": 0},
	} {
		_, err := f.client.Do(ctx, api.Request{
			Operation: "cart.add",
			Method:    http.MethodPost,
			Path:      "/cart/add",
			Query:     url.Values{"userId": {strconv.FormatInt(f.userID, 10)}},
			Body:      add,
		})
		require.NoError(t, err)
	}
}

func (f *fixture) placeOrder(t *testing.T, req OrderRequest) *Order {
	t.Helper()
	ctx := context.Background()
	tok, err := f.orders.GenerateOrderToken(ctx)
	require.NoError(t, err)
	order, err := f.orders.CreateOrder(ctx, req, tok)
	require.NoError(t, err)
	return order
}

func TestCreateOrderRequiresToken(t *testing.T) {
	f := newFixture(t)
	f.withCart(t)

	_, err := f.orders.CreateOrder(context.Background(), OrderRequest{}, "  ")
	require.ErrorIs(t, err, ErrOrderTokenRequired)
	assert.True(t, pkgerrors.IsPrecondition(err))
	assert.Equal(t, "Order token is required for idempotency", pkgerrors.MessageOf(err, ""))
	assert.Zero(t, f.backend.Calls(storefronttest.RouteOrderCreate))
}

func TestCreateOrderFromSelectedRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withCart(t)

	tok, err := f.orders.GenerateOrderToken(ctx)
	require.NoError(t, err)
	stored, ok := f.orders.StoredOrderToken(ctx)
	require.True(t, ok)
	assert.Equal(t, tok, stored)

	order, err := f.orders.CreateOrder(ctx, OrderRequest{FreightType: enums.FreightTypeExpress, Comment: "ring twice"}, tok)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(1), order.Items[0].ProductID)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("25.00")))
	assert.True(t, order.ItemsTotal().Equal(order.TotalAmount))
	assert.True(t, order.PayAmount.Equal(decimal.RequireFromString("40.00")))
	assert.Equal(t, 1, f.backend.CartSize(f.userID))

	_, ok = f.orders.StoredOrderToken(ctx)
	assert.False(t, ok, "token is consumed once the order exists")

	replay, err := f.orders.CreateOrder(ctx, OrderRequest{FreightType: enums.FreightTypeExpress}, tok)
	require.NoError(t, err)
	assert.Equal(t, order.ID, replay.ID)
	assert.Equal(t, order.OrderNo, replay.OrderNo)
}

func TestCreateOrderRejectsUnknownFreight(t *testing.T) {
	f := newFixture(t)
	f.withCart(t)

	_, err := f.orders.CreateOrder(context.Background(), OrderRequest{FreightType: "drone"}, "tok")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Zero(t, f.backend.Calls(storefronttest.RouteOrderCreate))
}

func TestPayAndCancelOnlyFromPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withCart(t)
	order := f.placeOrder(t, OrderRequest{})
	assert.True(t, IsCancellable(order))

	paid, err := f.orders.PayOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, paid.Status)
	assert.False(t, IsCancellable(paid))

	_, err = f.orders.CancelOrder(ctx, order.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, pkgerrors.StatusOf(err))
	assert.Equal(t, "Order cannot be cancelled", pkgerrors.MessageOf(err, ""))
	assert.Equal(t, storefronttest.OrderPaid, f.backend.OrderStatus(order.ID))
}

func TestGetAndListOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withCart(t)
	first := f.placeOrder(t, OrderRequest{})

	// The remaining row becomes the second order.
	f.backend.SetSelected(f.userID, 2, true)
	second := f.placeOrder(t, OrderRequest{})
	_, err := f.orders.CancelOrder(ctx, second.ID)
	require.NoError(t, err)

	got, err := f.orders.GetOrder(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.OrderNo, got.OrderNo)

	page, err := f.orders.ListOrders(ctx, 0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalElements)
	require.Len(t, page.Content, 2)
	assert.Equal(t, second.ID, page.Content[0].ID)
	assert.False(t, page.HasNext())

	cancelled := int(enums.OrderStatusCancelled)
	page, err = f.orders.ListOrders(ctx, 0, 10, &cancelled)
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, second.ID, page.Content[0].ID)

	_, err = f.orders.GetOrder(ctx, 999)
	assert.Equal(t, http.StatusNotFound, pkgerrors.StatusOf(err))
}

func TestOrdersRequireSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.GenerateOrderToken(context.Background())
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.Zero(t, f.backend.Calls(storefronttest.RouteOrderToken))
}
