package cart

import (
	"context"
	"net/http"
	"testing"

	"github.com/bugisthegod/techmart-storefront/internal/api"
	"github.com/bugisthegod/techmart-storefront/internal/guard"
	"github.com/bugisthegod/techmart-storefront/internal/session"
	"github.com/bugisthegod/techmart-storefront/internal/storefronttest"
	"github.com/bugisthegod/techmart-storefront/internal/token"
	"github.com/bugisthegod/techmart-storefront/pkg/config"
	"github.com/bugisthegod/techmart-storefront/pkg/logger"
	"github.com/bugisthegod/techmart-storefront/pkg/storage"
	"github.com/bugisthegod/techmart-storefront/pkg/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	backend *storefronttest.Backend
	store   *memory.Store
	guard   *guard.Guard
	session *session.Manager
	machine *Machine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{backend: storefronttest.NewBackend(t), store: memory.New()}
	f.guard = guard.New(f.store, logger.Nop(), nil)
	tokens := api.TokenSourceFunc(func(ctx context.Context) (string, bool) {
		return f.guard.Read(ctx, guard.KeyToken)
	})
	client := api.NewClient(f.backend.APIConfig(), tokens, logger.Nop(), nil,
		api.WithUnauthorizedHandler(func(ctx context.Context) { f.session.Expire(ctx) }))
	f.session = session.NewManager(f.guard, token.NewLifecycle(config.SessionConfig{ClockSkew: config.DefaultClockSkew}), client, logger.Nop(), nil)
	f.machine = NewMachine(NewRemote(client, f.session), f.guard, logger.Nop(), nil)
	f.session.Subscribe(f.machine)

	f.backend.AddProduct(1, "Keyboard", "12.50", 10)
	f.backend.AddProduct(2, "Mouse", "7.25", 10)
	return f
}

// login signs alice in with two selected rows in her cart and returns her id and the row ids.
func (f *fixture) login(t *testing.T) (int64, int64, int64) {
	t.Helper()
	ctx := context.Background()
	userID := f.backend.AddUser("alice", "secret-pass", "alice@example.com")
	res := f.session.Login(ctx, "alice", "secret-pass")
	require.True(t, res.Success, res.Message)

	require.True(t, f.machine.AddItem(ctx, 1, 2, nil).Success)
	require.True(t, f.machine.AddItem(ctx, 2, 1, nil).Success)
	snap := f.machine.Snapshot()
	require.Len(t, snap.Items, 2)
	return userID, snap.Items[0].RowID(), snap.Items[1].RowID()
}

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	require.NoError(t, err)
	return d
}

func TestLoginLoadsCartAndLogoutResets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)
	assert.Equal(t, 1, f.backend.Calls(storefronttest.RouteCartLoad))

	snap := f.machine.Snapshot()
	assert.Equal(t, 3, snap.TotalItems)
	assert.True(t, snap.TotalAmount.Equal(dec(t, "32.25")), snap.TotalAmount.String())
	assert.True(t, snap.SelectedAmount.Equal(dec(t, "32.25")))
	assert.Equal(t, 2, snap.SelectedCount)
	assert.True(t, snap.Consistent())
	assert.Zero(t, f.machine.Pending())

	f.session.Logout(ctx)
	assert.True(t, f.machine.Snapshot().Empty())
}

func TestAddItemHonoursSelectedFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	unselected := false
	f.backend.AddProduct(3, "Cable", "3.00", 5)
	res := f.machine.AddItem(ctx, 3, 1, &unselected)
	require.True(t, res.Success, res.Message)
	require.NotNil(t, res.Data)
	assert.Equal(t, msgAdded, res.Message)
	assert.Equal(t, 2, res.Data.SelectedCount)
	assert.True(t, res.Data.TotalAmount.Equal(dec(t, "35.25")))
}

func TestAddItemSurfacesServerMessage(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	res := f.machine.AddItem(context.Background(), 1, 50, nil)
	assert.False(t, res.Success)
	assert.Equal(t, "Insufficient stock", res.Message)
	assert.Equal(t, "Insufficient stock", f.machine.Err())
	assert.Len(t, res.Data.Items, 2)
}

func TestSelectionFailureReconcilesWithServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, first, second := f.login(t)

	// The server changed the second row behind the client's back.
	f.backend.SetSelected(userID, second, false)
	f.backend.Fail(storefronttest.RouteCartSelect, http.StatusInternalServerError)
	loadsBefore := f.backend.Calls(storefronttest.RouteCartLoad)

	res := f.machine.UpdateItemSelection(ctx, first, false)
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), res.Message)
	assert.Equal(t, loadsBefore+1, f.backend.Calls(storefronttest.RouteCartLoad))

	snap := f.machine.Snapshot()
	row, ok := snap.Item(first)
	require.True(t, ok)
	assert.True(t, row.IsSelected())
	row, ok = snap.Item(second)
	require.True(t, ok)
	assert.False(t, row.IsSelected())
	assert.Equal(t, 1, snap.SelectedCount)
	assert.True(t, snap.SelectedAmount.Equal(dec(t, "25.00")))
	assert.True(t, snap.Consistent())
	assert.False(t, f.machine.Busy(first))
	assert.Equal(t, res.Message, f.machine.Err())
}

func TestSelectionIsOptimisticAndLocksTheRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, first, second := f.login(t)

	barrier := f.backend.Block(storefronttest.RouteCartSelect)
	done := make(chan Result, 1)
	go func() { done <- f.machine.UpdateItemSelection(ctx, first, false) }()
	<-barrier.Arrived()

	snap := f.machine.Snapshot()
	row, _ := snap.Item(first)
	assert.False(t, row.IsSelected())
	assert.Equal(t, 1, snap.SelectedCount)
	assert.True(t, snap.SelectedAmount.Equal(dec(t, "7.25")))
	assert.True(t, f.machine.Busy(first))

	busy := f.machine.RemoveItem(ctx, first)
	assert.False(t, busy.Success)
	assert.Equal(t, msgItemBusy, busy.Message)
	busy = f.machine.UpdateItemSelection(ctx, first, true)
	assert.Equal(t, msgItemBusy, busy.Message)
	assert.Zero(t, f.backend.Calls(storefronttest.RouteCartRemove))

	// Other rows stay editable.
	assert.False(t, f.machine.Busy(second))

	barrier.Release()
	res := <-done
	require.True(t, res.Success, res.Message)
	assert.False(t, f.machine.Busy(first))
	assert.Equal(t, 1, f.machine.Snapshot().SelectedCount)
	assert.Equal(t, 1, f.backend.Calls(storefronttest.RouteCartSelect))
}

func TestSelectionAcknowledgedWithoutCartKeepsRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, first, _ := f.login(t)
	f.backend.AcknowledgeSelection(true)
	loadsBefore := f.backend.Calls(storefronttest.RouteCartLoad)

	res := f.machine.UpdateItemSelection(ctx, first, false)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, msgSelectionUpdated, res.Message)
	assert.Equal(t, loadsBefore, f.backend.Calls(storefronttest.RouteCartLoad))

	snap := f.machine.Snapshot()
	row, ok := snap.Item(first)
	require.True(t, ok)
	assert.False(t, row.IsSelected())
	assert.Equal(t, 1, snap.SelectedCount)
	assert.True(t, snap.SelectedAmount.Equal(dec(t, "7.25")))
	assert.True(t, snap.Consistent())
	assert.False(t, f.machine.Busy(first))
	assert.Zero(t, f.machine.Pending())
	assert.Empty(t, f.machine.Err())

	// The server agrees with the optimistic rows.
	require.True(t, f.machine.LoadCart(ctx).Success)
	assert.Equal(t, snap.SelectedCount, f.machine.Snapshot().SelectedCount)
}

func TestClearFinishingAfterNewerLoadIsDiscarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	barrier := f.backend.Block(storefronttest.RouteCartClear)
	done := make(chan Result, 1)
	go func() { done <- f.machine.ClearCart(ctx) }()
	<-barrier.Arrived()

	// A load issued after the clear finishes first with the full cart.
	require.True(t, f.machine.LoadCart(ctx).Success)
	require.Len(t, f.machine.Snapshot().Items, 2)

	barrier.Release()
	res := <-done
	assert.True(t, res.Success, res.Message)
	assert.Len(t, f.machine.Snapshot().Items, 2)
	assert.Zero(t, f.machine.Pending())
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, first, second := f.login(t)

	barrier := f.backend.Block(storefronttest.RouteCartLoad)
	done := make(chan Result, 1)
	go func() { done <- f.machine.LoadCart(ctx) }()
	<-barrier.Arrived()

	require.True(t, f.machine.UpdateItemSelection(ctx, first, false).Success)
	f.backend.SetSelected(userID, second, false)
	barrier.Release()
	<-done

	snap := f.machine.Snapshot()
	row, _ := snap.Item(second)
	assert.True(t, row.IsSelected(), "older load must not overwrite a newer snapshot")
	row, _ = snap.Item(first)
	assert.False(t, row.IsSelected())
	assert.Zero(t, f.machine.Pending())
}

func TestResetIgnoresInflightResponses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	barrier := f.backend.Block(storefronttest.RouteCartLoad)
	done := make(chan Result, 1)
	go func() { done <- f.machine.LoadCart(ctx) }()
	<-barrier.Arrived()

	f.machine.Reset(ctx)
	barrier.Release()
	<-done
	assert.True(t, f.machine.Snapshot().Empty())
	assert.Zero(t, f.machine.Pending())
}

func TestLoadCartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	first := f.machine.LoadCart(ctx)
	second := f.machine.LoadCart(ctx)
	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.Equal(t, msgLoaded, second.Message)
	assert.Equal(t, *first.Data, *second.Data)
}

func TestLoadDerivesOmittedAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, first, _ := f.login(t)

	f.backend.OmitAggregates(true)
	f.backend.SetSelected(userID, first, false)
	res := f.machine.LoadCart(ctx)
	require.True(t, res.Success)
	assert.Equal(t, 3, res.Data.TotalItems)
	assert.True(t, res.Data.TotalAmount.Equal(dec(t, "32.25")))
	assert.Equal(t, 1, res.Data.SelectedCount)
	assert.True(t, res.Data.SelectedAmount.Equal(dec(t, "7.25")))
}

func TestUpdateQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, first, _ := f.login(t)

	res := f.machine.UpdateQuantity(ctx, first, 0)
	assert.False(t, res.Success)
	assert.Equal(t, msgQuantityInvalid, res.Message)
	assert.Equal(t, map[string]string{"quantity": "min"}, res.Errors)
	assert.Zero(t, f.backend.Calls(storefronttest.RouteCartUpdate))

	res = f.machine.UpdateQuantity(ctx, first, 4)
	require.True(t, res.Success, res.Message)
	row, _ := res.Data.Item(first)
	assert.Equal(t, 4, row.Quantity)
	assert.Equal(t, 5, res.Data.TotalItems)
}

func TestRemoveItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, first, second := f.login(t)

	res := f.machine.RemoveItem(ctx, first)
	require.True(t, res.Success, res.Message)
	_, ok := res.Data.Item(first)
	assert.False(t, ok)
	_, ok = res.Data.Item(second)
	assert.True(t, ok)

	res = f.machine.RemoveItem(ctx, first)
	assert.False(t, res.Success)
	assert.Equal(t, "Cart item not found", res.Message)
}

func TestClearCartDropsLegacyMarker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, _, _ := f.login(t)
	require.NoError(t, f.store.Set(ctx, guard.KeyCartItems, `[{"id":1}]`))

	res := f.machine.ClearCart(ctx)
	require.True(t, res.Success, res.Message)
	assert.True(t, res.Data.Empty())
	assert.Zero(t, f.backend.CartSize(userID))

	_, err := f.store.Get(ctx, guard.KeyCartItems)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCallsWithoutSessionNeverReachServer(t *testing.T) {
	f := newFixture(t)

	res := f.machine.LoadCart(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, "Please login first", res.Message)
	assert.Zero(t, f.backend.Calls(storefronttest.RouteCartLoad))
}

func TestExpiredSessionResetsCart(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.Fail(storefronttest.RouteCartLoad, http.StatusUnauthorized)

	res := f.machine.LoadCart(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, session.Anonymous, f.session.State())
	assert.True(t, f.machine.Snapshot().Empty())
}
