// Package cart mirrors the server cart and keeps the mirror consistent under concurrent edits.
package cart

import (
	"context"
	"sync"

	"github.com/bugisthegod/techmart-storefront/internal/guard"
	pkgerrors "github.com/bugisthegod/techmart-storefront/pkg/errors"
	"github.com/bugisthegod/techmart-storefront/pkg/logger"
	"github.com/bugisthegod/techmart-storefront/pkg/metrics"
)

const (
	msgAdded            = "Add cartItem successful!"
	msgAddFailed        = "Add cartItem failed. Please try again."
	msgRemoved          = "Remove cartItem successful!"
	msgRemoveFailed     = "Item removed from cart failed"
	msgQuantityUpdated  = "Update cart item quantity successful!"
	msgQuantityFailed   = "Update cart item quantity failed. Please try again."
	msgQuantityInvalid  = "Quantity must be at least 1"
	msgSelectionUpdated = "Update cart item selection successful!"
	msgSelectionFailed  = "Update item selection failed. Please try again."
	msgLoaded           = "Load cart successful!"
	msgLoadFailed       = "Load cart failed. Please try again."
	msgCleared          = "Clear cart successful!"
	msgClearFailed      = "Clear cart failed. Please try again."
	msgItemBusy         = "Item is being updated, please wait"
	msgItemNotFound     = "Cart item not found"
)

// Result is the uniform outcome of a cart operation. Data is the snapshot after the operation.
type Result struct {
	Success bool
	Message string
	Data    *Snapshot
	Errors  any
}

type Machine struct {
	remote  *Remote
	guard   *guard.Guard
	logg    *logger.Logger
	metrics *metrics.ClientMetrics

	mu  sync.Mutex
	seq uint64
	st  state
}

func NewMachine(remote *Remote, g *guard.Guard, logg *logger.Logger, m *metrics.ClientMetrics) *Machine {
	return &Machine{
		remote:  remote,
		guard:   g,
		logg:    logg,
		metrics: m,
		st:      initialState(),
	}
}

func (m *Machine) dispatch(a action) state {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = reduce(m.st, a)
	return m.st
}

// begin issues the next sequence number and marks a request in flight.
func (m *Machine) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.st = reduce(m.st, requestStarted{})
	return m.seq
}

// Snapshot returns a copy of the current cart.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.snap.clone()
}

// Pending reports the number of unresolved server calls.
func (m *Machine) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.pending
}

// Err returns the message of the last failed operation.
func (m *Machine) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.err
}

func (m *Machine) ClearError() {
	m.dispatch(errorCleared{})
}

// Busy reports whether a selection change on cartItemID is awaiting the server.
func (m *Machine) Busy(cartItemID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.busy[cartItemID]
}

// AddItem adds quantity of productID. selected defaults to true.
func (m *Machine) AddItem(ctx context.Context, productID int64, quantity int, selected *bool) Result {
	sel := true
	if selected != nil {
		sel = *selected
	}
	ctx = m.logg.WithField(ctx, "product_id", productID)
	seq := m.begin()
	w, err := m.remote.Add(ctx, productID, quantity, sel)
	return m.finish(ctx, "cart.add", seq, w, err, msgAdded, msgAddFailed)
}

func (m *Machine) RemoveItem(ctx context.Context, cartItemID int64) Result {
	ctx = m.logg.WithCartItemID(ctx, cartItemID)
	if res, busy := m.refuseBusy(ctx, "cart.remove", cartItemID); busy {
		return res
	}
	seq := m.begin()
	w, err := m.remote.Remove(ctx, cartItemID)
	return m.finish(ctx, "cart.remove", seq, w, err, msgRemoved, msgRemoveFailed)
}

// UpdateQuantity sets the quantity of a row. Quantities below one never reach the server.
func (m *Machine) UpdateQuantity(ctx context.Context, cartItemID int64, quantity int) Result {
	ctx = m.logg.WithCartItemID(ctx, cartItemID)
	if quantity < 1 {
		m.metrics.ObserveOutcome("cart.update_quantity", metrics.OutcomeRejected)
		return m.result(false, msgQuantityInvalid, pkgerrors.New(pkgerrors.CodeValidation, msgQuantityInvalid).
			WithDetails(map[string]string{"quantity": "min"}))
	}
	if res, busy := m.refuseBusy(ctx, "cart.update_quantity", cartItemID); busy {
		return res
	}
	seq := m.begin()
	w, err := m.remote.UpdateQuantity(ctx, cartItemID, quantity)
	return m.finish(ctx, "cart.update_quantity", seq, w, err, msgQuantityUpdated, msgQuantityFailed)
}

// UpdateItemSelection flips a row's selection immediately and confirms it with the server.
// The selected aggregates are recomputed from the rows. A rejected change reloads the cart;
// an acknowledgement without a cart keeps the optimistic rows.
func (m *Machine) UpdateItemSelection(ctx context.Context, cartItemID int64, selected bool) Result {
	const op = "cart.update_selection"
	ctx = m.logg.WithCartItemID(ctx, cartItemID)

	m.mu.Lock()
	if m.st.busy[cartItemID] {
		m.mu.Unlock()
		return m.busyResult(ctx, op)
	}
	if _, ok := m.st.snap.Item(cartItemID); !ok {
		m.mu.Unlock()
		m.metrics.ObserveOutcome(op, metrics.OutcomeRejected)
		return m.result(false, msgItemNotFound, pkgerrors.New(pkgerrors.CodeNotFound, msgItemNotFound))
	}
	m.seq++
	seq := m.seq
	m.st = reduce(m.st, requestStarted{})
	m.st = reduce(m.st, selectionToggled{seq: seq, cartItemID: cartItemID, selected: selected})
	m.mu.Unlock()

	w, err := m.remote.UpdateSelection(ctx, cartItemID, selected)
	defer m.dispatch(selectionSettled{cartItemID: cartItemID})
	if err != nil {
		m.logg.Warn(ctx, "cart.selection_rejected")
		m.metrics.IncReconciliation("selection_failed")
		message := pkgerrors.MessageOf(err, msgSelectionFailed)
		m.dispatch(requestFailed{message: message})
		m.metrics.ObserveOutcome(op, metrics.OutcomeFailure)
		m.reload(ctx)
		m.dispatch(errorReported{message: message})
		return m.result(false, message, err)
	}
	if w == nil {
		// Acknowledged without a cart: the optimistic rows are the confirmed state.
		m.dispatch(requestSettled{})
		m.metrics.ObserveOutcome(op, metrics.OutcomeSuccess)
		return m.result(true, msgSelectionUpdated, nil)
	}
	return m.finish(ctx, op, seq, w, nil, msgSelectionUpdated, msgSelectionFailed)
}

// LoadCart replaces the mirror with the server cart.
func (m *Machine) LoadCart(ctx context.Context) Result {
	seq := m.begin()
	w, err := m.remote.Load(ctx)
	return m.finish(ctx, "cart.load", seq, w, err, msgLoaded, msgLoadFailed)
}

func (m *Machine) reload(ctx context.Context) {
	seq := m.begin()
	w, err := m.remote.Load(ctx)
	m.finish(ctx, "cart.load", seq, w, err, msgLoaded, msgLoadFailed)
}

// ClearCart empties the server cart and the mirror, and drops the legacy local cart marker.
func (m *Machine) ClearCart(ctx context.Context) Result {
	const op = "cart.clear"
	seq := m.begin()
	if err := m.remote.Clear(ctx); err != nil {
		return m.finish(ctx, op, seq, nil, err, msgCleared, msgClearFailed)
	}
	if err := m.guard.Remove(ctx, guard.KeyCartItems); err != nil {
		m.logg.Warn(ctx, "cart.marker_remove_failed")
	}
	if next := m.dispatch(cartCleared{seq: seq}); next.applied != seq {
		m.logg.Debug(m.logg.WithField(ctx, "seq", seq), "cart.stale_discarded")
		m.metrics.ObserveOutcome(op, metrics.OutcomeStale)
	} else {
		m.metrics.ObserveOutcome(op, metrics.OutcomeSuccess)
	}
	m.logg.Info(ctx, "cart.cleared")
	return m.result(true, msgCleared, nil)
}

// Reset drops the mirror without contacting the server. Responses to calls issued
// before the reset are ignored.
func (m *Machine) Reset(ctx context.Context) {
	m.mu.Lock()
	m.seq++
	m.st = reduce(m.st, cartReset{seq: m.seq})
	m.mu.Unlock()
	m.logg.Debug(ctx, "cart.reset")
}

// SessionAuthenticated loads the cart of the user that just signed in.
func (m *Machine) SessionAuthenticated(ctx context.Context, user guard.UserRecord) {
	m.LoadCart(m.logg.WithUserID(ctx, user.ID))
}

// SessionEnded forgets the cart of the user that signed out.
func (m *Machine) SessionEnded(ctx context.Context) {
	m.Reset(ctx)
}

func (m *Machine) refuseBusy(ctx context.Context, op string, cartItemID int64) (Result, bool) {
	if !m.Busy(cartItemID) {
		return Result{}, false
	}
	return m.busyResult(ctx, op), true
}

func (m *Machine) busyResult(ctx context.Context, op string) Result {
	m.logg.Debug(ctx, "cart.item_busy")
	m.metrics.ObserveOutcome(op, metrics.OutcomeRejected)
	return m.result(false, msgItemBusy, pkgerrors.New(pkgerrors.CodeConflict, msgItemBusy))
}

// finish applies the outcome of the request numbered seq.
func (m *Machine) finish(ctx context.Context, op string, seq uint64, w *wireCart, err error, okMessage, failMessage string) Result {
	if err != nil {
		message := pkgerrors.MessageOf(err, failMessage)
		m.dispatch(requestFailed{message: message})
		m.metrics.ObserveOutcome(op, metrics.OutcomeFailure)
		m.logg.Warn(m.logg.WithField(ctx, "error", message), op+"_failed")
		return m.result(false, message, err)
	}
	if w == nil {
		m.dispatch(requestFailed{message: failMessage})
		m.metrics.ObserveOutcome(op, metrics.OutcomeFailure)
		return m.result(false, failMessage, pkgerrors.New(pkgerrors.CodeDependency, "Invalid response: missing cart"))
	}

	snap, agreed := normalize(*w)
	if !agreed {
		m.logg.Warn(ctx, "cart.aggregate_mismatch")
		m.metrics.IncReconciliation("aggregate_mismatch")
	}
	next := m.dispatch(snapshotReceived{seq: seq, snap: snap})
	if next.applied != seq {
		m.logg.Debug(m.logg.WithField(ctx, "seq", seq), "cart.stale_discarded")
		m.metrics.ObserveOutcome(op, metrics.OutcomeStale)
	} else {
		m.metrics.ObserveOutcome(op, metrics.OutcomeSuccess)
	}
	return m.result(true, okMessage, nil)
}

func (m *Machine) result(success bool, message string, err error) Result {
	snap := m.Snapshot()
	res := Result{Success: success, Message: message, Data: &snap}
	if typed := pkgerrors.As(err); typed != nil && typed.Details() != nil {
		res.Errors = typed.Details()
	}
	return res
}
