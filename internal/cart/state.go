package cart

// state is the machine's view of the cart. applied is the sequence number of the
// request whose result produced snap.
type state struct {
	snap    Snapshot
	applied uint64
	pending int
	err     string
	busy    map[int64]bool
}

func initialState() state {
	return state{snap: emptySnapshot(), busy: map[int64]bool{}}
}

func emptySnapshot() Snapshot {
	return Snapshot{Items: []Item{}}
}

type action interface {
	isAction()
}

type requestStarted struct{}

// snapshotReceived carries a server snapshot produced by the request numbered seq.
type snapshotReceived struct {
	seq  uint64
	snap Snapshot
}

type requestFailed struct {
	message string
}

// requestSettled closes a request that returned no snapshot.
type requestSettled struct{}

// errorReported records a failure without settling a request.
type errorReported struct {
	message string
}

// selectionToggled applies a selection change before the server confirms it.
type selectionToggled struct {
	seq        uint64
	cartItemID int64
	selected   bool
}

type selectionSettled struct {
	cartItemID int64
}

type cartCleared struct {
	seq uint64
}

type cartReset struct {
	seq uint64
}

type errorCleared struct{}

func (requestStarted) isAction()   {}
func (snapshotReceived) isAction() {}
func (requestFailed) isAction()    {}
func (requestSettled) isAction()   {}
func (errorReported) isAction()    {}
func (selectionToggled) isAction() {}
func (selectionSettled) isAction() {}
func (cartCleared) isAction()      {}
func (cartReset) isAction()        {}
func (errorCleared) isAction()     {}

// reduce returns the next state. Snapshots and clears older than the applied one are dropped.
func reduce(s state, a action) state {
	next := s
	next.busy = make(map[int64]bool, len(s.busy))
	for id, v := range s.busy {
		next.busy[id] = v
	}

	switch a := a.(type) {
	case requestStarted:
		next.pending++
		next.err = ""
	case snapshotReceived:
		next.pending = settle(next.pending)
		if a.seq < s.applied {
			return next
		}
		next.snap = a.snap.clone()
		next.applied = a.seq
	case requestFailed:
		next.pending = settle(next.pending)
		next.err = a.message
	case requestSettled:
		next.pending = settle(next.pending)
	case errorReported:
		next.err = a.message
	case selectionToggled:
		snap, ok := s.snap.withSelection(a.cartItemID, a.selected)
		if !ok {
			return next
		}
		next.snap = snap
		next.applied = a.seq
		next.busy[a.cartItemID] = true
	case selectionSettled:
		delete(next.busy, a.cartItemID)
	case cartCleared:
		next.pending = settle(next.pending)
		if a.seq < s.applied {
			return next
		}
		next.snap = emptySnapshot()
		next.applied = a.seq
	case cartReset:
		next = initialState()
		next.applied = a.seq
	case errorCleared:
		next.err = ""
	}
	return next
}

func settle(pending int) int {
	if pending > 0 {
		return pending - 1
	}
	return 0
}
