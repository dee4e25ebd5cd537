package session

import "github.com/bugisthegod/techmart-storefront/internal/guard"

// State is the authentication state of the storefront session.
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
	Restoring
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Restoring:
		return "restoring"
	default:
		return "unknown"
	}
}

type snapshot struct {
	state State
	user  *guard.UserRecord
	token string
	err   string
}

// action is one state transition request. Each variant is handled in reduce.
type action interface {
	isAction()
}

type restoreStarted struct{}

type restoreSucceeded struct {
	token string
	user  *guard.UserRecord
}

type restoreFailed struct{}

type loginStarted struct{}

type loginSucceeded struct {
	token string
	user  *guard.UserRecord
}

type authFailed struct {
	message string
}

type registerStarted struct{}

type registerFinished struct {
	message string
}

type loggedOut struct{}

type sessionExpired struct {
	message string
}

type tokenInvalidated struct{}

type profileUpdated struct {
	user *guard.UserRecord
}

type errorCleared struct{}

func (restoreStarted) isAction()   {}
func (restoreSucceeded) isAction() {}
func (restoreFailed) isAction()    {}
func (loginStarted) isAction()     {}
func (loginSucceeded) isAction()   {}
func (authFailed) isAction()       {}
func (registerStarted) isAction()  {}
func (registerFinished) isAction() {}
func (loggedOut) isAction()        {}
func (sessionExpired) isAction()   {}
func (tokenInvalidated) isAction() {}
func (profileUpdated) isAction()   {}
func (errorCleared) isAction()     {}

var anonymous = snapshot{state: Anonymous}

func reduce(s snapshot, a action) snapshot {
	switch a := a.(type) {
	case restoreStarted:
		return snapshot{state: Restoring}
	case restoreSucceeded:
		return snapshot{state: Authenticated, user: a.user, token: a.token}
	case restoreFailed:
		return anonymous
	case loginStarted:
		return snapshot{state: Authenticating}
	case loginSucceeded:
		return snapshot{state: Authenticated, user: a.user, token: a.token}
	case authFailed:
		return snapshot{state: Anonymous, err: a.message}
	case registerStarted:
		if s.state != Anonymous {
			return s
		}
		next := s
		next.state = Authenticating
		next.err = ""
		return next
	case registerFinished:
		if s.state != Authenticating {
			return s
		}
		return snapshot{state: Anonymous, err: a.message}
	case loggedOut:
		return anonymous
	case sessionExpired:
		return snapshot{state: Anonymous, err: a.message}
	case tokenInvalidated:
		return anonymous
	case profileUpdated:
		if s.state != Authenticated {
			return s
		}
		next := s
		next.user = a.user
		next.err = ""
		return next
	case errorCleared:
		next := s
		next.err = ""
		return next
	default:
		return s
	}
}
