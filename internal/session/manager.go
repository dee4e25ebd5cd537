// Package session owns the authentication state of the storefront client.
package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/bugisthegod/techmart-storefront/internal/api"
	"github.com/bugisthegod/techmart-storefront/internal/guard"
	"github.com/bugisthegod/techmart-storefront/internal/token"
	pkgerrors "github.com/bugisthegod/techmart-storefront/pkg/errors"
	"github.com/bugisthegod/techmart-storefront/pkg/logger"
	"github.com/bugisthegod/techmart-storefront/pkg/metrics"
)

// ExpiredMessage is surfaced whenever the backend rejects the session.
const ExpiredMessage = "Session expired. Please login again."

// Doer performs backend calls.
type Doer interface {
	Do(ctx context.Context, req api.Request) (*api.Envelope, error)
}

// Listener observes session transitions. Callbacks run outside the manager lock.
type Listener interface {
	SessionAuthenticated(ctx context.Context, user guard.UserRecord)
	SessionEnded(ctx context.Context)
}

// SessionExpiredFunc receives the user facing notice after a forced logout.
type SessionExpiredFunc func(ctx context.Context, message string)

// Result is the uniform outcome of a session operation.
type Result struct {
	Success bool
	Message string
	Data    any
	Errors  any
}

// LoginData is returned in Result.Data after a successful login.
type LoginData struct {
	Token     string
	User      guard.UserRecord
	ExpiresIn *int64
}

type Manager struct {
	guard     *guard.Guard
	lifecycle token.Lifecycle
	client    Doer
	logg      *logger.Logger
	metrics   *metrics.ClientMetrics
	onExpired SessionExpiredFunc

	mu        sync.Mutex
	snap      snapshot
	announced bool
	listeners []Listener
}

type Option func(*Manager)

func WithSessionExpiredFunc(fn SessionExpiredFunc) Option {
	return func(m *Manager) { m.onExpired = fn }
}

func NewManager(g *guard.Guard, lifecycle token.Lifecycle, client Doer, logg *logger.Logger, m *metrics.ClientMetrics, opts ...Option) *Manager {
	mgr := &Manager{
		guard:     g,
		lifecycle: lifecycle,
		client:    client,
		logg:      logg,
		metrics:   m,
		snap:      anonymous,
	}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr
}

// Subscribe registers l for future transitions.
func (m *Manager) Subscribe(l Listener) {
	if l == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

type transition struct {
	authenticated *guard.UserRecord
	ended         bool
	listeners     []Listener
}

func (m *Manager) dispatch(ctx context.Context, a action) {
	m.mu.Lock()
	prev := m.snap
	m.snap = reduce(prev, a)
	t := transition{listeners: append([]Listener(nil), m.listeners...)}
	switch {
	case m.snap.state == Authenticated && (prev.state != Authenticated || !m.announced):
		user := *m.snap.user
		t.authenticated = &user
		m.announced = true
	case m.snap.state == Anonymous && m.announced:
		t.ended = true
		m.announced = false
	}
	next := m.snap.state
	m.mu.Unlock()

	if prev.state != next {
		m.logg.Debug(m.logg.WithFields(ctx, map[string]any{"from": prev.state.String(), "to": next.String()}), "session.transition")
	}
	for _, l := range t.listeners {
		switch {
		case t.authenticated != nil:
			l.SessionAuthenticated(ctx, *t.authenticated)
		case t.ended:
			l.SessionEnded(ctx)
		}
	}
}

func (m *Manager) purge(ctx context.Context) {
	_ = m.guard.Remove(ctx, guard.AuthKeys...)
}

// Restore rebuilds the session from storage on startup.
func (m *Manager) Restore(ctx context.Context) bool {
	m.dispatch(ctx, restoreStarted{})

	tok, hasToken := m.guard.Read(ctx, guard.KeyToken)
	user, hasUser := m.guard.ReadUser(ctx)
	if !hasToken || !hasUser || !m.lifecycle.IsSessionTokenValid(tok) {
		if hasToken || hasUser {
			m.logg.Info(ctx, "session.restore_purged")
		}
		m.purge(ctx)
		m.dispatch(ctx, restoreFailed{})
		m.metrics.ObserveOutcome("session.restore", metrics.OutcomeRejected)
		return false
	}

	m.dispatch(m.logg.WithUserID(ctx, user.ID), restoreSucceeded{token: tok, user: user})
	m.metrics.ObserveOutcome("session.restore", metrics.OutcomeSuccess)
	return true
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	UserInfo  json.RawMessage `json:"userInfo"`
	ExpiresIn *int64          `json:"expiresIn,omitempty"`
}

const (
	msgBadCredentials   = "Invalid username or password"
	msgMissingLoginData = "Invalid response: missing token or user information"
	msgInvalidToken     = "Invalid token format"
	msgInvalidUser      = "Invalid user information"
)

// Login authenticates against the backend and persists the sanitized session.
func (m *Manager) Login(ctx context.Context, username, password string) Result {
	ctx = m.logg.WithField(ctx, "username", guard.SanitizeUsername(username))
	m.dispatch(ctx, loginStarted{})

	env, err := m.client.Do(ctx, api.Request{
		Operation:               "session.login",
		Method:                  http.MethodPost,
		Path:                    "/users/login",
		Body:                    loginRequest{Username: username, Password: password},
		SkipUnauthorizedHandler: true,
	})
	if err != nil {
		message := pkgerrors.MessageOf(err, msgBadCredentials)
		if api.IsUnauthorized(err) && message == pkgerrors.MetadataFor(pkgerrors.CodeBusiness).PublicMessage {
			message = msgBadCredentials
		}
		return m.loginFailed(ctx, message, err)
	}

	var data loginResponse
	if err := api.DecodeRequired(env, &data); err != nil {
		return m.loginFailed(ctx, msgMissingLoginData, err)
	}
	if data.Token == "" || len(data.UserInfo) == 0 || string(data.UserInfo) == "null" {
		return m.loginFailed(ctx, msgMissingLoginData, nil)
	}
	if !token.IsValidFormat(data.Token) || !m.guard.Write(ctx, guard.KeyToken, data.Token) {
		return m.loginFailed(ctx, msgInvalidToken, nil)
	}
	user, ok := m.guard.WriteUser(ctx, data.UserInfo)
	if !ok {
		return m.loginFailed(ctx, msgInvalidUser, nil)
	}

	ctx = m.logg.WithUserID(ctx, user.ID)
	m.dispatch(ctx, loginSucceeded{token: data.Token, user: user})
	m.metrics.ObserveOutcome("session.login", metrics.OutcomeSuccess)
	m.logg.Info(ctx, "session.login_succeeded")
	return Result{
		Success: true,
		Message: "Login successful!",
		Data:    LoginData{Token: data.Token, User: *user, ExpiresIn: data.ExpiresIn},
	}
}

func (m *Manager) loginFailed(ctx context.Context, message string, err error) Result {
	m.logg.Warn(m.logg.WithField(ctx, "reason", message), "session.login_failed")
	m.purge(ctx)
	m.dispatch(ctx, authFailed{message: message})
	m.metrics.ObserveOutcome("session.login", metrics.OutcomeFailure)
	return Result{Success: false, Message: message, Errors: errorDetails(err)}
}

// RegisterRequest is the account creation payload.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Password string `json:"password" validate:"required,min=6"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,max=20,phone"`
}

type registerBody struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone"`
}

// Register creates an account. It never authenticates the caller.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) Result {
	ctx = m.logg.WithField(ctx, "username", guard.SanitizeUsername(req.Username))
	if err := guard.ValidateStruct(&req); err != nil {
		m.metrics.ObserveOutcome("session.register", metrics.OutcomeRejected)
		return Result{Success: false, Message: pkgerrors.MessageOf(err, "validation failed"), Errors: errorDetails(err)}
	}

	m.dispatch(ctx, registerStarted{})
	body := registerBody{Username: req.Username, Password: req.Password, Email: req.Email}
	if req.Phone != "" {
		body.Phone = &req.Phone
	}
	env, err := m.client.Do(ctx, api.Request{
		Operation: "session.register",
		Method:    http.MethodPost,
		Path:      "/users/register",
		Body:      body,
	})
	if err != nil {
		message := pkgerrors.MessageOf(err, "Registration failed. Please try again.")
		m.dispatch(ctx, registerFinished{message: message})
		m.metrics.ObserveOutcome("session.register", metrics.OutcomeFailure)
		m.logg.Warn(ctx, "session.register_failed")
		return Result{Success: false, Message: message, Errors: errorDetails(err)}
	}

	m.dispatch(ctx, registerFinished{})
	m.metrics.ObserveOutcome("session.register", metrics.OutcomeSuccess)
	m.logg.Info(ctx, "session.register_succeeded")
	var data any
	_ = env.Decode(&data)
	return Result{Success: true, Message: "Registration successful! Please log in.", Data: data}
}

// Logout invalidates the session server side when possible and always clears it locally.
func (m *Manager) Logout(ctx context.Context) Result {
	if id, ok := m.UserID(); ok {
		ctx = m.logg.WithUserID(ctx, id)
	}
	_, err := m.client.Do(ctx, api.Request{
		Operation:               "session.logout",
		Method:                  http.MethodPost,
		Path:                    "/users/logout",
		Body:                    struct{}{},
		SkipUnauthorizedHandler: true,
	})

	m.purge(ctx)
	m.dispatch(ctx, loggedOut{})

	switch {
	case err == nil:
		m.metrics.ObserveOutcome("session.logout", metrics.OutcomeSuccess)
		m.logg.Info(ctx, "session.logout_succeeded")
		return Result{Success: true, Message: "Logged out successfully"}
	case api.IsUnauthorized(err):
		m.metrics.ObserveOutcome("session.logout", metrics.OutcomeSuccess)
		m.logg.Info(ctx, "session.logout_already_invalid")
		return Result{Success: true, Message: "Already logged out"}
	default:
		m.metrics.ObserveOutcome("session.logout", metrics.OutcomeFailure)
		m.logg.Warn(ctx, "session.logout_server_failed")
		return Result{Success: false, Message: pkgerrors.MessageOf(err, "Logout failed"), Errors: errorDetails(err)}
	}
}

// ProfileUpdate holds the editable profile fields; nil fields are left unchanged.
type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

// UpdateProfile sends the update and stores the sanitized merge of the current user and the response.
func (m *Manager) UpdateProfile(ctx context.Context, update ProfileUpdate) Result {
	current := m.CurrentUser()
	if current == nil || m.State() != Authenticated {
		return Result{Success: false, Message: "Please login first"}
	}
	ctx = m.logg.WithUserID(ctx, current.ID)

	env, err := m.client.Do(ctx, api.Request{
		Operation: "session.update_profile",
		Method:    http.MethodPut,
		Path:      "/users/profile",
		Body:      update,
	})
	if err != nil {
		m.metrics.ObserveOutcome("session.update_profile", metrics.OutcomeFailure)
		return Result{Success: false, Message: pkgerrors.MessageOf(err, "Failed to update profile"), Errors: errorDetails(err)}
	}

	merged, err := mergeProfile(*current, update, env)
	if err != nil {
		m.metrics.ObserveOutcome("session.update_profile", metrics.OutcomeFailure)
		return Result{Success: false, Message: msgInvalidUser, Errors: errorDetails(err)}
	}
	user, ok := m.guard.WriteUser(ctx, merged)
	if !ok {
		m.metrics.ObserveOutcome("session.update_profile", metrics.OutcomeRejected)
		return Result{Success: false, Message: msgInvalidUser}
	}

	m.dispatch(ctx, profileUpdated{user: user})
	m.metrics.ObserveOutcome("session.update_profile", metrics.OutcomeSuccess)
	return Result{Success: true, Message: "Profile updated successfully", Data: *user}
}

func mergeProfile(current guard.UserRecord, update ProfileUpdate, env *api.Envelope) (map[string]any, error) {
	merged := map[string]any{}
	for _, layer := range []any{current, update} {
		raw, err := json.Marshal(layer)
		if err != nil {
			return nil, err
		}
		fields := map[string]any{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			merged[k] = v
		}
	}
	var server map[string]any
	if err := env.Decode(&server); err == nil {
		for k, v := range server {
			merged[k] = v
		}
	}
	return merged, nil
}

// Expire tears the session down after the backend rejected the credentials.
func (m *Manager) Expire(ctx context.Context) {
	wasAnonymous := m.State() == Anonymous
	m.purge(ctx)
	m.dispatch(ctx, sessionExpired{message: ExpiredMessage})
	m.metrics.ObserveOutcome("session.expire", metrics.OutcomeSuccess)
	m.logg.Warn(ctx, "session.expired")
	if m.onExpired != nil && !wasAnonymous {
		m.onExpired(ctx, ExpiredMessage)
	}
}

// IsAuthenticated re-validates the stored credentials and clears them if they no longer hold.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	if m.State() != Authenticated {
		return false
	}
	tok, hasToken := m.guard.Read(ctx, guard.KeyToken)
	_, hasUser := m.guard.ReadUser(ctx)
	if hasToken && hasUser && m.lifecycle.IsSessionTokenValid(tok) {
		return true
	}
	m.logg.Info(ctx, "session.token_invalidated")
	m.purge(ctx)
	m.dispatch(ctx, tokenInvalidated{})
	return false
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.state
}

// CurrentUser returns a copy of the authenticated user, or nil.
func (m *Manager) CurrentUser() *guard.UserRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.user == nil {
		return nil
	}
	user := *m.snap.user
	return &user
}

func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.token
}

// UserID returns the id of the authenticated user.
func (m *Manager) UserID() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.user == nil || m.snap.user.ID <= 0 {
		return 0, false
	}
	return m.snap.user.ID, true
}

// Err returns the last recorded failure message.
func (m *Manager) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.err
}

func (m *Manager) ClearError() {
	m.dispatch(context.Background(), errorCleared{})
}

func errorDetails(err error) any {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Details()
	}
	return nil
}
