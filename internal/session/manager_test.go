package session

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bugisthegod/techmart-storefront/internal/api"
	"github.com/bugisthegod/techmart-storefront/internal/guard"
	"github.com/bugisthegod/techmart-storefront/internal/storefronttest"
	"github.com/bugisthegod/techmart-storefront/internal/token"
	"github.com/bugisthegod/techmart-storefront/pkg/config"
	"github.com/bugisthegod/techmart-storefront/pkg/logger"
	"github.com/bugisthegod/techmart-storefront/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	authenticated []guard.UserRecord
	ended         int
}

func (r *recordingListener) SessionAuthenticated(_ context.Context, user guard.UserRecord) {
	r.authenticated = append(r.authenticated, user)
}

func (r *recordingListener) SessionEnded(context.Context) { r.ended++ }

type fixture struct {
	backend  *storefronttest.Backend
	store    *memory.Store
	guard    *guard.Guard
	manager  *Manager
	listener *recordingListener
	now      time.Time
	expired  []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend:  storefronttest.NewBackend(t),
		store:    memory.New(),
		listener: &recordingListener{},
		now:      time.Now(),
	}
	f.guard = guard.New(f.store, logger.Nop(), nil)
	tokens := api.TokenSourceFunc(func(ctx context.Context) (string, bool) {
		return f.guard.Read(ctx, guard.KeyToken)
	})
	client := api.NewClient(f.backend.APIConfig(), tokens, logger.Nop(), nil,
		api.WithUnauthorizedHandler(func(ctx context.Context) { f.manager.Expire(ctx) }))
	lifecycle := token.Lifecycle{Skew: config.DefaultClockSkew, Now: func() time.Time { return f.now }}
	f.manager = NewManager(f.guard, lifecycle, client, logger.Nop(), nil,
		WithSessionExpiredFunc(func(_ context.Context, msg string) { f.expired = append(f.expired, msg) }))
	f.manager.Subscribe(f.listener)
	return f
}

func (f *fixture) login(t *testing.T) int64 {
	t.Helper()
	id := f.backend.AddUser("alice", "secret-pass", "alice@example.com")
	res := f.manager.Login(context.Background(), "alice", "secret-pass")
	require.True(t, res.Success, res.Message)
	return id
}

func TestLoginPersistsSanitizedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.backend.AddUser("<b>mallory</b>", "secret-pass", "m@example.com")

	res := f.manager.Login(ctx, "<b>mallory</b>", "secret-pass")
	require.True(t, res.Success, res.Message)
	data, ok := res.Data.(LoginData)
	require.True(t, ok)
	assert.Equal(t, "mallory", data.User.Username)

	raw, err := f.store.Get(ctx, guard.KeyUser)
	require.NoError(t, err)
	assert.NotContains(t, raw, "<b>")
	assert.Contains(t, raw, `"username":"mallory"`)

	stored, err := f.store.Get(ctx, guard.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, data.Token, stored)

	assert.True(t, f.manager.IsAuthenticated(ctx))
	assert.Equal(t, Authenticated, f.manager.State())
	require.Len(t, f.listener.authenticated, 1)
	assert.Equal(t, "mallory", f.listener.authenticated[0].Username)
}

func TestLoginMissingTokenLeavesStorageEmpty(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser("alice", "secret-pass", "alice@example.com")
	f.backend.OverrideLogin(map[string]any{
		"userInfo": map[string]any{"id": 1, "username": "alice", "email": "alice@example.com"},
	})

	res := f.manager.Login(context.Background(), "alice", "secret-pass")
	assert.False(t, res.Success)
	assert.Equal(t, msgMissingLoginData, res.Message)
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, Anonymous, f.manager.State())
	assert.Equal(t, msgMissingLoginData, f.manager.Err())
	assert.Empty(t, f.listener.authenticated)
}

func TestLoginRejectsMalformedPayloads(t *testing.T) {
	cases := []struct {
		name    string
		data    any
		message string
	}{
		{
			name:    "token format",
			data:    map[string]any{"token": "not-a-jwt", "userInfo": map[string]any{"id": 1, "username": "alice", "email": "alice@example.com"}},
			message: msgInvalidToken,
		},
		{
			name:    "user not sanitizable",
			data:    map[string]any{"token": "aaa.bbb.ccc", "userInfo": map[string]any{"id": "x", "username": "alice", "email": "alice@example.com"}},
			message: msgInvalidUser,
		},
		{
			name:    "user not an object",
			data:    map[string]any{"token": "aaa.bbb.ccc", "userInfo": "alice"},
			message: msgInvalidUser,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.backend.AddUser("alice", "secret-pass", "alice@example.com")
			f.backend.OverrideLogin(tc.data)

			res := f.manager.Login(context.Background(), "alice", "secret-pass")
			assert.False(t, res.Success)
			assert.Equal(t, tc.message, res.Message)
			assert.Equal(t, 0, f.store.Len(), "auth keys purged")
			assert.Equal(t, Anonymous, f.manager.State())
		})
	}
}

func TestLoginBadCredentials(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser("alice", "secret-pass", "alice@example.com")

	res := f.manager.Login(context.Background(), "alice", "wrong")
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid username or password", res.Message)
	assert.Empty(t, f.expired, "login 401 must not trigger session expiry")
	assert.Equal(t, 0, f.store.Len())
}

func TestLoginNetworkFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.FailNetwork(storefronttest.RouteLogin)

	res := f.manager.Login(context.Background(), "alice", "secret-pass")
	assert.False(t, res.Success)
	assert.Equal(t, "Network error - please check your connection", res.Message)
	assert.Equal(t, Anonymous, f.manager.State())
}

func TestLogoutNetworkFailureStillPurges(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.FailNetwork(storefronttest.RouteLogout)

	res := f.manager.Logout(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, Anonymous, f.manager.State())
	assert.Equal(t, 0, f.store.Len())
	assert.Nil(t, f.manager.CurrentUser())
	assert.Equal(t, 1, f.listener.ended)
}

func TestLogoutUnauthorizedIsSuccess(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.Fail(storefronttest.RouteLogout, http.StatusUnauthorized)

	res := f.manager.Logout(context.Background())
	assert.True(t, res.Success)
	assert.Equal(t, "Already logged out", res.Message)
	assert.Empty(t, f.expired)
	assert.Equal(t, 0, f.store.Len())
}

func TestLogoutRevokesServerToken(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	tok := f.manager.Token()

	res := f.manager.Logout(context.Background())
	assert.True(t, res.Success)
	assert.True(t, f.backend.Revoked(tok))
	assert.Equal(t, 1, f.listener.ended)
	assert.Empty(t, f.manager.Token())
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		f := newFixture(t)
		id := f.backend.AddUser("alice", "secret-pass", "alice@example.com")
		require.True(t, f.guard.Write(ctx, guard.KeyToken, f.backend.MintToken(id, f.now.Add(time.Hour))))
		_, ok := f.guard.WriteUser(ctx, map[string]any{"id": float64(id), "username": "alice", "email": "alice@example.com"})
		require.True(t, ok)

		assert.True(t, f.manager.Restore(ctx))
		assert.Equal(t, Authenticated, f.manager.State())
		userID, ok := f.manager.UserID()
		require.True(t, ok)
		assert.Equal(t, id, userID)
		assert.Len(t, f.listener.authenticated, 1)
	})

	t.Run("expired beyond skew", func(t *testing.T) {
		f := newFixture(t)
		id := f.backend.AddUser("alice", "secret-pass", "alice@example.com")
		require.True(t, f.guard.Write(ctx, guard.KeyToken, f.backend.MintToken(id, f.now.Add(-time.Minute))))
		_, ok := f.guard.WriteUser(ctx, map[string]any{"id": float64(id), "username": "alice", "email": "alice@example.com"})
		require.True(t, ok)

		assert.False(t, f.manager.Restore(ctx))
		assert.Equal(t, Anonymous, f.manager.State())
		assert.Equal(t, 0, f.store.Len())
		assert.Empty(t, f.listener.authenticated)
		assert.Zero(t, f.listener.ended, "never announced, nothing to end")
	})

	t.Run("token without user", func(t *testing.T) {
		f := newFixture(t)
		require.True(t, f.guard.Write(ctx, guard.KeyToken, f.backend.MintToken(1, f.now.Add(time.Hour))))

		assert.False(t, f.manager.Restore(ctx))
		assert.Equal(t, 0, f.store.Len())
	})
}

func TestRegisterNeverAuthenticates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.manager.Register(ctx, RegisterRequest{Username: "bob_1", Password: "secret-pass", Email: "bob@example.com"})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Registration successful! Please log in.", res.Message)
	assert.Equal(t, Anonymous, f.manager.State())
	assert.Equal(t, 0, f.store.Len())

	res = f.manager.Register(ctx, RegisterRequest{Username: "bob_1", Password: "secret-pass", Email: "bob@example.com"})
	assert.False(t, res.Success)
	assert.Equal(t, "Username already exists", res.Message)
	assert.Equal(t, Anonymous, f.manager.State())
}

func TestRegisterValidatesLocally(t *testing.T) {
	f := newFixture(t)

	res := f.manager.Register(context.Background(), RegisterRequest{Username: "b<", Password: "123", Email: "nope", Phone: "abc"})
	assert.False(t, res.Success)
	details, ok := res.Errors.(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "username")
	assert.Contains(t, details, "password")
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "phone")
	assert.Zero(t, f.backend.Calls(storefronttest.RouteRegister))
}

func TestUnauthorizedResponseExpiresSession(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.Fail(storefronttest.RouteProfile, http.StatusUnauthorized)

	email := "new@example.com"
	res := f.manager.UpdateProfile(context.Background(), ProfileUpdate{Email: &email})
	assert.False(t, res.Success)
	assert.Equal(t, Anonymous, f.manager.State())
	assert.Equal(t, []string{ExpiredMessage}, f.expired)
	assert.Equal(t, ExpiredMessage, f.manager.Err())
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, 1, f.listener.ended)

	f.manager.ClearError()
	assert.Empty(t, f.manager.Err())
}

func TestUpdateProfileStoresSanitizedMerge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	phone := "555-0100<script>"
	res := f.manager.UpdateProfile(ctx, ProfileUpdate{Phone: &phone})
	require.True(t, res.Success, res.Message)

	user := f.manager.CurrentUser()
	require.NotNil(t, user)
	require.NotNil(t, user.Phone)
	assert.Equal(t, "555-0100", *user.Phone)
	assert.Equal(t, "alice", user.Username)

	stored, ok := f.guard.ReadUser(ctx)
	require.True(t, ok)
	assert.Equal(t, "555-0100", *stored.Phone)
	assert.Len(t, f.listener.authenticated, 1, "profile updates are not re-announced")
}

func TestUpdateProfileRequiresSession(t *testing.T) {
	f := newFixture(t)
	res := f.manager.UpdateProfile(context.Background(), ProfileUpdate{})
	assert.False(t, res.Success)
	assert.Zero(t, f.backend.Calls(storefronttest.RouteProfile))
}

func TestIsAuthenticatedSelfHealsOnExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)
	require.True(t, f.manager.IsAuthenticated(ctx))

	f.now = f.now.Add(2 * time.Hour)
	assert.False(t, f.manager.IsAuthenticated(ctx))
	assert.Equal(t, Anonymous, f.manager.State())
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, 1, f.listener.ended)
	assert.Empty(t, f.expired, "silent invalidation does not raise the expiry notice")
}
