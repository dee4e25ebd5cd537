package address

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
	pkgerrors "github.com/bugisthegod/techmart-storefront/pkg/errors"
	"github.com/bugisthegod/techmart-storefront/pkg/logger"
	"github.com/bugisthegod/techmart-storefront/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	backend   *storefronttest.Backend
	session   *session.Manager
	addresses *Service
	userID    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{backend: storefronttest.NewBackend(t)}
	g := guard.New(memory.New(), logger.Nop(), nil)
	tokens := api.TokenSourceFunc(func(ctx context.Context) (string, bool) {
		return g.Read(ctx, guard.KeyToken)
	})
	client := api.NewClient(f.backend.APIConfig(), tokens, logger.Nop(), nil)
	f.session = session.NewManager(g, token.NewLifecycle(config.SessionConfig{}), client, logger.Nop(), nil)
	f.addresses = NewService(client, f.session, logger.Nop(), nil)
	f.userID = f.backend.AddUser("alice", "secret-pass", "alice@example.com")
	return f
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	require.True(t, f.session.Login(context.Background(), "alice", "secret-pass").Success)
}

func home() Request {
	return Request{
		ReceiverName:  "Alice",
		ReceiverPhone: "+1 555 0100",
		Province:      "Ontario",
		City:          "Toronto",
		District:      "Downtown",
		DetailAddress: "1 King St W",
		PostalCode:    "M5H 1A1",
	}
}

func TestFirstAddressBecomesDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	created, err := f.addresses.Create(ctx, home())
	require.NoError(t, err)
	assert.True(t, created.Default())
	assert.Equal(t, f.userID, created.UserID)

	def, err := f.addresses.Default(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.ID, def.ID)
}

func TestSetDefaultMovesTheFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	first, err := f.addresses.Create(ctx, home())
	require.NoError(t, err)
	work := home()
	work.DetailAddress = "100 Queen St W"
	second, err := f.addresses.Create(ctx, work)
	require.NoError(t, err)
	assert.False(t, second.Default())

	_, err = f.addresses.SetDefault(ctx, second.ID)
	require.NoError(t, err)

	list, err := f.addresses.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	preferred, ok := Preferred(list)
	require.True(t, ok)
	assert.Equal(t, second.ID, preferred.ID)
	for _, a := range list {
		assert.Equal(t, a.ID == second.ID, a.Default(), "address %d", a.ID)
	}
	assert.NotEqual(t, first.ID, preferred.ID)
}

func TestUpdateAndDeleteAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	first, err := f.addresses.Create(ctx, home())
	require.NoError(t, err)
	second, err := f.addresses.Create(ctx, home())
	require.NoError(t, err)

	moved := home()
	moved.City = "Ottawa"
	updated, err := f.addresses.Update(ctx, second.ID, moved)
	require.NoError(t, err)
	assert.Equal(t, "Ottawa", updated.City)

	require.NoError(t, f.addresses.Delete(ctx, first.ID))
	assert.Equal(t, 1, f.backend.AddressCount(f.userID))
	def, err := f.addresses.Default(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, def.ID)

	err = f.addresses.Delete(ctx, 999)
	assert.Equal(t, http.StatusNotFound, pkgerrors.StatusOf(err))
}

func TestCreateValidatesLocally(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	req := home()
	req.ReceiverName = "<b></b>"
	req.PostalCode = "  "
	_, err := f.addresses.Create(context.Background(), req)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "receiverName")
	assert.Contains(t, details, "postalCode")
	assert.Zero(t, f.backend.Calls(storefronttest.RouteAddressCreate))
}

func TestCreateStripsMarkup(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	req := home()
	req.DetailAddress = "  <script>x</script>1 King St W "
	created, err := f.addresses.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "x1 King St W", created.DetailAddress)
}

func TestDefaultWithoutAddressesIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	_, err := f.addresses.Default(context.Background())
	assert.Equal(t, http.StatusNotFound, pkgerrors.StatusOf(err))
	assert.Equal(t, "Default address not found", pkgerrors.MessageOf(err, ""))

	_, ok := Preferred(nil)
	assert.False(t, ok)
}

func TestAddressesRequireSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.addresses.List(context.Background())
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.Zero(t, f.backend.Calls(storefronttest.RouteAddressList))
}
