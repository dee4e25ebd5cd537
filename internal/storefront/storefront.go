// Package storefront assembles the session, cart, address and order components into one client.
package storefront

import (
	"context"
	"errors"
	"net/http"

	"github.com/bugisthegod/techmart-storefront/internal/address"
	"github.com/bugisthegod/techmart-storefront/internal/api"
	"github.com/bugisthegod/techmart-storefront/internal/cart"
	"github.com/bugisthegod/techmart-storefront/internal/guard"
	"github.com/bugisthegod/techmart-storefront/internal/orders"
	"github.com/bugisthegod/techmart-storefront/internal/session"
	"github.com/bugisthegod/techmart-storefront/internal/token"
	"github.com/bugisthegod/techmart-storefront/pkg/config"
	"github.com/bugisthegod/techmart-storefront/pkg/logger"
	"github.com/bugisthegod/techmart-storefront/pkg/metrics"
	"github.com/bugisthegod/techmart-storefront/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
)

// Params configures New. Store, Registerer and HTTPClient are optional.
type Params struct {
	Config *config.Config
	Logger *logger.Logger
	// Store overrides the backend selected by Config.Storage.
	Store      storage.Store
	Registerer prometheus.Registerer
	HTTPClient *http.Client
	// OnSessionExpired receives the notice shown after a forced logout.
	OnSessionExpired session.SessionExpiredFunc
}

// Storefront is the assembled client. Its components share one guard and one API client.
type Storefront struct {
	Session   *session.Manager
	Cart      *cart.Machine
	Addresses *address.Service
	Orders    *orders.Service
	Guard     *guard.Guard
	API       *api.Client
	Metrics   *metrics.ClientMetrics

	store storage.Store
	logg  *logger.Logger
}

func New(ctx context.Context, p Params) (*Storefront, error) {
	if p.Config == nil {
		return nil, errors.New("storefront: config is required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	store := p.Store
	if store == nil {
		opened, err := OpenStore(ctx, p.Config, logg)
		if err != nil {
			return nil, err
		}
		store = opened
	}

	var m *metrics.ClientMetrics
	if p.Config.Metrics.Enabled {
		reg := p.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		m = metrics.NewClientMetrics(reg)
	}

	sf := &Storefront{Metrics: m, store: store, logg: logg}
	sf.Guard = guard.New(store, logg, m)

	tokens := api.TokenSourceFunc(func(ctx context.Context) (string, bool) {
		return sf.Guard.Read(ctx, guard.KeyToken)
	})
	opts := []api.Option{
		api.WithUnauthorizedHandler(func(ctx context.Context) { sf.Session.Expire(ctx) }),
	}
	if p.HTTPClient != nil {
		opts = append(opts, api.WithHTTPClient(p.HTTPClient))
	}
	sf.API = api.NewClient(p.Config.API, tokens, logg, m, opts...)

	var sessionOpts []session.Option
	if p.OnSessionExpired != nil {
		sessionOpts = append(sessionOpts, session.WithSessionExpiredFunc(p.OnSessionExpired))
	}
	sf.Session = session.NewManager(sf.Guard, token.NewLifecycle(p.Config.Session), sf.API, logg, m, sessionOpts...)
	sf.Cart = cart.NewMachine(cart.NewRemote(sf.API, sf.Session), sf.Guard, logg, m)
	sf.Session.Subscribe(sf.Cart)
	sf.Addresses = address.NewService(sf.API, sf.Session, logg, m)
	sf.Orders = orders.NewService(sf.API, sf.Session, sf.Guard, logg, m)
	return sf, nil
}

// Start restores the persisted session. A restored session loads its cart.
func (s *Storefront) Start(ctx context.Context) bool {
	restored := s.Session.Restore(ctx)
	s.logg.Info(s.logg.WithField(ctx, "restored", restored), "storefront.started")
	return restored
}

// PlaceOrder creates an order and refreshes the cart the order consumed. Without an
// address the order ships to the default address, else the first saved one.
func (s *Storefront) PlaceOrder(ctx context.Context, req orders.OrderRequest, orderToken string) (*orders.Order, error) {
	if req.AddressID == "" {
		list, err := s.Addresses.List(ctx)
		if err != nil {
			return nil, err
		}
		if preferred, ok := address.Preferred(list); ok {
			req.AddressID = preferred.OrderID()
		}
	}
	order, err := s.Orders.CreateOrder(ctx, req, orderToken)
	if err != nil {
		return nil, err
	}
	s.Cart.LoadCart(ctx)
	return order, nil
}

// Close releases the storage backend.
func (s *Storefront) Close() error {
	s.Cart.Reset(context.Background())
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}
