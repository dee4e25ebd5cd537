// Package address manages the signed in user's delivery addresses.
package address

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bugisthegod/techmart-storefront/internal/api"
	"github.com/bugisthegod/techmart-storefront/internal/guard"
	pkgerrors "github.com/bugisthegod/techmart-storefront/pkg/errors"
	"github.com/bugisthegod/techmart-storefront/pkg/logger"
	"github.com/bugisthegod/techmart-storefront/pkg/metrics"
)

var errNoUser = errors.New("no authenticated user")

// ErrLoginRequired is returned by every call made without a session.
var ErrLoginRequired = pkgerrors.Wrap(pkgerrors.CodeUnauthorized, errNoUser, "Please login first")

// Doer performs backend calls.
type Doer interface {
	Do(ctx context.Context, req api.Request) (*api.Envelope, error)
}

// UserSource resolves the user whose addresses are managed.
type UserSource interface {
	UserID() (int64, bool)
}

type Service struct {
	client  Doer
	users   UserSource
	logg    *logger.Logger
	metrics *metrics.ClientMetrics
}

func NewService(client Doer, users UserSource, logg *logger.Logger, m *metrics.ClientMetrics) *Service {
	return &Service{client: client, users: users, logg: logg, metrics: m}
}

func (s *Service) List(ctx context.Context) ([]Address, error) {
	var out []Address
	if err := s.call(ctx, api.Request{Operation: "address.list", Method: http.MethodGet, Path: "/addresses"}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Address{}
	}
	return out, nil
}

// Default returns the user's default address. A user without one gets a not found error.
func (s *Service) Default(ctx context.Context) (*Address, error) {
	var out Address
	if err := s.call(ctx, api.Request{Operation: "address.default", Method: http.MethodGet, Path: "/addresses/default"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) Create(ctx context.Context, req Request) (*Address, error) {
	const op = "address.create"
	req = req.clean()
	if err := guard.ValidateStruct(&req); err != nil {
		s.metrics.ObserveOutcome(op, metrics.OutcomeRejected)
		return nil, err
	}
	var out Address
	if err := s.call(ctx, api.Request{Operation: op, Method: http.MethodPost, Path: "/addresses", Body: req}, &out); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "address_id", out.ID), op)
	return &out, nil
}

func (s *Service) Update(ctx context.Context, addressID int64, req Request) (*Address, error) {
	const op = "address.update"
	req = req.clean()
	if err := guard.ValidateStruct(&req); err != nil {
		s.metrics.ObserveOutcome(op, metrics.OutcomeRejected)
		return nil, err
	}
	var out Address
	if err := s.call(ctx, api.Request{
		Operation: op,
		Method:    http.MethodPut,
		Path:      fmt.Sprintf("/addresses/%d", addressID),
		Body:      req,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) Delete(ctx context.Context, addressID int64) error {
	return s.call(ctx, api.Request{
		Operation: "address.delete",
		Method:    http.MethodDelete,
		Path:      fmt.Sprintf("/addresses/%d", addressID),
	}, nil)
}

// SetDefault makes addressID the default and clears the flag on every other address.
func (s *Service) SetDefault(ctx context.Context, addressID int64) (*Address, error) {
	var out Address
	if err := s.call(ctx, api.Request{
		Operation: "address.set_default",
		Method:    http.MethodPut,
		Path:      fmt.Sprintf("/addresses/%d/default", addressID),
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call scopes req to the current user. A nil out ignores the response data.
func (s *Service) call(ctx context.Context, req api.Request, out any) error {
	userID, ok := s.users.UserID()
	if !ok {
		s.metrics.ObserveOutcome(req.Operation, metrics.OutcomeRejected)
		return ErrLoginRequired
	}
	req.Query = url.Values{"userId": {strconv.FormatInt(userID, 10)}}
	ctx = s.logg.WithUserID(ctx, userID)

	env, err := s.client.Do(ctx, req)
	if err != nil {
		s.metrics.ObserveOutcome(req.Operation, metrics.OutcomeFailure)
		return err
	}
	if out != nil {
		if err := api.DecodeRequired(env, out); err != nil {
			s.metrics.ObserveOutcome(req.Operation, metrics.OutcomeFailure)
			return err
		}
	}
	s.metrics.ObserveOutcome(req.Operation, metrics.OutcomeSuccess)
	return nil
}
