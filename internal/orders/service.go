// Package orders places and tracks orders for the signed in user.
package orders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bugisthegod/techmart-storefront/internal/api"
	"github.com/bugisthegod/techmart-storefront/internal/guard"
	"github.com/bugisthegod/techmart-storefront/pkg/enums"
	pkgerrors "github.com/bugisthegod/techmart-storefront/pkg/errors"
	"github.com/bugisthegod/techmart-storefront/pkg/logger"
	"github.com/bugisthegod/techmart-storefront/pkg/metrics"
	"github.com/bugisthegod/techmart-storefront/pkg/pagination"
)

// ErrOrderTokenRequired is returned by CreateOrder when no idempotency token is supplied.
var ErrOrderTokenRequired = pkgerrors.New(pkgerrors.CodePrecondition, "Order token is required for idempotency")

var errNoUser = errors.New("no authenticated user")

// ErrLoginRequired is returned by every call made without a session.
var ErrLoginRequired = pkgerrors.Wrap(pkgerrors.CodeUnauthorized, errNoUser, "Please login first")

// Doer performs backend calls.
type Doer interface {
	Do(ctx context.Context, req api.Request) (*api.Envelope, error)
}

// UserSource resolves the user orders are placed for.
type UserSource interface {
	UserID() (int64, bool)
}

type Service struct {
	client  Doer
	users   UserSource
	guard   *guard.Guard
	logg    *logger.Logger
	metrics *metrics.ClientMetrics
}

func NewService(client Doer, users UserSource, g *guard.Guard, logg *logger.Logger, m *metrics.ClientMetrics) *Service {
	return &Service{client: client, users: users, guard: g, logg: logg, metrics: m}
}

// GenerateOrderToken obtains a fresh idempotency token and keeps it in storage until the order is placed.
func (s *Service) GenerateOrderToken(ctx context.Context) (string, error) {
	const op = "orders.generate_token"
	var tok string
	if err := s.call(ctx, api.Request{Operation: op, Method: http.MethodPost, Path: "/orders/generateOrderToken"}, nil, &tok); err != nil {
		return "", err
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		s.metrics.ObserveOutcome(op, metrics.OutcomeFailure)
		return "", pkgerrors.New(pkgerrors.CodeDependency, "Invalid response: missing order token")
	}
	if !s.guard.Write(ctx, guard.KeyOrderToken, tok) {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "failed to persist order token")
	}
	s.metrics.ObserveOutcome(op, metrics.OutcomeSuccess)
	return tok, nil
}

// StoredOrderToken returns the token kept by the last GenerateOrderToken call.
func (s *Service) StoredOrderToken(ctx context.Context) (string, bool) {
	return s.guard.Read(ctx, guard.KeyOrderToken)
}

// CreateOrder places an order for the selected cart rows. Retrying with the same token
// returns the order created by the first successful attempt.
func (s *Service) CreateOrder(ctx context.Context, req OrderRequest, orderToken string) (*Order, error) {
	const op = "orders.create"
	orderToken = strings.TrimSpace(orderToken)
	if orderToken == "" {
		s.metrics.ObserveOutcome(op, metrics.OutcomeRejected)
		return nil, ErrOrderTokenRequired
	}
	if req.FreightType != "" && !req.FreightType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"freightType": "oneof"})
	}
	if err := guard.ValidateStruct(&req); err != nil {
		return nil, err
	}

	var order Order
	err := s.call(ctx, api.Request{
		Operation: op,
		Method:    http.MethodPost,
		Path:      "/orders",
		Body:      req,
		Header:    http.Header{api.HeaderIdempotencyToken: {orderToken}},
	}, nil, &order)
	if err != nil {
		return nil, err
	}

	if stored, ok := s.guard.Read(ctx, guard.KeyOrderToken); ok && stored == orderToken {
		if err := s.guard.Remove(ctx, guard.KeyOrderToken); err != nil {
			s.logg.Warn(ctx, "orders.token_remove_failed")
		}
	}
	s.logg.Info(s.logg.WithField(ctx, "order_no", order.OrderNo), "orders.created")
	s.metrics.ObserveOutcome(op, metrics.OutcomeSuccess)
	return &order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	var order Order
	if err := s.call(ctx, api.Request{
		Operation: "orders.get",
		Method:    http.MethodGet,
		Path:      fmt.Sprintf("/orders/%d", orderID),
	}, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns one page of the user's orders, newest first. A nil status lists every order.
func (s *Service) ListOrders(ctx context.Context, page, size int, status *int) (*pagination.Page[Order], error) {
	params := pagination.Normalize(pagination.Params{Page: page, Size: size})
	query := url.Values{
		"page": {strconv.Itoa(params.Page)},
		"size": {strconv.Itoa(params.Size)},
	}
	if status != nil {
		query.Set("status", strconv.Itoa(*status))
	}

	var out pagination.Page[Order]
	if err := s.call(ctx, api.Request{Operation: "orders.list", Method: http.MethodGet, Path: "/orders"}, query, &out); err != nil {
		return nil, err
	}
	if out.Content == nil {
		out.Content = []Order{}
	}
	return &out, nil
}

// PayOrder settles a pending order.
func (s *Service) PayOrder(ctx context.Context, orderID int64) (*Order, error) {
	return s.transition(ctx, "orders.pay", orderID, "pay")
}

// CancelOrder cancels a pending order.
func (s *Service) CancelOrder(ctx context.Context, orderID int64) (*Order, error) {
	return s.transition(ctx, "orders.cancel", orderID, "cancel")
}

func (s *Service) transition(ctx context.Context, op string, orderID int64, verb string) (*Order, error) {
	ctx = s.logg.WithField(ctx, "order_id", orderID)
	var order Order
	if err := s.call(ctx, api.Request{
		Operation: op,
		Method:    http.MethodPut,
		Path:      fmt.Sprintf("/orders/%d/%s", orderID, verb),
	}, nil, &order); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "status", order.Status.String()), op)
	return &order, nil
}

// IsCancellable reports whether the order may still be cancelled.
func IsCancellable(o *Order) bool {
	return o != nil && o.Status == enums.OrderStatusPending
}

// call scopes req to the current user and decodes the response data into out.
func (s *Service) call(ctx context.Context, req api.Request, query url.Values, out any) error {
	userID, ok := s.users.UserID()
	if !ok {
		s.metrics.ObserveOutcome(req.Operation, metrics.OutcomeRejected)
		return ErrLoginRequired
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("userId", strconv.FormatInt(userID, 10))
	req.Query = query
	ctx = s.logg.WithUserID(ctx, userID)

	env, err := s.client.Do(ctx, req)
	if err != nil {
		s.metrics.ObserveOutcome(req.Operation, metrics.OutcomeFailure)
		return err
	}
	if err := api.DecodeRequired(env, out); err != nil {
		s.metrics.ObserveOutcome(req.Operation, metrics.OutcomeFailure)
		return err
	}
	return nil
}
