package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bugisthegod/techmart-storefront/internal/api"
	pkgerrors "github.com/bugisthegod/techmart-storefront/pkg/errors"
)

// Doer performs backend calls.
type Doer interface {
	Do(ctx context.Context, req api.Request) (*api.Envelope, error)
}

// UserSource resolves the user the cart belongs to.
type UserSource interface {
	UserID() (int64, bool)
}

var errNoUser = errors.New("no authenticated user")

// ErrLoginRequired is returned by every remote call made without a session.
var ErrLoginRequired = pkgerrors.Wrap(pkgerrors.CodeUnauthorized, errNoUser, "Please login first")

// Remote is the HTTP binding of the cart endpoints.
type Remote struct {
	client Doer
	users  UserSource
}

func NewRemote(client Doer, users UserSource) *Remote {
	return &Remote{client: client, users: users}
}

type addRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
	Selected  int   `json:"selected"`
}

func (r *Remote) Add(ctx context.Context, productID int64, quantity int, selected bool) (*wireCart, error) {
	return r.call(ctx, api.Request{
		Operation: "cart.add",
		Method:    http.MethodPost,
		Path:      "/cart/add",
		Body:      addRequest{ProductID: productID, Quantity: quantity, Selected: selectedFlag(selected)},
	}, nil)
}

func (r *Remote) Remove(ctx context.Context, cartItemID int64) (*wireCart, error) {
	return r.call(ctx, api.Request{
		Operation: "cart.remove",
		Method:    http.MethodDelete,
		Path:      fmt.Sprintf("/cart/remove/%d", cartItemID),
	}, nil)
}

func (r *Remote) UpdateQuantity(ctx context.Context, cartItemID int64, quantity int) (*wireCart, error) {
	return r.call(ctx, api.Request{
		Operation: "cart.update_quantity",
		Method:    http.MethodPut,
		Path:      fmt.Sprintf("/cart/update/%d", cartItemID),
	}, url.Values{"quantity": {strconv.Itoa(quantity)}})
}

func (r *Remote) UpdateSelection(ctx context.Context, cartItemID int64, selected bool) (*wireCart, error) {
	return r.call(ctx, api.Request{
		Operation: "cart.update_selection",
		Method:    http.MethodPut,
		Path:      fmt.Sprintf("/cart/select/%d", cartItemID),
	}, url.Values{"selected": {strconv.Itoa(selectedFlag(selected))}})
}

func (r *Remote) Load(ctx context.Context) (*wireCart, error) {
	return r.call(ctx, api.Request{
		Operation: "cart.load",
		Method:    http.MethodGet,
		Path:      "/cart",
	}, nil)
}

func (r *Remote) Clear(ctx context.Context) error {
	_, err := r.call(ctx, api.Request{
		Operation: "cart.clear",
		Method:    http.MethodDelete,
		Path:      "/cart/clear",
	}, nil)
	return err
}

// call scopes req to the current user and decodes the cart payload, if any.
func (r *Remote) call(ctx context.Context, req api.Request, query url.Values) (*wireCart, error) {
	userID, ok := r.users.UserID()
	if !ok {
		return nil, ErrLoginRequired
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("userId", strconv.FormatInt(userID, 10))
	req.Query = query

	env, err := r.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, nil
	}
	w, err := decodeCart(env.Data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "malformed cart response")
	}
	return w, nil
}
