package storefronttest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxToken
)

func (b *Backend) router() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.With(b.instrument(RouteLogin)).Post("/login", b.handleLogin)
			r.With(b.instrument(RouteRegister)).Post("/register", b.handleRegister)
			r.With(b.instrument(RouteLogout), b.requireAuth).Post("/logout", b.handleLogout)
			r.With(b.instrument(RouteProfile), b.requireAuth).Put("/profile", b.handleProfile)
		})
		r.Route("/cart", func(r chi.Router) {
			r.With(b.scoped(RouteCartLoad)...).Get("/", b.handleCartLoad)
			r.With(b.scoped(RouteCartAdd)...).Post("/add", b.handleCartAdd)
			r.With(b.scoped(RouteCartRemove)...).Delete("/remove/{cartItemID}", b.handleCartRemove)
			r.With(b.scoped(RouteCartUpdate)...).Put("/update/{cartItemID}", b.handleCartUpdate)
			r.With(b.scoped(RouteCartSelect)...).Put("/select/{cartItemID}", b.handleCartSelect)
			r.With(b.scoped(RouteCartClear)...).Delete("/clear", b.handleCartClear)
		})
		r.Route("/orders", func(r chi.Router) {
			r.With(b.scoped(RouteOrderToken)...).Post("/generateOrderToken", b.handleOrderToken)
			r.With(b.scoped(RouteOrderCreate)...).Post("/", b.handleOrderCreate)
			r.With(b.scoped(RouteOrderList)...).Get("/", b.handleOrderList)
			r.With(b.scoped(RouteOrderGet)...).Get("/{orderID}", b.handleOrderGet)
			r.With(b.scoped(RouteOrderPay)...).Put("/{orderID}/pay", b.handleOrderPay)
			r.With(b.scoped(RouteOrderCancel)...).Put("/{orderID}/cancel", b.handleOrderCancel)
		})
		r.Route("/addresses", func(r chi.Router) {
			r.With(b.scoped(RouteAddressList)...).Get("/", b.handleAddressList)
			r.With(b.scoped(RouteAddressDefault)...).Get("/default", b.handleAddressDefault)
			r.With(b.scoped(RouteAddressCreate)...).Post("/", b.handleAddressCreate)
			r.With(b.scoped(RouteAddressUpdate)...).Put("/{addressID}", b.handleAddressUpdate)
			r.With(b.scoped(RouteAddressDelete)...).Delete("/{addressID}", b.handleAddressDelete)
			r.With(b.scoped(RouteAddressSetDefault)...).Put("/{addressID}/default", b.handleAddressSetDefault)
		})
	})
	return r
}

// scoped is the middleware chain for routes that act on the userId query parameter.
func (b *Backend) scoped(route string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{b.instrument(route), b.requireAuth, b.requireUserParam}
}

// instrument counts calls and applies configured barriers and failures for route.
func (b *Backend) instrument(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			b.calls[route]++
			barrier := b.barriers[route]
			fail, failing := b.failures[route]
			b.mu.Unlock()

			if barrier != nil {
				barrier.once.Do(func() { close(barrier.arrived) })
				select {
				case <-barrier.release:
				case <-r.Context().Done():
					return
				}
			}
			if failing {
				if fail.network {
					dropConnection(w)
					return
				}
				writeError(w, fail.status, http.StatusText(fail.status))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		writeError(w, http.StatusBadGateway, "connection dropped")
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}

func (b *Backend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		b.mu.Lock()
		_, revoked := b.revoked[raw]
		now := b.now()
		b.mu.Unlock()
		if revoked {
			writeError(w, http.StatusUnauthorized, "Token has been revoked")
			return
		}
		claims, err := b.issuer.parse(raw, now)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxToken, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (b *Backend) requireUserParam(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}
		if userID != authUserID(r) {
			writeError(w, http.StatusForbidden, "Access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func authUserID(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxUserID).(int64)
	return id
}

func authToken(r *http.Request) string {
	tok, _ := r.Context().Value(ctxToken).(string)
	return tok
}

type envelope struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Data   any    `json:"data,omitempty"`
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Msg: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"status": status, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil
}
