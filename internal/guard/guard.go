// Package guard gates every value written to or read from persistent storage.
package guard

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bugisthegod/techmart-storefront/pkg/logger"
	"github.com/bugisthegod/techmart-storefront/pkg/metrics"
	"github.com/bugisthegod/techmart-storefront/pkg/storage"
	"go.uber.org/multierr"
)

// Storage keys.
const (
	KeyToken      = "jwt_token"
	KeyUser       = "user_data"
	KeyCartItems  = "items"
	KeyOrderToken = "Idempotency-Token"
)

// AuthKeys are purged together whenever a session ends.
var AuthKeys = []string{KeyToken, KeyUser}

type Guard struct {
	store   storage.Store
	logg    *logger.Logger
	metrics *metrics.ClientMetrics
}

func New(store storage.Store, logg *logger.Logger, m *metrics.ClientMetrics) *Guard {
	return &Guard{store: store, logg: logg, metrics: m}
}

// Read returns the stored value only if it still validates. Invalid values are deleted.
func (g *Guard) Read(ctx context.Context, key string) (string, bool) {
	ctx = g.logg.WithField(ctx, "storage_key", key)
	value, err := g.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			g.logg.Error(ctx, "storage.read_failed", err)
		}
		return "", false
	}
	if value == "" {
		return "", false
	}
	if !Validate(key, value) {
		g.metrics.IncRejection(key)
		g.logg.Warn(ctx, "storage.read_purged")
		if err := g.store.Delete(ctx, key); err != nil {
			g.logg.Error(ctx, "storage.purge_failed", err)
		}
		return "", false
	}
	return value, true
}

// Write persists value when it validates for key and reports whether it was stored.
func (g *Guard) Write(ctx context.Context, key, value string) bool {
	ctx = g.logg.WithField(ctx, "storage_key", key)
	if !Validate(key, value) {
		g.metrics.IncRejection(key)
		g.logg.Warn(ctx, "storage.write_rejected")
		return false
	}
	if err := g.store.Set(ctx, key, value); err != nil {
		g.logg.Error(ctx, "storage.write_failed", err)
		return false
	}
	return true
}

// Remove deletes every key and reports all failures together.
func (g *Guard) Remove(ctx context.Context, keys ...string) error {
	var errs error
	for _, key := range keys {
		if err := g.store.Delete(ctx, key); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		g.logg.Error(ctx, "storage.remove_failed", errs)
	}
	return errs
}

// WriteUser sanitizes record and stores it if the result still satisfies the user schema.
func (g *Guard) WriteUser(ctx context.Context, raw any) (*UserRecord, bool) {
	record := SanitizeUserRecord(raw)
	if record == nil {
		g.metrics.IncRejection(KeyUser)
		g.logg.Warn(g.logg.WithField(ctx, "storage_key", KeyUser), "storage.write_rejected")
		return nil, false
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return nil, false
	}
	if !g.Write(ctx, KeyUser, string(encoded)) {
		return nil, false
	}
	return record, true
}

// ReadUser decodes the stored user record.
func (g *Guard) ReadUser(ctx context.Context) (*UserRecord, bool) {
	value, ok := g.Read(ctx, KeyUser)
	if !ok {
		return nil, false
	}
	var record UserRecord
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		return nil, false
	}
	return &record, true
}
