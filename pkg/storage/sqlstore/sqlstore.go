// Package sqlstore provides a GORM-backed storage.Store for sqlite or postgres.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bugisthegod/techmart-storefront/pkg/db"
	"github.com/bugisthegod/techmart-storefront/pkg/migrate"
	"github.com/bugisthegod/techmart-storefront/pkg/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type entry struct {
	Key       string    `gorm:"column:storage_key;primaryKey"`
	Value     string    `gorm:"column:storage_value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (entry) TableName() string { return "storage_entries" }

// Store implements storage.Store on the storage_entries table.
type Store struct {
	client *db.Client
	now    func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New migrates the schema and returns a store on client.
func New(ctx context.Context, client *db.Client) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	sqlDB, err := client.SQL()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	if err := migrate.Up(ctx, sqlDB, client.Dialect()); err != nil {
		return nil, err
	}
	return &Store{client: client, now: time.Now}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var row entry
	err := s.client.DB().WithContext(ctx).Where("storage_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return row.Value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	row := entry{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	return s.client.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"storage_value", "updated_at"}),
	}).Create(&row).Error
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.DB().WithContext(ctx).Where("storage_key IN ?", keys).Delete(&entry{}).Error
}

func (s *Store) Close() error {
	return s.client.Close()
}
