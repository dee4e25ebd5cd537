package bbolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bugisthegod/techmart-storefront/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "storefront.db")

	s, err := Open(path, "")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "jwt_token", "a.b.c"))
	require.NoError(t, s.Close())

	reopened, err := Open(path, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Get(ctx, "jwt_token")
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", got)

	require.NoError(t, reopened.Delete(ctx, "jwt_token", "absent"))
	_, err = reopened.Get(ctx, "jwt_token")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
