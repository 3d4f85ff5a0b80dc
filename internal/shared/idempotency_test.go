package shared

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIdempotencyStoreWithoutPool(t *testing.T) {
	var store *IdempotencyStore
	require.Error(t, store.CheckAndInsert(context.Background(), "k", "reports.generate"))
	require.NoError(t, store.Delete(context.Background(), "k", "reports.generate"))

	n, err := NewIdempotencyStore(nil).Cleanup(context.Background(), time.Hour)
	require.NoError(t, err)
	require.Zero(t, n)
}
