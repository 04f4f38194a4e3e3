package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redstick-goods/storefront/internal/checkout"
	"github.com/redstick-goods/storefront/internal/commerce"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestKVRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	val, err := repo.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, val, "absent key is not an error")

	require.NoError(t, repo.Set(ctx, "k", "v1"))
	val, err = repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", val)

	// Upsert.
	require.NoError(t, repo.Set(ctx, "k", "v2"))
	val, err = repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", val)

	require.NoError(t, repo.Delete(ctx, "k"))
	val, err = repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, repo.Delete(ctx, "k"), "deleting an absent key is a no-op")
}

func TestReceiptsLatest(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest, "no receipts yet")

	first := &checkout.Receipt{
		PaymentID:   "payment-1",
		OrderID:     "order-1",
		Amount:      commerce.Money{Amount: 8038, Currency: "USD"},
		Customer:    checkout.Customer{Name: "Ada", Email: "ada@example.com"},
		CompletedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	second := &checkout.Receipt{
		PaymentID:   "payment-2",
		OrderID:     "order-2",
		Amount:      commerce.Money{Amount: 1099, Currency: "USD"},
		CompletedAt: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	latest, err = repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "payment-2", latest.PaymentID)
	assert.Equal(t, second.Amount, latest.Amount)
}
