package taskstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solrun-hq/solrunner/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "tasks.db"), nil)
	require.NoError(t, err)
	return store
}

func makeTask(t *testing.T, owner string, amount string) models.AutoSwapTask {
	t.Helper()
	return models.NewTask(owner, models.ResolvedSwap{
		InputMint:    "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		OutputMint:   "So11111111111111111111111111111111111111112",
		InputSymbol:  "USDC",
		OutputSymbol: "SOL",
		Amount:       decimal.RequireFromString(amount),
	}, models.PriceTrigger(models.PriceUnder, decimal.RequireFromString("150")), time.Now())
}

func TestCreateIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	task := makeTask(t, "owner-1", "100")

	created, err := store.Create(ctx, task)
	require.NoError(t, err)
	assert.True(t, created)

	// identical content-derived id, second insert is a no-op
	created, err = store.Create(ctx, task)
	require.NoError(t, err)
	assert.False(t, created)

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	task := makeTask(t, "owner-1", "100")

	_, err := store.Create(ctx, task)
	require.NoError(t, err)

	got, err := store.Get(ctx, task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.OwnerID, got.OwnerID)
	assert.Equal(t, models.TaskPending, got.Status)
	assert.True(t, task.Swap.Amount.Equal(got.Swap.Amount))
	assert.Equal(t, task.Trigger.Kind, got.Trigger.Kind)
	assert.True(t, task.Trigger.TargetPrice.Equal(got.Trigger.TargetPrice))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimIsExclusive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	task := makeTask(t, "owner-1", "100")
	_, err := store.Create(ctx, task)
	require.NoError(t, err)

	claimed, err := store.Claim(ctx, task.TaskID)
	require.NoError(t, err)
	assert.True(t, claimed)

	// second claim loses
	claimed, err = store.Claim(ctx, task.TaskID)
	require.NoError(t, err)
	assert.False(t, claimed)

	// claimed tasks are no longer pending
	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	t.Run("complete", func(t *testing.T) {
		task := makeTask(t, "owner-1", "10")
		_, err := store.Create(ctx, task)
		require.NoError(t, err)
		_, err = store.Claim(ctx, task.TaskID)
		require.NoError(t, err)

		require.NoError(t, store.Complete(ctx, task.TaskID))
		got, err := store.Get(ctx, task.TaskID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskCompleted, got.Status)
	})

	t.Run("fail", func(t *testing.T) {
		task := makeTask(t, "owner-1", "11")
		_, err := store.Create(ctx, task)
		require.NoError(t, err)
		_, err = store.Claim(ctx, task.TaskID)
		require.NoError(t, err)

		require.NoError(t, store.Fail(ctx, task.TaskID))
		got, err := store.Get(ctx, task.TaskID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskFailed, got.Status)
	})

	t.Run("release returns task to pending", func(t *testing.T) {
		task := makeTask(t, "owner-1", "12")
		_, err := store.Create(ctx, task)
		require.NoError(t, err)
		_, err = store.Claim(ctx, task.TaskID)
		require.NoError(t, err)

		require.NoError(t, store.Release(ctx, task.TaskID))
		claimed, err := store.Claim(ctx, task.TaskID)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("finish on unknown id", func(t *testing.T) {
		assert.ErrorIs(t, store.Complete(ctx, "missing"), ErrNotFound)
	})
}

func TestRemove(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	task := makeTask(t, "owner-1", "100")
	_, err := store.Create(ctx, task)
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, task.TaskID))
	_, err = store.Get(ctx, task.TaskID)
	assert.ErrorIs(t, err, ErrNotFound)

	// removing again is harmless
	assert.NoError(t, store.Remove(ctx, task.TaskID))
}

func TestListByOwner(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, tc := range []struct{ owner, amount string }{
		{"owner-1", "100"},
		{"owner-1", "200"},
		{"owner-2", "300"},
	} {
		_, err := store.Create(ctx, makeTask(t, tc.owner, tc.amount))
		require.NoError(t, err)
	}

	tasks, err := store.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, "owner-1", task.OwnerID)
	}
}

func TestRecoverOrphans(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a := makeTask(t, "owner-1", "1")
	b := makeTask(t, "owner-1", "2")
	for _, task := range []models.AutoSwapTask{a, b} {
		_, err := store.Create(ctx, task)
		require.NoError(t, err)
	}
	_, err := store.Claim(ctx, a.TaskID)
	require.NoError(t, err)

	recovered, err := store.RecoverOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), recovered)

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestPurgeFinished(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	done := makeTask(t, "owner-1", "1")
	done.CreatedAt = time.Now().Add(-48 * time.Hour)
	_, err := store.Create(ctx, done)
	require.NoError(t, err)
	_, err = store.Claim(ctx, done.TaskID)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, done.TaskID))

	fresh := makeTask(t, "owner-1", "2")
	_, err = store.Create(ctx, fresh)
	require.NoError(t, err)

	purged, err := store.PurgeFinished(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = store.Get(ctx, done.TaskID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, fresh.TaskID)
	assert.NoError(t, err)
}
