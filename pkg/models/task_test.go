package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSwap() ResolvedSwap {
	return ResolvedSwap{
		InputMint:    "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		OutputMint:   "So11111111111111111111111111111111111111112",
		InputSymbol:  "USDC",
		OutputSymbol: "SOL",
		Amount:       decimal.RequireFromString("25.5"),
	}
}

func TestTaskID(t *testing.T) {
	trigger := PriceTrigger(PriceUnder, decimal.RequireFromString("100"))

	t.Run("deterministic", func(t *testing.T) {
		a := TaskID("owner-1", testSwap(), trigger)
		b := TaskID("owner-1", testSwap(), trigger)
		assert.Equal(t, a, b)
		assert.Len(t, a, 32) // hex md5
	})

	t.Run("differs per owner", func(t *testing.T) {
		a := TaskID("owner-1", testSwap(), trigger)
		b := TaskID("owner-2", testSwap(), trigger)
		assert.NotEqual(t, a, b)
	})

	t.Run("differs per amount", func(t *testing.T) {
		other := testSwap()
		other.Amount = decimal.RequireFromString("25.6")
		a := TaskID("owner-1", testSwap(), trigger)
		b := TaskID("owner-1", other, trigger)
		assert.NotEqual(t, a, b)
	})

	t.Run("differs per trigger", func(t *testing.T) {
		a := TaskID("owner-1", testSwap(), PriceTrigger(PriceUnder, decimal.RequireFromString("100")))
		b := TaskID("owner-1", testSwap(), PriceTrigger(PriceOver, decimal.RequireFromString("100")))
		c := TaskID("owner-1", testSwap(), PriceTrigger(PriceUnder, decimal.RequireFromString("101")))
		assert.NotEqual(t, a, b)
		assert.NotEqual(t, a, c)
	})
}

func TestNewTask(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	task := NewTask("owner-1", testSwap(), Immediate(), now)

	require.NotEmpty(t, task.TaskID)
	assert.Equal(t, "owner-1", task.OwnerID)
	assert.Equal(t, TaskPending, task.Status)
	assert.Equal(t, now.Add(DefaultExpiryHorizon), task.ExpireAt)

	t.Run("expiry boundary", func(t *testing.T) {
		assert.False(t, task.Expired(now))
		assert.False(t, task.Expired(now.Add(DefaultExpiryHorizon-time.Second)))
		assert.True(t, task.Expired(now.Add(DefaultExpiryHorizon)))
		assert.True(t, task.Expired(now.Add(DefaultExpiryHorizon+time.Hour)))
	})
}
