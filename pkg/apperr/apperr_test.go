package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNoRoute, CodeOf(New(CodeNoRoute, "no route")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	t.Run("survives wrapping", func(t *testing.T) {
		inner := New(CodeInsufficientBalance, "short")
		wrapped := fmt.Errorf("context: %w", inner)
		assert.Equal(t, CodeInsufficientBalance, CodeOf(wrapped))
	})
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeUnavailable, "rpc call", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "rpc call")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestShortfall(t *testing.T) {
	err := InsufficientBalance("SOL",
		decimal.RequireFromString("1.5"),
		decimal.RequireFromString("0.2"))

	assert.Equal(t, CodeInsufficientBalance, CodeOf(err))

	short, ok := ShortfallOf(err)
	require.True(t, ok)
	assert.Equal(t, "SOL", short.Asset)
	assert.Equal(t, "1.5", short.Required.String())
	assert.Equal(t, "0.2", short.Available.String())
	assert.Contains(t, err.Error(), "required 1.5")

	t.Run("absent on other errors", func(t *testing.T) {
		_, ok := ShortfallOf(New(CodeNoRoute, "no route"))
		assert.False(t, ok)
	})
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(New(CodeMissingAmount, "missing")))
	assert.True(t, IsRecoverable(New(CodeNoRoute, "no route")))
	assert.False(t, IsRecoverable(New(CodeUnavailable, "down")))
	assert.False(t, IsRecoverable(New(CodeRejectedByUser, "cancelled")))
}
