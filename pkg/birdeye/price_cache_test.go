package birdeye

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceCache(t *testing.T) {
	t.Run("miss on empty cache", func(t *testing.T) {
		cache := NewPriceCache(time.Minute)
		_, ok := cache.Get(solMint)
		assert.False(t, ok)
	})

	t.Run("hit within TTL", func(t *testing.T) {
		cache := NewPriceCache(time.Minute)
		cache.Set(solMint, decimal.NewFromInt(160))

		price, ok := cache.Get(solMint)
		require.True(t, ok)
		assert.True(t, price.Equal(decimal.NewFromInt(160)))
	})

	t.Run("miss after TTL", func(t *testing.T) {
		cache := NewPriceCache(time.Nanosecond)
		cache.Set(solMint, decimal.NewFromInt(160))

		time.Sleep(time.Millisecond)
		_, ok := cache.Get(solMint)
		assert.False(t, ok)
	})

	t.Run("clear empties the cache", func(t *testing.T) {
		cache := NewPriceCache(time.Minute)
		cache.Set(solMint, decimal.NewFromInt(160))
		cache.Set("otherMint", decimal.NewFromInt(1))
		require.Equal(t, 2, cache.Len())

		cache.Clear()
		assert.Equal(t, 0, cache.Len())
	})
}

type countingFeed struct {
	price decimal.Decimal
	err   error
	calls int
}

func (f *countingFeed) Price(_ context.Context, _ string) (decimal.Decimal, error) {
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.price, nil
}

func TestCachedFeed(t *testing.T) {
	t.Run("second lookup served from cache", func(t *testing.T) {
		upstream := &countingFeed{price: decimal.NewFromInt(160)}
		feed := NewCachedFeed(upstream, time.Minute)

		for i := 0; i < 3; i++ {
			price, err := feed.Price(context.Background(), solMint)
			require.NoError(t, err)
			assert.True(t, price.Equal(decimal.NewFromInt(160)))
		}
		assert.Equal(t, 1, upstream.calls)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		upstream := &countingFeed{err: errors.New("rate limited")}
		feed := NewCachedFeed(upstream, time.Minute)

		_, err := feed.Price(context.Background(), solMint)
		require.Error(t, err)
		_, err = feed.Price(context.Background(), solMint)
		require.Error(t, err)
		assert.Equal(t, 2, upstream.calls)
	})

	t.Run("expired entry refetched", func(t *testing.T) {
		upstream := &countingFeed{price: decimal.NewFromInt(160)}
		feed := NewCachedFeed(upstream, time.Nanosecond)

		_, err := feed.Price(context.Background(), solMint)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
		_, err = feed.Price(context.Background(), solMint)
		require.NoError(t, err)
		assert.Equal(t, 2, upstream.calls)
	})
}
