package birdeye

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const solMint = "So11111111111111111111111111111111111111112"

func TestPrice(t *testing.T) {
	t.Run("successful lookup", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/defi/price", r.URL.Path)
			assert.Equal(t, solMint, r.URL.Query().Get("address"))
			assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))
			assert.Equal(t, "solana", r.Header.Get("x-chain"))

			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data":    map[string]any{"value": 161.55},
			})
		}))
		defer server.Close()

		price, err := NewClient("test-key", nil).WithBaseURL(server.URL).Price(context.Background(), solMint)
		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.NewFromFloat(161.55)), "got %s", price)
	})

	t.Run("unknown mint", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data":    map[string]any{"value": 0},
			})
		}))
		defer server.Close()

		_, err := NewClient("test-key", nil).WithBaseURL(server.URL).Price(context.Background(), "unknownMint")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no price available")
	})

	t.Run("api rejection", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
		}))
		defer server.Close()

		_, err := NewClient("test-key", nil).WithBaseURL(server.URL).Price(context.Background(), solMint)
		require.Error(t, err)
	})
}

func TestSearchSymbol(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/defi/v3/search", r.URL.Path)
		assert.Equal(t, "BONK", r.URL.Query().Get("keyword"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"items": []any{
					map[string]any{
						"type": "market",
						"result": []any{
							map[string]any{"address": "marketAddr", "symbol": "BONK-SOL"},
						},
					},
					map[string]any{
						"type": "token",
						"result": []any{
							map[string]any{"address": "lowVolume", "symbol": "BONK", "volume_24h_usd": 1000.0},
							map[string]any{"address": "highVolume", "symbol": "BONK", "volume_24h_usd": 9000000.0},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	matches, err := NewClient("test-key", nil).WithBaseURL(server.URL).SearchSymbol(context.Background(), "BONK")
	require.NoError(t, err)
	require.Len(t, matches, 2, "market entries must be filtered out")
	assert.Equal(t, "highVolume", matches[0].Address, "highest volume first")
	assert.Equal(t, "lowVolume", matches[1].Address)
}

func TestPortfolio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/wallet/token_list", r.URL.Path)
		assert.Equal(t, "wallet-addr", r.URL.Query().Get("wallet"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"wallet":   "wallet-addr",
				"totalUsd": 1234.56,
				"items": []any{
					map[string]any{"address": solMint, "symbol": "SOL", "decimals": 9, "uiAmount": 2.5, "valueUsd": 400.0},
				},
			},
		})
	}))
	defer server.Close()

	holdings, total, err := NewClient("test-key", nil).WithBaseURL(server.URL).Portfolio(context.Background(), "wallet-addr")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "SOL", holdings[0].Symbol)
	assert.Equal(t, uint8(9), holdings[0].Decimals)
	assert.True(t, total.Equal(decimal.NewFromFloat(1234.56)))
}
