package keys

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/solrun-hq/solrunner/pkg/apperr"
	"github.com/solrun-hq/solrunner/pkg/config"
	"github.com/solrun-hq/solrunner/pkg/httpx"
)

// Provider resolves the signing key for an owner. Implementations must not
// cache keys on behalf of callers; callers hold keys only for the duration of
// one signing operation.
type Provider interface {
	Key(ctx context.Context, ownerID string) (solana.PrivateKey, error)
}

// EnvProvider serves a single key loaded from configuration, ignoring the
// owner. Suitable for single-wallet deployments.
type EnvProvider struct {
	key solana.PrivateKey
}

var _ Provider = (*EnvProvider)(nil)

func NewEnvProvider(base58Key string) (*EnvProvider, error) {
	key, err := solana.PrivateKeyFromBase58(base58Key)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "invalid wallet private key", err)
	}
	return &EnvProvider{key: key}, nil
}

func (p *EnvProvider) Key(_ context.Context, _ string) (solana.PrivateKey, error) {
	return p.key, nil
}

// PublicKey returns the address of the configured wallet.
func (p *EnvProvider) PublicKey() solana.PublicKey {
	return p.key.PublicKey()
}

// RemoteProvider fetches per-owner keys from an external wallet service that
// derives them inside a trusted enclave.
type RemoteProvider struct {
	endpoint    string
	secretToken string
	secretSalt  string
	http        *httpx.Client
}

var _ Provider = (*RemoteProvider)(nil)

func NewRemoteProvider(cfg config.WalletServiceConfig) *RemoteProvider {
	return &RemoteProvider{
		endpoint:    cfg.Endpoint,
		secretToken: cfg.SecretToken,
		secretSalt:  cfg.SecretSalt,
		http:        httpx.New(10*time.Second, 2),
	}
}

type keyRequest struct {
	AgentID string `json:"agentId"`
	Salt    string `json:"salt,omitempty"`
}

type keyResponse struct {
	SecretKey string `json:"secretKey"`
}

func (p *RemoteProvider) Key(ctx context.Context, ownerID string) (solana.PrivateKey, error) {
	headers := map[string]string{
		"x-secret-token": p.secretToken,
	}
	var resp keyResponse
	err := p.http.PostJSON(ctx, p.endpoint, keyRequest{AgentID: ownerID, Salt: p.secretSalt}, headers, &resp)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnavailable, "wallet service request failed", err)
	}
	if resp.SecretKey == "" {
		return nil, apperr.New(apperr.CodeUnavailable, "wallet service returned no key")
	}

	key, err := solana.PrivateKeyFromBase58(resp.SecretKey)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "wallet service returned malformed key", err)
	}
	return key, nil
}

// Zero scrubs key material after use.
func Zero(key solana.PrivateKey) {
	for i := range key {
		key[i] = 0
	}
}
