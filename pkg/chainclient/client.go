package chainclient

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/solrun-hq/solrunner/pkg/apperr"
	"github.com/solrun-hq/solrunner/pkg/logger"
)

const (
	// NativeMint is the well-known pseudo-mint used for SOL.
	NativeMint = "So11111111111111111111111111111111111111112"

	// NativeDecimals is the lamport precision of SOL.
	NativeDecimals = 9

	// TokenAccountSize is the byte size of an SPL token account, used for
	// rent-exemption lookups when a new associated account must be created.
	TokenAccountSize = 165

	// DefaultSignatureFee is the fallback per-signature fee in lamports when
	// the RPC node cannot price the message.
	DefaultSignatureFee = 5000

	// mint layout: authority option u32 + authority 32 + supply u64, then decimals
	mintDecimalsOffset = 44
)

var (
	tokenProgramID     = solana.TokenProgramID
	token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	ataProgramID       = solana.SPLAssociatedTokenAccountProgramID
)

// AssetKind is the closed set of asset flavors the pipeline distinguishes.
type AssetKind int

const (
	KindNative AssetKind = iota
	KindToken
	KindToken2022
)

// TxStatus is the observed state of a submitted transaction.
type TxStatus int

const (
	StatusPending TxStatus = iota
	StatusConfirmed
	StatusFailed
)

// Client is a thin facade over the Solana JSON-RPC API.
type Client struct {
	rpc    *rpc.Client
	logger logger.Logger
}

func New(rpcURL string, log logger.Logger) *Client {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Client{
		rpc:    rpc.New(rpcURL),
		logger: log,
	}
}

// IsNativeMint reports whether the address is the SOL pseudo-mint.
func IsNativeMint(mint string) bool {
	return mint == NativeMint
}

// ValidAddress reports whether s is a well-formed base58 32-byte address.
func ValidAddress(s string) bool {
	pk, err := solana.PublicKeyFromBase58(s)
	return err == nil && !pk.IsZero()
}

// NativeBalance returns the raw lamport balance of an account.
func (c *Client) NativeBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeUnavailable, "get balance", err)
	}
	return out.Value, nil
}

// TokenBalance returns the base-unit balance of the owner's associated token
// account for mint. A missing account is a zero balance, not an error.
func (c *Client) TokenBalance(ctx context.Context, owner solana.PublicKey, mint solana.PublicKey) (uint64, error) {
	program, err := c.OwningProgram(ctx, mint)
	if err != nil {
		return 0, err
	}
	ata, err := DeriveAssociatedTokenAccount(owner, mint, program)
	if err != nil {
		return 0, err
	}

	out, err := c.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return 0, nil
		}
		// RPC nodes answer "could not find account" rather than a typed error
		// for token accounts that were never created.
		return 0, apperr.Wrap(apperr.CodeUnavailable, "get token balance", err)
	}
	if out.Value == nil {
		return 0, nil
	}
	return parseBaseAmount(out.Value.Amount)
}

// parseBaseAmount parses an RPC-reported base unit amount. Strict so that a
// malformed amount surfaces instead of truncating to its numeric prefix.
func parseBaseAmount(s string) (uint64, error) {
	amount, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeInternal, "parse token amount", err)
	}
	return amount, nil
}

// AccountExists reports whether an account is present on chain.
func (c *Client) AccountExists(ctx context.Context, addr solana.PublicKey) (bool, error) {
	_, err := c.rpc.GetAccountInfo(ctx, addr)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, apperr.Wrap(apperr.CodeUnavailable, "get account info", err)
	}
	return true, nil
}

// OwningProgram returns the program that owns a mint account.
func (c *Client) OwningProgram(ctx context.Context, mint solana.PublicKey) (solana.PublicKey, error) {
	out, err := c.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return solana.PublicKey{}, apperr.Newf(apperr.CodeUnresolvedReference, "mint %s does not exist", mint)
		}
		return solana.PublicKey{}, apperr.Wrap(apperr.CodeUnavailable, "get mint account", err)
	}
	owner := out.Value.Owner
	if !owner.Equals(tokenProgramID) && !owner.Equals(token2022ProgramID) {
		return solana.PublicKey{}, apperr.Newf(apperr.CodeUnresolvedReference,
			"address %s is not a token mint (owner %s)", mint, owner)
	}
	return owner, nil
}

// AssetKindOf resolves the asset kind and token program for a mint once.
func (c *Client) AssetKindOf(ctx context.Context, mint string) (AssetKind, solana.PublicKey, error) {
	if IsNativeMint(mint) {
		return KindNative, solana.PublicKey{}, nil
	}
	pk, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, solana.PublicKey{}, apperr.Wrap(apperr.CodeUnresolvedReference, "invalid mint address", err)
	}
	program, err := c.OwningProgram(ctx, pk)
	if err != nil {
		return 0, solana.PublicKey{}, err
	}
	if program.Equals(token2022ProgramID) {
		return KindToken2022, program, nil
	}
	return KindToken, program, nil
}

// MintDecimals reads the decimal precision from a mint account.
func (c *Client) MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	out, err := c.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return 0, apperr.Newf(apperr.CodeUnresolvedReference, "mint %s does not exist", mint)
		}
		return 0, apperr.Wrap(apperr.CodeUnavailable, "get mint account", err)
	}
	data := out.Value.Data.GetBinary()
	if len(data) <= mintDecimalsOffset {
		return 0, apperr.Newf(apperr.CodeUnresolvedReference, "account %s is not a mint", mint)
	}
	return data[mintDecimalsOffset], nil
}

// RentExemptMinimum returns the rent-exempt deposit for an account of the
// given size. Queried live because rent parameters can change.
func (c *Client) RentExemptMinimum(ctx context.Context, size uint64) (uint64, error) {
	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeUnavailable, "get rent exemption", err)
	}
	return lamports, nil
}

// EstimateFee prices a compiled message. Falls back to the flat signature fee
// when the node declines to price it.
func (c *Client) EstimateFee(ctx context.Context, msg *solana.Message) (uint64, error) {
	raw, err := msg.MarshalBinary()
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeInternal, "marshal message", err)
	}
	out, err := c.rpc.GetFeeForMessage(ctx, base64.StdEncoding.EncodeToString(raw), rpc.CommitmentConfirmed)
	if err != nil || out.Value == nil {
		c.logger.DebugWith(logger.RPC, "fee estimate unavailable, using flat signature fee")
		return DefaultSignatureFee, nil
	}
	return *out.Value, nil
}

// LatestBlockhash fetches a recent blockhash for transaction assembly.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, apperr.Wrap(apperr.CodeUnavailable, "get latest blockhash", err)
	}
	return out.Value.Blockhash, nil
}

// Submit sends a signed transaction with preflight enabled.
func (c *Client) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	maxRetries := uint(3)
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
		MaxRetries:          &maxRetries,
	})
	if err != nil {
		return solana.Signature{}, apperr.Wrap(apperr.CodeSubmissionFailed, "send transaction", err)
	}
	c.logger.InfoWith(logger.RPC, "transaction submitted: %s", sig)
	return sig, nil
}

// SignatureStatus polls the status of one signature.
func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (TxStatus, error) {
	out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		return StatusPending, apperr.Wrap(apperr.CodeUnavailable, "get signature status", err)
	}
	if len(out.Value) == 0 || out.Value[0] == nil {
		return StatusPending, nil
	}
	st := out.Value[0]
	if st.Err != nil {
		return StatusFailed, nil
	}
	if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
		return StatusConfirmed, nil
	}
	return StatusPending, nil
}

// AwaitConfirmation polls at the given interval for up to attempts, stopping
// on the first terminal status. Returns (false, nil) if the polling budget is
// exhausted without a terminal status; the transaction may still land.
func (c *Client) AwaitConfirmation(ctx context.Context, sig solana.Signature, attempts int, interval time.Duration) (bool, error) {
	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return false, apperr.Wrap(apperr.CodeUnavailable, "confirmation wait cancelled", ctx.Err())
		case <-time.After(interval):
		}

		status, err := c.SignatureStatus(ctx, sig)
		if err != nil {
			// transient RPC failure; keep polling
			c.logger.DebugWith(logger.RPC, "status poll failed for %s: %v", sig, err)
			continue
		}
		switch status {
		case StatusConfirmed:
			return true, nil
		case StatusFailed:
			return false, apperr.Newf(apperr.CodeSubmissionFailed, "transaction %s failed on chain", sig)
		}
	}
	return false, nil
}

// DeriveAssociatedTokenAccount derives the associated token account of owner
// for mint under the given token program. Deriving with the program id keeps
// token-2022 mints on their own ATA addresses.
func DeriveAssociatedTokenAccount(owner, mint, tokenProgram solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{owner.Bytes(), tokenProgram.Bytes(), mint.Bytes()},
		ataProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, apperr.Wrap(apperr.CodeInternal, "derive associated token account", err)
	}
	return addr, nil
}

// EnsureAssociatedTokenAccount returns the payer-funded ATA of owner for
// mint, creating it on chain when absent.
func (c *Client) EnsureAssociatedTokenAccount(ctx context.Context, payer solana.PrivateKey, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	program, err := c.OwningProgram(ctx, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	ata, err := DeriveAssociatedTokenAccount(owner, mint, program)
	if err != nil {
		return solana.PublicKey{}, err
	}
	exists, err := c.AccountExists(ctx, ata)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if exists {
		return ata, nil
	}

	blockhash, err := c.LatestBlockhash(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			NewCreateATAInstruction(payer.PublicKey(), ata, owner, mint, program),
		},
		blockhash,
		solana.TransactionPayer(payer.PublicKey()),
	)
	if err != nil {
		return solana.PublicKey{}, apperr.Wrap(apperr.CodeInternal, "build create account transaction", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer
		}
		return nil
	}); err != nil {
		return solana.PublicKey{}, apperr.Wrap(apperr.CodeInternal, "sign create account transaction", err)
	}

	sig, err := c.Submit(ctx, tx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	confirmed, err := c.AwaitConfirmation(ctx, sig, 20, time.Second)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if !confirmed {
		return solana.PublicKey{}, apperr.Newf(apperr.CodeConfirmationTimeout,
			"account creation %s submitted but unconfirmed", sig)
	}
	c.logger.InfoWith(logger.RPC, "created associated token account %s for %s", ata, owner)
	return ata, nil
}
