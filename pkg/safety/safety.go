package safety

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/solrun-hq/solrunner/pkg/apperr"
	"github.com/solrun-hq/solrunner/pkg/chainclient"
	"github.com/solrun-hq/solrunner/pkg/logger"
	"github.com/solrun-hq/solrunner/pkg/metrics"
	"github.com/solrun-hq/solrunner/pkg/models"
)

// ChainReader is the read-only chain surface the checker needs.
type ChainReader interface {
	NativeBalance(ctx context.Context, owner solana.PublicKey) (uint64, error)
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)
	AccountExists(ctx context.Context, addr solana.PublicKey) (bool, error)
	AssetKindOf(ctx context.Context, mint string) (chainclient.AssetKind, solana.PublicKey, error)
	MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
	RentExemptMinimum(ctx context.Context, size uint64) (uint64, error)
}

// Plan is the outcome of a passed pre-flight check. It carries everything the
// executor needs so the chain is not queried twice for the same facts.
type Plan struct {
	Kind         chainclient.AssetKind
	TokenProgram solana.PublicKey
	Mint         solana.PublicKey
	Decimals     uint8
	BaseAmount   uint64

	// RecipientATA is set for token transfers. NeedsRecipientATA marks that
	// it must be created as part of the transfer, at the sender's cost.
	RecipientATA      solana.PublicKey
	NeedsRecipientATA bool

	// Reserve is the lamport amount that must remain in the wallet after the
	// operation: the network fee plus rent for any account being created.
	Reserve uint64

	// AllowPlatformFee is false when either swap leg is a token-2022 mint,
	// which cannot carry an aggregator fee account.
	AllowPlatformFee bool
}

// Checker runs pre-flight balance and reserve checks before any funds move.
type Checker struct {
	chain  ChainReader
	logger logger.Logger
}

func NewChecker(chain ChainReader, log logger.Logger) *Checker {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Checker{chain: chain, logger: log}
}

// resolveAsset loads the asset facts shared by both check paths.
func (c *Checker) resolveAsset(ctx context.Context, mint string, amount decimal.Decimal) (*Plan, error) {
	kind, program, err := c.chain.AssetKindOf(ctx, mint)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Kind: kind, TokenProgram: program}
	if kind == chainclient.KindNative {
		plan.Decimals = chainclient.NativeDecimals
	} else {
		pk, err := solana.PublicKeyFromBase58(mint)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeUnresolvedReference, "invalid mint address", err)
		}
		plan.Mint = pk
		plan.Decimals, err = c.chain.MintDecimals(ctx, pk)
		if err != nil {
			return nil, err
		}
	}

	plan.BaseAmount, err = models.ToBaseUnits(amount, plan.Decimals)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeMissingAmount, "bad amount", err)
	}
	if plan.BaseAmount == 0 {
		return nil, apperr.New(apperr.CodeMissingAmount, "amount rounds to zero base units")
	}
	return plan, nil
}

// checkFunds verifies the wallet can cover the spend and still hold the
// lamport reserve.
func (c *Checker) checkFunds(ctx context.Context, wallet solana.PublicKey, plan *Plan, symbol string) error {
	lamports, err := c.chain.NativeBalance(ctx, wallet)
	if err != nil {
		return err
	}

	if plan.Kind == chainclient.KindNative {
		required := plan.BaseAmount + plan.Reserve
		if lamports < required {
			metrics.SafetyRejections.WithLabelValues("insufficient_balance").Inc()
			return apperr.InsufficientBalance(symbol,
				models.FromBaseUnits(required, chainclient.NativeDecimals),
				models.FromBaseUnits(lamports, chainclient.NativeDecimals))
		}
		return nil
	}

	balance, err := c.chain.TokenBalance(ctx, wallet, plan.Mint)
	if err != nil {
		return err
	}
	if balance < plan.BaseAmount {
		metrics.SafetyRejections.WithLabelValues("insufficient_balance").Inc()
		return apperr.InsufficientBalance(symbol,
			models.FromBaseUnits(plan.BaseAmount, plan.Decimals),
			models.FromBaseUnits(balance, plan.Decimals))
	}
	if lamports < plan.Reserve {
		metrics.SafetyRejections.WithLabelValues("insufficient_reserve").Inc()
		return apperr.InsufficientReserve("SOL",
			models.FromBaseUnits(plan.Reserve, chainclient.NativeDecimals),
			models.FromBaseUnits(lamports, chainclient.NativeDecimals))
	}
	return nil
}

// CheckSwap verifies a resolved swap can be funded. The reserve covers the
// network fee plus rent for the output token account the swap may create.
func (c *Checker) CheckSwap(ctx context.Context, wallet solana.PublicKey, swap models.ResolvedSwap) (*Plan, error) {
	plan, err := c.resolveAsset(ctx, swap.InputMint, swap.Amount)
	if err != nil {
		return nil, err
	}

	plan.AllowPlatformFee = plan.Kind != chainclient.KindToken2022
	reserve := uint64(chainclient.DefaultSignatureFee)
	if !chainclient.IsNativeMint(swap.OutputMint) {
		outMint, err := solana.PublicKeyFromBase58(swap.OutputMint)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeUnresolvedReference, "invalid output mint", err)
		}
		outKind, outProgram, err := c.chain.AssetKindOf(ctx, swap.OutputMint)
		if err != nil {
			return nil, err
		}
		if outKind == chainclient.KindToken2022 {
			plan.AllowPlatformFee = false
		}
		ata, err := chainclient.DeriveAssociatedTokenAccount(wallet, outMint, outProgram)
		if err != nil {
			return nil, err
		}
		exists, err := c.chain.AccountExists(ctx, ata)
		if err != nil {
			return nil, err
		}
		if !exists {
			rent, err := c.chain.RentExemptMinimum(ctx, chainclient.TokenAccountSize)
			if err != nil {
				return nil, err
			}
			reserve += rent
		}
	}
	plan.Reserve = reserve

	if err := c.checkFunds(ctx, wallet, plan, swap.InputSymbol); err != nil {
		return nil, err
	}
	return plan, nil
}

// CheckTransfer verifies a resolved transfer can be funded. When the
// recipient has no token account yet, creating it is charged to the sender
// and added to the reserve.
func (c *Checker) CheckTransfer(ctx context.Context, wallet solana.PublicKey, transfer models.ResolvedTransfer) (*Plan, error) {
	plan, err := c.resolveAsset(ctx, transfer.Mint, transfer.Amount)
	if err != nil {
		return nil, err
	}

	reserve := uint64(chainclient.DefaultSignatureFee)
	if plan.Kind != chainclient.KindNative {
		recipient, err := solana.PublicKeyFromBase58(transfer.Recipient)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeUnresolvedReference, "invalid recipient address", err)
		}
		ata, err := chainclient.DeriveAssociatedTokenAccount(recipient, plan.Mint, plan.TokenProgram)
		if err != nil {
			return nil, err
		}
		exists, err := c.chain.AccountExists(ctx, ata)
		if err != nil {
			return nil, err
		}
		plan.RecipientATA = ata
		plan.NeedsRecipientATA = !exists
		if !exists {
			rent, err := c.chain.RentExemptMinimum(ctx, chainclient.TokenAccountSize)
			if err != nil {
				return nil, err
			}
			reserve += rent
		}
	}
	plan.Reserve = reserve

	if err := c.checkFunds(ctx, wallet, plan, transfer.Symbol); err != nil {
		return nil, err
	}
	return plan, nil
}

// ConfirmReserve re-runs the funds check with the fee measured from the
// assembled transaction, replacing the flat estimate used at pre-flight.
// Fees can move between check and submit, so a shortfall here fails the
// operation even though the earlier check passed.
func (c *Checker) ConfirmReserve(ctx context.Context, wallet solana.PublicKey, plan *Plan, fee uint64) error {
	reserve := fee
	if plan.Reserve > chainclient.DefaultSignatureFee {
		reserve += plan.Reserve - chainclient.DefaultSignatureFee
	}

	lamports, err := c.chain.NativeBalance(ctx, wallet)
	if err != nil {
		return err
	}
	required := reserve
	if plan.Kind == chainclient.KindNative {
		required += plan.BaseAmount
	}
	if lamports < required {
		metrics.SafetyRejections.WithLabelValues("insufficient_reserve").Inc()
		return apperr.InsufficientReserve("SOL",
			models.FromBaseUnits(required, chainclient.NativeDecimals),
			models.FromBaseUnits(lamports, chainclient.NativeDecimals))
	}
	plan.Reserve = reserve
	return nil
}
