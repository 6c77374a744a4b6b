package executor

import (
	"context"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/solrun-hq/solrunner/pkg/apperr"
	"github.com/solrun-hq/solrunner/pkg/chainclient"
	"github.com/solrun-hq/solrunner/pkg/jupiter"
	"github.com/solrun-hq/solrunner/pkg/keys"
	"github.com/solrun-hq/solrunner/pkg/logger"
	"github.com/solrun-hq/solrunner/pkg/metrics"
	"github.com/solrun-hq/solrunner/pkg/models"
	"github.com/solrun-hq/solrunner/pkg/safety"
)

const statusPollInterval = time.Second

// ChainSubmitter is the chain surface the executor writes through.
type ChainSubmitter interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	EstimateFee(ctx context.Context, msg *solana.Message) (uint64, error)
	EnsureAssociatedTokenAccount(ctx context.Context, payer solana.PrivateKey, owner, mint solana.PublicKey) (solana.PublicKey, error)
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	AwaitConfirmation(ctx context.Context, sig solana.Signature, attempts int, interval time.Duration) (bool, error)
}

// Quoter prices and assembles swaps.
type Quoter interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, allowPlatformFee bool) (*jupiter.Quote, error)
	BuildSwapTransaction(ctx context.Context, quote *jupiter.Quote, userPublicKey, feeAccount string) ([]byte, error)
}

// Checker runs the pre-flight safety checks.
type Checker interface {
	CheckSwap(ctx context.Context, wallet solana.PublicKey, swap models.ResolvedSwap) (*safety.Plan, error)
	CheckTransfer(ctx context.Context, wallet solana.PublicKey, transfer models.ResolvedTransfer) (*safety.Plan, error)
	ConfirmReserve(ctx context.Context, wallet solana.PublicKey, plan *safety.Plan, fee uint64) error
}

// Tracker follows transactions whose confirmation window expired.
type Tracker interface {
	Track(sig solana.Signature, taskID string)
}

// Executor turns resolved, confirmed intents into settled transactions.
// Every execution runs the full pipeline: safety check, assembly, signing,
// submission, confirmation polling.
type Executor struct {
	chain        ChainSubmitter
	quoter       Quoter
	checker      Checker
	keyProvider  keys.Provider
	tracker      Tracker
	feeWallet    solana.PublicKey
	logger       logger.Logger
	pollAttempts int
}

// New builds an executor. feeWallet collects the platform fee; pass the zero
// key when no fee is configured.
func New(chain ChainSubmitter, quoter Quoter, checker Checker, keyProvider keys.Provider, tracker Tracker, feeWallet solana.PublicKey, pollAttempts int, log logger.Logger) *Executor {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Executor{
		chain:        chain,
		quoter:       quoter,
		checker:      checker,
		keyProvider:  keyProvider,
		tracker:      tracker,
		feeWallet:    feeWallet,
		logger:       log,
		pollAttempts: pollAttempts,
	}
}

// ExecuteSwap runs a resolved swap end to end for the owner's wallet.
func (e *Executor) ExecuteSwap(ctx context.Context, ownerID, taskID string, swap models.ResolvedSwap) (models.ExecutionResult, error) {
	start := time.Now()
	defer func() {
		metrics.ExecutionTime.WithLabelValues("swap").Observe(time.Since(start).Seconds())
	}()

	key, err := e.keyProvider.Key(ctx, ownerID)
	if err != nil {
		metrics.SwapsExecuted.WithLabelValues("error").Inc()
		return models.ExecutionResult{}, err
	}
	defer keys.Zero(key)
	wallet := key.PublicKey()

	plan, err := e.checker.CheckSwap(ctx, wallet, swap)
	if err != nil {
		metrics.SwapsExecuted.WithLabelValues("rejected").Inc()
		return models.ExecutionResult{}, err
	}

	quote, err := e.quoter.GetQuote(ctx, swap.InputMint, swap.OutputMint, plan.BaseAmount, plan.AllowPlatformFee)
	if err != nil {
		metrics.SwapsExecuted.WithLabelValues("error").Inc()
		return models.ExecutionResult{}, err
	}

	// the platform fee is collected into the fee wallet's token account for
	// the input mint, created on first use
	var feeAccount string
	if quote.FeeApplied && !e.feeWallet.IsZero() {
		inputMint, err := solana.PublicKeyFromBase58(swap.InputMint)
		if err != nil {
			metrics.SwapsExecuted.WithLabelValues("error").Inc()
			return models.ExecutionResult{}, apperr.Wrap(apperr.CodeUnresolvedReference, "invalid input mint", err)
		}
		ata, err := e.chain.EnsureAssociatedTokenAccount(ctx, key, e.feeWallet, inputMint)
		if err != nil {
			metrics.SwapsExecuted.WithLabelValues("error").Inc()
			return models.ExecutionResult{}, err
		}
		feeAccount = ata.String()
	}

	raw, err := e.quoter.BuildSwapTransaction(ctx, quote, wallet.String(), feeAccount)
	if err != nil {
		metrics.SwapsExecuted.WithLabelValues("error").Inc()
		return models.ExecutionResult{}, err
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		metrics.SwapsExecuted.WithLabelValues("error").Inc()
		return models.ExecutionResult{}, apperr.Wrap(apperr.CodeSubmissionFailed, "decode swap transaction", err)
	}

	result, err := e.signSubmitConfirm(ctx, tx, key, taskID)
	e.recordOutcome("swap", result, err)
	if err != nil {
		return result, err
	}
	e.logger.InfoWith(logger.Exec, "swap %s -> %s settled: %s", swap.InputMint, swap.OutputMint, result.Signature)
	return result, nil
}

// ExecuteTransfer runs a resolved transfer end to end. Token transfers that
// need the recipient's token account include its creation in the same
// transaction, funded by the sender.
func (e *Executor) ExecuteTransfer(ctx context.Context, ownerID string, transfer models.ResolvedTransfer) (models.ExecutionResult, error) {
	start := time.Now()
	defer func() {
		metrics.ExecutionTime.WithLabelValues("transfer").Observe(time.Since(start).Seconds())
	}()

	key, err := e.keyProvider.Key(ctx, ownerID)
	if err != nil {
		metrics.TransfersExecuted.WithLabelValues("error").Inc()
		return models.ExecutionResult{}, err
	}
	defer keys.Zero(key)
	wallet := key.PublicKey()

	plan, err := e.checker.CheckTransfer(ctx, wallet, transfer)
	if err != nil {
		metrics.TransfersExecuted.WithLabelValues("rejected").Inc()
		return models.ExecutionResult{}, err
	}

	recipient, err := solana.PublicKeyFromBase58(transfer.Recipient)
	if err != nil {
		return models.ExecutionResult{}, apperr.Wrap(apperr.CodeUnresolvedReference, "invalid recipient address", err)
	}

	var instrs []solana.Instruction
	if plan.Kind == chainclient.KindNative {
		instrs = append(instrs, chainclient.NewSystemTransferInstruction(plan.BaseAmount, wallet, recipient))
	} else {
		source, err := chainclient.DeriveAssociatedTokenAccount(wallet, plan.Mint, plan.TokenProgram)
		if err != nil {
			return models.ExecutionResult{}, err
		}
		if plan.NeedsRecipientATA {
			instrs = append(instrs, chainclient.NewCreateATAInstruction(wallet, plan.RecipientATA, recipient, plan.Mint, plan.TokenProgram))
		}
		instrs = append(instrs, chainclient.NewTokenTransferInstruction(plan.BaseAmount, source, plan.RecipientATA, wallet, plan.TokenProgram))
	}

	blockhash, err := e.chain.LatestBlockhash(ctx)
	if err != nil {
		metrics.TransfersExecuted.WithLabelValues("error").Inc()
		return models.ExecutionResult{}, err
	}
	tx, err := solana.NewTransaction(instrs, blockhash, solana.TransactionPayer(wallet))
	if err != nil {
		metrics.TransfersExecuted.WithLabelValues("error").Inc()
		return models.ExecutionResult{}, apperr.Wrap(apperr.CodeSubmissionFailed, "build transfer transaction", err)
	}

	// reprice the reserve against the transaction actually going out; the
	// pre-flight check used a flat fee estimate
	fee, err := e.chain.EstimateFee(ctx, &tx.Message)
	if err != nil {
		metrics.TransfersExecuted.WithLabelValues("error").Inc()
		return models.ExecutionResult{}, err
	}
	if err := e.checker.ConfirmReserve(ctx, wallet, plan, fee); err != nil {
		metrics.TransfersExecuted.WithLabelValues("rejected").Inc()
		return models.ExecutionResult{}, err
	}

	result, err := e.signSubmitConfirm(ctx, tx, key, "")
	e.recordOutcome("transfer", result, err)
	if err != nil {
		return result, err
	}
	e.logger.InfoWith(logger.Exec, "transfer of %s %s to %s settled: %s",
		transfer.Amount, transfer.Mint, transfer.Recipient, result.Signature)
	return result, nil
}

// signSubmitConfirm is the shared tail of both pipelines. A transaction that
// outlives its polling window is handed to the tracker rather than declared
// dead.
func (e *Executor) signSubmitConfirm(ctx context.Context, tx *solana.Transaction, key solana.PrivateKey, taskID string) (models.ExecutionResult, error) {
	wallet := key.PublicKey()
	if _, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(wallet) {
			return &key
		}
		return nil
	}); err != nil {
		return models.ExecutionResult{}, apperr.Wrap(apperr.CodeSubmissionFailed, "sign transaction", err)
	}

	sig, err := e.chain.Submit(ctx, tx)
	if err != nil {
		return models.ExecutionResult{}, err
	}

	confirmed, err := e.chain.AwaitConfirmation(ctx, sig, e.pollAttempts, statusPollInterval)
	if err != nil {
		return models.ExecutionResult{Signature: sig.String()}, err
	}
	if !confirmed {
		if e.tracker != nil {
			e.tracker.Track(sig, taskID)
		}
		return models.ExecutionResult{Signature: sig.String()},
			apperr.Newf(apperr.CodeConfirmationTimeout, "transaction %s submitted but not yet confirmed", sig)
	}
	return models.ExecutionResult{Signature: sig.String(), Confirmed: true}, nil
}

func (e *Executor) recordOutcome(operation string, result models.ExecutionResult, err error) {
	var status string
	switch {
	case err == nil && result.Confirmed:
		status = "confirmed"
	case apperr.CodeOf(err) == apperr.CodeConfirmationTimeout:
		status = "unconfirmed"
	default:
		status = "failed"
	}
	if operation == "swap" {
		metrics.SwapsExecuted.WithLabelValues(status).Inc()
	} else {
		metrics.TransfersExecuted.WithLabelValues(status).Inc()
	}
}
