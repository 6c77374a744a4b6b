package executor

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solrun-hq/solrunner/pkg/apperr"
	"github.com/solrun-hq/solrunner/pkg/chainclient"
	"github.com/solrun-hq/solrunner/pkg/jupiter"
	"github.com/solrun-hq/solrunner/pkg/models"
	"github.com/solrun-hq/solrunner/pkg/safety"
)

type fakeChain struct {
	submitted  []*solana.Transaction
	submitErr  error
	confirmed  bool
	awaitErr   error
	fee        uint64
	ensured    []solana.PublicKey // owner, mint pairs
	ensuredErr error
}

func (c *fakeChain) LatestBlockhash(context.Context) (solana.Hash, error) {
	return solana.HashFromBytes(make([]byte, 32)), nil
}

func (c *fakeChain) EstimateFee(context.Context, *solana.Message) (uint64, error) {
	if c.fee != 0 {
		return c.fee, nil
	}
	return chainclient.DefaultSignatureFee, nil
}

func (c *fakeChain) EnsureAssociatedTokenAccount(_ context.Context, _ solana.PrivateKey, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	if c.ensuredErr != nil {
		return solana.PublicKey{}, c.ensuredErr
	}
	c.ensured = append(c.ensured, owner, mint)
	return chainclient.DeriveAssociatedTokenAccount(owner, mint, solana.TokenProgramID)
}

func (c *fakeChain) Submit(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if c.submitErr != nil {
		return solana.Signature{}, c.submitErr
	}
	c.submitted = append(c.submitted, tx)
	return tx.Signatures[0], nil
}

func (c *fakeChain) AwaitConfirmation(context.Context, solana.Signature, int, time.Duration) (bool, error) {
	return c.confirmed, c.awaitErr
}

type fakeQuoter struct {
	quoteErr    error
	rawTx       []byte
	feeAllowed  []bool
	feeAccounts []string
}

func (q *fakeQuoter) GetQuote(_ context.Context, inputMint, outputMint string, amount uint64, allowPlatformFee bool) (*jupiter.Quote, error) {
	q.feeAllowed = append(q.feeAllowed, allowPlatformFee)
	if q.quoteErr != nil {
		return nil, q.quoteErr
	}
	return &jupiter.Quote{
		InputMint:  inputMint,
		OutputMint: outputMint,
		InAmount:   amount,
		OutAmount:  1,
		FeeApplied: allowPlatformFee,
	}, nil
}

func (q *fakeQuoter) BuildSwapTransaction(_ context.Context, _ *jupiter.Quote, _ string, feeAccount string) ([]byte, error) {
	q.feeAccounts = append(q.feeAccounts, feeAccount)
	return q.rawTx, nil
}

type fakeChecker struct {
	plan       *safety.Plan
	err        error
	reserveErr error
	fees       []uint64
}

func (c *fakeChecker) CheckSwap(context.Context, solana.PublicKey, models.ResolvedSwap) (*safety.Plan, error) {
	return c.plan, c.err
}

func (c *fakeChecker) CheckTransfer(context.Context, solana.PublicKey, models.ResolvedTransfer) (*safety.Plan, error) {
	return c.plan, c.err
}

func (c *fakeChecker) ConfirmReserve(_ context.Context, _ solana.PublicKey, _ *safety.Plan, fee uint64) error {
	c.fees = append(c.fees, fee)
	return c.reserveErr
}

type fakeKeys struct {
	key solana.PrivateKey
}

func (p *fakeKeys) Key(context.Context, string) (solana.PrivateKey, error) {
	// hand out a copy so the executor's scrubbing does not destroy the original
	out := make(solana.PrivateKey, len(p.key))
	copy(out, p.key)
	return out, nil
}

type fakeTracker struct {
	tracked []string
}

func (t *fakeTracker) Track(_ solana.Signature, taskID string) {
	t.tracked = append(t.tracked, taskID)
}

func newTestKeys(t *testing.T) *fakeKeys {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return &fakeKeys{key: key}
}

func nativePlan(amount uint64) *safety.Plan {
	return &safety.Plan{
		Kind:             chainclient.KindNative,
		BaseAmount:       amount,
		Reserve:          chainclient.DefaultSignatureFee,
		AllowPlatformFee: true,
	}
}

func TestExecuteTransferNative(t *testing.T) {
	keys := newTestKeys(t)
	chain := &fakeChain{confirmed: true}
	exec := New(chain, nil, &fakeChecker{plan: nativePlan(1_000_000_000)}, keys, nil, solana.PublicKey{}, 3, nil)

	recipient, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	result, err := exec.ExecuteTransfer(context.Background(), "owner-1", models.ResolvedTransfer{
		Mint:      chainclient.NativeMint,
		Symbol:    "SOL",
		Recipient: recipient.PublicKey().String(),
		Amount:    decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.True(t, result.Confirmed)
	assert.NotEmpty(t, result.Signature)

	require.Len(t, chain.submitted, 1)
	tx := chain.submitted[0]
	require.Len(t, tx.Message.Instructions, 1)

	// system transfer: u32 instruction index 2, then u64 lamports LE
	data := tx.Message.Instructions[0].Data
	require.Len(t, []byte(data), 12)
	assert.Equal(t, byte(2), data[0])
	assert.Equal(t, uint64(1_000_000_000), leUint64(data[4:12]))
}

func TestExecuteTransferTokenWithATACreation(t *testing.T) {
	mint, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	recipient, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	recipientATA, err := chainclient.DeriveAssociatedTokenAccount(
		recipient.PublicKey(), mint.PublicKey(), solana.TokenProgramID)
	require.NoError(t, err)

	plan := &safety.Plan{
		Kind:              chainclient.KindToken,
		TokenProgram:      solana.TokenProgramID,
		Mint:              mint.PublicKey(),
		Decimals:          6,
		BaseAmount:        5_000_000,
		RecipientATA:      recipientATA,
		NeedsRecipientATA: true,
		Reserve:           chainclient.DefaultSignatureFee + 2_039_280,
	}

	keys := newTestKeys(t)
	chain := &fakeChain{confirmed: true}
	exec := New(chain, nil, &fakeChecker{plan: plan}, keys, nil, solana.PublicKey{}, 3, nil)

	_, err = exec.ExecuteTransfer(context.Background(), "owner-1", models.ResolvedTransfer{
		Mint:      mint.PublicKey().String(),
		Symbol:    "USDC",
		Recipient: recipient.PublicKey().String(),
		Amount:    decimal.NewFromInt(5),
	})
	require.NoError(t, err)

	require.Len(t, chain.submitted, 1)
	instrs := chain.submitted[0].Message.Instructions
	require.Len(t, instrs, 2, "create ATA then transfer")

	// token transfer carries a u8 discriminator of 3 and the amount LE
	data := instrs[1].Data
	require.Len(t, []byte(data), 9)
	assert.Equal(t, byte(3), data[0])
	assert.Equal(t, uint64(5_000_000), leUint64(data[1:9]))
}

func TestExecuteTransferRejectedBySafetyCheck(t *testing.T) {
	keys := newTestKeys(t)
	shortfall := apperr.InsufficientBalance("SOL", decimal.NewFromInt(2), decimal.NewFromInt(1))
	exec := New(&fakeChain{}, nil, &fakeChecker{err: shortfall}, keys, nil, solana.PublicKey{}, 3, nil)

	recipient, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	_, err = exec.ExecuteTransfer(context.Background(), "owner-1", models.ResolvedTransfer{
		Mint:      chainclient.NativeMint,
		Recipient: recipient.PublicKey().String(),
		Amount:    decimal.NewFromInt(2),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInsufficientBalance, apperr.CodeOf(err))
}

func TestExecuteTransferReserveRecheckFails(t *testing.T) {
	keys := newTestKeys(t)
	chain := &fakeChain{confirmed: true, fee: 400_000}
	shortfall := apperr.InsufficientReserve("SOL", decimal.NewFromInt(1), decimal.Zero)
	checker := &fakeChecker{plan: nativePlan(1_000_000), reserveErr: shortfall}
	exec := New(chain, nil, checker, keys, nil, solana.PublicKey{}, 3, nil)

	recipient, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	_, err = exec.ExecuteTransfer(context.Background(), "owner-1", models.ResolvedTransfer{
		Mint:      chainclient.NativeMint,
		Symbol:    "SOL",
		Recipient: recipient.PublicKey().String(),
		Amount:    decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInsufficientReserve, apperr.CodeOf(err))
	assert.Empty(t, chain.submitted, "nothing goes out after a failed recheck")
	assert.Equal(t, []uint64{400_000}, checker.fees, "recheck uses the measured fee")
}

func TestExecuteTransferInvalidRecipient(t *testing.T) {
	keys := newTestKeys(t)
	exec := New(&fakeChain{}, nil, &fakeChecker{plan: nativePlan(1)}, keys, nil, solana.PublicKey{}, 3, nil)

	_, err := exec.ExecuteTransfer(context.Background(), "owner-1", models.ResolvedTransfer{
		Mint:      chainclient.NativeMint,
		Recipient: "not-an-address",
		Amount:    decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeUnresolvedReference, apperr.CodeOf(err))
}

func TestExecuteSwap(t *testing.T) {
	keys := newTestKeys(t)

	t.Run("confirmation timeout hands off to tracker", func(t *testing.T) {
		// assemble a real transfer transaction to stand in for the swap payload
		recipient, err := solana.NewRandomPrivateKey()
		require.NoError(t, err)
		inner, err := solana.NewTransaction(
			[]solana.Instruction{chainclient.NewSystemTransferInstruction(1, keys.key.PublicKey(), recipient.PublicKey())},
			solana.HashFromBytes(make([]byte, 32)),
			solana.TransactionPayer(keys.key.PublicKey()),
		)
		require.NoError(t, err)
		_, err = inner.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
			return &keys.key
		})
		require.NoError(t, err)
		raw, err := inner.MarshalBinary()
		require.NoError(t, err)

		chain := &fakeChain{confirmed: false}
		tracker := &fakeTracker{}
		exec := New(chain, &fakeQuoter{rawTx: raw}, &fakeChecker{plan: nativePlan(1)}, keys, tracker, solana.PublicKey{}, 3, nil)

		result, err := exec.ExecuteSwap(context.Background(), "owner-1", "task-1", models.ResolvedSwap{
			InputMint:  chainclient.NativeMint,
			OutputMint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			Amount:     decimal.NewFromInt(1),
		})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeConfirmationTimeout, apperr.CodeOf(err))
		assert.NotEmpty(t, result.Signature)
		assert.False(t, result.Confirmed)
		assert.Equal(t, []string{"task-1"}, tracker.tracked)
	})

	t.Run("quote failure propagates", func(t *testing.T) {
		noRoute := apperr.New(apperr.CodeNoRoute, "no route")
		exec := New(&fakeChain{}, &fakeQuoter{quoteErr: noRoute}, &fakeChecker{plan: nativePlan(1)}, keys, nil, solana.PublicKey{}, 3, nil)

		_, err := exec.ExecuteSwap(context.Background(), "owner-1", "task-1", models.ResolvedSwap{
			InputMint:  chainclient.NativeMint,
			OutputMint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			Amount:     decimal.NewFromInt(1),
		})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeNoRoute, apperr.CodeOf(err))
	})

	t.Run("fee wallet input-mint account reaches the assembler", func(t *testing.T) {
		// assemble a signed stand-in payload so decoding succeeds
		recipient, err := solana.NewRandomPrivateKey()
		require.NoError(t, err)
		inner, err := solana.NewTransaction(
			[]solana.Instruction{chainclient.NewSystemTransferInstruction(1, keys.key.PublicKey(), recipient.PublicKey())},
			solana.HashFromBytes(make([]byte, 32)),
			solana.TransactionPayer(keys.key.PublicKey()),
		)
		require.NoError(t, err)
		_, err = inner.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
			return &keys.key
		})
		require.NoError(t, err)
		raw, err := inner.MarshalBinary()
		require.NoError(t, err)

		feeWallet, err := solana.NewRandomPrivateKey()
		require.NoError(t, err)
		inputMint := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

		chain := &fakeChain{confirmed: true}
		quoter := &fakeQuoter{rawTx: raw}
		exec := New(chain, quoter, &fakeChecker{plan: nativePlan(1)}, keys, nil, feeWallet.PublicKey(), 3, nil)

		_, err = exec.ExecuteSwap(context.Background(), "owner-1", "task-1", models.ResolvedSwap{
			InputMint:  inputMint.String(),
			OutputMint: chainclient.NativeMint,
			Amount:     decimal.NewFromInt(1),
		})
		require.NoError(t, err)

		require.Equal(t, []solana.PublicKey{feeWallet.PublicKey(), inputMint}, chain.ensured)
		wantATA, err := chainclient.DeriveAssociatedTokenAccount(feeWallet.PublicKey(), inputMint, solana.TokenProgramID)
		require.NoError(t, err)
		assert.Equal(t, []string{wantATA.String()}, quoter.feeAccounts)
	})

	t.Run("fee account creation failure stops the swap", func(t *testing.T) {
		feeWallet, err := solana.NewRandomPrivateKey()
		require.NoError(t, err)
		chain := &fakeChain{ensuredErr: apperr.New(apperr.CodeUnavailable, "rpc down")}
		exec := New(chain, &fakeQuoter{}, &fakeChecker{plan: nativePlan(1)}, keys, nil, feeWallet.PublicKey(), 3, nil)

		_, err = exec.ExecuteSwap(context.Background(), "owner-1", "task-1", models.ResolvedSwap{
			InputMint:  chainclient.NativeMint,
			OutputMint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			Amount:     decimal.NewFromInt(1),
		})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeUnavailable, apperr.CodeOf(err))
		assert.Empty(t, chain.submitted)
	})

	t.Run("platform fee eligibility reaches the quoter", func(t *testing.T) {
		plan := nativePlan(1)
		plan.AllowPlatformFee = false
		quoter := &fakeQuoter{quoteErr: apperr.New(apperr.CodeNoRoute, "no route")}
		exec := New(&fakeChain{}, quoter, &fakeChecker{plan: plan}, keys, nil, solana.PublicKey{}, 3, nil)

		_, err := exec.ExecuteSwap(context.Background(), "owner-1", "task-1", models.ResolvedSwap{
			InputMint:  chainclient.NativeMint,
			OutputMint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			Amount:     decimal.NewFromInt(1),
		})
		require.Error(t, err)
		assert.Equal(t, []bool{false}, quoter.feeAllowed)
	})
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
