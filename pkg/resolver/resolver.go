package resolver

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/solrun-hq/solrunner/pkg/apperr"
	"github.com/solrun-hq/solrunner/pkg/birdeye"
	"github.com/solrun-hq/solrunner/pkg/chainclient"
	"github.com/solrun-hq/solrunner/pkg/logger"
	"github.com/solrun-hq/solrunner/pkg/models"
)

// wellKnownMints short-circuits the search for symbols the service handles
// constantly. Lookup is case-insensitive on the symbol.
var wellKnownMints = map[string]string{
	"SOL":   chainclient.NativeMint,
	"USDC":  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	"AI16Z": "HeLp6NuQkmYB4pYWo2zYs22mESHXPQYzXbB8n4V98jwC",
	"ELIZA": "5voS9evDjxF589WuEub5i4ti7FWQmZCsAsyD5ucbuRqM",
}

// TokenSearcher finds token candidates for a free-form symbol.
type TokenSearcher interface {
	SearchSymbol(ctx context.Context, symbol string) ([]birdeye.TokenMatch, error)
}

// PortfolioLookup lists a wallet's current holdings so a symbol the user
// already owns resolves without a market search.
type PortfolioLookup interface {
	Portfolio(ctx context.Context, wallet string) ([]birdeye.Holding, decimal.Decimal, error)
}

// Resolver turns user-supplied token references into mint addresses.
// Resolution order: explicit address, well-known symbol, the wallet's own
// holdings, then market search ranked by 24h volume.
type Resolver struct {
	searcher  TokenSearcher
	portfolio PortfolioLookup
	logger    logger.Logger
}

func New(searcher TokenSearcher, portfolio PortfolioLookup, log logger.Logger) *Resolver {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Resolver{searcher: searcher, portfolio: portfolio, logger: log}
}

// ResolveMint resolves a token reference to a mint address. Either address or
// symbol may be empty; an explicit address always wins. wallet may be empty
// when no holdings lookup is possible.
func (r *Resolver) ResolveMint(ctx context.Context, wallet, address, symbol string) (string, error) {
	if address != "" {
		if !chainclient.ValidAddress(address) {
			return "", apperr.Newf(apperr.CodeUnresolvedReference, "invalid token address %q", address)
		}
		return address, nil
	}
	if symbol == "" {
		return "", apperr.New(apperr.CodeUnresolvedReference, "no token address or symbol given")
	}

	if mint, ok := wellKnownMints[strings.ToUpper(symbol)]; ok {
		return mint, nil
	}

	if wallet != "" && r.portfolio != nil {
		// a holdings outage only skips this shortcut; the search below can
		// still resolve the symbol
		if holdings, _, err := r.portfolio.Portfolio(ctx, wallet); err == nil {
			for _, h := range holdings {
				if strings.EqualFold(h.Symbol, symbol) && chainclient.ValidAddress(h.Address) {
					r.logger.Debug("resolved symbol %q to %s from wallet holdings", symbol, h.Address)
					return h.Address, nil
				}
			}
		}
	}

	matches, err := r.searcher.SearchSymbol(ctx, symbol)
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if strings.EqualFold(m.Symbol, symbol) && chainclient.ValidAddress(m.Address) {
			r.logger.Debug("resolved symbol %q to %s via market search", symbol, m.Address)
			return m.Address, nil
		}
	}
	return "", apperr.Newf(apperr.CodeUnresolvedReference, "unknown token %q", symbol)
}

// ResolveSwap resolves both legs of a swap intent.
func (r *Resolver) ResolveSwap(ctx context.Context, wallet string, intent models.SwapIntent) (models.ResolvedSwap, error) {
	if intent.Amount.Sign() <= 0 {
		return models.ResolvedSwap{}, apperr.New(apperr.CodeMissingAmount, "swap amount is required")
	}

	inputMint, err := r.ResolveMint(ctx, wallet, intent.InputAddress, intent.InputSymbol)
	if err != nil {
		return models.ResolvedSwap{}, err
	}
	outputMint, err := r.ResolveMint(ctx, wallet, intent.OutputAddress, intent.OutputSymbol)
	if err != nil {
		return models.ResolvedSwap{}, err
	}
	if inputMint == outputMint {
		return models.ResolvedSwap{}, apperr.New(apperr.CodeUnresolvedReference, "swap input and output are the same token")
	}

	return models.ResolvedSwap{
		InputMint:    inputMint,
		OutputMint:   outputMint,
		InputSymbol:  intent.InputSymbol,
		OutputSymbol: intent.OutputSymbol,
		Amount:       intent.Amount,
	}, nil
}

// ResolveTransfer resolves a transfer intent.
func (r *Resolver) ResolveTransfer(ctx context.Context, wallet string, intent models.TransferIntent) (models.ResolvedTransfer, error) {
	if intent.Amount.Sign() <= 0 {
		return models.ResolvedTransfer{}, apperr.New(apperr.CodeMissingAmount, "transfer amount is required")
	}
	if !chainclient.ValidAddress(intent.Recipient) {
		return models.ResolvedTransfer{}, apperr.Newf(apperr.CodeUnresolvedReference, "invalid recipient address %q", intent.Recipient)
	}

	mint, err := r.ResolveMint(ctx, wallet, intent.Address, intent.Symbol)
	if err != nil {
		return models.ResolvedTransfer{}, err
	}

	return models.ResolvedTransfer{
		Mint:      mint,
		Symbol:    intent.Symbol,
		Recipient: intent.Recipient,
		Amount:    intent.Amount,
	}, nil
}
