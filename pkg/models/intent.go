package models

import (
	"github.com/shopspring/decimal"
)

// SwapIntent is a structured swap request as extracted from a conversation.
// Symbols and addresses are optional individually; the resolver fills the
// gaps. Amount is denominated in the input asset's human-readable units.
type SwapIntent struct {
	InputSymbol   string          `json:"input_symbol"`
	InputAddress  string          `json:"input_address"`
	OutputSymbol  string          `json:"output_symbol"`
	OutputAddress string          `json:"output_address"`
	Amount        decimal.Decimal `json:"amount"`
}

// TransferIntent is a structured transfer request.
type TransferIntent struct {
	Symbol    string          `json:"symbol"`
	Address   string          `json:"address"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

// ResolvedSwap is a SwapIntent after symbol resolution. Both mints are
// syntactically valid base58 addresses; the resolver never lets a partially
// resolved intent through.
type ResolvedSwap struct {
	InputMint    string          `json:"input_mint"`
	OutputMint   string          `json:"output_mint"`
	InputSymbol  string          `json:"input_symbol"`
	OutputSymbol string          `json:"output_symbol"`
	Amount       decimal.Decimal `json:"amount"`
}

// ResolvedTransfer is a TransferIntent after resolution.
type ResolvedTransfer struct {
	Mint      string          `json:"mint"`
	Symbol    string          `json:"symbol"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}
