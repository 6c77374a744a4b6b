package chainclient

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

const (
	systemTransferIndex = 2
	tokenTransferIndex  = 3
)

// NewSystemTransferInstruction moves lamports between system accounts.
func NewSystemTransferInstruction(lamports uint64, from, to solana.PublicKey) solana.Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransferIndex)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	return solana.NewInstruction(
		solana.SystemProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(from, true, true),
			solana.NewAccountMeta(to, true, false),
		},
		data,
	)
}

// NewTokenTransferInstruction moves base units between token accounts. The
// raw Transfer layout is identical for the legacy and 2022 token programs, so
// the caller passes whichever program owns the mint.
func NewTokenTransferInstruction(amount uint64, source, destination, owner, tokenProgram solana.PublicKey) solana.Instruction {
	data := make([]byte, 9)
	data[0] = tokenTransferIndex
	binary.LittleEndian.PutUint64(data[1:9], amount)
	return solana.NewInstruction(
		tokenProgram,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(source, true, false),
			solana.NewAccountMeta(destination, true, false),
			solana.NewAccountMeta(owner, false, true),
		},
		data,
	)
}

// NewCreateATAInstruction creates the associated token account of owner for
// mint, funded by payer.
func NewCreateATAInstruction(payer, ata, owner, mint, tokenProgram solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ataProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(ata, true, false),
			solana.NewAccountMeta(owner, false, false),
			solana.NewAccountMeta(mint, false, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
			solana.NewAccountMeta(tokenProgram, false, false),
		},
		nil,
	)
}
