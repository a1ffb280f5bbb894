package query

import (
	"time"

	"ledgermirror/internal/ledgertypes"
)

// BlockSummary is the projection blocks_index/blocks_show return.
type BlockSummary struct {
	Height    uint64
	Hash      ledgertypes.Hash
	PrevHash  *ledgertypes.Hash
	CreatedAt time.Time
	TxCount   int
}

func summarizeBlock(blk *ledgertypes.Block) BlockSummary {
	return BlockSummary{
		Height:    blk.Header.Height,
		Hash:      blk.Header.Hash,
		PrevHash:  blk.Header.PrevHash,
		CreatedAt: blk.Header.CreatedAt,
		TxCount:   len(blk.Transactions),
	}
}

// TransactionRecord is the projection transactions_index/transactions_show
// return.
type TransactionRecord struct {
	BlockHeight      uint64
	Index            int
	Hash             ledgertypes.Hash
	Authority        ledgertypes.AccountID
	CreatedAt        time.Time
	Rejected         bool
	RejectionReason  *string
	InstructionCount int
}

func summarizeTransaction(blockHeight uint64, index int, tx ledgertypes.Transaction) TransactionRecord {
	return TransactionRecord{
		BlockHeight:      blockHeight,
		Index:            index,
		Hash:             tx.Hash,
		Authority:        tx.Authority,
		CreatedAt:        tx.CreatedAt,
		Rejected:         tx.Rejected(),
		RejectionReason:  tx.RejectionReason,
		InstructionCount: len(tx.Payload.Instructions),
	}
}

// InstructionRecord is the projection instructions_index returns.
type InstructionRecord struct {
	BlockHeight uint64
	TxHash      ledgertypes.Hash
	TxIndex     int
	Index       int
	Kind        string
	Authority   ledgertypes.AccountID
}

func findTxInBlock(blk *ledgertypes.Block, hash ledgertypes.Hash) (int, ledgertypes.Transaction, bool) {
	for i, tx := range blk.Transactions {
		if tx.Hash == hash {
			return i, tx, true
		}
	}
	return 0, ledgertypes.Transaction{}, false
}
