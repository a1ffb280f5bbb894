// Package ledgertypes defines the ledger's data model: blocks, transactions
// and the domain objects (domains, accounts, asset definitions, assets,
// NFTs) a block's instructions mutate. The wire encoding of these objects is
// intentionally plain JSON — block store and world-state only ever look at
// the header fields (height, hash, prev-hash) and the domain-model records
// derived from applying a block, never at instruction bytecode semantics.
package ledgertypes

import "time"

// Hash is a content hash of a block or transaction.
type Hash [32]byte

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// BlockHeader carries the metadata every block has, regardless of payload.
type BlockHeader struct {
	// Height is 1 at genesis and increases by exactly one per block.
	Height uint64 `json:"height"`
	// Hash is the content hash of the block this header belongs to.
	Hash Hash `json:"hash"`
	// PrevHash is nil exactly at height 1.
	PrevHash  *Hash     `json:"prev_hash,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsGenesis reports whether this header describes the first block.
func (h BlockHeader) IsGenesis() bool {
	return h.Height == 1
}

// PayloadKind distinguishes the two transaction payload shapes the upstream
// may produce. Go has no tagged-union type, so TransactionPayload carries a
// Kind discriminator alongside the two mutually-exclusive payload fields.
type PayloadKind int

const (
	PayloadInstructions PayloadKind = iota
	PayloadWASM
)

// Instruction is an opaque executable step; its structure beyond identity is
// not interpreted by this module (block apply validates and commits without
// re-executing, per the state actor's apply-block procedure).
type Instruction struct {
	ID   uint32 `json:"id"`
	Kind string `json:"kind"`
	Raw  []byte `json:"raw,omitempty"`
}

// TransactionPayload is either a sequence of instructions or a WASM blob.
type TransactionPayload struct {
	Kind         PayloadKind   `json:"kind"`
	Instructions []Instruction `json:"instructions,omitempty"`
	WASM         []byte        `json:"wasm,omitempty"`
}

// HasInstructions reports whether the payload can be indexed by instruction.
func (p TransactionPayload) HasInstructions() bool {
	return p.Kind == PayloadInstructions
}

// AccountID identifies an account scoped to a domain.
type AccountID struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

func (a AccountID) String() string {
	return a.Name + "@" + a.Domain
}

// Transaction is one committed or rejected transaction embedded in a block.
type Transaction struct {
	Hash            Hash               `json:"hash"`
	Authority       AccountID          `json:"authority"`
	CreatedAt       time.Time          `json:"created_at"`
	Nonce           *uint32            `json:"nonce,omitempty"`
	TTL             *time.Duration     `json:"ttl,omitempty"`
	Metadata        map[string]string  `json:"metadata,omitempty"`
	Signature       []byte             `json:"signature"`
	Payload         TransactionPayload `json:"payload"`
	RejectionReason *string            `json:"rejection_reason,omitempty"`
}

// Rejected reports whether the upstream rejected this transaction.
func (t Transaction) Rejected() bool {
	return t.RejectionReason != nil
}

// Block is the unit the upstream commits and this mirror replays.
type Block struct {
	Header       BlockHeader   `json:"header"`
	Transactions []Transaction `json:"transactions"`
}

// GenesisAuthority returns the authority of the first transaction, which by
// convention names the genesis account. Returns an error if the block has no
// transactions, matching the spec's "losing that account means the genesis
// is malformed" invariant.
func (b Block) GenesisAuthority() (AccountID, error) {
	if len(b.Transactions) == 0 {
		return AccountID{}, ErrGenesisNoTransactions
	}
	return b.Transactions[0].Authority, nil
}
