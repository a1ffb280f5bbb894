// Package worldstate implements the in-memory, derived projection of the
// ledger (spec.md §3 "World-state (view)"). A View is mutated only by
// applying committed blocks in height order; it is otherwise a plain,
// single-writer Go struct — the teacher's core/ledger.go Ledger keeps its
// own derived maps (State, TokenBalances, Contracts) the same way.
package worldstate

import (
	"maps"

	"ledgermirror/internal/ledgertypes"
)

// View is the derived projection over applied blocks.
type View struct {
	height      uint64
	blockHashes map[uint64]ledgertypes.Hash
	domains     map[string]ledgertypes.Domain
	accounts    map[ledgertypes.AccountID]ledgertypes.Account
	assetDefs   map[ledgertypes.AssetDefinitionID]ledgertypes.AssetDefinition
	assets      map[ledgertypes.AssetID]ledgertypes.Asset
	nfts        map[ledgertypes.NFTID]ledgertypes.NFT
	txIndex     map[ledgertypes.Hash]uint64

	// preTop is a snapshot of the view as it was immediately before the
	// most recently applied block, kept so a soft-fork replacing that one
	// block can revert to it without a full replay (spec.md §9's "view
	// must be dropped first" rule only applies to a full reinit; a
	// single-block soft-fork only ever needs to undo its own top).
	preTop *View
}

func newEmptyMaps() *View {
	return &View{
		blockHashes: make(map[uint64]ledgertypes.Hash),
		domains:     make(map[string]ledgertypes.Domain),
		accounts:    make(map[ledgertypes.AccountID]ledgertypes.Account),
		assetDefs:   make(map[ledgertypes.AssetDefinitionID]ledgertypes.AssetDefinition),
		assets:      make(map[ledgertypes.AssetID]ledgertypes.Asset),
		nfts:        make(map[ledgertypes.NFTID]ledgertypes.NFT),
		txIndex:     make(map[ledgertypes.Hash]uint64),
	}
}

// New returns an empty view (pre-genesis).
func New() *View {
	return newEmptyMaps()
}

// NewSeeded returns a view with a single domain+account derived from the
// genesis identity, matching the state actor's genesis-recovery procedure
// (spec.md §4.1).
func NewSeeded(genesis ledgertypes.AccountID) *View {
	v := newEmptyMaps()
	v.domains[genesis.Domain] = ledgertypes.Domain{ID: genesis.Domain, Owner: genesis}
	v.accounts[genesis] = ledgertypes.Account{ID: genesis, Domain: genesis.Domain}
	return v
}

// Height returns the height of the last applied block (0 if empty).
func (v *View) Height() uint64 { return v.height }

// BlockHash returns the hash stored for the given height.
func (v *View) BlockHash(height uint64) (ledgertypes.Hash, bool) {
	h, ok := v.blockHashes[height]
	return h, ok
}

// Domain looks up a domain by id.
func (v *View) Domain(id string) (ledgertypes.Domain, bool) {
	d, ok := v.domains[id]
	return d, ok
}

// Domains returns a snapshot of all domains.
func (v *View) Domains() map[string]ledgertypes.Domain {
	return maps.Clone(v.domains)
}

// Account looks up an account by id.
func (v *View) Account(id ledgertypes.AccountID) (ledgertypes.Account, bool) {
	a, ok := v.accounts[id]
	return a, ok
}

// Accounts returns a snapshot of all accounts.
func (v *View) Accounts() map[ledgertypes.AccountID]ledgertypes.Account {
	return maps.Clone(v.accounts)
}

// AssetDefinition looks up an asset definition by id.
func (v *View) AssetDefinition(id ledgertypes.AssetDefinitionID) (ledgertypes.AssetDefinition, bool) {
	d, ok := v.assetDefs[id]
	return d, ok
}

// AssetDefinitions returns a snapshot of all asset definitions.
func (v *View) AssetDefinitions() map[ledgertypes.AssetDefinitionID]ledgertypes.AssetDefinition {
	return maps.Clone(v.assetDefs)
}

// Asset looks up an asset holding by id.
func (v *View) Asset(id ledgertypes.AssetID) (ledgertypes.Asset, bool) {
	a, ok := v.assets[id]
	return a, ok
}

// Assets returns a snapshot of all asset holdings.
func (v *View) Assets() map[ledgertypes.AssetID]ledgertypes.Asset {
	return maps.Clone(v.assets)
}

// NFT looks up an NFT by id.
func (v *View) NFT(id ledgertypes.NFTID) (ledgertypes.NFT, bool) {
	n, ok := v.nfts[id]
	return n, ok
}

// NFTs returns a snapshot of all NFTs.
func (v *View) NFTs() map[ledgertypes.NFTID]ledgertypes.NFT {
	return maps.Clone(v.nfts)
}

// TransactionHeight returns the height of the block containing the
// transaction with the given hash, via the tx-to-height index.
func (v *View) TransactionHeight(hash ledgertypes.Hash) (uint64, bool) {
	h, ok := v.txIndex[hash]
	return h, ok
}

// Clone returns an independent copy of the view. The state actor hands a
// Clone to every read-guard lessee instead of its own live pointer, so a
// later in-place Apply or RevertTop on the actor's working copy can never
// be observed by a guard that is already outstanding (spec.md §4.1's read
// guard "pair" invariant, satisfied here by copy-on-read rather than
// copy-on-write).
func (v *View) Clone() *View {
	return v.snapshot()
}

func (v *View) snapshot() *View {
	cp := &View{
		height:      v.height,
		blockHashes: maps.Clone(v.blockHashes),
		domains:     maps.Clone(v.domains),
		accounts:    maps.Clone(v.accounts),
		assetDefs:   maps.Clone(v.assetDefs),
		assets:      maps.Clone(v.assets),
		nfts:        maps.Clone(v.nfts),
		txIndex:     maps.Clone(v.txIndex),
	}
	return cp
}

// Apply replays a committed block's instructions into the view. It is the
// caller's responsibility (the state actor) to ensure blocks are applied in
// strict height order. A snapshot of the pre-apply state is kept internally
// so a subsequent single-block soft-fork can call RevertTop.
func (v *View) Apply(block *ledgertypes.Block) {
	v.preTop = v.snapshot()

	v.height = block.Header.Height
	v.blockHashes[block.Header.Height] = block.Header.Hash

	for _, tx := range block.Transactions {
		v.txIndex[tx.Hash] = block.Header.Height
		if tx.Rejected() {
			continue
		}
		if !tx.Payload.HasInstructions() {
			continue // WASM payloads are not interpreted by this mirror
		}
		for _, instr := range tx.Payload.Instructions {
			applyInstruction(v, instr)
		}
	}
}

// RevertTop undoes the most recently applied block, restoring the view to
// the state it had right before that block (i.e. to the header of the
// replaced block, per spec.md §4.1's soft-fork branch). It fails if there is
// no recorded pre-top snapshot (nothing has been applied yet, or RevertTop
// was already called once without an intervening Apply).
func (v *View) RevertTop() bool {
	if v.preTop == nil {
		return false
	}
	prev := v.preTop
	*v = *prev
	v.preTop = nil
	return true
}
