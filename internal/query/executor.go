// Package query implements the read-only query executor (spec.md §4.4):
// all operations run over a single held read guard, so the two
// materialisation passes spec.md describes for reverse pagination (count,
// then page) observe one consistent snapshot by construction. This
// implementation takes the simpler, equally-consistent route of
// materialising the filtered match set once and slicing the requested
// window out of it — see DESIGN.md for why a literal second pass buys
// nothing extra here. Grounded on the teacher's cmd/explorer/service.go
// LedgerService (LatestBlocks/BlockByHeight/TxByID/Balance), generalized
// from "ledger + token balance" to the spec's full entity set.
package query

import (
	"sort"

	"ledgermirror/internal/ledgertypes"
	"ledgermirror/internal/pagination"
	"ledgermirror/internal/store"
	"ledgermirror/internal/worldstate"
)

// Source supplies the store and view a query executor runs over. A
// *stateactor.ReadGuard satisfies this without the query package needing
// to import stateactor: its Store() returns a store.Reader snapshot frozen
// at guard-acquire time, not the live *store.Store, so every query in this
// package observes a store as stable as the already-cloned view.
type Source interface {
	Store() store.Reader
	View() *worldstate.View
}

// Executor runs read-only queries over a Source.
type Executor struct {
	store store.Reader
	view  *worldstate.View
}

// New builds an Executor over the given guard/source. Callers are expected
// to hold the guard only for the duration of one query call.
func New(src Source) *Executor {
	return &Executor{store: src.Store(), view: src.View()}
}

// candidateHeights returns block heights to scan, newest first. If block
// is non-nil the result is either a single-element slice (if that height
// exists) or empty.
func (e *Executor) candidateHeights(block *uint64) []uint64 {
	count := e.store.Count()
	if block != nil {
		if *block < 1 || *block > count {
			return nil
		}
		return []uint64{*block}
	}
	if count == 0 {
		return nil
	}
	heights := make([]uint64, 0, count)
	for h := count; ; h-- {
		heights = append(heights, h)
		if h == 1 {
			break
		}
	}
	return heights
}

func reversePage[T any](matches []T, page *uint64, perPage uint64) ([]T, pagination.Page, error) {
	total := uint64(len(matches))
	pg, rng, err := pagination.Reverse(total, perPage, page)
	if err != nil {
		return nil, pagination.Page{}, err
	}
	ol := rng.ToOffsetLimitForRevIter()
	lo := ol.Offset
	hi := lo + ol.Limit
	if hi > total {
		hi = total
	}
	if lo > hi {
		lo = hi
	}
	return matches[lo:hi], pg, nil
}

func directPage[T any](sorted []T, page uint64, perPage uint64) ([]T, pagination.Page, error) {
	total := uint64(len(sorted))
	pg, rng, err := pagination.Direct(total, perPage, page)
	if err != nil {
		return nil, pagination.Page{}, err
	}
	return sorted[rng.Lo:rng.Hi], pg, nil
}

// BlocksIndex lists blocks newest first.
func (e *Executor) BlocksIndex(page *uint64, perPage uint64) ([]BlockSummary, pagination.Page, error) {
	heights, pg, err := reversePage(e.candidateHeights(nil), page, perPage)
	if err != nil {
		return nil, pagination.Page{}, err
	}
	out := make([]BlockSummary, 0, len(heights))
	for _, h := range heights {
		if blk, ok := e.store.Get(h); ok {
			out = append(out, summarizeBlock(blk))
		}
	}
	return out, pg, nil
}

// BlocksShow resolves a single block by height or hash.
func (e *Executor) BlocksShow(by BlockLookup) (BlockSummary, error) {
	switch {
	case by.Height != nil:
		blk, ok := e.store.Get(*by.Height)
		if !ok {
			return BlockSummary{}, &NotFoundError{Entity: "block"}
		}
		return summarizeBlock(blk), nil
	case by.Hash != nil:
		for _, h := range e.candidateHeights(nil) {
			blk, ok := e.store.Get(h)
			if ok && blk.Header.Hash == *by.Hash {
				return summarizeBlock(blk), nil
			}
		}
		return BlockSummary{}, &NotFoundError{Entity: "block"}
	default:
		return BlockSummary{}, &BadParamsError{Message: "blocks_show requires height or hash"}
	}
}

// TransactionsIndex lists transactions newest first, optionally filtered.
func (e *Executor) TransactionsIndex(filter TransactionFilter, page *uint64, perPage uint64) ([]TransactionRecord, pagination.Page, error) {
	var matches []TransactionRecord
	for _, h := range e.candidateHeights(filter.Block) {
		blk, ok := e.store.Get(h)
		if !ok {
			continue
		}
		for ti := len(blk.Transactions) - 1; ti >= 0; ti-- {
			tx := blk.Transactions[ti]
			if filter.Authority != nil && *filter.Authority != tx.Authority {
				continue
			}
			if filter.Rejected != nil && *filter.Rejected != tx.Rejected() {
				continue
			}
			matches = append(matches, summarizeTransaction(h, ti, tx))
		}
	}
	return reversePage(matches, page, perPage)
}

// TransactionsShow resolves a single transaction by hash.
func (e *Executor) TransactionsShow(hash ledgertypes.Hash) (TransactionRecord, error) {
	h, ok := e.view.TransactionHeight(hash)
	if !ok {
		return TransactionRecord{}, &NotFoundError{Entity: "transaction"}
	}
	blk, ok := e.store.Get(h)
	if !ok {
		return TransactionRecord{}, &NotFoundError{Entity: "transaction"}
	}
	idx, tx, ok := findTxInBlock(blk, hash)
	if !ok {
		return TransactionRecord{}, &NotFoundError{Entity: "transaction"}
	}
	return summarizeTransaction(h, idx, tx), nil
}

// InstructionsIndex lists instructions newest first, optionally filtered.
// When filter.TxHash is set, Block/Authority/Rejected become strict
// validators: any mismatch against that transaction is a BadParamsError.
func (e *Executor) InstructionsIndex(filter InstructionFilter, page *uint64, perPage uint64) ([]InstructionRecord, pagination.Page, error) {
	if filter.TxHash != nil {
		return e.instructionsForTx(filter, page, perPage)
	}

	var matches []InstructionRecord
	for _, h := range e.candidateHeights(filter.Block) {
		blk, ok := e.store.Get(h)
		if !ok {
			continue
		}
		for ti := len(blk.Transactions) - 1; ti >= 0; ti-- {
			tx := blk.Transactions[ti]
			if filter.Authority != nil && *filter.Authority != tx.Authority {
				continue
			}
			if filter.Rejected != nil && *filter.Rejected != tx.Rejected() {
				continue
			}
			if !tx.Payload.HasInstructions() {
				continue
			}
			for ii := len(tx.Payload.Instructions) - 1; ii >= 0; ii-- {
				instr := tx.Payload.Instructions[ii]
				if filter.Kind != "" && instr.Kind != filter.Kind {
					continue
				}
				matches = append(matches, InstructionRecord{BlockHeight: h, TxHash: tx.Hash, TxIndex: ti, Index: ii, Kind: instr.Kind, Authority: tx.Authority})
			}
		}
	}
	return reversePage(matches, page, perPage)
}

func (e *Executor) instructionsForTx(filter InstructionFilter, page *uint64, perPage uint64) ([]InstructionRecord, pagination.Page, error) {
	h, ok := e.view.TransactionHeight(*filter.TxHash)
	if !ok {
		return nil, pagination.Page{}, &NotFoundError{Entity: "transaction"}
	}
	blk, ok := e.store.Get(h)
	if !ok {
		return nil, pagination.Page{}, &NotFoundError{Entity: "transaction"}
	}
	txIdx, tx, ok := findTxInBlock(blk, *filter.TxHash)
	if !ok {
		return nil, pagination.Page{}, &NotFoundError{Entity: "transaction"}
	}
	if filter.Block != nil && *filter.Block != h {
		return nil, pagination.Page{}, &BadParamsError{Message: "tx_hash does not belong to the given block"}
	}
	if filter.Authority != nil && *filter.Authority != tx.Authority {
		return nil, pagination.Page{}, &BadParamsError{Message: "tx_hash authority does not match the given authority"}
	}
	if filter.Rejected != nil && *filter.Rejected != tx.Rejected() {
		return nil, pagination.Page{}, &BadParamsError{Message: "tx_hash status does not match the given status"}
	}
	if !tx.Payload.HasInstructions() {
		return nil, pagination.Page{}, &BadParamsError{Message: "transaction does not have instructions"}
	}

	var matches []InstructionRecord
	for ii := len(tx.Payload.Instructions) - 1; ii >= 0; ii-- {
		instr := tx.Payload.Instructions[ii]
		if filter.Kind != "" && instr.Kind != filter.Kind {
			continue
		}
		matches = append(matches, InstructionRecord{BlockHeight: h, TxHash: tx.Hash, TxIndex: txIdx, Index: ii, Kind: instr.Kind, Authority: tx.Authority})
	}
	return reversePage(matches, page, perPage)
}

// DomainsIndex lists domains in id order.
func (e *Executor) DomainsIndex(filter DomainFilter, page, perPage uint64) ([]ledgertypes.Domain, pagination.Page, error) {
	all := e.view.Domains()
	ids := make([]string, 0, len(all))
	for id, d := range all {
		if filter.Owner != nil && d.Owner != *filter.Owner {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	items := make([]ledgertypes.Domain, len(ids))
	for i, id := range ids {
		items[i] = all[id]
	}
	return directPage(items, page, perPage)
}

// DomainsShow resolves a single domain.
func (e *Executor) DomainsShow(id string) (ledgertypes.Domain, error) {
	d, ok := e.view.Domain(id)
	if !ok {
		return ledgertypes.Domain{}, &NotFoundError{Entity: "domain"}
	}
	return d, nil
}

// AccountsIndex lists accounts in id order.
func (e *Executor) AccountsIndex(filter AccountFilter, page, perPage uint64) ([]ledgertypes.Account, pagination.Page, error) {
	allAccounts := e.view.Accounts()
	var assets map[ledgertypes.AssetID]ledgertypes.Asset
	if filter.WithAsset != nil {
		assets = e.view.Assets()
	}

	keys := make([]ledgertypes.AccountID, 0, len(allAccounts))
	for id, acc := range allAccounts {
		if filter.Domain != nil && acc.Domain != *filter.Domain {
			continue
		}
		if filter.WithAsset != nil {
			assetID := ledgertypes.AssetID{Definition: *filter.WithAsset, Owner: id}
			if _, held := assets[assetID]; !held {
				continue
			}
		}
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	items := make([]ledgertypes.Account, len(keys))
	for i, id := range keys {
		items[i] = allAccounts[id]
	}
	return directPage(items, page, perPage)
}

// AccountsShow resolves a single account.
func (e *Executor) AccountsShow(id ledgertypes.AccountID) (ledgertypes.Account, error) {
	a, ok := e.view.Account(id)
	if !ok {
		return ledgertypes.Account{}, &NotFoundError{Entity: "account"}
	}
	return a, nil
}

// AssetDefinitionsIndex lists asset definitions in id order.
func (e *Executor) AssetDefinitionsIndex(filter AssetDefinitionFilter, page, perPage uint64) ([]ledgertypes.AssetDefinition, pagination.Page, error) {
	all := e.view.AssetDefinitions()
	keys := make([]ledgertypes.AssetDefinitionID, 0, len(all))
	for id, def := range all {
		if filter.Domain != nil && id.Domain != *filter.Domain {
			continue
		}
		if filter.OwnedBy != nil && def.Owner != *filter.OwnedBy {
			continue
		}
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	items := make([]ledgertypes.AssetDefinition, len(keys))
	for i, id := range keys {
		items[i] = all[id]
	}
	return directPage(items, page, perPage)
}

// AssetDefinitionsShow resolves a single asset definition.
func (e *Executor) AssetDefinitionsShow(id ledgertypes.AssetDefinitionID) (ledgertypes.AssetDefinition, error) {
	d, ok := e.view.AssetDefinition(id)
	if !ok {
		return ledgertypes.AssetDefinition{}, &NotFoundError{Entity: "asset definition"}
	}
	return d, nil
}

// AssetsIndex lists asset holdings in id order.
func (e *Executor) AssetsIndex(filter AssetFilter, page, perPage uint64) ([]ledgertypes.Asset, pagination.Page, error) {
	all := e.view.Assets()
	keys := make([]ledgertypes.AssetID, 0, len(all))
	for id := range all {
		if filter.Owner != nil && id.Owner != *filter.Owner {
			continue
		}
		if filter.Definition != nil && id.Definition != *filter.Definition {
			continue
		}
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	items := make([]ledgertypes.Asset, len(keys))
	for i, id := range keys {
		items[i] = all[id]
	}
	return directPage(items, page, perPage)
}

// AssetsShow resolves a single asset holding.
func (e *Executor) AssetsShow(id ledgertypes.AssetID) (ledgertypes.Asset, error) {
	a, ok := e.view.Asset(id)
	if !ok {
		return ledgertypes.Asset{}, &NotFoundError{Entity: "asset"}
	}
	return a, nil
}

// NFTsIndex lists NFTs in id order.
func (e *Executor) NFTsIndex(filter NFTFilter, page, perPage uint64) ([]ledgertypes.NFT, pagination.Page, error) {
	all := e.view.NFTs()
	keys := make([]ledgertypes.NFTID, 0, len(all))
	for id, n := range all {
		if filter.Domain != nil && id.Domain != *filter.Domain {
			continue
		}
		if filter.Owner != nil && n.Owner != *filter.Owner {
			continue
		}
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	items := make([]ledgertypes.NFT, len(keys))
	for i, id := range keys {
		items[i] = all[id]
	}
	return directPage(items, page, perPage)
}

// NFTsShow resolves a single NFT.
func (e *Executor) NFTsShow(id ledgertypes.NFTID) (ledgertypes.NFT, error) {
	n, ok := e.view.NFT(id)
	if !ok {
		return ledgertypes.NFT{}, &NotFoundError{Entity: "nft"}
	}
	return n, nil
}
