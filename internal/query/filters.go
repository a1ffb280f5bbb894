package query

import "ledgermirror/internal/ledgertypes"

// TransactionFilter narrows transactions_index (spec.md §4.4).
type TransactionFilter struct {
	Authority *ledgertypes.AccountID
	Block     *uint64
	Rejected  *bool
}

// InstructionFilter narrows instructions_index. When TxHash is set, Block,
// Authority and Rejected become strict validators against that
// transaction: a mismatch is a BadParamsError rather than an empty result
// (spec.md §4.4, §8 boundary behavior).
type InstructionFilter struct {
	TxHash    *ledgertypes.Hash
	Block     *uint64
	Kind      string
	Authority *ledgertypes.AccountID
	Rejected  *bool
}

// DomainFilter narrows domains_index.
type DomainFilter struct {
	Owner *ledgertypes.AccountID
}

// AccountFilter narrows accounts_index. WithAsset restricts to accounts
// holding at least one asset of the given definition.
type AccountFilter struct {
	Domain    *string
	WithAsset *ledgertypes.AssetDefinitionID
}

// AssetDefinitionFilter narrows asset_defs_index.
type AssetDefinitionFilter struct {
	Domain  *string
	OwnedBy *ledgertypes.AccountID
}

// AssetFilter narrows assets_index.
type AssetFilter struct {
	Owner      *ledgertypes.AccountID
	Definition *ledgertypes.AssetDefinitionID
}

// NFTFilter narrows nfts_index.
type NFTFilter struct {
	Domain *string
	Owner  *ledgertypes.AccountID
}

// BlockLookup selects a single block by height or by hash (blocks_show).
// Exactly one of Height or Hash should be set.
type BlockLookup struct {
	Height *uint64
	Hash   *ledgertypes.Hash
}
