package query_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"ledgermirror/internal/ledgertypes"
	"ledgermirror/internal/pagination"
	"ledgermirror/internal/query"
	"ledgermirror/internal/stateactor"
	"ledgermirror/internal/worldstate"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *logrus.Entry {
	lg := logrus.New()
	lg.SetOutput(discardWriter{})
	return logrus.NewEntry(lg)
}

func startActor(t *testing.T) *stateactor.Actor {
	t.Helper()
	a, err := stateactor.Start(stateactor.Options{StoreDir: t.TempDir(), CacheSize: 4, Logger: testLogger()})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return a
}

func raw(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func rootAuthority() ledgertypes.AccountID {
	return ledgertypes.AccountID{Name: "root", Domain: "genesis"}
}

// seedChain inserts a genesis block registering the domain/account, then
// one asset-definition-registering block per name in names. The name
// "__wasm__" instead yields a WASM-payload-only transaction, so query tests
// can exercise the "transaction has no instructions" boundary case, and
// "__rejected__" marks that block's transaction as rejected.
func seedChain(t *testing.T, a *stateactor.Actor, names []string) []*ledgertypes.Block {
	t.Helper()
	ctx := context.Background()
	auth := rootAuthority()
	var blocks []*ledgertypes.Block
	var prevHash *ledgertypes.Hash

	mkHash := func(height uint64, tag byte) ledgertypes.Hash {
		var h ledgertypes.Hash
		h[0] = byte(height)
		h[1] = tag
		return h
	}

	genesis := &ledgertypes.Block{
		Header: ledgertypes.BlockHeader{Height: 1, Hash: mkHash(1, 0), CreatedAt: time.Unix(1, 0)},
		Transactions: []ledgertypes.Transaction{{
			Hash:      mkHash(1, 0xAA),
			Authority: auth,
			CreatedAt: time.Unix(1, 0),
			Payload: ledgertypes.TransactionPayload{
				Kind: ledgertypes.PayloadInstructions,
				Instructions: []ledgertypes.Instruction{
					{ID: 1, Kind: worldstate.KindRegisterDomain, Raw: raw(t, worldstate.RegisterDomainArgs{ID: auth.Domain, Owner: auth})},
					{ID: 2, Kind: worldstate.KindRegisterAccount, Raw: raw(t, worldstate.RegisterAccountArgs{ID: auth})},
				},
			},
		}},
	}
	require.NoError(t, a.InsertBlock(ctx, genesis))
	blocks = append(blocks, genesis)
	hp := genesis.Header.Hash
	prevHash = &hp

	for i, name := range names {
		height := uint64(i + 2)
		rejected := name == "__rejected__"
		var rejectionReason *string
		if rejected {
			reason := "insufficient balance"
			rejectionReason = &reason
		}
		payload := ledgertypes.TransactionPayload{
			Kind: ledgertypes.PayloadInstructions,
			Instructions: []ledgertypes.Instruction{
				{ID: 1, Kind: worldstate.KindRegisterAssetDefinition, Raw: raw(t, worldstate.RegisterAssetDefinitionArgs{
					ID:    ledgertypes.AssetDefinitionID{Domain: auth.Domain, Name: name},
					Owner: auth,
				})},
			},
		}
		if name == "__wasm__" {
			payload = ledgertypes.TransactionPayload{Kind: ledgertypes.PayloadWASM, WASM: []byte{0x00, 0x61, 0x73, 0x6d}}
		}
		blk := &ledgertypes.Block{
			Header: ledgertypes.BlockHeader{Height: height, Hash: mkHash(height, 0), PrevHash: prevHash, CreatedAt: time.Unix(int64(height), 0)},
			Transactions: []ledgertypes.Transaction{{
				Hash:            mkHash(height, 0xAA),
				Authority:       auth,
				CreatedAt:       time.Unix(int64(height), 0),
				Payload:         payload,
				RejectionReason: rejectionReason,
			}},
		}
		require.NoError(t, a.InsertBlock(ctx, blk))
		blocks = append(blocks, blk)
		h := blk.Header.Hash
		prevHash = &h
	}
	return blocks
}

func withExecutor(t *testing.T, a *stateactor.Actor, fn func(*query.Executor)) {
	t.Helper()
	g, err := a.AcquireReadGuard(context.Background())
	require.NoError(t, err)
	defer g.Close()
	fn(query.New(g))
}

func TestExecutor_BlocksIndexAndShow(t *testing.T) {
	a := startActor(t)
	blocks := seedChain(t, a, []string{"gold", "silver"})

	withExecutor(t, a, func(ex *query.Executor) {
		items, pg, err := ex.BlocksIndex(nil, 10)
		require.NoError(t, err)
		require.Len(t, items, 3)
		require.EqualValues(t, 3, pg.TotalItems)
		require.EqualValues(t, 3, items[0].Height) // newest first

		h := uint64(2)
		show, err := ex.BlocksShow(query.BlockLookup{Height: &h})
		require.NoError(t, err)
		require.Equal(t, blocks[1].Header.Hash, show.Hash)

		hash := blocks[2].Header.Hash
		byHash, err := ex.BlocksShow(query.BlockLookup{Hash: &hash})
		require.NoError(t, err)
		require.EqualValues(t, 3, byHash.Height)

		_, err = ex.BlocksShow(query.BlockLookup{})
		require.Error(t, err)
		var bad *query.BadParamsError
		require.ErrorAs(t, err, &bad)

		missing := uint64(99)
		_, err = ex.BlocksShow(query.BlockLookup{Height: &missing})
		var nf *query.NotFoundError
		require.ErrorAs(t, err, &nf)
	})
}

func TestExecutor_TransactionsIndexFiltersAndPaginates(t *testing.T) {
	a := startActor(t)
	seedChain(t, a, []string{"gold", "silver", "bronze"})

	withExecutor(t, a, func(ex *query.Executor) {
		// page 1 is the oldest page; the default (nil) page is the most
		// recent (pagination.Reverse's "last page is most recent").
		page1 := uint64(1)
		items, pg, err := ex.TransactionsIndex(query.TransactionFilter{}, &page1, 2)
		require.NoError(t, err)
		require.Len(t, items, 2)
		require.EqualValues(t, 2, pg.TotalPages)
		require.EqualValues(t, 2, items[0].BlockHeight)
		require.EqualValues(t, 1, items[1].BlockHeight)

		latest, _, err := ex.TransactionsIndex(query.TransactionFilter{}, nil, 2)
		require.NoError(t, err)
		require.Len(t, latest, 2)
		require.EqualValues(t, 4, latest[0].BlockHeight)
		require.EqualValues(t, 3, latest[1].BlockHeight)

		block := uint64(1)
		scoped, _, err := ex.TransactionsIndex(query.TransactionFilter{Block: &block}, nil, 10)
		require.NoError(t, err)
		require.Len(t, scoped, 1)
	})
}

func TestExecutor_TransactionsShow(t *testing.T) {
	a := startActor(t)
	blocks := seedChain(t, a, []string{"gold"})

	withExecutor(t, a, func(ex *query.Executor) {
		rec, err := ex.TransactionsShow(blocks[1].Transactions[0].Hash)
		require.NoError(t, err)
		require.EqualValues(t, 2, rec.BlockHeight)

		var missing ledgertypes.Hash
		missing[0] = 0xFF
		_, err = ex.TransactionsShow(missing)
		var nf *query.NotFoundError
		require.ErrorAs(t, err, &nf)
	})
}

func TestExecutor_InstructionsIndexByTxHashStrictValidators(t *testing.T) {
	a := startActor(t)
	blocks := seedChain(t, a, []string{"gold"})
	txHash := blocks[1].Transactions[0].Hash

	withExecutor(t, a, func(ex *query.Executor) {
		items, _, err := ex.InstructionsIndex(query.InstructionFilter{TxHash: &txHash}, nil, 10)
		require.NoError(t, err)
		require.Len(t, items, 1)

		wrongBlock := uint64(1)
		_, _, err = ex.InstructionsIndex(query.InstructionFilter{TxHash: &txHash, Block: &wrongBlock}, nil, 10)
		var bad *query.BadParamsError
		require.ErrorAs(t, err, &bad)

		wrongAuthority := ledgertypes.AccountID{Name: "someone-else", Domain: "genesis"}
		_, _, err = ex.InstructionsIndex(query.InstructionFilter{TxHash: &txHash, Authority: &wrongAuthority}, nil, 10)
		require.ErrorAs(t, err, &bad)

		wrongRejected := true
		_, _, err = ex.InstructionsIndex(query.InstructionFilter{TxHash: &txHash, Rejected: &wrongRejected}, nil, 10)
		require.ErrorAs(t, err, &bad)
	})
}

func TestExecutor_InstructionsIndexTxHashWithoutInstructionsIsBadParams(t *testing.T) {
	a := startActor(t)
	blocks := seedChain(t, a, []string{"__wasm__"})
	txHash := blocks[1].Transactions[0].Hash

	withExecutor(t, a, func(ex *query.Executor) {
		_, _, err := ex.InstructionsIndex(query.InstructionFilter{TxHash: &txHash}, nil, 10)
		var bad *query.BadParamsError
		require.ErrorAs(t, err, &bad)
	})
}

func TestExecutor_DomainsAccountsAssetsNFTsDirectPagination(t *testing.T) {
	a := startActor(t)
	seedChain(t, a, []string{"gold", "silver"})

	withExecutor(t, a, func(ex *query.Executor) {
		domains, pg, err := ex.DomainsIndex(query.DomainFilter{}, 1, 10)
		require.NoError(t, err)
		require.Len(t, domains, 1)
		require.EqualValues(t, 1, pg.TotalItems)

		d, err := ex.DomainsShow("genesis")
		require.NoError(t, err)
		require.Equal(t, "genesis", d.ID)

		_, err = ex.DomainsShow("does-not-exist")
		var nf *query.NotFoundError
		require.ErrorAs(t, err, &nf)

		accounts, _, err := ex.AccountsIndex(query.AccountFilter{}, 1, 10)
		require.NoError(t, err)
		require.Len(t, accounts, 1)

		defs, _, err := ex.AssetDefinitionsIndex(query.AssetDefinitionFilter{}, 1, 10)
		require.NoError(t, err)
		require.Len(t, defs, 2)

		assetFilter := query.AssetFilter{}
		assets, _, err := ex.AssetsIndex(assetFilter, 1, 10)
		require.NoError(t, err)
		require.Len(t, assets, 0) // registering a definition does not itself mint a holding

		nfts, _, err := ex.NFTsIndex(query.NFTFilter{}, 1, 10)
		require.NoError(t, err)
		require.Len(t, nfts, 0)
	})
}

func TestExecutor_ReverseAndDirectPaginationOutOfBounds(t *testing.T) {
	a := startActor(t)
	seedChain(t, a, []string{"gold"})

	withExecutor(t, a, func(ex *query.Executor) {
		tooFar := uint64(99)
		_, _, err := ex.BlocksIndex(&tooFar, 1)
		var oob *pagination.PageOutOfBoundsError
		require.ErrorAs(t, err, &oob)

		_, _, err = ex.DomainsIndex(query.DomainFilter{}, 99, 10)
		require.ErrorAs(t, err, &oob)
	})
}
