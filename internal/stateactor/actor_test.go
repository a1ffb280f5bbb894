package stateactor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"ledgermirror/internal/ledgertypes"
	"ledgermirror/internal/worldstate"
)

func testLogger() *logrus.Entry {
	lg := logrus.New()
	lg.SetOutput(logrusDiscard{})
	return logrus.NewEntry(lg)
}

type logrusDiscard struct{}

func (logrusDiscard) Write(p []byte) (int, error) { return len(p), nil }

func startActor(t *testing.T) *Actor {
	t.Helper()
	a, err := Start(Options{StoreDir: t.TempDir(), CacheSize: 4, Logger: testLogger()})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return a
}

func authority() ledgertypes.AccountID {
	return ledgertypes.AccountID{Name: "root", Domain: "genesis"}
}

func raw(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func block(t *testing.T, height uint64, prevHash *ledgertypes.Hash, name string) *ledgertypes.Block {
	auth := authority()
	var hash ledgertypes.Hash
	hash[0] = byte(height)
	defID := ledgertypes.AssetDefinitionID{Domain: auth.Domain, Name: name}
	instrs := []ledgertypes.Instruction{
		{ID: 1, Kind: worldstate.KindRegisterAssetDefinition, Raw: raw(t, worldstate.RegisterAssetDefinitionArgs{ID: defID, Owner: auth})},
	}
	if height == 1 {
		instrs = []ledgertypes.Instruction{
			{ID: 1, Kind: worldstate.KindRegisterDomain, Raw: raw(t, worldstate.RegisterDomainArgs{ID: auth.Domain, Owner: auth})},
			{ID: 2, Kind: worldstate.KindRegisterAccount, Raw: raw(t, worldstate.RegisterAccountArgs{ID: auth})},
		}
	}
	return &ledgertypes.Block{
		Header: ledgertypes.BlockHeader{Height: height, Hash: hash, PrevHash: prevHash, CreatedAt: time.Unix(int64(height), 0)},
		Transactions: []ledgertypes.Transaction{
			{Hash: ledgertypes.Hash{byte(height), 0xAA}, Authority: auth, Payload: ledgertypes.TransactionPayload{Kind: ledgertypes.PayloadInstructions, Instructions: instrs}},
		},
	}
}

func insertChain(t *testing.T, a *Actor, n int, names []string) []*ledgertypes.Block {
	t.Helper()
	ctx := context.Background()
	var blocks []*ledgertypes.Block
	var prevHash *ledgertypes.Hash
	for h := 1; h <= n; h++ {
		name := ""
		if h-1 < len(names) {
			name = names[h-1]
		}
		blk := block(t, uint64(h), prevHash, name)
		require.NoError(t, a.InsertBlock(ctx, blk))
		hp := blk.Header.Hash
		prevHash = &hp
		blocks = append(blocks, blk)
	}
	return blocks
}

func TestStateActor_LinearIngestionS1(t *testing.T) {
	a := startActor(t)
	insertChain(t, a, 3, []string{"", "gold", "silver"})

	ctx := context.Background()
	g, err := a.AcquireReadGuard(ctx)
	require.NoError(t, err)
	defer g.Close()

	require.EqualValues(t, 3, g.View().Height())
	require.EqualValues(t, 3, g.Store().Count())
	require.Len(t, g.View().AssetDefinitions(), 2)
}

func TestStateActor_ConfirmExceedsStore(t *testing.T) {
	a := startActor(t)
	insertChain(t, a, 1, nil)
	err := a.ConfirmLocalHeight(context.Background(), 5)
	require.ErrorIs(t, err, ErrConfirmedHeightExceedsStore)
}

func TestStateActor_SoftForkReplacesTopBlockS2(t *testing.T) {
	a := startActor(t)
	blocks := insertChain(t, a, 3, []string{"", "gold", "silver"})
	ctx := context.Background()

	// confirmed height drops one below store height: flags an expected
	// soft fork rather than a full reinit.
	require.NoError(t, a.ConfirmLocalHeight(ctx, 2))

	replacement := block(t, 3, func() *ledgertypes.Hash { h := blocks[1].Header.Hash; return &h }(), "platinum")
	require.NoError(t, a.InsertBlock(ctx, replacement))

	g, err := a.AcquireReadGuard(ctx)
	require.NoError(t, err)
	defer g.Close()
	require.EqualValues(t, 3, g.View().Height())
	defs := g.View().AssetDefinitions()
	require.Len(t, defs, 2)
	_, hasSilver := defs[ledgertypes.AssetDefinitionID{Domain: authority().Domain, Name: "silver"}]
	require.False(t, hasSilver)
	_, hasPlatinum := defs[ledgertypes.AssetDefinitionID{Domain: authority().Domain, Name: "platinum"}]
	require.True(t, hasPlatinum)
}

func TestStateActor_RewindTriggersFullReinitS3(t *testing.T) {
	a := startActor(t)
	insertChain(t, a, 5, []string{"", "gold", "silver", "bronze", "copper"})
	ctx := context.Background()

	require.NoError(t, a.ConfirmLocalHeight(ctx, 2))

	g, err := a.AcquireReadGuard(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, g.View().Height())
	require.EqualValues(t, 2, g.Store().Count())
	require.Len(t, g.View().AssetDefinitions(), 1)
	g.Close()
}

func TestStateActor_WipeToZeroS4(t *testing.T) {
	a := startActor(t)
	insertChain(t, a, 2, []string{"", "gold"})
	ctx := context.Background()

	require.NoError(t, a.ConfirmLocalHeight(ctx, 0))

	g, err := a.AcquireReadGuard(ctx)
	require.NoError(t, err)
	defer g.Close()
	require.EqualValues(t, 0, g.View().Height())
	require.EqualValues(t, 0, g.Store().Count())
}

func TestStateActor_InsertRejectsHeightMismatch(t *testing.T) {
	a := startActor(t)
	ctx := context.Background()
	require.NoError(t, a.ConfirmLocalHeight(ctx, 0))
	bad := block(t, 2, nil, "")
	err := a.InsertBlock(ctx, bad)
	var mismatch *HeightMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestStateActor_InsertRejectsPrevHashMismatch(t *testing.T) {
	a := startActor(t)
	ctx := context.Background()
	insertChain(t, a, 1, nil)
	require.NoError(t, a.ConfirmLocalHeight(ctx, 1))
	var wrongPrev ledgertypes.Hash
	wrongPrev[0] = 0xEE
	bad := block(t, 2, &wrongPrev, "gold")
	err := a.InsertBlock(ctx, bad)
	var mismatch *PrevHashMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestStateActor_GenesisInsertNeedsNoPriorConfirm(t *testing.T) {
	a := startActor(t)
	blk := block(t, 1, nil, "")
	err := a.InsertBlock(context.Background(), blk)
	require.NoError(t, err) // view height 0 == store height 0: in sync, no confirm required yet
}

func TestStateActor_ReadGuardBlocksReinitUntilClosedS5(t *testing.T) {
	a := startActor(t)
	ctx := context.Background()
	insertChain(t, a, 3, []string{"", "gold", "silver"})

	g, err := a.AcquireReadGuard(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- a.ConfirmLocalHeight(ctx, 1) // triggers full reinit (height+1 < store height)
	}()

	select {
	case <-done:
		t.Fatal("reinit completed while a read guard was still outstanding")
	case <-time.After(150 * time.Millisecond):
	}

	require.EqualValues(t, 3, g.View().Height(), "guard's own clone must stay stable while reinit is pending")
	g.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reinit never completed after guard was closed")
	}

	g2, err := a.AcquireReadGuard(ctx)
	require.NoError(t, err)
	defer g2.Close()
	require.EqualValues(t, 1, g2.View().Height())
}
