package worldstate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgermirror/internal/ledgertypes"
)

func genesisAuthority() ledgertypes.AccountID {
	return ledgertypes.AccountID{Name: "root", Domain: "genesis"}
}

func raw(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func genesisBlock(t *testing.T) *ledgertypes.Block {
	authority := genesisAuthority()
	return &ledgertypes.Block{
		Header: ledgertypes.BlockHeader{Height: 1, CreatedAt: time.Unix(1, 0)},
		Transactions: []ledgertypes.Transaction{
			{
				Hash:      ledgertypes.Hash{1},
				Authority: authority,
				Payload: ledgertypes.TransactionPayload{
					Kind: ledgertypes.PayloadInstructions,
					Instructions: []ledgertypes.Instruction{
						{ID: 1, Kind: KindRegisterDomain, Raw: raw(t, RegisterDomainArgs{ID: authority.Domain, Owner: authority})},
						{ID: 2, Kind: KindRegisterAccount, Raw: raw(t, RegisterAccountArgs{ID: authority})},
					},
				},
			},
		},
	}
}

func assetDefBlock(t *testing.T, height uint64, name string) *ledgertypes.Block {
	authority := genesisAuthority()
	defID := ledgertypes.AssetDefinitionID{Domain: authority.Domain, Name: name}
	return &ledgertypes.Block{
		Header: ledgertypes.BlockHeader{Height: height, CreatedAt: time.Unix(int64(height), 0)},
		Transactions: []ledgertypes.Transaction{
			{
				Hash:      ledgertypes.Hash{byte(height)},
				Authority: authority,
				Payload: ledgertypes.TransactionPayload{
					Kind: ledgertypes.PayloadInstructions,
					Instructions: []ledgertypes.Instruction{
						{ID: 1, Kind: KindRegisterAssetDefinition, Raw: raw(t, RegisterAssetDefinitionArgs{ID: defID, Owner: authority})},
					},
				},
			},
		},
	}
}

func TestView_GenesisSeedAndApply(t *testing.T) {
	authority := genesisAuthority()
	v := NewSeeded(authority)
	v.Apply(genesisBlock(t))

	require.EqualValues(t, 1, v.Height())
	_, ok := v.Domain(authority.Domain)
	require.True(t, ok)
	_, ok = v.Account(authority)
	require.True(t, ok)
}

func TestView_LinearIngestionS1(t *testing.T) {
	authority := genesisAuthority()
	v := NewSeeded(authority)
	v.Apply(genesisBlock(t))
	for h, name := range map[uint64]string{2: "gold", 3: "silver", 4: "bronze"} {
		v.Apply(assetDefBlock(t, h, name))
	}
	require.EqualValues(t, 4, v.Height())
	require.Len(t, v.AssetDefinitions(), 3)
}

func TestView_SoftForkRevertsThenReapplies(t *testing.T) {
	authority := genesisAuthority()
	v := NewSeeded(authority)
	v.Apply(genesisBlock(t))
	v.Apply(assetDefBlock(t, 2, "gold"))
	v.Apply(assetDefBlock(t, 3, "silver"))

	oldBlock4 := assetDefBlock(t, 4, "bronze")
	v.Apply(oldBlock4)
	require.Len(t, v.AssetDefinitions(), 3)

	ok := v.RevertTop()
	require.True(t, ok)
	require.EqualValues(t, 3, v.Height())
	require.Len(t, v.AssetDefinitions(), 2)

	newBlock4 := assetDefBlock(t, 4, "platinum")
	v.Apply(newBlock4)
	require.EqualValues(t, 4, v.Height())
	defs := v.AssetDefinitions()
	require.Len(t, defs, 3)
	_, hasBronze := defs[ledgertypes.AssetDefinitionID{Domain: authority.Domain, Name: "bronze"}]
	require.False(t, hasBronze)
	_, hasPlatinum := defs[ledgertypes.AssetDefinitionID{Domain: authority.Domain, Name: "platinum"}]
	require.True(t, hasPlatinum)
}

func TestView_RejectedTransactionDoesNotMutate(t *testing.T) {
	authority := genesisAuthority()
	v := NewSeeded(authority)
	v.Apply(genesisBlock(t))

	reason := "insufficient permissions"
	defID := ledgertypes.AssetDefinitionID{Domain: authority.Domain, Name: "gold"}
	block := &ledgertypes.Block{
		Header: ledgertypes.BlockHeader{Height: 2},
		Transactions: []ledgertypes.Transaction{
			{
				Hash:      ledgertypes.Hash{2},
				Authority: authority,
				Payload: ledgertypes.TransactionPayload{
					Kind:         ledgertypes.PayloadInstructions,
					Instructions: []ledgertypes.Instruction{{ID: 1, Kind: KindRegisterAssetDefinition, Raw: raw(t, RegisterAssetDefinitionArgs{ID: defID, Owner: authority})}},
				},
				RejectionReason: &reason,
			},
		},
	}
	v.Apply(block)
	require.EqualValues(t, 2, v.Height())
	_, ok := v.AssetDefinition(defID)
	require.False(t, ok)
	height, ok := v.TransactionHeight(ledgertypes.Hash{2})
	require.True(t, ok)
	require.EqualValues(t, 2, height)
}
