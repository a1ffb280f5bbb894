package worldstate

import (
	"encoding/json"

	"ledgermirror/internal/ledgertypes"
)

// Instruction kinds this mirror interprets when replaying a block. Anything
// else is ignored — instructions are opaque beyond
// what's needed to build the queryable projection (spec.md §1's "treated
// opaquely" boundary).
const (
	KindRegisterDomain          = "register_domain"
	KindRegisterAccount         = "register_account"
	KindRegisterAssetDefinition = "register_asset_definition"
	KindRegisterAsset           = "register_asset"
	KindRegisterNFT             = "register_nft"
	KindUnregisterAssetDefinition = "unregister_asset_definition"
)

// RegisterDomainArgs is the decoded Instruction.Raw payload for
// KindRegisterDomain.
type RegisterDomainArgs struct {
	ID    string               `json:"id"`
	Owner ledgertypes.AccountID `json:"owner"`
}

// RegisterAccountArgs is the decoded Instruction.Raw payload for
// KindRegisterAccount.
type RegisterAccountArgs struct {
	ID ledgertypes.AccountID `json:"id"`
}

// RegisterAssetDefinitionArgs is the decoded Instruction.Raw payload for
// KindRegisterAssetDefinition.
type RegisterAssetDefinitionArgs struct {
	ID    ledgertypes.AssetDefinitionID `json:"id"`
	Owner ledgertypes.AccountID         `json:"owner"`
}

// RegisterAssetArgs is the decoded Instruction.Raw payload for
// KindRegisterAsset.
type RegisterAssetArgs struct {
	ID     ledgertypes.AssetID `json:"id"`
	Amount uint64              `json:"amount"`
}

// RegisterNFTArgs is the decoded Instruction.Raw payload for
// KindRegisterNFT.
type RegisterNFTArgs struct {
	ID      ledgertypes.NFTID     `json:"id"`
	Owner   ledgertypes.AccountID `json:"owner"`
	Content []byte                `json:"content,omitempty"`
}

// UnregisterAssetDefinitionArgs is the decoded Instruction.Raw payload for
// KindUnregisterAssetDefinition.
type UnregisterAssetDefinitionArgs struct {
	ID ledgertypes.AssetDefinitionID `json:"id"`
}

func applyInstruction(v *View, instr ledgertypes.Instruction) {
	switch instr.Kind {
	case KindRegisterDomain:
		var args RegisterDomainArgs
		if json.Unmarshal(instr.Raw, &args) == nil {
			v.domains[args.ID] = ledgertypes.Domain{ID: args.ID, Owner: args.Owner}
		}
	case KindRegisterAccount:
		var args RegisterAccountArgs
		if json.Unmarshal(instr.Raw, &args) == nil {
			v.accounts[args.ID] = ledgertypes.Account{ID: args.ID, Domain: args.ID.Domain}
		}
	case KindRegisterAssetDefinition:
		var args RegisterAssetDefinitionArgs
		if json.Unmarshal(instr.Raw, &args) == nil {
			v.assetDefs[args.ID] = ledgertypes.AssetDefinition{ID: args.ID, Owner: args.Owner}
		}
	case KindUnregisterAssetDefinition:
		var args UnregisterAssetDefinitionArgs
		if json.Unmarshal(instr.Raw, &args) == nil {
			delete(v.assetDefs, args.ID)
		}
	case KindRegisterAsset:
		var args RegisterAssetArgs
		if json.Unmarshal(instr.Raw, &args) == nil {
			v.assets[args.ID] = ledgertypes.Asset{ID: args.ID, Amount: args.Amount}
		}
	case KindRegisterNFT:
		var args RegisterNFTArgs
		if json.Unmarshal(instr.Raw, &args) == nil {
			v.nfts[args.ID] = ledgertypes.NFT{ID: args.ID, Owner: args.Owner, Content: args.Content}
		}
	}
}
