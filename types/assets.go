package types

import (
	"github.com/abitmore/revpop-core/numeric"
	"github.com/abitmore/revpop-core/store"
)

// AssetFlags and AssetPermissions are bitmasks over the same bit layout:
// a flag may only be set by the issuer if the corresponding permission
// bit is set. Permission/authority *verification* is out of scope; the
// engine only reads the flags to decide behavior (does this asset charge
// a market fee, can force-settlement happen, ...).
type AssetFlags uint32

const (
	ChargeMarketFee AssetFlags = 1 << iota
	WitnessFed
	CommitteeFed
	DisableForceSettle
	GlobalSettleFlag
	DisableConfidential
)

func (f AssetFlags) Has(bit AssetFlags) bool { return f&bit != 0 }

// AssetOptions holds the market-facing configuration of an asset record.
type AssetOptions struct {
	Flags                     AssetFlags
	IssuerPermissions         AssetFlags
	MaxSupply                 *numeric.Uint
	MarketFeePercent          uint16 // bps, charged on maker fills (and taker fills if TakerFeePercent is nil)
	TakerFeePercent           *uint16
	MaxMarketFee              *numeric.Uint
	WhitelistMarketFeeSharing []AccountID // empty/nil: no restriction
	RewardPercent             *uint16     // bps of post-network-fee remainder routed to referral program
	CoreExchangeRate          numeric.Price
}

// AssetRecord is the static, issuer-controlled description of an asset.
type AssetRecord struct {
	ID              store.ObjectID
	Issuer          AccountID
	Symbol          string
	Precision       uint8
	Options         AssetOptions
	DynamicDataID   store.ObjectID
	BitAssetDataID  *store.ObjectID // present only for market-issued assets
}

func (a *AssetRecord) IsMarketIssued() bool { return a.BitAssetDataID != nil }

func (a *AssetRecord) AssetID() numeric.AssetID { return numeric.AssetID(a.Symbol) }

// AssetDynamicData is the mutable per-block state of an asset: supply and
// the fee accounting buckets described in spec.md §3.
type AssetDynamicData struct {
	ID                        store.ObjectID
	CurrentSupply             *numeric.Uint
	FeePool                   *numeric.Uint // denominated in core asset
	AccumulatedFees           *numeric.Uint // denominated in the asset itself
	AccumulatedCollateralFees *numeric.Uint // denominated in the backing asset, MIAs only
}

func NewAssetDynamicData(id store.ObjectID) *AssetDynamicData {
	return &AssetDynamicData{
		ID:                        id,
		CurrentSupply:             numeric.Zero(),
		FeePool:                   numeric.Zero(),
		AccumulatedFees:           numeric.Zero(),
		AccumulatedCollateralFees: numeric.Zero(),
	}
}
