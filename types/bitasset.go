package types

import (
	"time"

	"github.com/abitmore/revpop-core/numeric"
	"github.com/abitmore/revpop-core/store"
)

// BitAssetOptions configures a market-issued asset's collateral and
// settlement behavior. MCR/MSSR/force-settle-fee are expressed in basis
// points throughout, matching GRAPHENE_100_PERCENT = 10000.
type BitAssetOptions struct {
	ShortBackingAssetID     numeric.AssetID
	FeedLifetime            time.Duration
	ForceSettlementDelay    time.Duration
	MCR                     uint16  // maintenance collateral ratio, e.g. 17500 == 175%
	MSSR                    uint16  // maximum short squeeze ratio, e.g. 12500 == 125%
	ICR                     *uint16 // initial collateral ratio, optional
	MarginCallFeeRatio      *uint16 // BSIP-74 MCFR, bps of MSSP by which the margin call order price sits below MSSP (kept as fee)
	ForceSettleFeePercent   *uint16
}

// PriceFeed is a single publisher's view of the market, matching the
// original price_feed structure.
type PriceFeed struct {
	SettlementPrice numeric.Price
	MCR             uint16
	MSSR            uint16
	CoreExchangeRate numeric.Price
}

func (f PriceFeed) IsNull() bool { return f.SettlementPrice.IsNull() }

// FeedEntry is a timestamped feed publication.
type FeedEntry struct {
	Timestamp time.Time
	Feed      PriceFeed
}

// BitAssetData is the market-issued-asset extension record: feeds,
// the current median, and (once a black swan has occurred) the global
// settlement price and fund.
type BitAssetData struct {
	ID                                  store.ObjectID
	Options                             BitAssetOptions
	Feeds                               map[AccountID]FeedEntry
	FeedProducers                       []AccountID // empty: any account may publish (witness/committee-fed convention out of scope, see AssetFlags doc)
	CurrentFeed                         PriceFeed
	CurrentMaintenanceCollateralization numeric.Price
	SettlementPrice                     numeric.Price
	SettlementFund                      *numeric.Uint
	IsPredictionMarket                  bool
	AssetCERUpdated                     bool
}

func NewBitAssetData(id store.ObjectID, opts BitAssetOptions) *BitAssetData {
	return &BitAssetData{
		ID:              id,
		Options:         opts,
		Feeds:           map[AccountID]FeedEntry{},
		SettlementFund:  numeric.Zero(),
	}
}

// HasSettlement reports whether a global settlement has occurred and not
// yet been revived: the settlement price's quote leg is set and non-zero.
// An empty settlement fund (zero base leg) still counts as settled.
func (b *BitAssetData) HasSettlement() bool {
	q := b.SettlementPrice.Quote.Value
	return q != nil && !q.IsZero()
}

// FeedIsValid reports whether the current feed is non-null and has not
// expired relative to `now`.
func (b *BitAssetData) FeedIsValid(now time.Time, publishedAt time.Time) bool {
	if b.CurrentFeed.IsNull() {
		return false
	}
	if b.Options.FeedLifetime == 0 {
		return true
	}
	return now.Sub(publishedAt) <= b.Options.FeedLifetime
}
