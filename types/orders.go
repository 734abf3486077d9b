package types

import (
	"time"

	"github.com/abitmore/revpop-core/numeric"
	"github.com/abitmore/revpop-core/store"
)

// LimitOrder is a resting order in the book: sell `ForSale` of the base
// asset at a price no worse than SellPrice.
type LimitOrder struct {
	ID          store.ObjectID
	Seller      AccountID
	ForSale     *numeric.Uint // remaining amount, denominated in SellPrice.Base.Asset
	SellPrice   numeric.Price
	DeferredFee *numeric.Uint // core-denominated fee withheld until the order's first fill (maker or taker) or its cancellation
	// DeferredPaidFee is the fee actually charged at order-creation time,
	// in whatever asset funded it (an asset's core-exchange-rate lets a
	// fee pool subsidize a CORE-denominated fee from a non-core asset);
	// zero-amount when the fee was paid directly in core.
	DeferredPaidFee numeric.Amount
	Expiration  time.Time
	IsSellAll   bool // fill-or-kill against remaining book liquidity only, never creates a resting order
}

// AmountToReceive is what a full fill of the remaining ForSale returns,
// at SellPrice, rounding down (graphene's limit_order_object::amount_to_receive).
func (o *LimitOrder) AmountToReceive() numeric.Amount {
	return o.SellPrice.Mul(numeric.Amount{Value: o.ForSale, Asset: o.SellPrice.Base.Asset})
}

func (o *LimitOrder) BaseAsset() numeric.AssetID  { return o.SellPrice.Base.Asset }
func (o *LimitOrder) QuoteAsset() numeric.AssetID { return o.SellPrice.Quote.Asset }

// CallOrder is a collateralized debt position: Collateral backs Debt, and
// the position is margin-called whenever its collateralization ratio
// drops below the backing bitasset's current maintenance ratio.
type CallOrder struct {
	ID             store.ObjectID
	Borrower       AccountID
	Collateral     *numeric.Uint // denominated in the backing asset
	Debt           *numeric.Uint // denominated in the market-issued asset
	CollateralAsset numeric.AssetID
	DebtAsset      numeric.AssetID
	TargetCR       *uint16 // optional target collateral ratio used by the two-step margin call price
}

// CollateralizationPrice returns collateral/debt as a Price, used as the
// call order's position in the collateralization-ordered index (lower
// sorts first, i.e. is margin-called first).
func (c *CallOrder) CollateralizationPrice() numeric.Price {
	return numeric.Price{
		Base:  numeric.Amount{Value: c.Collateral, Asset: c.CollateralAsset},
		Quote: numeric.Amount{Value: c.Debt, Asset: c.DebtAsset},
	}
}

// ForceSettlement is a request to redeem a bitasset for its backing
// collateral at the feed price, subject to the asset's settlement delay.
type ForceSettlement struct {
	ID       store.ObjectID
	Owner    AccountID
	Balance  numeric.Amount // denominated in the MIA being settled
	Created  time.Time
}

// SettlementDue reports whether the settlement's delay has elapsed as of
// `now`.
func (f *ForceSettlement) SettlementDue(now time.Time, delay time.Duration) bool {
	return !now.Before(f.Created.Add(delay))
}
