// Package callorder implements the collateralized-debt-position pricing
// calculations: margin-call price derivation, max-debt-to-cover, and the
// black-swan solvency check. The numeric discipline (round toward the
// side the call site names, wide intermediates throughout) follows the
// engine's general fixed-point style; the formulas themselves are
// rebuilt directly from the specification's CDP collateralization model,
// since there is no collateralized-debt concept in the matching-engine
// lineage this package's structure is otherwise grounded on.
package callorder

import (
	"github.com/abitmore/revpop-core/numeric"
	"github.com/abitmore/revpop-core/types"
)

// Callable reports whether a call order is currently margin-called: its
// collateralization has fallen to or below the maintenance threshold.
// Lower collateralization sorts first in the call index (weakest first),
// so "callable" is simply "not greater than" the threshold.
func Callable(call *types.CallOrder, maintenanceCollateralization numeric.Price) bool {
	cr := call.CollateralizationPrice()
	return cr.Less(maintenanceCollateralization) || cr.EQ(maintenanceCollateralization)
}

// MaxShortSqueezePrice returns MSSP = settlement_price * MSSR.
func MaxShortSqueezePrice(feed types.PriceFeed) numeric.Price {
	return scalePrice(feed.SettlementPrice, feed.MSSR)
}

// MarginCallOrderPrice returns MCOP: MSSP adjusted down by the
// margin-call fee ratio (BSIP-74), or MSSP unchanged if no MCFR is
// configured (pre-BSIP-74 behavior).
func MarginCallOrderPrice(feed types.PriceFeed, mcfr *uint16) numeric.Price {
	mssp := MaxShortSqueezePrice(feed)
	if mcfr == nil || *mcfr == 0 {
		return mssp
	}
	// MCOP = MSSP * (10000 - mcfr) / 10000, reducing the base (collateral)
	// leg so calls appear on the book at a less aggressive price than
	// what they actually pay, with the difference captured as margin-call fee.
	factor := numeric.GraphenePercent100 - *mcfr
	base := mssp.Base.Value.MulDiv(numeric.NewUint(uint64(factor)), numeric.NewUint(uint64(numeric.GraphenePercent100)))
	return numeric.Price{
		Base:  numeric.Amount{Value: base, Asset: mssp.Base.Asset},
		Quote: mssp.Quote,
	}
}

// CallMatchPrice is the price at which calls appear on the book against
// limit bids, kept in the feed's own (collateral, debt) unit polarity so
// it can be compared directly against other collateral/debt prices
// (maintenance collateralization, limit sell prices) without an
// intervening Invert that would otherwise require tracking two distinct
// asset-pair polarities through the matching loop.
func CallMatchPrice(feed types.PriceFeed, mcfr *uint16) numeric.Price {
	return MarginCallOrderPrice(feed, mcfr)
}

// CallPaysPrice is what the call actually surrenders per debt unit,
// i.e. MSSP itself (collateral/debt polarity, see CallMatchPrice).
func CallPaysPrice(feed types.PriceFeed) numeric.Price {
	return MaxShortSqueezePrice(feed)
}

func scalePrice(p numeric.Price, ratioBps uint16) numeric.Price {
	base := p.Base.Value.MulDiv(numeric.NewUint(uint64(ratioBps)), numeric.NewUint(uint64(numeric.GraphenePercent100)))
	return numeric.Price{
		Base:  numeric.Amount{Value: base, Asset: p.Base.Asset},
		Quote: p.Quote,
	}
}

// MaxDebtToCover returns the largest debt amount call may cover while
// respecting its optional target collateral ratio, per spec.md §4.4. If
// TCR is unset, the whole debt is coverable. If TCR is set, only enough
// debt is covered to raise the post-cover collateralization up to TCR,
// given the price (callPaysPrice) at which the call pays collateral.
func MaxDebtToCover(call *types.CallOrder, callPaysPrice numeric.Price, mcr uint16) *numeric.Uint {
	if call.TargetCR == nil {
		return call.Debt.Clone()
	}
	tcr := *call.TargetCR
	// Solve for max_debt such that, after paying max_debt at
	// callPaysPrice, the remaining collateral over the value of the
	// remaining debt == TCR/10000:
	//   (collateral - max_debt*price) / ((debt - max_debt)*price) = tcr/10000
	// Rearranged (all in collateral-asset units, price = collateral/debt):
	//   max_debt = (debt*tcr*price - collateral*10000) / (tcr*price - 10000*price)
	// A position already at or above TCR covers nothing; a TCR at or below
	// 100% cannot be reached by covering, so the whole debt is coverable.
	// Since price = callPaysPrice.Base/Quote (collateral/debt units), we
	// compute via a common scale to avoid intermediate fractions,
	// matching max_debt_to_cover's rounding-to-favor-the-position intent:
	// round down so the call never covers more debt than TCR strictly
	// requires.
	priceBase := callPaysPrice.Base.Value
	priceQuote := callPaysPrice.Quote.Value

	num := call.Collateral.MulDiv(numeric.NewUint(uint64(numeric.GraphenePercent100)), numeric.NewUint(1))
	debtTerm := call.Debt.MulDiv(numeric.NewUint(uint64(tcr)), numeric.NewUint(1)).MulDiv(priceBase, priceQuote)
	if num.GTE(debtTerm) {
		return numeric.Zero()
	}
	numerator := debtTerm.Sub(num)

	denBase := numeric.NewUint(uint64(numeric.GraphenePercent100)).MulDiv(priceBase, priceQuote)
	tcrScaled := numeric.NewUint(uint64(tcr)).MulDiv(priceBase, priceQuote)
	if denBase.GTE(tcrScaled) {
		return call.Debt.Clone()
	}
	denominator := tcrScaled.Sub(denBase)
	if denominator.IsZero() {
		return call.Debt.Clone()
	}
	maxDebt := numerator.MulDiv(numeric.NewUint(1), denominator)
	return numeric.Min(maxDebt, call.Debt)
}

// BlackSwan reports whether the given call order cannot pay its debt out
// of its collateral at callPaysPrice: collateral is insufficient and
// global settlement must trigger (spec.md §4.4).
func BlackSwan(call *types.CallOrder, callPaysPrice numeric.Price) bool {
	owed := call.Debt.MulDivRoundUp(callPaysPrice.Base.Value, callPaysPrice.Quote.Value)
	return owed.GT(call.Collateral)
}
