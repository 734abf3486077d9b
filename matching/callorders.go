package matching

import (
	"github.com/abitmore/revpop-core/callorder"
	"github.com/abitmore/revpop-core/numeric"
	"github.com/abitmore/revpop-core/store"
	"github.com/abitmore/revpop-core/types"
)

// matchCalls walks the call index from the weakest collateralization,
// matching the taker limit order against each callable position, per
// spec.md §4.5 step 4.
func (b *Book) matchCalls(taker *types.LimitOrder, feed types.PriceFeed, mcfr *uint16, mcr uint16, curMC, callMatchPrice, callPaysPrice numeric.Price) {
	for {
		if taker.ForSale.IsZero() {
			return
		}
		weakest, ok := b.Calls.Min()
		if !ok {
			return
		}
		if !callorder.Callable(weakest, curMC) {
			return
		}
		if weakest.DebtAsset != taker.BaseAsset() {
			return
		}
		result := b.MatchLimitCall(taker, weakest, callMatchPrice, feed, mcr, curMC, callPaysPrice)
		if result&2 != 0 {
			b.Calls.Delete(weakest)
		}
		if result&1 != 0 {
			return
		}
		if result == 0 {
			return
		}
	}
}

// MatchLimitCall implements match(limit_bid, call_ask, ...) from
// spec.md §4.5.
func (b *Book) MatchLimitCall(bid *types.LimitOrder, call *types.CallOrder, matchPrice numeric.Price, feed types.PriceFeed, mcr uint16, currentMC, callPaysPrice numeric.Price) int {
	usdToBuy := callorder.MaxDebtToCover(call, callPaysPrice, mcr)
	bidForSale := numeric.Amount{Value: bid.ForSale, Asset: bid.BaseAsset()}

	var bidReceives, callReceives, callPays numeric.Amount
	if usdToBuy.GT(bid.ForSale) {
		bidReceives = matchPrice.Mul(bidForSale)
		callPays = callPaysPrice.Mul(bidForSale)
		if bidReceives.Value.IsZero() {
			b.fillLimitOrder(bid, numeric.ZeroAmount(bid.QuoteAsset()), bidReceives, true, matchPrice, false)
			return 1
		}
		callReceives = matchPrice.MulRoundUp(bidReceives)
	} else {
		callReceives = numeric.Amount{Value: usdToBuy, Asset: call.DebtAsset}
		bidReceives = matchPrice.MulRoundUp(callReceives)
		callPays = callPaysPrice.MulRoundUp(callReceives)
	}

	marginCallFee := callPays.Sub(bidReceives)

	bidFilled := b.fillLimitOrder(bid, callReceives, bidReceives, true, matchPrice, false)
	callFilled := b.fillCallOrder(call, callPays, callReceives, matchPrice, true, marginCallFee)

	result := 0
	if bidFilled {
		result |= 1
	}
	if callFilled {
		result |= 2
	}
	return result
}

// fillCallOrder implements fill_call_order from spec.md §4.5: if the
// match pays off the whole debt, whatever collateral remains beyond what
// the match actually consumed is freed back to the borrower rather than
// left stranded in (and destroyed with) the closed position.
func (b *Book) fillCallOrder(call *types.CallOrder, pays, receives numeric.Amount, fillPrice numeric.Price, isMaker bool, marginCallFee numeric.Amount) bool {
	call.Debt = call.Debt.Sub(receives.Value)
	call.Collateral = call.Collateral.Sub(pays.Value)

	if dyn, ok := b.Assets.Dynamic(call.DebtAsset); ok {
		dyn.CurrentSupply = dyn.CurrentSupply.Sub(receives.Value)
	}
	if !marginCallFee.Value.IsZero() {
		if miaDyn, ok := b.Assets.Dynamic(call.DebtAsset); ok {
			miaDyn.AccumulatedCollateralFees = miaDyn.AccumulatedCollateralFees.Add(marginCallFee.Value)
		}
	}

	closed := call.Debt.IsZero()
	totalPays := pays
	if closed && !call.Collateral.IsZero() {
		totalPays = totalPays.Add(numeric.Amount{Value: call.Collateral, Asset: call.CollateralAsset})
		call.Collateral = numeric.Zero()
	}

	b.emit(VirtualOp{Kind: "fill_order", OrderID: call.ID, Pays: totalPays, Receives: receives, Fee: marginCallFee, IsMaker: isMaker})

	return closed
}

// CheckCallOrders implements check_call_orders from spec.md §4.7: sweeps
// undercollateralized call orders against the best opposing limit bids
// until the feed-protected black swan check trips, bids run out, or the
// weakest call is no longer undercollateralized. Returns true if any
// call was at least partially filled; with a null feed it returns false
// without matching.
func (b *Book) CheckCallOrders(bids *store.Index[*types.LimitOrder], feed types.PriceFeed, mcr uint16, mcfr *uint16, currentMC numeric.Price, allowBlackSwan bool, triggerBlackSwan func(settlementPrice numeric.Price)) bool {
	if feed.IsNull() {
		return false
	}
	anyFilled := false
	callMatchPrice := callorder.CallMatchPrice(feed, mcfr)
	callPaysPrice := callorder.CallPaysPrice(feed)

	for {
		weakest, ok := b.Calls.Min()
		if !ok || !callorder.Callable(weakest, currentMC) {
			return anyFilled
		}
		bid, ok := bids.Min()
		// bid sells the backing asset for the MIA, so its SellPrice already
		// shares callMatchPrice's (collateral, debt) polarity.
		if !ok || bid.SellPrice.Less(callMatchPrice) {
			return anyFilled
		}

		if callorder.BlackSwan(weakest, callPaysPrice) {
			if !allowBlackSwan {
				panic("matching: black swan detected and disallowed")
			}
			triggerBlackSwan(feed.SettlementPrice)
			return anyFilled
		}

		result := b.MatchLimitCall(bid, weakest, callMatchPrice, feed, mcr, currentMC, callPaysPrice)
		if result&1 != 0 {
			bids.Delete(bid)
		}
		if result&2 != 0 {
			b.Calls.Delete(weakest)
		}
		if result != 0 {
			anyFilled = true
		} else {
			return anyFilled
		}
	}
}
