// Package matching implements the limit order book and the three match
// functions (limit×limit, limit×call, call×settle) that make up
// apply_order and check_call_orders. Grounded on the teacher's
// core/matching/side.go uncross loop (iterate from the aggressive end of
// a sorted index, snapshot "next" before a mutation that may delete
// "current"). The best-price short-circuit check reads the same-side
// index's Min directly; there is no separate cached book.
package matching

import (
	"time"

	"github.com/abitmore/revpop-core/assets"
	"github.com/abitmore/revpop-core/callorder"
	"github.com/abitmore/revpop-core/fee"
	"github.com/abitmore/revpop-core/logging"
	"github.com/abitmore/revpop-core/numeric"
	"github.com/abitmore/revpop-core/store"
	"github.com/abitmore/revpop-core/types"
)

// VirtualOp is the minimal shape of an emitted history-only operation,
// matching spec.md §6's "fill_order / limit_order_cancel / asset_settle_cancel"
// outbound set. A real deployment would route these to a broker/event-bus;
// this engine collects them on Book.Ops for the caller to drain and is
// never re-executed against state.
type VirtualOp struct {
	Kind      string
	OrderID   store.ObjectID
	Pays      numeric.Amount
	Receives  numeric.Amount
	Fee       numeric.Amount
	IsMaker   bool
}

// Book holds one market's resting limit orders, the call orders for its
// market-issued base or quote asset, and the accumulated virtual ops of
// the operation currently in flight.
type Book struct {
	log *logging.Logger

	Bids *store.Index[*types.LimitOrder] // sell quote for base: ordered by SellPrice descending
	Asks *store.Index[*types.LimitOrder] // sell base for quote: ordered by SellPrice descending
	Calls *store.Index[*types.CallOrder] // ordered by collateralization ascending

	Assets   *assets.Registry
	Accounts map[types.AccountID]*types.AccountStats
	Fees     fee.Schedule

	// AllowSameSideBlackSwan relates to the open question from issue #606
	// (a same-side overlap between a limit order and a call order
	// triggering a black swan). The evaluator passes it to CheckCallOrders
	// as allowBlackSwan: when false, any black swan CheckCallOrders
	// detects panics instead of globally settling; same-side overlaps are
	// not told apart from other black swans. Default true.
	AllowSameSideBlackSwan bool

	Ops []VirtualOp
}

func NewBook(reg *assets.Registry, log *logging.Logger) *Book {
	return &Book{
		log:   log,
		Bids:  store.NewIndex[*types.LimitOrder](limitOrderLess),
		Asks:  store.NewIndex[*types.LimitOrder](limitOrderLess),
		Calls: store.NewIndex[*types.CallOrder](callOrderLess),
		Assets: reg,
		AllowSameSideBlackSwan: true,
	}
}

func limitOrderLess(a, b *types.LimitOrder) bool {
	if a.SellPrice.EQ(b.SellPrice) {
		return a.ID.Instance < b.ID.Instance
	}
	// Most aggressive (highest) price sorts first.
	return b.SellPrice.Less(a.SellPrice)
}

func callOrderLess(a, b *types.CallOrder) bool {
	pa, pb := a.CollateralizationPrice(), b.CollateralizationPrice()
	if pa.EQ(pb) {
		return a.ID.Instance < b.ID.Instance
	}
	return pa.Less(pb)
}

func (b *Book) emit(op VirtualOp) { b.Ops = append(b.Ops, op) }

// accountStats returns (lazily creating) the statistics record for id, or
// nil if this book was built without an Accounts map (e.g. a unit test
// exercising only order-matching arithmetic).
func (b *Book) accountStats(id types.AccountID) *types.AccountStats {
	if b.Accounts == nil {
		return nil
	}
	a, ok := b.Accounts[id]
	if !ok {
		a = types.NewAccountStats(id)
		b.Accounts[id] = a
	}
	return a
}

// isDust reports whether an order's remaining amount_to_receive has
// rounded to zero and should be culled rather than left on the book,
// per spec.md's boundary behavior.
func isDust(order *types.LimitOrder) bool {
	return order.AmountToReceive().IsZero()
}

// ApplyOrder runs the full apply_order algorithm from spec.md §4.5 for a
// newly created limit order against the book it belongs to (selected by
// the caller by sell/receive asset pair). now is used for feed validity
// checks.
func (b *Book) ApplyOrder(newOrder *types.LimitOrder, restingSameSide, restingOpposing *store.Index[*types.LimitOrder], now time.Time) bool {
	// Step 1: short-circuit if not at the front of its own side.
	if best, ok := restingSameSide.Min(); ok && best.ID != newOrder.ID {
		if best.SellPrice.EQ(newOrder.SellPrice) || newOrder.SellPrice.Less(best.SellPrice) {
			return false
		}
	}

	callsInPlay, feed, mcfr, mcr, curMC, callMatchPrice, callPaysPrice := b.callsEligible(newOrder, now)

	if callsInPlay {
		// Consume limits strictly better than call_match_price first.
		b.matchLimitsAgainst(newOrder, restingOpposing, func(opp *types.LimitOrder) bool {
			return callMatchPrice.Less(opp.SellPrice)
		})
		if isGone(newOrder, restingSameSide) {
			return true
		}
		b.matchCalls(newOrder, feed, mcfr, mcr, curMC, callMatchPrice, callPaysPrice)
		if isGone(newOrder, restingSameSide) {
			return true
		}
	}

	b.matchLimitsAgainst(newOrder, restingOpposing, func(opp *types.LimitOrder) bool {
		worst := newOrder.SellPrice.Invert()
		return !opp.SellPrice.Less(worst)
	})

	if newOrder.ForSale.IsZero() || isDust(newOrder) {
		return true
	}
	return false
}

func isGone(order *types.LimitOrder, side *store.Index[*types.LimitOrder]) bool {
	return order.ForSale.IsZero()
}

func (b *Book) callsEligible(newOrder *types.LimitOrder, now time.Time) (bool, types.PriceFeed, *uint16, uint16, numeric.Price, numeric.Price, numeric.Price) {
	sellAsset := newOrder.BaseAsset()
	recvAsset := newOrder.QuoteAsset()
	rec, ok := b.Assets.Record(sellAsset)
	if !ok || !rec.IsMarketIssued() {
		return false, types.PriceFeed{}, nil, 0, numeric.Price{}, numeric.Price{}, numeric.Price{}
	}
	bit, ok := b.Assets.BitAsset(sellAsset)
	if !ok {
		return false, types.PriceFeed{}, nil, 0, numeric.Price{}, numeric.Price{}, numeric.Price{}
	}
	if bit.Options.ShortBackingAssetID != recvAsset {
		return false, types.PriceFeed{}, nil, 0, numeric.Price{}, numeric.Price{}, numeric.Price{}
	}
	if bit.IsPredictionMarket || bit.HasSettlement() {
		return false, types.PriceFeed{}, nil, 0, numeric.Price{}, numeric.Price{}, numeric.Price{}
	}
	if !b.Assets.FeedIsValid(sellAsset, now) {
		return false, types.PriceFeed{}, nil, 0, numeric.Price{}, numeric.Price{}, numeric.Price{}
	}
	feed := bit.CurrentFeed
	cmp := callorder.CallMatchPrice(feed, bit.Options.MarginCallFeeRatio)
	// newOrder.SellPrice is (sellAsset=MIA, recvAsset=backing); invert to
	// the (collateral, debt) polarity CallMatchPrice is kept in so the two
	// can be compared without a mismatched-pair panic.
	newSellInverted := newOrder.SellPrice.Invert()
	if cmp.Less(newSellInverted) {
		return false, types.PriceFeed{}, nil, 0, numeric.Price{}, numeric.Price{}, numeric.Price{}
	}
	cpp := callorder.CallPaysPrice(feed)
	return true, feed, bit.Options.MarginCallFeeRatio, bit.Options.MCR, bit.CurrentMaintenanceCollateralization, cmp, cpp
}

// matchLimitsAgainst walks restingOpposing from its best price, matching
// taker against each entry that satisfies accept, until taker is
// exhausted or no entry satisfies accept.
func (b *Book) matchLimitsAgainst(taker *types.LimitOrder, restingOpposing *store.Index[*types.LimitOrder], accept func(*types.LimitOrder) bool) {
	for {
		if taker.ForSale.IsZero() {
			return
		}
		best, ok := restingOpposing.Min()
		if !ok || !accept(best) {
			return
		}
		matchPrice := best.SellPrice
		result := b.MatchLimits(taker, best, matchPrice)
		if result&2 != 0 {
			restingOpposing.Delete(best)
		}
		if result&1 != 0 {
			return
		}
	}
}

// MatchLimits implements match(new_limit, existing_limit, match_price)
// from spec.md §4.5, returning the {0,1,2,3} fill bitmask (1 = taker
// filled, 2 = maker filled).
func (b *Book) MatchLimits(taker, maker *types.LimitOrder, matchPrice numeric.Price) int {
	takerForSale := numeric.Amount{Value: taker.ForSale, Asset: taker.BaseAsset()}
	makerForSale := numeric.Amount{Value: maker.ForSale, Asset: maker.BaseAsset()}

	var takerReceives, makerReceives numeric.Amount
	if takerForSale.Value.LTE(matchPrice.Mul(makerForSale).Value) {
		takerReceives = matchPrice.Mul(takerForSale)
		if takerReceives.Value.IsZero() {
			b.fillLimitOrder(taker, numeric.ZeroAmount(taker.QuoteAsset()), takerReceives, true, matchPrice, false)
			return 1
		}
		makerReceives = matchPrice.MulRoundUp(takerReceives)
	} else {
		makerReceives = matchPrice.Mul(makerForSale)
		takerReceives = matchPrice.MulRoundUp(makerReceives)
	}
	takerPays := makerReceives
	makerPays := takerReceives

	takerFilled := b.fillLimitOrder(taker, takerPays, takerReceives, true, matchPrice, false)
	makerFilled := b.fillLimitOrder(maker, makerPays, makerReceives, true, matchPrice, true)

	result := 0
	if takerFilled {
		result |= 1
	}
	if makerFilled {
		result |= 2
	}
	if result == 0 {
		b.log.Panic("matching: match consumed neither side")
	}
	return result
}

// fillLimitOrder implements fill_limit_order from spec.md §4.5.
func (b *Book) fillLimitOrder(order *types.LimitOrder, pays, receives numeric.Amount, cullIfSmall bool, fillPrice numeric.Price, isMaker bool) bool {
	recvAsset, _ := b.Assets.Record(receives.Asset)
	role := fee.Taker
	if isMaker {
		role = fee.Maker
	}
	var issuerFee numeric.Amount
	if recvAsset != nil {
		issuerFee = fee.MarketFee(recvAsset, receives, role)
		if dyn, ok := b.Assets.Dynamic(receives.Asset); ok {
			dyn.AccumulatedFees = dyn.AccumulatedFees.Add(issuerFee.Value)
		}
	} else {
		issuerFee = numeric.ZeroAmount(receives.Asset)
	}

	if isMaker {
		b.applyMakerDiscount(order)
	}
	b.settleDeferredFees(order)

	b.emit(VirtualOp{Kind: "fill_order", OrderID: order.ID, Pays: pays, Receives: receives, Fee: issuerFee, IsMaker: isMaker})

	if pays.Value.EQ(order.ForSale) {
		return true
	}
	order.ForSale = order.ForSale.Sub(pays.Value)
	if cullIfSmall && isDust(order) {
		return true
	}
	return false
}

// applyMakerDiscount implements fill_limit_order step 3 (BSIP-85): on a
// maker's first fill, calculate_percent(discount) of the deferred fee is
// split off. When the order paid its fee in core, that share is credited
// to the seller's cashback. When it paid in another asset, the share of
// the paid fee is credited to that asset's accumulated_fees, not to the
// seller, and the analogous share of the core deferred_fee is returned
// to that paid asset's fee pool. Only the first fill ever sees non-zero deferred
// fees (settleDeferredFees always zeroes both afterward), so no extra
// "already discounted" bookkeeping is needed.
func (b *Book) applyMakerDiscount(order *types.LimitOrder) {
	pct := b.Fees.MakerFeeDiscountPercent
	if pct == 0 {
		return
	}

	if !order.DeferredPaidFee.Value.IsZero() {
		refund, toPool := fee.MakerDiscount(order.DeferredPaidFee.Value, pct)
		if refund.IsZero() {
			return
		}
		order.DeferredPaidFee.Value = toPool
		if dyn, ok := b.Assets.Dynamic(order.DeferredPaidFee.Asset); ok {
			dyn.AccumulatedFees = dyn.AccumulatedFees.Add(refund)
		}
		poolShare, remainder := fee.MakerDiscount(order.DeferredFee, pct)
		if !poolShare.IsZero() {
			order.DeferredFee = remainder
			if dyn, ok := b.Assets.Dynamic(order.DeferredPaidFee.Asset); ok {
				dyn.FeePool = dyn.FeePool.Add(poolShare)
			}
		}
		return
	}

	if order.DeferredFee.IsZero() {
		return
	}
	refund, remainder := fee.MakerDiscount(order.DeferredFee, pct)
	if refund.IsZero() {
		return
	}
	order.DeferredFee = remainder
	if acct := b.accountStats(order.Seller); acct != nil {
		acct.PayFee(refund)
	}
}

// settleDeferredFees implements fill_limit_order step 4: whatever is left
// of the order's deferred fees after applyMakerDiscount is disposed of on
// every fill (maker or taker) so value is never simply dropped. The
// remaining deferred_paid_fee is deposited into its own asset's
// accumulated_fees (the asset that fronted it, grounded on the original
// fill_limit_order rather than spec.md's recv_asset paraphrase, which
// would misattribute the fee whenever recv_asset differs from the paid
// asset); the remaining core deferred_fee goes to the seller's cashback.
func (b *Book) settleDeferredFees(order *types.LimitOrder) {
	if !order.DeferredPaidFee.Value.IsZero() {
		if dyn, ok := b.Assets.Dynamic(order.DeferredPaidFee.Asset); ok {
			dyn.AccumulatedFees = dyn.AccumulatedFees.Add(order.DeferredPaidFee.Value)
		}
	}
	if !order.DeferredFee.IsZero() {
		if acct := b.accountStats(order.Seller); acct != nil {
			acct.PayFee(order.DeferredFee)
		}
	}
	order.DeferredFee = numeric.Zero()
	order.DeferredPaidFee = numeric.ZeroAmount(order.DeferredPaidFee.Asset)
}

// CancelLimitOrder implements cancel_limit_order from spec.md §4.6,
// grounded on database::cancel_limit_order (db_market.cpp:155-246): when
// a virtual op is wanted, first tries to deduct a cancellation fee out of
// the order's deferred core fee, crediting it to the seller's own
// cashback (account_statistics_object::pay_fee folds in the referral
// split, which this engine simplifies to a direct credit, consistent
// with applyMakerDiscount's treatment of the analogous BSIP-85 refund)
// and proportionally splitting the deduction against any non-core fee
// actually paid at creation. Whatever deferred fee remains after that is
// then refunded: to the seller directly when it was paid in core, or to
// the paid asset's fee pool (the core remainder) plus straight back to
// the seller (the non-core remainder) otherwise.
func (b *Book) CancelLimitOrder(order *types.LimitOrder, createVirtualOp bool, skipCancelFee bool) {
	refund := numeric.Amount{Value: order.ForSale, Asset: order.BaseAsset()}

	deferredFee := order.DeferredFee
	deferredPaidFee := order.DeferredPaidFee

	cancelFee := numeric.Zero()
	cancelFeeAsset := numeric.AssetID("CORE")

	if createVirtualOp && !skipCancelFee && b.Fees.CancelFeeCore != nil && !deferredFee.IsZero() {
		coreCancelFee := numeric.Min(b.Fees.CancelFeeCore, deferredFee)
		if !coreCancelFee.IsZero() {
			if acct := b.accountStats(order.Seller); acct != nil {
				acct.PayFee(coreCancelFee)
			}
			if deferredPaidFee.Value.IsZero() {
				cancelFee = coreCancelFee
				cancelFeeAsset = "CORE"
			} else {
				// to_deduct = ceil(paid_fee * core_cancel_fee / deferred_fee), against
				// the pre-deduction deferred_fee.
				toDeduct := deferredPaidFee.Value.MulDivRoundUp(coreCancelFee, deferredFee)
				if toDeduct.GT(deferredPaidFee.Value) {
					toDeduct = deferredPaidFee.Value
				}
				if dyn, ok := b.Assets.Dynamic(deferredPaidFee.Asset); ok {
					dyn.AccumulatedFees = dyn.AccumulatedFees.Add(toDeduct)
				}
				deferredPaidFee.Value = deferredPaidFee.Value.Sub(toDeduct)
				cancelFee = toDeduct
				cancelFeeAsset = deferredPaidFee.Asset
			}
			deferredFee = deferredFee.Sub(coreCancelFee)
		}
	}

	feeRefund := numeric.ZeroAmount("CORE")
	if deferredPaidFee.Value.IsZero() {
		if !deferredFee.IsZero() {
			if acct := b.accountStats(order.Seller); acct != nil {
				acct.PayFee(deferredFee)
			}
			feeRefund = numeric.Amount{Value: deferredFee, Asset: "CORE"}
		}
	} else {
		feeRefund = deferredPaidFee
		if !deferredFee.IsZero() {
			if dyn, ok := b.Assets.Dynamic(deferredPaidFee.Asset); ok {
				dyn.FeePool = dyn.FeePool.Add(deferredFee)
			}
		}
	}

	order.DeferredFee = numeric.Zero()
	order.DeferredPaidFee = numeric.ZeroAmount(order.DeferredPaidFee.Asset)

	if createVirtualOp {
		b.emit(VirtualOp{Kind: "limit_order_cancel", OrderID: order.ID, Pays: refund, Receives: feeRefund, Fee: numeric.Amount{Value: cancelFee, Asset: cancelFeeAsset}})
	}
}
