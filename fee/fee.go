// Package fee computes and routes trading fees: market fees with
// maker/taker discounts, referral splits, margin-call fees, force-settle
// fees, and deferred order-creation fee refunds.
package fee

import (
	"github.com/abitmore/revpop-core/numeric"
	"github.com/abitmore/revpop-core/types"
)

// Schedule aggregates the fee parameters an evaluator or matching call
// needs, mirroring the shape of the teacher's FeeFactors/Fee result
// types: one struct carrying every knob the computation below reads.
type Schedule struct {
	MarketFeeNetworkPercent uint16 // bps of market fee redirected to network vesting
	MakerFeeDiscountPercent uint16 // BSIP-85, bps of deferred_fee refunded to a maker on first fill
	CancelFeeCore           *numeric.Uint // core cost of a limit_order_cancel virtual op, per fee schedule
}

// Role distinguishes the maker (resting order) from the taker (new
// arrival), since market_fee_percent and taker_fee_percent may differ.
type Role int

const (
	Maker Role = iota
	Taker
)

// MarketFee computes the fee owed on a fill of `recv` at the asset's
// configured rate for role, per spec.md §4.3 step 1-3.
func MarketFee(asset *types.AssetRecord, recv numeric.Amount, role Role) numeric.Amount {
	if !asset.Options.Flags.Has(types.ChargeMarketFee) {
		return numeric.ZeroAmount(recv.Asset)
	}
	pct := asset.Options.MarketFeePercent
	if role == Taker && asset.Options.TakerFeePercent != nil {
		pct = *asset.Options.TakerFeePercent
	}
	computed, err := numeric.CalculatePercent(recv.Value, pct)
	if err != nil {
		computed = numeric.NewUint(numeric.MaxShareSupply)
	}
	fee := computed
	if asset.Options.MaxMarketFee != nil {
		fee = numeric.Min(fee, asset.Options.MaxMarketFee)
	}
	return numeric.Amount{Value: fee, Asset: recv.Asset}
}

// RouteResult breaks a computed market fee into its destinations, per
// spec.md §4.3's "no creation, no destruction" routing invariant.
type RouteResult struct {
	Network          numeric.Amount
	Referrer         numeric.Amount
	Registrar        numeric.Amount
	AccumulatedFees  numeric.Amount // remainder credited to the asset's accumulated_fees
}

// Route splits a market fee among the network vesting bucket, the
// referral program, and the asset's accumulated fees, per spec.md §4.3
// steps 1-3. seller/seller registrar-or-referrer authorization checks
// against recv_asset are a transaction-envelope concern out of scope
// here (spec.md §1); callers that need to forfeit a recipient's slice
// do so by discarding the corresponding RouteResult field and adding it
// back to AccumulatedFees themselves.
func Route(asset *types.AssetRecord, fee numeric.Amount, seller *types.AccountStats, sched Schedule) RouteResult {
	remaining := fee

	var network numeric.Amount
	if sched.MarketFeeNetworkPercent > 0 {
		network, _ = safePercent(remaining, sched.MarketFeeNetworkPercent)
		remaining = remaining.Sub(network)
	} else {
		network = numeric.ZeroAmount(fee.Asset)
	}

	var referrerCut, registrarCut numeric.Amount
	if seller != nil && asset.Options.RewardPercent != nil && whitelistAllows(asset, seller) {
		reward, _ := safePercent(remaining, *asset.Options.RewardPercent)
		referrerCut, _ = safePercent(reward, seller.ReferrerRewardsPercentage)
		registrarCut = reward.Sub(referrerCut)
		remaining = remaining.Sub(reward)
	} else {
		referrerCut = numeric.ZeroAmount(fee.Asset)
		registrarCut = numeric.ZeroAmount(fee.Asset)
	}

	return RouteResult{
		Network:         network,
		Referrer:        referrerCut,
		Registrar:       registrarCut,
		AccumulatedFees: remaining,
	}
}

func whitelistAllows(asset *types.AssetRecord, seller *types.AccountStats) bool {
	if len(asset.Options.WhitelistMarketFeeSharing) == 0 {
		return true
	}
	for _, a := range asset.Options.WhitelistMarketFeeSharing {
		if a == seller.Registrar {
			return true
		}
	}
	return false
}

func safePercent(amt numeric.Amount, bps uint16) (numeric.Amount, error) {
	v, err := numeric.CalculatePercent(amt.Value, bps)
	if err != nil {
		return numeric.ZeroAmount(amt.Asset), err
	}
	return numeric.Amount{Value: v, Asset: amt.Asset}, nil
}

// RedirectTemp maps the sentinel temp account to the committee account,
// per spec.md §4.3 step 2 / §6's numeric-constants note.
func RedirectTemp(account types.AccountID) types.AccountID {
	if account == types.TempAccount {
		return types.CommitteeAccount
	}
	return account
}

// ForceSettleFee computes the issuer's cut of a force-settlement's
// collateral proceeds, per spec.md §4.3.
func ForceSettleFee(bit *types.BitAssetData, collatReceives numeric.Amount) numeric.Amount {
	if bit.Options.ForceSettleFeePercent == nil {
		return numeric.ZeroAmount(collatReceives.Asset)
	}
	fee, err := numeric.CalculatePercent(collatReceives.Value, *bit.Options.ForceSettleFeePercent)
	if err != nil {
		return numeric.ZeroAmount(collatReceives.Asset)
	}
	return numeric.Amount{Value: fee, Asset: collatReceives.Asset}
}

// MarginCallFee is the non-negative surplus a margin call pays beyond
// what the limit side receives, per spec.md §4.3/§4.5 and BSIP-74.
func MarginCallFee(callPays, bidReceives numeric.Amount) numeric.Amount {
	if callPays.Value.LT(bidReceives.Value) {
		panic("fee: margin call fee is negative, invariant violated")
	}
	return callPays.Sub(bidReceives)
}

// MakerDiscount computes the maker-side refund of a deferred
// order-creation fee on first fill, per spec.md §4.5 step 3 (BSIP-85).
// It returns the discounted share (calculate_percent of deferred at
// discountPercent) and the remainder, deferred minus that share.
func MakerDiscount(deferred *numeric.Uint, discountPercent uint16) (refund, toPool *numeric.Uint) {
	if discountPercent == 0 || deferred.IsZero() {
		return numeric.Zero(), deferred
	}
	refund, err := numeric.CalculatePercent(deferred, discountPercent)
	if err != nil {
		return numeric.Zero(), deferred
	}
	return refund, deferred.Sub(refund)
}
