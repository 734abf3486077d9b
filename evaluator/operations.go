package evaluator

import (
	"time"

	"github.com/abitmore/revpop-core/callorder"
	"github.com/abitmore/revpop-core/matching"
	"github.com/abitmore/revpop-core/numeric"
	"github.com/abitmore/revpop-core/store"
	"github.com/abitmore/revpop-core/types"
	"github.com/pkg/errors"
)

// Operation is a tagged union over every inbound operation spec.md §6
// names: exactly one field is populated per call to Dispatch, matching
// the "sum type over virtual dispatch" design note.
type Operation struct {
	LimitOrderCreate         *LimitOrderCreate
	LimitOrderCancel         *LimitOrderCancel
	CallOrderUpdate          *CallOrderUpdate
	AssetSettle              *AssetSettleOp
	AssetGlobalSettle        *AssetGlobalSettleOp
	AssetPublishFeed         *AssetPublishFeedOp
	AssetClaimFees           *AssetClaimFeesOp
	AssetUpdateBitasset      *AssetUpdateBitassetOp
	AssetUpdateFeedProducers *AssetUpdateFeedProducersOp
}

type LimitOrderCreate struct {
	Seller        types.AccountID
	AmountToSell  numeric.Amount
	MinToReceive  numeric.Amount
	Expiration    time.Time
	FillOrKill    bool
	DeferredFee   *numeric.Uint
}

type LimitOrderCancel struct {
	Order store.ObjectID
}

type CallOrderUpdate struct {
	Borrower          types.AccountID
	DeltaCollateral   numeric.Amount
	DeltaDebt         numeric.Amount
	TargetCR          *uint16
}

type AssetSettleOp struct {
	Account types.AccountID
	Amount  numeric.Amount
}

type AssetGlobalSettleOp struct {
	Issuer         types.AccountID
	Asset          numeric.AssetID
	SettlementPrice numeric.Price
}

type AssetPublishFeedOp struct {
	Publisher types.AccountID
	Asset     numeric.AssetID
	Feed      types.PriceFeed
}

type AssetClaimFeesOp struct {
	Issuer         types.AccountID
	Amount         numeric.Amount
	ClaimFromAsset *numeric.AssetID
}

// Dispatch is the evaluator's single entry point, grounded on
// core/coreapi's request-routing shape: switch over the populated field
// and invoke the matching evaluator function. Returns the virtual ops
// emitted by the operation (drained from the shared broker buffer) or
// an error that has already rolled back every mutation performed.
func (s *State) Dispatch(op Operation) (result []matching.VirtualOp, err error) {
	undo := store.NewSession()
	defer func() {
		if r := recover(); r != nil {
			undo.Rollback()
			err = errors.Wrapf(types.ErrInternal, "evaluator: %v", r)
		}
	}()

	switch {
	case op.LimitOrderCreate != nil:
		err = s.evalLimitOrderCreate(undo, op.LimitOrderCreate)
	case op.LimitOrderCancel != nil:
		err = s.evalLimitOrderCancel(undo, op.LimitOrderCancel)
	case op.CallOrderUpdate != nil:
		err = s.evalCallOrderUpdate(undo, op.CallOrderUpdate)
	case op.AssetSettle != nil:
		err = s.evalAssetSettle(undo, op.AssetSettle)
	case op.AssetGlobalSettle != nil:
		err = s.evalAssetGlobalSettle(undo, op.AssetGlobalSettle)
	case op.AssetPublishFeed != nil:
		err = s.evalAssetPublishFeed(undo, op.AssetPublishFeed)
	case op.AssetClaimFees != nil:
		err = s.evalAssetClaimFees(undo, op.AssetClaimFees)
	case op.AssetUpdateBitasset != nil:
		err = s.evalAssetUpdateBitasset(undo, op.AssetUpdateBitasset)
	case op.AssetUpdateFeedProducers != nil:
		err = s.evalAssetUpdateFeedProducers(undo, op.AssetUpdateFeedProducers)
	default:
		err = errors.Wrap(types.ErrValidation, "evaluator: empty operation")
	}

	if err != nil {
		undo.Rollback()
		return nil, err
	}
	undo.Commit()
	return s.Broker.Drain(), nil
}

func (s *State) evalLimitOrderCreate(undo *store.Session, op *LimitOrderCreate) error {
	if op.AmountToSell.Value.IsZero() {
		return errors.Wrap(types.ErrValidation, "amount_to_sell is zero")
	}
	price := numeric.Price{Base: op.AmountToSell, Quote: op.MinToReceive}
	if price.IsNull() {
		return errors.Wrap(types.ErrValidation, "null price")
	}

	order := &types.LimitOrder{
		ID:          s.IDs.Next(store.LimitOrderObjectType),
		Seller:      op.Seller,
		ForSale:     op.AmountToSell.Value.Clone(),
		SellPrice:   price,
		DeferredFee: orZero(op.DeferredFee),
		DeferredPaidFee: numeric.ZeroAmount("CORE"),
		Expiration:  op.Expiration,
	}

	acct := s.account(op.Seller)
	if op.AmountToSell.Asset == "CORE" {
		acct.AddCoreInOrders(order.ForSale, false)
		undo.Record(func() { acct.AddCoreInOrders(order.ForSale, true) })
	}

	bk := s.book(op.AmountToSell.Asset, op.MinToReceive.Asset)
	sameSide, opposing := sidesFor(bk, op.AmountToSell.Asset)

	filled := bk.ApplyOrder(order, sameSide, opposing, s.Now())
	s.collect(bk)
	if !filled {
		if op.FillOrKill {
			return errors.Wrap(types.ErrPrecondition, "fill_or_kill order did not fully fill")
		}
		sameSide.Insert(order)
		undo.Record(func() { sameSide.Delete(order) })
	}
	return nil
}

// sidesFor returns (restingSameSide, restingOpposing) for an order
// selling sellAsset against bk, matching Book.Asks/Bids conventions:
// Asks hold "sell base for quote", Bids hold "sell quote for base".
func sidesFor(bk *matching.Book, sellAsset numeric.AssetID) (same, opposing *store.Index[*types.LimitOrder]) {
	if isBaseOf(bk, sellAsset) {
		return bk.Asks, bk.Bids
	}
	return bk.Bids, bk.Asks
}

func isBaseOf(bk *matching.Book, asset numeric.AssetID) bool {
	if best, ok := bk.Asks.Min(); ok {
		return best.BaseAsset() == asset
	}
	if best, ok := bk.Bids.Min(); ok {
		return best.QuoteAsset() == asset
	}
	return true // empty book: either convention is consistent on first insert
}

func orZero(u *numeric.Uint) *numeric.Uint {
	if u == nil {
		return numeric.Zero()
	}
	return u
}

func (s *State) evalLimitOrderCancel(undo *store.Session, op *LimitOrderCancel) error {
	for _, bk := range s.Books {
		for _, side := range []*store.Index[*types.LimitOrder]{bk.Asks, bk.Bids} {
			var found *types.LimitOrder
			side.Ascend(func(o *types.LimitOrder) bool {
				if o.ID == op.Order {
					found = o
					return false
				}
				return true
			})
			if found != nil {
				acct := s.account(found.Seller)
				if found.BaseAsset() == "CORE" {
					acct.AddCoreInOrders(found.ForSale, true)
				}
				bk.CancelLimitOrder(found, false, false)
				s.collect(bk)
				side.Delete(found)
				return nil
			}
		}
	}
	return errors.Wrap(types.ErrPrecondition, "order not found")
}

func (s *State) evalCallOrderUpdate(undo *store.Session, op *CallOrderUpdate) error {
	if op.DeltaDebt.Value.IsZero() && op.DeltaCollateral.Value.IsZero() {
		return errors.Wrap(types.ErrValidation, "no-op call_order_update")
	}
	debtAsset := op.DeltaDebt.Asset
	bit, ok := s.Assets.BitAsset(debtAsset)
	if !ok {
		return errors.Wrap(types.ErrValidation, "not a market-issued asset")
	}
	if bit.HasSettlement() {
		return errors.Wrap(types.ErrPrecondition, "asset has an active global settlement")
	}

	bk := s.book(bit.Options.ShortBackingAssetID, debtAsset)

	var existing *types.CallOrder
	bk.Calls.Ascend(func(c *types.CallOrder) bool {
		if c.Borrower == op.Borrower && c.DebtAsset == debtAsset {
			existing = c
			return false
		}
		return true
	})

	var call *types.CallOrder
	if existing != nil {
		bk.Calls.Delete(existing)
		existing.Collateral = existing.Collateral.Add(op.DeltaCollateral.Value)
		existing.Debt = existing.Debt.Add(op.DeltaDebt.Value)
		existing.TargetCR = op.TargetCR
		call = existing
	} else {
		call = &types.CallOrder{
			ID:              s.IDs.Next(store.CallOrderObjectType),
			Borrower:        op.Borrower,
			Collateral:      op.DeltaCollateral.Value.Clone(),
			Debt:            op.DeltaDebt.Value.Clone(),
			CollateralAsset: bit.Options.ShortBackingAssetID,
			DebtAsset:       debtAsset,
			TargetCR:        op.TargetCR,
		}
	}
	if call.Debt.IsZero() || call.Collateral.IsZero() {
		return errors.Wrap(types.ErrPrecondition, "debt and collateral must both be positive")
	}
	bk.Calls.Insert(call)
	undo.Record(func() { bk.Calls.Delete(call) })

	if dyn, ok := s.Assets.Dynamic(debtAsset); ok {
		dyn.CurrentSupply = dyn.CurrentSupply.Add(op.DeltaDebt.Value)
	}

	if callorder.Callable(call, bit.CurrentMaintenanceCollateralization) {
		bk.CheckCallOrders(bk.Bids, bit.CurrentFeed, bit.Options.MCR, bit.Options.MarginCallFeeRatio, bit.CurrentMaintenanceCollateralization, bk.AllowSameSideBlackSwan, func(settlementPrice numeric.Price) {
			_ = s.Settle.GloballySettleAsset(debtAsset, settlementPrice, bk.Calls)
		})
		s.collect(bk)
	}
	return nil
}

func (s *State) evalAssetSettle(undo *store.Session, op *AssetSettleOp) error {
	bit, ok := s.Assets.BitAsset(op.Amount.Asset)
	if !ok {
		return errors.Wrap(types.ErrValidation, "not a market-issued asset")
	}
	issuerRecord, _ := s.Assets.Record(op.Amount.Asset)

	if bit.HasSettlement() {
		res, err := s.Settle.AssetSettlePostGlobal(op.Amount.Asset, op.Amount.Value, issuerRecord)
		if err != nil {
			return errors.Wrap(types.ErrPrecondition, err.Error())
		}
		_ = res
		return nil
	}

	fs := s.Settle.CreateForceSettlement(s.IDs.Next(store.ForceSettlementObjectType), op.Account, op.Amount, bit.Options.ForceSettlementDelay, s.Now())
	s.Settles[op.Amount.Asset] = append(s.Settles[op.Amount.Asset], fs)
	undo.Record(func() {
		list := s.Settles[op.Amount.Asset]
		s.Settles[op.Amount.Asset] = list[:len(list)-1]
	})
	return nil
}

func (s *State) evalAssetGlobalSettle(undo *store.Session, op *AssetGlobalSettleOp) error {
	bit, ok := s.Assets.BitAsset(op.Asset)
	if !ok {
		return errors.Wrap(types.ErrValidation, "not a market-issued asset")
	}
	backing := bit.Options.ShortBackingAssetID
	bk := s.book(backing, op.Asset)
	if err := s.Settle.GloballySettleAsset(op.Asset, op.SettlementPrice, bk.Calls); err != nil {
		return errors.Wrap(types.ErrPrecondition, err.Error())
	}
	return nil
}

func (s *State) evalAssetPublishFeed(undo *store.Session, op *AssetPublishFeedOp) error {
	_, ok := s.Assets.BitAsset(op.Asset)
	if !ok {
		return errors.Wrap(types.ErrValidation, "not a market-issued asset")
	}
	if !s.Assets.PublishFeed(op.Asset, op.Publisher, op.Feed, s.Now()) {
		return errors.Wrap(types.ErrValidation, "account is not a feed producer for this asset")
	}

	s.maybeRevive(op.Asset)
	s.recheckCallOrders(op.Asset)
	return nil
}

type AssetUpdateBitassetOp struct {
	Issuer  types.AccountID
	Asset   numeric.AssetID
	Options types.BitAssetOptions
}

// evalAssetUpdateBitasset implements asset_update_bitasset from spec.md
// §6, grounded on asset_update_bitasset_evaluator (asset_evaluator.cpp):
// the issuer may revise a bitasset's MCR/MSSR/ICR/MCFR/feed lifetime/
// force-settlement delay/backing asset so long as no settlement is
// active. Changing the backing asset invalidates every existing feed
// (their settlement_price is denominated against the old backing asset),
// so feeds are cleared and the median is recomputed from nothing.
func (s *State) evalAssetUpdateBitasset(undo *store.Session, op *AssetUpdateBitassetOp) error {
	rec, ok := s.Assets.Record(op.Asset)
	if !ok || !rec.IsMarketIssued() {
		return errors.Wrap(types.ErrValidation, "not a market-issued asset")
	}
	if rec.Issuer != op.Issuer {
		return errors.Wrap(types.ErrValidation, "only the asset issuer may update bitasset options")
	}
	bit, ok := s.Assets.BitAsset(op.Asset)
	if !ok {
		return errors.Wrap(types.ErrValidation, "not a market-issued asset")
	}
	if bit.HasSettlement() {
		return errors.Wrap(types.ErrPrecondition, "cannot update a bitasset after a global settlement has executed")
	}

	backingChanged := op.Options.ShortBackingAssetID != bit.Options.ShortBackingAssetID
	bit.Options = op.Options
	if backingChanged {
		bit.Feeds = map[types.AccountID]types.FeedEntry{}
	}
	s.Assets.UpdateMedianFeed(op.Asset, s.Now())

	s.maybeRevive(op.Asset)
	s.recheckCallOrders(op.Asset)
	return nil
}

type AssetUpdateFeedProducersOp struct {
	Issuer    types.AccountID
	Asset     numeric.AssetID
	Producers []types.AccountID
}

// evalAssetUpdateFeedProducers implements asset_update_feed_producers,
// grounded on asset_update_feed_producers_evaluator (asset_evaluator.cpp):
// replaces the feed-producer whitelist, pruning feeds from accounts no
// longer in it, and always rechecks call orders afterward since the
// resulting median may shift.
func (s *State) evalAssetUpdateFeedProducers(undo *store.Session, op *AssetUpdateFeedProducersOp) error {
	rec, ok := s.Assets.Record(op.Asset)
	if !ok || !rec.IsMarketIssued() {
		return errors.Wrap(types.ErrValidation, "not a market-issued asset")
	}
	if rec.Issuer != op.Issuer {
		return errors.Wrap(types.ErrValidation, "only the asset issuer may update feed producers")
	}
	if _, ok := s.Assets.BitAsset(op.Asset); !ok {
		return errors.Wrap(types.ErrValidation, "not a market-issued asset")
	}
	if rec.Options.Flags.Has(types.WitnessFed) || rec.Options.Flags.Has(types.CommitteeFed) {
		return errors.Wrap(types.ErrValidation, "cannot set feed producers on a witness- or committee-fed asset")
	}

	s.Assets.SetFeedProducers(op.Asset, op.Producers, s.Now())

	s.maybeRevive(op.Asset)
	s.recheckCallOrders(op.Asset)
	return nil
}

// maybeRevive attempts ReviveBitasset after a feed or bitasset-options
// change, per spec.md §6's "may revive the asset if conditions met".
// Revival failing (conditions not yet met) is not itself an error for
// the triggering operation, so the result is discarded.
func (s *State) maybeRevive(assetID numeric.AssetID) {
	bit, ok := s.Assets.BitAsset(assetID)
	if !ok || !bit.HasSettlement() {
		return
	}
	_ = s.Settle.ReviveBitasset(assetID, s.Now())
}

// recheckCallOrders re-runs check_call_orders for a bitasset's market
// after a feed/options change, matching asset_update_bitasset_evaluator
// and asset_update_feed_producers_evaluator's unconditional call to
// check_call_orders in do_apply.
func (s *State) recheckCallOrders(assetID numeric.AssetID) {
	bit, ok := s.Assets.BitAsset(assetID)
	if !ok || bit.HasSettlement() {
		return
	}
	bk := s.book(bit.Options.ShortBackingAssetID, assetID)
	bk.CheckCallOrders(bk.Bids, bit.CurrentFeed, bit.Options.MCR, bit.Options.MarginCallFeeRatio, bit.CurrentMaintenanceCollateralization, bk.AllowSameSideBlackSwan, func(settlementPrice numeric.Price) {
		_ = s.Settle.GloballySettleAsset(assetID, settlementPrice, bk.Calls)
	})
	s.collect(bk)
}

func (s *State) evalAssetClaimFees(undo *store.Session, op *AssetClaimFeesOp) error {
	dyn, ok := s.Assets.Dynamic(op.Amount.Asset)
	if !ok {
		return errors.Wrap(types.ErrValidation, "unknown asset")
	}
	if op.ClaimFromAsset != nil {
		if dyn.AccumulatedCollateralFees.LT(op.Amount.Value) {
			return errors.Wrap(types.ErrPrecondition, "insufficient accumulated collateral fees")
		}
		dyn.AccumulatedCollateralFees = dyn.AccumulatedCollateralFees.Sub(op.Amount.Value)
		undo.Record(func() { dyn.AccumulatedCollateralFees = dyn.AccumulatedCollateralFees.Add(op.Amount.Value) })
		return nil
	}
	if dyn.AccumulatedFees.LT(op.Amount.Value) {
		return errors.Wrap(types.ErrPrecondition, "insufficient accumulated fees")
	}
	dyn.AccumulatedFees = dyn.AccumulatedFees.Sub(op.Amount.Value)
	undo.Record(func() { dyn.AccumulatedFees = dyn.AccumulatedFees.Add(op.Amount.Value) })
	return nil
}
