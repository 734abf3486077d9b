package evaluator

import (
	"testing"
	"time"

	"github.com/abitmore/revpop-core/assets"
	"github.com/abitmore/revpop-core/fee"
	"github.com/abitmore/revpop-core/logging"
	"github.com/abitmore/revpop-core/numeric"
	"github.com/abitmore/revpop-core/store"
	"github.com/abitmore/revpop-core/types"
	"github.com/stretchr/testify/require"
)

func newTestState() *State {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return NewState(logging.NewTestLogger(), assets.NewRegistry(), fee.Schedule{}, func() time.Time { return now })
}

func TestLimitOrderCreateRestsWhenNoMatch(t *testing.T) {
	s := newTestState()
	ops, err := s.Dispatch(Operation{LimitOrderCreate: &LimitOrderCreate{
		Seller:       "alice",
		AmountToSell: numeric.NewAmount(100, "X"),
		MinToReceive: numeric.NewAmount(300, "Y"),
	}})
	require.NoError(t, err)
	require.Empty(t, ops)

	bk := s.book("X", "Y")
	_, ok := bk.Asks.Min()
	require.True(t, ok, "order should rest on the book")
}

// Scenario 1 from spec.md §8, driven end-to-end through Dispatch: order A
// sells 100 X for 300 Y; order B sells 600 Y for 200 X arrives and
// crosses with A at A's price.
func TestScenario1SimpleLimitMatch(t *testing.T) {
	s := newTestState()

	_, err := s.Dispatch(Operation{LimitOrderCreate: &LimitOrderCreate{
		Seller:       "alice",
		AmountToSell: numeric.NewAmount(100, "X"),
		MinToReceive: numeric.NewAmount(300, "Y"),
	}})
	require.NoError(t, err)

	ops, err := s.Dispatch(Operation{LimitOrderCreate: &LimitOrderCreate{
		Seller:       "bob",
		AmountToSell: numeric.NewAmount(600, "Y"),
		MinToReceive: numeric.NewAmount(200, "X"),
	}})
	require.NoError(t, err)
	require.NotEmpty(t, ops, "the crossing order should emit fill ops")

	bk := s.book("X", "Y")
	_, aliceStillResting := bk.Asks.Min()
	require.False(t, aliceStillResting, "alice's order should be fully filled and removed")

	bobOrder, ok := bk.Bids.Min()
	require.True(t, ok, "bob should have a resting remainder")
	require.Equal(t, uint64(300), bobOrder.ForSale.Uint64())
}

func TestLimitOrderCreateRejectsZeroAmount(t *testing.T) {
	s := newTestState()
	_, err := s.Dispatch(Operation{LimitOrderCreate: &LimitOrderCreate{
		Seller:       "alice",
		AmountToSell: numeric.ZeroAmount("X"),
		MinToReceive: numeric.NewAmount(300, "Y"),
	}})
	require.ErrorIs(t, err, types.ErrValidation)
}

func TestLimitOrderCreateFillOrKillRollsBackOnNoMatch(t *testing.T) {
	s := newTestState()
	_, err := s.Dispatch(Operation{LimitOrderCreate: &LimitOrderCreate{
		Seller:       "alice",
		AmountToSell: numeric.NewAmount(100, "X"),
		MinToReceive: numeric.NewAmount(300, "Y"),
		FillOrKill:   true,
	}})
	require.ErrorIs(t, err, types.ErrPrecondition)

	bk := s.book("X", "Y")
	_, ok := bk.Asks.Min()
	require.False(t, ok, "rejected fill-or-kill order must not rest on the book")
}

func TestLimitOrderCancelRefundsCoreInOrders(t *testing.T) {
	s := newTestState()
	_, err := s.Dispatch(Operation{LimitOrderCreate: &LimitOrderCreate{
		Seller:       "alice",
		AmountToSell: numeric.NewAmount(100, "CORE"),
		MinToReceive: numeric.NewAmount(300, "Y"),
	}})
	require.NoError(t, err)

	bk := s.book("CORE", "Y")
	order, ok := bk.Asks.Min()
	require.True(t, ok)

	acct := s.account("alice")
	require.Equal(t, uint64(100), acct.TotalCoreInOrders.Uint64())

	_, err = s.Dispatch(Operation{LimitOrderCancel: &LimitOrderCancel{Order: order.ID}})
	require.NoError(t, err)
	require.Zero(t, acct.TotalCoreInOrders.Uint64())
}

func newTestMIA(s *State, issuer types.AccountID) numeric.AssetID {
	bitID := store.NewObjectID(store.BitAssetDataObjectType, 1)
	rec := &types.AssetRecord{ID: store.NewObjectID(store.AssetObjectType, 1), Issuer: issuer, Symbol: "MIA", BitAssetDataID: &bitID}
	dyn := types.NewAssetDynamicData(store.NewObjectID(store.AssetObjectType, 2))
	bit := types.NewBitAssetData(bitID, types.BitAssetOptions{
		ShortBackingAssetID: "CORE",
		FeedLifetime:        time.Hour,
		MCR:                 17500,
		MSSR:                11000,
	})
	s.Assets.Put(rec, dyn, bit)
	return rec.AssetID()
}

func TestAssetUpdateBitassetRejectsNonIssuer(t *testing.T) {
	s := newTestState()
	asset := newTestMIA(s, "issuer1")

	_, err := s.Dispatch(Operation{AssetUpdateBitasset: &AssetUpdateBitassetOp{
		Issuer: "someone-else",
		Asset:  asset,
		Options: types.BitAssetOptions{
			ShortBackingAssetID: "CORE",
			MCR:                 20000,
		},
	}})
	require.ErrorIs(t, err, types.ErrValidation)
}

func TestAssetUpdateBitassetAppliesNewOptionsAndResetsFeedsOnBackingChange(t *testing.T) {
	s := newTestState()
	asset := newTestMIA(s, "issuer1")

	bit, _ := s.Assets.BitAsset(asset)
	bit.Feeds["witness1"] = types.FeedEntry{Feed: types.PriceFeed{
		SettlementPrice: numeric.Price{Base: numeric.NewAmount(10, "CORE"), Quote: numeric.NewAmount(1, "MIA")},
		MCR:             17500,
		MSSR:            11000,
	}}

	_, err := s.Dispatch(Operation{AssetUpdateBitasset: &AssetUpdateBitassetOp{
		Issuer: "issuer1",
		Asset:  asset,
		Options: types.BitAssetOptions{
			ShortBackingAssetID: "OTHER",
			MCR:                 20000,
		},
	}})
	require.NoError(t, err)

	bit, _ = s.Assets.BitAsset(asset)
	require.Equal(t, uint16(20000), bit.Options.MCR)
	require.Equal(t, numeric.AssetID("OTHER"), bit.Options.ShortBackingAssetID)
	require.Empty(t, bit.Feeds, "changing the backing asset must reset every existing feed")
}

func TestAssetUpdateFeedProducersRestrictsWhoMayPublish(t *testing.T) {
	s := newTestState()
	asset := newTestMIA(s, "issuer1")

	_, err := s.Dispatch(Operation{AssetUpdateFeedProducers: &AssetUpdateFeedProducersOp{
		Issuer:    "issuer1",
		Asset:     asset,
		Producers: []types.AccountID{"alice"},
	}})
	require.NoError(t, err)

	feed := types.PriceFeed{
		SettlementPrice: numeric.Price{Base: numeric.NewAmount(10, "CORE"), Quote: numeric.NewAmount(1, "MIA")},
		MCR:             17500,
		MSSR:            11000,
	}
	_, err = s.Dispatch(Operation{AssetPublishFeed: &AssetPublishFeedOp{Publisher: "bob", Asset: asset, Feed: feed}})
	require.ErrorIs(t, err, types.ErrValidation)

	_, err = s.Dispatch(Operation{AssetPublishFeed: &AssetPublishFeedOp{Publisher: "alice", Asset: asset, Feed: feed}})
	require.NoError(t, err)
}

// Exercises settlement.Engine.ReviveBitasset's wiring into Dispatch: once
// a bitasset has gone through global settlement, publishing a fresh feed
// should revive it automatically when revival's preconditions hold
// (spec.md §6: "may revive the asset if conditions met").
func TestAssetPublishFeedRevivesSettledBitassetWhenEligible(t *testing.T) {
	s := newTestState()
	asset := newTestMIA(s, "issuer1")

	settlementPrice := numeric.Price{Base: numeric.NewAmount(10, "CORE"), Quote: numeric.NewAmount(1, "MIA")}
	bk := s.book("CORE", asset)
	require.NoError(t, s.Settle.GloballySettleAsset(asset, settlementPrice, bk.Calls))

	bit, _ := s.Assets.BitAsset(asset)
	require.True(t, bit.HasSettlement())

	feed := types.PriceFeed{
		SettlementPrice: settlementPrice,
		MCR:             17500,
		MSSR:            11000,
	}
	_, err := s.Dispatch(Operation{AssetPublishFeed: &AssetPublishFeedOp{Publisher: "witness1", Asset: asset, Feed: feed}})
	require.NoError(t, err)

	bit, _ = s.Assets.BitAsset(asset)
	require.False(t, bit.HasSettlement(), "a valid feed with zero supply should have revived the bitasset")
}

// Exercises settlement.Engine.DrainQueue's wiring into
// State.ProcessForceSettlements (spec.md §5's deferred housekeeping pass).
func TestProcessForceSettlementsDrainsDueRequests(t *testing.T) {
	s := newTestState()
	asset := newTestMIA(s, "issuer1")

	bit, _ := s.Assets.BitAsset(asset)
	bit.CurrentFeed = types.PriceFeed{
		SettlementPrice: numeric.Price{Base: numeric.NewAmount(10, "CORE"), Quote: numeric.NewAmount(1, "MIA")},
		MCR:             17500,
		MSSR:            11000,
	}

	bk := s.book("CORE", asset)
	bk.Calls.Insert(&types.CallOrder{
		ID:              store.NewObjectID(store.CallOrderObjectType, 1),
		Borrower:        "bob",
		Collateral:      numeric.NewUint(1700),
		Debt:            numeric.NewUint(100),
		CollateralAsset: "CORE",
		DebtAsset:       asset,
	})

	_, err := s.Dispatch(Operation{AssetSettle: &AssetSettleOp{
		Account: "alice",
		Amount:  numeric.NewAmount(10, asset),
	}})
	require.NoError(t, err)
	require.Len(t, s.Settles[asset], 1)

	now := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC) // past the zero-valued ForceSettlementDelay
	ops := s.ProcessForceSettlements(now)
	require.NotEmpty(t, ops, "draining a due force-settlement should emit a fill_order virtual op")
	require.Empty(t, s.Settles[asset], "the drained request should be removed from the queue")
}
