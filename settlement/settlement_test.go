package settlement

import (
	"testing"
	"time"

	"github.com/abitmore/revpop-core/assets"
	"github.com/abitmore/revpop-core/logging"
	"github.com/abitmore/revpop-core/matching"
	"github.com/abitmore/revpop-core/numeric"
	"github.com/abitmore/revpop-core/store"
	"github.com/abitmore/revpop-core/types"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct{ ops []matching.VirtualOp }

func (b *fakeBroker) Send(op matching.VirtualOp) { b.ops = append(b.ops, op) }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestEngine(t *testing.T) (*Engine, *assets.Registry, *fakeBroker, numeric.AssetID) {
	t.Helper()
	reg := assets.NewRegistry()
	rec := &types.AssetRecord{ID: store.NewObjectID(store.AssetObjectType, 1), Symbol: "MIA"}
	dyn := types.NewAssetDynamicData(store.NewObjectID(store.AssetObjectType, 2))
	dyn.CurrentSupply = numeric.NewUint(100)
	bit := types.NewBitAssetData(store.NewObjectID(store.BitAssetDataObjectType, 1), types.BitAssetOptions{
		ShortBackingAssetID: "CORE",
		MCR:                 17500,
	})
	reg.Put(rec, dyn, bit)

	b := &fakeBroker{}
	clock := fixedClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	eng := NewEngine(reg, b, clock, logging.NewTestLogger())
	return eng, reg, b, rec.AssetID()
}

func callOrderLess(a, c *types.CallOrder) bool { return a.ID.Instance < c.ID.Instance }

func TestGloballySettleAssetClosesCallsAndSetsFund(t *testing.T) {
	eng, reg, broker, assetID := newTestEngine(t)

	calls := store.NewIndex(callOrderLess)
	call := &types.CallOrder{
		ID:              store.NewObjectID(store.CallOrderObjectType, 1),
		Borrower:        "bob",
		Collateral:      numeric.NewUint(1700),
		Debt:            numeric.NewUint(100),
		CollateralAsset: "CORE",
		DebtAsset:       assetID,
	}
	calls.Insert(call)

	settlementPrice := numeric.Price{Base: numeric.NewAmount(10, "CORE"), Quote: numeric.NewAmount(1, "MIA")}
	err := eng.GloballySettleAsset(assetID, settlementPrice, calls)
	require.NoError(t, err)

	bit, _ := reg.BitAsset(assetID)
	require.True(t, bit.HasSettlement())
	require.Equal(t, 0, calls.Len(), "the closed call order should be removed from the index")
	require.Len(t, broker.ops, 1)
	require.Equal(t, "fill_order", broker.ops[0].Kind)

	err = eng.GloballySettleAsset(assetID, settlementPrice, calls)
	require.ErrorIs(t, err, ErrAlreadySettled)
}

func TestAssetSettlePostGlobalRedeemsFromFund(t *testing.T) {
	eng, reg, _, assetID := newTestEngine(t)
	calls := store.NewIndex(callOrderLess)
	call := &types.CallOrder{
		ID:              store.NewObjectID(store.CallOrderObjectType, 1),
		Collateral:      numeric.NewUint(1700),
		Debt:            numeric.NewUint(100),
		CollateralAsset: "CORE",
		DebtAsset:       assetID,
	}
	calls.Insert(call)
	settlementPrice := numeric.Price{Base: numeric.NewAmount(10, "CORE"), Quote: numeric.NewAmount(1, "MIA")}
	require.NoError(t, eng.GloballySettleAsset(assetID, settlementPrice, calls))

	issuer, _ := reg.Record(assetID)
	res, err := eng.AssetSettlePostGlobal(assetID, numeric.NewUint(10), issuer)
	require.NoError(t, err)
	require.Equal(t, numeric.AssetID("CORE"), res.Settled.Asset)
	require.False(t, res.Settled.Value.IsZero())
}

func TestReviveBitassetFailsWithoutFeed(t *testing.T) {
	eng, _, _, assetID := newTestEngine(t)
	calls := store.NewIndex(callOrderLess)
	settlementPrice := numeric.Price{Base: numeric.NewAmount(10, "CORE"), Quote: numeric.NewAmount(1, "MIA")}
	require.NoError(t, eng.GloballySettleAsset(assetID, settlementPrice, calls))

	err := eng.ReviveBitasset(assetID, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrFeedRequired)
}

func TestDrainQueueLeavesNotYetDueRequestsUntouched(t *testing.T) {
	eng, _, _, assetID := newTestEngine(t)
	calls := store.NewIndex(callOrderLess)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	req := &types.ForceSettlement{
		ID:      store.NewObjectID(store.ForceSettlementObjectType, 1),
		Owner:   "alice",
		Balance: numeric.NewAmount(50, assetID),
		Created: now,
	}
	remaining := eng.DrainQueue(assetID, []*types.ForceSettlement{req}, calls, types.PriceFeed{}, time.Hour, now)
	require.Len(t, remaining, 1, "a request created now with a one hour delay is not yet due")
}
