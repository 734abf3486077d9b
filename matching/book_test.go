package matching

import (
	"testing"

	"github.com/abitmore/revpop-core/assets"
	"github.com/abitmore/revpop-core/logging"
	"github.com/abitmore/revpop-core/numeric"
	"github.com/abitmore/revpop-core/store"
	"github.com/abitmore/revpop-core/types"
	"github.com/stretchr/testify/require"
)

func newTestBook() *Book {
	return NewBook(assets.NewRegistry(), logging.NewTestLogger())
}

// Scenario 1 from spec.md §8: A sells 100 X for 300 Y (price 1X=3Y); B
// sells 600 Y for 200 X (same price) arrives. A fully fills (receives
// 300Y); B partially fills (pays 300Y, receives 100X, retains 300Y).
func TestMatchLimitsSimpleScenario1(t *testing.T) {
	b := newTestBook()

	a := &types.LimitOrder{
		ID:          store.NewObjectID(store.LimitOrderObjectType, 1),
		ForSale:     numeric.NewUint(100),
		SellPrice:   numeric.Price{Base: numeric.NewAmount(100, "X"), Quote: numeric.NewAmount(300, "Y")},
		DeferredFee: numeric.Zero(), DeferredPaidFee: numeric.ZeroAmount("CORE"),
	}
	bOrder := &types.LimitOrder{
		ID:          store.NewObjectID(store.LimitOrderObjectType, 2),
		ForSale:     numeric.NewUint(600),
		SellPrice:   numeric.Price{Base: numeric.NewAmount(600, "Y"), Quote: numeric.NewAmount(200, "X")},
		DeferredFee: numeric.Zero(), DeferredPaidFee: numeric.ZeroAmount("CORE"),
	}

	matchPrice := a.SellPrice // 1X = 3Y, the maker's price
	result := b.MatchLimits(bOrder, a, matchPrice)

	require.NotZero(t, result&2, "A (maker) should be fully filled")
	require.Zero(t, result&1, "B (taker) should not be fully filled")

	require.True(t, bOrder.ForSale.EQ(numeric.NewUint(300)), "B should retain 300 Y for sale, got %s", bOrder.ForSale)
}

func TestIsDustCullsZeroReceive(t *testing.T) {
	order := &types.LimitOrder{
		ForSale:   numeric.NewUint(0),
		SellPrice: numeric.Price{Base: numeric.NewAmount(1, "X"), Quote: numeric.NewAmount(3, "Y")},
	}
	require.True(t, isDust(order))
}

// Scenario 2 from spec.md §8: a maker's order carries a 100-core
// deferred_fee with maker_fee_discount_percent = 2000 (20%). On first
// fill as maker, the seller gets a 20-core discount refund and the
// remaining 80 is deposited into the seller's cashback too (this engine
// has no generic balance to split the "refund" from the "cashback
// deposit" into, so both legs land on AccountStats.Cashback; see
// DESIGN.md).
func TestScenario2MakerDiscountDeferredFee(t *testing.T) {
	b := newTestBook()
	b.Fees.MakerFeeDiscountPercent = 2000
	b.Accounts = map[types.AccountID]*types.AccountStats{}

	order := &types.LimitOrder{
		ID:              store.NewObjectID(store.LimitOrderObjectType, 1),
		Seller:          "alice",
		ForSale:         numeric.NewUint(100),
		SellPrice:       numeric.Price{Base: numeric.NewAmount(1, "X"), Quote: numeric.NewAmount(3, "Y")},
		DeferredFee:     numeric.NewUint(100),
		DeferredPaidFee: numeric.ZeroAmount("CORE"),
	}

	filled := b.fillLimitOrder(order, numeric.NewAmount(100, "X"), numeric.NewAmount(300, "Y"), true, order.SellPrice, true)
	require.True(t, filled)

	acct := b.Accounts["alice"]
	require.NotNil(t, acct)
	require.Equal(t, uint64(100), acct.Cashback.Uint64())
	require.True(t, order.DeferredFee.IsZero())
}

// Scenario 6 from spec.md §8: an order with deferred_fee=100 core and
// deferred_paid_fee=50 OTHER is cancelled; the cancel-fee schedule costs
// 30 core. OTHER accumulates ceil(50*30/100)=15, 35 OTHER is refunded to
// the seller, 70 core returns to OTHER's fee-pool, and the virtual op's
// fee field is 15 OTHER.
func TestScenario6CancelWithNonCoreDeferredFee(t *testing.T) {
	b := newTestBook()
	b.Fees.CancelFeeCore = numeric.NewUint(30)
	b.Accounts = map[types.AccountID]*types.AccountStats{}

	otherRec := &types.AssetRecord{ID: store.NewObjectID(store.AssetObjectType, 1), Symbol: "OTHER"}
	otherDyn := types.NewAssetDynamicData(store.NewObjectID(store.AssetObjectType, 2))
	b.Assets.Put(otherRec, otherDyn, nil)

	order := &types.LimitOrder{
		ID:              store.NewObjectID(store.LimitOrderObjectType, 6),
		Seller:          "alice",
		ForSale:         numeric.NewUint(10),
		SellPrice:       numeric.Price{Base: numeric.NewAmount(1, "X"), Quote: numeric.NewAmount(3, "Y")},
		DeferredFee:     numeric.NewUint(100),
		DeferredPaidFee: numeric.Amount{Value: numeric.NewUint(50), Asset: "OTHER"},
	}

	b.CancelLimitOrder(order, true, false)

	require.Equal(t, uint64(15), otherDyn.AccumulatedFees.Uint64())
	require.Equal(t, uint64(70), otherDyn.FeePool.Uint64())

	require.Len(t, b.Ops, 1)
	op := b.Ops[0]
	require.Equal(t, "limit_order_cancel", op.Kind)
	require.Equal(t, numeric.AssetID("OTHER"), op.Fee.Asset)
	require.Equal(t, uint64(15), op.Fee.Value.Uint64())
	require.Equal(t, numeric.AssetID("OTHER"), op.Receives.Asset)
	require.Equal(t, uint64(35), op.Receives.Value.Uint64())
}

func TestCancelLimitOrderRefundsAndEmitsOp(t *testing.T) {
	b := newTestBook()
	order := &types.LimitOrder{
		ID:          store.NewObjectID(store.LimitOrderObjectType, 5),
		ForSale:     numeric.NewUint(50),
		SellPrice:   numeric.Price{Base: numeric.NewAmount(1, "X"), Quote: numeric.NewAmount(3, "Y")},
		DeferredFee: numeric.Zero(), DeferredPaidFee: numeric.ZeroAmount("CORE"),
	}
	b.CancelLimitOrder(order, true, false)
	require.Len(t, b.Ops, 1)
	require.Equal(t, "limit_order_cancel", b.Ops[0].Kind)
}
