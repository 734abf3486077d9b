package fee

import (
	"testing"

	"github.com/abitmore/revpop-core/numeric"
	"github.com/abitmore/revpop-core/store"
	"github.com/abitmore/revpop-core/types"
	"github.com/stretchr/testify/require"
)

func testAsset(marketFeePct uint16, chargesFee bool) *types.AssetRecord {
	flags := types.AssetFlags(0)
	if chargesFee {
		flags = types.ChargeMarketFee
	}
	return &types.AssetRecord{
		ID:     store.NewObjectID(store.AssetObjectType, 1),
		Symbol: "USD",
		Options: types.AssetOptions{
			Flags:            flags,
			MarketFeePercent: marketFeePct,
		},
	}
}

func TestMarketFeeDisabled(t *testing.T) {
	asset := testAsset(500, false)
	recv := numeric.NewAmount(1000, "USD")
	f := MarketFee(asset, recv, Taker)
	require.True(t, f.IsZero())
}

func TestMarketFeeBasic(t *testing.T) {
	asset := testAsset(500, true) // 5%
	recv := numeric.NewAmount(1000, "USD")
	f := MarketFee(asset, recv, Taker)
	require.Equal(t, uint64(50), f.Value.Uint64())
}

func TestMarketFeeCappedAtMax(t *testing.T) {
	asset := testAsset(5000, true) // 50%
	asset.Options.MaxMarketFee = numeric.NewUint(10)
	recv := numeric.NewAmount(1000, "USD")
	f := MarketFee(asset, recv, Taker)
	require.Equal(t, uint64(10), f.Value.Uint64())
}

func TestRouteNoReferral(t *testing.T) {
	asset := testAsset(500, true)
	fee := numeric.NewAmount(100, "USD")
	res := Route(asset, fee, nil, Schedule{})
	require.Equal(t, uint64(100), res.AccumulatedFees.Value.Uint64())
	require.True(t, res.Network.IsZero())
	require.True(t, res.Referrer.IsZero())
}

func TestRouteNetworkAndReferral(t *testing.T) {
	asset := testAsset(500, true)
	rewardPct := uint16(2000) // 20%
	asset.Options.RewardPercent = &rewardPct
	fee := numeric.NewAmount(1000, "USD")
	seller := &types.AccountStats{ReferrerRewardsPercentage: 5000} // 50% of reward to referrer
	res := Route(asset, fee, seller, Schedule{MarketFeeNetworkPercent: 1000}) // 10% to network

	require.Equal(t, uint64(100), res.Network.Value.Uint64())     // 10% of 1000
	reward := uint64(900 * 0.20)                                  // 20% of remaining 900 = 180
	require.Equal(t, reward, res.Referrer.Value.Uint64()+res.Registrar.Value.Uint64())
	require.Equal(t, res.Referrer.Value.Uint64(), res.Registrar.Value.Uint64()) // 50/50 split
	require.Equal(t, uint64(1000-100-180), res.AccumulatedFees.Value.Uint64())
}

func TestMarginCallFee(t *testing.T) {
	callPays := numeric.NewAmount(550, "CORE")
	bidReceives := numeric.NewAmount(525, "CORE")
	f := MarginCallFee(callPays, bidReceives)
	require.Equal(t, uint64(25), f.Value.Uint64())
}

func TestMarginCallFeeNegativePanics(t *testing.T) {
	callPays := numeric.NewAmount(100, "CORE")
	bidReceives := numeric.NewAmount(200, "CORE")
	require.Panics(t, func() { MarginCallFee(callPays, bidReceives) })
}

func TestMakerDiscountNoneConfigured(t *testing.T) {
	refund, toPool := MakerDiscount(numeric.NewUint(100), 0)
	require.True(t, refund.IsZero())
	require.Equal(t, uint64(100), toPool.Uint64())
}

func TestMakerDiscount20Percent(t *testing.T) {
	refund, toPool := MakerDiscount(numeric.NewUint(100), 2000)
	require.Equal(t, uint64(20), refund.Uint64())
	require.Equal(t, uint64(80), toPool.Uint64())
}
