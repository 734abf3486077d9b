package callorder

import (
	"testing"

	"github.com/abitmore/revpop-core/numeric"
	"github.com/abitmore/revpop-core/store"
	"github.com/abitmore/revpop-core/types"
	"github.com/stretchr/testify/require"
)

func feedAt(settlementCore, settlementMIA uint64, mcr, mssr uint16) types.PriceFeed {
	return types.PriceFeed{
		SettlementPrice: numeric.Price{
			Base:  numeric.NewAmount(settlementCore, "CORE"),
			Quote: numeric.NewAmount(settlementMIA, "MIA"),
		},
		MCR:  mcr,
		MSSR: mssr,
	}
}

// Scenario 3 from spec.md §8: settlement_price 1 MIA = 10 CORE, MCR 1.75,
// MSSR 1.1, MCFR 0.
func TestMaxShortSqueezePriceScenario3(t *testing.T) {
	feed := feedAt(10, 1, 17500, 11000)
	mssp := MaxShortSqueezePrice(feed)
	// 10 * 1.1 = 11 CORE per MIA
	require.Equal(t, uint64(11), mssp.Base.Value.Uint64())
	require.Equal(t, uint64(1), mssp.Quote.Value.Uint64())
}

func TestCallableBelowMaintenance(t *testing.T) {
	call := &types.CallOrder{
		ID:              store.NewObjectID(store.CallOrderObjectType, 1),
		Collateral:      numeric.NewUint(1700),
		Debt:            numeric.NewUint(100),
		CollateralAsset: "CORE",
		DebtAsset:       "MIA",
	}
	// maintenance collateralization: settlement_price * MCR = 10*1.75 = 17.5 CORE/MIA
	maint := numeric.Price{
		Base:  numeric.NewAmount(175, "CORE"),
		Quote: numeric.NewAmount(10, "MIA"),
	}
	require.True(t, Callable(call, maint)) // 17 < 17.5
}

func TestBlackSwanWhenCollateralInsufficient(t *testing.T) {
	call := &types.CallOrder{
		Collateral: numeric.NewUint(1000),
		Debt:       numeric.NewUint(100),
	}
	// call_pays_price: 11 CORE per MIA -> owes 1100, only has 1000
	cpp := numeric.Price{Base: numeric.NewAmount(11, "CORE"), Quote: numeric.NewAmount(1, "MIA")}
	require.True(t, BlackSwan(call, cpp))
}

func TestNoBlackSwanWhenSolvent(t *testing.T) {
	call := &types.CallOrder{
		Collateral: numeric.NewUint(1700),
		Debt:       numeric.NewUint(100),
	}
	cpp := numeric.Price{Base: numeric.NewAmount(11, "CORE"), Quote: numeric.NewAmount(1, "MIA")}
	require.False(t, BlackSwan(call, cpp))
}

func TestMaxDebtToCoverNoTCRReturnsFullDebt(t *testing.T) {
	call := &types.CallOrder{Debt: numeric.NewUint(100), Collateral: numeric.NewUint(1700)}
	cpp := numeric.Price{Base: numeric.NewAmount(11, "CORE"), Quote: numeric.NewAmount(1, "MIA")}
	require.Equal(t, uint64(100), MaxDebtToCover(call, cpp, 17500).Uint64())
}
