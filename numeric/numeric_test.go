package numeric

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculatePercent(t *testing.T) {
	v, err := CalculatePercent(NewUint(1000), 250) // 2.5%
	require.NoError(t, err)
	require.Equal(t, uint64(25), v.Uint64())
}

func TestCalculatePercentOverflow(t *testing.T) {
	_, err := CalculatePercent(NewUint(MaxShareSupply), GraphenePercent100+1)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestPriceMulRounding(t *testing.T) {
	const core AssetID = "CORE"
	const usd AssetID = "USD"
	// price: 1 USD = 3 CORE -> base=3 CORE, quote=1 USD
	p := Price{Base: NewAmount(3, core), Quote: NewAmount(1, usd)}

	recv := p.Mul(NewAmount(10, usd))
	require.Equal(t, core, recv.Asset)
	require.Equal(t, uint64(30), recv.Value.Uint64())

	p2 := Price{Base: NewAmount(1, core), Quote: NewAmount(3, usd)}
	down := p2.Mul(NewAmount(1, usd))
	require.Zero(t, down.Value.Uint64())

	up := p2.MulRoundUp(NewAmount(1, usd))
	require.Equal(t, uint64(1), up.Value.Uint64())
}

func TestPriceMulRoundUpOfZeroIsZero(t *testing.T) {
	const core AssetID = "CORE"
	const usd AssetID = "USD"
	p := Price{Base: NewAmount(1, core), Quote: NewAmount(3, usd)}
	up := p.MulRoundUp(NewAmount(0, core))
	require.True(t, up.IsZero())
}

func TestPriceLess(t *testing.T) {
	const core AssetID = "CORE"
	const usd AssetID = "USD"
	cheap := Price{Base: NewAmount(1, core), Quote: NewAmount(10, usd)}
	dear := Price{Base: NewAmount(2, core), Quote: NewAmount(10, usd)}
	require.True(t, cheap.Less(dear))
	require.False(t, dear.Less(cheap))
}

func TestUintDelta(t *testing.T) {
	d, neg := NewUint(5).Delta(NewUint(8))
	require.Equal(t, uint64(3), d.Uint64())
	require.True(t, neg)
}

func TestUintSubUnderflowPanics(t *testing.T) {
	require.Panics(t, func() {
		NewUint(1).Sub(NewUint(2))
	})
}
