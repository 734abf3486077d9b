package numeric

import (
	"math/big"

	"github.com/pkg/errors"
)

// AssetID identifies a tradeable or collateral asset. Account/authority
// resolution for the id is out of scope here; the engine only ever
// compares ids for equality.
type AssetID string

// Amount is a typed currency amount: a non-negative Uint tagged with the
// asset it is denominated in.
type Amount struct {
	Value *Uint
	Asset AssetID
}

func NewAmount(v uint64, asset AssetID) Amount {
	return Amount{Value: NewUint(v), Asset: asset}
}

func ZeroAmount(asset AssetID) Amount {
	return Amount{Value: Zero(), Asset: asset}
}

func (a Amount) IsZero() bool { return a.Value.IsZero() }

func (a Amount) Add(o Amount) Amount {
	a.mustMatch(o)
	return Amount{Value: a.Value.Add(o.Value), Asset: a.Asset}
}

func (a Amount) Sub(o Amount) Amount {
	a.mustMatch(o)
	return Amount{Value: a.Value.Sub(o.Value), Asset: a.Asset}
}

func (a Amount) LT(o Amount) bool  { a.mustMatch(o); return a.Value.LT(o.Value) }
func (a Amount) LTE(o Amount) bool { a.mustMatch(o); return a.Value.LTE(o.Value) }
func (a Amount) GT(o Amount) bool  { a.mustMatch(o); return a.Value.GT(o.Value) }
func (a Amount) GTE(o Amount) bool { a.mustMatch(o); return a.Value.GTE(o.Value) }
func (a Amount) EQ(o Amount) bool  { a.mustMatch(o); return a.Value.EQ(o.Value) }

func (a Amount) mustMatch(o Amount) {
	if a.Asset != o.Asset {
		panic("numeric: amount asset mismatch: " + string(a.Asset) + " vs " + string(o.Asset))
	}
}

// Price is an unreduced ratio base/quote: selling `Quote.Value` of
// Quote.Asset buys `Base.Value` of Base.Asset at this price, i.e.
// price == base/quote. This mirrors graphene::protocol::price.
type Price struct {
	Base  Amount
	Quote Amount
}

// IsNull reports whether either leg of the price is unset or zero. The
// zero-value Price is null; it is the sentinel used to mark "no feed
// published".
func (p Price) IsNull() bool {
	return p.Base.Value == nil || p.Quote.Value == nil || p.Base.Value.IsZero() || p.Quote.Value.IsZero()
}

// Invert returns the reciprocal price (quote/base).
func (p Price) Invert() Price {
	return Price{Base: p.Quote, Quote: p.Base}
}

// Mul multiplies an asset amount by this price, rounding down, producing
// an amount in the other leg of the price. `amt` must be denominated in
// either Base.Asset or Quote.Asset.
func (p Price) Mul(amt Amount) Amount {
	return p.mul(amt, false)
}

// MulRoundUp is the round-up variant of Mul, used on the "pays" side of a
// match so the payer never under-pays by a fraction of a unit.
func (p Price) MulRoundUp(amt Amount) Amount {
	return p.mul(amt, true)
}

func (p Price) mul(amt Amount, roundUp bool) Amount {
	var num, den Amount
	var outAsset AssetID
	switch amt.Asset {
	case p.Quote.Asset:
		// selling `amt` of quote, receive base: amt * base/quote
		num, den, outAsset = p.Base, p.Quote, p.Base.Asset
	case p.Base.Asset:
		// selling `amt` of base, receive quote: amt * quote/base
		num, den, outAsset = p.Quote, p.Base, p.Quote.Asset
	default:
		panic("numeric: price.Mul: amount asset not part of this price pair")
	}
	if den.Value.IsZero() {
		panic("numeric: price.Mul: null price")
	}
	var out *Uint
	if roundUp {
		out = amt.Value.MulDivRoundUp(num.Value, den.Value)
	} else {
		out = amt.Value.MulDiv(num.Value, den.Value)
	}
	return Amount{Value: out, Asset: outAsset}
}

// Less compares p < o by cross-multiplication, as both prices must share
// the same (base asset, quote asset) pair (possibly inverted).
func (p Price) Less(o Price) bool {
	p.checkPair(o)
	l := new(big.Int).Mul(p.Base.Value.BigInt(), o.Quote.Value.BigInt())
	r := new(big.Int).Mul(o.Base.Value.BigInt(), p.Quote.Value.BigInt())
	return l.Cmp(r) < 0
}

func (p Price) EQ(o Price) bool {
	p.checkPair(o)
	l := new(big.Int).Mul(p.Base.Value.BigInt(), o.Quote.Value.BigInt())
	r := new(big.Int).Mul(o.Base.Value.BigInt(), p.Quote.Value.BigInt())
	return l.Cmp(r) == 0
}

func (p Price) checkPair(o Price) {
	if p.Base.Asset != o.Base.Asset || p.Quote.Asset != o.Quote.Asset {
		panic("numeric: price.Less: mismatched asset pair")
	}
}

// MinPrice/MaxPrice are the smallest/largest representable prices for a
// given (base, quote) asset pair, used as iteration-range sentinels.
func MinPrice(base, quote AssetID) Price {
	return Price{Base: Amount{Value: NewUint(1), Asset: base}, Quote: Amount{Value: NewUint(MaxShareSupply), Asset: quote}}
}

func MaxPrice(base, quote AssetID) Price {
	return Price{Base: Amount{Value: NewUint(MaxShareSupply), Asset: base}, Quote: Amount{Value: NewUint(1), Asset: quote}}
}

// ErrNullPrice is returned when an operation requires a valid feed price
// but none has been published.
var ErrNullPrice = errors.New("numeric: price is null")
