// Package numeric provides the fixed-point share-amount and ratio-price
// arithmetic used throughout the matching and collateral engines. Every
// computation here is integer or 128-bit-intermediate based; no floating
// point is used anywhere on the hot path.
package numeric

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// MaxShareSupply is the system-wide ceiling on any single share amount.
// Matches GRAPHENE_MAX_SHARE_SUPPLY from the original implementation.
const MaxShareSupply uint64 = 1000000000000000

// GraphenePercent100 is 100% expressed in basis points.
const GraphenePercent100 uint16 = 10000

// GraphenePercent1 is 1% expressed in basis points.
const GraphenePercent1 uint16 = 100

// Uint is a non-negative fixed-point amount backed by a 256-bit integer so
// that percent and price multiplications can use a wide intermediate
// without ever overflowing before the final range check against
// MaxShareSupply.
type Uint struct {
	u uint256.Int
}

// Zero returns a new zero-valued Uint.
func Zero() *Uint { return &Uint{} }

// NewUint builds a Uint from a uint64.
func NewUint(v uint64) *Uint { return &Uint{*uint256.NewInt(v)} }

// UintFromBig builds a Uint from a big.Int, returning ok=false on overflow
// or a negative input.
func UintFromBig(b *big.Int) (*Uint, bool) {
	if b.Sign() < 0 {
		return Zero(), false
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return Zero(), false
	}
	return &Uint{*u}, true
}

func (u *Uint) Clone() *Uint {
	n := *u
	return &n
}

func (u *Uint) Uint64() uint64 { return u.u.Uint64() }

func (u *Uint) BigInt() *big.Int { return u.u.ToBig() }

func (u *Uint) String() string { return u.u.Dec() }

func (u *Uint) Format(f fmt.State, verb rune) { fmt.Fprint(f, u.String()) }

func (u *Uint) IsZero() bool { return u.u.IsZero() }

func (u *Uint) EQ(o *Uint) bool { return u.u.Eq(&o.u) }
func (u *Uint) NEQ(o *Uint) bool { return !u.EQ(o) }
func (u *Uint) LT(o *Uint) bool { return u.u.Lt(&o.u) }
func (u *Uint) LTE(o *Uint) bool { return !o.u.Lt(&u.u) }
func (u *Uint) GT(o *Uint) bool { return u.u.Gt(&o.u) }
func (u *Uint) GTE(o *Uint) bool { return !u.u.Lt(&o.u) }

// Add returns u+o as a new Uint.
func (u *Uint) Add(o *Uint) *Uint {
	var r uint256.Int
	r.Add(&u.u, &o.u)
	return &Uint{r}
}

// Sub returns u-o, panicking on underflow: callers must only subtract
// amounts known not to exceed u (the spec treats negative shares as an
// internal-invariant violation, never a recoverable error).
func (u *Uint) Sub(o *Uint) *Uint {
	if u.LT(o) {
		panic(fmt.Sprintf("numeric: underflow subtracting %s from %s", o, u))
	}
	var r uint256.Int
	r.Sub(&u.u, &o.u)
	return &Uint{r}
}

// Delta returns |u-o| and whether u < o (i.e. whether the delta is "owed
// to" o). Mirrors the teacher's num.Uint.Delta.
func (u *Uint) Delta(o *Uint) (*Uint, bool) {
	if u.LT(o) {
		return o.Sub(u), true
	}
	return u.Sub(o), false
}

// Min/Max.
func Min(a, b *Uint) *Uint {
	if a.LT(b) {
		return a
	}
	return b
}

func Max(a, b *Uint) *Uint {
	if a.GT(b) {
		return a
	}
	return b
}

// MulDiv computes floor(u*n/d) using a 512-bit intermediate product so the
// multiplication itself never overflows, matching the spec's "128-bit
// intermediate" requirement (256-bit headroom, since our base type is
// already 256 bits wide).
func (u *Uint) MulDiv(n, d *Uint) *Uint {
	if d.IsZero() {
		panic("numeric: division by zero")
	}
	var num big.Int
	num.Mul(u.BigInt(), n.BigInt())
	num.Div(&num, d.BigInt())
	r, ok := UintFromBig(&num)
	if !ok {
		panic("numeric: MulDiv overflow")
	}
	return r
}

// MulDivRoundUp computes ceil(u*n/d).
func (u *Uint) MulDivRoundUp(n, d *Uint) *Uint {
	if d.IsZero() {
		panic("numeric: division by zero")
	}
	if u.IsZero() || n.IsZero() {
		return Zero()
	}
	var num, rem big.Int
	num.Mul(u.BigInt(), n.BigInt())
	num.DivMod(&num, d.BigInt(), &rem)
	if rem.Sign() != 0 {
		num.Add(&num, big.NewInt(1))
	}
	r, ok := UintFromBig(&num)
	if !ok {
		panic("numeric: MulDivRoundUp overflow")
	}
	return r
}

// CheckMaxShareSupply returns an error if u exceeds MaxShareSupply.
func (u *Uint) CheckMaxShareSupply() error {
	if u.GT(NewUint(MaxShareSupply)) {
		return ErrOverflow
	}
	return nil
}
