package types

import "github.com/pkg/errors"

// The evaluator classifies every failure into one of four kinds, matching
// spec.md §7: a caller can switch on these sentinels (via errors.Is) to
// decide whether a failure is the submitter's fault, a transient
// precondition, a numeric overflow, or a bug.
var (
	// ErrValidation means the operation's inputs are malformed or violate
	// a stateless rule (e.g. a zero-amount order, a price with a zero leg).
	ErrValidation = errors.New("types: validation failed")

	// ErrPrecondition means the inputs are well-formed but current chain
	// state does not permit the operation (e.g. insufficient balance, a
	// force-settlement submitted against a prediction market).
	ErrPrecondition = errors.New("types: precondition failed")

	// ErrOverflow means a computation would exceed MaxShareSupply or
	// otherwise overflow the fixed-point representation.
	ErrOverflow = errors.New("types: amount overflow")

	// ErrInternal marks an internal invariant violation: a bug, not a
	// rejected operation. Engine code raises it as a panic; the
	// evaluator's Dispatch recovers the panic, rolls back its undo session
	// and returns an error wrapping ErrInternal.
	ErrInternal = errors.New("types: internal invariant violation")
)
