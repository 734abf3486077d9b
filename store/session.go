package store

// Session is a scoped undo journal: callers push an inverse action with
// Record for each mutation they want undone, and Rollback replays those
// actions; mutations without a recorded inverse are not undone. The store
// has no Create/Remove/Modify API of its own. Grounded on
// the "wrap each top-level operation in a scoped undo session" discipline
// called for in spec.md's Design Notes; the teacher's snapshot/checkpoint
// packages (core/collateral/checkpoint.go) show the same pattern of
// recording enough state to reconstruct a prior version, generalized here
// from periodic checkpoints to a per-operation undo stack.
//
// Not safe for concurrent use: the engine is invoked from a single
// block-processing goroutine (see spec.md §5), so no locking is applied.
type Session struct {
	undo []func()
}

// NewSession opens a new undo session.
func NewSession() *Session {
	return &Session{}
}

// Record appends an inverse action to the session's undo stack. Callers
// push the undo action immediately after performing the forward action,
// so Rollback can unwind in LIFO order.
func (s *Session) Record(undo func()) {
	s.undo = append(s.undo, undo)
}

// Rollback reverses every recorded action, most recent first, and clears
// the session so it cannot be rolled back twice.
func (s *Session) Rollback() {
	for i := len(s.undo) - 1; i >= 0; i-- {
		s.undo[i]()
	}
	s.undo = nil
}

// Commit discards the undo journal: the operation succeeded and its
// effects are permanent.
func (s *Session) Commit() {
	s.undo = nil
}
