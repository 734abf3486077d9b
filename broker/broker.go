// Package broker buffers virtual operations emitted by the matching and
// settlement engines for the caller to drain. It stands in for the
// teacher's full event bus (Broker interface in core/settlement), whose
// concrete transport (subscription/RPC surface) is out of scope here.
package broker

import "github.com/abitmore/revpop-core/matching"

// Buffer is the minimal Broker implementation: an in-memory queue.
type Buffer struct {
	ops []matching.VirtualOp
}

func New() *Buffer { return &Buffer{} }

func (b *Buffer) Send(op matching.VirtualOp) { b.ops = append(b.ops, op) }

// Drain returns every buffered op and resets the buffer, matching the
// evaluator, which drains it once per successful Dispatch call.
func (b *Buffer) Drain() []matching.VirtualOp {
	ops := b.ops
	b.ops = nil
	return ops
}
