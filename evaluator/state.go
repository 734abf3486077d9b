// Package evaluator provides one function per inbound operation named in
// spec.md §6, validating fields and invoking the engines in assets,
// fee, callorder, matching and settlement. Grounded on the teacher's
// core/execution wrapper-over-engines pattern and core/coreapi's Config
// aggregation; the "avoid virtual dispatch" design note is taken from
// the teacher's core/types convention of a struct with one populated
// field per operation variant rather than an interface hierarchy.
package evaluator

import (
	"time"

	"github.com/abitmore/revpop-core/assets"
	"github.com/abitmore/revpop-core/broker"
	"github.com/abitmore/revpop-core/fee"
	"github.com/abitmore/revpop-core/logging"
	"github.com/abitmore/revpop-core/matching"
	"github.com/abitmore/revpop-core/numeric"
	"github.com/abitmore/revpop-core/settlement"
	"github.com/abitmore/revpop-core/store"
	"github.com/abitmore/revpop-core/types"
)

// Market keys a single order book by its traded asset pair.
type Market struct {
	Base  numeric.AssetID
	Quote numeric.AssetID
}

// State is all engine state the evaluator dispatch loop reads and
// mutates for one chain. A real deployment persists this; here it lives
// entirely in memory, matching spec.md §5's single-goroutine model.
type State struct {
	log *logging.Logger

	Assets   *assets.Registry
	Accounts map[types.AccountID]*types.AccountStats
	Books    map[Market]*matching.Book
	Settles  map[numeric.AssetID][]*types.ForceSettlement

	IDs     *store.IDGenerator
	Broker  *broker.Buffer
	Settle  *settlement.Engine
	Fees    fee.Schedule
	Now     func() time.Time
}

func NewState(log *logging.Logger, reg *assets.Registry, fees fee.Schedule, now func() time.Time) *State {
	b := broker.New()
	accounts := map[types.AccountID]*types.AccountStats{}
	settle := settlement.NewEngine(reg, brokerAdapter{b}, timeAdapter{now}, log.Named("settlement"))
	settle.Accounts = accounts
	settle.Fees = fees
	return &State{
		log:      log,
		Assets:   reg,
		Accounts: accounts,
		Books:    map[Market]*matching.Book{},
		Settles:  map[numeric.AssetID][]*types.ForceSettlement{},
		IDs:      store.NewIDGenerator(),
		Broker:   b,
		Settle:   settle,
		Fees:     fees,
		Now:      now,
	}
}

type brokerAdapter struct{ b *broker.Buffer }

func (a brokerAdapter) Send(op matching.VirtualOp) { a.b.Send(op) }

type timeAdapter struct{ now func() time.Time }

func (a timeAdapter) Now() time.Time { return a.now() }

// collect forwards a book's locally buffered virtual ops (emitted by its
// own fill/cancel calls) into the shared broker so Dispatch can drain a
// single stream regardless of which engine produced the op.
func (s *State) collect(bk *matching.Book) {
	for _, op := range bk.Ops {
		s.Broker.Send(op)
	}
	bk.Ops = nil
}

func (s *State) account(id types.AccountID) *types.AccountStats {
	a, ok := s.Accounts[id]
	if !ok {
		a = types.NewAccountStats(id)
		s.Accounts[id] = a
	}
	return a
}

// ProcessForceSettlements drains every bitasset's settlement queue that
// has requests due at `now`, matching them against call orders via
// settlement.Engine.DrainQueue (fill_settle_order, spec.md §4.8). This is
// the housekeeping pass spec.md §5 defers ("processed by a separate
// housekeeping pass not specified here") rather than an operation a
// caller submits directly: a real deployment runs it once per block.
func (s *State) ProcessForceSettlements(now time.Time) []matching.VirtualOp {
	for assetID, queue := range s.Settles {
		if len(queue) == 0 {
			continue
		}
		bit, ok := s.Assets.BitAsset(assetID)
		if !ok || bit.HasSettlement() || !s.Assets.FeedIsValid(assetID, now) {
			continue
		}
		bk := s.book(bit.Options.ShortBackingAssetID, assetID)
		s.Settles[assetID] = s.Settle.DrainQueue(assetID, queue, bk.Calls, bit.CurrentFeed, bit.Options.ForceSettlementDelay, now)
		s.collect(bk)
	}
	return s.Broker.Drain()
}

// book returns the single order book for an unordered asset pair: both
// "sell a for b" and "sell b for a" orders live in the same market,
// canonicalized by string order so either argument order finds it.
func (s *State) book(a, b numeric.AssetID) *matching.Book {
	key := Market{Base: a, Quote: b}
	if b < a {
		key = Market{Base: b, Quote: a}
	}
	bk, ok := s.Books[key]
	if !ok {
		bk = matching.NewBook(s.Assets, s.log.Named("matching"))
		bk.Fees = s.Fees
		bk.Accounts = s.Accounts
		s.Books[key] = bk
	}
	return bk
}
