// Package assets maintains asset and bitasset state: supply and fee-pool
// bookkeeping, price-feed publication and median computation, and the
// maintenance-collateralization derivation margin calls are compared
// against.
package assets

import (
	"sort"
	"time"

	"github.com/abitmore/revpop-core/numeric"
	"github.com/abitmore/revpop-core/types"
)

// Registry holds every AssetRecord/AssetDynamicData/BitAssetData known to
// the engine, keyed by asset id. A real deployment would back this with
// the object store's indexed tables (store.Index); a flat map suffices
// here since assets are looked up by id, never range-scanned.
type Registry struct {
	records  map[numeric.AssetID]*types.AssetRecord
	dynamic  map[numeric.AssetID]*types.AssetDynamicData
	bitasset map[numeric.AssetID]*types.BitAssetData
}

func NewRegistry() *Registry {
	return &Registry{
		records:  map[numeric.AssetID]*types.AssetRecord{},
		dynamic:  map[numeric.AssetID]*types.AssetDynamicData{},
		bitasset: map[numeric.AssetID]*types.BitAssetData{},
	}
}

func (r *Registry) Put(rec *types.AssetRecord, dyn *types.AssetDynamicData, bit *types.BitAssetData) {
	id := rec.AssetID()
	r.records[id] = rec
	r.dynamic[id] = dyn
	if bit != nil {
		r.bitasset[id] = bit
	}
}

func (r *Registry) Record(id numeric.AssetID) (*types.AssetRecord, bool) {
	v, ok := r.records[id]
	return v, ok
}

func (r *Registry) Dynamic(id numeric.AssetID) (*types.AssetDynamicData, bool) {
	v, ok := r.dynamic[id]
	return v, ok
}

func (r *Registry) BitAsset(id numeric.AssetID) (*types.BitAssetData, bool) {
	v, ok := r.bitasset[id]
	return v, ok
}

// IsPredictionMarket reports whether id is a prediction-market bitasset.
func (r *Registry) IsPredictionMarket(id numeric.AssetID) bool {
	b, ok := r.bitasset[id]
	return ok && b.IsPredictionMarket
}

// PublishFeed records a publisher's feed and recomputes the median.
// Mirrors asset_publish_feed's "store, then recompute" sequence; the
// median computation itself is UpdateMedianFeed below. A non-empty
// FeedProducers whitelist restricts who may publish, matching
// asset_update_feed_producers's effect on asset_publish_feed_evaluator.
func (r *Registry) PublishFeed(id numeric.AssetID, publisher types.AccountID, feed types.PriceFeed, now time.Time) bool {
	b, ok := r.bitasset[id]
	if !ok {
		return false
	}
	if len(b.FeedProducers) > 0 && !isFeedProducer(b, publisher) {
		return false
	}
	b.Feeds[publisher] = types.FeedEntry{Timestamp: now, Feed: feed}
	r.UpdateMedianFeed(id, now)
	return true
}

func isFeedProducer(b *types.BitAssetData, id types.AccountID) bool {
	for _, p := range b.FeedProducers {
		if p == id {
			return true
		}
	}
	return false
}

// SetFeedProducers implements asset_update_feed_producers's apply step
// (asset_evaluator.cpp): keeps feeds from producers still in the new set,
// drops the rest, seeds a blank entry for any newly added producer, and
// recomputes the median over what remains.
func (r *Registry) SetFeedProducers(id numeric.AssetID, producers []types.AccountID, now time.Time) bool {
	b, ok := r.bitasset[id]
	if !ok {
		return false
	}
	kept := map[types.AccountID]types.FeedEntry{}
	for _, p := range producers {
		if e, ok := b.Feeds[p]; ok {
			kept[p] = e
		} else {
			kept[p] = types.FeedEntry{}
		}
	}
	b.Feeds = kept
	b.FeedProducers = append([]types.AccountID(nil), producers...)
	r.UpdateMedianFeed(id, now)
	return true
}

// UpdateMedianFeed recomputes current_feed as the by-settlement-price
// median of all non-expired feeds, and derives current_maintenance_collateralization
// from it. Grounded on the margin-level "sort then pick middle" style
// used for small-N scaling-factor computation; no third-party sort
// library is warranted for this size of input.
func (r *Registry) UpdateMedianFeed(id numeric.AssetID, now time.Time) {
	b, ok := r.bitasset[id]
	if !ok {
		return
	}
	var live []types.PriceFeed
	for _, entry := range b.Feeds {
		if b.Options.FeedLifetime != 0 && now.Sub(entry.Timestamp) > b.Options.FeedLifetime {
			continue
		}
		if entry.Feed.IsNull() {
			continue
		}
		live = append(live, entry.Feed)
	}
	if len(live) == 0 {
		b.CurrentFeed = types.PriceFeed{}
		b.CurrentMaintenanceCollateralization = numeric.Price{}
		return
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].SettlementPrice.Less(live[j].SettlementPrice)
	})
	median := live[len(live)/2]
	b.CurrentFeed = median
	b.CurrentMaintenanceCollateralization = MaintenanceCollateralization(median)
}

// MaintenanceCollateralization returns the collateral/debt ratio, scaled
// by the feed's MCR, below which a position is margin-called: a feed with
// settlement_price base/quote and MCR in bps yields
// floor(base*MCR/10000)/quote (the base leg is scaled and truncated; the
// quote leg is unchanged).
func MaintenanceCollateralization(feed types.PriceFeed) numeric.Price {
	p := feed.SettlementPrice
	base := p.Base.Value.MulDiv(numeric.NewUint(uint64(feed.MCR)), numeric.NewUint(uint64(numeric.GraphenePercent100)))
	return numeric.Price{
		Base:  numeric.Amount{Value: base, Asset: p.Base.Asset},
		Quote: p.Quote,
	}
}

// FeedIsValid reports whether id currently has a non-null feed. now is not
// consulted: expired feeds drop out only when UpdateMedianFeed recomputes
// the current feed.
func (r *Registry) FeedIsValid(id numeric.AssetID, now time.Time) bool {
	b, ok := r.bitasset[id]
	if !ok || b.CurrentFeed.IsNull() {
		return false
	}
	return true
}
