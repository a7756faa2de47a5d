// Package index maintains the per-region candidate index: the set of ground
// items eligible for consideration, kept current through world listener
// events so scheduler queries never enumerate the whole world.
package index

import (
	"log/slog"

	"github.com/Snusene/AutoArm-sub008/internal/sim"
	"github.com/Snusene/AutoArm-sub008/internal/world"
)

// Source enumerates a region's ground items for full rebuilds.
type Source interface {
	ItemsIn(region world.RegionID) []*sim.Item
}

// Index is the candidate index. It implements sim.Listener so item-level
// adds and removes stay O(1); coarse invalidation marks the region dirty
// and the next query reports cold until rebuilt.
type Index struct {
	source  Source
	now     func() uint64
	regions map[world.RegionID]*regionIndex
}

type regionIndex struct {
	items      map[sim.ItemID]*sim.Item
	built      bool
	dirty      bool
	lastChange uint64
}

// New creates an index over a source. The clock supplies the current tick
// for change stamping.
func New(source Source, clock func() uint64) *Index {
	return &Index{
		source:  source,
		now:     clock,
		regions: make(map[world.RegionID]*regionIndex),
	}
}

func (ix *Index) region(r world.RegionID) *regionIndex {
	ri, ok := ix.regions[r]
	if !ok {
		ri = &regionIndex{items: make(map[sim.ItemID]*sim.Item)}
		ix.regions[r] = ri
	}
	return ri
}

// ItemAdded implements sim.Listener.
func (ix *Index) ItemAdded(it *sim.Item) {
	ri := ix.region(it.Region)
	ri.items[it.ID] = it
	ri.lastChange = ix.now()
}

// ItemRemoved implements sim.Listener.
func (ix *Index) ItemRemoved(it *sim.Item) {
	ri := ix.region(it.Region)
	if _, tracked := ri.items[it.ID]; !tracked {
		return
	}
	delete(ri.items, it.ID)
	ri.lastChange = ix.now()
}

// RegionReset implements sim.Listener: a coarse world change invalidates
// the whole region.
func (ix *Index) RegionReset(region world.RegionID) {
	ix.Invalidate(region)
}

// Invalidate marks a region stale. The next query reports cold; Rebuild
// restores it.
func (ix *Index) Invalidate(region world.RegionID) {
	ri := ix.region(region)
	ri.dirty = true
	ri.lastChange = ix.now()
}

// Cold reports whether the region has never been built or is pending a
// rebuild. Cold queries return empty rather than erroring.
func (ix *Index) Cold(region world.RegionID) bool {
	ri := ix.region(region)
	return !ri.built || ri.dirty
}

// Rebuild fully re-enumerates a region from the source.
func (ix *Index) Rebuild(region world.RegionID) {
	ri := ix.region(region)
	ri.items = make(map[sim.ItemID]*sim.Item)
	for _, it := range ix.source.ItemsIn(region) {
		ri.items[it.ID] = it
	}
	ri.built = true
	ri.dirty = false
	ri.lastChange = ix.now()
	slog.Debug("candidate index rebuilt", "region", region, "items", len(ri.items))
}

// AllItems returns every indexed item in the region. Cold regions return
// an empty slice; callers should Rebuild and retry.
func (ix *Index) AllItems(region world.RegionID) []*sim.Item {
	ri := ix.region(region)
	if !ri.built || ri.dirty {
		return nil
	}
	out := make([]*sim.Item, 0, len(ri.items))
	for _, it := range ri.items {
		out = append(out, it)
	}
	return out
}

// ItemsMatching returns indexed items passing the filter. Cold regions
// return an empty slice.
func (ix *Index) ItemsMatching(region world.RegionID, filter func(*sim.Item) bool) []*sim.Item {
	ri := ix.region(region)
	if !ri.built || ri.dirty {
		return nil
	}
	var out []*sim.Item
	for _, it := range ri.items {
		if filter(it) {
			out = append(out, it)
		}
	}
	return out
}

// LastChangeTick returns the tick of the region's most recent mutation.
// The scheduler compares this against an agent's last evaluation to skip
// unchanged steady-state agents.
func (ix *Index) LastChangeTick(region world.RegionID) uint64 {
	return ix.region(region).lastChange
}

// Count returns the number of indexed items in a region.
func (ix *Index) Count(region world.RegionID) int {
	return len(ix.region(region).items)
}
