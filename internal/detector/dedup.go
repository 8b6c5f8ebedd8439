// Package detector implements the stream heuristics: deduplication, the filter
// pipeline, suspect classification, and the cluster and volume trackers.
//
// Nothing in this package locks. Every type is owned by the poll loop.
package detector

// DefaultDedupCap is the number of trade keys remembered before bulk eviction.
const DefaultDedupCap = 10000

// Deduplicator remembers which trades were already processed. When it grows
// past its cap, half of the entries are evicted in map iteration order, so
// suppression near the boundary is best-effort rather than LRU.
type Deduplicator struct {
	seen    map[string]struct{}
	maxSize int
}

// NewDeduplicator creates a Deduplicator. A non-positive maxSize uses DefaultDedupCap.
func NewDeduplicator(maxSize int) *Deduplicator {
	if maxSize <= 0 {
		maxSize = DefaultDedupCap
	}
	return &Deduplicator{
		seen:    make(map[string]struct{}, maxSize),
		maxSize: maxSize,
	}
}

// Seen reports whether id was marked and not yet evicted.
func (d *Deduplicator) Seen(id string) bool {
	_, ok := d.seen[id]
	return ok
}

// MarkSeen records id, evicting half the set once the cap is exceeded.
// It returns the number of evicted entries.
func (d *Deduplicator) MarkSeen(id string) int {
	d.seen[id] = struct{}{}
	if len(d.seen) <= d.maxSize {
		return 0
	}

	toRemove := d.maxSize / 2
	removed := 0
	for key := range d.seen {
		if removed >= toRemove {
			break
		}
		delete(d.seen, key)
		removed++
	}
	return removed
}

// Len returns the number of remembered keys.
func (d *Deduplicator) Len() int {
	return len(d.seen)
}
