package tracker

// arena owns the live tracks in creation order. A track's id is its handle:
// ids come from a counter that only grows, so evicted slots are never reused
// and there is no free list.
type arena struct {
	tracks []*Track
	index  map[int]int // id -> position in tracks
	nextID int
}

func newArena() *arena {
	return &arena{
		index:  make(map[int]int),
		nextID: 1,
	}
}

// alloc creates a track for d under the next id.
func (a *arena) alloc(d Detection) *Track {
	t := &Track{
		ID:      a.nextID,
		BBox:    d.BBox,
		Label:   d.Label,
		Score:   d.Score,
		History: []string{d.Label},
	}
	a.nextID++
	a.index[t.ID] = len(a.tracks)
	a.tracks = append(a.tracks, t)
	return t
}

func (a *arena) get(id int) (*Track, bool) {
	i, ok := a.index[id]
	if !ok {
		return nil, false
	}
	return a.tracks[i], true
}

// evict removes every track for which stale returns true, keeping the
// relative order of the survivors. It returns the evicted ids.
func (a *arena) evict(stale func(*Track) bool) []int {
	var evicted []int
	kept := a.tracks[:0]
	for _, t := range a.tracks {
		if stale(t) {
			evicted = append(evicted, t.ID)
			delete(a.index, t.ID)
			continue
		}
		a.index[t.ID] = len(kept)
		kept = append(kept, t)
	}
	for i := len(kept); i < len(a.tracks); i++ {
		a.tracks[i] = nil
	}
	a.tracks = kept
	return evicted
}

// snapshot returns deep copies of the live tracks in creation order.
func (a *arena) snapshot() []Track {
	out := make([]Track, len(a.tracks))
	for i, t := range a.tracks {
		out[i] = t.clone()
	}
	return out
}
