package tracker

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"
)

// Config holds the tracker's matching and lifecycle parameters.
type Config struct {
	// MaxDistance is the largest centroid distance at which a detection may
	// claim an existing track. Zero matches only identical centroids.
	MaxDistance float64 `yaml:"max_distance" validate:"gte=0"`

	// MaxAge is the number of consecutive unmatched frames a track survives.
	// A track is evicted as soon as its age exceeds MaxAge.
	MaxAge int `yaml:"max_age" validate:"gte=0"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxDistance: 50.0,
		MaxAge:      5,
	}
}

// Tracker maintains track identities across frames. All access to the
// underlying track store is serialized, so Update may be called from
// multiple goroutines; callers simply queue on the lock.
type Tracker struct {
	config Config
	arena  *arena
	mu     sync.Mutex
}

// New creates a Tracker with an empty track store. Ids start at 1.
func New(config Config) *Tracker {
	return &Tracker{
		config: config,
		arena:  newArena(),
	}
}

// Config returns the tracker configuration.
func (t *Tracker) Config() Config {
	return t.config
}

// Update matches one frame of detections against the live tracks and returns
// the resulting live track set in creation order.
//
// Matching is greedy and order dependent: detections are taken in the given
// order and each claims the nearest still-unclaimed track within
// MaxDistance. An earlier detection can therefore take a track that a later
// one would have matched better. Unmatched detections start new tracks;
// unmatched tracks age by one and are evicted once their age exceeds MaxAge.
//
// Input is not validated. Use Validate beforehand if integrity matters.
func (t *Tracker) Update(detections []Detection) []Track {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Only tracks alive before this frame are candidates.
	existing := t.arena.tracks
	centroids := make([]r2.Vec, len(existing))
	for i, tr := range existing {
		centroids[i] = tr.BBox.Centroid()
	}
	matched := make([]bool, len(existing))

	var unmatched []Detection
	for _, det := range detections {
		c := det.BBox.Centroid()

		best := -1
		bestDist := math.Inf(1)
		for j := range existing {
			if matched[j] {
				continue
			}
			if d := r2.Norm(r2.Sub(c, centroids[j])); d < bestDist {
				best, bestDist = j, d
			}
		}

		if best >= 0 && bestDist <= t.config.MaxDistance {
			existing[best].observe(det)
			matched[best] = true
			continue
		}
		unmatched = append(unmatched, det)
	}

	// Age before allocating so new tracks start the next frame at zero.
	for j, tr := range existing {
		if !matched[j] {
			tr.Age++
		}
	}

	for _, det := range unmatched {
		t.arena.alloc(det)
	}

	t.arena.evict(func(tr *Track) bool {
		return tr.Age > t.config.MaxAge
	})

	return t.arena.snapshot()
}

// Tracks returns a snapshot of the live tracks in creation order.
func (t *Tracker) Tracks() []Track {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.arena.snapshot()
}

// Get returns a copy of the live track with the given id.
func (t *Tracker) Get(id int) (Track, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr, ok := t.arena.get(id)
	if !ok {
		return Track{}, false
	}
	return tr.clone(), true
}

// Len returns the number of live tracks.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.arena.tracks)
}

// NextID returns the id the next new track will receive.
func (t *Tracker) NextID() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.arena.nextID
}
