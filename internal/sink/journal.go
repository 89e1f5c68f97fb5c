package sink

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/ayusman/signalwatch/internal/pipeline"
	"github.com/ayusman/signalwatch/internal/store"
)

// pruneEvery is how many records the journal writes between prunes.
const pruneEvery = 100

// Journal records every frame decision in the store.
type Journal struct {
	repo    *store.DecisionRepository
	keep    int
	written int
	mu      sync.Mutex
}

// NewJournal creates a Journal writing to repo and bounding it to keep
// records (0 keeps everything).
func NewJournal(repo *store.DecisionRepository, keep int) *Journal {
	return &Journal{repo: repo, keep: keep}
}

// Publish implements Sink.
func (j *Journal) Publish(_ context.Context, res pipeline.FrameResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	rec := store.NewDecisionRecord(res.Decision, res.Dropped, res.Time)
	if err := j.repo.Record(rec); err != nil {
		return fmt.Errorf("journal record: %w", err)
	}

	j.written++
	if j.keep > 0 && j.written%pruneEvery == 0 {
		n, err := j.repo.Prune(j.keep)
		if err != nil {
			return fmt.Errorf("journal prune: %w", err)
		}
		if n > 0 {
			log.Printf("Pruned %d journal records", n)
		}
	}
	return nil
}
