package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/signalwatch/internal/decision"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// DecisionRecord is one journaled frame decision.
type DecisionRecord struct {
	ID          string                  `json:"id"`
	Advisory    decision.Advisory       `json:"advisory"`
	TotalTracks int                     `json:"total_tracks"`
	RedVotes    int                     `json:"red_votes"`
	GreenVotes  int                     `json:"green_votes"`
	Dropped     int                     `json:"dropped"`
	Tracks      []decision.TrackSummary `json:"tracks"`
	DecidedAt   time.Time               `json:"decided_at"`
}

// NewDecisionRecord builds a record from an engine result.
func NewDecisionRecord(res decision.Result, dropped int, at time.Time) *DecisionRecord {
	return &DecisionRecord{
		Advisory:    res.Advisory,
		TotalTracks: res.TotalTracks,
		RedVotes:    res.RedVotes,
		GreenVotes:  res.GreenVotes,
		Dropped:     dropped,
		Tracks:      res.Tracks,
		DecidedAt:   at,
	}
}

// Summary aggregates the journal.
type Summary struct {
	Count  int                       `json:"count"`
	Counts map[decision.Advisory]int `json:"counts"`
	// RedRatioMean and RedRatioStdDev describe red/(red+green) over the
	// records that had at least one vote.
	RedRatioMean   float64 `json:"red_ratio_mean"`
	RedRatioStdDev float64 `json:"red_ratio_stddev"`
}

// DecisionRepository provides access to the decision journal.
type DecisionRepository struct {
	db *sql.DB
}

// Decisions returns the decision repository for this store.
func (s *Store) Decisions() *DecisionRepository {
	return &DecisionRepository{db: s.db}
}

// Record inserts rec, assigning an ID when it has none.
func (r *DecisionRepository) Record(rec *DecisionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now()
	}
	tracks := rec.Tracks
	if tracks == nil {
		tracks = []decision.TrackSummary{}
	}
	data, err := json.Marshal(tracks)
	if err != nil {
		return fmt.Errorf("marshal tracks: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO decisions (id, advisory, total_tracks, red_votes, green_votes, dropped, tracks, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Advisory), rec.TotalTracks, rec.RedVotes, rec.GreenVotes, rec.Dropped,
		string(data), rec.DecidedAt,
	)
	return err
}

// List returns up to limit records, newest first. A limit <= 0 returns all.
func (r *DecisionRepository) List(limit int) ([]*DecisionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT id, advisory, total_tracks, red_votes, green_votes, dropped, tracks, decided_at
		 FROM decisions ORDER BY seq DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*DecisionRecord{}
	for rows.Next() {
		rec, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// Latest returns the most recent record.
func (r *DecisionRepository) Latest() (*DecisionRecord, error) {
	row := r.db.QueryRow(
		`SELECT id, advisory, total_tracks, red_votes, green_votes, dropped, tracks, decided_at
		 FROM decisions ORDER BY seq DESC LIMIT 1`,
	)
	rec, err := scanDecision(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// CountByAdvisory returns how many records carry each advisory.
func (r *DecisionRepository) CountByAdvisory() (map[decision.Advisory]int, error) {
	rows, err := r.db.Query(`SELECT advisory, COUNT(*) FROM decisions GROUP BY advisory`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[decision.Advisory]int)
	for rows.Next() {
		var advisory string
		var n int
		if err := rows.Scan(&advisory, &n); err != nil {
			return nil, err
		}
		counts[decision.Advisory(advisory)] = n
	}
	return counts, rows.Err()
}

// Summarize aggregates the whole journal.
func (r *DecisionRepository) Summarize() (*Summary, error) {
	counts, err := r.CountByAdvisory()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`SELECT red_votes, green_votes FROM decisions WHERE red_votes + green_votes > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ratios []float64
	for rows.Next() {
		var red, green int
		if err := rows.Scan(&red, &green); err != nil {
			return nil, err
		}
		ratios = append(ratios, float64(red)/float64(red+green))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sum := &Summary{Counts: counts}
	for _, n := range counts {
		sum.Count += n
	}
	switch len(ratios) {
	case 0:
	case 1:
		sum.RedRatioMean = ratios[0]
	default:
		sum.RedRatioMean, sum.RedRatioStdDev = stat.MeanStdDev(ratios, nil)
	}
	return sum, nil
}

// Prune deletes all but the newest keep records and reports how many were
// removed. keep <= 0 leaves the journal untouched.
func (r *DecisionRepository) Prune(keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	result, err := r.db.Exec(
		`DELETE FROM decisions WHERE seq NOT IN (
			SELECT seq FROM decisions ORDER BY seq DESC LIMIT ?
		)`,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDecision(s scanner) (*DecisionRecord, error) {
	rec := &DecisionRecord{}
	var advisory, tracks string
	err := s.Scan(&rec.ID, &advisory, &rec.TotalTracks, &rec.RedVotes, &rec.GreenVotes,
		&rec.Dropped, &tracks, &rec.DecidedAt)
	if err != nil {
		return nil, err
	}
	rec.Advisory = decision.Advisory(advisory)
	if err := json.Unmarshal([]byte(tracks), &rec.Tracks); err != nil {
		return nil, fmt.Errorf("decode tracks for %s: %w", rec.ID, err)
	}
	return rec, nil
}
