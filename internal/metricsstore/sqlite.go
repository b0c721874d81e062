package metricsstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	recerrors "github.com/openclaw/reconsolidate/internal/errors"
)

// Store persists ReconsolidationRun and retrieval_tracking rows.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS reconsolidation_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp REAL NOT NULL,
	n_chunks INTEGER,
	n_with_energy INTEGER,
	k_coefficients INTEGER,
	keep_ratio REAL,
	promotion_strength REAL,
	avg_sim_before REAL,
	avg_sim_after REAL,
	avg_delta REAL,
	max_promoted_delta REAL,
	max_demoted_delta REAL,
	total_access_events INTEGER,
	anomalies INTEGER DEFAULT 0,
	details TEXT
);
CREATE TABLE IF NOT EXISTS retrieval_tracking (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp REAL NOT NULL,
	query TEXT,
	used_chunk_rank INTEGER,
	total_results INTEGER,
	session_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON reconsolidation_runs(timestamp DESC);
`

// Open opens (creating if needed) the metrics store at path. path may be
// ":memory:" for an ephemeral store used in tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, recerrors.Wrap(recerrors.ErrCodeFileNotFound, fmt.Errorf("create metrics store directory: %w", err))
			}
		}
	}

	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, recerrors.Wrap(recerrors.ErrCodeFileNotFound, fmt.Errorf("open metrics store: %w", err))
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, recerrors.Wrap(recerrors.ErrCodeInternal, fmt.Errorf("create metrics store schema: %w", err))
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertRun records one ReconsolidationRun.
func (s *Store) InsertRun(r RunRecord) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO reconsolidation_runs (
			timestamp, n_chunks, n_with_energy, k_coefficients, keep_ratio,
			promotion_strength, avg_sim_before, avg_sim_after, avg_delta,
			max_promoted_delta, max_demoted_delta, total_access_events,
			anomalies, details
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Timestamp, r.NumChunks, r.NumWithEnergy, r.KCoefficients, r.KeepRatio,
		r.PromotionStrength, r.AvgSimBefore, r.AvgSimAfter, r.AvgDelta,
		r.MaxPromotedDelta, r.MaxDemotedDelta, r.TotalAccessEvents,
		r.Anomalies, r.DetailsJSON,
	)
	if err != nil {
		return 0, recerrors.Wrap(recerrors.ErrCodeInternal, fmt.Errorf("insert reconsolidation run: %w", err))
	}
	return res.LastInsertId()
}

// RecentRuns returns up to limit most recent runs, newest first.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp, n_chunks, n_with_energy, k_coefficients, keep_ratio,
			promotion_strength, avg_sim_before, avg_sim_after, avg_delta,
			max_promoted_delta, max_demoted_delta, total_access_events,
			anomalies, details
		FROM reconsolidation_runs
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, recerrors.Wrap(recerrors.ErrCodeInternal, fmt.Errorf("query recent runs: %w", err))
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(
			&r.ID, &r.Timestamp, &r.NumChunks, &r.NumWithEnergy, &r.KCoefficients, &r.KeepRatio,
			&r.PromotionStrength, &r.AvgSimBefore, &r.AvgSimAfter, &r.AvgDelta,
			&r.MaxPromotedDelta, &r.MaxDemotedDelta, &r.TotalAccessEvents,
			&r.Anomalies, &r.DetailsJSON,
		); err != nil {
			return nil, recerrors.Wrap(recerrors.ErrCodeInternal, fmt.Errorf("scan run row: %w", err))
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertRetrievalTracking records which rank of chunk was actually used from
// a query's results, for later promotion-candidate auditing.
func (s *Store) InsertRetrievalTracking(r RetrievalTrackingRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO retrieval_tracking (timestamp, query, used_chunk_rank, total_results, session_id)
		VALUES (?, ?, ?, ?, ?)`,
		r.Timestamp, r.Query, r.UsedChunkRank, r.TotalResults, r.SessionID,
	)
	if err != nil {
		return recerrors.Wrap(recerrors.ErrCodeInternal, fmt.Errorf("insert retrieval tracking: %w", err))
	}
	return nil
}
