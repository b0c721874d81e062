package access

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	recerrors "github.com/openclaw/reconsolidate/internal/errors"
)

// Store is the access log and chunk-energy accumulator. One Store owns one
// SQLite database; cross-process writers serialize through an advisory file
// lock so two reconsolidate processes never interleave a log-event write.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	lock *flock.Flock
	log  *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS access_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp REAL NOT NULL,
	session_id TEXT,
	query TEXT NOT NULL,
	results TEXT NOT NULL,
	n_results INTEGER NOT NULL,
	top_score REAL
);
CREATE TABLE IF NOT EXISTS chunk_energy (
	chunk_key TEXT PRIMARY KEY,
	total_accesses INTEGER DEFAULT 0,
	total_score REAL DEFAULT 0.0,
	last_accessed REAL,
	first_accessed REAL
);
CREATE TABLE IF NOT EXISTS processed_sessions (
	session_id TEXT PRIMARY KEY,
	processed_at REAL NOT NULL,
	event_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_access_timestamp ON access_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_chunk_accesses ON chunk_energy(total_accesses DESC);
`

// Open opens (creating if needed) the access store at path. path may be
// ":memory:" for an ephemeral, single-process store used in tests.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	var dsn string
	var lockHandle *flock.Flock
	if path == ":memory:" {
		dsn = ":memory:"
	} else {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, recerrors.Wrap(recerrors.ErrCodeFileNotFound, fmt.Errorf("create access store directory: %w", err))
			}
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
		lockHandle = flock.New(path + ".lock")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, recerrors.Wrap(recerrors.ErrCodeFileNotFound, fmt.Errorf("open access store: %w", err))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, recerrors.Wrap(recerrors.ErrCodeInternal, fmt.Errorf("set pragma %q: %w", pragma, err))
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, recerrors.Wrap(recerrors.ErrCodeInternal, fmt.Errorf("create access store schema: %w", err))
	}

	return &Store{db: db, path: path, lock: lockHandle, log: log}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// withWriteLock runs fn while holding the store's cross-process advisory
// lock (a no-op for in-memory stores, which are inherently single-process).
func (s *Store) withWriteLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lock == nil {
		return fn()
	}

	retryCfg := recerrors.DefaultLockRetryConfig()
	return recerrors.Retry(ctx, retryCfg, func() error {
		ok, err := s.lock.TryLock()
		if err != nil {
			return recerrors.New(recerrors.ErrCodeStoreLocked, "failed to acquire access store lock", err)
		}
		if !ok {
			return recerrors.New(recerrors.ErrCodeStoreLocked, "access store lock held by another process", nil)
		}
		defer func() { _ = s.lock.Unlock() }()
		return fn()
	})
}

// LogEvent records a single access event and updates each named chunk's
// running energy row, all inside one transaction.
func (s *Store) LogEvent(ctx context.Context, query string, results []ResultRecord, sessionID string, timestamp float64) error {
	if timestamp == 0 {
		timestamp = float64(time.Now().UnixNano()) / 1e9
	}

	return s.withWriteLock(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return recerrors.Wrap(recerrors.ErrCodeInternal, err)
		}
		defer func() { _ = tx.Rollback() }()

		resultsJSON, err := json.Marshal(results)
		if err != nil {
			return recerrors.Wrap(recerrors.ErrCodeInputMalformed, err)
		}

		var topScore float64
		for _, r := range results {
			if r.Score > topScore {
				topScore = r.Score
			}
		}

		var sessionIDArg any
		if sessionID != "" {
			sessionIDArg = sessionID
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO access_events (timestamp, session_id, query, results, n_results, top_score)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			timestamp, sessionIDArg, query, string(resultsJSON), len(results), topScore,
		); err != nil {
			return recerrors.Wrap(recerrors.ErrCodeInternal, fmt.Errorf("insert access_events: %w", err))
		}

		for _, r := range results {
			key := r.ChunkKey()
			score := r.Score
			if score == 0 {
				score = 0.5
			}

			var existing int
			err := tx.QueryRowContext(ctx, `SELECT total_accesses FROM chunk_energy WHERE chunk_key = ?`, key).Scan(&existing)
			switch {
			case err == sql.ErrNoRows:
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO chunk_energy (chunk_key, total_accesses, total_score, last_accessed, first_accessed)
					 VALUES (?, 1, ?, ?, ?)`,
					key, score, timestamp, timestamp,
				); err != nil {
					return recerrors.Wrap(recerrors.ErrCodeInternal, fmt.Errorf("insert chunk_energy: %w", err))
				}
			case err != nil:
				return recerrors.Wrap(recerrors.ErrCodeInternal, err)
			default:
				if _, err := tx.ExecContext(ctx,
					`UPDATE chunk_energy SET total_accesses = total_accesses + 1,
					 total_score = total_score + ?, last_accessed = ? WHERE chunk_key = ?`,
					score, timestamp, key,
				); err != nil {
					return recerrors.Wrap(recerrors.ErrCodeInternal, fmt.Errorf("update chunk_energy: %w", err))
				}
			}
		}

		if err := tx.Commit(); err != nil {
			return recerrors.Wrap(recerrors.ErrCodeInternal, err)
		}
		return nil
	})
}

// MarkSessionProcessed records a transcript session's watermark so the
// extractor never re-ingests it.
func (s *Store) MarkSessionProcessed(ctx context.Context, sessionID string, eventCount int) error {
	return s.withWriteLock(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO processed_sessions (session_id, processed_at, event_count)
			 VALUES (?, ?, ?)
			 ON CONFLICT(session_id) DO UPDATE SET processed_at = excluded.processed_at, event_count = excluded.event_count`,
			sessionID, float64(time.Now().UnixNano())/1e9, eventCount,
		)
		if err != nil {
			return recerrors.Wrap(recerrors.ErrCodeInternal, err)
		}
		return nil
	})
}

// IsSessionProcessed reports whether sessionID has already been extracted.
func (s *Store) IsSessionProcessed(ctx context.Context, sessionID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_sessions WHERE session_id = ?`, sessionID).Scan(&count)
	if err != nil {
		return false, recerrors.Wrap(recerrors.ErrCodeInternal, err)
	}
	return count > 0, nil
}

// LoadAllChunkEnergy returns every tracked chunk's raw accumulator row.
func (s *Store) LoadAllChunkEnergy(ctx context.Context) ([]ChunkEnergy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_key, total_accesses, total_score, last_accessed, first_accessed FROM chunk_energy`)
	if err != nil {
		return nil, recerrors.Wrap(recerrors.ErrCodeInternal, err)
	}
	defer rows.Close()

	var out []ChunkEnergy
	for rows.Next() {
		var ce ChunkEnergy
		var lastAccessed, firstAccessed sql.NullFloat64
		if err := rows.Scan(&ce.ChunkKey, &ce.TotalAccesses, &ce.TotalScore, &lastAccessed, &firstAccessed); err != nil {
			return nil, recerrors.Wrap(recerrors.ErrCodeInternal, err)
		}
		ce.LastAccessed = lastAccessed.Float64
		ce.FirstAccessed = firstAccessed.Float64
		out = append(out, ce)
	}
	return out, rows.Err()
}

// LoadRecentEvents returns access events at or after sinceTimestamp,
// ordered oldest first, used by the Mirror Analyzer's windowed queries.
func (s *Store) LoadRecentEvents(ctx context.Context, sinceTimestamp float64) ([]AccessEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, session_id, query, results, n_results, top_score
		 FROM access_events WHERE timestamp >= ? ORDER BY timestamp ASC`, sinceTimestamp)
	if err != nil {
		return nil, recerrors.Wrap(recerrors.ErrCodeInternal, err)
	}
	defer rows.Close()

	var out []AccessEvent
	for rows.Next() {
		var ev AccessEvent
		var sessionID sql.NullString
		var resultsJSON string
		var topScore sql.NullFloat64
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &sessionID, &ev.Query, &resultsJSON, &ev.NResults, &topScore); err != nil {
			return nil, recerrors.Wrap(recerrors.ErrCodeInternal, err)
		}
		ev.SessionID = sessionID.String
		ev.TopScore = topScore.Float64
		if err := json.Unmarshal([]byte(resultsJSON), &ev.Results); err != nil {
			return nil, recerrors.Wrap(recerrors.ErrCodeInputMalformed, fmt.Errorf("decode stored results for event %d: %w", ev.ID, err))
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Stats returns the aggregate access statistics used by the `access stats`
// CLI command.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_events`).Scan(&st.TotalAccessEvents); err != nil {
		return st, recerrors.Wrap(recerrors.ErrCodeInternal, err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk_energy`).Scan(&st.TrackedChunks); err != nil {
		return st, recerrors.Wrap(recerrors.ErrCodeInternal, err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT query) FROM access_events`).Scan(&st.UniqueQueries); err != nil {
		return st, recerrors.Wrap(recerrors.ErrCodeInternal, err)
	}

	var earliest, latest sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, `SELECT MIN(timestamp), MAX(timestamp) FROM access_events`).Scan(&earliest, &latest); err != nil {
		return st, recerrors.Wrap(recerrors.ErrCodeInternal, err)
	}
	if earliest.Valid {
		st.EarliestEvent = &earliest.Float64
	}
	if latest.Valid {
		st.LatestEvent = &latest.Float64
	}

	hotRows, err := s.db.QueryContext(ctx,
		`SELECT chunk_key, total_accesses, total_score, last_accessed FROM chunk_energy
		 ORDER BY total_accesses DESC LIMIT 15`)
	if err != nil {
		return st, recerrors.Wrap(recerrors.ErrCodeInternal, err)
	}
	defer hotRows.Close()
	for hotRows.Next() {
		var hc HotChunk
		var lastAccessed sql.NullFloat64
		if err := hotRows.Scan(&hc.Chunk, &hc.Accesses, &hc.TotalScore, &lastAccessed); err != nil {
			return st, recerrors.Wrap(recerrors.ErrCodeInternal, err)
		}
		hc.LastAccessed = lastAccessed.Float64
		st.HottestChunks = append(st.HottestChunks, hc)
	}

	recentRows, err := s.db.QueryContext(ctx,
		`SELECT query, n_results, top_score, timestamp FROM access_events ORDER BY timestamp DESC LIMIT 10`)
	if err != nil {
		return st, recerrors.Wrap(recerrors.ErrCodeInternal, err)
	}
	defer recentRows.Close()
	for recentRows.Next() {
		var rq RecentQuery
		var topScore sql.NullFloat64
		if err := recentRows.Scan(&rq.Query, &rq.Results, &topScore, &rq.Timestamp); err != nil {
			return st, recerrors.Wrap(recerrors.ErrCodeInternal, err)
		}
		rq.TopScore = topScore.Float64
		st.RecentQueries = append(st.RecentQueries, rq)
	}

	sort.SliceStable(st.HottestChunks, func(i, j int) bool {
		return st.HottestChunks[i].Accesses > st.HottestChunks[j].Accesses
	})

	return st, nil
}

// Dump returns the most recent access events, newest first, bounded to limit.
func (s *Store) Dump(ctx context.Context, limit int) ([]DumpRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, session_id, query, n_results, top_score FROM access_events
		 ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, recerrors.Wrap(recerrors.ErrCodeInternal, err)
	}
	defer rows.Close()

	var out []DumpRow
	for rows.Next() {
		var d DumpRow
		var sessionID sql.NullString
		var topScore sql.NullFloat64
		if err := rows.Scan(&d.Timestamp, &sessionID, &d.Query, &d.Results, &topScore); err != nil {
			return nil, recerrors.Wrap(recerrors.ErrCodeInternal, err)
		}
		d.Session = sessionID.String
		d.TopScore = topScore.Float64
		out = append(out, d)
	}
	return out, rows.Err()
}
