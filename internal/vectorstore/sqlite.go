package vectorstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // CGO SQLite driver for the concrete Vector Store

	recerrors "github.com/openclaw/reconsolidate/internal/errors"
)

// SQLiteStore is the concrete Vector Store realization: chunk text and
// embeddings held in one SQLite database, with write-back wrapped in a
// single transaction so a mid-run failure leaves the prior embeddings
// intact (the write-back atomicity decision recorded in DESIGN.md).
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path TEXT NOT NULL,
	content TEXT NOT NULL,
	line_start INTEGER NOT NULL,
	line_end INTEGER NOT NULL,
	embedding BLOB NOT NULL
);
`

// Open opens (creating and migrating if needed) the SQLite vector store at
// path. path may be ":memory:" for tests.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, recerrors.Wrap(recerrors.ErrCodeFileNotFound, fmt.Errorf("create vector store directory: %w", err))
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, recerrors.Wrap(recerrors.ErrCodeFileNotFound, fmt.Errorf("open vector store: %w", err))
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, recerrors.Wrap(recerrors.ErrCodeInternal, fmt.Errorf("create vector store schema: %w", err))
	}

	return &SQLiteStore{db: db}, nil
}

var _ Store = (*SQLiteStore)(nil)

// LoadAll implements Store.
func (s *SQLiteStore) LoadAll() ([]Chunk, [][]float32, error) {
	rows, err := s.db.Query(`SELECT id, file_path, content, line_start, line_end, embedding FROM chunks ORDER BY id`)
	if err != nil {
		return nil, nil, recerrors.Wrap(recerrors.ErrCodeInternal, err)
	}
	defer rows.Close()

	var chunks []Chunk
	var embeddings [][]float32
	for rows.Next() {
		var c Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.FilePath, &c.Content, &c.LineStart, &c.LineEnd, &blob); err != nil {
			return nil, nil, recerrors.Wrap(recerrors.ErrCodeInternal, err)
		}
		c.ChunkKey = fmt.Sprintf("%s:%d", c.FilePath, c.LineStart)

		emb, err := DecodeEmbedding(blob)
		if err != nil {
			return nil, nil, recerrors.Wrap(recerrors.ErrCodeInputMalformed, fmt.Errorf("chunk %d: %w", c.ID, err))
		}

		chunks = append(chunks, c)
		embeddings = append(embeddings, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, recerrors.Wrap(recerrors.ErrCodeInternal, err)
	}

	return chunks, embeddings, nil
}

// WriteBack implements Store. Every row is updated inside a single
// transaction; any failure rolls back the whole batch, leaving prior
// embeddings untouched.
func (s *SQLiteStore) WriteBack(ids []int64, embeddings [][]float32) error {
	if len(ids) != len(embeddings) {
		return recerrors.New(recerrors.ErrCodeWriteBackFail, "id/embedding count mismatch", nil).
			WithDetail("ids", fmt.Sprint(len(ids))).
			WithDetail("embeddings", fmt.Sprint(len(embeddings)))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return recerrors.Wrap(recerrors.ErrCodeInternal, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`UPDATE chunks SET embedding = ? WHERE id = ?`)
	if err != nil {
		return recerrors.Wrap(recerrors.ErrCodeInternal, err)
	}
	defer stmt.Close()

	for i, id := range ids {
		blob := EncodeEmbedding(embeddings[i])
		result, err := stmt.Exec(blob, id)
		if err != nil {
			return recerrors.Wrap(recerrors.ErrCodeWriteBackFail, fmt.Errorf("update chunk %d: %w", id, err))
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return recerrors.Wrap(recerrors.ErrCodeInternal, err)
		}
		if affected != 1 {
			return recerrors.New(recerrors.ErrCodeWriteBackFail, fmt.Sprintf("chunk %d: expected 1 row updated, got %d", id, affected), nil)
		}
	}

	if err := tx.Commit(); err != nil {
		return recerrors.Wrap(recerrors.ErrCodeWriteBackFail, fmt.Errorf("commit write-back: %w", err))
	}
	return nil
}

// Dimensions implements Store.
func (s *SQLiteStore) Dimensions() (int, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT embedding FROM chunks ORDER BY id LIMIT 1`).Scan(&blob)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, recerrors.Wrap(recerrors.ErrCodeInternal, err)
	}
	return len(blob) / 4, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertChunk adds a chunk with its embedding, returning the assigned ID.
// Used by ingestion paths and tests to populate the store.
func (s *SQLiteStore) InsertChunk(filePath, content string, lineStart, lineEnd int, embedding []float32) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO chunks (file_path, content, line_start, line_end, embedding) VALUES (?, ?, ?, ?, ?)`,
		filePath, content, lineStart, lineEnd, EncodeEmbedding(embedding),
	)
	if err != nil {
		return 0, recerrors.Wrap(recerrors.ErrCodeInternal, err)
	}
	return result.LastInsertId()
}
