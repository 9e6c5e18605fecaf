// Package sink records verification and enforcement results in an
// append-only SQLite log. Each record carries a SHA-256 digest chained to the
// previous record so an external sealer can detect gaps or edits.
package sink

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/veritas/internal/model"
)

// Record kinds
const (
	KindVerify   = "verify"
	KindEnforce  = "enforce"
	KindEnhanced = "enhanced"
)

var (
	// ErrNotFound is returned when no record has the requested id
	ErrNotFound = errors.New("record not found")

	// ErrChainBroken is returned when a record's digest does not match its payload and predecessor
	ErrChainBroken = errors.New("digest chain broken")
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	kind TEXT NOT NULL,
	origin TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	payload TEXT NOT NULL,
	prev_digest TEXT NOT NULL,
	digest TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind);
`

// Record is one sealed entry. ID is the run id.
type Record struct {
	Seq        int64           `json:"seq"`
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Origin     string          `json:"origin,omitempty"` // cli, http, batch
	CreatedAt  time.Time       `json:"created_at"`
	Payload    json.RawMessage `json:"payload"`
	PrevDigest string          `json:"prev_digest"`
	Digest     string          `json:"digest"`
}

// Pair is the natural unit to seal: a verification and, when one was made,
// the enforcement decision built from it
type Pair struct {
	Verification model.VerificationResult `json:"verification"`
	Enforcement  *model.EnforcementResult `json:"enforcement,omitempty"`
}

// Store is the append-only record log
type Store struct {
	db  *sql.DB
	mu  sync.Mutex // Serializes appends so the chain stays linear
	now func() time.Time
}

// Open opens or creates the record database at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create sink dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sink db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sink db: %w", err)
	}
	return newStore(db)
}

// OpenMemory creates an in-memory store
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory sink: %w", err)
	}
	// Every connection would get its own empty database
	db.SetMaxOpenConns(1)
	return newStore(db)
}

func newStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sink schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Append seals v as the next record
func (s *Store) Append(ctx context.Context, kind, origin string, v interface{}) (Record, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Record{}, fmt.Errorf("marshal payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var prev string
	err = tx.QueryRowContext(ctx, `SELECT digest FROM records ORDER BY seq DESC LIMIT 1`).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("read chain head: %w", err)
	}

	rec := Record{
		ID:         uuid.NewString(),
		Kind:       kind,
		Origin:     origin,
		CreatedAt:  s.now().UTC(),
		Payload:    payload,
		PrevDigest: prev,
		Digest:     Digest(prev, payload),
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO records
		(id, kind, origin, created_at, payload, prev_digest, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.Origin, rec.CreatedAt.Format(time.RFC3339Nano),
		string(rec.Payload), rec.PrevDigest, rec.Digest,
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert record: %w", err)
	}
	if rec.Seq, err = res.LastInsertId(); err != nil {
		return Record{}, fmt.Errorf("record seq: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit append: %w", err)
	}
	return rec, nil
}

// Get returns the record with the given id
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT seq, id, kind, origin, created_at, payload, prev_digest, digest
		FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// Recent returns up to limit records, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT seq, id, kind, origin, created_at, payload, prev_digest, digest
		FROM records ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// VerifyChain walks the log in order and recomputes every digest. It returns
// the number of records checked.
func (s *Store) VerifyChain(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, id, kind, origin, created_at, payload, prev_digest, digest
		FROM records ORDER BY seq ASC`)
	if err != nil {
		return 0, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	prev := ""
	n := 0
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return n, err
		}
		if rec.PrevDigest != prev || rec.Digest != Digest(prev, rec.Payload) {
			return n, fmt.Errorf("%w at seq %d", ErrChainBroken, rec.Seq)
		}
		prev = rec.Digest
		n++
	}
	return n, rows.Err()
}

// Digest is hex(sha256(prev || payload))
func Digest(prev string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(prev))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec       Record
		createdAt string
		payload   string
	)
	if err := row.Scan(&rec.Seq, &rec.ID, &rec.Kind, &rec.Origin, &createdAt,
		&payload, &rec.PrevDigest, &rec.Digest); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan record: %w", err)
	}
	rec.Payload = json.RawMessage(payload)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return rec, nil
}
