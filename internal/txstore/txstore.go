// file: internal/txstore/txstore.go
// version: 1.0.0
// guid: 7d3b9e1a-4c6f-4d2b-8a5e-1f3c5b7d9e0a

package txstore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble/v2"
	"github.com/gofrs/flock"
	ulid "github.com/oklog/ulid/v2"

	"github.com/jdfalk/bookbot/internal/models"
	"github.com/jdfalk/bookbot/internal/planner"
)

// Status is the lifecycle state of a recorded transaction.
type Status string

const (
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
	StatusUndone     Status = "undone"
)

var (
	ErrNotFound = errors.New("transaction not found")
	ErrLocked   = errors.New("transaction store is locked by another process")
)

// Transaction is one applied (or rolled back) plan together with the inverse
// payloads needed to undo it. Records are append-only; the only permitted
// mutation after Append is the status flip performed by Update.
type Transaction struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Status    Status    `json:"status"`

	GroupDir string                  `json:"group_dir"`
	Record   models.ReconciledRecord `json:"record"`
	Ops      []planner.Operation     `json:"ops"`

	// FailedOp is the index of the operation that failed for a rolled back
	// transaction, -1 otherwise.
	FailedOp   int    `json:"failed_op"`
	FailReason string `json:"fail_reason,omitempty"`

	// UndoneThrough is the index of the last operation whose inverse has
	// been replayed by a partially failed undo, -1 when no undo has run.
	UndoneThrough int `json:"undone_through"`
}

// Store is an append-only transaction log backed by PebbleDB.
//
// Key Schema:
// - tx:<ulid> -> Transaction JSON
//
// ULIDs are monotonic and time-ordered, so date-range listings are plain
// prefix scans and iteration order is chronological.
type Store struct {
	db *pebble.DB
	fl *flock.Flock
	mu sync.Mutex

	entropy *ulid.MonotonicEntropy
}

// Open opens (creating if needed) the store at dir. A flock advisory lock
// next to the database enforces a single writer across processes; ErrLocked
// is returned when another process holds it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	fl := flock.New(filepath.Join(dir, "store.lock"))
	held, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire store lock: %w", err)
	}
	if !held {
		return nil, ErrLocked
	}
	db, err := pebble.Open(filepath.Join(dir, "transactions"), &pebble.Options{})
	if err != nil {
		fl.Unlock()
		return nil, fmt.Errorf("failed to open transaction store: %w", err)
	}
	return &Store{
		db:      db,
		fl:      fl,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// Close closes the database and releases the advisory lock.
func (s *Store) Close() error {
	err := s.db.Close()
	if uerr := s.fl.Unlock(); err == nil {
		err = uerr
	}
	return err
}

// NewID mints a monotonic, time-ordered transaction id.
func (s *Store) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), s.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Append durably records a new transaction. The write is synced before
// Append returns. An id and timestamp are assigned if the caller left them
// empty.
func (s *Store) Append(tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		id, err := ulid.New(ulid.Timestamp(time.Now()), s.entropy)
		if err != nil {
			return err
		}
		tx.ID = id.String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	key := []byte("tx:" + tx.ID)
	if _, closer, err := s.db.Get(key); err == nil {
		closer.Close()
		return fmt.Errorf("transaction %s already recorded", tx.ID)
	} else if err != pebble.ErrNotFound {
		return fmt.Errorf("failed to check transaction %s: %w", tx.ID, err)
	}
	return s.put(key, tx)
}

// Update persists a status flip (and undo resume pointer) for an existing
// transaction. Every other field must match the stored record.
func (s *Store) Update(tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := []byte("tx:" + tx.ID)
	if _, closer, err := s.db.Get(key); err == pebble.ErrNotFound {
		return ErrNotFound
	} else if err != nil {
		return fmt.Errorf("failed to check transaction %s: %w", tx.ID, err)
	} else {
		closer.Close()
	}
	return s.put(key, tx)
}

func (s *Store) put(key []byte, tx *Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction %s: %w", tx.ID, err)
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write transaction %s: %w", tx.ID, err)
	}
	return nil
}

// Get returns the transaction with the given id, or ErrNotFound.
func (s *Store) Get(id string) (*Transaction, error) {
	value, closer, err := s.db.Get([]byte("tx:" + id))
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction %s: %w", id, err)
	}
	defer closer.Close()

	var tx Transaction
	if err := json.Unmarshal(value, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction %s: %w", id, err)
	}
	return &tx, nil
}

// List returns all transactions created in [from, to), oldest first. Zero
// bounds mean unbounded on that side.
func (s *Store) List(from, to time.Time) ([]Transaction, error) {
	lower := []byte("tx:")
	if !from.IsZero() {
		lower = []byte("tx:" + ulidLowerBound(from))
	}
	upper := []byte("tx:;")
	if !to.IsZero() {
		upper = []byte("tx:" + ulidLowerBound(to))
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var txs []Transaction
	for iter.First(); iter.Valid(); iter.Next() {
		var tx Transaction
		if err := json.Unmarshal(iter.Value(), &tx); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction %s: %w", iter.Key(), err)
		}
		txs = append(txs, tx)
	}
	return txs, iter.Error()
}

// Latest returns the most recently recorded transaction, or ErrNotFound on
// an empty store.
func (s *Store) Latest() (*Transaction, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("tx:"),
		UpperBound: []byte("tx:;"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	var tx Transaction
	if err := json.Unmarshal(iter.Value(), &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction %s: %w", iter.Key(), err)
	}
	return &tx, nil
}

// ulidLowerBound renders the smallest ULID for a timestamp, so time bounds
// translate directly to key bounds.
func ulidLowerBound(t time.Time) string {
	var id ulid.ULID
	_ = id.SetTime(ulid.Timestamp(t))
	return id.String()
}
