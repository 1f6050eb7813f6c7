// Package history stores recent transcripts so the tray can offer them for
// re-pasting. Entries expire after a retention period.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const keyPrefix = "t:"

var reverseSeekKey = append([]byte(keyPrefix), 0xFF)

// ErrNotFound is returned by Get for an unknown or expired id.
var ErrNotFound = errors.New("history entry not found")

// Defaults used when no Option overrides them.
const (
	DefaultTTL        = 72 * time.Hour
	DefaultMaxEntries = 50
)

// Entry is one finished transcript.
type Entry struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	Language     string    `json:"language,omitempty"`
	LanguageName string    `json:"languageName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store is a badger-backed transcript log, newest first.
type Store struct {
	db  *badger.DB
	ttl time.Duration
	max int
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets how long entries are kept. Zero keeps them until pruned.
func WithTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

// WithMaxEntries caps the number of stored entries.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.max = n
		}
	}
}

// Open opens the store at path.
func Open(path string, opts ...Option) (*Store, error) {
	return open(badger.DefaultOptions(path), opts)
}

// OpenInMemory opens a store that keeps nothing on disk.
func OpenInMemory(opts ...Option) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), opts)
}

func open(bo badger.Options, opts []Option) (*Store, error) {
	db, err := badger.Open(bo.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	s := &Store{db: db, ttl: DefaultTTL, max: DefaultMaxEntries}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func entryKey(e Entry) []byte {
	return fmt.Appendf(nil, "%s%020d:%s", keyPrefix, e.CreatedAt.UnixNano(), e.ID)
}

// Add stores e, filling in ID and CreatedAt when unset, and drops the
// oldest entries beyond the cap.
func (s *Store) Add(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	val, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		be := badger.NewEntry(entryKey(e), val)
		if s.ttl > 0 {
			be = be.WithTTL(s.ttl)
		}
		return txn.SetEntry(be)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("store entry: %w", err)
	}
	if err := s.prune(); err != nil {
		return e, err
	}
	return e, nil
}

func (s *Store) prune() error {
	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := newestFirst(txn, false)
		defer it.Close()
		n := 0
		for ; it.ValidForPrefix([]byte(keyPrefix)); it.Next() {
			n++
			if n > s.max {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan history: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range stale {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	var out []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		it := newestFirst(txn, true)
		defer it.Close()
		for ; it.ValidForPrefix([]byte(keyPrefix)) && len(out) < n; it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}

// Get returns the entry with id.
func (s *Store) Get(id string) (Entry, error) {
	entries, err := s.Recent(s.max)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

// newestFirst iterates keys in reverse. Reverse prefix scans must seek
// past the last key with the prefix.
func newestFirst(txn *badger.Txn, values bool) *badger.Iterator {
	o := badger.DefaultIteratorOptions
	o.Reverse = true
	o.PrefetchValues = values
	o.Prefix = []byte(keyPrefix)
	it := txn.NewIterator(o)
	it.Seek(reverseSeekKey)
	return it
}
