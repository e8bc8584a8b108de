// Package history persists the download history log and mirrors it,
// best-effort, to the server's history API.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"

	"github.com/joeording3/evdq/internal/evd"
)

const entriesBucket = "history"

// mirrorTimeout bounds each fire-and-forget mirror call.
const mirrorTimeout = 5 * time.Second

// Entry is one observed download, terminal or in-flight. Entries are
// append-only: written once by Add, individually removable by id, and
// bulk-clearable.
type Entry struct {
	ID        string `json:"id"`
	URL       string `json:"url,omitempty"`
	Status    string `json:"status"`
	Filename  string `json:"filename,omitempty"`
	PageTitle string `json:"page_title,omitempty"`
	Error     string `json:"error,omitempty"`
	Detail    string `json:"detail,omitempty"`
	// Timestamp is Unix milliseconds at observation time.
	Timestamp int64 `json:"timestamp"`
}

// Mirror forwards history writes to the server. Implemented by *evd.Client.
type Mirror interface {
	PostHistory(ctx context.Context, body any) evd.Result
}

// Store is a BoltDB-backed history log. Writes are mirrored to the server
// asynchronously with an at-most-once, may-be-lost contract: a failed
// mirror call is logged and counted, never retried, and never surfaced to
// the caller.
type Store struct {
	db      *bolt.DB
	mirror  Mirror
	log     *slog.Logger
	dropped atomic.Int64
}

// Open opens (or creates) the history database at path, creating parent
// directories as needed. mirror may be nil to disable server sync.
func Open(path string, mirror Mirror, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(entriesBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history bucket: %w", err)
	}
	return &Store{db: db, mirror: mirror, log: log}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add appends an entry, generating an id and timestamp when absent, and
// kicks off the server mirror. The returned entry carries the filled-in
// fields.
func (s *Store) Add(entry Entry) (Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().UnixMilli()
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(entriesBucket))
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		return bucket.Put([]byte(entry.ID), data)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("save history entry: %w", err)
	}
	s.mirrorAsync(entry)
	return entry, nil
}

// List returns all entries. Order is unspecified; consumers sort by
// timestamp when rendering.
func (s *Store) List() ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(entriesBucket))
		return bucket.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshal entry %q: %w", k, err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Remove deletes a single entry by id. Removing an absent id is a no-op.
func (s *Store) Remove(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(entriesBucket)).Delete([]byte(id))
	})
}

// Clear drops every entry and mirrors the clear action to the server.
func (s *Store) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(entriesBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(entriesBucket))
		return err
	})
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	s.mirrorAsync(map[string]any{"action": "clear"})
	return nil
}

// Dropped reports how many mirror calls have been lost so far.
func (s *Store) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Store) mirrorAsync(body any) {
	if s.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if res := s.mirror.PostHistory(ctx, body); !res.Success {
			s.dropped.Add(1)
			s.log.Debug("history mirror dropped", "reason", res.Message, "total_dropped", s.dropped.Load())
		}
	}()
}
