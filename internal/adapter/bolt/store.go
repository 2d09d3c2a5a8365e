package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"wikirag/internal/vector"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var recordsBucket = []byte("records")

// ErrStoreLocked is returned when another handle holds the file lock.
var ErrStoreLocked = errors.New("vector store is locked")

type Options struct {
	// LockTimeout bounds how long Open waits for the file lock.
	LockTimeout time.Duration
}

// Store is the bbolt-backed durable vector store. Records are keyed by chunk
// id and encoded with msgpack. Every batch is one transaction.
type Store struct {
	db      *bbolt.DB
	path    string
	tempDir string
}

func Open(path string, opts Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = time.Second
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s: %w", ErrStoreLocked, path, err)
		}
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// OpenTemp opens a store in a fresh temporary directory that is removed on
// Close. Used when the durable location is unusable.
func OpenTemp(opts Options) (*Store, error) {
	dir, err := os.MkdirTemp("", "wikirag-vectors-*")
	if err != nil {
		return nil, fmt.Errorf("create temp store dir: %w", err)
	}
	s, err := Open(filepath.Join(dir, "records.db"), opts)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	s.tempDir = dir
	return s, nil
}

// IsLockError reports whether err came from a held or stale file lock.
func IsLockError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrStoreLocked) ||
		errors.Is(err, bbolt.ErrTimeout) ||
		errors.Is(err, syscall.EAGAIN)
}

// Heal deletes and recreates the directory holding the store file.
func Heal(path string) error {
	dir := filepath.Dir(path)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove store dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("recreate store dir: %w", err)
	}
	return nil
}

func (s *Store) Path() string { return s.path }

// InsertBatch writes all records in one transaction; bbolt fsyncs on commit,
// so a nil return means every record is on disk.
func (s *Store) InsertBatch(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		for _, r := range records {
			val, err := msgpack.Marshal(&r)
			if err != nil {
				return fmt.Errorf("encode record %s: %w", r.ID, err)
			}
			if err := b.Put([]byte(r.ID), val); err != nil {
				return fmt.Errorf("put record %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

// Search is a full linear scan. Undecodable records are skipped.
func (s *Store) Search(ctx context.Context, query []float32, limit int) ([]vector.Result, error) {
	var all []vector.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordsBucket).ForEach(func(k, v []byte) error {
			var r vector.Record
			if err := msgpack.Unmarshal(v, &r); err != nil {
				slog.WarnContext(ctx, "skipping undecodable record", "id", string(k), "error", err)
				return nil
			}
			all = append(all, r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return vector.Rank(all, query, limit), nil
}

func (s *Store) DeleteBySource(ctx context.Context, sourceURL string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(recordsBucket)

		var doomed [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var r struct {
				SourceURL string `msgpack:"source_url"`
			}
			if err := msgpack.Unmarshal(v, &r); err != nil {
				slog.WarnContext(ctx, "skipping undecodable record", "id", string(k), "error", err)
				return nil
			}
			if r.SourceURL == sourceURL {
				doomed = append(doomed, bytes.Clone(k))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("delete record %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *Store) Count(_ context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(recordsBucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *Store) Close() error {
	err := s.db.Close()
	if s.tempDir != "" {
		if rmErr := os.RemoveAll(s.tempDir); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}
