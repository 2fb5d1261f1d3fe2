// Package store implements the linkspace storage engine: an append-only
// packet log, a unique hash index, and a composite ordered tree index, all
// held as buckets of a single bbolt environment (spec.md §4.2, §4.3).
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

var (
	bucketLog  = []byte("pktlog")
	bucketHash = []byte("hash")
	bucketTree = []byte("tree")
)

// Notifier publishes the store's new high-water recv mark after each
// commit (spec.md §4.2 step 5, §6 "Notification channel"). nil is a valid
// Notifier: commits simply publish nothing.
type Notifier interface {
	Publish(recv uint64)
}

type noopNotifier struct{}

func (noopNotifier) Publish(uint64) {}

// Store is one linkspace storage environment: the bbolt database plus its
// 8-byte environment id (spec.md §6 "Persistent state layout on disk").
type Store struct {
	db       *bbolt.DB
	envID    [8]byte
	notifier Notifier
	log      *logrus.Logger
}

// Open opens (creating if necessary) the environment directory dir,
// initializing its buckets and environment id file.
func Open(dir string, notifier Notifier, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if err := os.MkdirAll(filepath.Join(dir, "files"), 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir: %v", ErrIO, err)
	}

	envID, err := loadOrCreateEnvID(filepath.Join(dir, "id"))
	if err != nil {
		return nil, err
	}

	db, err := bbolt.Open(filepath.Join(dir, "data.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrEnvLocked, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketLog, bucketHash, bucketTree} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: init buckets: %v", ErrIO, err)
	}

	s := &Store{db: db, envID: envID, notifier: notifier, log: log}
	log.WithFields(logrus.Fields{"dir": dir, "env_id": fmt.Sprintf("%x", envID)}).Info("store: opened environment")
	return s, nil
}

// loadOrCreateEnvID reads the environment id file, creating it with a
// fresh id derived from a uuid if absent.
func loadOrCreateEnvID(path string) ([8]byte, error) {
	var id [8]byte
	b, err := os.ReadFile(path)
	if err == nil {
		if len(b) != 8 {
			return id, fmt.Errorf("%w: id file wrong size", ErrEnvMismatch)
		}
		copy(id[:], b)
		return id, nil
	}
	if !os.IsNotExist(err) {
		return id, fmt.Errorf("%w: read id: %v", ErrIO, err)
	}
	u := uuid.New()
	copy(id[:], u[:8])
	if err := os.WriteFile(path, id[:], 0o600); err != nil {
		return id, fmt.Errorf("%w: write id: %v", ErrIO, err)
	}
	return id, nil
}

// EnvID returns the environment's 8-byte id.
func (s *Store) EnvID() [8]byte { return s.envID }

// LogHead returns the highest recv committed to the Log, for
// instrumentation callers that don't otherwise need a snapshot reader.
func (s *Store) LogHead() uint64 {
	r, err := s.NewReader()
	if err != nil {
		return 0
	}
	defer r.Close()
	return r.LogHead()
}

// Close closes the underlying bbolt environment.
func (s *Store) Close() error {
	return s.db.Close()
}
