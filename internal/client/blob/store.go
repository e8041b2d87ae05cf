// Package blob stores photo attachments outside the record queue. Records
// reference blobs by id and never embed them; a blob is deleted only after
// the record that owns it is confirmed delivered, at which point the payload
// has been inlined into the outbound request and the local copy is dropped.
//
// The store is persisted independently of the KV store, so after a crash the
// two can disagree: an orphan blob that nothing references is an accepted
// leak, not a correctness problem.
package blob

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/ecodata/fieldsync/internal/common"
)

// sequenceBandwidth is how many ids a badger sequence leases at a time.
// Crashing leaks at most this many ids; ids stay strictly increasing.
const sequenceBandwidth = 64

var (
	payloadPrefix = []byte("photo/")
	metaPrefix    = []byte("photo_at/")
)

// Store is a badger-backed attachment store with store-assigned,
// monotonically increasing ids. Blobs are immutable once written.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens (creating if needed) the attachment store in dir.
func Open(dir string) (*Store, error) {
	return open(badger.DefaultOptions(dir).WithLogger(nil))
}

// OpenInMemory opens a store that vanishes on Close. Used by tests.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	seq, err := db.GetSequence([]byte("blob_seq"), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blob id sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

// Put assigns a fresh id and stores the payload together with its capture
// time. Storage exhaustion is reported as common.ErrQuotaExceeded.
func (s *Store) Put(ctx context.Context, payload []byte) (uint64, error) {
	id, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next blob id: %w", err)
	}

	capturedAt, err := time.Now().UTC().MarshalBinary()
	if err != nil {
		return 0, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(payloadKey(id), payload); err != nil {
			return err
		}
		return txn.Set(metaKey(id), capturedAt)
	})
	if err != nil {
		return 0, mapQuotaErr(fmt.Errorf("store blob %d: %w", id, err))
	}
	return id, nil
}

// Get returns the payload for id, or common.ErrNotFound.
func (s *Store) Get(ctx context.Context, id uint64) ([]byte, error) {
	var payload []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(payloadKey(id))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("blob %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %d: %w", id, err)
	}
	return payload, nil
}

// CapturedAt returns when the blob was stored, or common.ErrNotFound.
func (s *Store) CapturedAt(ctx context.Context, id uint64) (time.Time, error) {
	var ts time.Time
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return ts.UnmarshalBinary(val)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return time.Time{}, fmt.Errorf("blob %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read blob %d meta: %w", id, err)
	}
	return ts, nil
}

// Delete removes the blob. Deleting an absent id is not an error.
func (s *Store) Delete(ctx context.Context, id uint64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(payloadKey(id)); err != nil {
			return err
		}
		return txn.Delete(metaKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete blob %d: %w", id, err)
	}
	return nil
}

func payloadKey(id uint64) []byte {
	return appendID(payloadPrefix, id)
}

func metaKey(id uint64) []byte {
	return appendID(metaPrefix, id)
}

func appendID(prefix []byte, id uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], id)
	return key
}

func mapQuotaErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "no space left") || errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("%w: %v", common.ErrQuotaExceeded, err)
	}
	return err
}
