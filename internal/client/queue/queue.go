// Package queue persists the per-form-type submission queues. Each queue is
// one JSON array under a single KV key, replaced as a whole on every write;
// order is insertion order and delivery processes oldest-first.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ecodata/fieldsync/internal/client/models"
	"github.com/ecodata/fieldsync/internal/client/storage"
)

type Store struct {
	kv storage.KV
}

func NewStore(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// Enqueue appends the record to its form type's queue. The append runs as an
// atomic read-modify-write so a sync pass committing at the same time cannot
// clobber it.
func (s *Store) Enqueue(ctx context.Context, rec *models.Record) error {
	key := storage.QueueKey(rec.FormType)
	return s.kv.Update(ctx, key, func(old []byte) ([]byte, error) {
		records, err := decode(old)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
		return encode(records)
	})
}

// List returns a snapshot of the queue in insertion order. The snapshot is
// read-only: the persisted queue may change while the caller holds it.
func (s *Store) List(ctx context.Context, formType models.FormType) ([]models.Record, error) {
	raw, err := s.kv.Get(ctx, storage.QueueKey(formType))
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

// Count reports how many records are pending for the form type.
func (s *Store) Count(ctx context.Context, formType models.FormType) (int, error) {
	records, err := s.List(ctx, formType)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Counts reports pending counts for every form type.
func (s *Store) Counts(ctx context.Context) (map[models.FormType]int, error) {
	out := make(map[models.FormType]int, len(models.AllFormTypes))
	for _, ft := range models.AllFormTypes {
		n, err := s.Count(ctx, ft)
		if err != nil {
			return nil, err
		}
		out[ft] = n
	}
	return out, nil
}

// ReplaceAll overwrites the stored queue. An empty slice removes the key
// entirely. Callers that hold a stale snapshot must use RemoveDelivered
// instead, otherwise records enqueued since the snapshot would be lost.
func (s *Store) ReplaceAll(ctx context.Context, formType models.FormType, records []models.Record) error {
	key := storage.QueueKey(formType)
	if len(records) == 0 {
		return s.kv.Delete(ctx, key)
	}
	raw, err := encode(records)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, raw)
}

// RemoveDelivered commits the outcome of a sync pass: it removes exactly the
// named records from the queue as persisted right now, by form id. Records
// enqueued after the pass snapshotted the queue are untouched, and the
// surviving records keep their relative order.
func (s *Store) RemoveDelivered(ctx context.Context, formType models.FormType, formIDs []string) error {
	if len(formIDs) == 0 {
		return nil
	}
	delivered := make(map[string]struct{}, len(formIDs))
	for _, id := range formIDs {
		delivered[id] = struct{}{}
	}

	key := storage.QueueKey(formType)
	return s.kv.Update(ctx, key, func(old []byte) ([]byte, error) {
		records, err := decode(old)
		if err != nil {
			return nil, err
		}
		remaining := records[:0]
		for _, rec := range records {
			if _, ok := delivered[rec.FormID]; ok {
				continue
			}
			remaining = append(remaining, rec)
		}
		if len(remaining) == 0 {
			return nil, nil
		}
		return encode(remaining)
	})
}

// SetTrail replaces the location trail of a queued record in place, searching
// every form type's queue. Returns false when no queue holds the record, i.e.
// it was already delivered and the caller must patch the server instead.
func (s *Store) SetTrail(ctx context.Context, formID string, trail []models.LocationSample) (bool, error) {
	for _, ft := range models.AllFormTypes {
		records, err := s.List(ctx, ft)
		if err != nil {
			return false, err
		}
		idx := -1
		for i, rec := range records {
			if rec.FormID == formID {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}

		found := false
		err = s.kv.Update(ctx, storage.QueueKey(ft), func(old []byte) ([]byte, error) {
			records, err := decode(old)
			if err != nil {
				return nil, err
			}
			for i := range records {
				if records[i].FormID == formID {
					records[i].LocationTrail = trail
					found = true
				}
			}
			return encode(records)
		})
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

// Contains reports whether any queue still holds the record.
func (s *Store) Contains(ctx context.Context, formID string) (bool, error) {
	for _, ft := range models.AllFormTypes {
		records, err := s.List(ctx, ft)
		if err != nil {
			return false, err
		}
		for _, rec := range records {
			if rec.FormID == formID {
				return true, nil
			}
		}
	}
	return false, nil
}

// Clear drops every record for the form type.
func (s *Store) Clear(ctx context.Context, formType models.FormType) error {
	return s.kv.Delete(ctx, storage.QueueKey(formType))
}

func decode(raw []byte) ([]models.Record, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var records []models.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("corrupt queue: %w", err)
	}
	return records, nil
}

func encode(records []models.Record) ([]byte, error) {
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode queue: %w", err)
	}
	return raw, nil
}
