package tracker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ecodata/fieldsync/internal/client/models"
	"github.com/ecodata/fieldsync/internal/client/storage"
	"github.com/ecodata/fieldsync/internal/logging"
)

// PendingStore holds location-update patches that could not be pushed yet,
// one per form id. A newer update for the same form id replaces the older
// one; the trail is cumulative so only the latest matters.
type PendingStore struct {
	kv storage.KV
}

func NewPendingStore(kv storage.KV) *PendingStore {
	return &PendingStore{kv: kv}
}

func (p *PendingStore) Upsert(ctx context.Context, upd models.PendingLocationUpdate) error {
	return p.kv.Update(ctx, storage.KeyPendingLocationUpdates, func(old []byte) ([]byte, error) {
		updates, err := decodeUpdates(old)
		if err != nil {
			return nil, err
		}
		replaced := false
		for i := range updates {
			if updates[i].FormID == upd.FormID {
				updates[i] = upd
				replaced = true
				break
			}
		}
		if !replaced {
			updates = append(updates, upd)
		}
		return json.Marshal(updates)
	})
}

func (p *PendingStore) List(ctx context.Context) ([]models.PendingLocationUpdate, error) {
	raw, err := p.kv.Get(ctx, storage.KeyPendingLocationUpdates)
	if err != nil {
		return nil, err
	}
	return decodeUpdates(raw)
}

func (p *PendingStore) Remove(ctx context.Context, formID string) error {
	return p.kv.Update(ctx, storage.KeyPendingLocationUpdates, func(old []byte) ([]byte, error) {
		updates, err := decodeUpdates(old)
		if err != nil {
			return nil, err
		}
		remaining := updates[:0]
		for _, u := range updates {
			if u.FormID == formID {
				continue
			}
			remaining = append(remaining, u)
		}
		if len(remaining) == 0 {
			return nil, nil
		}
		return json.Marshal(remaining)
	})
}

// Drain attempts every pending update through the patch function, removing
// the ones that go through. Failed updates stay pending for the next drain.
func (p *PendingStore) Drain(ctx context.Context, patch PatchFunc, log logging.Logger) error {
	updates, err := p.List(ctx)
	if err != nil {
		return err
	}
	for _, upd := range updates {
		if err := patch(ctx, upd); err != nil {
			log.Warn(ctx, "location patch failed, update kept pending", "formId", upd.FormID, "error", err)
			continue
		}
		if err := p.Remove(ctx, upd.FormID); err != nil {
			return fmt.Errorf("removing patched update %s: %w", upd.FormID, err)
		}
	}
	return nil
}

func decodeUpdates(raw []byte) ([]models.PendingLocationUpdate, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var updates []models.PendingLocationUpdate
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("corrupt pending updates: %w", err)
	}
	return updates, nil
}
