package syncer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecodata/fieldsync/internal/client/models"
	"github.com/ecodata/fieldsync/internal/client/queue"
	"github.com/ecodata/fieldsync/internal/client/storage"
	"github.com/ecodata/fieldsync/internal/common"
	"github.com/ecodata/fieldsync/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeGate struct{ online bool }

func (g *fakeGate) Online() bool { return g.online }

type fakeBlobs struct {
	mu      sync.Mutex
	data    map[uint64][]byte
	getErr  error
	deleted []uint64
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{data: map[uint64][]byte{}}
}

func (b *fakeBlobs) Get(ctx context.Context, id uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return nil, b.getErr
	}
	v, ok := b.data[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return v, nil
}

func (b *fakeBlobs) Delete(ctx context.Context, id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, id)
	b.deleted = append(b.deleted, id)
	return nil
}

func setupEngine(t *testing.T, opts ...Option) (*Engine, *queue.Store, *fakeBlobs) {
	t.Helper()
	queues := queue.NewStore(storage.NewMemory(nil))
	blobs := newFakeBlobs()
	e := New(queues, blobs, &fakeGate{online: true}, testLogger(), opts...)
	return e, queues, blobs
}

func enqueueN(t *testing.T, queues *queue.Store, ft models.FormType, n int) []*models.Record {
	t.Helper()
	recs := make([]*models.Record, 0, n)
	for i := 0; i < n; i++ {
		rec := models.NewRecord(ft, map[string]string{"note": fmt.Sprintf("rec-%d", i)})
		require.NoError(t, queues.Enqueue(context.Background(), rec))
		recs = append(recs, rec)
	}
	return recs
}

func acceptAll(ctx context.Context, fields map[string]string) (*Receipt, error) {
	return &Receipt{}, nil
}

func TestSyncOne_Offline(t *testing.T) {
	queues := queue.NewStore(storage.NewMemory(nil))
	e := New(queues, newFakeBlobs(), &fakeGate{online: false}, testLogger())

	_, err := e.SyncOne(context.Background(), models.FormObservations, acceptAll)
	require.ErrorIs(t, err, common.ErrOffline)
}

func TestSyncOne_EmptyQueue(t *testing.T) {
	e, _, _ := setupEngine(t)

	res, err := e.SyncOne(context.Background(), models.FormObservations, acceptAll)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Delivered)
	assert.Empty(t, res.FailedRecords)
}

func TestSyncOne_DeliversOldestFirstAndEmptiesQueue(t *testing.T) {
	ctx := context.Background()
	e, queues, _ := setupEngine(t)
	enqueueN(t, queues, models.FormObservations, 3)

	var notes []string
	deliver := func(ctx context.Context, fields map[string]string) (*Receipt, error) {
		notes = append(notes, fields["note"])
		return &Receipt{}, nil
	}

	res, err := e.SyncOne(ctx, models.FormObservations, deliver)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Delivered)
	assert.Equal(t, []string{"rec-0", "rec-1", "rec-2"}, notes)

	n, err := queues.Count(ctx, models.FormObservations)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSyncOne_MidPassFailureKeepsOnlyFailedRecord(t *testing.T) {
	ctx := context.Background()
	e, queues, _ := setupEngine(t)
	recs := enqueueN(t, queues, models.FormObservations, 3)

	deliver := func(ctx context.Context, fields map[string]string) (*Receipt, error) {
		if fields["formId"] == recs[1].FormID {
			return nil, common.ErrApplication
		}
		return &Receipt{}, nil
	}

	res, err := e.SyncOne(ctx, models.FormObservations, deliver)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered)
	require.Len(t, res.FailedRecords, 1)
	assert.Equal(t, recs[1].FormID, res.FailedRecords[0].FormID)

	remaining, err := queues.List(ctx, models.FormObservations)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, recs[1].FormID, remaining[0].FormID)
}

func TestSyncOne_RecordEnqueuedMidPassSurvives(t *testing.T) {
	ctx := context.Background()
	e, queues, _ := setupEngine(t)
	enqueueN(t, queues, models.FormObservations, 2)

	var late *models.Record
	deliver := func(ctx context.Context, fields map[string]string) (*Receipt, error) {
		if late == nil {
			// A new submission lands while the pass is in flight.
			late = models.NewRecord(models.FormObservations, map[string]string{"note": "late"})
			require.NoError(t, queues.Enqueue(ctx, late))
		}
		return &Receipt{}, nil
	}

	res, err := e.SyncOne(ctx, models.FormObservations, deliver)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered)

	remaining, err := queues.List(ctx, models.FormObservations)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, late.FormID, remaining[0].FormID)
}

func TestSyncOne_InlinesPhotosAndDeletesBlobsOnSuccess(t *testing.T) {
	ctx := context.Background()
	e, queues, blobs := setupEngine(t)

	blobs.data[1] = []byte("jpeg-one")
	blobs.data[2] = []byte("jpeg-two")
	rec := models.NewRecord(models.FormDeerCull, map[string]string{"species": "fallow"})
	rec.AttachmentIDs = []uint64{1, 2}
	require.NoError(t, queues.Enqueue(ctx, rec))

	var photos string
	deliver := func(ctx context.Context, fields map[string]string) (*Receipt, error) {
		photos = fields["photos"]
		return &Receipt{}, nil
	}

	res, err := e.SyncOne(ctx, models.FormDeerCull, deliver)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)

	var decoded []string
	require.NoError(t, json.Unmarshal([]byte(photos), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("jpeg-one")), decoded[0])

	assert.ElementsMatch(t, []uint64{1, 2}, blobs.deleted)
}

func TestSyncOne_MissingBlobSendsRecordWithoutIt(t *testing.T) {
	ctx := context.Background()
	e, queues, blobs := setupEngine(t)

	blobs.data[1] = []byte("jpeg-one")
	rec := models.NewRecord(models.FormDeerCull, nil)
	rec.AttachmentIDs = []uint64{1, 99}
	require.NoError(t, queues.Enqueue(ctx, rec))

	var photos string
	deliver := func(ctx context.Context, fields map[string]string) (*Receipt, error) {
		photos = fields["photos"]
		return &Receipt{}, nil
	}

	res, err := e.SyncOne(ctx, models.FormDeerCull, deliver)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)

	var decoded []string
	require.NoError(t, json.Unmarshal([]byte(photos), &decoded))
	assert.Len(t, decoded, 1)
}

func TestSyncOne_BlobStoreErrorKeepsRecordQueued(t *testing.T) {
	ctx := context.Background()
	e, queues, blobs := setupEngine(t)

	blobs.getErr = errors.New("disk wedged")
	rec := models.NewRecord(models.FormDeerCull, nil)
	rec.AttachmentIDs = []uint64{1}
	require.NoError(t, queues.Enqueue(ctx, rec))

	delivered := false
	deliver := func(ctx context.Context, fields map[string]string) (*Receipt, error) {
		delivered = true
		return &Receipt{}, nil
	}

	res, err := e.SyncOne(ctx, models.FormDeerCull, deliver)
	require.NoError(t, err)
	assert.False(t, delivered)
	assert.Equal(t, 0, res.Delivered)
	require.Len(t, res.FailedRecords, 1)

	remaining, err := queues.List(ctx, models.FormDeerCull)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, []uint64{1}, remaining[0].AttachmentIDs)
}

func TestSyncOne_OutboundFieldsCarryTrailAndStamp(t *testing.T) {
	ctx := context.Background()
	stamp := func(ctx context.Context) map[string]string {
		return map[string]string{"username": "alice", "note": "must-not-override"}
	}
	e, queues, _ := setupEngine(t, WithStamp(stamp))

	rec := models.NewRecord(models.FormObservations, map[string]string{"note": "original"})
	rec.LocationTrail = []models.LocationSample{
		{Lat: -41.5, Lon: 173.25},
		{Lat: -41.6, Lon: 173.3},
	}
	require.NoError(t, queues.Enqueue(ctx, rec))

	var got map[string]string
	deliver := func(ctx context.Context, fields map[string]string) (*Receipt, error) {
		got = fields
		return &Receipt{}, nil
	}

	_, err := e.SyncOne(ctx, models.FormObservations, deliver)
	require.NoError(t, err)

	assert.Equal(t, rec.FormID, got["formId"])
	assert.Equal(t, "-41.5,173.25;-41.6,173.3", got["locationHistory"])
	assert.Equal(t, "alice", got["username"])
	assert.Equal(t, "original", got["note"])
	assert.NotEmpty(t, got["timestamp"])
}

func TestSyncOne_OnDeliveredHook(t *testing.T) {
	ctx := context.Background()
	var seen []string
	hook := func(ctx context.Context, rec models.Record, receipt *Receipt) {
		seen = append(seen, rec.FormID)
		assert.True(t, receipt.HasSignedIn)
	}
	e, queues, _ := setupEngine(t, WithOnDelivered(hook))

	recs := enqueueN(t, queues, models.FormSiteSignIn, 2)
	deliver := func(ctx context.Context, fields map[string]string) (*Receipt, error) {
		return &Receipt{HasSignedIn: true, PropertyName: "North Block"}, nil
	}

	_, err := e.SyncOne(ctx, models.FormSiteSignIn, deliver)
	require.NoError(t, err)
	assert.Equal(t, []string{recs[0].FormID, recs[1].FormID}, seen)
}

func TestSyncAll(t *testing.T) {
	ctx := context.Background()
	afterCalled := false
	e, queues, _ := setupEngine(t, WithAfterSync(func(ctx context.Context) { afterCalled = true }))

	enqueueN(t, queues, models.FormObservations, 2)
	enqueueN(t, queues, models.FormDeerCull, 1)

	delivers := map[models.FormType]DeliverFunc{
		models.FormObservations: acceptAll,
		models.FormDeerCull:     acceptAll,
	}

	results, err := e.SyncAll(ctx, delivers)
	require.NoError(t, err)
	assert.Equal(t, 2, results[models.FormObservations].Delivered)
	assert.Equal(t, 1, results[models.FormDeerCull].Delivered)
	assert.True(t, afterCalled)
}

func TestSyncAll_Offline(t *testing.T) {
	queues := queue.NewStore(storage.NewMemory(nil))
	e := New(queues, newFakeBlobs(), &fakeGate{online: false}, testLogger())

	_, err := e.SyncAll(context.Background(), map[models.FormType]DeliverFunc{
		models.FormObservations: acceptAll,
	})
	require.ErrorIs(t, err, common.ErrOffline)
}
