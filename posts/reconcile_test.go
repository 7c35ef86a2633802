package posts

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/files"
	"inkwell/models"
)

type fakeBlockStore struct {
	blocks    []models.Block
	insertErr error
}

func (f *fakeBlockStore) ListByPost(_ context.Context, postID string) ([]models.Block, error) {
	var out []models.Block
	for _, b := range f.blocks {
		if b.PostID == postID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBlockStore) Insert(_ context.Context, b models.Block) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.blocks = append(f.blocks, b)
	return nil
}

func (f *fakeBlockStore) Update(_ context.Context, b models.Block) error {
	for i := range f.blocks {
		if f.blocks[i].ID == b.ID {
			f.blocks[i] = b
			return nil
		}
	}
	return errors.New("missing block")
}

func (f *fakeBlockStore) Delete(_ context.Context, id string) error {
	for i := range f.blocks {
		if f.blocks[i].ID == id {
			f.blocks = append(f.blocks[:i], f.blocks[i+1:]...)
			return nil
		}
	}
	return errors.New("missing block")
}

func (f *fakeBlockStore) DeleteByPost(_ context.Context, postID string) error {
	kept := f.blocks[:0]
	for _, b := range f.blocks {
		if b.PostID != postID {
			kept = append(kept, b)
		}
	}
	f.blocks = kept
	return nil
}

func (f *fakeBlockStore) SetOrder(_ context.Context, id string, order int) error {
	for i := range f.blocks {
		if f.blocks[i].ID == id {
			f.blocks[i].Order = order
			return nil
		}
	}
	return errors.New("missing block")
}

func (f *fakeBlockStore) byID(id string) (models.Block, bool) {
	for _, b := range f.blocks {
		if b.ID == id {
			return b, true
		}
	}
	return models.Block{}, false
}

type fakeMedia struct {
	attached  int
	released  []string
	attachErr error
}

func (f *fakeMedia) Attach(_ context.Context, up files.Upload) (models.Media, error) {
	if f.attachErr != nil {
		return models.Media{}, f.attachErr
	}
	f.attached++
	return models.Media{ID: "media-" + up.Ref}, nil
}

func (f *fakeMedia) Replace(ctx context.Context, oldID *string, up *files.Upload) (*models.Media, error) {
	if up == nil {
		if oldID != nil {
			f.released = append(f.released, *oldID)
		}
		return nil, nil
	}
	m, err := f.Attach(ctx, *up)
	if err != nil {
		return nil, err
	}
	if oldID != nil {
		f.released = append(f.released, *oldID)
	}
	return &m, nil
}

func (f *fakeMedia) Release(_ context.Context, mediaID string) error {
	f.released = append(f.released, mediaID)
	return nil
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func kindPtr(k models.BlockKind) *models.BlockKind { return &k }

func seeded(postID string, orders ...int) *fakeBlockStore {
	store := &fakeBlockStore{}
	for i, o := range orders {
		store.blocks = append(store.blocks, models.Block{
			ID:     fmt.Sprintf("b%d", i+1),
			PostID: postID,
			Order:  o,
			Kind:   models.BlockRichText,
		})
	}
	return store
}

func TestReconcileCreatesAndRenumbers(t *testing.T) {
	store := &fakeBlockStore{}
	engine := NewEngine(store, &fakeMedia{})

	blocks, deltaErrs, err := engine.Reconcile(context.Background(), "p1", []models.BlockDelta{
		{Action: models.DeltaCreate, Kind: kindPtr(models.BlockRichText), Content: strPtr("five"), Order: intPtr(5)},
		{Action: models.DeltaCreate, Kind: kindPtr(models.BlockRichText), Content: strPtr("two"), Order: intPtr(2)},
		{Action: models.DeltaCreate, Kind: kindPtr(models.BlockRichText), Content: strPtr("tail")},
	}, nil)
	require.NoError(t, err)
	require.Empty(t, deltaErrs)
	require.Len(t, blocks, 3)

	// renumbered to a dense 1..N by submitted order
	assert.Equal(t, "two", blocks[0].Content)
	assert.Equal(t, "tail", blocks[1].Content)
	assert.Equal(t, "five", blocks[2].Content)
	for i, b := range blocks {
		assert.Equal(t, i+1, b.Order)
	}
}

func TestReconcileDeleteThenCreateAtHead(t *testing.T) {
	store := seeded("p1", 1, 2)
	engine := NewEngine(store, &fakeMedia{})

	blocks, deltaErrs, err := engine.Reconcile(context.Background(), "p1", []models.BlockDelta{
		{Action: models.DeltaDelete, BlockID: "b1"},
		{Action: models.DeltaCreate, Kind: kindPtr(models.BlockRichText), Content: strPtr("new head"), Order: intPtr(1)},
	}, nil)
	require.NoError(t, err)
	require.Empty(t, deltaErrs)
	require.Len(t, blocks, 2)

	assert.Equal(t, "new head", blocks[0].Content)
	assert.Equal(t, 1, blocks[0].Order)
	assert.Equal(t, "b2", blocks[1].ID)
	assert.Equal(t, 2, blocks[1].Order)
}

func TestReconcileSurvivorWinsOrderTie(t *testing.T) {
	store := seeded("p1", 1, 2)
	engine := NewEngine(store, &fakeMedia{})

	blocks, deltaErrs, err := engine.Reconcile(context.Background(), "p1", []models.BlockDelta{
		{Action: models.DeltaCreate, Kind: kindPtr(models.BlockRichText), Content: strPtr("tied"), Order: intPtr(2)},
	}, nil)
	require.NoError(t, err)
	require.Empty(t, deltaErrs)
	require.Len(t, blocks, 3)

	// the existing block keeps its slot, the newcomer lands after it
	assert.Equal(t, "b1", blocks[0].ID)
	assert.Equal(t, "b2", blocks[1].ID)
	assert.Equal(t, "tied", blocks[2].Content)
	assert.Equal(t, 3, blocks[2].Order)
}

func TestReconcileDeleteWinsOverUpdate(t *testing.T) {
	store := seeded("p1", 1)
	engine := NewEngine(store, &fakeMedia{})

	blocks, deltaErrs, err := engine.Reconcile(context.Background(), "p1", []models.BlockDelta{
		{Action: models.DeltaUpdate, BlockID: "b1", Content: strPtr("edited")},
		{Action: models.DeltaDelete, BlockID: "b1"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, deltaErrs, 1)
	assert.Equal(t, models.DeltaUpdate, deltaErrs[0].Action)
	assert.ErrorIs(t, deltaErrs[0].Err, ErrNotFound)
	assert.Empty(t, blocks)
	_, exists := store.byID("b1")
	assert.False(t, exists)
}

func TestReconcileDeleteUnknownIsNoop(t *testing.T) {
	store := seeded("p1", 1)
	engine := NewEngine(store, &fakeMedia{})

	blocks, deltaErrs, err := engine.Reconcile(context.Background(), "p1", []models.BlockDelta{
		{Action: models.DeltaDelete, BlockID: "ghost"},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, deltaErrs)
	assert.Len(t, blocks, 1)
}

func TestReconcileDeleteReleasesBlockMedia(t *testing.T) {
	store := seeded("p1", 1)
	store.blocks[0].MediaID = strPtr("m1")
	media := &fakeMedia{}
	engine := NewEngine(store, media)

	_, deltaErrs, err := engine.Reconcile(context.Background(), "p1", []models.BlockDelta{
		{Action: models.DeltaDelete, BlockID: "b1"},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, deltaErrs)
	assert.Equal(t, []string{"m1"}, media.released)
}

func TestReconcileUpdateClearsMedia(t *testing.T) {
	store := seeded("p1", 1)
	store.blocks[0].MediaID = strPtr("m1")
	media := &fakeMedia{}
	engine := NewEngine(store, media)

	blocks, deltaErrs, err := engine.Reconcile(context.Background(), "p1", []models.BlockDelta{
		{Action: models.DeltaUpdate, BlockID: "b1", FileRef: strPtr("")},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, deltaErrs)
	assert.Nil(t, blocks[0].MediaID)
	assert.Equal(t, []string{"m1"}, media.released)
}

func TestReconcileFailedUpdateDeltaAppliesNothing(t *testing.T) {
	store := seeded("p1", 1)
	store.blocks[0].Content = "original"
	engine := NewEngine(store, &fakeMedia{})

	blocks, deltaErrs, err := engine.Reconcile(context.Background(), "p1", []models.BlockDelta{
		{Action: models.DeltaUpdate, BlockID: "b1", Content: strPtr("edited"), FileRef: strPtr("nope")},
	}, nil)
	require.NoError(t, err)
	require.Len(t, deltaErrs, 1)
	assert.ErrorIs(t, deltaErrs[0].Err, ErrMediaResolution)

	// none of the delta's edits landed
	assert.Equal(t, "original", blocks[0].Content)
	persisted, ok := store.byID("b1")
	require.True(t, ok)
	assert.Equal(t, "original", persisted.Content)
}

func TestReconcileUpdateReplacesMedia(t *testing.T) {
	store := seeded("p1", 1)
	store.blocks[0].MediaID = strPtr("m1")
	media := &fakeMedia{}
	engine := NewEngine(store, media)

	uploads := files.UploadBatch{{Ref: "cover", Name: "cover.bin", MimeType: "application/octet-stream"}}
	blocks, deltaErrs, err := engine.Reconcile(context.Background(), "p1", []models.BlockDelta{
		{Action: models.DeltaUpdate, BlockID: "b1", FileRef: strPtr("cover")},
	}, uploads)
	require.NoError(t, err)
	assert.Empty(t, deltaErrs)
	require.NotNil(t, blocks[0].MediaID)
	assert.Equal(t, "media-cover", *blocks[0].MediaID)
	assert.Equal(t, []string{"m1"}, media.released)
}

func TestReconcilePartialBatchOnMissingUpload(t *testing.T) {
	store := &fakeBlockStore{}
	engine := NewEngine(store, &fakeMedia{})

	blocks, deltaErrs, err := engine.Reconcile(context.Background(), "p1", []models.BlockDelta{
		{Action: models.DeltaCreate, Kind: kindPtr(models.BlockMedia), FileRef: strPtr("nope")},
		{Action: models.DeltaCreate, Kind: kindPtr(models.BlockRichText), Content: strPtr("still here")},
	}, nil)
	require.NoError(t, err)
	require.Len(t, deltaErrs, 1)
	assert.ErrorIs(t, deltaErrs[0].Err, ErrMediaResolution)
	assert.Equal(t, 0, deltaErrs[0].Index)

	require.Len(t, blocks, 1)
	assert.Equal(t, "still here", blocks[0].Content)
	assert.Equal(t, 1, blocks[0].Order)
}

func TestReconcileCreateMissingKind(t *testing.T) {
	engine := NewEngine(&fakeBlockStore{}, &fakeMedia{})

	blocks, deltaErrs, err := engine.Reconcile(context.Background(), "p1", []models.BlockDelta{
		{Action: models.DeltaCreate, Content: strPtr("kindless")},
	}, nil)
	require.NoError(t, err)
	require.Len(t, deltaErrs, 1)
	assert.ErrorIs(t, deltaErrs[0].Err, ErrInvalidDelta)
	assert.Empty(t, blocks)
}

func TestReconcileInsertFailureReleasesAttachedMedia(t *testing.T) {
	store := &fakeBlockStore{insertErr: errors.New("db down")}
	media := &fakeMedia{}
	engine := NewEngine(store, media)

	uploads := files.UploadBatch{{Ref: "pic", Name: "pic.bin"}}
	_, deltaErrs, err := engine.Reconcile(context.Background(), "p1", []models.BlockDelta{
		{Action: models.DeltaCreate, Kind: kindPtr(models.BlockMedia), FileRef: strPtr("pic")},
	}, uploads)
	require.NoError(t, err)
	require.Len(t, deltaErrs, 1)
	assert.Equal(t, []string{"media-pic"}, media.released)
}

func TestKeyedLocksPerPost(t *testing.T) {
	var locks keyedLocks
	a := locks.get("p1")
	b := locks.get("p2")
	assert.NotSame(t, a, b)
	assert.Same(t, a, locks.get("p1"))
}

func TestCascadeReleasesAllBlockMedia(t *testing.T) {
	store := seeded("p1", 1, 2)
	store.blocks[0].MediaID = strPtr("m1")
	store.blocks[1].MediaID = strPtr("m2")
	media := &fakeMedia{}
	engine := NewEngine(store, media)

	require.NoError(t, engine.Cascade(context.Background(), "p1"))
	assert.Empty(t, store.blocks)
	assert.ElementsMatch(t, []string{"m1", "m2"}, media.released)
}
