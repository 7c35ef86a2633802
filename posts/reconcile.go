package posts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"inkwell/files"
	"inkwell/models"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrMediaResolution = errors.New("upload not found in batch")
	ErrInvalidDelta    = errors.New("invalid block delta")

	// ErrOrderConflict is reserved for strict order validation; colliding
	// orders are currently resolved by renumbering instead of rejected.
	ErrOrderConflict = errors.New("order conflict")
)

// DeltaError reports the failure of a single delta. Sibling deltas in the
// same batch still apply.
type DeltaError struct {
	Index   int                `json:"index"`
	Action  models.DeltaAction `json:"action"`
	BlockID string             `json:"blockId,omitempty"`
	Message string             `json:"message"`
	Err     error              `json:"-"`
}

// BlockStore persists a post's block sequence.
type BlockStore interface {
	ListByPost(ctx context.Context, postID string) ([]models.Block, error)
	Insert(ctx context.Context, b models.Block) error
	Update(ctx context.Context, b models.Block) error
	Delete(ctx context.Context, id string) error
	DeleteByPost(ctx context.Context, postID string) error
	SetOrder(ctx context.Context, id string, order int) error
}

// MediaManager is the slice of the files service the engine needs.
type MediaManager interface {
	Attach(ctx context.Context, up files.Upload) (models.Media, error)
	Replace(ctx context.Context, oldID *string, up *files.Upload) (*models.Media, error)
	Release(ctx context.Context, mediaID string) error
}

// Engine applies block delta batches against a post. Batches for the same
// post are serialized; different posts reconcile independently.
type Engine struct {
	store BlockStore
	media MediaManager
	locks keyedLocks
}

func NewEngine(store BlockStore, media MediaManager) *Engine {
	return &Engine{store: store, media: media}
}

// Blocks returns the post's current block sequence, ordered.
func (e *Engine) Blocks(ctx context.Context, postID string) ([]models.Block, error) {
	return e.store.ListByPost(ctx, postID)
}

// Reconcile applies deltas in a fixed pass order: deletes, updates, creates,
// then a stable renumber to 1..N. A failing delta is reported in the returned
// list without rolling back its siblings.
func (e *Engine) Reconcile(ctx context.Context, postID string, deltas []models.BlockDelta, uploads files.UploadBatch) ([]models.Block, []DeltaError, error) {
	lock := e.locks.get(postID)
	lock.Lock()
	defer lock.Unlock()

	current, err := e.store.ListByPost(ctx, postID)
	if err != nil {
		return nil, nil, err
	}

	working := make([]models.Block, len(current))
	copy(working, current)

	var errs []DeltaError
	fail := func(i int, d models.BlockDelta, err error) {
		errs = append(errs, DeltaError{Index: i, Action: d.Action, BlockID: d.BlockID, Message: err.Error(), Err: err})
	}

	deleted := make(map[string]bool)

	// Deletes first: a delete always wins over a sibling update, and deleting
	// an unknown block is a no-op so clients can resubmit a batch.
	for i, d := range deltas {
		if d.Action != models.DeltaDelete {
			continue
		}
		idx := indexOf(working, d.BlockID)
		if idx < 0 {
			continue
		}
		b := working[idx]
		if err := e.store.Delete(ctx, b.ID); err != nil {
			fail(i, d, err)
			continue
		}
		if b.MediaID != nil {
			if err := e.media.Release(ctx, *b.MediaID); err != nil {
				log.Printf("release media %s of block %s: %v", *b.MediaID, b.ID, err)
			}
		}
		working = append(working[:idx], working[idx+1:]...)
		deleted[b.ID] = true
	}

	// Updates: absent fields stay untouched. A present FileRef always means
	// replace; an explicit empty FileRef clears the block's media. A failing
	// delta applies none of its edits.
	for i, d := range deltas {
		if d.Action != models.DeltaUpdate {
			continue
		}
		if deleted[d.BlockID] {
			fail(i, d, fmt.Errorf("%w: block %s deleted in same batch", ErrNotFound, d.BlockID))
			continue
		}
		idx := indexOf(working, d.BlockID)
		if idx < 0 {
			fail(i, d, fmt.Errorf("%w: block %s", ErrNotFound, d.BlockID))
			continue
		}
		b := working[idx]
		if d.Kind != nil {
			b.Kind = *d.Kind
		}
		if d.Content != nil {
			b.Content = *d.Content
		}
		if d.Order != nil {
			b.Order = *d.Order
		}
		if d.FileRef != nil {
			if *d.FileRef == "" {
				if _, err := e.media.Replace(ctx, b.MediaID, nil); err != nil {
					fail(i, d, err)
					continue
				}
				b.MediaID = nil
			} else if up, ok := uploads.ByRef(*d.FileRef); !ok {
				fail(i, d, fmt.Errorf("%w: %q", ErrMediaResolution, *d.FileRef))
				continue
			} else if m, err := e.media.Replace(ctx, b.MediaID, &up); err != nil {
				fail(i, d, err)
				continue
			} else {
				b.MediaID = &m.ID
			}
		}
		if err := e.store.Update(ctx, b); err != nil {
			fail(i, d, err)
			continue
		}
		working[idx] = b
	}

	// Creates last, appended after the survivors so stable renumbering keeps
	// existing blocks ahead on order ties.
	for i, d := range deltas {
		if d.Action != models.DeltaCreate {
			continue
		}
		if d.Kind == nil {
			fail(i, d, fmt.Errorf("%w: missing kind", ErrInvalidDelta))
			continue
		}
		b := models.Block{ID: uuid.New().String(), PostID: postID, Kind: *d.Kind}
		if d.Content != nil {
			b.Content = *d.Content
		}
		if d.Order != nil {
			b.Order = *d.Order
		} else {
			b.Order = len(working) + 1
		}
		if d.FileRef != nil && *d.FileRef != "" {
			up, ok := uploads.ByRef(*d.FileRef)
			if !ok {
				fail(i, d, fmt.Errorf("%w: %q", ErrMediaResolution, *d.FileRef))
				continue
			}
			m, err := e.media.Attach(ctx, up)
			if err != nil {
				fail(i, d, err)
				continue
			}
			b.MediaID = &m.ID
		}
		if err := e.store.Insert(ctx, b); err != nil {
			if b.MediaID != nil {
				if rerr := e.media.Release(ctx, *b.MediaID); rerr != nil {
					log.Printf("release media %s of failed create: %v", *b.MediaID, rerr)
				}
			}
			fail(i, d, err)
			continue
		}
		working = append(working, b)
	}

	e.renumber(ctx, working)

	return working, errs, nil
}

// Cascade removes every block of a post together with owned media.
func (e *Engine) Cascade(ctx context.Context, postID string) error {
	lock := e.locks.get(postID)
	lock.Lock()
	defer lock.Unlock()

	blocks, err := e.store.ListByPost(ctx, postID)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if b.MediaID != nil {
			if err := e.media.Release(ctx, *b.MediaID); err != nil {
				log.Printf("release media %s of block %s: %v", *b.MediaID, b.ID, err)
			}
		}
	}
	return e.store.DeleteByPost(ctx, postID)
}

// renumber assigns 1..N by submitted order. The sort is stable so ties keep
// their relative position in the working set.
func (e *Engine) renumber(ctx context.Context, blocks []models.Block) {
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Order < blocks[j].Order })
	for i := range blocks {
		want := i + 1
		if blocks[i].Order == want {
			continue
		}
		blocks[i].Order = want
		if err := e.store.SetOrder(ctx, blocks[i].ID, want); err != nil {
			log.Printf("renumber block %s: %v", blocks[i].ID, err)
		}
	}
}

func indexOf(blocks []models.Block, id string) int {
	for i := range blocks {
		if blocks[i].ID == id {
			return i
		}
	}
	return -1
}

type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (k *keyedLocks) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.m == nil {
		k.m = make(map[string]*sync.Mutex)
	}
	l, ok := k.m[key]
	if !ok {
		l = &sync.Mutex{}
		k.m[key] = l
	}
	return l
}
