package mixins

import (
	"context"
	"errors"

	"inkwell/models"
)

var (
	ErrNotFound          = errors.New("mixin not found")
	ErrInvalidConcatType = errors.New("invalid mixin concat type")
)

// MixinStore reads mixin candidates and per-context settings.
type MixinStore interface {
	// Setting returns ErrInvalidConcatType when no setting exists for the
	// context.
	Setting(ctx context.Context, concatType string) (models.MixinSetting, error)
	// Visible returns VISIBLE mixins for the context ordered by
	// orderPercentage descending, ties by ID ascending.
	Visible(ctx context.Context, concatType string, skip, limit int64) ([]models.Mixin, error)
}

// Weaver computes the mixins for one page of a listing context. Mixin
// pagination runs on its own amountPerPage cadence, so page p and page p+1
// never share an item over a stable candidate pool.
type Weaver struct {
	store MixinStore
}

func NewWeaver(store MixinStore) *Weaver {
	return &Weaver{store: store}
}

func (w *Weaver) Weave(ctx context.Context, concatType string, page int64) ([]models.Mixin, error) {
	if page < 1 {
		page = 1
	}
	setting, err := w.store.Setting(ctx, concatType)
	if err != nil {
		return nil, err
	}
	skip := (page - 1) * int64(setting.AmountPerPage)
	return w.store.Visible(ctx, concatType, skip, int64(setting.AmountPerPage))
}
