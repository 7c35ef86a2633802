package mixins

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/models"
)

type fakeMixinStore struct {
	settings map[string]models.MixinSetting
	mixins   map[string][]models.Mixin
}

func (f *fakeMixinStore) Setting(_ context.Context, concatType string) (models.MixinSetting, error) {
	s, ok := f.settings[concatType]
	if !ok {
		return models.MixinSetting{}, ErrInvalidConcatType
	}
	return s, nil
}

func (f *fakeMixinStore) Visible(_ context.Context, concatType string, skip, limit int64) ([]models.Mixin, error) {
	pool := make([]models.Mixin, len(f.mixins[concatType]))
	copy(pool, f.mixins[concatType])
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].OrderPercentage != pool[j].OrderPercentage {
			return pool[i].OrderPercentage > pool[j].OrderPercentage
		}
		return pool[i].ID < pool[j].ID
	})

	if skip >= int64(len(pool)) {
		return nil, nil
	}
	pool = pool[skip:]
	if limit < int64(len(pool)) {
		pool = pool[:limit]
	}
	return pool, nil
}

func storeWithPool(concatType string, amountPerPage int, percentages ...int) *fakeMixinStore {
	store := &fakeMixinStore{
		settings: map[string]models.MixinSetting{
			concatType: {ID: "s1", ConcatType: concatType, AmountPerPage: amountPerPage},
		},
		mixins: map[string][]models.Mixin{},
	}
	for i, p := range percentages {
		store.mixins[concatType] = append(store.mixins[concatType], models.Mixin{
			ID:              string(rune('a' + i)),
			ConcatTypes:     []string{concatType},
			OrderPercentage: p,
			Status:          models.MixinVisible,
		})
	}
	return store
}

func TestWeavePagesAreDisjoint(t *testing.T) {
	store := storeWithPool("news", 2, 90, 80, 70, 60, 50)
	weaver := NewWeaver(store)

	var seen []string
	for page := int64(1); page <= 3; page++ {
		mixins, err := weaver.Weave(context.Background(), "news", page)
		require.NoError(t, err)
		for _, m := range mixins {
			assert.NotContains(t, seen, m.ID)
			seen = append(seen, m.ID)
		}
	}
	assert.Len(t, seen, 5)

	empty, err := weaver.Weave(context.Background(), "news", 4)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestWeaveOrdersByPercentageDesc(t *testing.T) {
	store := storeWithPool("news", 3, 50, 90, 70)
	weaver := NewWeaver(store)

	mixins, err := weaver.Weave(context.Background(), "news", 1)
	require.NoError(t, err)
	require.Len(t, mixins, 3)
	assert.Equal(t, 90, mixins[0].OrderPercentage)
	assert.Equal(t, 70, mixins[1].OrderPercentage)
	assert.Equal(t, 50, mixins[2].OrderPercentage)
}

func TestWeaveTieBreaksByID(t *testing.T) {
	store := storeWithPool("news", 3, 80, 80, 80)
	weaver := NewWeaver(store)

	mixins, err := weaver.Weave(context.Background(), "news", 1)
	require.NoError(t, err)
	require.Len(t, mixins, 3)
	assert.Equal(t, "a", mixins[0].ID)
	assert.Equal(t, "b", mixins[1].ID)
	assert.Equal(t, "c", mixins[2].ID)
}

func TestWeaveUnknownConcatType(t *testing.T) {
	weaver := NewWeaver(storeWithPool("news", 2, 90))

	_, err := weaver.Weave(context.Background(), "sports", 1)
	assert.ErrorIs(t, err, ErrInvalidConcatType)
}

func TestWeaveClampsPage(t *testing.T) {
	store := storeWithPool("news", 2, 90, 80)
	weaver := NewWeaver(store)

	first, err := weaver.Weave(context.Background(), "news", 1)
	require.NoError(t, err)
	clamped, err := weaver.Weave(context.Background(), "news", 0)
	require.NoError(t, err)
	assert.Equal(t, first, clamped)
}
