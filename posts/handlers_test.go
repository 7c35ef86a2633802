package posts

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/files"
	"inkwell/models"
)

type memObjects struct {
	objects map[string][]byte
}

func (m *memObjects) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memObjects) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blobs.test/" + key, nil
}

type memMediaStore struct {
	records map[string]models.Media
}

func (m *memMediaStore) Insert(_ context.Context, media models.Media) error {
	m.records[media.ID] = media
	return nil
}

func (m *memMediaStore) ByID(_ context.Context, id string) (models.Media, error) {
	media, ok := m.records[id]
	if !ok {
		return models.Media{}, files.ErrNotFound
	}
	return media, nil
}

func (m *memMediaStore) Delete(_ context.Context, id string) error {
	delete(m.records, id)
	return nil
}

func TestReleaseAttachedUndoesAttach(t *testing.T) {
	objects := &memObjects{objects: make(map[string][]byte)}
	store := &memMediaStore{records: make(map[string]models.Media)}
	h := &Handler{Files: files.NewService(store, objects)}

	m, err := h.Files.Attach(context.Background(), files.Upload{
		Ref: "cover", Name: "cover.bin", MimeType: "application/octet-stream", Data: []byte("x"),
	})
	require.NoError(t, err)
	require.Contains(t, store.records, m.ID)

	h.releaseAttached(context.Background(), &m.ID)
	assert.Empty(t, store.records)
	assert.Empty(t, objects.objects)
}

func TestReleaseAttachedNilIsNoop(t *testing.T) {
	h := &Handler{Files: files.NewService(
		&memMediaStore{records: make(map[string]models.Media)},
		&memObjects{objects: make(map[string][]byte)},
	)}
	h.releaseAttached(context.Background(), nil)
}
