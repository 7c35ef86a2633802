package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"inkwell/models"
	"inkwell/rdx"
	"inkwell/utils"
)

var (
	ErrNotFound     = errors.New("media not found")
	ErrUploadFailed = errors.New("upload failed")
)

const urlTTL = 24 * time.Hour

// Upload is one in-memory file from a request batch. Ref is the symbolic
// handle assigned by the caller; deltas point at uploads through it, never
// by filename.
type Upload struct {
	Ref      string
	Name     string
	MimeType string
	Encoding string
	Data     []byte
}

type UploadBatch []Upload

func (b UploadBatch) ByRef(ref string) (Upload, bool) {
	for _, up := range b {
		if up.Ref == ref {
			return up, true
		}
	}
	return Upload{}, false
}

// ObjectStore is the blob side of media storage.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// MediaStore is the record side of media storage.
type MediaStore interface {
	Insert(ctx context.Context, m models.Media) error
	ByID(ctx context.Context, id string) (models.Media, error)
	Delete(ctx context.Context, id string) error
}

// Service owns the media lifecycle: a record and its blob are created
// together and deleted exactly when the last owning slot lets go.
type Service struct {
	store MediaStore
	blobs ObjectStore
}

func NewService(store MediaStore, blobs ObjectStore) *Service {
	return &Service{store: store, blobs: blobs}
}

// Attach uploads a new blob and creates its media record.
func (s *Service) Attach(ctx context.Context, up Upload) (models.Media, error) {
	ext := strings.ToLower(filepath.Ext(up.Name))
	key := uuid.New().String() + ext

	if err := s.blobs.Put(ctx, key, bytes.NewReader(up.Data), int64(len(up.Data)), up.MimeType); err != nil {
		return models.Media{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	m := models.Media{
		ID:        uuid.New().String(),
		Name:      utils.SanitizeFilename(up.Name),
		MimeType:  up.MimeType,
		Size:      int64(len(up.Data)),
		Encoding:  up.Encoding,
		FileKey:   key,
		CreatedAt: time.Now(),
	}

	if strings.HasPrefix(up.MimeType, "image/") {
		if thumbKey, err := s.putThumbnail(ctx, key, up.Data); err != nil {
			log.Printf("thumbnail for %s failed: %v", key, err)
		} else {
			m.ThumbKey = thumbKey
		}
	}

	if err := s.store.Insert(ctx, m); err != nil {
		// record failed, do not leave the blob behind
		if derr := s.blobs.Delete(ctx, key); derr != nil {
			log.Printf("orphan blob %s not removed: %v", key, derr)
		}
		return models.Media{}, err
	}

	return m, nil
}

// Replace swaps the media in one owning slot. The new blob is uploaded and
// attached before the old one is released, so the slot never points at a
// deleted object. A nil upload clears the slot.
func (s *Service) Replace(ctx context.Context, oldID *string, up *Upload) (*models.Media, error) {
	if up == nil {
		if oldID != nil {
			if err := s.Release(ctx, *oldID); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	m, err := s.Attach(ctx, *up)
	if err != nil {
		return nil, err
	}

	if oldID != nil {
		if err := s.Release(ctx, *oldID); err != nil {
			log.Printf("release of replaced media %s failed: %v", *oldID, err)
		}
	}

	return &m, nil
}

// Release deletes a media record and its blobs. Releasing an unknown ID is
// a no-op. Blob deletion failures are logged only; the record delete already
// made the blob unreachable.
func (s *Service) Release(ctx context.Context, mediaID string) error {
	m, err := s.store.ByID(ctx, mediaID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.store.Delete(ctx, mediaID); err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, m.FileKey); err != nil {
		log.Printf("blob delete %s failed: %v", m.FileKey, err)
	}
	if m.ThumbKey != "" {
		if err := s.blobs.Delete(ctx, m.ThumbKey); err != nil {
			log.Printf("thumb delete %s failed: %v", m.ThumbKey, err)
		}
	}
	return nil
}

// ResolveURL fills FileSrc/ThumbSrc with presigned URLs. URLs are cached in
// redis for slightly less than their signing TTL.
func (s *Service) ResolveURL(ctx context.Context, m *models.Media) {
	if m == nil {
		return
	}
	m.FileSrc = s.urlFor(ctx, m.FileKey)
	if m.ThumbKey != "" {
		m.ThumbSrc = s.urlFor(ctx, m.ThumbKey)
	}
}

func (s *Service) urlFor(ctx context.Context, key string) string {
	cacheKey := "mediaurl:" + key
	if cached, err := rdx.Get(ctx, cacheKey); err == nil && cached != "" {
		return cached
	}

	u, err := s.blobs.PresignedURL(ctx, key, urlTTL)
	if err != nil {
		log.Printf("presign %s failed: %v", key, err)
		return ""
	}
	if err := rdx.Set(ctx, cacheKey, u, urlTTL-time.Hour); err != nil {
		log.Printf("cache url for %s failed: %v", key, err)
	}
	return u
}

func (s *Service) putThumbnail(ctx context.Context, key string, data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	thumb := imaging.Thumbnail(img, 320, 320, imaging.Lanczos)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return "", err
	}

	thumbKey := "thumb/" + key + ".jpg"
	if err := s.blobs.Put(ctx, thumbKey, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "image/jpeg"); err != nil {
		return "", err
	}
	return thumbKey, nil
}
