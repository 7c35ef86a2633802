package rss

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"inkwell/models"
)

const fetchTimeout = 30 * time.Second

// FetchFunc fetches and parses an external feed.
type FetchFunc func(ctx context.Context, url string) (*gofeed.Feed, error)

// SourceStore reads persisted feed sources.
type SourceStore interface {
	ByID(ctx context.Context, id string) (models.RssSource, error)
	ListActive(ctx context.Context) ([]models.RssSource, error)
}

// PostSink receives ingested posts. Exists answers the natural-key check
// that keeps repeated ticks idempotent.
type PostSink interface {
	Exists(ctx context.Context, field, value string) (bool, error)
	Insert(ctx context.Context, p models.Post, blocks []models.Block) error
}

// Ingestor maps external feed items into draft posts under a source's field
// mappings.
type Ingestor struct {
	sources    SourceStore
	posts      PostSink
	fetch      FetchFunc
	dedupField string
}

func NewIngestor(sources SourceStore, posts PostSink) *Ingestor {
	dedup := os.Getenv("RSS_DEDUP_FIELD")
	if dedup == "" {
		dedup = "title"
	}
	return &Ingestor{sources: sources, posts: posts, fetch: FetchFeed, dedupField: dedup}
}

// FetchFeed is the default fetcher, bounded by fetchTimeout.
func FetchFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: fetchTimeout}
	return parser.ParseURLWithContext(url, ctx)
}

// Ingest is one scheduler tick: fetch the feed, map every item through the
// source's field mappings, insert the new ones. Each tick is a fresh,
// isolated attempt; failures are logged and the next tick retries.
func (ing *Ingestor) Ingest(ctx context.Context, sourceID string) {
	source, err := ing.sources.ByID(ctx, sourceID)
	if err != nil {
		log.Printf("rss tick %s: load source: %v", sourceID, err)
		return
	}
	if source.IsStopped {
		log.Printf("rss tick %s: source is stopped", sourceID)
		return
	}

	feed, err := ing.fetch(ctx, source.Source)
	if err != nil {
		log.Printf("rss tick %s: fetch %s: %v", sourceID, source.Source, err)
		return
	}

	inserted := 0
	for _, item := range feed.Items {
		mapped := MapItem(source.Connections, item)

		key := mapped[ing.dedupField]
		if key == "" {
			continue // no natural key, cannot dedup
		}
		exists, err := ing.posts.Exists(ctx, ing.dedupField, key)
		if err != nil {
			log.Printf("rss tick %s: dedup check: %v", sourceID, err)
			continue
		}
		if exists {
			continue
		}

		post, blocks := buildPost(source, mapped)
		if err := ing.posts.Insert(ctx, post, blocks); err != nil {
			log.Printf("rss tick %s: insert: %v", sourceID, err)
			continue
		}
		inserted++
	}

	log.Printf("rss tick %s: %d item(s), %d new", sourceID, len(feed.Items), inserted)
}

// MapItem applies the source's field mappings to one feed item:
// internal[m.InternalField] = external[m.ExternalField] for every mapping.
func MapItem(mappings []models.FieldMapping, item *gofeed.Item) map[string]string {
	mapped := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if m.InternalField == "" {
			continue
		}
		mapped[m.InternalField] = itemField(item, m.ExternalField)
	}
	return mapped
}

func itemField(item *gofeed.Item, field string) string {
	switch strings.ToLower(field) {
	case "title":
		return item.Title
	case "description", "summary":
		return item.Description
	case "content", "content:encoded":
		return item.Content
	case "link":
		return item.Link
	case "guid", "id":
		return item.GUID
	case "pubdate", "published":
		return item.Published
	case "author", "creator", "dc:creator":
		if item.Author != nil {
			return item.Author.Name
		}
		return ""
	case "categories":
		return strings.Join(item.Categories, ",")
	}

	// namespaced fields like media:thumbnail live in extensions
	if prefix, name, ok := strings.Cut(field, ":"); ok {
		if exts, found := item.Extensions[prefix]; found {
			if vals := exts[name]; len(vals) > 0 {
				if vals[0].Value != "" {
					return vals[0].Value
				}
				if url := vals[0].Attrs["url"]; url != "" {
					return url
				}
			}
		}
	}
	if item.Custom != nil {
		return item.Custom[field]
	}
	return ""
}

// buildPost turns mapped fields into a draft post owned by the source's
// creator. Mapped content becomes the first rich-text block.
func buildPost(source models.RssSource, mapped map[string]string) (models.Post, []models.Block) {
	now := time.Now()
	post := models.Post{
		ID:               uuid.New().String(),
		Title:            mapped["title"],
		ShortDescription: mapped["shortDescription"],
		Status:           models.PostDraft,
		TagIDs:           []string{},
		ExternalID:       mapped["externalId"],
		CreatedBy:        source.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if post.ExternalID == "" {
		post.ExternalID = mapped["guid"]
	}

	var blocks []models.Block
	if content := mapped["content"]; content != "" {
		blocks = append(blocks, models.Block{
			ID:      uuid.New().String(),
			PostID:  post.ID,
			Order:   1,
			Kind:    models.BlockRichText,
			Content: content,
		})
	}
	return post, blocks
}
