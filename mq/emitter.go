package mq

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"inkwell/models"
	"inkwell/rdx"
)

const channel = "indexing-events"
const searchIndexKey = "search:posts"

// Emit publishes an indexing event to Redis instead of indexing inline.
func Emit(ctx context.Context, eventName string, content models.Index) {
	data, err := json.Marshal(content)
	if err != nil {
		log.Printf("[Emit] Failed to marshal event content: %v", err)
		return
	}

	if err := rdx.Conn.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("[Emit] Failed to publish %s event: %v", eventName, err)
		return
	}
}

// StartIndexingWorker keeps the redis title index in sync with post events.
// The index backs the fast path of post title search.
func StartIndexingWorker() {
	ctx := context.Background()
	sub := rdx.Conn.Subscribe(ctx, channel)
	ch := sub.Channel()

	log.Println("[IndexingWorker] Listening for indexing events...")

	for msg := range ch {
		var event models.Index
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Printf("[IndexingWorker] Failed to parse event: %v", err)
			continue
		}
		if event.EntityType != "post" {
			continue
		}

		var err error
		switch event.Method {
		case "DELETE":
			err = rdx.Conn.HDel(ctx, searchIndexKey, event.EntityId).Err()
		default:
			err = rdx.Conn.HSet(ctx, searchIndexKey, event.EntityId, event.Title).Err()
		}
		if err != nil {
			log.Printf("[IndexingWorker] Index update for %s failed: %v", event.EntityId, err)
		}
	}
}

// SearchTitles scans the redis title index for a case-insensitive substring
// match. Returns ok=false when the index is unavailable or empty, so callers
// can fall back to the primary store.
func SearchTitles(ctx context.Context, query string) (map[string]string, bool) {
	entries, err := rdx.Conn.HGetAll(ctx, searchIndexKey).Result()
	if err != nil || len(entries) == 0 {
		return nil, false
	}
	return matchTitles(entries, query), true
}

func matchTitles(entries map[string]string, query string) map[string]string {
	needle := strings.ToLower(query)
	hits := make(map[string]string)
	for id, title := range entries {
		if strings.Contains(strings.ToLower(title), needle) {
			hits[id] = title
		}
	}
	return hits
}
