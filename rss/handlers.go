package rss

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"

	"inkwell/db"
	"inkwell/globals"
	"inkwell/models"
	"inkwell/utils"
)

type Handler struct {
	Scheduler *Scheduler
	Sources   SourceStore
}

func NewHandler(scheduler *Scheduler, sources SourceStore) *Handler {
	return &Handler{Scheduler: scheduler, Sources: sources}
}

func (h *Handler) CreateSource(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok {
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}

	var body struct {
		Source      string                `json:"source"`
		Interval    int                   `json:"interval"`
		IsStopped   bool                  `json:"isStopped"`
		Connections []models.FieldMapping `json:"connections"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Source == "" || body.Interval < 1 {
		http.Error(w, "Invalid rss source", http.StatusBadRequest)
		return
	}

	source := models.RssSource{
		ID:          uuid.New().String(),
		Source:      body.Source,
		Interval:    body.Interval,
		IsStopped:   body.IsStopped,
		CreatedBy:   userID,
		Connections: body.Connections,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if source.Connections == nil {
		source.Connections = []models.FieldMapping{}
	}

	if _, err := db.RssSourcesCollection.InsertOne(r.Context(), source); err != nil {
		http.Error(w, "Failed to create rss source", http.StatusInternalServerError)
		return
	}

	if !source.IsStopped {
		h.Scheduler.Register(source.ID, time.Duration(source.Interval)*time.Second)
	}

	utils.RespondWithJSON(w, http.StatusCreated, source)
}

func (h *Handler) UpdateSource(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var body struct {
		Source      *string               `json:"source"`
		Interval    *int                  `json:"interval"`
		IsStopped   *bool                 `json:"isStopped"`
		Connections []models.FieldMapping `json:"connections"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid rss source", http.StatusBadRequest)
		return
	}

	update := bson.M{"updatedAt": time.Now()}
	if body.Source != nil {
		update["source"] = *body.Source
	}
	if body.Interval != nil {
		if *body.Interval < 1 {
			http.Error(w, "Invalid rss source", http.StatusBadRequest)
			return
		}
		update["interval"] = *body.Interval
	}
	if body.IsStopped != nil {
		update["isStopped"] = *body.IsStopped
	}
	if body.Connections != nil {
		update["connections"] = body.Connections
	}

	res, err := db.RssSourcesCollection.UpdateOne(r.Context(), bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		http.Error(w, "Failed to update rss source", http.StatusInternalServerError)
		return
	}
	if res.MatchedCount == 0 {
		http.Error(w, "Rss source not found", http.StatusNotFound)
		return
	}

	source, err := h.Sources.ByID(r.Context(), id)
	if err != nil {
		http.Error(w, "Rss source not found", http.StatusNotFound)
		return
	}

	// toggle the task to match the persisted flag; registration failures are
	// recovered on next restart rehydration
	if body.IsStopped != nil {
		if *body.IsStopped {
			h.Scheduler.Deregister(id)
		} else {
			h.Scheduler.Register(id, time.Duration(source.Interval)*time.Second)
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, source)
}

func (h *Handler) DeleteSource(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	// stop the task before deleting the record so no tick reads a deleted
	// source mid-flight
	h.Scheduler.Deregister(id)

	res, err := db.RssSourcesCollection.DeleteOne(r.Context(), bson.M{"_id": id})
	if err != nil {
		http.Error(w, "Failed to delete rss source", http.StatusInternalServerError)
		return
	}
	if res.DeletedCount == 0 {
		http.Error(w, "Rss source not found", http.StatusNotFound)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"isAffected": true})
}

func (h *Handler) GetSources(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok {
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}
	if v := r.URL.Query().Get("userId"); v != "" {
		userID = v
	}

	cur, err := db.RssSourcesCollection.Find(r.Context(), bson.M{"createdBy": userID})
	if err != nil {
		http.Error(w, "Failed to fetch rss sources", http.StatusInternalServerError)
		return
	}
	defer cur.Close(r.Context())

	sources := []models.RssSource{}
	if err := cur.All(r.Context(), &sources); err != nil {
		http.Error(w, "Failed to fetch rss sources", http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, sources)
}

// GetFeedFields fetches a feed once and reports its root and item field
// names, so mapping editors can offer real choices.
func (h *Handler) GetFeedFields(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	feedURL := r.URL.Query().Get("url")
	if feedURL == "" {
		http.Error(w, "Missing feed url", http.StatusBadRequest)
		return
	}

	feed, err := FetchFeed(r.Context(), feedURL)
	if err != nil {
		http.Error(w, "Failed to fetch feed", http.StatusBadGateway)
		return
	}

	root := map[string]string{
		"title":       feed.Title,
		"description": feed.Description,
		"link":        feed.Link,
		"language":    feed.Language,
		"updated":     feed.Updated,
		"published":   feed.Published,
	}
	rootKeys := make([]string, 0, len(root))
	for k, v := range root {
		if v != "" {
			rootKeys = append(rootKeys, k)
		}
	}

	itemKeys := []string{}
	var itemValue map[string]string
	if len(feed.Items) > 0 {
		first := feed.Items[0]
		itemValue = map[string]string{}
		for _, k := range []string{"title", "description", "content", "link", "guid", "published", "author", "categories"} {
			if v := itemField(first, k); v != "" {
				itemKeys = append(itemKeys, k)
				itemValue[k] = v
			}
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"rootKeys":  rootKeys,
		"itemKeys":  itemKeys,
		"rootValue": root,
		"itemValue": itemValue,
	})
}
