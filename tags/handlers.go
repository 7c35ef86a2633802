package tags

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"

	"inkwell/db"
	"inkwell/models"
	"inkwell/utils"
)

// CreateTags inserts a batch of named tags.
func CreateTags(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid tags payload", http.StatusBadRequest)
		return
	}
	names := cleanNames(body.Tags)
	if len(names) == 0 {
		http.Error(w, "Missing tag names", http.StatusBadRequest)
		return
	}

	created := make([]models.Tag, 0, len(names))
	for _, name := range names {
		tag := models.Tag{ID: uuid.New().String(), Name: name, CreatedAt: time.Now()}
		if _, err := db.TagsCollection.InsertOne(r.Context(), tag); err != nil {
			http.Error(w, "Failed to create tags", http.StatusInternalServerError)
			return
		}
		created = append(created, tag)
	}

	utils.RespondWithJSON(w, http.StatusCreated, created)
}

// UpdateTags renames a batch of tags by ID.
func UpdateTags(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Tags []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Tags) == 0 {
		http.Error(w, "Invalid tags payload", http.StatusBadRequest)
		return
	}

	updated := make([]models.Tag, 0, len(body.Tags))
	for _, t := range body.Tags {
		name := strings.TrimSpace(t.Name)
		if t.ID == "" || name == "" {
			http.Error(w, "Invalid tags payload", http.StatusBadRequest)
			return
		}
		res, err := db.TagsCollection.UpdateOne(r.Context(),
			bson.M{"_id": t.ID}, bson.M{"$set": bson.M{"name": name}})
		if err != nil {
			http.Error(w, "Failed to update tags", http.StatusInternalServerError)
			return
		}
		if res.MatchedCount == 0 {
			http.Error(w, "Tag not found", http.StatusNotFound)
			return
		}
		updated = append(updated, models.Tag{ID: t.ID, Name: name})
	}

	utils.RespondWithJSON(w, http.StatusOK, updated)
}

// DeleteTags removes a batch of tags by ID.
func DeleteTags(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.IDs) == 0 {
		http.Error(w, "Invalid tags payload", http.StatusBadRequest)
		return
	}

	res, err := db.TagsCollection.DeleteMany(r.Context(), bson.M{"_id": bson.M{"$in": body.IDs}})
	if err != nil {
		http.Error(w, "Failed to delete tags", http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"isAffected": res.DeletedCount > 0})
}

// GetTags lists every tag.
func GetTags(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	cur, err := db.TagsCollection.Find(r.Context(), bson.M{})
	if err != nil {
		http.Error(w, "Failed to fetch tags", http.StatusInternalServerError)
		return
	}
	defer cur.Close(r.Context())

	tags := []models.Tag{}
	if err := cur.All(r.Context(), &tags); err != nil {
		http.Error(w, "Failed to fetch tags", http.StatusInternalServerError)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, tags)
}

// cleanNames trims, drops empties and dedupes while keeping submission order.
func cleanNames(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[strings.ToLower(n)] {
			continue
		}
		seen[strings.ToLower(n)] = true
		out = append(out, n)
	}
	return out
}
