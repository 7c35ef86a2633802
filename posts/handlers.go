package posts

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"inkwell/db"
	"inkwell/files"
	"inkwell/globals"
	"inkwell/mixins"
	"inkwell/models"
	"inkwell/mq"
	"inkwell/utils"
)

type Handler struct {
	Engine *Engine
	Files  *files.Service
	Weaver *mixins.Weaver
}

func NewHandler(engine *Engine, fs *files.Service, weaver *mixins.Weaver) *Handler {
	return &Handler{Engine: engine, Files: fs, Weaver: weaver}
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok {
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		http.Error(w, "Missing title", http.StatusBadRequest)
		return
	}

	status := models.PostStatus(r.FormValue("status"))
	if status == "" {
		status = models.PostDraft
	}
	if !validStatus(status) {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	uploads, err := files.FromRequest(r)
	if err != nil {
		http.Error(w, "Invalid file upload", http.StatusBadRequest)
		return
	}

	post := models.Post{
		ID:               uuid.New().String(),
		Title:            title,
		ShortDescription: strings.TrimSpace(r.FormValue("shortDescription")),
		Status:           status,
		TagIDs:           utils.SplitTags(r.FormValue("tags")),
		CreatedBy:        userID,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	if ref := r.FormValue("mediaRef"); ref != "" {
		up, ok := uploads.ByRef(ref)
		if !ok {
			http.Error(w, "Title media upload not found in batch", http.StatusBadRequest)
			return
		}
		m, err := h.Files.Attach(r.Context(), up)
		if err != nil {
			http.Error(w, "File upload failed", http.StatusInternalServerError)
			return
		}
		post.MediaID = &m.ID
	}

	if _, err := db.PostsCollection.InsertOne(r.Context(), post); err != nil {
		h.releaseAttached(r.Context(), post.MediaID)
		http.Error(w, "Failed to create post", http.StatusInternalServerError)
		return
	}

	deltas, err := parseDeltas(r.FormValue("blocks"), true)
	if err != nil {
		http.Error(w, "Invalid blocks payload", http.StatusBadRequest)
		return
	}

	blocks, deltaErrs, err := h.Engine.Reconcile(r.Context(), post.ID, deltas, uploads)
	if err != nil {
		http.Error(w, "Failed to create post blocks", http.StatusInternalServerError)
		return
	}
	post.Blocks = blocks
	h.resolvePostMedia(r.Context(), &post)

	mq.Emit(r.Context(), "post-created", models.Index{
		EntityType: "post", Method: "POST", EntityId: post.ID, Title: post.Title,
	})

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{
		"post":   post,
		"errors": deltaErrs,
	})
}

func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	var post models.Post
	if err := db.PostsCollection.FindOne(r.Context(), bson.M{"_id": id}).Decode(&post); err != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	update := bson.M{}
	if v := strings.TrimSpace(r.FormValue("title")); v != "" {
		update["title"] = v
	}
	if v, ok := formValuePresent(r, "shortDescription"); ok {
		update["shortDescription"] = strings.TrimSpace(v)
	}
	if v := r.FormValue("status"); v != "" {
		status := models.PostStatus(v)
		if !validStatus(status) {
			http.Error(w, "Invalid status", http.StatusBadRequest)
			return
		}
		update["status"] = status
	}
	if v, ok := formValuePresent(r, "tags"); ok {
		update["tagIds"] = utils.SplitTags(v)
	}
	// soft delete flag: present "true" hides, present "false" restores,
	// absent leaves untouched
	if v, ok := formValuePresent(r, "deleted"); ok {
		if v == "true" {
			update["deletedAt"] = time.Now()
		} else {
			update["deletedAt"] = nil
		}
	}

	uploads, err := files.FromRequest(r)
	if err != nil {
		http.Error(w, "Invalid file upload", http.StatusBadRequest)
		return
	}

	// title media: present non-empty replaces, present empty clears, absent
	// leaves untouched
	if ref, ok := formValuePresent(r, "mediaRef"); ok {
		if ref == "" {
			if _, err := h.Files.Replace(r.Context(), post.MediaID, nil); err != nil {
				http.Error(w, "Failed to clear post media", http.StatusInternalServerError)
				return
			}
			update["mediaId"] = nil
		} else {
			up, found := uploads.ByRef(ref)
			if !found {
				http.Error(w, "Title media upload not found in batch", http.StatusBadRequest)
				return
			}
			m, err := h.Files.Replace(r.Context(), post.MediaID, &up)
			if err != nil {
				http.Error(w, "File upload failed", http.StatusInternalServerError)
				return
			}
			update["mediaId"] = m.ID
		}
	}

	update["updatedAt"] = time.Now()
	if _, err := db.PostsCollection.UpdateOne(r.Context(), bson.M{"_id": id}, bson.M{"$set": update}); err != nil {
		http.Error(w, "Failed to update post", http.StatusInternalServerError)
		return
	}

	deltas, err := parseDeltas(r.FormValue("blocks"), false)
	if err != nil {
		http.Error(w, "Invalid blocks payload", http.StatusBadRequest)
		return
	}

	var deltaErrs []DeltaError
	if len(deltas) > 0 {
		_, deltaErrs, err = h.Engine.Reconcile(r.Context(), id, deltas, uploads)
		if err != nil {
			http.Error(w, "Failed to reconcile blocks", http.StatusInternalServerError)
			return
		}
	}

	if err := db.PostsCollection.FindOne(r.Context(), bson.M{"_id": id}).Decode(&post); err != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}
	blocks, err := h.Engine.Blocks(r.Context(), id)
	if err == nil {
		post.Blocks = blocks
	}
	h.resolvePostMedia(r.Context(), &post)

	mq.Emit(r.Context(), "post-updated", models.Index{
		EntityType: "post", Method: "PUT", EntityId: post.ID, Title: post.Title,
	})

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"post":   post,
		"errors": deltaErrs,
	})
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var post models.Post
	if err := db.PostsCollection.FindOne(r.Context(), bson.M{"_id": id}).Decode(&post); err != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	// blocks and their media go first, then the title media, then the record
	if err := h.Engine.Cascade(r.Context(), id); err != nil {
		http.Error(w, "Failed to delete post blocks", http.StatusInternalServerError)
		return
	}
	if post.MediaID != nil {
		if err := h.Files.Release(r.Context(), *post.MediaID); err != nil {
			http.Error(w, "Failed to delete post media", http.StatusInternalServerError)
			return
		}
	}
	if _, err := db.PostsCollection.DeleteOne(r.Context(), bson.M{"_id": id}); err != nil {
		http.Error(w, "Failed to delete post", http.StatusInternalServerError)
		return
	}

	mq.Emit(r.Context(), "post-deleted", models.Index{
		EntityType: "post", Method: "DELETE", EntityId: id,
	})

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"isAffected": true})
}

func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var post models.Post
	if err := db.PostsCollection.FindOne(r.Context(), bson.M{"_id": id}).Decode(&post); err != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	blocks, err := h.Engine.Blocks(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to fetch post blocks", http.StatusInternalServerError)
		return
	}
	post.Blocks = blocks
	h.resolvePostMedia(r.Context(), &post)

	utils.RespondWithJSON(w, http.StatusOK, post)
}

func (h *Handler) GetPosts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	page := parseInt64(q.Get("page"), 1)
	limit := parseInt64(q.Get("limit"), 10)

	filter := bson.M{"deletedAt": nil}
	if v := q.Get("creatorId"); v != "" {
		filter["createdBy"] = v
	}
	if tags := utils.SplitTags(q.Get("tags")); len(tags) > 0 {
		filter["tagIds"] = bson.M{"$in": tags}
	}
	if v := q.Get("status"); v != "" {
		filter["status"] = models.PostStatus(v)
	}
	if v := q.Get("search"); v != "" {
		filter["title"] = bson.M{"$regex": v, "$options": "i"}
	}

	sortBy := q.Get("sortBy")
	if sortBy == "" {
		sortBy = "createdAt"
	}
	sortOrder := -1
	if q.Get("sortOrder") == "asc" {
		sortOrder = 1
	}

	count, err := db.PostsCollection.CountDocuments(r.Context(), filter)
	if err != nil {
		http.Error(w, "Failed to fetch posts", http.StatusInternalServerError)
		return
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortBy, Value: sortOrder}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	cur, err := db.PostsCollection.Find(r.Context(), filter, opts)
	if err != nil {
		http.Error(w, "Failed to fetch posts", http.StatusInternalServerError)
		return
	}
	defer cur.Close(r.Context())

	items := []models.Post{}
	if err := cur.All(r.Context(), &items); err != nil {
		http.Error(w, "Failed to fetch posts", http.StatusInternalServerError)
		return
	}
	for i := range items {
		h.resolvePostMedia(r.Context(), &items[i])
	}

	resp := utils.M{
		"items":      items,
		"pagination": paginationMeta(count, limit, page),
	}

	if concatType := q.Get("mixinConcatType"); concatType != "" {
		woven, err := h.Weaver.Weave(r.Context(), concatType, page)
		if err != nil {
			if errors.Is(err, mixins.ErrInvalidConcatType) {
				utils.RespondWithError(w, http.StatusBadRequest, "Invalid mixin concat type")
				return
			}
			http.Error(w, "Failed to fetch mixins", http.StatusInternalServerError)
			return
		}
		resp["mixins"] = woven
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// SearchPosts serves title lookups for published posts. The redis title
// index is the fast path; mongo is the fallback when the index is cold.
func (h *Handler) SearchPosts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		http.Error(w, "Missing query", http.StatusBadRequest)
		return
	}

	type hit struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}

	if titles, ok := mq.SearchTitles(r.Context(), query); ok {
		hits := []hit{}
		for id, title := range titles {
			hits = append(hits, hit{ID: id, Title: title})
		}
		utils.RespondWithJSON(w, http.StatusOK, hits)
		return
	}

	filter := bson.M{
		"title":  bson.M{"$regex": query, "$options": "i"},
		"status": models.PostPublished,
	}
	cur, err := db.PostsCollection.Find(r.Context(), filter,
		options.Find().SetProjection(bson.M{"title": 1}))
	if err != nil {
		http.Error(w, "Failed to search posts", http.StatusInternalServerError)
		return
	}
	defer cur.Close(r.Context())

	hits := []hit{}
	for cur.Next(r.Context()) {
		var p models.Post
		if err := cur.Decode(&p); err == nil {
			hits = append(hits, hit{ID: p.ID, Title: p.Title})
		}
	}
	utils.RespondWithJSON(w, http.StatusOK, hits)
}

// --- helpers ---

// parseDeltas decodes the blocks form field. When createOnly is set every
// delta is forced to a create, the shape used by post creation.
func parseDeltas(raw string, createOnly bool) ([]models.BlockDelta, error) {
	if raw == "" {
		return nil, nil
	}
	var deltas []models.BlockDelta
	if err := json.Unmarshal([]byte(raw), &deltas); err != nil {
		return nil, err
	}
	for i := range deltas {
		if createOnly {
			deltas[i].Action = models.DeltaCreate
		}
		switch deltas[i].Action {
		case models.DeltaCreate, models.DeltaUpdate, models.DeltaDelete:
		default:
			return nil, errors.New("unknown delta action")
		}
	}
	return deltas, nil
}

// releaseAttached undoes a successful Attach when the owning record insert
// fails, so no media is left without an owning slot.
func (h *Handler) releaseAttached(ctx context.Context, mediaID *string) {
	if mediaID == nil {
		return
	}
	if err := h.Files.Release(ctx, *mediaID); err != nil {
		log.Printf("release media %s of failed insert: %v", *mediaID, err)
	}
}

func (h *Handler) resolvePostMedia(ctx context.Context, post *models.Post) {
	post.Media = h.mediaByID(ctx, post.MediaID)
	for i := range post.Blocks {
		post.Blocks[i].Media = h.mediaByID(ctx, post.Blocks[i].MediaID)
	}
}

func (h *Handler) mediaByID(ctx context.Context, id *string) *models.Media {
	if id == nil {
		return nil
	}
	var m models.Media
	if err := db.MediaCollection.FindOne(ctx, bson.M{"_id": *id}).Decode(&m); err != nil {
		return nil
	}
	h.Files.ResolveURL(ctx, &m)
	return &m
}

func validStatus(s models.PostStatus) bool {
	switch s {
	case models.PostHidden, models.PostDraft, models.PostPublished:
		return true
	}
	return false
}

func formValuePresent(r *http.Request, key string) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	vs, ok := r.MultipartForm.Value[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func parseInt64(s string, fallback int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func paginationMeta(count, limit, page int64) models.PaginationMeta {
	totalPages := count / limit
	if count%limit != 0 {
		totalPages++
	}
	return models.PaginationMeta{Count: count, Limit: limit, Page: page, TotalPages: totalPages}
}
