package mixins

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
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"inkwell/db"
	"inkwell/files"
	"inkwell/models"
	"inkwell/utils"
)

type Handler struct {
	Files *files.Service
}

func NewHandler(fs *files.Service) *Handler {
	return &Handler{Files: fs}
}

func (h *Handler) CreateMixin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	concatTypes := utils.SplitTags(r.FormValue("concatTypes"))
	if len(concatTypes) == 0 {
		http.Error(w, "Missing concat types", http.StatusBadRequest)
		return
	}

	orderPercentage, err := strconv.Atoi(r.FormValue("orderPercentage"))
	if err != nil || orderPercentage < 0 || orderPercentage > 100 {
		http.Error(w, "Invalid order percentage", http.StatusBadRequest)
		return
	}

	status := models.MixinStatus(r.FormValue("status"))
	if status == "" {
		status = models.MixinHidden
	}

	mixin := models.Mixin{
		ID:              uuid.New().String(),
		ConcatTypes:     concatTypes,
		OrderPercentage: orderPercentage,
		Status:          status,
		Text:            strings.TrimSpace(r.FormValue("text")),
		Link:            strings.TrimSpace(r.FormValue("link")),
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	up, err := files.SingleFromForm(r, "file")
	if err != nil {
		http.Error(w, "Invalid file", http.StatusBadRequest)
		return
	}
	if up != nil {
		m, err := h.Files.Attach(r.Context(), *up)
		if err != nil {
			http.Error(w, "File upload failed", http.StatusInternalServerError)
			return
		}
		mixin.MediaID = &m.ID
		mixin.Media = &m
		h.Files.ResolveURL(r.Context(), mixin.Media)
	}

	if _, err := db.MixinsCollection.InsertOne(r.Context(), mixin); err != nil {
		h.releaseAttached(r.Context(), mixin.MediaID)
		http.Error(w, "Failed to create mixin", http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, mixin)
}

func (h *Handler) UpdateMixin(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	var mixin models.Mixin
	if err := db.MixinsCollection.FindOne(r.Context(), bson.M{"_id": id}).Decode(&mixin); err != nil {
		http.Error(w, "Mixin not found", http.StatusNotFound)
		return
	}

	update := bson.M{}
	if v := r.FormValue("concatTypes"); v != "" {
		update["concatTypes"] = utils.SplitTags(v)
	}
	if v := r.FormValue("orderPercentage"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 0 || p > 100 {
			http.Error(w, "Invalid order percentage", http.StatusBadRequest)
			return
		}
		update["orderPercentage"] = p
	}
	if v := r.FormValue("status"); v != "" {
		update["status"] = models.MixinStatus(v)
	}
	if v, ok := formValuePresent(r, "text"); ok {
		update["text"] = v
	}
	if v, ok := formValuePresent(r, "link"); ok {
		update["link"] = v
	}

	up, err := files.SingleFromForm(r, "file")
	if err != nil {
		http.Error(w, "Invalid file", http.StatusBadRequest)
		return
	}
	if up != nil {
		m, err := h.Files.Replace(r.Context(), mixin.MediaID, up)
		if err != nil {
			http.Error(w, "File upload failed", http.StatusInternalServerError)
			return
		}
		update["mediaId"] = m.ID
	}

	update["updatedAt"] = time.Now()

	if _, err := db.MixinsCollection.UpdateOne(r.Context(), bson.M{"_id": id}, bson.M{"$set": update}); err != nil {
		http.Error(w, "Failed to update mixin", http.StatusInternalServerError)
		return
	}

	if err := db.MixinsCollection.FindOne(r.Context(), bson.M{"_id": id}).Decode(&mixin); err != nil {
		http.Error(w, "Mixin not found", http.StatusNotFound)
		return
	}
	h.attachMedia(r.Context(), &mixin)

	utils.RespondWithJSON(w, http.StatusOK, mixin)
}

func (h *Handler) DeleteMixin(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var mixin models.Mixin
	if err := db.MixinsCollection.FindOne(r.Context(), bson.M{"_id": id}).Decode(&mixin); err != nil {
		http.Error(w, "Mixin not found", http.StatusNotFound)
		return
	}

	if _, err := db.MixinsCollection.DeleteOne(r.Context(), bson.M{"_id": id}); err != nil {
		http.Error(w, "Failed to delete mixin", http.StatusInternalServerError)
		return
	}

	if mixin.MediaID != nil {
		if err := h.Files.Release(r.Context(), *mixin.MediaID); err != nil {
			http.Error(w, "Failed to delete mixin media", http.StatusInternalServerError)
			return
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"isAffected": true})
}

func (h *Handler) GetMixin(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var mixin models.Mixin
	if err := db.MixinsCollection.FindOne(r.Context(), bson.M{"_id": ps.ByName("id")}).Decode(&mixin); err != nil {
		http.Error(w, "Mixin not found", http.StatusNotFound)
		return
	}
	h.attachMedia(r.Context(), &mixin)
	utils.RespondWithJSON(w, http.StatusOK, mixin)
}

func (h *Handler) GetMixins(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	page := parseInt64(q.Get("page"), 1)
	limit := parseInt64(q.Get("limit"), 10)

	filter := bson.M{}
	if v := q.Get("concatType"); v != "" {
		filter["concatTypes"] = v
	}
	if v := q.Get("status"); v != "" {
		filter["status"] = models.MixinStatus(v)
	}

	count, err := db.MixinsCollection.CountDocuments(r.Context(), filter)
	if err != nil {
		http.Error(w, "Failed to fetch mixins", http.StatusInternalServerError)
		return
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "orderPercentage", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	cur, err := db.MixinsCollection.Find(r.Context(), filter, opts)
	if err != nil {
		http.Error(w, "Failed to fetch mixins", http.StatusInternalServerError)
		return
	}
	defer cur.Close(r.Context())

	mixins := []models.Mixin{}
	if err := cur.All(r.Context(), &mixins); err != nil {
		http.Error(w, "Failed to fetch mixins", http.StatusInternalServerError)
		return
	}
	for i := range mixins {
		h.attachMedia(r.Context(), &mixins[i])
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"items":      mixins,
		"pagination": paginationMeta(count, limit, page),
	})
}

// --- Settings ---

func (h *Handler) CreateSetting(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		ConcatType    string `json:"concatType"`
		AmountPerPage int    `json:"amountPerPage"`
	}
	if err := decodeJSON(r, &body); err != nil || body.ConcatType == "" || body.AmountPerPage < 1 {
		http.Error(w, "Invalid setting", http.StatusBadRequest)
		return
	}

	setting := models.MixinSetting{
		ID:            uuid.New().String(),
		ConcatType:    body.ConcatType,
		AmountPerPage: body.AmountPerPage,
	}
	if _, err := db.MixinSettingsCollection.InsertOne(r.Context(), setting); err != nil {
		http.Error(w, "Failed to create setting", http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, setting)
}

func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		ConcatType    *string `json:"concatType"`
		AmountPerPage *int    `json:"amountPerPage"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, "Invalid setting", http.StatusBadRequest)
		return
	}

	update := bson.M{}
	if body.ConcatType != nil {
		update["concatType"] = *body.ConcatType
	}
	if body.AmountPerPage != nil {
		if *body.AmountPerPage < 1 {
			http.Error(w, "Invalid setting", http.StatusBadRequest)
			return
		}
		update["amountPerPage"] = *body.AmountPerPage
	}
	if len(update) == 0 {
		http.Error(w, "No fields to update", http.StatusBadRequest)
		return
	}

	res := db.MixinSettingsCollection.FindOneAndUpdate(r.Context(),
		bson.M{"_id": ps.ByName("id")},
		bson.M{"$set": update},
		options.FindOneAndUpdate().SetReturnDocument(options.After))

	var setting models.MixinSetting
	if err := res.Decode(&setting); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			http.Error(w, "Setting not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to update setting", http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, setting)
}

func (h *Handler) DeleteSetting(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res, err := db.MixinSettingsCollection.DeleteOne(r.Context(), bson.M{"_id": ps.ByName("id")})
	if err != nil {
		http.Error(w, "Failed to delete setting", http.StatusInternalServerError)
		return
	}
	if res.DeletedCount == 0 {
		http.Error(w, "Setting not found", http.StatusNotFound)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"isAffected": true})
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	cur, err := db.MixinSettingsCollection.Find(r.Context(), bson.M{})
	if err != nil {
		http.Error(w, "Failed to fetch settings", http.StatusInternalServerError)
		return
	}
	defer cur.Close(r.Context())

	settings := []models.MixinSetting{}
	if err := cur.All(r.Context(), &settings); err != nil {
		http.Error(w, "Failed to fetch settings", http.StatusInternalServerError)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, settings)
}

// --- helpers ---

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

func (h *Handler) attachMedia(ctx context.Context, mixin *models.Mixin) {
	if mixin.MediaID == nil {
		return
	}
	var m models.Media
	if err := db.MediaCollection.FindOne(ctx, bson.M{"_id": *mixin.MediaID}).Decode(&m); err != nil {
		return
	}
	h.Files.ResolveURL(ctx, &m)
	mixin.Media = &m
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

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
