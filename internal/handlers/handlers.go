// Package handlers exposes the inference pipeline, food catalog and user log
// store over HTTP. The transport stays thin: decode the request, call one
// collaborator, encode the response.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/hellzang/foodvision-api/internal/catalog"
	"github.com/hellzang/foodvision-api/internal/logging"
	"github.com/hellzang/foodvision-api/internal/pipeline"
	"github.com/hellzang/foodvision-api/internal/userlog"
)

// maxUploadBytes bounds the multipart form kept in memory.
const maxUploadBytes = 10 << 20

type Handler struct {
	pipeline *pipeline.Pipeline
	catalog  *catalog.Catalog
	store    *userlog.Store
}

func NewHandler(p *pipeline.Pipeline, c *catalog.Catalog, s *userlog.Store) *Handler {
	return &Handler{pipeline: p, catalog: c, store: s}
}

// Routes wires every endpoint onto a chi router with the shared middleware.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors)

	r.Get("/health", h.Health)
	r.Post("/predict/", h.Predict)
	r.Get("/foods/", h.ListFoods)
	r.Get("/food/{food_name}", h.GetFood)
	r.Post("/user-logs/{user_name}", h.AppendUserLog)
	r.Get("/user-logs/{user_name}", h.ListUserLogs)
	r.Get("/user-logs/{user_name}/{date}", h.GetUserLog)

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// predictResponse carries nutrition facts when the catalog knows the
// predicted food, and a message when it does not.
type predictResponse struct {
	Food       string   `json:"food"`
	Confidence float32  `json:"confidence"`
	Calories   *float64 `json:"calories,omitempty"`
	Protein    *float64 `json:"protein,omitempty"`
	Carbs      *float64 `json:"carbs,omitempty"`
	Fats       *float64 `json:"fats,omitempty"`
	Message    string   `json:"message,omitempty"`
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "expected a multipart upload with a 'file' field")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no image file provided, use 'file' as the form field name")
		return
	}
	defer file.Close()

	imageBytes, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}
	if len(imageBytes) == 0 {
		writeError(w, http.StatusBadRequest, "uploaded image is empty")
		return
	}

	result := h.pipeline.Classify(imageBytes)

	resp := predictResponse{Food: result.Food, Confidence: result.Confidence}
	if rec, ok := h.catalog.Lookup(result.Food); ok {
		resp.Calories = &rec.Calories
		resp.Protein = &rec.Protein
		resp.Carbs = &rec.Carbs
		resp.Fats = &rec.Fats
	} else {
		resp.Message = fmt.Sprintf("no nutrition info for %s", result.Food)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListFoods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"foods": h.catalog.Names()})
}

func (h *Handler) GetFood(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "food_name")

	rec, ok := h.catalog.Lookup(name)
	if !ok {
		writeMessage(w, http.StatusNotFound, fmt.Sprintf("no info for %s", name))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) AppendUserLog(w http.ResponseWriter, r *http.Request) {
	userName := chi.URLParam(r, "user_name")

	var meal userlog.Entry
	if err := json.NewDecoder(r.Body).Decode(&meal); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Goal fields ride on the meal payload; the store only applies them on
	// the first write of the day.
	goals := userlog.Goals{
		Calories: floatField(meal, "goalCalories"),
		Protein:  floatField(meal, "goalProtein"),
		Carbs:    floatField(meal, "goalCarbs"),
		Fat:      floatField(meal, "goalFat"),
	}

	_, path, err := h.store.Append(userName, meal, goals)
	if errors.Is(err, userlog.ErrInvalidUser) {
		writeError(w, http.StatusBadRequest, "user name is missing or invalid")
		return
	}
	if err != nil {
		logging.Error().Err(err).Str("user", userName).Msg("append user log failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "meal logged",
		"path":    path,
	})
}

func (h *Handler) GetUserLog(w http.ResponseWriter, r *http.Request) {
	userName := chi.URLParam(r, "user_name")
	date := chi.URLParam(r, "date")

	log, err := h.store.Get(userName, date)
	if errors.Is(err, userlog.ErrInvalidUser) {
		writeError(w, http.StatusBadRequest, "user name is missing or invalid")
		return
	}
	if errors.Is(err, userlog.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, fmt.Sprintf("no record for %s", date))
		return
	}
	if err != nil {
		logging.Error().Err(err).Str("user", userName).Str("date", date).Msg("read user log failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (h *Handler) ListUserLogs(w http.ResponseWriter, r *http.Request) {
	userName := chi.URLParam(r, "user_name")

	logs, err := h.store.GetAll(userName)
	if errors.Is(err, userlog.ErrInvalidUser) {
		writeError(w, http.StatusBadRequest, "user name is missing or invalid")
		return
	}
	if errors.Is(err, userlog.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, fmt.Sprintf("no record for %s", userName))
		return
	}
	if err != nil {
		logging.Error().Err(err).Str("user", userName).Msg("list user logs failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func floatField(m map[string]any, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("encode response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
