package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/retention-registry/internal/console/service"
)

var (
	modelMessages = messages{
		notFound: "Retention model not found or deleted",
		conflict: "Retention model is referenced by a policy, update not allowed",
	}
	modelDeleteMessages = messages{
		notFound: "Retention model not found or already deleted",
		conflict: "Retention model is referenced by a policy, deletion not allowed",
	}
)

type ModelHandler struct {
	service *service.ModelService
}

func NewModelHandler(s *service.ModelService) *ModelHandler {
	return &ModelHandler{service: s}
}

// Routes Маршруты для Chi, монтируются на /retention-models
func (h *ModelHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
	})
	return r
}

// Create POST /retention-models
func (h *ModelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateModelRequest
	if !decode(w, r, &req) {
		return
	}

	m, err := h.service.Create(r.Context(), req.fields(), ActorFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err, modelMessages)
		return
	}
	writeJSON(w, http.StatusCreated, modelResponse(m))
}

// List GET /retention-models: только живые строки
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	models, err := h.service.List(r.Context())
	if err != nil {
		writeDomainError(w, err, modelMessages)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(models, modelResponse))
}

// Get GET /retention-models/{id}
func (h *ModelHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, modelMessages)
		return
	}
	writeJSON(w, http.StatusOK, modelResponse(m))
}

// Update PUT /retention-models/{id}: возвращает новую версию с новым id
func (h *ModelHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateModelRequest
	if !decode(w, r, &req) {
		return
	}

	m, err := h.service.Update(r.Context(), id, req.patch(), ActorFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err, modelMessages)
		return
	}
	writeJSON(w, http.StatusOK, modelResponse(m))
}

// Delete DELETE /retention-models/{id}
func (h *ModelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.service.Delete(r.Context(), id, ActorFrom(r.Context())); err != nil {
		writeDomainError(w, err, modelDeleteMessages)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Retention model soft deleted successfully", ID: int64(id)})
}
