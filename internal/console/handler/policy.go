package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/retention-registry/internal/console/service"
)

var (
	policyMessages = messages{
		notFound: "Retention policy not found or deleted",
	}
	policyDeleteMessages = messages{
		notFound: "Retention policy not found or already deleted",
	}
)

type PolicyHandler struct {
	service *service.PolicyService
}

func NewPolicyHandler(s *service.PolicyService) *PolicyHandler {
	return &PolicyHandler{service: s}
}

// Routes Маршруты для Chi, монтируются на /retention_policies
func (h *PolicyHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/byTenant/{tenant}", h.ListByTenant)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
	})
	return r
}

// Create POST /retention_policies. Без retentionPeriod политика наследует его от модели.
func (h *PolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePolicyRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), req.draft(), ActorFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err, policyMessages)
		return
	}
	writeJSON(w, http.StatusCreated, policyResponse(p))
}

// List GET /retention_policies
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	policies, err := h.service.List(r.Context())
	if err != nil {
		writeDomainError(w, err, policyMessages)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(policies, policyResponse))
}

// ListByTenant GET /retention_policies/byTenant/{tenant}
func (h *PolicyHandler) ListByTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := pathParam(r, "tenant")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err.Error(), "Check the tenant path segment encoding.")
		return
	}

	policies, err := h.service.ListByTenant(r.Context(), tenant)
	if err != nil {
		writeDomainError(w, err, policyMessages)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(policies, policyResponse))
}

// Get GET /retention_policies/{id}
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, policyMessages)
		return
	}
	writeJSON(w, http.StatusOK, policyResponse(p))
}

// Update PUT /retention_policies/{id}. tenant в теле запроса отклоняется.
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdatePolicyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Tenant != nil {
		writeError(w, http.StatusBadRequest, msgTenantChange, "tenant is fixed when the policy is created", "Create a new policy for another tenant.")
		return
	}

	p, err := h.service.Update(r.Context(), id, req.patch(), ActorFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err, policyMessages)
		return
	}
	writeJSON(w, http.StatusOK, policyResponse(p))
}

// Delete DELETE /retention_policies/{id}
func (h *PolicyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.service.Delete(r.Context(), id, ActorFrom(r.Context())); err != nil {
		writeDomainError(w, err, policyDeleteMessages)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Retention policy soft deleted successfully", ID: int64(id)})
}
