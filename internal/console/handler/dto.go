package handler

import (
	"time"

	"github.com/xela07ax/retention-registry/internal/domain"
)

type CreateModelRequest struct {
	Name            string `json:"name" validate:"required"`
	Ownership       string `json:"ownership"`
	Description     string `json:"description"`
	RetentionPeriod *int   `json:"retentionPeriod" validate:"required,gt=0"`
	SensitiveFields string `json:"sensitiveFields"`
}

func (r CreateModelRequest) fields() domain.ModelFields {
	return domain.ModelFields{
		Name:            r.Name,
		Ownership:       r.Ownership,
		Description:     r.Description,
		RetentionPeriod: *r.RetentionPeriod,
		SensitiveFields: r.SensitiveFields,
	}
}

// UpdateModelRequest: отсутствующее поле и null: "не передано",
// пустая строка: явное значение.
type UpdateModelRequest struct {
	Name            *string `json:"name"`
	Ownership       *string `json:"ownership"`
	Description     *string `json:"description"`
	RetentionPeriod *int    `json:"retentionPeriod" validate:"omitempty,gt=0"`
	SensitiveFields *string `json:"sensitiveFields"`
}

func (r UpdateModelRequest) patch() domain.ModelPatch {
	return domain.ModelPatch{
		Name:            domain.FromPtr(r.Name),
		Ownership:       domain.FromPtr(r.Ownership),
		Description:     domain.FromPtr(r.Description),
		RetentionPeriod: domain.FromPtr(r.RetentionPeriod),
		SensitiveFields: domain.FromPtr(r.SensitiveFields),
	}
}

type CreatePolicyRequest struct {
	ModelID         *int64 `json:"modelId" validate:"required,gt=0"`
	RetentionPeriod *int   `json:"retentionPeriod" validate:"omitempty,gt=0"`
	Action          string `json:"action" validate:"required,notblank"`
	Tenant          string `json:"tenant" validate:"required,notblank"`
}

func (r CreatePolicyRequest) draft() domain.PolicyDraft {
	return domain.PolicyDraft{
		ModelID:         domain.ID(*r.ModelID),
		RetentionPeriod: domain.FromPtr(r.RetentionPeriod),
		Action:          r.Action,
		Tenant:          r.Tenant,
	}
}

// UpdatePolicyRequest: tenant принимается только чтобы ответить понятной ошибкой,
// в patch он не попадает.
type UpdatePolicyRequest struct {
	ModelID         *int64  `json:"modelId" validate:"omitempty,gt=0"`
	RetentionPeriod *int    `json:"retentionPeriod" validate:"omitempty,gt=0"`
	Action          *string `json:"action"`
	Tenant          *string `json:"tenant"`
}

func (r UpdatePolicyRequest) patch() domain.PolicyPatch {
	p := domain.PolicyPatch{
		RetentionPeriod: domain.FromPtr(r.RetentionPeriod),
		Action:          domain.FromPtr(r.Action),
	}
	if r.ModelID != nil {
		p.ModelID = domain.Some(domain.ID(*r.ModelID))
	}
	return p
}

// VersionResponse: поля жизненного цикла строки; для живой строки deleted* и supersededById равны null.
type VersionResponse struct {
	ID             int64      `json:"id"`
	CreatedBy      string     `json:"createdBy"`
	CreatedAt      time.Time  `json:"createdAt"`
	DeletedBy      *string    `json:"deletedBy"`
	DeletedAt      *time.Time `json:"deletedAt"`
	SupersededByID *int64     `json:"supersededById"`
}

func versionResponse(v domain.Version) VersionResponse {
	out := VersionResponse{ID: int64(v.ID), CreatedBy: v.CreatedBy, CreatedAt: v.CreatedAt}
	if r := v.Retired; r != nil {
		by, at := r.By, r.At
		out.DeletedBy, out.DeletedAt = &by, &at
		if r.SupersededBy != nil {
			next := int64(*r.SupersededBy)
			out.SupersededByID = &next
		}
	}
	return out
}

type ModelResponse struct {
	VersionResponse
	Name            string `json:"name"`
	Ownership       string `json:"ownership"`
	Description     string `json:"description"`
	RetentionPeriod int    `json:"retentionPeriod"`
	SensitiveFields string `json:"sensitiveFields"`
}

func modelResponse(m domain.Model) ModelResponse {
	return ModelResponse{
		VersionResponse: versionResponse(m.Version),
		Name:            m.Fields.Name,
		Ownership:       m.Fields.Ownership,
		Description:     m.Fields.Description,
		RetentionPeriod: m.Fields.RetentionPeriod,
		SensitiveFields: m.Fields.SensitiveFields,
	}
}

type PolicyResponse struct {
	VersionResponse
	ModelID         int64  `json:"modelId"`
	RetentionPeriod int    `json:"retentionPeriod"`
	Action          string `json:"action"`
	Tenant          string `json:"tenant"`
}

func policyResponse(p domain.Policy) PolicyResponse {
	return PolicyResponse{
		VersionResponse: versionResponse(p.Version),
		ModelID:         int64(p.Fields.ModelID),
		RetentionPeriod: p.Fields.RetentionPeriod,
		Action:          p.Fields.Action,
		Tenant:          p.Fields.Tenant,
	}
}

func mapSlice[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
