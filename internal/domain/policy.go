package domain

import "strings"

// PolicyFields: бизнес-поля политики хранения. Tenant неизменяем между версиями.
type PolicyFields struct {
	ModelID         ID
	RetentionPeriod int
	Action          string
	Tenant          string
}

// Policy: физическая строка политики хранения.
type Policy = Row[PolicyFields]

func (f PolicyFields) Validate() error {
	switch {
	case f.ModelID <= 0:
		return NewValidationError("modelId is required")
	case f.RetentionPeriod <= 0:
		return NewValidationError("retentionPeriod must be a positive number of days")
	case strings.TrimSpace(f.Tenant) == "":
		return NewValidationError("tenant is required")
	}
	return nil
}

// PolicyDraft: входные данные для создания политики.
// Если RetentionPeriod не передан, он наследуется от живой модели.
type PolicyDraft struct {
	ModelID         ID
	RetentionPeriod Optional[int]
	Action          string
	Tenant          string
}

// Resolve собирает поля новой политики относительно живой модели model.
func (d PolicyDraft) Resolve(model Model) PolicyFields {
	return PolicyFields{
		ModelID:         model.ID,
		RetentionPeriod: d.RetentionPeriod.Or(model.Fields.RetentionPeriod),
		Action:          d.Action,
		Tenant:          d.Tenant,
	}
}

// PolicyPatch: частичное обновление политики. Tenant сюда намеренно не входит.
type PolicyPatch struct {
	ModelID         Optional[ID]
	RetentionPeriod Optional[int]
	Action          Optional[string]
}

func (p PolicyPatch) Apply(cur PolicyFields) PolicyFields {
	return PolicyFields{
		ModelID:         p.ModelID.Or(cur.ModelID),
		RetentionPeriod: p.RetentionPeriod.Or(cur.RetentionPeriod),
		Action:          p.Action.Or(cur.Action),
		Tenant:          cur.Tenant,
	}
}
