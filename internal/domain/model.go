package domain

// ModelFields: бизнес-поля модели хранения (retention model).
type ModelFields struct {
	Name            string
	Ownership       string
	Description     string
	RetentionPeriod int // дни
	SensitiveFields string
}

// Model: физическая строка модели хранения.
type Model = Row[ModelFields]

func (f ModelFields) Validate() error {
	if f.RetentionPeriod <= 0 {
		return NewValidationError("retentionPeriod must be a positive number of days")
	}
	return nil
}

// ModelPatch: частичное обновление. Непереданные поля берутся из живой строки,
// переданные пустыми: честно перезаписываются.
type ModelPatch struct {
	Name            Optional[string]
	Ownership       Optional[string]
	Description     Optional[string]
	RetentionPeriod Optional[int]
	SensitiveFields Optional[string]
}

func (p ModelPatch) Apply(cur ModelFields) ModelFields {
	return ModelFields{
		Name:            p.Name.Or(cur.Name),
		Ownership:       p.Ownership.Or(cur.Ownership),
		Description:     p.Description.Or(cur.Description),
		RetentionPeriod: p.RetentionPeriod.Or(cur.RetentionPeriod),
		SensitiveFields: p.SensitiveFields.Or(cur.SensitiveFields),
	}
}
