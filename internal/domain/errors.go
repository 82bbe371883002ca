package domain

import (
	"errors"
	"fmt"
)

// Таксономия отказов движка. Вызывающий различает их через errors.Is.
var (
	ErrNotFound          = errors.New("not found or deleted")
	ErrReferenceConflict = errors.New("referenced by a live retention policy")
	ErrDanglingReference = errors.New("retention model does not exist or is deleted")
	ErrValidation        = errors.New("validation failed")
	ErrStorage           = errors.New("storage failure")
)

// Стабильные метки исходов для метрик и логов.
const (
	OutcomeOK                = "ok"
	OutcomeNotFound          = "not_found"
	OutcomeReferenceConflict = "reference_conflict"
	OutcomeDanglingReference = "dangling_reference"
	OutcomeValidation        = "validation"
	OutcomeStorage           = "storage"
)

func NewValidationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Outcome сводит ошибку к одной из меток таксономии.
// Все, что не распознано, считается отказом хранилища.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrReferenceConflict):
		return OutcomeReferenceConflict
	case errors.Is(err, ErrDanglingReference):
		return OutcomeDanglingReference
	case errors.Is(err, ErrValidation):
		return OutcomeValidation
	default:
		return OutcomeStorage
	}
}

// IsExpected: исходы, которые вызывающий может обработать сам (не сбой).
func IsExpected(err error) bool {
	switch Outcome(err) {
	case OutcomeNotFound, OutcomeReferenceConflict, OutcomeDanglingReference, OutcomeValidation:
		return true
	}
	return false
}
