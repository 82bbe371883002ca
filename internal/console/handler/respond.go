package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/xela07ax/retention-registry/internal/domain"
)

const (
	msgInvalidJSON   = "Invalid JSON data provided for the request."
	msgInternal      = "An error occurred while processing your request."
	hintInvalidJSON  = "Please check the request body for correct JSON format and try again."
	hintInternal     = "Please try again later. Our developers have been notified of this issue."
	hintValidation   = "Please check the request fields and try again."
	msgDanglingModel = "Retention model does not exist or is deleted"
	msgTenantChange  = "Validation failed: tenant cannot be changed"
)

// ErrorResponse: тело любого неуспешного ответа.
type ErrorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

var validate = newValidator()

// newValidator называет поля в ошибках по json-тегам, как их видит клиент.
// notblank отклоняет строки из одних пробелов.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details, hint string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details, Suggestion: hint})
}

// decode читает тело запроса строго: неизвестные поля и данные после объекта отклоняются.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON, err.Error(), hintInvalidJSON)
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, msgInvalidJSON, "unexpected data after the JSON object", hintInvalidJSON)
		return false
	}

	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err), "", hintValidation)
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Validation failed: " + err.Error()
	}

	var b strings.Builder
	b.WriteString("Validation failed: ")
	for _, fe := range verrs {
		b.WriteString(fe.Field())
		b.WriteString(" ")
		switch fe.Tag() {
		case "required":
			b.WriteString("is required")
		case "notblank":
			b.WriteString("must not be blank")
		case "gt":
			b.WriteString("must be greater than " + fe.Param())
		default:
			b.WriteString("failed on " + fe.Tag())
		}
		b.WriteString("; ")
	}
	return b.String()
}

// messages: тексты ответов, зависящие от вида сущности и операции.
type messages struct {
	notFound string
	conflict string
}

// writeDomainError переводит вид отказа домена в HTTP статус.
func writeDomainError(w http.ResponseWriter, err error, m messages) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, m.notFound, "", "")
	case errors.Is(err, domain.ErrReferenceConflict):
		writeError(w, http.StatusConflict, m.conflict, "", "Delete the referencing retention policies first.")
	case errors.Is(err, domain.ErrDanglingReference):
		writeError(w, http.StatusConflict, msgDanglingModel, err.Error(), "Reference a live retention model.")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err.Error(), hintValidation)
	default:
		writeError(w, http.StatusInternalServerError, msgInternal, "", hintInternal)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (domain.ID, bool) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err.Error(), "Use a positive numeric id.")
		return 0, false
	}
	return id, true
}

// pathParam декодирует сегмент пути. chi отдает его экранированным,
// только если маршрутизация шла по RawPath.
func pathParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return raw, nil
	}
	return url.PathUnescape(raw)
}
