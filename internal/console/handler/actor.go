package handler

import (
	"context"
	"net/http"
	"strings"
)

type actorKey struct{}

// WithActor кладет идентичность вызывающего в контекст запроса.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom возвращает идентичность из контекста или пустую строку.
// Значения по умолчанию нет: пустого actor отклонит движок.
func ActorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

// RequireActor достает идентичность из заголовка header для изменяющих запросов.
// Чтение доступно без заголовка.
func RequireActor(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			actor := strings.TrimSpace(r.Header.Get(header))
			if actor == "" {
				writeError(w, http.StatusBadRequest,
					"Validation failed: acting identity is required",
					"missing "+header+" header",
					"Send the caller identity in the "+header+" header.")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}
