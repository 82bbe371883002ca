package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xela07ax/retention-registry/internal/domain"
)

// Fields: набор полей сущности, который умеет проверять сам себя.
type Fields interface {
	Validate() error
}

// Patch: частичное обновление набора полей F.
type Patch[F any] interface {
	Apply(cur F) F
}

// Config: необязательные зависимости движка.
type Config[T any] struct {
	Guard   Guard[T] // nil: сущность без входящих ссылок
	Now     func() time.Time
	Metrics *Metrics
}

// Engine: версионированный движок CRUD без физических UPDATE/DELETE.
// Каждая мутация: одна транзакция хранилища: найти и заблокировать живую строку,
// проверить guard, записать.
type Engine[F Fields, T Tx[F]] struct {
	kind    domain.EntityKind
	store   Store[F, T]
	guard   Guard[T]
	now     func() time.Time
	metrics *Metrics
}

func New[F Fields, T Tx[F]](kind domain.EntityKind, store Store[F, T], cfg Config[T]) *Engine[F, T] {
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine[F, T]{
		kind:    kind,
		store:   store,
		guard:   cfg.Guard,
		now:     now,
		metrics: cfg.Metrics,
	}
}

func (e *Engine[F, T]) Kind() domain.EntityKind { return e.kind }

// Create вставляет первую версию новой логической сущности.
func (e *Engine[F, T]) Create(ctx context.Context, fields F, actor string) (domain.Row[F], error) {
	return e.CreateWith(ctx, actor, func(context.Context, T) (F, error) { return fields, nil })
}

// CreateWith позволяет собрать поля внутри транзакции записи
// (например, прочитать ссылку и унаследовать от нее значения).
func (e *Engine[F, T]) CreateWith(ctx context.Context, actor string, build func(ctx context.Context, tx T) (F, error)) (row domain.Row[F], err error) {
	defer e.metrics.observe(e.kind, "create", time.Now(), &err)

	if err = requireActor(actor); err != nil {
		return row, err
	}

	err = e.store.InTx(ctx, func(ctx context.Context, tx T) error {
		fields, err := build(ctx, tx)
		if err != nil {
			return err
		}
		if err := fields.Validate(); err != nil {
			return err
		}
		row, err = tx.Insert(ctx, fields, actor, e.now())
		return err
	})
	if err != nil {
		return domain.Row[F]{}, Classify(err)
	}
	return row, nil
}

// Get возвращает строку только если id указывает на живую версию.
// По supersededById движок автоматически не переходит.
func (e *Engine[F, T]) Get(ctx context.Context, id domain.ID) (row domain.Row[F], err error) {
	defer e.metrics.observe(e.kind, "get", time.Now(), &err)

	row, err = e.store.GetLive(ctx, id)
	if err != nil {
		return domain.Row[F]{}, Classify(e.wrapNotFound(id, err))
	}
	if !row.Live() {
		return domain.Row[F]{}, e.notFound(id)
	}
	return row, nil
}

// List возвращает все живые строки. Порядок не гарантируется.
func (e *Engine[F, T]) List(ctx context.Context) (rows []domain.Row[F], err error) {
	defer e.metrics.observe(e.kind, "list", time.Now(), &err)

	rows, err = e.store.ListLive(ctx)
	if err != nil {
		return nil, Classify(err)
	}
	if rows == nil {
		rows = []domain.Row[F]{}
	}
	return rows, nil
}

// Update применяет частичное обновление к живой строке id и возвращает преемника.
func (e *Engine[F, T]) Update(ctx context.Context, id domain.ID, patch Patch[F], actor string) (domain.Row[F], error) {
	return e.UpdateWith(ctx, id, actor, func(_ context.Context, _ T, cur F) (F, error) {
		return patch.Apply(cur), nil
	})
}

// UpdateWith: Update с произвольным слиянием полей внутри транзакции.
func (e *Engine[F, T]) UpdateWith(ctx context.Context, id domain.ID, actor string, merge func(ctx context.Context, tx T, cur F) (F, error)) (successor domain.Row[F], err error) {
	defer e.metrics.observe(e.kind, "update", time.Now(), &err)

	if err = requireActor(actor); err != nil {
		return successor, err
	}

	err = e.store.InTx(ctx, func(ctx context.Context, tx T) error {
		live, err := tx.LockLive(ctx, id)
		if err != nil {
			return e.wrapNotFound(id, err)
		}
		if err := e.checkGuard(ctx, tx, live.ID); err != nil {
			return err
		}

		next, err := merge(ctx, tx, live.Fields)
		if err != nil {
			return err
		}
		if err := next.Validate(); err != nil {
			return err
		}

		successor, _, err = Advance[F](ctx, tx, live, next, actor, e.now())
		return err
	})
	if err != nil {
		return domain.Row[F]{}, Classify(err)
	}
	return successor, nil
}

// Delete выводит живую строку id из оборота без преемника и возвращает ее
// в состоянии "выведена".
func (e *Engine[F, T]) Delete(ctx context.Context, id domain.ID, actor string) (retired domain.Row[F], err error) {
	defer e.metrics.observe(e.kind, "delete", time.Now(), &err)

	if err = requireActor(actor); err != nil {
		return retired, err
	}

	err = e.store.InTx(ctx, func(ctx context.Context, tx T) error {
		// Сначала проверяем существование живой строки, а не полагаемся только
		// на число затронутых строк: так "не найдено" отличается от сбоя записи.
		live, err := tx.LockLive(ctx, id)
		if err != nil {
			return e.wrapNotFound(id, err)
		}
		if err := e.checkGuard(ctx, tx, live.ID); err != nil {
			return err
		}

		retired, err = Retire[F](ctx, tx, live, actor, e.now())
		return err
	})
	if err != nil {
		return domain.Row[F]{}, Classify(err)
	}
	return retired, nil
}

func (e *Engine[F, T]) checkGuard(ctx context.Context, tx T, id domain.ID) error {
	if e.guard == nil {
		return nil
	}
	n, err := e.guard(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("%s %s: reference check: %w", e.kind, id, err)
	}
	if n > 0 {
		return fmt.Errorf("%s %s has %d live references: %w", e.kind, id, n, domain.ErrReferenceConflict)
	}
	return nil
}

func (e *Engine[F, T]) notFound(id domain.ID) error {
	return fmt.Errorf("%s %s: %w", e.kind, id, domain.ErrNotFound)
}

func (e *Engine[F, T]) wrapNotFound(id domain.ID, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return e.notFound(id)
	}
	return err
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return domain.NewValidationError("acting identity is required")
	}
	return nil
}

// Classify оставляет известные виды отказов как есть, а все прочее
// помечает как ErrStorage. Повторов движок не делает.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		domain.ErrNotFound,
		domain.ErrReferenceConflict,
		domain.ErrDanglingReference,
		domain.ErrValidation,
		domain.ErrStorage,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrStorage, err)
}
