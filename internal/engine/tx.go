package engine

import (
	"context"
	"time"

	"github.com/xela07ax/retention-registry/internal/domain"
)

// Tx: взгляд хранилища на строки одного вида сущностей внутри одной транзакции.
// Все записи через один Tx применяются атомарно: либо все, либо ни одной.
type Tx[F any] interface {
	// LockLive возвращает живую строку и удерживает ее от конкурентных мутаций
	// до конца транзакции. Для неизвестного или выведенного id: domain.ErrNotFound.
	LockLive(ctx context.Context, id domain.ID) (domain.Row[F], error)
	Insert(ctx context.Context, fields F, createdBy string, at time.Time) (domain.Row[F], error)
	// Retire выводит живую строку из оборота и возвращает число затронутых строк.
	Retire(ctx context.Context, id domain.ID, r domain.Retirement) (int64, error)
}

// Store: хранилище строк одного вида. T: транзакционный интерфейс,
// который может быть шире Tx (например, со счетчиком ссылок для guard).
type Store[F any, T Tx[F]] interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx T) error) error
	GetLive(ctx context.Context, id domain.ID) (domain.Row[F], error)
	ListLive(ctx context.Context) ([]domain.Row[F], error)
}

// Guard считает живые ссылки на строку id. Выполняется в той же транзакции,
// что и последующая запись.
type Guard[T any] func(ctx context.Context, tx T, id domain.ID) (int, error)
