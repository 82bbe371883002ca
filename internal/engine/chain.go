package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/retention-registry/internal/domain"
)

// Advance продвигает цепочку версий: вставляет преемника с полями next
// и выводит live из оборота со ссылкой на преемника.
// Обе записи идут через один tx, поэтому фиксируются или откатываются вместе.
func Advance[F any](ctx context.Context, tx Tx[F], live domain.Row[F], next F, actor string, at time.Time) (successor, retired domain.Row[F], err error) {
	if !live.Live() {
		return successor, retired, fmt.Errorf("row %s: %w", live.ID, domain.ErrNotFound)
	}

	successor, err = tx.Insert(ctx, next, actor, at)
	if err != nil {
		return domain.Row[F]{}, retired, err
	}

	retirement := domain.Superseded(actor, at, successor.ID)
	if err = retire[F](ctx, tx, live.ID, retirement); err != nil {
		return domain.Row[F]{}, retired, err
	}

	retired = live
	retired.Retired = &retirement
	return successor, retired, nil
}

// Retire выводит live из оборота без преемника.
func Retire[F any](ctx context.Context, tx Tx[F], live domain.Row[F], actor string, at time.Time) (domain.Row[F], error) {
	if !live.Live() {
		return domain.Row[F]{}, fmt.Errorf("row %s: %w", live.ID, domain.ErrNotFound)
	}

	retirement := domain.Deleted(actor, at)
	if err := retire[F](ctx, tx, live.ID, retirement); err != nil {
		return domain.Row[F]{}, err
	}

	live.Retired = &retirement
	return live, nil
}

// retire требует ровно одну затронутую строку: ноль означает, что строку
// уже вывели из оборота, и транзакция должна откатиться.
func retire[F any](ctx context.Context, tx Tx[F], id domain.ID, r domain.Retirement) error {
	n, err := tx.Retire(ctx, id, r)
	if err != nil {
		return err
	}
	switch n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("row %s: %w", id, domain.ErrNotFound)
	default:
		return fmt.Errorf("row %s: retire affected %d rows", id, n)
	}
}
