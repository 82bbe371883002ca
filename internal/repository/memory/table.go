package memory

import (
	"sort"
	"time"

	"github.com/xela07ax/retention-registry/internal/domain"
)

// table: строки одного вида сущностей. Не потокобезопасна сама по себе,
// синхронизацию обеспечивает DB.
type table[F any] struct {
	rows map[domain.ID]domain.Row[F]
	seq  domain.ID
}

func newTable[F any]() *table[F] {
	return &table[F]{rows: make(map[domain.ID]domain.Row[F])}
}

func (t *table[F]) get(id domain.ID) (domain.Row[F], bool) {
	row, ok := t.rows[id]
	return row, ok
}

func (t *table[F]) live(id domain.ID) (domain.Row[F], bool) {
	row, ok := t.rows[id]
	if !ok || !row.Live() {
		return domain.Row[F]{}, false
	}
	return row, true
}

// insert возвращает новую строку и функцию отката.
// Последовательность, как и в Postgres, при откате не возвращается назад.
func (t *table[F]) insert(fields F, by string, at time.Time) (domain.Row[F], func()) {
	t.seq++
	row := domain.Row[F]{
		Version: domain.Version{ID: t.seq, CreatedBy: by, CreatedAt: at},
		Fields:  fields,
	}
	t.rows[row.ID] = row
	return row, func() { delete(t.rows, row.ID) }
}

func (t *table[F]) retire(id domain.ID, r domain.Retirement) (int64, func()) {
	prev, ok := t.live(id)
	if !ok {
		return 0, nil
	}
	next := prev
	next.Retired = &r
	t.rows[id] = next
	return 1, func() { t.rows[id] = prev }
}

func (t *table[F]) listLive(keep func(domain.Row[F]) bool) []domain.Row[F] {
	out := make([]domain.Row[F], 0, len(t.rows))
	for _, row := range t.rows {
		if row.Live() && (keep == nil || keep(row)) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// txn накапливает функции отката изменений одной транзакции.
type txn struct {
	undo []func()
}

func (t *txn) record(fn func()) {
	if fn != nil {
		t.undo = append(t.undo, fn)
	}
}

func (t *txn) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}
