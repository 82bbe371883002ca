package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID: идентификатор физической строки. У логической сущности нет постоянного ID:
// каждая версия получает свой собственный.
type ID int64

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseID разбирает идентификатор из пути запроса.
func ParseID(raw string) (ID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", ErrValidation, raw)
	}
	return ID(n), nil
}

// Retirement фиксирует, кто и когда вывел строку из оборота.
// SupersededBy заполнен только если строку заменила новая версия (update),
// при удалении (delete) он остается nil.
type Retirement struct {
	By           string
	At           time.Time
	SupersededBy *ID
}

// Superseded: строка заменена преемником next.
func Superseded(by string, at time.Time, next ID) Retirement {
	return Retirement{By: by, At: at, SupersededBy: &next}
}

// Deleted: строка удалена без преемника.
func Deleted(by string, at time.Time) Retirement {
	return Retirement{By: by, At: at}
}

// Version: жизненный цикл физической строки.
// Retired == nil означает "живая" строка; состояние "живая, но с преемником" непредставимо.
type Version struct {
	ID        ID
	CreatedBy string
	CreatedAt time.Time
	Retired   *Retirement
}

func (v Version) Live() bool { return v.Retired == nil }

// Row: одна физическая версия логической сущности с набором полей F.
type Row[F any] struct {
	Version
	Fields F
}
