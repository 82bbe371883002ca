package postgres

import (
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xela07ax/retention-registry/internal/domain"
)

// versionCols: колонки жизненного цикла, общие для обеих таблиц.
const versionCols = `created_by, created_at, deleted_by, deleted_at, superseded_by_id`

// versionScan собирает nullable-колонки версии.
type versionScan struct {
	id           int64
	createdBy    string
	createdAt    time.Time
	deletedBy    *string
	deletedAt    *time.Time
	supersededBy *int64
}

func (s *versionScan) dest() []any {
	return []any{&s.createdBy, &s.createdAt, &s.deletedBy, &s.deletedAt, &s.supersededBy}
}

func (s *versionScan) version() domain.Version {
	return domain.Version{
		ID:        domain.ID(s.id),
		CreatedBy: s.createdBy,
		CreatedAt: s.createdAt,
		Retired:   retirementFrom(s.deletedBy, s.deletedAt, s.supersededBy),
	}
}

// retirementFrom: при deleted_by IS NULL строка живая.
func retirementFrom(by *string, at *time.Time, next *int64) *domain.Retirement {
	if by == nil {
		return nil
	}
	r := &domain.Retirement{By: *by}
	if at != nil {
		r.At = *at
	}
	if next != nil {
		id := domain.ID(*next)
		r.SupersededBy = &id
	}
	return r
}

// retirementArgs раскладывает Retirement в параметры UPDATE.
func retirementArgs(r domain.Retirement) (string, time.Time, *int64) {
	var next *int64
	if r.SupersededBy != nil {
		id := int64(*r.SupersededBy)
		next = &id
	}
	return r.By, r.At, next
}

func collect[R any](rows pgx.Rows, scan func(pgx.Row) (R, error)) ([]R, error) {
	defer rows.Close()

	out := []R{}
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
