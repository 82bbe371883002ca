package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xela07ax/retention-registry/internal/domain"
	"github.com/xela07ax/retention-registry/internal/domain/ports"
)

const modelCols = `id, name, ownership, description, retention_period, sensitive_fields, ` + versionCols

// ModelRepo хранит версии моделей хранения в таблице retention_models.
type ModelRepo struct {
	pool pgPool
}

func NewModelRepo(pool pgPool) *ModelRepo {
	return &ModelRepo{pool: pool}
}

func (r *ModelRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.ModelTx) error) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &modelTx{tx: tx})
	})
}

func (r *ModelRepo) GetLive(ctx context.Context, id domain.ID) (domain.Model, error) {
	query := `SELECT ` + modelCols + ` FROM retention_models WHERE id = $1 AND deleted_by IS NULL`
	return oneModel(r.pool.QueryRow(ctx, query, int64(id)))
}

func (r *ModelRepo) ListLive(ctx context.Context) ([]domain.Model, error) {
	query := `SELECT ` + modelCols + ` FROM retention_models WHERE deleted_by IS NULL ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list retention models: %w", err)
	}
	models, err := collect(rows, scanModel)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to scan retention models: %w", err)
	}
	return models, nil
}

type modelTx struct {
	tx pgx.Tx
}

func (t *modelTx) LockLive(ctx context.Context, id domain.ID) (domain.Model, error) {
	query := `SELECT ` + modelCols + ` FROM retention_models WHERE id = $1 AND deleted_by IS NULL FOR UPDATE`
	return oneModel(t.tx.QueryRow(ctx, query, int64(id)))
}

func (t *modelTx) Insert(ctx context.Context, f domain.ModelFields, createdBy string, at time.Time) (domain.Model, error) {
	query := `
		INSERT INTO retention_models (name, ownership, description, retention_period, sensitive_fields, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	var id int64
	err := t.tx.QueryRow(ctx, query,
		f.Name, f.Ownership, f.Description, f.RetentionPeriod, f.SensitiveFields, createdBy, at,
	).Scan(&id)
	if err != nil {
		return domain.Model{}, fmt.Errorf("postgres: failed to insert retention model: %w", classify(err))
	}

	return domain.Model{
		Version: domain.Version{ID: domain.ID(id), CreatedBy: createdBy, CreatedAt: at},
		Fields:  f,
	}, nil
}

func (t *modelTx) Retire(ctx context.Context, id domain.ID, r domain.Retirement) (int64, error) {
	query := `
		UPDATE retention_models
		SET deleted_by = $2, deleted_at = $3, superseded_by_id = $4
		WHERE id = $1 AND deleted_by IS NULL`

	by, at, next := retirementArgs(r)
	ct, err := t.tx.Exec(ctx, query, int64(id), by, at, next)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to retire retention model: %w", classify(err))
	}
	return ct.RowsAffected(), nil
}

func (t *modelTx) CountLivePolicies(ctx context.Context, modelID domain.ID) (int, error) {
	query := `SELECT COUNT(*) FROM retention_policies WHERE retention_model_id = $1 AND deleted_by IS NULL`

	var n int
	if err := t.tx.QueryRow(ctx, query, int64(modelID)).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: failed to count policies: %w", err)
	}
	return n, nil
}

func scanModel(row pgx.Row) (domain.Model, error) {
	var (
		v versionScan
		f domain.ModelFields
	)
	dest := append([]any{&v.id, &f.Name, &f.Ownership, &f.Description, &f.RetentionPeriod, &f.SensitiveFields}, v.dest()...)
	if err := row.Scan(dest...); err != nil {
		return domain.Model{}, err
	}
	return domain.Model{Version: v.version(), Fields: f}, nil
}

func oneModel(row pgx.Row) (domain.Model, error) {
	m, err := scanModel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Model{}, domain.ErrNotFound
		}
		return domain.Model{}, fmt.Errorf("postgres: failed to get retention model: %w", err)
	}
	return m, nil
}
