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

const policyCols = `id, retention_model_id, retention_period, action, tenant, ` + versionCols

// PolicyRepo хранит версии политик хранения в таблице retention_policies.
type PolicyRepo struct {
	pool pgPool
}

func NewPolicyRepo(pool pgPool) *PolicyRepo {
	return &PolicyRepo{pool: pool}
}

func (r *PolicyRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.PolicyTx) error) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &policyTx{tx: tx})
	})
}

func (r *PolicyRepo) GetLive(ctx context.Context, id domain.ID) (domain.Policy, error) {
	query := `SELECT ` + policyCols + ` FROM retention_policies WHERE id = $1 AND deleted_by IS NULL`
	return onePolicy(r.pool.QueryRow(ctx, query, int64(id)))
}

func (r *PolicyRepo) ListLive(ctx context.Context) ([]domain.Policy, error) {
	query := `SELECT ` + policyCols + ` FROM retention_policies WHERE deleted_by IS NULL ORDER BY id`
	return r.list(ctx, query)
}

// ListLiveByTenant: живые политики одного арендатора (точное совпадение).
func (r *PolicyRepo) ListLiveByTenant(ctx context.Context, tenant string) ([]domain.Policy, error) {
	query := `SELECT ` + policyCols + ` FROM retention_policies WHERE tenant = $1 AND deleted_by IS NULL ORDER BY id`
	return r.list(ctx, query, tenant)
}

func (r *PolicyRepo) list(ctx context.Context, query string, args ...any) ([]domain.Policy, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list retention policies: %w", err)
	}
	policies, err := collect(rows, scanPolicy)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to scan retention policies: %w", err)
	}
	return policies, nil
}

type policyTx struct {
	tx pgx.Tx
}

func (t *policyTx) LockLive(ctx context.Context, id domain.ID) (domain.Policy, error) {
	query := `SELECT ` + policyCols + ` FROM retention_policies WHERE id = $1 AND deleted_by IS NULL FOR UPDATE`
	return onePolicy(t.tx.QueryRow(ctx, query, int64(id)))
}

func (t *policyTx) Insert(ctx context.Context, f domain.PolicyFields, createdBy string, at time.Time) (domain.Policy, error) {
	query := `
		INSERT INTO retention_policies (retention_model_id, retention_period, action, tenant, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var id int64
	err := t.tx.QueryRow(ctx, query,
		int64(f.ModelID), f.RetentionPeriod, f.Action, f.Tenant, createdBy, at,
	).Scan(&id)
	if err != nil {
		return domain.Policy{}, fmt.Errorf("postgres: failed to insert retention policy: %w", classify(err))
	}

	return domain.Policy{
		Version: domain.Version{ID: domain.ID(id), CreatedBy: createdBy, CreatedAt: at},
		Fields:  f,
	}, nil
}

func (t *policyTx) Retire(ctx context.Context, id domain.ID, r domain.Retirement) (int64, error) {
	query := `
		UPDATE retention_policies
		SET deleted_by = $2, deleted_at = $3, superseded_by_id = $4
		WHERE id = $1 AND deleted_by IS NULL`

	by, at, next := retirementArgs(r)
	ct, err := t.tx.Exec(ctx, query, int64(id), by, at, next)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to retire retention policy: %w", classify(err))
	}
	return ct.RowsAffected(), nil
}

// ShareLiveModel держит FOR SHARE на строке модели: конкурентный update/delete
// модели (FOR UPDATE) дождется конца этой транзакции и увидит новую политику.
func (t *policyTx) ShareLiveModel(ctx context.Context, modelID domain.ID) (domain.Model, error) {
	query := `SELECT ` + modelCols + ` FROM retention_models WHERE id = $1 AND deleted_by IS NULL FOR SHARE`
	return oneModel(t.tx.QueryRow(ctx, query, int64(modelID)))
}

func scanPolicy(row pgx.Row) (domain.Policy, error) {
	var (
		v       versionScan
		f       domain.PolicyFields
		modelID int64
	)
	dest := append([]any{&v.id, &modelID, &f.RetentionPeriod, &f.Action, &f.Tenant}, v.dest()...)
	if err := row.Scan(dest...); err != nil {
		return domain.Policy{}, err
	}
	f.ModelID = domain.ID(modelID)
	return domain.Policy{Version: v.version(), Fields: f}, nil
}

func onePolicy(row pgx.Row) (domain.Policy, error) {
	p, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Policy{}, domain.ErrNotFound
		}
		return domain.Policy{}, fmt.Errorf("postgres: failed to get retention policy: %w", err)
	}
	return p, nil
}
