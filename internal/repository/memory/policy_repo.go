package memory

import (
	"context"
	"time"

	"github.com/xela07ax/retention-registry/internal/domain"
	"github.com/xela07ax/retention-registry/internal/domain/ports"
)

type PolicyRepo struct {
	db *DB
}

func (r *PolicyRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.PolicyTx) error) error {
	return r.db.write(ctx, func(t *txn) error {
		return fn(ctx, &policyTx{db: r.db, txn: t})
	})
}

func (r *PolicyRepo) GetLive(ctx context.Context, id domain.ID) (domain.Policy, error) {
	if err := ctx.Err(); err != nil {
		return domain.Policy{}, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	row, ok := r.db.policies.live(id)
	if !ok {
		return domain.Policy{}, domain.ErrNotFound
	}
	return row, nil
}

func (r *PolicyRepo) ListLive(ctx context.Context) ([]domain.Policy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return r.db.policies.listLive(nil), nil
}

func (r *PolicyRepo) ListLiveByTenant(ctx context.Context, tenant string) ([]domain.Policy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return r.db.policies.listLive(func(p domain.Policy) bool {
		return p.Fields.Tenant == tenant
	}), nil
}

// Version возвращает строку в любом состоянии (в том числе выведенную).
func (r *PolicyRepo) Version(id domain.ID) (domain.Policy, bool) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.policies.get(id)
}

type policyTx struct {
	db  *DB
	txn *txn
}

func (t *policyTx) LockLive(_ context.Context, id domain.ID) (domain.Policy, error) {
	row, ok := t.db.policies.live(id)
	if !ok {
		return domain.Policy{}, domain.ErrNotFound
	}
	return row, nil
}

func (t *policyTx) Insert(_ context.Context, fields domain.PolicyFields, createdBy string, at time.Time) (domain.Policy, error) {
	// Внешний ключ: как и в Postgres, ссылка на несуществующую строку модели не пишется.
	if _, ok := t.db.models.get(fields.ModelID); !ok {
		return domain.Policy{}, domain.ErrDanglingReference
	}
	row, undo := t.db.policies.insert(fields, createdBy, at)
	t.txn.record(undo)
	return row, nil
}

func (t *policyTx) Retire(_ context.Context, id domain.ID, r domain.Retirement) (int64, error) {
	n, undo := t.db.policies.retire(id, r)
	t.txn.record(undo)
	return n, nil
}

func (t *policyTx) ShareLiveModel(_ context.Context, modelID domain.ID) (domain.Model, error) {
	row, ok := t.db.models.live(modelID)
	if !ok {
		return domain.Model{}, domain.ErrNotFound
	}
	return row, nil
}
