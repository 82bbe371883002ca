package memory

import (
	"context"
	"time"

	"github.com/xela07ax/retention-registry/internal/domain"
	"github.com/xela07ax/retention-registry/internal/domain/ports"
)

type ModelRepo struct {
	db *DB
}

func (r *ModelRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.ModelTx) error) error {
	return r.db.write(ctx, func(t *txn) error {
		return fn(ctx, &modelTx{db: r.db, txn: t})
	})
}

func (r *ModelRepo) GetLive(ctx context.Context, id domain.ID) (domain.Model, error) {
	if err := ctx.Err(); err != nil {
		return domain.Model{}, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	row, ok := r.db.models.live(id)
	if !ok {
		return domain.Model{}, domain.ErrNotFound
	}
	return row, nil
}

func (r *ModelRepo) ListLive(ctx context.Context) ([]domain.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return r.db.models.listLive(nil), nil
}

// Version возвращает строку в любом состоянии (в том числе выведенную).
func (r *ModelRepo) Version(id domain.ID) (domain.Model, bool) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.models.get(id)
}

type modelTx struct {
	db  *DB
	txn *txn
}

func (t *modelTx) LockLive(_ context.Context, id domain.ID) (domain.Model, error) {
	row, ok := t.db.models.live(id)
	if !ok {
		return domain.Model{}, domain.ErrNotFound
	}
	return row, nil
}

func (t *modelTx) Insert(_ context.Context, fields domain.ModelFields, createdBy string, at time.Time) (domain.Model, error) {
	row, undo := t.db.models.insert(fields, createdBy, at)
	t.txn.record(undo)
	return row, nil
}

func (t *modelTx) Retire(_ context.Context, id domain.ID, r domain.Retirement) (int64, error) {
	n, undo := t.db.models.retire(id, r)
	t.txn.record(undo)
	return n, nil
}

func (t *modelTx) CountLivePolicies(_ context.Context, modelID domain.ID) (int, error) {
	return t.db.countLivePolicies(modelID), nil
}
