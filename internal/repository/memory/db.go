// Package memory: хранилище строк в памяти процесса. Используется в тестах
// и для локального запуска (database.driver=memory).
package memory

import (
	"context"
	"sync"

	"github.com/xela07ax/retention-registry/internal/domain"
)

// DB хранит обе таблицы под одним мьютексом: писатели сериализуются целиком,
// поэтому "найти живую строку -> проверить ссылки -> записать" атомарно.
type DB struct {
	mu       sync.RWMutex
	models   *table[domain.ModelFields]
	policies *table[domain.PolicyFields]
}

func New() *DB {
	return &DB{
		models:   newTable[domain.ModelFields](),
		policies: newTable[domain.PolicyFields](),
	}
}

func (db *DB) Models() *ModelRepo { return &ModelRepo{db: db} }

func (db *DB) Policies() *PolicyRepo { return &PolicyRepo{db: db} }

func (db *DB) Ping(ctx context.Context) error { return ctx.Err() }

// write выполняет fn под эксклюзивной блокировкой и откатывает
// все накопленные изменения, если fn вернула ошибку.
func (db *DB) write(ctx context.Context, fn func(t *txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	t := &txn{}
	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

func (db *DB) countLivePolicies(modelID domain.ID) int {
	n := 0
	for _, p := range db.policies.rows {
		if p.Live() && p.Fields.ModelID == modelID {
			n++
		}
	}
	return n
}
