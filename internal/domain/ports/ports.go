// Package ports описывает контракты хранилища, которые потребляют сервисы моделей и политик.
package ports

import (
	"context"

	"github.com/xela07ax/retention-registry/internal/domain"
	"github.com/xela07ax/retention-registry/internal/engine"
)

// ModelTx: транзакция над моделями хранения.
type ModelTx interface {
	engine.Tx[domain.ModelFields]

	// CountLivePolicies считает живые политики, ссылающиеся на строку модели modelID.
	CountLivePolicies(ctx context.Context, modelID domain.ID) (int, error)
}

// PolicyTx: транзакция над политиками хранения.
type PolicyTx interface {
	engine.Tx[domain.PolicyFields]

	// ShareLiveModel возвращает живую строку модели и не дает конкурентной транзакции
	// вывести ее из оборота до конца текущей. Для не живой модели: domain.ErrNotFound.
	ShareLiveModel(ctx context.Context, modelID domain.ID) (domain.Model, error)
}

type ModelRepository interface {
	engine.Store[domain.ModelFields, ModelTx]
}

type PolicyRepository interface {
	engine.Store[domain.PolicyFields, PolicyTx]

	ListLiveByTenant(ctx context.Context, tenant string) ([]domain.Policy, error)
}

// ChangePublisher доставляет уведомления об изменениях (Redis Pub/Sub и т.п.).
type ChangePublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
