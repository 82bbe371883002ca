package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/retention-registry/internal/domain"
	"github.com/xela07ax/retention-registry/internal/domain/ports"
)

// deliveryDeadline ограничивает доставку одного события вместе со всеми повторами.
const deliveryDeadline = 3 * time.Second

// notifier рассылает ChangeEvent после зафиксированной мутации.
// Ошибка доставки не отменяет уже выполненную операцию и только логируется.
// Доставка не зависит от отмены запроса: транзакция к этому моменту уже зафиксирована.
type notifier struct {
	pub     ports.ChangePublisher
	channel string
	kind    domain.EntityKind
	logger  *zap.Logger
}

func (n notifier) send(ctx context.Context, op domain.ChangeOp, id domain.ID, previous *domain.ID, actor string, at time.Time) {
	if n.pub == nil {
		return
	}

	ev := domain.NewChangeEvent(n.kind, op, id, previous, actor, at)
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Warn("failed to encode change event", zap.String("event_id", ev.EventID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryDeadline)
	defer cancel()

	if err := n.pub.Publish(ctx, n.channel, payload); err != nil {
		n.logger.Warn("change notification delivery failed",
			zap.String("channel", n.channel),
			zap.String("event_id", ev.EventID),
			zap.String("op", string(op)),
			zap.Error(err))
	}
}

// logFailure: ожидаемые исходы (not found, конфликт ссылок, валидация): Info,
// отказы хранилища: Error.
func logFailure(logger *zap.Logger, op string, id domain.ID, actor string, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.Stringer("id", id),
		zap.String("actor", actor),
		zap.String("outcome", domain.Outcome(err)),
		zap.Error(err),
	}
	if domain.IsExpected(err) {
		logger.Info("operation refused", fields...)
		return
	}
	logger.Error("operation failed", fields...)
}
