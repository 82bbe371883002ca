package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/xela07ax/retention-registry/internal/domain"
	"github.com/xela07ax/retention-registry/internal/domain/ports"
	"github.com/xela07ax/retention-registry/internal/engine"
	"github.com/xela07ax/retention-registry/internal/infra"
)

// ModelService: хранилище моделей хранения. Update и Delete запрещены,
// пока на живую строку модели ссылается хотя бы одна живая политика.
type ModelService struct {
	engine *engine.Engine[domain.ModelFields, ports.ModelTx]
	notify notifier
	logger *zap.Logger
}

func NewModelService(repo ports.ModelRepository, pub ports.ChangePublisher, metrics *engine.Metrics, logger *zap.Logger) *ModelService {
	logger = logger.Named("model-service")
	eng := engine.New[domain.ModelFields, ports.ModelTx](domain.KindModel, repo, engine.Config[ports.ModelTx]{
		Guard:   livePolicyReferences,
		Metrics: metrics,
	})
	return &ModelService{
		engine: eng,
		notify: notifier{pub: pub, channel: infra.RedisChanModelChanges, kind: eng.Kind(), logger: logger},
		logger: logger,
	}
}

// livePolicyReferences: guard модели: число живых политик, ссылающихся на строку.
func livePolicyReferences(ctx context.Context, tx ports.ModelTx, id domain.ID) (int, error) {
	return tx.CountLivePolicies(ctx, id)
}

func (s *ModelService) Create(ctx context.Context, fields domain.ModelFields, actor string) (domain.Model, error) {
	m, err := s.engine.Create(ctx, fields, actor)
	if err != nil {
		logFailure(s.logger, "create", 0, actor, err)
		return domain.Model{}, err
	}

	s.logger.Info("retention model created", zap.Stringer("id", m.ID), zap.String("actor", actor))
	s.notify.send(ctx, domain.OpCreate, m.ID, nil, actor, m.CreatedAt)
	return m, nil
}

func (s *ModelService) Get(ctx context.Context, id domain.ID) (domain.Model, error) {
	return s.engine.Get(ctx, id)
}

func (s *ModelService) List(ctx context.Context) ([]domain.Model, error) {
	return s.engine.List(ctx)
}

func (s *ModelService) Update(ctx context.Context, id domain.ID, patch domain.ModelPatch, actor string) (domain.Model, error) {
	next, err := s.engine.Update(ctx, id, patch, actor)
	if err != nil {
		logFailure(s.logger, "update", id, actor, err)
		return domain.Model{}, err
	}

	s.logger.Info("retention model updated",
		zap.Stringer("id", id),
		zap.Stringer("new_id", next.ID),
		zap.String("actor", actor))
	s.notify.send(ctx, domain.OpUpdate, next.ID, &id, actor, next.CreatedAt)
	return next, nil
}

// Delete выводит модель из оборота и возвращает строку в состоянии "выведена".
func (s *ModelService) Delete(ctx context.Context, id domain.ID, actor string) (domain.Model, error) {
	retired, err := s.engine.Delete(ctx, id, actor)
	if err != nil {
		logFailure(s.logger, "delete", id, actor, err)
		return domain.Model{}, err
	}

	s.logger.Info("retention model soft deleted", zap.Stringer("id", id), zap.String("actor", actor))
	s.notify.send(ctx, domain.OpDelete, id, nil, actor, retired.Retired.At)
	return retired, nil
}
