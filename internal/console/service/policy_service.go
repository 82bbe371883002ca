package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xela07ax/retention-registry/internal/domain"
	"github.com/xela07ax/retention-registry/internal/domain/ports"
	"github.com/xela07ax/retention-registry/internal/engine"
	"github.com/xela07ax/retention-registry/internal/infra"
)

// PolicyService: хранилище политик хранения. Guard у политик нет,
// зато каждая запись проверяет, что модель, на которую она ссылается, жива.
type PolicyService struct {
	repo   ports.PolicyRepository
	engine *engine.Engine[domain.PolicyFields, ports.PolicyTx]
	notify notifier
	logger *zap.Logger
}

func NewPolicyService(repo ports.PolicyRepository, pub ports.ChangePublisher, metrics *engine.Metrics, logger *zap.Logger) *PolicyService {
	logger = logger.Named("policy-service")
	eng := engine.New[domain.PolicyFields, ports.PolicyTx](domain.KindPolicy, repo, engine.Config[ports.PolicyTx]{
		Metrics: metrics,
	})
	return &PolicyService{
		repo:   repo,
		engine: eng,
		notify: notifier{pub: pub, channel: infra.RedisChanPolicyChanges, kind: eng.Kind(), logger: logger},
		logger: logger,
	}
}

// Create создает политику. Не переданный retentionPeriod наследуется
// от живой строки модели, прочитанной в той же транзакции.
func (s *PolicyService) Create(ctx context.Context, draft domain.PolicyDraft, actor string) (domain.Policy, error) {
	p, err := s.engine.CreateWith(ctx, actor, func(ctx context.Context, tx ports.PolicyTx) (domain.PolicyFields, error) {
		model, err := liveModel(ctx, tx, draft.ModelID)
		if err != nil {
			return domain.PolicyFields{}, err
		}
		return draft.Resolve(model), nil
	})
	if err != nil {
		logFailure(s.logger, "create", 0, actor, err)
		return domain.Policy{}, err
	}

	s.logger.Info("retention policy created",
		zap.Stringer("id", p.ID),
		zap.Stringer("model_id", p.Fields.ModelID),
		zap.String("tenant", p.Fields.Tenant),
		zap.Bool("retention_inherited", !draft.RetentionPeriod.IsSet()),
		zap.String("actor", actor))
	s.notify.send(ctx, domain.OpCreate, p.ID, nil, actor, p.CreatedAt)
	return p, nil
}

func (s *PolicyService) Get(ctx context.Context, id domain.ID) (domain.Policy, error) {
	return s.engine.Get(ctx, id)
}

func (s *PolicyService) List(ctx context.Context) ([]domain.Policy, error) {
	return s.engine.List(ctx)
}

// ListByTenant возвращает живые политики арендатора tenant (точное совпадение).
// Пустой или пробельный tenant отклоняется так же, как при создании политики.
func (s *PolicyService) ListByTenant(ctx context.Context, tenant string) ([]domain.Policy, error) {
	if strings.TrimSpace(tenant) == "" {
		return nil, domain.NewValidationError("tenant is required")
	}

	policies, err := s.repo.ListLiveByTenant(ctx, tenant)
	if err != nil {
		return nil, engine.Classify(err)
	}
	if policies == nil {
		policies = []domain.Policy{}
	}
	return policies, nil
}

// Update применяет частичное обновление. Tenant не меняется никогда;
// итоговый modelId должен указывать на живую модель.
func (s *PolicyService) Update(ctx context.Context, id domain.ID, patch domain.PolicyPatch, actor string) (domain.Policy, error) {
	next, err := s.engine.UpdateWith(ctx, id, actor, func(ctx context.Context, tx ports.PolicyTx, cur domain.PolicyFields) (domain.PolicyFields, error) {
		fields := patch.Apply(cur)
		if _, err := liveModel(ctx, tx, fields.ModelID); err != nil {
			return domain.PolicyFields{}, err
		}
		return fields, nil
	})
	if err != nil {
		logFailure(s.logger, "update", id, actor, err)
		return domain.Policy{}, err
	}

	s.logger.Info("retention policy updated",
		zap.Stringer("id", id),
		zap.Stringer("new_id", next.ID),
		zap.String("actor", actor))
	s.notify.send(ctx, domain.OpUpdate, next.ID, &id, actor, next.CreatedAt)
	return next, nil
}

func (s *PolicyService) Delete(ctx context.Context, id domain.ID, actor string) (domain.Policy, error) {
	retired, err := s.engine.Delete(ctx, id, actor)
	if err != nil {
		logFailure(s.logger, "delete", id, actor, err)
		return domain.Policy{}, err
	}

	s.logger.Info("retention policy soft deleted", zap.Stringer("id", id), zap.String("actor", actor))
	s.notify.send(ctx, domain.OpDelete, id, nil, actor, retired.Retired.At)
	return retired, nil
}

// liveModel читает живую модель под разделяемой блокировкой.
// Для не живой модели возвращается DanglingReference, а не NotFound: не найдена ссылка, а не сама политика.
func liveModel(ctx context.Context, tx ports.PolicyTx, modelID domain.ID) (domain.Model, error) {
	if modelID <= 0 {
		return domain.Model{}, domain.NewValidationError("modelId is required")
	}
	model, err := tx.ShareLiveModel(ctx, modelID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Model{}, fmt.Errorf("retention model %s: %w", modelID, domain.ErrDanglingReference)
	}
	return model, err
}
