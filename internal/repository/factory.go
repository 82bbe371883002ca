// Package repository выбирает хранилище строк по конфигурации.
package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xela07ax/retention-registry/internal/domain/ports"
	"github.com/xela07ax/retention-registry/internal/infra"
	"github.com/xela07ax/retention-registry/internal/repository/memory"
	"github.com/xela07ax/retention-registry/internal/repository/postgres"
)

// Storage: пара репозиториев поверх одного бэкенда.
type Storage struct {
	Models   ports.ModelRepository
	Policies ports.PolicyRepository

	ping  func(ctx context.Context) error
	close func()
}

func (s *Storage) Ping(ctx context.Context) error { return s.ping(ctx) }

func (s *Storage) Close() { s.close() }

// Open создает хранилище для cfg.Driver.
func Open(ctx context.Context, cfg infra.DatabaseConfig, logger *zap.Logger) (*Storage, error) {
	logger = logger.Named("storage")

	switch cfg.Driver {
	case infra.DriverMemory:
		db := memory.New()
		logger.Warn("using in-memory storage, data will not survive a restart")
		return &Storage{
			Models:   db.Models(),
			Policies: db.Policies(),
			ping:     db.Ping,
			close:    func() {},
		}, nil

	case infra.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if cfg.ApplySchema {
			if err := postgres.ApplySchema(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
			logger.Info("schema applied")
		}
		return &Storage{
			Models:   postgres.NewModelRepo(pool),
			Policies: postgres.NewPolicyRepo(pool),
			ping:     pool.Ping,
			close:    pool.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
