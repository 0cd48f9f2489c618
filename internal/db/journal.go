package db

import (
	"context"
	"fmt"

	"github.com/audt-staking/backend/internal/config"
	"github.com/audt-staking/backend/internal/engine"
	"github.com/audt-staking/backend/internal/journal"
	"github.com/audt-staking/backend/internal/repositories"
	"github.com/audt-staking/backend/internal/services"
	"go.uber.org/zap"
)

// Store is an opened operation journal with the event history reader that
// matches it.
type Store struct {
	Journal engine.Journal
	Events  services.EventLister
	// Shared is set when other processes can read the journal concurrently.
	Shared bool

	closers []func()
}

func (s *Store) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// OpenStore opens the journal backend named by cfg.JournalBackend.
func OpenStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Store, error) {
	switch cfg.JournalBackend {
	case config.JournalPostgres:
		pool, err := NewPostgresPool(ctx, cfg.PostgresDSN, log)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return &Store{
			Journal: repositories.NewJournalRepo(pool),
			Events:  repositories.NewEventRepo(pool),
			Shared:  true,
			closers: []func(){pool.Close},
		}, nil

	case config.JournalLevelDB:
		j, err := journal.OpenLevelDB(cfg.LevelDBPath)
		if err != nil {
			return nil, err
		}
		log.Info("leveldb journal opened", zap.String("path", cfg.LevelDBPath))
		return &Store{
			Journal: j,
			Events:  journal.NewEventIndex(j),
			closers: []func(){func() {
				if err := j.Close(); err != nil {
					log.Warn("close leveldb journal", zap.Error(err))
				}
			}},
		}, nil

	case config.JournalMemory:
		log.Warn("using in-memory journal, state is lost on exit")
		j := journal.NewMemory()
		return &Store{Journal: j, Events: journal.NewEventIndex(j)}, nil
	}
	return nil, fmt.Errorf("unknown journal backend %q", cfg.JournalBackend)
}
