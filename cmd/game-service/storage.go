package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/aviator-game-core/internal/game-service/betting"
	"github.com/radieske/aviator-game-core/internal/game-service/ledger"
	"github.com/radieske/aviator-game-core/internal/game-service/repo"
	"github.com/radieske/aviator-game-core/internal/game-service/scheduler"
	"github.com/radieske/aviator-game-core/internal/game-service/settlement"
	"github.com/radieske/aviator-game-core/internal/shared/config"
	"github.com/radieske/aviator-game-core/internal/shared/db"
)

// store é o contrato que repo.Postgres e repo.Memory cumprem
type store interface {
	ledger.Store
	settlement.Store
	scheduler.RoundStore
	betting.Store
}

// openStorage devolve o store, o health check e a função de fechamento
func openStorage(ctx context.Context, cfg config.Config, log *zap.Logger) (store, func(context.Context) error, func(), error) {
	if cfg.Storage == "memory" {
		log.Warn("using in-memory storage; balances are lost on restart")
		return repo.NewMemory(), func(context.Context) error { return nil }, func() {}, nil
	}

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		return nil, nil, nil, err
	}
	p := repo.NewPostgres(pg)
	if err := p.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, nil, fmt.Errorf("postgres: %w", err)
	}
	log.Info("postgres connected")
	return p, p.Ping, func() { _ = pg.Close() }, nil
}
