package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/aviator-game-core/internal/game-service/domain"
	"github.com/radieske/aviator-game-core/internal/game-service/settlement"
)

// NewRetry devolve uma política de retry com backoff linear (backoff × tentativa).
// Erros de domínio não são transitórios e voltam na primeira tentativa.
// O backoff usa tempo real: é espera de I/O, não de fase da rodada.
func NewRetry(log *zap.Logger, attempts int, backoff time.Duration) settlement.RetryFunc {
	if attempts < 1 {
		attempts = 1
	}
	return func(ctx context.Context, op string, fn func(ctx context.Context) error) error {
		var err error
		for attempt := 1; attempt <= attempts; attempt++ {
			if err = fn(ctx); err == nil {
				return nil
			}
			if !transient(err) {
				return err
			}
			log.Warn("storage op failed",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if attempt == attempts {
				break
			}
			t := time.NewTimer(time.Duration(attempt) * backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		return fmt.Errorf("%s: giving up after %d attempts: %w", op, attempts, err)
	}
}

func transient(err error) bool {
	var de *domain.Error
	if errors.As(err, &de) {
		return false
	}
	if errors.Is(err, domain.ErrActiveRoundExists) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
