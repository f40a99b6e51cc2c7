package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/aviator-game-core/internal/game-service/domain"
	"github.com/radieske/aviator-game-core/pkg/contracts/events"
)

// CurrentKey guarda o último snapshot publicado da rodada
const CurrentKey = "round:current"

// Redis grava o snapshot da rodada e o publica no canal de broadcast.
// Client: cliente Redis
// TTL: expiração do snapshot (renovado a cada transição)
type Redis struct {
	Client  *redis.Client
	Channel string
	TTL     time.Duration
	Timeout time.Duration
	Log     *zap.Logger
}

func NewRedis(c *redis.Client, channel string, log *zap.Logger) *Redis {
	return &Redis{Client: c, Channel: channel, TTL: 5 * time.Minute, Timeout: 500 * time.Millisecond, Log: log}
}

// Update converte a rodada para o payload publicado
func Update(r domain.Round) events.RoundUpdate {
	return events.FromRound(r.ID, string(r.Status), r.Result, r.CreatedAt, r.BettingEndsAt, r.RoundEndsAt)
}

// Publish faz SET + PUBLISH no mesmo pipeline
func (b *Redis) Publish(ctx context.Context, r domain.Round) error {
	payload, err := json.Marshal(Update(r))
	if err != nil {
		return err
	}
	_, err = b.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, CurrentKey, payload, b.TTL)
		p.Publish(ctx, b.Channel, payload)
		return nil
	})
	return err
}

// Current lê o último snapshot; ok=false quando ainda não há rodada publicada
func (b *Redis) Current(ctx context.Context) (events.RoundUpdate, bool, error) {
	var u events.RoundUpdate
	raw, err := b.Client.Get(ctx, CurrentKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return u, false, nil
	}
	if err != nil {
		return u, false, err
	}
	if err := json.Unmarshal(raw, &u); err != nil {
		return u, false, err
	}
	return u, true, nil
}

// Snapshot monta o estado enviado a um cliente WS recém-conectado: a rodada
// local, ou o último snapshot gravado no Redis enquanto esta instância ainda
// não tem rodada (start, recuperação). remote pode ser nil.
func Snapshot(local func() (domain.Round, bool), remote *Redis) func() (events.RoundUpdate, bool) {
	return func() (events.RoundUpdate, bool) {
		if r, ok := local(); ok {
			return Update(r), true
		}
		if remote == nil {
			return events.RoundUpdate{}, false
		}
		ctx, cancel := context.WithTimeout(context.Background(), remote.Timeout)
		defer cancel()
		u, ok, err := remote.Current(ctx)
		if err != nil {
			remote.Log.Warn("read round snapshot failed", zap.Error(err))
			return events.RoundUpdate{}, false
		}
		return u, ok
	}
}

// OnTransition é o hook do scheduler; falha de broadcast não trava o tick
func (b *Redis) OnTransition(r domain.Round) {
	ctx, cancel := context.WithTimeout(context.Background(), b.Timeout)
	defer cancel()
	if err := b.Publish(ctx, r); err != nil {
		b.Log.Warn("round broadcast failed",
			zap.String("roundId", r.ID),
			zap.String("status", string(r.Status)),
			zap.Error(err),
		)
	}
}
