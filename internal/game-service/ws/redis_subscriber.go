package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/aviator-game-core/pkg/contracts/events"
)

// StartRedisSubscriber escuta o canal de rodadas e repassa cada atualização ao Hub.
// Encerra a inscrição quando ctx é cancelado.
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				Dispatch(hub, []byte(msg.Payload), log)
			}
		}
	}()
}

// Dispatch decodifica um payload do canal e faz o broadcast
func Dispatch(hub *Hub, payload []byte, log *zap.Logger) {
	var upd events.RoundUpdate
	if err := json.Unmarshal(payload, &upd); err != nil {
		log.Warn("ws subscriber unmarshal error", zap.Error(err))
		return
	}
	hub.Broadcast(upd)
}
