package producer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/radieske/aviator-game-core/internal/game-service/domain"
	"github.com/radieske/aviator-game-core/pkg/contracts/events"
)

// MessageWriter é satisfeito por *kafka.Writer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// KafkaPublisher publica apostas aceitas e rodadas encerradas,
// cada uma no writer do seu tópico
type KafkaPublisher struct {
	BetPlaced     MessageWriter
	RoundFinished MessageWriter
	Now           func() time.Time
}

func NewKafkaPublisher(betPlaced, roundFinished MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{BetPlaced: betPlaced, RoundFinished: roundFinished, Now: time.Now}
}

// PublishBetPlaced usa o usuário como chave para manter a ordem por usuário
func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = p.Now().UnixMilli()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.BetPlaced.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(strconv.FormatInt(e.UserID, 10)),
		Value: b,
	})
}

func (p *KafkaPublisher) PublishRoundFinished(ctx context.Context, r domain.Round) error {
	b, err := json.Marshal(events.FromRound(r.ID, string(r.Status), r.Result, r.CreatedAt, r.BettingEndsAt, r.RoundEndsAt))
	if err != nil {
		return err
	}
	return p.RoundFinished.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(r.ID),
		Value: b,
	})
}
