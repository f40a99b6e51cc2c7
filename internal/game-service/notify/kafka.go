package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/radieske/aviator-game-core/internal/shared/kafka"
	"github.com/radieske/aviator-game-core/pkg/contracts/events"
)

// MessageWriter é satisfeito por *kafka.Writer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Kafka publica cada liquidação no tópico bet_settled, chaveado pelo usuário
type Kafka struct {
	Writer MessageWriter
	Now    func() time.Time
}

func NewKafka(w *kafka.Writer) *Kafka {
	return &Kafka{Writer: w, Now: time.Now}
}

func (k *Kafka) Notify(ctx context.Context, s Settled) error {
	b, err := json.Marshal(events.BetSettled{
		BetID:   s.BetID,
		UserID:  s.UserID,
		RoundID: s.RoundID,
		Amount:  s.Amount,
		Result:  s.Result.StringFixed(2),
		Payout:  s.Payout,
		Won:     s.Won,
		Ts:      k.Now(),
	})
	if err != nil {
		return err
	}
	return k.Writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(strconv.FormatInt(s.UserID, 10)),
		Value: b,
	})
}
