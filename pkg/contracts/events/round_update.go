package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundUpdate é publicado a cada transição de fase de uma rodada
// (Redis Pub/Sub para o WS e tópico round_finished no Kafka).
type RoundUpdate struct {
	RoundID       string    `json:"roundId"`
	Status        string    `json:"status"`           // betting | counting | finished
	Result        string    `json:"result,omitempty"` // só após o fechamento das apostas
	CreatedAt     time.Time `json:"createdAt"`
	BettingEndsAt time.Time `json:"bettingEndsAt"`
	RoundEndsAt   time.Time `json:"roundEndsAt"`
}

// FromRound monta o evento; result nil vira string vazia
func FromRound(id, status string, result *decimal.Decimal, createdAt, bettingEndsAt, roundEndsAt time.Time) RoundUpdate {
	u := RoundUpdate{
		RoundID:       id,
		Status:        status,
		CreatedAt:     createdAt,
		BettingEndsAt: bettingEndsAt,
		RoundEndsAt:   roundEndsAt,
	}
	if result != nil {
		u.Result = result.StringFixed(2)
	}
	return u
}
