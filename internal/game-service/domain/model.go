package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnlimitedBalance é o saldo devolvido para a conta privilegiada
const UnlimitedBalance int64 = 999_999_999

type RoundStatus string

const (
	RoundWaiting  RoundStatus = "waiting"
	RoundBetting  RoundStatus = "betting"
	RoundCounting RoundStatus = "counting"
	RoundFinished RoundStatus = "finished"
)

// Active indica se a rodada ocupa o slot exclusivo (betting ou counting)
func (s RoundStatus) Active() bool { return s == RoundBetting || s == RoundCounting }

// Round é o registro persistido de uma rodada.
// Valor imutável: o scheduler publica cópias novas a cada transição.
type Round struct {
	ID            string
	Status        RoundStatus
	Result        *decimal.Decimal // nil até o fechamento das apostas
	CreatedAt     time.Time
	BettingEndsAt time.Time
	RoundEndsAt   time.Time
	FinishedAt    *time.Time
}

// AcceptsBets informa se a janela de apostas está aberta no instante now
func (r Round) AcceptsBets(now time.Time) bool {
	return r.Status == RoundBetting && now.Before(r.BettingEndsAt)
}

type BetStatus string

const (
	BetActive    BetStatus = "active"
	BetCompleted BetStatus = "completed"
)

// Bet é uma aposta de um usuário em uma rodada
type Bet struct {
	ID          string
	UserID      int64
	RoundID     string
	Amount      int64
	Status      BetStatus
	Payout      int64
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Stats agrega o estado do ledger (comando /stats do admin)
type Stats struct {
	TotalUsers  int64 `json:"total_users"`
	TotalPoints int64 `json:"total_points"`
	MaxBalance  int64 `json:"max_balance"`
	MinBalance  int64 `json:"min_balance"`
}
