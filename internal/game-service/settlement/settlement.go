package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/aviator-game-core/internal/game-service/domain"
)

// Store é o subconjunto de persistência que a liquidação usa
type Store interface {
	ListBets(ctx context.Context, roundID string) ([]domain.Bet, error)
	CompleteBet(ctx context.Context, betID string, payout int64, credit bool, at time.Time) (bool, error)
}

// Outcome é o resultado calculado para uma aposta
type Outcome struct {
	Bet    domain.Bet
	Payout int64
	Won    bool
}

// Payout = floor(amount × result) quando result supera o limiar, senão 0
func Payout(amount int64, result, threshold decimal.Decimal) int64 {
	if !result.GreaterThan(threshold) {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(result).Floor().IntPart()
}

// Compute calcula o payout de cada aposta ativa; apostas concluídas ficam de fora
func Compute(result, threshold decimal.Decimal, bets []domain.Bet) []Outcome {
	out := make([]Outcome, 0, len(bets))
	for _, b := range bets {
		if b.Status != domain.BetActive {
			continue
		}
		p := Payout(b.Amount, result, threshold)
		out = append(out, Outcome{Bet: b, Payout: p, Won: p > 0})
	}
	return out
}

// RetryFunc executa fn com novas tentativas para erros transitórios
type RetryFunc func(ctx context.Context, op string, fn func(ctx context.Context) error) error

// Settler aplica os payouts de uma rodada de forma reentrante:
// cada aposta passa por Active→Completed uma única vez, junto com o crédito.
type Settler struct {
	Log          *zap.Logger
	Store        Store
	WinThreshold decimal.Decimal
	Privileged   func(userID int64) bool
	Retry        RetryFunc
	Now          func() time.Time
}

// Report lista o que foi aplicado nesta chamada
type Report struct {
	Applied []Outcome
	Skipped int // já concluídas por uma chamada anterior
}

func (s *Settler) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if s.Retry == nil {
		return fn(ctx)
	}
	return s.Retry(ctx, op, fn)
}

// Apply liquida todas as apostas ativas da rodada. Em falha parcial, devolve o que já
// foi aplicado e o erro; chamar de novo continua de onde parou sem pagar em dobro.
func (s *Settler) Apply(ctx context.Context, round domain.Round) (Report, error) {
	var rep Report
	if round.Result == nil {
		return rep, errors.New("settle: round has no result")
	}

	var bets []domain.Bet
	if err := s.retry(ctx, "list_bets", func(ctx context.Context) error {
		var err error
		bets, err = s.Store.ListBets(ctx, round.ID)
		return err
	}); err != nil {
		return rep, fmt.Errorf("settle list bets: %w", err)
	}

	for _, o := range Compute(*round.Result, s.WinThreshold, bets) {
		credit := s.Privileged == nil || !s.Privileged(o.Bet.UserID)
		var applied bool
		err := s.retry(ctx, "complete_bet", func(ctx context.Context) error {
			var err error
			applied, err = s.Store.CompleteBet(ctx, o.Bet.ID, o.Payout, credit, s.Now())
			return err
		})
		if err != nil {
			return rep, fmt.Errorf("settle bet %s: %w", o.Bet.ID, err)
		}
		if !applied {
			rep.Skipped++
			continue
		}
		o.Bet.Status = domain.BetCompleted
		o.Bet.Payout = o.Payout
		rep.Applied = append(rep.Applied, o)
	}

	s.Log.Info("round settled",
		zap.String("roundId", round.ID),
		zap.String("result", round.Result.String()),
		zap.Int("applied", len(rep.Applied)),
		zap.Int("skipped", rep.Skipped),
	)
	return rep, nil
}
