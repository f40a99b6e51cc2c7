package betting

import (
	"context"
	"slices"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"github.com/radieske/aviator-game-core/internal/game-service/domain"
	"github.com/radieske/aviator-game-core/pkg/contracts/events"
)

// Store grava a aposta e o débito numa única operação atômica
type Store interface {
	PlaceBet(ctx context.Context, b domain.Bet, debit bool, commitCheck func() error) (domain.Bet, error)
}

// Window é a janela de apostas controlada pelo scheduler
type Window interface {
	WithOpenWindow(fn func(r domain.Round) error) error
}

type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
}

// Service aceita apostas na rodada corrente
type Service struct {
	Log        *zap.Logger
	Clock      quartz.Clock
	Store      Store
	Window     Window
	Options    []int64 // valores de aposta permitidos
	Privileged func(userID int64) bool
	Publisher  Publisher // opcional

	OnPlaced   func(b domain.Bet)
	OnRejected func(code string)
}

// PlaceBet valida a entrada e grava a aposta com a janela segura pelo scheduler.
// O horário é conferido de novo dentro da transação, logo antes do commit.
func (s *Service) PlaceBet(ctx context.Context, userID, amount int64) (domain.Bet, error) {
	b, err := s.place(ctx, userID, amount)
	if err != nil {
		if s.OnRejected != nil {
			s.OnRejected(domain.CodeOf(err))
		}
		if domain.ReasonOf(err) == domain.ReasonInternal {
			s.Log.Error("place bet failed", zap.Int64("userId", userID), zap.Error(err))
		}
		return domain.Bet{}, err
	}

	if s.OnPlaced != nil {
		s.OnPlaced(b)
	}
	s.Log.Info("bet placed",
		zap.String("betId", b.ID),
		zap.String("roundId", b.RoundID),
		zap.Int64("userId", b.UserID),
		zap.Int64("amount", b.Amount),
	)

	if s.Publisher != nil {
		if err := s.Publisher.PublishBetPlaced(ctx, events.BetPlaced{
			BetID:   b.ID,
			UserID:  b.UserID,
			RoundID: b.RoundID,
			Amount:  b.Amount,
		}); err != nil {
			s.Log.Warn("publish bet_placed failed", zap.String("betId", b.ID), zap.Error(err))
		}
	}
	return b, nil
}

func (s *Service) place(ctx context.Context, userID, amount int64) (domain.Bet, error) {
	if userID <= 0 {
		return domain.Bet{}, domain.ErrInvalidUser
	}
	if !slices.Contains(s.Options, amount) {
		return domain.Bet{}, domain.ErrInvalidStake
	}
	privileged := s.Privileged != nil && s.Privileged(userID)

	var placed domain.Bet
	err := s.Window.WithOpenWindow(func(r domain.Round) error {
		var err error
		placed, err = s.Store.PlaceBet(ctx, domain.Bet{
			UserID:    userID,
			RoundID:   r.ID,
			Amount:    amount,
			CreatedAt: s.Clock.Now(),
		}, !privileged, func() error {
			if !s.Clock.Now().Before(r.BettingEndsAt) {
				return domain.ErrWindowClosed
			}
			return nil
		})
		return err
	})
	return placed, err
}
