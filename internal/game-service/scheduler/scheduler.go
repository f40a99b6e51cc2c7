package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/aviator-game-core/internal/game-service/domain"
	"github.com/radieske/aviator-game-core/internal/game-service/multiplier"
	"github.com/radieske/aviator-game-core/internal/game-service/notify"
	"github.com/radieske/aviator-game-core/internal/game-service/settlement"
)

// RoundStore é a persistência de rodadas usada pelo scheduler
type RoundStore interface {
	CreateRound(ctx context.Context, r domain.Round) (domain.Round, error)
	UpdateRoundResult(ctx context.Context, id string, result decimal.Decimal) (decimal.Decimal, error)
	FinishRound(ctx context.Context, id string, at time.Time) error
	ActiveRound(ctx context.Context) (domain.Round, bool, error)
}

// Settler aplica os payouts de uma rodada de forma reentrante
type Settler interface {
	Apply(ctx context.Context, round domain.Round) (settlement.Report, error)
}

// Config são os tempos do ciclo da rodada
type Config struct {
	TickInterval    time.Duration
	BettingDuration time.Duration
	RoundDuration   time.Duration
	TickBackoff     time.Duration
	NotifyTimeout   time.Duration
}

// Hooks são callbacks opcionais para broadcast e métricas
type Hooks struct {
	OnTransition   func(r domain.Round)
	OnRoundStarted func(r domain.Round)
	OnRoundSettled func(r domain.Round, rep settlement.Report)
	OnError        func(stage string)
}

// Scheduler é o único escritor do estado das rodadas.
// Um tick por vez avança a máquina waiting → betting → counting → finished.
// Handlers leem o snapshot atual via Current e apostam dentro de WithOpenWindow.
type Scheduler struct {
	Log      *zap.Logger
	Clock    quartz.Clock
	Config   Config
	Store    RoundStore
	Settler  Settler
	Source   multiplier.Source
	Notifier notify.Notifier // opcional
	Retry    settlement.RetryFunc
	Hooks    Hooks

	current atomic.Pointer[domain.Round]

	// gate: apostas seguram RLock até o commit; o fechamento da janela pega Lock
	gate sync.RWMutex

	tickMu  sync.Mutex
	settled bool // settlement da rodada corrente concluído; protegido por tickMu

	notifyWG sync.WaitGroup
}

// Current devolve uma cópia do snapshot da rodada corrente
func (s *Scheduler) Current() (domain.Round, bool) {
	r := s.current.Load()
	if r == nil {
		return domain.Round{}, false
	}
	return *r, true
}

// WithOpenWindow executa fn com a janela de apostas garantidamente aberta.
// Enquanto fn roda, o scheduler não consegue fechar a janela; fn deve revalidar
// o horário no commit para que uma aposta atrasada não entre.
func (s *Scheduler) WithOpenWindow(fn func(r domain.Round) error) error {
	s.gate.RLock()
	defer s.gate.RUnlock()

	r := s.current.Load()
	if r == nil {
		return domain.ErrRoundNotOpen
	}
	// passado o prazo a resposta é sempre window_closed, tenha o tick rodado ou não
	if !s.Clock.Now().Before(r.BettingEndsAt) {
		return domain.ErrWindowClosed
	}
	if r.Status != domain.RoundBetting {
		return domain.ErrRoundNotOpen
	}
	return fn(*r)
}

// Wait bloqueia até as notificações em voo terminarem
func (s *Scheduler) Wait() { s.notifyWG.Wait() }

// Run avança as rodadas a cada TickInterval até ctx ser cancelado.
// Falhas de tick são logadas e o loop segue após TickBackoff.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.Clock.NewTicker(s.Config.TickInterval)
	defer ticker.Stop()
	defer s.notifyWG.Wait()

	if err := s.Recover(ctx); err != nil {
		s.Log.Error("recover active round failed", zap.Error(err))
		s.onError("recover")
	}

	for {
		if err := s.safeTick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.Log.Error("tick failed", zap.Error(err), zap.Duration("backoff", s.Config.TickBackoff))
			if !s.sleep(ctx, s.Config.TickBackoff) {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := s.Clock.NewTimer(d, "scheduler", "backoff")
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Scheduler) safeTick(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			s.onError("panic")
			err = fmt.Errorf("tick panic: %v", p)
		}
	}()
	return s.Tick(ctx)
}

// Recover adota a rodada ativa encontrada no armazenamento (restart do processo)
func (s *Scheduler) Recover(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	r, ok, err := s.Store.ActiveRound(ctx)
	if err != nil {
		return fmt.Errorf("active round: %w", err)
	}
	if !ok {
		return nil
	}
	s.adopt(r)
	return nil
}

func (s *Scheduler) adopt(r domain.Round) {
	s.settled = false
	s.publish(r)
	s.Log.Info("adopted active round",
		zap.String("roundId", r.ID),
		zap.String("status", string(r.Status)),
	)
}

// Tick avança a rodada corrente no máximo até o próximo estado estável
func (s *Scheduler) Tick(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	cur := s.current.Load()
	if cur == nil || cur.Status == domain.RoundFinished {
		return s.startRound(ctx)
	}

	if cur.Status == domain.RoundBetting {
		if s.Clock.Now().Before(cur.BettingEndsAt) {
			return nil
		}
		s.closeWindow()
	}

	if !s.settled {
		if err := s.settle(ctx); err != nil {
			return err
		}
	}

	cur = s.current.Load()
	if s.Clock.Now().Before(cur.RoundEndsAt) {
		return nil
	}
	if err := s.finish(ctx, *cur); err != nil {
		return err
	}
	return s.startRound(ctx)
}

// closeWindow espera apostas em commit terminarem e troca o snapshot para counting.
// Depois daqui nenhuma aposta nova entra nesta rodada. Os hooks rodam fora do
// gate para que I/O de broadcast não segure requisições de aposta.
func (s *Scheduler) closeWindow() {
	s.gate.Lock()
	r := *s.current.Load()
	r.Status = domain.RoundCounting
	s.current.Store(&r)
	s.gate.Unlock()

	s.transition(r)
}

func (s *Scheduler) settle(ctx context.Context) error {
	r := *s.current.Load()

	if r.Result == nil {
		drawn := s.Source.Draw()
		var stored decimal.Decimal
		err := s.retry(ctx, "update_round_result", func(ctx context.Context) error {
			var err error
			stored, err = s.Store.UpdateRoundResult(ctx, r.ID, drawn)
			return err
		})
		if err != nil {
			s.onError("result")
			return fmt.Errorf("persist result round %s: %w", r.ID, err)
		}
		r.Result = &stored
		s.publish(r)
	}

	rep, err := s.Settler.Apply(ctx, r)
	s.dispatch(r, rep.Applied)
	if err != nil {
		s.onError("settle")
		return fmt.Errorf("settle round %s: %w", r.ID, err)
	}

	s.settled = true
	if s.Hooks.OnRoundSettled != nil {
		s.Hooks.OnRoundSettled(r, rep)
	}
	return nil
}

func (s *Scheduler) finish(ctx context.Context, r domain.Round) error {
	at := s.Clock.Now()
	err := s.retry(ctx, "finish_round", func(ctx context.Context) error {
		return s.Store.FinishRound(ctx, r.ID, at)
	})
	if err != nil {
		s.onError("finish")
		return fmt.Errorf("finish round %s: %w", r.ID, err)
	}
	r.Status = domain.RoundFinished
	r.FinishedAt = &at
	s.publish(r)
	return nil
}

func (s *Scheduler) startRound(ctx context.Context) error {
	now := s.Clock.Now()
	var created domain.Round
	err := s.retry(ctx, "create_round", func(ctx context.Context) error {
		var err error
		created, err = s.Store.CreateRound(ctx, domain.Round{
			CreatedAt:     now,
			BettingEndsAt: now.Add(s.Config.BettingDuration),
			RoundEndsAt:   now.Add(s.Config.RoundDuration),
		})
		return err
	})
	if errors.Is(err, domain.ErrActiveRoundExists) {
		// uma tentativa anterior pode ter gravado a rodada sem confirmar
		active, ok, aerr := s.Store.ActiveRound(ctx)
		if aerr != nil {
			s.onError("create")
			return fmt.Errorf("load active round: %w", aerr)
		}
		if ok {
			s.adopt(active)
			return nil
		}
	}
	if err != nil {
		s.onError("create")
		return fmt.Errorf("create round: %w", err)
	}

	s.settled = false
	s.publish(created)
	if s.Hooks.OnRoundStarted != nil {
		s.Hooks.OnRoundStarted(created)
	}
	s.Log.Info("round started",
		zap.String("roundId", created.ID),
		zap.Time("bettingEndsAt", created.BettingEndsAt),
		zap.Time("roundEndsAt", created.RoundEndsAt),
	)
	return nil
}

func (s *Scheduler) publish(r domain.Round) {
	s.current.Store(&r)
	s.transition(r)
}

func (s *Scheduler) transition(r domain.Round) {
	if s.Hooks.OnTransition != nil {
		s.Hooks.OnTransition(r)
	}
}

// dispatch notifica os usuários fora do tick, com prazo próprio
func (s *Scheduler) dispatch(r domain.Round, outcomes []settlement.Outcome) {
	if s.Notifier == nil || len(outcomes) == 0 {
		return
	}
	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.Config.NotifyTimeout)
		defer cancel()

		for _, o := range outcomes {
			err := s.Notifier.Notify(ctx, notify.Settled{
				RoundID: r.ID,
				BetID:   o.Bet.ID,
				UserID:  o.Bet.UserID,
				Amount:  o.Bet.Amount,
				Result:  *r.Result,
				Payout:  o.Payout,
				Won:     o.Won,
			})
			if err != nil {
				s.Log.Warn("notify failed",
					zap.String("roundId", r.ID),
					zap.Int64("userId", o.Bet.UserID),
					zap.Error(err),
				)
			}
		}
	}()
}

func (s *Scheduler) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if s.Retry == nil {
		return fn(ctx)
	}
	return s.Retry(ctx, op, fn)
}

func (s *Scheduler) onError(stage string) {
	if s.Hooks.OnError != nil {
		s.Hooks.OnError(stage)
	}
}
