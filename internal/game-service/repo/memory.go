package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/aviator-game-core/internal/game-service/domain"
)

// LedgerEntry é uma linha do histórico de movimentações de saldo
type LedgerEntry struct {
	UserID       int64
	Delta        int64
	BalanceAfter int64
	Reason       string
	CreatedAt    time.Time
}

// Memory implementa o mesmo contrato do Postgres em memória (testes e STORAGE=memory).
// Saldo e histórico ficam em uma conta por usuário, protegida pelo mutex da própria
// conta; mu cobre apenas rodadas e apostas e nunca é segurado durante I/O.
// Ordem de locks: conta do usuário, depois mu.
type Memory struct {
	accounts sync.Map // int64 -> *account

	mu      sync.Mutex
	rounds  map[string]domain.Round
	bets    map[string]domain.Bet
	byRound map[string][]string

	faultMu sync.Mutex
	fault   func(op string) error
}

type account struct {
	mu         sync.Mutex
	registered bool // false até o primeiro crédito ou cadastro
	balance    int64
	entries    []LedgerEntry
}

func NewMemory() *Memory {
	return &Memory{
		rounds:  make(map[string]domain.Round),
		bets:    make(map[string]domain.Bet),
		byRound: make(map[string][]string),
	}
}

// SetFault injeta falhas de infraestrutura por operação (usado em testes)
func (m *Memory) SetFault(fn func(op string) error) {
	m.faultMu.Lock()
	m.fault = fn
	m.faultMu.Unlock()
}

func (m *Memory) check(op string) error {
	m.faultMu.Lock()
	fn := m.fault
	m.faultMu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(op)
}

func (m *Memory) account(userID int64) *account {
	if v, ok := m.accounts.Load(userID); ok {
		return v.(*account)
	}
	v, _ := m.accounts.LoadOrStore(userID, &account{})
	return v.(*account)
}

// apply exige a.mu
func (a *account) apply(userID int64, delta int64, reason string) (int64, error) {
	if a.balance+delta < 0 {
		return a.balance, domain.ErrInsufficientBalance
	}
	a.balance += delta
	a.registered = true
	a.entries = append(a.entries, LedgerEntry{UserID: userID, Delta: delta, BalanceAfter: a.balance, Reason: reason, CreatedAt: time.Now()})
	return a.balance, nil
}

// Entries devolve uma cópia do histórico do ledger, em ordem de criação
func (m *Memory) Entries() []LedgerEntry {
	var out []LedgerEntry
	m.accounts.Range(func(_, v any) bool {
		a := v.(*account)
		a.mu.Lock()
		out = append(out, a.entries...)
		a.mu.Unlock()
		return true
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *Memory) Balance(ctx context.Context, userID int64) (int64, error) {
	if err := m.check("balance"); err != nil {
		return 0, err
	}
	v, ok := m.accounts.Load(userID)
	if !ok {
		return 0, nil
	}
	a := v.(*account)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance, nil
}

func (m *Memory) Adjust(ctx context.Context, userID int64, delta int64, reason string) (int64, error) {
	if err := m.check("adjust"); err != nil {
		return 0, err
	}
	a := m.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.apply(userID, delta, reason)
}

// Register cadastra o usuário com saldo zero; devolve false se ele já existia
func (m *Memory) Register(ctx context.Context, userID int64) (bool, error) {
	if err := m.check("register"); err != nil {
		return false, err
	}
	a := m.account(userID)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.registered {
		return false, nil
	}
	a.registered = true
	return true, nil
}

func (m *Memory) Stats(ctx context.Context, exclude int64) (domain.Stats, error) {
	if err := m.check("stats"); err != nil {
		return domain.Stats{}, err
	}

	var st domain.Stats
	first := true
	m.accounts.Range(func(k, v any) bool {
		if k.(int64) == exclude {
			return true
		}
		a := v.(*account)
		a.mu.Lock()
		registered, bal := a.registered, a.balance
		a.mu.Unlock()
		if !registered {
			return true
		}
		st.TotalUsers++
		st.TotalPoints += bal
		if first || bal > st.MaxBalance {
			st.MaxBalance = bal
		}
		if first || bal < st.MinBalance {
			st.MinBalance = bal
		}
		first = false
		return true
	})
	return st, nil
}

func (m *Memory) CreateRound(ctx context.Context, r domain.Round) (domain.Round, error) {
	if err := m.check("create_round"); err != nil {
		return domain.Round{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, other := range m.rounds {
		if other.Status.Active() {
			return domain.Round{}, domain.ErrActiveRoundExists
		}
	}
	r.ID = uuid.NewString()
	r.Status = domain.RoundBetting
	m.rounds[r.ID] = r
	return r, nil
}

// UpdateRoundResult grava o resultado uma única vez e devolve o valor efetivo
func (m *Memory) UpdateRoundResult(ctx context.Context, id string, result decimal.Decimal) (decimal.Decimal, error) {
	if err := m.check("update_round_result"); err != nil {
		return decimal.Decimal{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rounds[id]
	if !ok {
		return decimal.Decimal{}, domain.ErrNotFound
	}
	if r.Result != nil {
		return *r.Result, nil
	}
	res := result
	r.Result = &res
	r.Status = domain.RoundCounting
	m.rounds[id] = r
	return res, nil
}

func (m *Memory) FinishRound(ctx context.Context, id string, at time.Time) error {
	if err := m.check("finish_round"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rounds[id]
	if !ok {
		return domain.ErrNotFound
	}
	if r.Status == domain.RoundFinished {
		return nil
	}
	r.Status = domain.RoundFinished
	r.FinishedAt = &at
	m.rounds[id] = r
	return nil
}

func (m *Memory) ActiveRound(ctx context.Context) (domain.Round, bool, error) {
	if err := m.check("active_round"); err != nil {
		return domain.Round{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rounds {
		if r.Status.Active() {
			return r, true, nil
		}
	}
	return domain.Round{}, false, nil
}

func (m *Memory) GetRound(ctx context.Context, id string) (domain.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok {
		return domain.Round{}, domain.ErrNotFound
	}
	return r, nil
}

// PlaceBet debita (se debit) e grava a aposta como uma única operação atômica por usuário
func (m *Memory) PlaceBet(ctx context.Context, b domain.Bet, debit bool, commitCheck func() error) (domain.Bet, error) {
	if err := m.check("place_bet"); err != nil {
		return domain.Bet{}, err
	}
	a := m.account(b.UserID)
	a.mu.Lock()
	defer a.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rounds[b.RoundID]
	if !ok || r.Status != domain.RoundBetting {
		return domain.Bet{}, domain.ErrRoundNotOpen
	}
	// mesma ordem do Postgres: débito antes da inserção
	if debit && a.balance < b.Amount {
		return domain.Bet{}, domain.ErrInsufficientBalance
	}
	for _, id := range m.byRound[b.RoundID] {
		if o := m.bets[id]; o.UserID == b.UserID && o.Status == domain.BetActive {
			return domain.Bet{}, domain.ErrDuplicateActiveBet
		}
	}
	if commitCheck != nil {
		if err := commitCheck(); err != nil {
			return domain.Bet{}, err
		}
	}

	b.ID = uuid.NewString()
	b.Status = domain.BetActive
	b.Payout = 0
	if debit {
		if _, err := a.apply(b.UserID, -b.Amount, "bet:"+b.ID); err != nil {
			return domain.Bet{}, err
		}
	}
	m.bets[b.ID] = b
	m.byRound[b.RoundID] = append(m.byRound[b.RoundID], b.ID)
	return b, nil
}

func (m *Memory) ActiveBet(ctx context.Context, userID int64, roundID string) (domain.Bet, bool, error) {
	if err := m.check("active_bet"); err != nil {
		return domain.Bet{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.byRound[roundID] {
		if b := m.bets[id]; b.UserID == userID && b.Status == domain.BetActive {
			return b, true, nil
		}
	}
	return domain.Bet{}, false, nil
}

func (m *Memory) ListBets(ctx context.Context, roundID string) ([]domain.Bet, error) {
	if err := m.check("list_bets"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Bet, 0, len(m.byRound[roundID]))
	for _, id := range m.byRound[roundID] {
		out = append(out, m.bets[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CompleteBet faz a transição Active→Completed e credita o payout juntos.
// Devolve false quando a aposta já estava concluída.
func (m *Memory) CompleteBet(ctx context.Context, betID string, payout int64, credit bool, at time.Time) (bool, error) {
	if err := m.check("complete_bet"); err != nil {
		return false, err
	}
	m.mu.Lock()
	b, ok := m.bets[betID]
	m.mu.Unlock()
	if !ok {
		return false, domain.ErrNotFound
	}

	a := m.account(b.UserID)
	a.mu.Lock()
	defer a.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	b = m.bets[betID]
	if b.Status == domain.BetCompleted {
		return false, nil
	}
	if credit && payout > 0 {
		if _, err := a.apply(b.UserID, payout, "payout:"+b.ID); err != nil {
			return false, err
		}
	}
	b.Status = domain.BetCompleted
	b.Payout = payout
	b.CompletedAt = &at
	m.bets[betID] = b
	return true, nil
}
