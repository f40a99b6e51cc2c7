package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/aviator-game-core/internal/game-service/domain"
	"github.com/radieske/aviator-game-core/internal/game-service/repo"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPayout(t *testing.T) {
	one := d("1.00")
	cases := []struct {
		name   string
		amount int64
		result string
		want   int64
	}{
		{"win floors fraction", 100, "2.50", 250},
		{"win floors down", 33, "1.07", 35}, // 35.31
		{"break-even is a loss", 100, "1.00", 0},
		{"just above threshold", 100, "1.01", 101},
		{"max multiplier", 5000, "10.00", 50000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Payout(tc.amount, d(tc.result), one))
		})
	}
}

func TestPayoutHonoursTunableThreshold(t *testing.T) {
	assert.Zero(t, Payout(100, d("1.80"), d("2.00")))
	assert.Equal(t, int64(210), Payout(100, d("2.10"), d("2.00")))
}

func TestComputeSkipsCompleted(t *testing.T) {
	bets := []domain.Bet{
		{ID: "a", Amount: 100, Status: domain.BetActive},
		{ID: "b", Amount: 100, Status: domain.BetCompleted},
	}
	out := Compute(d("3"), d("1"), bets)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].Bet.ID)
	assert.Equal(t, int64(300), out[0].Payout)
	assert.True(t, out[0].Won)
}

type fixture struct {
	store   *repo.Memory
	settler *Settler
	round   domain.Round
}

func newFixture(t *testing.T, result string) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repo.NewMemory()
	now := time.Now()
	r, err := store.CreateRound(ctx, domain.Round{CreatedAt: now, BettingEndsAt: now.Add(time.Minute), RoundEndsAt: now.Add(2 * time.Minute)})
	require.NoError(t, err)
	res := d(result)
	r.Result = &res

	return &fixture{
		store: store,
		round: r,
		settler: &Settler{
			Log:          zap.NewNop(),
			Store:        store,
			WinThreshold: d("1.00"),
			Privileged:   func(id int64) bool { return id == 1000 },
			Now:          time.Now,
		},
	}
}

func (f *fixture) bet(t *testing.T, user, balance, amount int64) domain.Bet {
	t.Helper()
	ctx := context.Background()
	_, err := f.store.Adjust(ctx, user, balance, "seed")
	require.NoError(t, err)
	b, err := f.store.PlaceBet(ctx, domain.Bet{UserID: user, RoundID: f.round.ID, Amount: amount}, user != 1000, nil)
	require.NoError(t, err)
	return b
}

func TestApplyScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2.5")
	b := f.bet(t, 1, 1000, 100)

	bal, _ := f.store.Balance(ctx, 1)
	require.Equal(t, int64(900), bal)

	rep, err := f.settler.Apply(ctx, f.round)
	require.NoError(t, err)
	require.Len(t, rep.Applied, 1)
	assert.Equal(t, int64(250), rep.Applied[0].Payout)

	bal, _ = f.store.Balance(ctx, 1)
	assert.Equal(t, int64(1150), bal)

	bets, _ := f.store.ListBets(ctx, f.round.ID)
	require.Len(t, bets, 1)
	assert.Equal(t, b.ID, bets[0].ID)
	assert.Equal(t, domain.BetCompleted, bets[0].Status)
	assert.Equal(t, int64(250), bets[0].Payout)
}

func TestApplyTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "3.00")
	f.bet(t, 1, 500, 100)
	f.bet(t, 2, 500, 50)

	_, err := f.settler.Apply(ctx, f.round)
	require.NoError(t, err)
	b1, _ := f.store.Balance(ctx, 1)
	b2, _ := f.store.Balance(ctx, 2)

	rep, err := f.settler.Apply(ctx, f.round)
	require.NoError(t, err)
	assert.Empty(t, rep.Applied)

	again1, _ := f.store.Balance(ctx, 1)
	again2, _ := f.store.Balance(ctx, 2)
	assert.Equal(t, b1, again1)
	assert.Equal(t, b2, again2)
	assert.Equal(t, int64(700), again1)
	assert.Equal(t, int64(600), again2)
}

func TestApplyResumesAfterPartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2.00")
	f.bet(t, 1, 100, 100)
	f.bet(t, 2, 100, 100)

	calls := 0
	f.store.SetFault(func(op string) error {
		if op != "complete_bet" {
			return nil
		}
		calls++
		if calls == 2 {
			return errors.New("connection reset")
		}
		return nil
	})

	rep, err := f.settler.Apply(ctx, f.round)
	require.Error(t, err)
	assert.Len(t, rep.Applied, 1)

	f.store.SetFault(nil)
	rep, err = f.settler.Apply(ctx, f.round)
	require.NoError(t, err)
	assert.Len(t, rep.Applied, 1)

	b1, _ := f.store.Balance(ctx, 1)
	b2, _ := f.store.Balance(ctx, 2)
	assert.Equal(t, int64(200), b1)
	assert.Equal(t, int64(200), b2)
}

func TestApplyDoesNotCreditPrivileged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "5.00")
	f.bet(t, 1000, 0, 100)

	rep, err := f.settler.Apply(ctx, f.round)
	require.NoError(t, err)
	require.Len(t, rep.Applied, 1)
	assert.Equal(t, int64(500), rep.Applied[0].Payout)

	bal, _ := f.store.Balance(ctx, 1000)
	assert.Zero(t, bal, "privileged balance is never written")
}

func TestApplyLosingRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1.00")
	f.bet(t, 1, 100, 100)

	rep, err := f.settler.Apply(ctx, f.round)
	require.NoError(t, err)
	require.Len(t, rep.Applied, 1)
	assert.False(t, rep.Applied[0].Won)

	bal, _ := f.store.Balance(ctx, 1)
	assert.Zero(t, bal)
}

func TestApplyRequiresResult(t *testing.T) {
	f := newFixture(t, "2")
	f.round.Result = nil
	_, err := f.settler.Apply(context.Background(), f.round)
	require.Error(t, err)
}
