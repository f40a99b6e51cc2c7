package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/aviator-game-core/internal/game-service/domain"
	"github.com/radieske/aviator-game-core/internal/game-service/repo"
)

const admin = int64(1000)

func newLedger(t *testing.T) (*Ledger, *repo.Memory) {
	t.Helper()
	store := repo.NewMemory()
	return New(zap.NewNop(), store, admin), store
}

func TestPrivilegedAccount(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)

	assert.True(t, l.IsPrivileged(admin))
	assert.False(t, l.IsPrivileged(1))

	bal, err := l.GetBalance(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.UnlimitedBalance, bal)

	bal, err = l.Adjust(ctx, admin, -5000, "bet")
	require.NoError(t, err)
	assert.Equal(t, domain.UnlimitedBalance, bal)
	assert.Empty(t, store.Entries(), "privileged adjustments are no-ops")
}

func TestNoPrivilegedAccountWhenUnset(t *testing.T) {
	l := New(zap.NewNop(), repo.NewMemory(), 0)
	assert.False(t, l.IsPrivileged(0))
	assert.False(t, l.IsPrivileged(1))
}

func TestAdjustNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	_, err := l.Adjust(ctx, 5, 50, "seed")
	require.NoError(t, err)

	_, err = l.Adjust(ctx, 5, -100, "bet")
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	bal, err := l.GetBalance(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(50), bal)
}

func TestAdjustRejectsInvalidUser(t *testing.T) {
	l, _ := newLedger(t)
	_, err := l.Adjust(context.Background(), 0, 10, "seed")
	require.ErrorIs(t, err, domain.ErrInvalidUser)
	_, err = l.GetBalance(context.Background(), -3)
	require.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestConcurrentDebitsExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	_, err := l.Adjust(ctx, 8, 100, "seed")
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Adjust(ctx, 8, -100, "bet")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, insufficient int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientBalance):
			insufficient++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, insufficient)

	bal, _ := l.GetBalance(ctx, 8)
	assert.Zero(t, bal)
}

func TestAdminAdjust(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	_, _, err := l.AdminAdjust(ctx, 5, 6, 100)
	require.ErrorIs(t, err, domain.ErrForbidden)

	before, after, err := l.AdminAdjust(ctx, admin, 6, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), before)
	assert.Equal(t, int64(100), after)

	_, _, err = l.AdminAdjust(ctx, admin, 6, -500)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestStatsRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	_, _ = l.Adjust(ctx, 1, 30, "seed")

	_, err := l.Stats(ctx, 1)
	require.ErrorIs(t, err, domain.ErrForbidden)

	st, err := l.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalUsers)
	assert.Equal(t, int64(30), st.TotalPoints)
}

func TestRegisterCountsZeroBalanceUsers(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	created, bal, err := l.Register(ctx, 11)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Zero(t, bal)

	_, err = l.Adjust(ctx, 11, 70, "seed")
	require.NoError(t, err)
	created, bal, err = l.Register(ctx, 11)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(70), bal, "registering again keeps the balance")

	_, _, err = l.Register(ctx, 12)
	require.NoError(t, err)
	created, bal, err = l.Register(ctx, admin)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, domain.UnlimitedBalance, bal)

	_, _, err = l.Register(ctx, 0)
	require.ErrorIs(t, err, domain.ErrInvalidUser)

	st, err := l.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{TotalUsers: 2, TotalPoints: 70, MaxBalance: 70, MinBalance: 0}, st)
}
