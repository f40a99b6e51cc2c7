package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/aviator-game-core/internal/game-service/domain"
)

// Store é a persistência de saldos usada pelo ledger
type Store interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	Adjust(ctx context.Context, userID int64, delta int64, reason string) (int64, error)
	Stats(ctx context.Context, exclude int64) (domain.Stats, error)
	Register(ctx context.Context, userID int64) (bool, error)
}

// Ledger aplica a regra da conta privilegiada sobre o Store.
// A conta privilegiada lê saldo ilimitado e nunca é debitada nem creditada.
type Ledger struct {
	log        *zap.Logger
	store      Store
	privileged int64
}

// New cria o ledger; privileged <= 0 desativa a conta privilegiada
func New(log *zap.Logger, store Store, privileged int64) *Ledger {
	return &Ledger{log: log, store: store, privileged: privileged}
}

// IsPrivileged informa se o usuário é a conta com saldo ilimitado
func (l *Ledger) IsPrivileged(userID int64) bool {
	return l.privileged > 0 && userID == l.privileged
}

func (l *Ledger) GetBalance(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, domain.ErrInvalidUser
	}
	if l.IsPrivileged(userID) {
		return domain.UnlimitedBalance, nil
	}
	bal, err := l.store.Balance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return bal, nil
}

// Adjust aplica delta de forma atômica; débitos que deixariam o saldo negativo
// falham com ErrInsufficientBalance sem alterar nada
func (l *Ledger) Adjust(ctx context.Context, userID int64, delta int64, reason string) (int64, error) {
	if userID <= 0 {
		return 0, domain.ErrInvalidUser
	}
	if l.IsPrivileged(userID) {
		return domain.UnlimitedBalance, nil
	}
	bal, err := l.store.Adjust(ctx, userID, delta, reason)
	if err != nil {
		return 0, err
	}
	l.log.Debug("balance adjusted",
		zap.Int64("userId", userID),
		zap.Int64("delta", delta),
		zap.Int64("balance", bal),
		zap.String("reason", reason),
	)
	return bal, nil
}

// Register cadastra o usuário com saldo zero (/start). É idempotente:
// created=false quando ele já existia, e o saldo atual é devolvido intacto.
func (l *Ledger) Register(ctx context.Context, userID int64) (created bool, balance int64, err error) {
	if userID <= 0 {
		return false, 0, domain.ErrInvalidUser
	}
	if l.IsPrivileged(userID) {
		return false, domain.UnlimitedBalance, nil
	}
	if created, err = l.store.Register(ctx, userID); err != nil {
		return false, 0, fmt.Errorf("register user: %w", err)
	}
	if balance, err = l.GetBalance(ctx, userID); err != nil {
		return false, 0, err
	}
	if created {
		l.log.Info("user registered", zap.Int64("userId", userID))
	}
	return created, balance, nil
}

// AdminAdjust é o ajuste manual (/addpoints); só a conta privilegiada pode chamar
func (l *Ledger) AdminAdjust(ctx context.Context, adminID, userID, delta int64) (before, after int64, err error) {
	if !l.IsPrivileged(adminID) {
		return 0, 0, domain.ErrForbidden
	}
	if before, err = l.GetBalance(ctx, userID); err != nil {
		return 0, 0, err
	}
	if after, err = l.Adjust(ctx, userID, delta, fmt.Sprintf("admin:%d", adminID)); err != nil {
		return 0, 0, err
	}
	l.log.Info("admin balance adjustment",
		zap.Int64("adminId", adminID),
		zap.Int64("userId", userID),
		zap.Int64("delta", delta),
		zap.Int64("before", before),
		zap.Int64("after", after),
	)
	return before, after, nil
}

// Stats devolve os agregados do ledger sem a conta privilegiada (/stats)
func (l *Ledger) Stats(ctx context.Context, adminID int64) (domain.Stats, error) {
	if !l.IsPrivileged(adminID) {
		return domain.Stats{}, domain.ErrForbidden
	}
	return l.store.Stats(ctx, l.privileged)
}
