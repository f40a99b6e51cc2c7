package notify

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Settled descreve a liquidação de uma aposta para o usuário
type Settled struct {
	RoundID string
	BetID   string
	UserID  int64
	Amount  int64
	Result  decimal.Decimal
	Payout  int64
	Won     bool
}

// Notifier entrega o resultado ao usuário; falhas não são fatais para o chamador
type Notifier interface {
	Notify(ctx context.Context, s Settled) error
}

// Multi repassa a notificação para todos os notifiers, acumulando os erros
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, s Settled) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
