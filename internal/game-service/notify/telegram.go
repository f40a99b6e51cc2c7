package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender é o subconjunto do *tgbotapi.BotAPI usado aqui
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram envia o resultado da rodada para o chat privado do usuário.
// O id do usuário é o próprio chat id.
type Telegram struct {
	Bot Sender
}

// NewTelegram autentica o bot com o token informado
func NewTelegram(token string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{Bot: bot}, nil
}

// Message monta o texto enviado ao usuário
func Message(s Settled) string {
	if s.Won {
		return fmt.Sprintf("🎉 Rodada encerrada! Multiplicador: x%s\nVocê apostou %d e ganhou %d pontos.",
			s.Result.StringFixed(2), s.Amount, s.Payout)
	}
	return fmt.Sprintf("Rodada encerrada. Multiplicador: x%s\nSua aposta de %d não foi premiada.",
		s.Result.StringFixed(2), s.Amount)
}

// Notify não aceita ctx na API do bot; respeitamos o prazo esperando o envio em goroutine
func (t *Telegram) Notify(ctx context.Context, s Settled) error {
	msg := tgbotapi.NewMessage(s.UserID, Message(s))

	done := make(chan error, 1)
	go func() {
		_, err := t.Bot.Send(msg)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("telegram notify user %d: %w", s.UserID, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram notify user %d: %w", s.UserID, err)
		}
		return nil
	}
}
