package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/aviator-game-core/pkg/contracts/events"
)

var win = Settled{
	RoundID: "r1",
	BetID:   "b1",
	UserID:  42,
	Amount:  100,
	Result:  decimal.RequireFromString("2.5"),
	Payout:  250,
	Won:     true,
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []tgbotapi.MessageConfig
	err   error
	block chan struct{}
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, f.err
}

func TestTelegramSendsToUserChat(t *testing.T) {
	s := &fakeSender{}
	tg := &Telegram{Bot: s}

	require.NoError(t, tg.Notify(context.Background(), win))

	require.Len(t, s.sent, 1)
	assert.Equal(t, int64(42), s.sent[0].ChatID)
	assert.Contains(t, s.sent[0].Text, "x2.50")
	assert.Contains(t, s.sent[0].Text, "250")
}

func TestTelegramRespectsDeadline(t *testing.T) {
	s := &fakeSender{block: make(chan struct{})}
	defer close(s.block)
	tg := &Telegram{Bot: s}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := tg.Notify(ctx, win)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMessageForLosingBet(t *testing.T) {
	lost := win
	lost.Won, lost.Payout = false, 0
	assert.Contains(t, Message(lost), "não foi premiada")
}

type fakeWriter struct {
	msgs []kafkago.Message
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaPublishesBetSettled(t *testing.T) {
	w := &fakeWriter{}
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	k := &Kafka{Writer: w, Now: func() time.Time { return ts }}

	require.NoError(t, k.Notify(context.Background(), win))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))

	var ev events.BetSettled
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, events.BetSettled{
		BetID: "b1", UserID: 42, RoundID: "r1", Amount: 100,
		Result: "2.50", Payout: 250, Won: true, Ts: ts,
	}, ev)
}

type notifierFunc func(ctx context.Context, s Settled) error

func (f notifierFunc) Notify(ctx context.Context, s Settled) error { return f(ctx, s) }

func TestMultiCallsEveryNotifier(t *testing.T) {
	boom := errors.New("boom")
	var calls int
	m := Multi{
		notifierFunc(func(context.Context, Settled) error { calls++; return boom }),
		notifierFunc(func(context.Context, Settled) error { calls++; return nil }),
	}

	err := m.Notify(context.Background(), win)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}
