package events

import "time"

// Evento emitido pelo scheduler quando uma aposta é liquidada.
type BetSettled struct {
	BetID   string    `json:"betId"`
	UserID  int64     `json:"userId"`
	RoundID string    `json:"roundId"`
	Amount  int64     `json:"amount"`
	Result  string    `json:"result"` // multiplicador, ex: "2.35"
	Payout  int64     `json:"payout"`
	Won     bool      `json:"won"`
	Ts      time.Time `json:"ts"`
}
