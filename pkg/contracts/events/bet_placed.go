package events

// Evento emitido pelo game-service após uma aposta ser aceita na rodada corrente.
type BetPlaced struct {
	BetID    string `json:"bet_id"`
	UserID   int64  `json:"user_id"`
	RoundID  string `json:"round_id"`
	Amount   int64  `json:"amount"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}
