package topics

const (
	// Bets
	BetPlaced  = "bet_placed"
	BetSettled = "bet_settled"

	// Rounds
	RoundFinished = "round_finished"

	// Redis Pub/Sub
	RoundUpdatesChannel = "round_updates_broadcast"
)
