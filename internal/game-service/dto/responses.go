package dto

import "time"

type PlaceBetResponse struct {
	BetID   string `json:"betId"`
	RoundID string `json:"roundId"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
	Balance int64  `json:"balance"`
}

type BalanceResponse struct {
	UserID    int64 `json:"userId"`
	Balance   int64 `json:"balance"`
	Unlimited bool  `json:"unlimited,omitempty"`
}

type RegisterUserResponse struct {
	UserID  int64 `json:"userId"`
	Balance int64 `json:"balance"`
	Created bool  `json:"created"`
}

type RoundResponse struct {
	RoundID          string    `json:"roundId"`
	Status           string    `json:"status"`
	Result           string    `json:"result,omitempty"`
	BettingEndsAt    time.Time `json:"bettingEndsAt"`
	RoundEndsAt      time.Time `json:"roundEndsAt"`
	BettingRemaining int64     `json:"bettingRemainingSeconds"`
	BetOptions       []int64   `json:"betOptions"`
}

type AdjustBalanceResponse struct {
	UserID int64 `json:"userId"`
	Before int64 `json:"before"`
	After  int64 `json:"after"`
}

// ErrorResponse: code é estável por erro, reason diz ao cliente o que fazer
type ErrorResponse struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}
