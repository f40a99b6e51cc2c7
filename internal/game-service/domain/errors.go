package domain

import "errors"

// Reason agrupa erros de requisição no que o cliente deve fazer a seguir
type Reason string

const (
	ReasonRetryLater   Reason = "try_again_later"
	ReasonInvalidInput Reason = "invalid_input"
	ReasonInsufficient Reason = "insufficient_funds"
	ReasonForbidden    Reason = "forbidden"
	ReasonNotFound     Reason = "not_found"
	ReasonInternal     Reason = "internal"
)

// Error é um erro de validação/estado devolvido como valor ao chamador
type Error struct {
	Code   string
	Reason Reason
}

func (e *Error) Error() string { return e.Code }

var (
	ErrRoundNotOpen        = &Error{Code: "round_not_open_for_betting", Reason: ReasonRetryLater}
	ErrWindowClosed        = &Error{Code: "window_closed", Reason: ReasonRetryLater}
	ErrDuplicateActiveBet  = &Error{Code: "duplicate_active_bet", Reason: ReasonRetryLater}
	ErrInsufficientBalance = &Error{Code: "insufficient_balance", Reason: ReasonInsufficient}
	ErrInvalidStake        = &Error{Code: "invalid_stake_amount", Reason: ReasonInvalidInput}
	ErrInvalidUser         = &Error{Code: "invalid_user_id", Reason: ReasonInvalidInput}
	ErrForbidden           = &Error{Code: "forbidden", Reason: ReasonForbidden}
	ErrNotFound            = &Error{Code: "not_found", Reason: ReasonNotFound}
)

// ReasonOf devolve o motivo de um erro; erros de infraestrutura viram ReasonInternal
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonInternal
}

// CodeOf devolve o código estável do erro ("internal_error" para infraestrutura)
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal_error"
}

// ErrActiveRoundExists indica que o armazenamento já tem uma rodada em betting/counting
var ErrActiveRoundExists = errors.New("another round is already active")
