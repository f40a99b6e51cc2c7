package dto

import "github.com/go-playground/validator/v10"

var validate = validator.New()

type PlaceBetRequest struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

func (p *PlaceBetRequest) Validate() error {
	return validate.Struct(p)
}

// RegisterUserRequest cadastra o jogador com saldo zero
type RegisterUserRequest struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
}

func (r *RegisterUserRequest) Validate() error {
	return validate.Struct(r)
}

// AdjustBalanceRequest é o ajuste administrativo (crédito ou débito)
type AdjustBalanceRequest struct {
	AdminID int64 `json:"adminId" validate:"required,gt=0"`
	UserID  int64 `json:"userId" validate:"required,gt=0"`
	Delta   int64 `json:"delta" validate:"required,ne=0"`
}

func (a *AdjustBalanceRequest) Validate() error {
	return validate.Struct(a)
}
