package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/layer-3/payroll-auth/core"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("wallet", func(fl validator.FieldLevel) bool {
		return core.IsWalletAddress(fl.Field().String())
	})
	_ = v.RegisterValidation("nonce", func(fl validator.FieldLevel) bool {
		return core.IsNonce(fl.Field().String())
	})
	return v
}

type challengeRequest struct {
	Address   string `validate:"required,wallet"`
	ClientKey string `validate:"required,max=256"`
}

type loginRequest struct {
	Address   string `validate:"required,wallet"`
	Signature string `validate:"required,max=132"`
	Nonce     string `validate:"required,nonce"`
}

// checkInput runs struct validation and folds any failure into core.ErrInvalidInput
func checkInput(req any) error {
	if err := validate.Struct(req); err != nil {
		return core.ErrInvalidInput
	}
	return nil
}
