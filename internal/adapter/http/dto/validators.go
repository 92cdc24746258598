package dto

import (
	"regexp"

	"savings-account/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	accountIDRe      = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]{1,64}$`)
	idempotencyKeyRe = regexp.MustCompile(`^[\x21-\x7E]{1,128}$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("account_id", validateAccountID)
		_ = v.RegisterValidation("money", validateMoney)
	}
}

// ValidAccountID allows 1-64 alphanumeric, underscore, dash and dot characters.
func ValidAccountID(id string) bool {
	return accountIDRe.MatchString(id)
}

// ValidIdempotencyKey allows up to 128 printable ASCII characters without spaces.
// The empty key is valid and means "not idempotent".
func ValidIdempotencyKey(key string) bool {
	return key == "" || idempotencyKeyRe.MatchString(key)
}

func validateAccountID(fl validator.FieldLevel) bool {
	return ValidAccountID(fl.Field().String())
}

// validateMoney accepts "123.45" with a minimum of 0.01.
func validateMoney(fl validator.FieldLevel) bool {
	_, err := domain.ParseMoney(fl.Field().String())
	return err == nil
}
