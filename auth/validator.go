package auth

import (
	"chat-relay/errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type SignInRequest struct {
	Identity string `validate:"required,max=64"`
}

// ValidateSignIn checks a display name before it reaches the session.
func ValidateSignIn(req SignInRequest) error {
	if strings.TrimSpace(req.Identity) == "" {
		return errors.ErrEmptyIdentity
	}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidIdentity, err)
	}
	if !isPrintable(req.Identity) {
		return errors.ErrInvalidIdentity
	}
	return nil
}

func isPrintable(s string) bool {
	for _, char := range s {
		if unicode.IsControl(char) {
			return false
		}
	}
	return true
}
