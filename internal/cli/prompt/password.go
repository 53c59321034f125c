package prompt

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
)

// MinPasswordLength is enforced on interactively entered passwords.
const MinPasswordLength = 8

// ErrPasswordMismatch is returned when the confirmation differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

// NewPassword asks for a password twice with masked input.
func NewPassword() (string, error) {
	first := promptui.Prompt{
		Label:    "Password",
		Mask:     '*',
		Validate: ValidateNewPassword,
	}
	password, err := first.Run()
	if err != nil {
		return "", wrapError(err)
	}

	second := promptui.Prompt{Label: "Confirm password", Mask: '*'}
	confirm, err := second.Run()
	if err != nil {
		return "", wrapError(err)
	}

	if password != confirm {
		return "", ErrPasswordMismatch
	}
	return password, nil
}

// ValidateNewPassword rejects passwords shorter than MinPasswordLength.
func ValidateNewPassword(input string) error {
	if len(input) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
