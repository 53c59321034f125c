package prompt

import (
	"errors"
	"fmt"
	"testing"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
)

func TestIsAborted(t *testing.T) {
	assert.True(t, IsAborted(promptui.ErrInterrupt))
	assert.True(t, IsAborted(promptui.ErrAbort))
	assert.True(t, IsAborted(fmt.Errorf("wrapped: %w", ErrAborted)))
	assert.False(t, IsAborted(errors.New("boom")))
	assert.False(t, IsAborted(nil))
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, wrapError(nil))
	assert.ErrorIs(t, wrapError(promptui.ErrInterrupt), ErrAborted)

	other := errors.New("boom")
	assert.Equal(t, other, wrapError(other))
}

func TestConfirmWithForce(t *testing.T) {
	ok, err := ConfirmWithForce("Delete?", true)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateNewPassword(t *testing.T) {
	assert.Error(t, ValidateNewPassword("short"))
	assert.NoError(t, ValidateNewPassword("long-enough"))
}

func TestRoleOptionsCoverAllRoles(t *testing.T) {
	var got []string
	for _, o := range roleOptions {
		got = append(got, string(o.Role))
	}
	assert.Equal(t, []string{"SuperAdmins", "DomainAdmins", "SimpleUsers"}, got)
}
