package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("update order: %w", Operationf("signature is locked"))

	assert.True(t, Is(err, ErrOperation))
	assert.False(t, Is(err, ErrValidation))
	assert.Equal(t, KindOperation, KindOf(err))
	assert.True(t, IsUserFacing(err))
}

func TestIs_MessageErrorsAreNotSentinels(t *testing.T) {
	a := Validationf("a")
	b := Validationf("b")
	assert.False(t, errors.Is(a, b))
	assert.True(t, errors.Is(a, a))
}

func TestExternal_KeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := External("Sending mail failed", cause)

	assert.True(t, Is(err, ErrExternal))
	assert.True(t, Is(err, cause))
	assert.Equal(t, "Sending mail failed: dial tcp: refused", err.Error())
}

func TestKindOf_Unclassified(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.False(t, IsUserFacing(err))
	assert.Equal(t, "internal", KindOf(err).String())
	assert.Equal(t, "not_found", KindNotFound.String())
}
