package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("create domain: %w", Conflict("subdomain already taken"))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "conflict", Kind(err))
	assert.Equal(t, "subdomain already taken", Message(err))
}

func TestMessageFallsBackToErrorString(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, "boom", Message(err))
	assert.Equal(t, "", Kind(err))
}
