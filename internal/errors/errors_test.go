package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindPredicates(t *testing.T) {
	assert.True(t, IsValidation(Validation("bad importance %v", 2.0)))
	assert.True(t, IsNotFound(NotFound("item %s", "m_1")))
	assert.True(t, IsStorage(Storage("save failed", stderrors.New("disk full"))))
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Storage("save failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestWrapPreservesKind(t *testing.T) {
	inner := Validation("empty tag")
	wrapped := Wrap(inner, "remember")
	assert.True(t, IsValidation(wrapped))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "noop"))
}
