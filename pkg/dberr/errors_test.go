package dberr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFound(t *testing.T) {
	err := NotFound("doc1")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))

	wrapped := fmt.Errorf("get: %w", err)
	assert.True(t, IsNotFound(wrapped))
}

func TestIsConflict(t *testing.T) {
	err := Conflict()
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
}

func TestDatabaseErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Database("write", cause)
	assert.ErrorIs(t, err, cause)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "invalid revision format: abc", InvalidRev("abc").Error())
	assert.Equal(t, "missing document id", MissingID().Error())
	assert.Equal(t, "database already exists: foo", DatabaseExists("foo").Error())
}
