package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errFirst  = errors.New("first")
	errSecond = errors.New("second")
)

func TestCollection(t *testing.T) {
	t.Parallel()

	var c Collection

	assert.False(t, c.HasError())
	require.NoError(t, c.GetError())

	c.Add(nil)
	c.Add(errFirst)

	assert.True(t, c.HasError())
	assert.Equal(t, errFirst, c.GetError())

	c.Add(errSecond)

	err := c.GetError()
	require.ErrorIs(t, err, errFirst)
	require.ErrorIs(t, err, errSecond)
}
