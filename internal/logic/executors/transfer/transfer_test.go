package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	for _, want := range []Type{FromCaller, FromRouter, None} {
		got, err := ParseType(want.String())
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.True(t, got.Valid())
	}

	_, err := ParseType("push")
	assert.Error(t, err)
	assert.False(t, Type(3).Valid())
	assert.Equal(t, "unknown(3)", Type(3).String())
}
