package transit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectionKeys(t *testing.T) {
	assert.Equal(t, "aller", Outbound.Key())
	assert.Equal(t, "retour", Inbound.Key())
	assert.Equal(t, Inbound, Outbound.Opposite())
	assert.Equal(t, Outbound, Inbound.Opposite())
	assert.Equal(t, []Direction{Outbound, Inbound}, Directions)
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{
		"aller":    Outbound,
		"outbound": Outbound,
		"retour":   Inbound,
		"inbound":  Inbound,
	} {
		got, err := ParseDirection(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDirection("north")
	assert.Error(t, err)
}
