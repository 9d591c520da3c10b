package clock

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`^m_[0-9a-z]+_[0-9a-f]{8}$`)

func TestNewIDFormat(t *testing.T) {
	c := NewFixed(time.Unix(1_700_000_000, 0))
	id := NewID(c)
	require.Regexp(t, idPattern, id)
}

func TestNewIDUnique(t *testing.T) {
	c := NewFixed(time.Unix(1_700_000_000, 0))
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := NewID(c)
		assert.False(t, seen[id], "duplicate id minted: %s", id)
		seen[id] = true
	}
}

func TestFixedAdvance(t *testing.T) {
	c := NewFixed(time.Unix(0, 0))
	first := c.Now()
	c.Advance(time.Hour)
	assert.True(t, c.Now().After(first))
}
