package logger

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSafeValue(t *testing.T) {
	assert.Equal(t, "rider-42", SafeValue("rider-42"))
	assert.Equal(t, "r1?level=error", SafeValue("r1\nlevel=error"))
	assert.Equal(t, "a?b", SafeValue("a\u2028b"))

	long := strings.Repeat("x", 100)
	assert.Equal(t, strings.Repeat("x", 64)+"...", SafeValue(long))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud"))
}
