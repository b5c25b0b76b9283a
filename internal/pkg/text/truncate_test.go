package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "a b c", Truncate("a\n  b\tc", 0))
	assert.Equal(t, "日本...", Truncate("日本語テキスト", 2))
}
