package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUTCNow(t *testing.T) {
	now := UTCNow()
	assert.Equal(t, time.UTC, now.Location())

	ptr := UTCNowPtr()
	assert.NotNil(t, ptr)

	today := UTCToday()
	assert.Zero(t, today.Hour())
	assert.Zero(t, today.Minute())
}

func TestToPtr(t *testing.T) {
	s := ToPtr("hello")
	assert.Equal(t, "hello", *s)

	n := ToPtr(42)
	assert.Equal(t, 42, *n)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "abcde", Truncate("abcdefgh", 5))
	assert.Equal(t, "héll", Truncate("héllo", 4), "truncation counts runes, not bytes")
	assert.Equal(t, "", Truncate("", 3))
}

func TestEllipsis(t *testing.T) {
	assert.Equal(t, "short", Ellipsis("short", 10))
	assert.Equal(t, "abcde...", Ellipsis("abcdefgh", 5))
}
