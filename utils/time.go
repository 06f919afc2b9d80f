// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowPtr returns a pointer to the current time in UTC
func UTCNowPtr() *time.Time {
	now := UTCNow()
	return &now
}

// UTCToday returns the current UTC date truncated to midnight
func UTCToday() time.Time {
	return UTCNow().Truncate(24 * time.Hour)
}

// ToPtr returns a pointer to the given value
func ToPtr[T any](v T) *T {
	return &v
}

// Truncate shortens a string to at most n runes
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Ellipsis shortens a string to at most n runes, appending "..." when
// anything was cut off
func Ellipsis(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return Truncate(s, n) + "..."
}
