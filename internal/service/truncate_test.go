package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateWithinBudget(t *testing.T) {
	text := "Slide 1:\nRoot cause: late handoffs\n\nSlide 2:\nProposed fix: single queue"
	got, truncated := Truncate(text, 20000)
	assert.False(t, truncated)
	assert.Equal(t, text, got)

	got, truncated = Truncate(text, len(text))
	assert.False(t, truncated)
	assert.Equal(t, text, got)
}

func TestTruncateHardCutoff(t *testing.T) {
	got, truncated := Truncate("abcdefghij", 4)
	assert.True(t, truncated)
	assert.Equal(t, "abcd"+TruncationMarker, got)
}

func TestTruncateCountsCharacters(t *testing.T) {
	got, truncated := Truncate("改善活动总结报告", 2)
	assert.True(t, truncated)
	assert.Equal(t, "改善"+TruncationMarker, got)
}

func TestTruncateIdempotent(t *testing.T) {
	text := strings.Repeat("kaizen ", 2000)
	once, truncated := Truncate(text, 5000)
	assert.True(t, truncated)

	for _, budget := range []int{5000, 6000, 60000} {
		again, truncatedAgain := Truncate(once, budget)
		assert.False(t, truncatedAgain, budget)
		assert.Equal(t, once, again, budget)
	}
}

func TestTruncateDisabled(t *testing.T) {
	got, truncated := Truncate("abc", 0)
	assert.False(t, truncated)
	assert.Equal(t, "abc", got)
}
