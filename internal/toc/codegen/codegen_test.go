package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSynthesizerRestartsDeeperLevelsOnShallowerEntry(t *testing.T) {
	s := New()
	assert.Equal(t, "1", s.Next(1))
	assert.Equal(t, "1.1", s.Next(2))
	assert.Equal(t, "1.2", s.Next(2))
	assert.Equal(t, "1.2.1", s.Next(3))
	assert.Equal(t, "2", s.Next(1))
	assert.Equal(t, "2.1", s.Next(2)) // deeper counters restarted after the level-1 bump
}

func TestContinuingPrefixesChildCodes(t *testing.T) {
	s := Continuing("2.3")
	assert.Equal(t, "2.3.1", s.Next(1))
	assert.Equal(t, "2.3.2", s.Next(1))
	assert.Equal(t, "2.3.2.1", s.Next(2))
}

func TestLevelDerivesFromCode(t *testing.T) {
	assert.Equal(t, 1, Level("1"))
	assert.Equal(t, 3, Level("2.3.1"))
	assert.Equal(t, 0, Level(""))
}

func TestCompareOrdersPreOrder(t *testing.T) {
	assert.Equal(t, -1, Compare("1", "1.1"))
	assert.Equal(t, -1, Compare("1.1", "1.2"))
	assert.Equal(t, -1, Compare("1.2", "2"))
	assert.Equal(t, 1, Compare("2", "1.9"))
	assert.Equal(t, 0, Compare("1.2", "1.2"))
}

func TestMonotonicDetectsViolation(t *testing.T) {
	assert.True(t, Monotonic([]string{"1", "1.1", "1.1.1", "1.2", "2"}))
	assert.False(t, Monotonic([]string{"1", "1.2", "1.1"}))
}

func TestRenumberSuffixRepairsFromFirstViolation(t *testing.T) {
	codes := []string{"1", "1.1", "1.3", "1.2", "2"} // 1.3 then 1.2 is a regression
	fixed := RenumberSuffix(codes)

	assert.Equal(t, "1", fixed[0])
	assert.Equal(t, "1.1", fixed[1])
	assert.True(t, Monotonic(fixed))
}

func TestRenumberSuffixNoopOnAlreadyMonotone(t *testing.T) {
	codes := []string{"1", "1.1", "2"}
	assert.Equal(t, codes, RenumberSuffix(codes))
}
