package bitset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetTestRoundTrip(t *testing.T) {
	s := New(40)
	s.Set(0)
	s.Set(31)
	s.Set(32)
	s.Set(39)

	assert.True(t, s.Test(0))
	assert.True(t, s.Test(31))
	assert.True(t, s.Test(32))
	assert.True(t, s.Test(39))
	assert.False(t, s.Test(1))
	assert.False(t, s.Test(33))
}

func TestSetOutOfRangeIsNoop(t *testing.T) {
	s := New(8)
	s.Set(-1)
	s.Set(8)
	assert.False(t, s.Test(-1))
	assert.False(t, s.Test(8))
}

func TestFromWordsRoundTrip(t *testing.T) {
	s := New(64)
	s.Set(0)
	s.Set(40)

	rebuilt := FromWords(s.Words(), 64)
	assert.True(t, rebuilt.Test(0))
	assert.True(t, rebuilt.Test(40))
	assert.False(t, rebuilt.Test(1))
}
