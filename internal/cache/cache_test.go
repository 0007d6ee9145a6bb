package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type snapshot struct{ Name string }

func TestCache_MissThenHit(t *testing.T) {
	c := New()

	_, ok := c.Get("member", 1)
	assert.False(t, ok)

	stored := c.Set("member", 1, &snapshot{Name: "Nordmann"})
	got, ok := c.Get("member", 1)

	assert.True(t, ok)
	assert.Same(t, stored, got)
}

func TestCache_TombstoneIsDistinctFromMiss(t *testing.T) {
	c := New()

	assert.Nil(t, c.Set("member", 7, nil))
	v, ok := c.Get("member", 7)

	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_KindsDoNotCollide(t *testing.T) {
	c := New()
	c.Set("member", 3, "a member")
	c.Set("team", 3, "a team")

	m, _ := c.Get("member", 3)
	tm, _ := c.Get("team", 3)

	assert.Equal(t, "a member", m)
	assert.Equal(t, "a team", tm)
}

func TestCache_Forget(t *testing.T) {
	c := New()
	c.Set("member", 5, "x")

	c.Forget("member", 5)
	_, ok := c.Get("member", 5)

	assert.False(t, ok)
}
