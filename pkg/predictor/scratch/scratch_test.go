package scratch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache_PutGet(t *testing.T) {
	c := New()
	c.Put(10, 1, 0.25)
	v, ok := c.Get(10, 1)
	assert.True(t, ok)
	assert.Equal(t, 0.25, v)

	_, ok = c.Get(10, 2)
	assert.False(t, ok)
}

func TestCache_Reset(t *testing.T) {
	c := New()
	c.Put(1, 1, 0.5)
	c.Reset()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get(1, 1)
	assert.False(t, ok)
}
