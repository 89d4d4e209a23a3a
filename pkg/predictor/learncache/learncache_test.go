package learncache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_StageTake(t *testing.T) {
	c := New()
	key := Key{FS: 1, FSS: 2}
	c.Stage(key, Sample{Cols: 1, Features: []float64{0.5}, Target: 3, RFactor: 0.1})

	s, ok := c.take(key)
	require.True(t, ok)
	assert.Equal(t, 3.0, s.Target)

	_, ok = c.take(key)
	assert.False(t, ok, "take should remove the entry")
}

func TestCache_EvictOnCleanCompletion(t *testing.T) {
	c := New()
	key := Key{FS: 1, FSS: 2}
	c.Stage(key, Sample{RFactor: 0.1})
	c.Evict(key)
	assert.Equal(t, 0, c.Len())
}

func TestCache_ClearOnTimeoutLearningDisabled(t *testing.T) {
	c := New()
	c.Stage(Key{FS: 1, FSS: 1}, Sample{RFactor: 0.1})
	c.Stage(Key{FS: 2, FSS: 1}, Sample{RFactor: 0.1})
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
