package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerAdd(t *testing.T) {
	s := NewScheduler()
	assert.NoError(t, s.Add("sync", "@every 1m", func() {}))
	assert.NoError(t, s.Add("purge", "@hourly", func() {}))
	assert.NoError(t, s.Add("archive", "0 30 3 * * *", func() {}))
	assert.Error(t, s.Add("broken", "not a spec", func() {}))
	assert.Equal(t, 3, s.Len())
}
