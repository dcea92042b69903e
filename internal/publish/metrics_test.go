package publish

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	assert.Zero(t, m.GetSuccessRate())

	m.Record(Outcome{Status: StatusPublished, Duration: 100 * time.Millisecond})
	m.Record(Outcome{Status: StatusFailed, Duration: 300 * time.Millisecond, Err: errors.New("x")})
	m.Record(Outcome{Status: StatusSkipped, Duration: time.Hour})

	assert.Equal(t, int64(2), m.GetPublishCount())
	assert.Equal(t, int64(1), m.GetSuccessCount())
	assert.Equal(t, int64(1), m.GetFailureCount())
	assert.Equal(t, int64(1), m.GetSkipCount())
	assert.Equal(t, 200*time.Millisecond, m.GetAverageDuration())
	assert.InDelta(t, 50.0, m.GetSuccessRate(), 0.001)

	snap := m.GetSnapshot()
	assert.Equal(t, int64(2), snap.TotalPublishes)

	m.Reset()
	assert.Zero(t, m.GetPublishCount())
	assert.Zero(t, m.GetAverageDuration())
}

func TestSummaryCounts(t *testing.T) {
	s := &Summary{}
	s.add(Outcome{Name: "a", Status: StatusPublished})
	s.add(Outcome{Name: "b", Status: StatusFailed, Err: errors.New("b broke")})
	s.add(Outcome{Name: "c", Status: StatusSkipped})
	s.add(Outcome{Name: "d", Status: StatusFailed, Err: errors.New("d broke")})

	assert.Equal(t, 1, s.Published)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 2, s.Failed)
	assert.False(t, s.OK())
	assert.Equal(t, []string{"b", "d"}, s.FailedNames())
	assert.Contains(t, s.Err().Error(), "b broke")
	assert.Contains(t, s.Err().Error(), "d broke")

	assert.NoError(t, (&Summary{}).Err())
}
