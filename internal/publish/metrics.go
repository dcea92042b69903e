package publish

import (
	"sync"
	"time"

	"github.com/conneroisu/cascade/internal/interfaces"
)

// Metrics tracks publish counters across a run. Workers record into it
// concurrently.
type Metrics struct {
	TotalPublishes      int64
	SuccessfulPublishes int64
	FailedPublishes     int64
	SkippedPublishes    int64
	AverageDuration     time.Duration
	TotalDuration       time.Duration
	mutex               sync.RWMutex
}

var _ interfaces.PublishMetrics = (*Metrics)(nil)

// NewMetrics creates a new metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record adds one outcome. Skips are counted but do not affect durations.
func (m *Metrics) Record(o Outcome) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if o.Status == StatusSkipped {
		m.SkippedPublishes++
		return
	}

	m.TotalPublishes++
	m.TotalDuration += o.Duration
	if o.Status == StatusFailed {
		m.FailedPublishes++
	} else {
		m.SuccessfulPublishes++
	}
	m.AverageDuration = m.TotalDuration / time.Duration(m.TotalPublishes)
}

// GetSnapshot returns a copy of the current counters.
func (m *Metrics) GetSnapshot() Metrics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return Metrics{
		TotalPublishes:      m.TotalPublishes,
		SuccessfulPublishes: m.SuccessfulPublishes,
		FailedPublishes:     m.FailedPublishes,
		SkippedPublishes:    m.SkippedPublishes,
		AverageDuration:     m.AverageDuration,
		TotalDuration:       m.TotalDuration,
	}
}

// Reset resets all metrics
func (m *Metrics) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalPublishes = 0
	m.SuccessfulPublishes = 0
	m.FailedPublishes = 0
	m.SkippedPublishes = 0
	m.AverageDuration = 0
	m.TotalDuration = 0
}

// GetPublishCount returns the number of attempted publishes.
func (m *Metrics) GetPublishCount() int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.TotalPublishes
}

// GetSuccessCount returns the number of successful publishes.
func (m *Metrics) GetSuccessCount() int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.SuccessfulPublishes
}

// GetFailureCount returns the number of failed publishes.
func (m *Metrics) GetFailureCount() int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.FailedPublishes
}

// GetSkipCount returns the number of skipped packages.
func (m *Metrics) GetSkipCount() int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.SkippedPublishes
}

// GetAverageDuration returns the mean duration of attempted publishes.
func (m *Metrics) GetAverageDuration() time.Duration {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.AverageDuration
}

// GetSuccessRate returns the success rate as a percentage
func (m *Metrics) GetSuccessRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.TotalPublishes == 0 {
		return 0.0
	}
	return float64(m.SuccessfulPublishes) / float64(m.TotalPublishes) * 100.0
}
