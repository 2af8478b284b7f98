package stats

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// StatsCollector manages bridge-wide statistics
type StatsCollector struct {
	StartTime        time.Time
	MessagesReceived uint64
	MessagesRelayed  uint64
	ConversionErrors uint64
	PublishErrors    uint64

	// lastUpdate holds UnixNano so readers never race Update
	lastUpdate atomic.Int64
}

// NewStatsCollector creates a new stats collector
func NewStatsCollector() *StatsCollector {
	s := &StatsCollector{
		StartTime: time.Now(),
	}
	s.lastUpdate.Store(time.Now().UnixNano())
	return s
}

// Update updates the stats with new values
func (s *StatsCollector) Update(received, relayed, conversionErrors, publishErrors uint64) {
	atomic.StoreUint64(&s.MessagesReceived, received)
	atomic.StoreUint64(&s.MessagesRelayed, relayed)
	atomic.StoreUint64(&s.ConversionErrors, conversionErrors)
	atomic.StoreUint64(&s.PublishErrors, publishErrors)
	s.lastUpdate.Store(time.Now().UnixNano())
}

// LastUpdate returns the time of the most recent Update
func (s *StatsCollector) LastUpdate() time.Time {
	return time.Unix(0, s.lastUpdate.Load())
}

// GetStats returns current statistics
func (s *StatsCollector) GetStats() map[string]interface{} {
	uptime := time.Since(s.StartTime)
	return map[string]interface{}{
		"uptime":            uptime.String(),
		"messages_received": atomic.LoadUint64(&s.MessagesReceived),
		"messages_relayed":  atomic.LoadUint64(&s.MessagesRelayed),
		"conversion_errors": atomic.LoadUint64(&s.ConversionErrors),
		"publish_errors":    atomic.LoadUint64(&s.PublishErrors),
		"last_update":       s.LastUpdate(),
	}
}

// GetStatsJSON returns stats as JSON
func (s *StatsCollector) GetStatsJSON() ([]byte, error) {
	return json.Marshal(s.GetStats())
}

// CalculateRate calculates the message relay rate per second
func (s *StatsCollector) CalculateRate() float64 {
	uptime := time.Since(s.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&s.MessagesRelayed)) / uptime
}
