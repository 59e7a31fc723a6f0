package detector

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// MaxLatencySamples is the capacity of the latency ring.
const MaxLatencySamples = 100

// Stats is a point-in-time copy of detection statistics.
type Stats struct {
	Attempts    int           `json:"attempts"`
	Successes   int           `json:"successes"`
	SuccessRate float64       `json:"success_rate"`
	Samples     int           `json:"latency_samples"`
	AvgLatency  time.Duration `json:"avg_latency_ns"`
	P95Latency  time.Duration `json:"p95_latency_ns"`
}

// Statistics counts attempts and successes and keeps the most recent latencies.
// It is safe for concurrent use.
type Statistics struct {
	mu        sync.Mutex
	attempts  int
	successes int
	latencies []time.Duration // oldest first
}

// NewStatistics creates an empty accumulator.
func NewStatistics() *Statistics {
	return &Statistics{latencies: make([]time.Duration, 0, MaxLatencySamples)}
}

func (s *Statistics) RecordAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
}

func (s *Statistics) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successes++
}

// RecordLatency appends d, dropping the oldest sample once the ring is full.
func (s *Statistics) RecordLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.latencies) >= MaxLatencySamples {
		copy(s.latencies, s.latencies[1:])
		s.latencies = s.latencies[:MaxLatencySamples-1]
	}
	s.latencies = append(s.latencies, d)
}

// SuccessRate returns successes/attempts as a percentage, or 0 with no attempts.
func (s *Statistics) SuccessRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.successRate()
}

func (s *Statistics) successRate() float64 {
	if s.attempts == 0 {
		return 0
	}
	return float64(s.successes) / float64(s.attempts) * 100
}

// Latencies returns the recorded latencies, oldest first.
func (s *Statistics) Latencies() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.latencies))
	copy(out, s.latencies)
	return out
}

// Reset zeroes the counters and empties the latency ring.
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = 0
	s.successes = 0
	s.latencies = s.latencies[:0]
}

// Snapshot returns the counters with mean and 95th percentile latency.
func (s *Statistics) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Stats{
		Attempts:    s.attempts,
		Successes:   s.successes,
		SuccessRate: s.successRate(),
		Samples:     len(s.latencies),
	}
	if len(s.latencies) == 0 {
		return out
	}

	sorted := make([]float64, len(s.latencies))
	for i, d := range s.latencies {
		sorted[i] = float64(d)
	}
	sort.Float64s(sorted)

	out.AvgLatency = time.Duration(stat.Mean(sorted, nil))
	out.P95Latency = time.Duration(stat.Quantile(0.95, stat.Empirical, sorted, nil))
	return out
}
