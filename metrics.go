package loadgen

import (
	"strconv"
	"time"

	"github.com/streadway/quantile"
)

// maxDistinctErrors bounds the error strings kept per label
const maxDistinctErrors = 64

// LatencyMetrics holds computed request latency metrics.
type LatencyMetrics struct {
	// Total is the total latency sum of all requests in an attack.
	Total time.Duration `json:"total"`
	// Mean is the mean request latency.
	Mean time.Duration `json:"mean"`
	// P50 is the 50th percentile request latency.
	P50 time.Duration `json:"50th"`
	// P95 is the 95th percentile request latency.
	P95 time.Duration `json:"95th"`
	// P99 is the 99th percentile request latency.
	P99 time.Duration `json:"99th"`
	// Max is the maximum observed request latency.
	Max time.Duration `json:"max"`
}

// Metrics holds metrics computed out of a slice of Results which are used
// in some of the Reporters
type Metrics struct {
	Latencies LatencyMetrics `json:"latencies"`
	// First is the earliest timestamp in a Result set.
	First time.Time `json:"earliest"`
	// Last is the latest timestamp in a Result set.
	Last time.Time `json:"latest"`
	// Duration is the duration of the attack.
	Duration time.Duration `json:"duration"`
	// Requests is the total number of requests executed.
	Requests uint64 `json:"requests"`
	// Rate is the rate of requests per second.
	Rate float64 `json:"rate"`
	// Success is the ratio of non-error requests.
	Success float64 `json:"success"`
	// BytesIn and BytesOut are summed over all requests.
	BytesIn  int64 `json:"bytes_in"`
	BytesOut int64 `json:"bytes_out"`
	// StatusCodes is a histogram of the responses' status codes, "0" counts transport failures.
	StatusCodes map[string]int `json:"status_codes"`
	// Errors is a set of unique errors returned by the targets during the attack.
	Errors []string `json:"errors"`

	errors    map[string]struct{}
	success   uint64
	estimator *quantile.Estimator
}

func newEstimator() *quantile.Estimator {
	return quantile.New(
		quantile.Known(0.50, 0.01),
		quantile.Known(0.95, 0.001),
		quantile.Known(0.99, 0.0005),
	)
}

func (m *Metrics) add(r result) {
	m.init()
	m.Requests++
	m.StatusCodes[strconv.Itoa(r.doResult.StatusCode)]++
	m.BytesIn += r.doResult.BytesIn
	m.BytesOut += r.doResult.BytesOut

	m.Latencies.Total += r.elapsed
	if r.elapsed > m.Latencies.Max {
		m.Latencies.Max = r.elapsed
	}
	m.estimator.Add(float64(r.elapsed))

	if m.First.IsZero() || r.begin.Before(m.First) {
		m.First = r.begin
	}
	if r.end.After(m.Last) {
		m.Last = r.end
	}

	if !r.doResult.Failed() {
		m.success++
	}
	if r.doResult.Error != nil {
		msg := r.doResult.Error.Error()
		if _, ok := m.errors[msg]; !ok && len(m.errors) < maxDistinctErrors {
			m.errors[msg] = struct{}{}
			m.Errors = append(m.Errors, msg)
		}
	}
}

func (m *Metrics) init() {
	if m.StatusCodes == nil {
		m.StatusCodes = map[string]int{}
	}
	if m.errors == nil {
		m.errors = map[string]struct{}{}
	}
	if m.Errors == nil {
		m.Errors = []string{}
	}
	if m.estimator == nil {
		m.estimator = newEstimator()
	}
}

// update computes the derived fields
func (m *Metrics) update() {
	if m.Requests == 0 {
		return
	}
	m.Duration = m.Last.Sub(m.First)
	if secs := m.Duration.Seconds(); secs > 0 {
		m.Rate = float64(m.Requests) / secs
	}
	m.Latencies.Mean = time.Duration(float64(m.Latencies.Total) / float64(m.Requests))
	m.Latencies.P50 = time.Duration(m.estimator.Get(0.50))
	m.Latencies.P95 = time.Duration(m.estimator.Get(0.95))
	m.Latencies.P99 = time.Duration(m.estimator.Get(0.99))
	m.Success = float64(m.success) / float64(m.Requests)
}

func (m *Metrics) meanLogEntry() time.Duration {
	if m.Requests == 0 {
		return 0
	}
	return time.Duration(float64(m.Latencies.Total) / float64(m.Requests))
}

func (m *Metrics) successLogEntry() int {
	if m.Requests == 0 {
		return 0
	}
	return int(float64(m.success) / float64(m.Requests) * 100)
}
