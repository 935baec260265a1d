package loadgen

import (
	"errors"
	"testing"
	"time"
)

func resultAt(begin time.Time, elapsed time.Duration, status int, err error) result {
	return result{
		begin:    begin,
		end:      begin.Add(elapsed),
		elapsed:  elapsed,
		doResult: DoResult{RequestLabel: "l", StatusCode: status, Error: err, BytesIn: 10, BytesOut: 20},
	}
}

func TestMetrics(t *testing.T) {
	start := time.Now()
	m := new(Metrics)
	m.add(resultAt(start, 10*time.Millisecond, 200, nil))
	m.add(resultAt(start.Add(500*time.Millisecond), 30*time.Millisecond, 204, nil))
	m.add(resultAt(start.Add(900*time.Millisecond), 100*time.Millisecond, 0, errors.New("refused")))
	m.add(resultAt(start.Add(950*time.Millisecond), 50*time.Millisecond, 0, errors.New("refused")))
	m.update()

	if got, want := m.Requests, uint64(4); got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if got, want := m.Success, 0.5; got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if got, want := m.Duration, time.Second; got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if got, want := m.Rate, 4.0; got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if got, want := m.Latencies.Max, 100*time.Millisecond; got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if got, want := m.Latencies.Mean, 47500*time.Microsecond; got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if got, want := m.StatusCodes["0"], 2; got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if got, want := len(m.Errors), 1; got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if got, want := m.BytesIn, int64(40); got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if m.Latencies.P99 < m.Latencies.P50 {
		t.Errorf("p99 %v less than p50 %v", m.Latencies.P99, m.Latencies.P50)
	}
}

func TestMetricsEmpty(t *testing.T) {
	m := new(Metrics)
	m.update()
	if got, want := m.meanLogEntry(), time.Duration(0); got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if got, want := m.successLogEntry(), 0; got != want {
		t.Errorf("got %v want %v", got, want)
	}
}
