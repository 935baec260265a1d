package loadgen

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func mockRunnerConfig() RunnerConfig {
	return RunnerConfig{
		HandleName:   "mock",
		VUs:          3,
		DurationSec:  1,
		DoTimeoutSec: 1,
	}
}

func TestNewRunnerValidation(t *testing.T) {
	_, err := NewRunner("mock", nil, newAttackMock(0, 200), nil, RunnerConfig{})
	if err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestRunnerRun(t *testing.T) {
	m := newAttackMock(10*time.Millisecond, 200)
	r, err := NewRunner("mock", nil, m, nil, mockRunnerConfig())
	if err != nil {
		t.Fatal(err)
	}
	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	stats, ok := rep.Checks[mockCheck]
	if !ok {
		t.Fatalf("no stats for %q", mockCheck)
	}
	if stats.Passes == 0 {
		t.Fatal("expected passed checks")
	}
	if got, want := stats.Fails, uint64(0); got != want {
		t.Fatalf("got %v want %v", got, want)
	}
	metrics, ok := rep.Metrics["mock"]
	if !ok {
		t.Fatal("no metrics for mock label")
	}
	if got, want := metrics.Requests, stats.Total(); got != want {
		t.Fatalf("got %v want %v", got, want)
	}
	if got := uint64(atomic.LoadInt64(m.calls)); got < metrics.Requests {
		t.Fatalf("got %v calls, less than %v requests", got, metrics.Requests)
	}
	if got, want := metrics.Success, 1.0; got != want {
		t.Fatalf("got %v want %v", got, want)
	}
	if rep.Failed {
		t.Fatal("run must not fail")
	}
}

func TestRunnerFailedChecksDoNotFailRun(t *testing.T) {
	r, err := NewRunner("mock", nil, newAttackMock(5*time.Millisecond, 500), nil, mockRunnerConfig())
	if err != nil {
		t.Fatal(err)
	}
	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	stats := rep.Checks[mockCheck]
	if stats == nil || stats.Fails == 0 {
		t.Fatalf("expected failed checks, got %v", stats)
	}
	if got, want := stats.Passes, uint64(0); got != want {
		t.Fatalf("got %v want %v", got, want)
	}
	if rep.Failed {
		t.Fatal("failed checks must not fail the run")
	}
	if got, want := rep.Metrics["mock"].StatusCodes["500"], int(stats.Fails); got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestRunnerTimeoutFailsDeclaredChecks(t *testing.T) {
	c := mockRunnerConfig()
	c.VUs = 2
	c.DurationSec = 2
	r, err := NewRunner("mock", nil, newAttackMock(10*time.Second, 200), nil, c)
	if err != nil {
		t.Fatal(err)
	}
	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	stats := rep.Checks[mockCheck]
	if stats == nil || stats.Fails == 0 {
		t.Fatalf("expected timed out checks, got %v", stats)
	}
	if got, want := stats.Passes, uint64(0); got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestRunnerAllSetupsFailed(t *testing.T) {
	m := newAttackMock(0, 200)
	m.setupErr = errors.New("no connection")
	r, err := NewRunner("mock", nil, m, nil, mockRunnerConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error when no attacker is available")
	}
}

func TestRunnerShutdown(t *testing.T) {
	c := mockRunnerConfig()
	c.DurationSec = 30
	r, err := NewRunner("mock", nil, newAttackMock(5*time.Millisecond, 200), nil, c)
	if err != nil {
		t.Fatal(err)
	}
	time.AfterFunc(300*time.Millisecond, r.Shutdown)
	begin := time.Now()
	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if took := time.Since(begin); took > 5*time.Second {
		t.Fatalf("runner was not shut down, took %v", took)
	}
	if rep.Checks[mockCheck] == nil {
		t.Fatal("expected checks collected before shutdown")
	}
}

func TestRunnerStopCheck(t *testing.T) {
	c := mockRunnerConfig()
	c.DurationSec = 30
	c.StopIf = []StopCheck{{Type: prometheusCheckType, Query: "up", Interval: 1}}
	stop := func(r *Runner) bool { return true }
	r, err := NewRunner("mock", nil, newAttackMock(5*time.Millisecond, 200), stop, c)
	if err != nil {
		t.Fatal(err)
	}
	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Failed {
		t.Fatal("expected run failed by runtime check")
	}
}

func TestRunnerProbe(t *testing.T) {
	r, err := NewRunner("mock", nil, newAttackMock(time.Millisecond, 204), nil, mockRunnerConfig())
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Probe(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(res), 3; got != want {
		t.Fatalf("got %v want %v", got, want)
	}
	for _, each := range res {
		if got, want := each.StatusCode, 204; got != want {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestRunnerCountsCallsInFlightAtTheEnd(t *testing.T) {
	c := mockRunnerConfig()
	c.DoTimeoutSec = 3
	r, err := NewRunner("mock", nil, newAttackMock(1500*time.Millisecond, 200), nil, c)
	if err != nil {
		t.Fatal(err)
	}
	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	stats := rep.Checks[mockCheck]
	if stats == nil {
		t.Fatal("calls in flight at the end of the run must be counted")
	}
	if got, want := stats.Passes, uint64(c.VUs); got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestRunnerWithMonitors(t *testing.T) {
	var buf bytes.Buffer
	lm, err := NewLoadManager(&SuiteConfig{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	lm.ResultLog = NewResultLog(&buf)
	c := mockRunnerConfig()
	c.DurationSec = 2
	r, err := NewRunner("monitored", lm, WithCSVMonitor(WithMonitor(newAttackMock(5*time.Millisecond, 200))), nil, c)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := r.monitors, goMetricsMonitor|csvMonitor; got != want {
		t.Fatalf("got %v want %v", got, want)
	}
	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	stats := rep.Checks[mockCheck]
	if stats == nil || stats.Passes == 0 {
		t.Fatalf("checks must pass through monitors, got %v", stats)
	}
	timer, ok := r.timers["mock"]
	if !ok {
		t.Fatal("expected timer for mock label")
	}
	if got, want := uint64(timer.Count()), rep.Metrics["mock"].Requests; got != want {
		t.Errorf("timer count: got %v want %v", got, want)
	}
	passed, ok := r.checkCounters[mockCheck+"-pass"]
	if !ok {
		t.Fatal("expected check counter")
	}
	if got, want := uint64(passed.Count()), stats.Passes; got != want {
		t.Errorf("check counter: got %v want %v", got, want)
	}

	if err := lm.ResultLog.Flush(); err != nil {
		t.Fatal(err)
	}
	recs, err := ReadResultLog(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := uint64(len(recs)), stats.Total(); got != want {
		t.Errorf("result log records: got %v want %v", got, want)
	}
}

func TestRunnerMonitorsTimeouts(t *testing.T) {
	c := mockRunnerConfig()
	c.VUs = 2
	c.DurationSec = 2
	r, err := NewRunner("monitored-timeouts", nil, WithMonitor(newAttackMock(10*time.Second, 200)), nil, c)
	if err != nil {
		t.Fatal(err)
	}
	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	stats := rep.Checks[mockCheck]
	if stats == nil || stats.Fails == 0 {
		t.Fatalf("expected timed out checks, got %v", stats)
	}
	failed, ok := r.checkCounters[mockCheck+"-fail"]
	if !ok {
		t.Fatal("expected failed check counter")
	}
	if got, want := uint64(failed.Count()), stats.Fails; got != want {
		t.Errorf("check counter: got %v want %v", got, want)
	}
}
