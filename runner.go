package loadgen

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/rcrowley/go-metrics"
)

// BeforeRunner can be implemented by an Attacker
// and its method is called before a test or Run.
type BeforeRunner interface {
	BeforeRun(c RunnerConfig) error
}

// AfterRunner can be implemented by an Attacker
// and its method is called after a test or Run.
// The report is passed to compute the Failed field and/or store values in Output.
type AfterRunner interface {
	AfterRun(r *RunReport) error
}

const defaultStopCheckInterval = 5 * time.Second

// Runner keeps a fixed number of virtual users attacking for a fixed duration.
type Runner struct {
	name      string
	Manager   *LoadManager
	Config    RunnerConfig
	prototype Attack
	attackers []Attack
	vuWg      sync.WaitGroup

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	stopped bool // if tests are stopped by a runtime check or signal
	failed  bool // if a runtime check failed

	// Checks whether to stop generator
	checkFunc RuntimeCheckFunc
	// Other clients for checks
	PromClient v1.API

	// Metrics store full attack metrics per request label, owned by the collector while running
	Metrics map[string]*Metrics
	checks  *checkRegistry

	metricsMu               sync.Mutex
	registeredMetricsLabels []string
	timerMu                 *sync.RWMutex
	timers                  map[string]metrics.Timer
	errorsMu                *sync.RWMutex
	Errors                  map[string]metrics.Counter
	checkCounters           map[string]metrics.Counter
	vusGauge                metrics.Gauge
	vusCount                int64

	// monitors recorders enabled by WithMonitor / WithCSVMonitor wrappers
	monitors monitorKind

	L *Logger
}

// NewRunner creates runner for one handle, lm may be nil when used standalone
func NewRunner(name string, lm *LoadManager, a Attack, ch RuntimeCheckFunc, c RunnerConfig) (*Runner, error) {
	if msg := c.Validate(); len(msg) > 0 {
		return nil, fmt.Errorf("runner %s configuration errors: %v", name, msg)
	}
	r := &Runner{
		name:      name,
		Manager:   lm,
		Config:    c,
		prototype: a,
		checkFunc: ch,
		attackers: []Attack{},
		monitors:  monitorsOf(a),

		Metrics: make(map[string]*Metrics),
		checks:  newCheckRegistry(),

		registeredMetricsLabels: make([]string, 0),
		timerMu:                 &sync.RWMutex{},
		timers:                  make(map[string]metrics.Timer),
		errorsMu:                &sync.RWMutex{},
		Errors:                  make(map[string]metrics.Counter),
		checkCounters:           make(map[string]metrics.Counter),
		vusGauge:                metrics.NewGauge(),

		L: &Logger{log.With("runner", name)},
	}
	if lm != nil && lm.GeneratorConfig != nil && lm.GeneratorConfig.Prometheus != nil && lm.GeneratorConfig.Prometheus.URL != "" {
		promClient, err := NewPromAPI(lm.GeneratorConfig.Prometheus.URL)
		if err != nil {
			return nil, err
		}
		r.PromClient = promClient
	}
	r.defaultCheckByData()
	r.L.Infof("bootstraping generator, [%d] available logical CPUs", runtime.NumCPU())
	return r, nil
}

// Name handle name of the runner
func (r *Runner) Name() string {
	return r.name
}

// defaultCheckByData setups prometheus stop check from stop_if when no custom check is given
func (r *Runner) defaultCheckByData() {
	if r.checkFunc != nil {
		r.L.Info("custom check selected")
		return
	}
	if len(r.Config.StopIf) == 0 {
		return
	}
	sc := r.Config.StopIf[0]
	if r.PromClient == nil {
		r.L.Infof("stop_if [%s] configured without prometheus url, skipping runner runtime check", sc.Type)
		return
	}
	r.L.Infof("default prometheus check selected, query: %s", sc.Query)
	r.checkFunc = promStopCheck(r.PromClient, sc.Query)
}

func (r *Runner) stopCheckInterval() time.Duration {
	if len(r.Config.StopIf) == 0 || r.Config.StopIf[0].Interval <= 0 {
		return defaultStopCheckInterval
	}
	return time.Duration(r.Config.StopIf[0].Interval) * time.Second
}

func (r *Runner) spawnAttacker(vu int) {
	if r.Config.Verbose {
		r.L.Infof("setup and spawn new attacker [%d]", vu)
	}
	attacker := r.prototype.Clone(r)
	if err := attacker.Setup(r.Config); err != nil {
		r.L.Errorf("attacker [%d] setup failed with [%v]", vu, err)
		return
	}
	r.attackers = append(r.attackers, attacker)
}

// Probe uses the Attack to perform {count} calls and report its results,
// it is intended for development of an Attack implementation.
func (r *Runner) Probe(ctx context.Context, count int) ([]DoResult, error) {
	probe := r.prototype.Clone(r)
	if err := probe.Setup(r.Config); err != nil {
		return nil, fmt.Errorf("probe attack setup failed: %w", err)
	}
	defer probe.Teardown()
	res := make([]DoResult, 0, count)
	for s := count; s > 0; s-- {
		rs := doWithTimeout(ctx, probe, r.Config.timeout())
		r.L.Infof("test attack call [%s] took [%v] with status [%v], checks %v and error [%v]",
			rs.doResult.RequestLabel, rs.elapsed, rs.doResult.StatusCode, rs.doResult.Checks, rs.doResult.Error)
		res = append(res, rs.doResult)
	}
	return res, nil
}

// Run offers the complete flow of a test: setup of every virtual user,
// attack for the configured duration, teardown and report.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	report := newRunReport(r.Config)
	if lifecycler, ok := r.prototype.(BeforeRunner); ok {
		if err := lifecycler.BeforeRun(r.Config); err != nil {
			return nil, fmt.Errorf("BeforeRun failed: %w", err)
		}
	}
	r.reset()
	r.initMonitoring()
	defer r.unregisterMetrics()

	if r.Config.WaitBeforeSec != 0 {
		r.L.Infof("awaiting runner start, sleeping for %d sec", r.Config.WaitBeforeSec)
		select {
		case <-time.After(time.Duration(r.Config.WaitBeforeSec) * time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	for vu := 1; vu <= r.Config.VUs; vu++ {
		r.spawnAttacker(vu)
	}
	defer r.tearDownAttackers()
	if len(r.attackers) == 0 {
		return nil, fmt.Errorf("runner %s: no attackers available, every setup failed", r.name)
	}

	// doCtx is only cancelled by shutdown, calls in flight at the end of the duration complete
	doCtx, hardStop := context.WithCancel(WithRunId(ctx, report.ID))
	defer hardStop()
	attackCtx, cancel := context.WithTimeout(doCtx, r.Config.duration())
	defer cancel()
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil, fmt.Errorf("runner %s was shut down before start", r.name)
	}
	r.cancel = hardStop
	r.running = true
	r.mu.Unlock()

	results := make(chan result, len(r.attackers))
	collected := r.collectResults(results)
	r.checkStopIf(attackCtx)

	r.L.Infof("begin attack with [%d] virtual users for [%d] seconds", len(r.attackers), r.Config.DurationSec)
	report.StartedAt = time.Now()
	for i, a := range r.attackers {
		r.vuWg.Add(1)
		atomic.AddInt64(&r.vusCount, 1)
		r.vusGauge.Update(atomic.LoadInt64(&r.vusCount))
		activeVUs.WithLabelValues(r.name).Inc()
		go func(vu int, a Attack) {
			defer r.vuWg.Done()
			defer func() {
				activeVUs.WithLabelValues(r.name).Dec()
				r.vusGauge.Update(atomic.AddInt64(&r.vusCount, -1))
			}()
			attack(attackCtx, WithVUId(doCtx, vu), a, results, r.Config.timeout())
		}(i+1, a)
	}
	<-attackCtx.Done()
	r.L.Infof("duration is over, waiting for calls in flight")
	r.vuWg.Wait()
	close(results)
	<-collected
	report.FinishedAt = time.Now()

	r.mu.Lock()
	r.running = false
	r.cancel = nil
	report.Failed = r.failed
	r.mu.Unlock()
	r.L.Info("end attack")

	r.fillReport(report)
	r.L.Infof("checks:\n%s", CheckSummary(report.Checks))
	if lifecycler, ok := r.prototype.(AfterRunner); ok {
		if err := lifecycler.AfterRun(report); err != nil {
			r.L.Errorf("AfterRun failed: %s", err)
		}
	}
	return report, nil
}

func (r *Runner) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = false
	r.stopped = false
	r.attackers = []Attack{}
	r.Metrics = make(map[string]*Metrics)
	r.checks.reset()
}

func (r *Runner) fillReport(rep *RunReport) {
	for label, each := range r.Metrics {
		each.update()
		rep.Metrics[label] = each
	}
	rep.Checks = r.checks.snapshot()
}

// collectResults consumes results in a dedicated goroutine until the channel is closed
func (r *Runner) collectResults(results <-chan result) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		var tick <-chan time.Time
		if r.Config.Verbose {
			t := time.NewTicker(time.Second)
			defer t.Stop()
			tick = t.C
		}
		window := new(Metrics)
		for {
			select {
			case s, ok := <-results:
				if !ok {
					return
				}
				r.addResult(s)
				window.add(s)
			case <-tick:
				window.update()
				r.L.Infof("rate [%.2f], mean response [%v], # requests [%d], # vus [%d], %% success [%d]",
					window.Rate, window.meanLogEntry(), window.Requests, atomic.LoadInt64(&r.vusCount), window.successLogEntry())
				window = new(Metrics)
			}
		}
	}()
	return done
}

func (r *Runner) addResult(s result) {
	m, ok := r.Metrics[s.doResult.RequestLabel]
	if !ok {
		m = new(Metrics)
		r.Metrics[s.doResult.RequestLabel] = m
	}
	m.add(s)
	r.checks.add(s.doResult.Checks)
	observeResult(r.name, s)
	if r.monitors&goMetricsMonitor != 0 {
		r.observeGoMetrics(s)
	}
	if r.monitors&csvMonitor != 0 && r.Manager != nil && r.Manager.ResultLog != nil {
		if err := r.Manager.ResultLog.Write(recordOf(s.begin, s.elapsed, s.doResult)); err != nil {
			r.L.Errorf("failed to write result log: %s", err)
		}
	}
}

// observeGoMetrics updates timers, error and check counters shipped to graphite
func (r *Runner) observeGoMetrics(s result) {
	r.registerLabelTimings(s.doResult.RequestLabel).Update(s.elapsed)
	if s.doResult.Failed() {
		r.registerErrCount(s.doResult.RequestLabel).Inc(1)
	}
	for _, ch := range s.doResult.Checks {
		r.registerCheckCount(ch.Name, ch.Passed).Inc(1)
	}
}

func (r *Runner) initMonitoring() {
	if r.Manager == nil || r.Manager.GeneratorConfig == nil {
		return
	}
	g := r.Manager.GeneratorConfig.Graphite
	if g.URL == "" {
		return
	}
	if err := StartGraphiteSender(g.LoadGeneratorPrefix, time.Duration(g.FlushIntervalSec)*time.Second, g.URL); err != nil {
		r.L.Errorf("graphite sender is not started: %s", err)
		return
	}
	r.registerMetric(r.name+".vus", r.vusGauge)
}

func (r *Runner) registerLabelTimings(label string) metrics.Timer {
	r.timerMu.RLock()
	timer, ok := r.timers[label]
	r.timerMu.RUnlock()
	if ok {
		return timer
	}
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	if timer, ok = r.timers[label]; ok {
		return timer
	}
	timer = metrics.NewTimer()
	r.timers[label] = timer
	r.registerMetric(fmt.Sprintf("%s.%s-timer", r.name, label), timer)
	return timer
}

func (r *Runner) registerErrCount(label string) metrics.Counter {
	return r.registerCounter(r.Errors, fmt.Sprintf("%s.%s-err", r.name, label), label)
}

func (r *Runner) registerCheckCount(check string, passed bool) metrics.Counter {
	key := check + "-" + checkResultLabel(passed)
	return r.registerCounter(r.checkCounters, fmt.Sprintf("%s.check.%s", r.name, sanitizeMetricName(key)), key)
}

func (r *Runner) registerCounter(store map[string]metrics.Counter, name, key string) metrics.Counter {
	r.errorsMu.RLock()
	cnt, ok := store[key]
	r.errorsMu.RUnlock()
	if ok {
		return cnt
	}
	r.errorsMu.Lock()
	defer r.errorsMu.Unlock()
	if cnt, ok = store[key]; ok {
		return cnt
	}
	cnt = metrics.NewCounter()
	store[key] = cnt
	r.registerMetric(name, cnt)
	return cnt
}

func (r *Runner) registerMetric(name string, metric interface{}) {
	r.metricsMu.Lock()
	r.registeredMetricsLabels = append(r.registeredMetricsLabels, name)
	r.metricsMu.Unlock()
	if err := metrics.Register(name, metric); err != nil {
		r.L.Infof("failed to register metric: %s", err)
	}
}

func (r *Runner) unregisterMetrics() {
	r.metricsMu.Lock()
	defer r.metricsMu.Unlock()
	for _, m := range r.registeredMetricsLabels {
		metrics.Unregister(m)
	}
	r.registeredMetricsLabels = r.registeredMetricsLabels[:0]
}

func (r *Runner) tearDownAttackers() {
	if r.Config.Verbose {
		r.L.Infof("tearing down attackers [%d]", len(r.attackers))
	}
	for i, each := range r.attackers {
		if err := each.Teardown(); err != nil {
			r.L.Infof("failed to teardown attacker [%d]:%v", i, err)
		}
	}
}

// Shutdown stops a running attack, virtual users finish their current call
func (r *Runner) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	if r.running && r.cancel != nil {
		r.L.Infof("shutting down runner")
		r.cancel()
	}
}

func (r *Runner) markFailed() {
	r.mu.Lock()
	r.failed = true
	r.mu.Unlock()
	if r.Manager != nil {
		r.Manager.markFailed()
	}
}

// checkStopIf executes check function every interval, shutdown if it returns true
func (r *Runner) checkStopIf(ctx context.Context) {
	if r.checkFunc == nil {
		return
	}
	interval := r.stopCheckInterval()
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if r.checkFunc(r) {
					r.L.Infof("runtime check failed, stopping")
					r.markFailed()
					r.Shutdown()
					return
				}
			}
		}
	}()
}
