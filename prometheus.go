package loadgen

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "bidload"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: promNamespace, Name: "requests_total", Help: "Attack calls by status code, code 0 is a transport failure"},
		[]string{"runner", "label", "code"},
	)
	checksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: promNamespace, Name: "checks_total", Help: "Check evaluations by result"},
		[]string{"runner", "check", "result"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: promNamespace, Name: "request_duration_seconds", Help: "Attack call latency"},
		[]string{"runner", "label"},
	)
	activeVUs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: promNamespace, Name: "vus", Help: "Running virtual users"},
		[]string{"runner"},
	)

	promRegistry = prometheus.NewRegistry()
)

func init() {
	promRegistry.MustRegister(Collectors()...)
}

// Collectors generator collectors
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{requestsTotal, checksTotal, requestDuration, activeVUs}
}

func observeResult(runner string, r result) {
	label := r.doResult.RequestLabel
	requestsTotal.WithLabelValues(runner, label, strconv.Itoa(r.doResult.StatusCode)).Inc()
	requestDuration.WithLabelValues(runner, label).Observe(r.elapsed.Seconds())
	for _, ch := range r.doResult.Checks {
		checksTotal.WithLabelValues(runner, ch.Name, checkResultLabel(ch.Passed)).Inc()
	}
}

func checkResultLabel(passed bool) string {
	if passed {
		return "pass"
	}
	return "fail"
}

// ServePrometheus exposes generator metrics on /metrics, returned server must be closed by caller
func ServePrometheus(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Infof("[prometheus] serving generator metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("[prometheus] metrics server failed: %s", err)
		}
	}()
	return srv
}
