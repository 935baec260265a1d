package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	ReportFileTmpl  = "%s-%d.json"
	lastSuccessTmpl = "%s_last"
	ParallelMode    = "parallel"
	SequenceMode    = "sequence"
)

// LoadManager runs suite steps and keeps reports and finish criteria
type LoadManager struct {
	// SuiteConfig holds data common for all groups
	SuiteConfig *SuiteConfig
	// GeneratorConfig holds generator data
	GeneratorConfig *GeneratorConfig
	// Steps runner objects that fires .Do()
	Steps []RunStep
	// ResultLog csv log of every attack call, nil when disabled
	ResultLog *ResultLog
	ReportDir string

	mu sync.Mutex
	// Reports run reports for every handle
	Reports map[string]*RunReport
	// When degradation threshold is reached for any handle
	Degradation bool
	// When a runtime check stopped any handle or a handle could not run
	Failed bool

	cancel     context.CancelFunc
	promServer *http.Server
}

type RunStep struct {
	Name          string
	ExecutionMode string
	Runners       []*Runner
}

// NewLoadManager creates load manager, opens result log and report dir when configured
func NewLoadManager(suiteCfg *SuiteConfig, genCfg *GeneratorConfig) (*LoadManager, error) {
	if genCfg == nil {
		genCfg = &GeneratorConfig{}
	}
	lm := &LoadManager{
		SuiteConfig:     suiteCfg,
		GeneratorConfig: genCfg,
		Steps:           make([]RunStep, 0),
		Reports:         make(map[string]*RunReport),
	}
	if genCfg.CSVLog != "" {
		rl, err := OpenResultLog(genCfg.CSVLog)
		if err != nil {
			return nil, err
		}
		lm.ResultLog = rl
	}
	if genCfg.ReportDir != "" {
		dir, err := filepath.Abs(genCfg.ReportDir)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create report dir: %w", err)
		}
		lm.ReportDir = dir
	}
	return lm, nil
}

// HandleShutdownSignal stops all runners on SIGINT or SIGTERM
func (m *LoadManager) HandleShutdownSignal(ctx context.Context) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
		case <-ctx.Done():
			return
		}
		log.Info("exit signal received, exiting")
		if m.SuiteConfig != nil && m.SuiteConfig.GoroutinesDump {
			buf := make([]byte, 1<<20)
			stacklen := runtime.Stack(buf, true)
			log.Infof("=== received SIGTERM ===\n*** goroutine dump...\n%s\n*** end\n", buf[:stacklen])
		}
		m.Shutdown()
	}()
}

// Shutdown stops every runner, steps not yet started are skipped
func (m *LoadManager) Shutdown() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()
	for _, s := range m.Steps {
		for _, r := range s.Runners {
			r.Shutdown()
		}
	}
}

func (m *LoadManager) close() {
	if m.ResultLog != nil {
		if err := m.ResultLog.Close(); err != nil {
			log.Errorf("failed to close result log: %s", err)
		}
	}
	if m.promServer != nil {
		_ = m.promServer.Close()
	}
}

// RunSuite starts suite and waits for all runners to finish
func (m *LoadManager) RunSuite(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	defer m.close()
	m.HandleShutdownSignal(ctx)

	if p := m.GeneratorConfig.Prometheus; p != nil && p.Listen != "" {
		m.promServer = ServePrometheus(p.Listen)
	}

	startTime := time.Now()
	for _, step := range m.Steps {
		if ctx.Err() != nil {
			log.Infof("suite stopped, skipping step: %s", step.Name)
			continue
		}
		log.Infof("running step: %s, execution mode: %s", step.Name, step.ExecutionMode)
		switch step.ExecutionMode {
		case ParallelMode:
			var wg sync.WaitGroup
			wg.Add(len(step.Runners))
			for _, r := range step.Runners {
				go func(r *Runner) {
					defer wg.Done()
					m.runHandle(ctx, r)
				}(r)
			}
			wg.Wait()
		case SequenceMode, "":
			for _, r := range step.Runners {
				if ctx.Err() != nil {
					break
				}
				m.runHandle(ctx, r)
			}
		default:
			return fmt.Errorf("unknown execution_mode %q, please set parallel or sequence", step.ExecutionMode)
		}
	}
	tz := m.GeneratorConfig.Timezone
	log.Infof("Test time: %s - %s", timeHumanReadable(startTime, tz), timeHumanReadable(time.Now(), tz))
	return nil
}

func (m *LoadManager) runHandle(ctx context.Context, r *Runner) {
	rep, err := r.Run(ctx)
	if err != nil {
		r.L.Errorf("run failed: %s", err)
		er := NewErrorReport(err, r.Config)
		rep = &er
		m.markFailed()
	}
	if r.Config.OutputFilename != "" {
		if err := PrintReport(*rep); err != nil {
			r.L.Errorf("failed to print report: %s", err)
		}
	}
	m.mu.Lock()
	m.Reports[r.Name()] = rep
	m.mu.Unlock()
}

func (m *LoadManager) markFailed() {
	m.mu.Lock()
	m.Failed = true
	m.mu.Unlock()
}

// StoreHandleReports stores report for every handle in suite, last success is updated unless degraded or failed
func (m *LoadManager) StoreHandleReports() error {
	if m.ReportDir == "" {
		return nil
	}
	ts := time.Now().Unix()
	for handleName, r := range m.Reports {
		repPath := filepath.Join(m.ReportDir, fmt.Sprintf(ReportFileTmpl, handleName, ts))
		log.Infof("writing report for handle [%s] in %s", handleName, repPath)
		f, err := os.Create(repPath)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		err = WriteReport(f, *r)
		f.Close()
		if err != nil {
			return err
		}
		if !m.Degradation && !r.Failed {
			if err := m.WriteLastSuccess(handleName, ts); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteLastSuccess writes ts of last successful run for handle
func (m *LoadManager) WriteLastSuccess(handleName string, ts int64) error {
	lastSuccessFile := filepath.Join(m.ReportDir, fmt.Sprintf(lastSuccessTmpl, handleName))
	if err := ioutil.WriteFile(lastSuccessFile, []byte(strconv.FormatInt(ts, 10)), 0644); err != nil {
		return fmt.Errorf("failed to write last success for %s: %w", handleName, err)
	}
	return nil
}

// LastSuccessReportForHandle gets last successful report for a handle
func (m *LoadManager) LastSuccessReportForHandle(handleName string) (*RunReport, error) {
	lastTs, err := ioutil.ReadFile(filepath.Join(m.ReportDir, fmt.Sprintf(lastSuccessTmpl, handleName)))
	if err != nil {
		return nil, err
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(string(lastTs)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad last success timestamp for %s: %w", handleName, err)
	}
	data, err := ioutil.ReadFile(filepath.Join(m.ReportDir, fmt.Sprintf(ReportFileTmpl, handleName, ts)))
	if err != nil {
		return nil, fmt.Errorf("failed to read last success report: %w", err)
	}
	var runReport RunReport
	if err := json.Unmarshal(data, &runReport); err != nil {
		return nil, fmt.Errorf("failed to decode last success report: %w", err)
	}
	return &runReport, nil
}

// CheckDegradation compares p50 of every label with the last successful run of the handle
func (m *LoadManager) CheckDegradation() error {
	threshold := m.GeneratorConfig.Checks.HandleThresholdPercent
	if threshold <= 0 || m.ReportDir == "" {
		return nil
	}
	for handleName, currentReport := range m.Reports {
		lastReport, err := m.LastSuccessReportForHandle(handleName)
		if os.IsNotExist(err) {
			log.Infof("nothing to compare for %s handle, no reports in %s", handleName, m.ReportDir)
			continue
		}
		if err != nil {
			return err
		}
		for label, current := range currentReport.Metrics {
			last, ok := lastReport.Metrics[label]
			if !ok || last.Latencies.P50 == 0 {
				continue
			}
			ratio := float64(current.Latencies.P50) / float64(last.Latencies.P50)
			log.Infof("[ %s/%s ] p50 current: %v, last: %v, ratio: %.2f", handleName, label, current.Latencies.P50, last.Latencies.P50, ratio)
			if ratio >= threshold {
				log.Infof("p50 degradation of %s handle", handleName)
				m.Degradation = true
			}
		}
	}
	return nil
}
