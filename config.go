/*
 *    Copyright [2020] Sergey Kudasov
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package loadgen

import (
	"flag"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	fVUs       = "vus"
	fDuration  = "duration"
	fOutput    = "o"
	fVerbose   = "verbose"
	fSample    = "t"
	fDoTimeout = "timeout"
)

const (
	DefaultVUs          = 50
	DefaultDurationSec  = 30
	DefaultDoTimeoutSec = 60
	DefaultHTTPTimeout  = 60
)

var (
	oVUs       = flag.Int(fVUs, 0, "override the number of virtual users of every handle")
	oDuration  = flag.Int(fDuration, 0, "override the duration of every handle in seconds")
	oOutput    = flag.String(fOutput, "", "output file to write the report to (use stdout if empty)")
	oVerbose   = flag.Bool(fVerbose, false, "produce more verbose logging")
	oSample    = flag.Int(fSample, 0, "test your attack implementation with a number of sample calls. Your program exits after this")
	oDoTimeout = flag.Int(fDoTimeout, 0, "override the timeout in seconds for each attack call")
)

// Prometheus prometheus config
type Prometheus struct {
	// URL prometheus base url, used by stop_if checks
	URL string `mapstructure:"url"`
	// Listen address to expose generator metrics on, ex.: 0.0.0.0:9102
	Listen string `mapstructure:"listen"`
}

type GeneratorConfig struct {
	// Host current vm host configuration
	Host struct {
		// Name used in graphite metrics as prefix
		Name string `mapstructure:"name"`
		// NetworkIface default network interface to collect metrics from
		NetworkIface string `mapstructure:"network_iface"`
		// CollectMetrics collect host metrics flag
		CollectMetrics bool `mapstructure:"collect_metrics"`
	} `mapstructure:"host"`
	// Generator generator specific config
	Generator struct {
		// TargetHost host of the attacked service, port comes from the environment
		TargetHost string `mapstructure:"target_host"`
		// Verbose allows to print debug generator logs
		Verbose bool `mapstructure:"verbose"`
	} `mapstructure:"generator"`
	// Graphite related config
	Graphite struct {
		// URL graphite base url, ex.: 0.0.0.0:2003
		URL string `mapstructure:"url"`
		// FlushIntervalSec flush interval in seconds
		FlushIntervalSec int `mapstructure:"flushDurationSec"`
		// LoadGeneratorPrefix prefix to be used in graphite metrics
		LoadGeneratorPrefix string `mapstructure:"loadGeneratorPrefix"`
	} `mapstructure:"graphite"`
	Prometheus *Prometheus `mapstructure:"prometheus"`
	// LoadScriptsDir relative from cwd load dir path, ex.: load
	LoadScriptsDir string `mapstructure:"load_scripts_dir"`
	// ReportDir directory for json reports, reports are not stored when empty
	ReportDir string `mapstructure:"report_dir"`
	// CSVLog per request csv log path, disabled when empty
	CSVLog string `mapstructure:"csv_log"`
	// Timezone timezone used for human readable test interval, ex.: Europe/Moscow
	Timezone string `mapstructure:"timezone"`
	// Logging logging related config
	Logging struct {
		// Level level of allowed log messages,ex.: debug | info
		Level string `mapstructure:"level"`
		// Encoding encoding of logs, ex.: console | json
		Encoding string `mapstructure:"encoding"`
	} `mapstructure:"logging"`
	// Checks suite level checks
	Checks struct {
		// HandleThresholdPercent p50 ratio to the last successful run considered a degradation, ex.: 1.2
		HandleThresholdPercent float64 `mapstructure:"handle_threshold_percent"`
	} `mapstructure:"checks"`
}

// LoadDefaultGeneratorConfig reads generator yaml into the global viper and rebuilds the logger
func LoadDefaultGeneratorConfig(cfgPath string) (*GeneratorConfig, error) {
	viper.SetConfigType("yaml")
	viper.SetConfigFile(cfgPath)
	if err := viper.MergeInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read generator config %s: %w", cfgPath, err)
	}
	var cfg GeneratorConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal generator config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		return nil, fmt.Errorf("errors in generator config validation: %v", errs)
	}
	NewLogger()
	return &cfg, nil
}

func (c *GeneratorConfig) Validate() (list []string) {
	if c.Host.CollectMetrics && c.Host.NetworkIface == "" {
		list = append(list, "host.network_iface is required to collect host metrics")
	}
	if c.Graphite.URL != "" && c.Graphite.FlushIntervalSec <= 0 {
		list = append(list, "graphite.flushDurationSec must be positive")
	}
	return
}

// SuiteConfig suite config
type SuiteConfig struct {
	// DumpTransport dumps request/response in stdout
	DumpTransport bool `mapstructure:"dumptransport" yaml:"dumptransport"`
	// GoroutinesDump dump goroutines on exit signal
	GoroutinesDump bool `mapstructure:"goroutines_dump" yaml:"goroutines_dump"`
	// HttpTimeout default http client timeout in seconds
	HttpTimeout int `mapstructure:"http_timeout" yaml:"http_timeout"`
	// Steps load test steps
	Steps []Step `mapstructure:"steps" yaml:"steps"`
}

// Step loadtest step config
type Step struct {
	// Name loadtest step name
	Name string `mapstructure:"name" yaml:"name"`
	// ExecutionMode handles execution mode: sequence, parallel
	ExecutionMode string `mapstructure:"execution_mode" yaml:"execution_mode"`
	// Handles handle configs
	Handles []RunnerConfig `mapstructure:"handles" yaml:"handles"`
}

// StopCheck runtime stop criteria
type StopCheck struct {
	// Type check mode, ex.: prometheus
	Type string `mapstructure:"type" yaml:"type"`
	// Query prometheus bool query
	Query string `mapstructure:"query" yaml:"query"`
	// Interval check interval in seconds
	Interval int `mapstructure:"interval" yaml:"interval"`
}

// RunnerConfig runner config
type RunnerConfig struct {
	// WaitBeforeSec sleep before starting runner
	WaitBeforeSec int `mapstructure:"wait_before_sec" yaml:"wait_before_sec,omitempty"`
	// HandleName name of a handle, must be the same as test label in labels.go
	HandleName string `mapstructure:"name" yaml:"name"`
	// VUs number of concurrent virtual users
	VUs int `mapstructure:"vus" yaml:"vus"`
	// DurationSec time every virtual user keeps attacking
	DurationSec int `mapstructure:"duration_sec" yaml:"duration_sec"`
	// DoTimeoutSec attacker.Do() func timeout
	DoTimeoutSec int `mapstructure:"do_timeout_sec" yaml:"do_timeout_sec"`
	// HTTPTimeoutSec http client timeout, suite http_timeout when empty
	HTTPTimeoutSec int `mapstructure:"http_timeout" yaml:"http_timeout,omitempty"`
	// DumpTransport dumps request/response of this handle in stdout
	DumpTransport bool `mapstructure:"dumptransport" yaml:"dumptransport,omitempty"`
	// OutputFilename report filename
	OutputFilename string `mapstructure:"outputFilename,omitempty" yaml:"outputFilename,omitempty"`
	// Verbose allows to print generator debug info
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
	// Metadata load run metadata, values of keys ending with * are masked in reports
	Metadata map[string]string `mapstructure:"metadata,omitempty" yaml:"metadata,omitempty"`
	// HandleParams handle params metadata, ex. log_unexpected_status=true
	HandleParams map[string]string `mapstructure:"handle_params,omitempty" yaml:"handle_params,omitempty"`
	// StopIf describes stop test criteria
	StopIf []StopCheck `mapstructure:"stop_if" yaml:"stop_if,omitempty"`
}

// Validate checks all settings and returns a list of strings with problems.
func (c RunnerConfig) Validate() (list []string) {
	if c.VUs <= 0 {
		list = append(list, "please set a positive number of virtual users")
	}
	if c.DurationSec <= 0 {
		list = append(list, "please set the duration to a positive number of seconds")
	}
	if c.DoTimeoutSec <= 0 {
		list = append(list, "please set the Do() timeout to a positive maximum number of seconds")
	}
	for _, s := range c.StopIf {
		if s.Type != prometheusCheckType {
			list = append(list, fmt.Sprintf("unknown stop_if type: %s", s.Type))
		}
		if s.Interval <= 0 {
			list = append(list, "please set stop_if interval to a positive number of seconds")
		}
	}
	return
}

// WithDefaults fills zero values with defaults, suite values go first
func (c RunnerConfig) WithDefaults(s *SuiteConfig) RunnerConfig {
	if c.VUs == 0 {
		c.VUs = DefaultVUs
	}
	if c.DurationSec == 0 {
		c.DurationSec = DefaultDurationSec
	}
	if c.DoTimeoutSec == 0 {
		c.DoTimeoutSec = DefaultDoTimeoutSec
	}
	if s != nil {
		if c.HTTPTimeoutSec == 0 {
			c.HTTPTimeoutSec = s.HttpTimeout
		}
		c.DumpTransport = c.DumpTransport || s.DumpTransport
	}
	if c.HTTPTimeoutSec == 0 {
		c.HTTPTimeoutSec = DefaultHTTPTimeout
	}
	if c.Metadata == nil {
		c.Metadata = map[string]string{}
	}
	return c
}

// HandleParam returns handle param or default
func (c RunnerConfig) HandleParam(key, def string) string {
	if v, ok := c.HandleParams[key]; ok {
		return v
	}
	return def
}

// timeout is in seconds
func (c RunnerConfig) timeout() time.Duration {
	return time.Duration(c.DoTimeoutSec) * time.Second
}

func (c RunnerConfig) duration() time.Duration {
	return time.Duration(c.DurationSec) * time.Second
}

// HTTPTimeout http client timeout
func (c RunnerConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// override with any flag set
func applyFlagOverrides(c *RunnerConfig) {
	flag.Visit(func(each *flag.Flag) {
		switch each.Name {
		case fVUs:
			c.VUs = *oVUs
		case fDuration:
			c.DurationSec = *oDuration
		case fVerbose:
			c.Verbose = *oVerbose
		case fOutput:
			c.OutputFilename = *oOutput
		case fDoTimeout:
			c.DoTimeoutSec = *oDoTimeout
		}
	})
}

// LoadSuiteConfig loads yaml loadtest profile Config
func LoadSuiteConfig(cfgPath string) (*SuiteConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read suite config %s: %w", cfgPath, err)
	}
	var suiteCfg SuiteConfig
	if err := v.Unmarshal(&suiteCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal suite config: %w", err)
	}
	for i, step := range suiteCfg.Steps {
		for j, h := range step.Handles {
			suiteCfg.Steps[i].Handles[j] = h.WithDefaults(&suiteCfg)
		}
	}
	return &suiteCfg, nil
}
