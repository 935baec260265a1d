package loadgen

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

type result struct {
	begin, end time.Time
	elapsed    time.Duration
	doResult   DoResult
}

// Check is a named boolean assertion evaluated by one Do call.
type Check struct {
	Name   string
	Passed bool
}

// DoResult is the return value of a Do call on an Attack.
type DoResult struct {
	// Label identifying the request that was send which is only used for reporting the Metrics.
	RequestLabel string
	// The error that happened when sending the request or receiving the response.
	Error error
	// The HTTP status code, zero when no response was received.
	StatusCode int
	// Number of bytes transferred when sending the request.
	BytesIn int64
	// Number of bytes transferred when receiving the response.
	BytesOut int64
	// Checks evaluated against the response.
	Checks []Check
}

// Failed reports a transport error or an http error status
func (r DoResult) Failed() bool {
	return r.Error != nil || r.StatusCode >= 400
}

// RunReport is a composition of configuration, measurements and custom output from a loadtest Run.
type RunReport struct {
	ID            string       `json:"id"`
	StartedAt     time.Time    `json:"startedAt"`
	FinishedAt    time.Time    `json:"finishedAt"`
	Configuration RunnerConfig `json:"configuration"`
	// RunError is set when a Run could not be called or executed.
	RunError string              `json:"runError"`
	Metrics  map[string]*Metrics `json:"metrics"`
	// Checks holds pass/fail counts per check name.
	Checks map[string]*CheckStats `json:"checks"`
	// Failed can be set by your loadtest test program to indicate that the results are not acceptable.
	Failed bool `json:"failed"`
	// Output is used to publish any custom output in the report.
	Output map[string]interface{} `json:"output"`
}

func newRunReport(config RunnerConfig) *RunReport {
	return &RunReport{
		ID:            uuid.New().String(),
		Configuration: config,
		Metrics:       map[string]*Metrics{},
		Checks:        map[string]*CheckStats{},
		Output:        map[string]interface{}{},
	}
}

// NewErrorReport returns a report when a Run could not be called or executed.
func NewErrorReport(err error, config RunnerConfig) RunReport {
	r := newRunReport(config)
	r.StartedAt = time.Now()
	r.FinishedAt = r.StartedAt
	r.RunError = err.Error()
	r.Failed = true // clearly the Run was not acceptable
	return *r
}

// WriteReport writes the indented JSON report, secrets in metadata are masked.
func WriteReport(w io.Writer, r RunReport) error {
	if len(r.Configuration.Metadata) > 0 {
		masked := make(map[string]string, len(r.Configuration.Metadata))
		for k, v := range r.Configuration.Metadata {
			if strings.HasSuffix(k, "*") {
				v = "***---***---***"
			}
			masked[k] = v
		}
		r.Configuration.Metadata = masked
	}
	data, err := json.MarshalIndent(r, "", "\t")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// PrintReport writes the JSON report to a file or stdout, depending on the configuration.
func PrintReport(r RunReport) error {
	if len(r.Configuration.OutputFilename) == 0 {
		return WriteReport(os.Stdout, r)
	}
	file, err := os.Create(r.Configuration.OutputFilename)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer file.Close()
	if err := WriteReport(file, r); err != nil {
		return err
	}
	if r.Configuration.Verbose {
		return WriteReport(os.Stdout, r)
	}
	return nil
}
