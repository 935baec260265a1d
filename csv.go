package loadgen

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"
)

const (
	resultOK  = "ok"
	resultErr = "err"
)

// ResultRecord one attack call in the csv result log
type ResultRecord struct {
	Label      string
	Begin      time.Time
	Elapsed    time.Duration
	StatusCode int
	OK         bool
}

func (r ResultRecord) row() []string {
	status := resultErr
	if r.OK {
		status = resultOK
	}
	return []string{
		r.Label,
		r.Begin.Format(time.RFC3339Nano),
		strconv.FormatInt(r.Elapsed.Microseconds(), 10),
		strconv.Itoa(r.StatusCode),
		status,
	}
}

func parseResultRow(row []string) (ResultRecord, error) {
	if len(row) != 5 {
		return ResultRecord{}, fmt.Errorf("expected 5 columns, got %d", len(row))
	}
	begin, err := time.Parse(time.RFC3339Nano, row[1])
	if err != nil {
		return ResultRecord{}, fmt.Errorf("bad begin column: %w", err)
	}
	us, err := strconv.ParseInt(row[2], 10, 64)
	if err != nil {
		return ResultRecord{}, fmt.Errorf("bad elapsed column: %w", err)
	}
	code, err := strconv.Atoi(row[3])
	if err != nil {
		return ResultRecord{}, fmt.Errorf("bad status code column: %w", err)
	}
	return ResultRecord{
		Label:      row[0],
		Begin:      begin,
		Elapsed:    time.Duration(us) * time.Microsecond,
		StatusCode: code,
		OK:         row[4] == resultOK,
	}, nil
}

// recordOf an attack call is ok when every check passed and no error happened
func recordOf(begin time.Time, elapsed time.Duration, r DoResult) ResultRecord {
	ok := !r.Failed()
	for _, ch := range r.Checks {
		ok = ok && ch.Passed
	}
	return ResultRecord{
		Label:      r.RequestLabel,
		Begin:      begin,
		Elapsed:    elapsed,
		StatusCode: r.StatusCode,
		OK:         ok,
	}
}

// ResultLog is a csv log of attack calls shared by all attackers
type ResultLog struct {
	mu sync.Mutex
	c  io.Closer
	w  *csv.Writer
}

// NewResultLog writes records to w
func NewResultLog(w io.Writer) *ResultLog {
	l := &ResultLog{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		l.c = c
	}
	return l
}

// OpenResultLog appends records to the file, creating it if needed
func OpenResultLog(fname string) (*ResultLog, error) {
	f, err := os.OpenFile(fname, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open result log %s: %w", fname, err)
	}
	return NewResultLog(f), nil
}

func (l *ResultLog) Write(rec ResultRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(rec.row())
}

func (l *ResultLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	return l.w.Error()
}

func (l *ResultLog) Close() error {
	if err := l.Flush(); err != nil {
		return err
	}
	if l.c != nil {
		return l.c.Close()
	}
	return nil
}

// ReadResultLog reads all records written by a ResultLog
func ReadResultLog(r io.Reader) ([]ResultRecord, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read result log: %w", err)
	}
	recs := make([]ResultRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := parseResultRow(row)
		if err != nil {
			return nil, fmt.Errorf("result log line %d: %w", i+1, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
