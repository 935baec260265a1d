package loadgen

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/wcharczuk/go-chart"
)

var errNotEnoughData = errors.New("at least two seconds of results are required to plot a chart")

// SecondStats results aggregated by the second they began
type SecondStats struct {
	At       time.Time
	Requests int
	OK       int
}

// OKPercent percent of ok calls during the second
func (s SecondStats) OKPercent() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.OK) / float64(s.Requests) * 100
}

// PerSecond groups records by begin second, sorted by time
func PerSecond(recs []ResultRecord) []SecondStats {
	bySecond := make(map[int64]*SecondStats)
	for _, r := range recs {
		sec := r.Begin.Truncate(time.Second)
		s, ok := bySecond[sec.Unix()]
		if !ok {
			s = &SecondStats{At: sec}
			bySecond[sec.Unix()] = s
		}
		s.Requests++
		if r.OK {
			s.OK++
		}
	}
	res := make([]SecondStats, 0, len(bySecond))
	for _, s := range bySecond {
		res = append(res, *s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].At.Before(res[j].At) })
	return res
}

// RenderChart plots requests per second and ok percent as png
func RenderChart(stats []SecondStats, w io.Writer) error {
	if len(stats) < 2 {
		return errNotEnoughData
	}
	xs := make([]time.Time, 0, len(stats))
	reqs := make([]float64, 0, len(stats))
	oks := make([]float64, 0, len(stats))
	for _, s := range stats {
		xs = append(xs, s.At)
		reqs = append(reqs, float64(s.Requests))
		oks = append(oks, s.OKPercent())
	}
	graph := chart.Chart{
		XAxis: chart.XAxis{
			Name:           "time",
			ValueFormatter: chart.TimeValueFormatterWithFormat("15:04:05"),
		},
		YAxis:          chart.YAxis{Name: "requests/s"},
		YAxisSecondary: chart.YAxis{Name: "ok %"},
		Series: []chart.Series{
			chart.TimeSeries{Name: "requests/s", XValues: xs, YValues: reqs},
			chart.TimeSeries{Name: "ok %", XValues: xs, YValues: oks, YAxis: chart.YAxisSecondary},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}

// ReportChart reads csv result log and writes png chart
func ReportChart(inputCSV, outputPNG string) error {
	in, err := os.Open(inputCSV)
	if err != nil {
		return fmt.Errorf("failed to open result log: %w", err)
	}
	defer in.Close()
	recs, err := ReadResultLog(in)
	if err != nil {
		return err
	}
	out, err := os.Create(outputPNG)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer out.Close()
	log.Infof("plotting %d results from %s to %s", len(recs), inputCSV, outputPNG)
	return RenderChart(PerSecond(recs), out)
}
