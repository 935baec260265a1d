package loadgen

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// CheckDeclarer can be implemented by an Attack to name the checks its Do evaluates.
// Declared checks are counted as failed when Do does not return in time.
type CheckDeclarer interface {
	CheckNames() []string
}

// CheckStats aggregates the outcomes of one named check.
type CheckStats struct {
	Passes uint64 `json:"passes"`
	Fails  uint64 `json:"fails"`
}

func (s *CheckStats) add(passed bool) {
	if passed {
		s.Passes++
		return
	}
	s.Fails++
}

// Total number of evaluations.
func (s *CheckStats) Total() uint64 {
	return s.Passes + s.Fails
}

// Rate is the ratio of passes, zero when the check never ran.
func (s *CheckStats) Rate() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.Passes) / float64(s.Total())
}

// checkRegistry is fed by the results collector and read by reports
type checkRegistry struct {
	mu    sync.RWMutex
	stats map[string]*CheckStats
}

func newCheckRegistry() *checkRegistry {
	return &checkRegistry{stats: make(map[string]*CheckStats)}
}

func (c *checkRegistry) add(checks []Check) {
	if len(checks) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range checks {
		s, ok := c.stats[ch.Name]
		if !ok {
			s = &CheckStats{}
			c.stats[ch.Name] = s
		}
		s.add(ch.Passed)
	}
}

// snapshot copies current stats
func (c *checkRegistry) snapshot() map[string]*CheckStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res := make(map[string]*CheckStats, len(c.stats))
	for name, s := range c.stats {
		cp := *s
		res[name] = &cp
	}
	return res
}

func (c *checkRegistry) reset() {
	c.mu.Lock()
	c.stats = make(map[string]*CheckStats)
	c.mu.Unlock()
}

// failedChecks marks every declared check as failed
func failedChecks(names []string) []Check {
	checks := make([]Check, 0, len(names))
	for _, n := range names {
		checks = append(checks, Check{Name: n, Passed: false})
	}
	return checks
}

// CheckSummary renders one line per check sorted by name:
//
//	✓ is status 200
//	✗ is legitimate response (200 or 204)
//	 ↳  97% — ✓ 970 / ✗ 30
func CheckSummary(stats map[string]*CheckStats) string {
	names := make([]string, 0, len(stats))
	for n := range stats {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		s := stats[n]
		if s.Fails == 0 {
			fmt.Fprintf(&b, "✓ %s\n", n)
			continue
		}
		fmt.Fprintf(&b, "✗ %s\n ↳ %3.0f%% — ✓ %d / ✗ %d\n", n, s.Rate()*100, s.Passes, s.Fails)
	}
	return b.String()
}
