package loadgen

import (
	"strings"
	"testing"
)

func TestCheckStatsRate(t *testing.T) {
	s := &CheckStats{}
	if got, want := s.Rate(), 0.0; got != want {
		t.Errorf("got %v want %v", got, want)
	}
	s.add(true)
	s.add(true)
	s.add(true)
	s.add(false)
	if got, want := s.Total(), uint64(4); got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if got, want := s.Rate(), 0.75; got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestCheckRegistrySnapshot(t *testing.T) {
	reg := newCheckRegistry()
	reg.add([]Check{{Name: "a", Passed: true}, {Name: "b", Passed: false}})
	reg.add([]Check{{Name: "a", Passed: false}})
	snap := reg.snapshot()
	if got, want := *snap["a"], (CheckStats{Passes: 1, Fails: 1}); got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if got, want := *snap["b"], (CheckStats{Fails: 1}); got != want {
		t.Errorf("got %v want %v", got, want)
	}
	reg.add([]Check{{Name: "a", Passed: true}})
	if got, want := snap["a"].Passes, uint64(1); got != want {
		t.Errorf("snapshot changed: got %v want %v", got, want)
	}
	reg.reset()
	if got, want := len(reg.snapshot()), 0; got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestFailedChecks(t *testing.T) {
	got := failedChecks([]string{"x", "y"})
	if len(got) != 2 || got[0] != (Check{Name: "x"}) || got[1] != (Check{Name: "y"}) {
		t.Errorf("got %v", got)
	}
}

func TestCheckSummary(t *testing.T) {
	out := CheckSummary(map[string]*CheckStats{
		"is legitimate response (200 or 204)": {Passes: 970, Fails: 30},
		"is fine":                             {Passes: 5},
	})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	want := []string{
		"✓ is fine",
		"✗ is legitimate response (200 or 204)",
		" ↳  97% — ✓ 970 / ✗ 30",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %q want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q want %q", i, lines[i], want[i])
		}
	}
}
