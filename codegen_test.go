package loadgen

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNames(t *testing.T) {
	if got, want := NewLabelName("bid_request"), "BidRequestLabel"; got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if got, want := NewAttackerStructName("bid_request"), "BidRequestAttack"; got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestGenerateNewTest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "load")
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		t.Fatal(err)
	}
	if err := CodegenMainFile(dir); err != nil {
		t.Fatal(err)
	}
	if err := GenerateNewTestCommand(dir, "bid_request"); err != nil {
		t.Fatal(err)
	}
	if err := GenerateNewTestCommand(dir, "win_notice"); err != nil {
		t.Fatal(err)
	}
	if err := GenerateNewTestCommand(dir, "bid_request"); err == nil {
		t.Fatal("expected duplicate label error")
	}

	labels, err := CollectLabels(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(labels), 2; got != want {
		t.Fatalf("got %v want %v", got, want)
	}
	if got, want := labels[0], (LabelKV{Label: "bid_request", LabelName: "BidRequestLabel"}); got != want {
		t.Errorf("got %v want %v", got, want)
	}

	attackers := readFile(t, filepath.Join(dir, "attackers.go"))
	for _, want := range []string{
		`case "bid_request":`,
		`case "win_notice":`,
		"loadgen.WithCSVMonitor(loadgen.WithMonitor(new(BidRequestAttack)))",
	} {
		if !strings.Contains(attackers, want) {
			t.Errorf("attackers.go has no %q:\n%s", want, attackers)
		}
	}
	stub := readFile(t, filepath.Join(dir, "bid_request_attack.go"))
	if !strings.Contains(stub, "type BidRequestAttack struct") {
		t.Errorf("unexpected attack stub:\n%s", stub)
	}
	for _, f := range []string{"checks.go", "labels.go", "cmd/load/main.go", "run_configs/win_notice.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("expected %s: %v", f, err)
		}
	}
}

func TestGeneratedRunConfigLoads(t *testing.T) {
	dir := t.TempDir()
	if err := GenerateSingleRunConfig(dir, "bid_request"); err != nil {
		t.Fatal(err)
	}
	c, err := LoadSuiteConfig(filepath.Join(dir, runConfigsDir, "bid_request.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	h := c.Steps[0].Handles[0]
	if got, want := h.VUs, DefaultVUs; got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if got, want := h.DurationSec, DefaultDurationSec; got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if got, want := h.HandleName, "bid_request"; got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestCollectLabelsMissingFile(t *testing.T) {
	labels, err := CollectLabels(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(labels) != 0 {
		t.Fatalf("expected no labels, got %v", labels)
	}
}

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := ioutil.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
