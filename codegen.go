package loadgen

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"

	. "github.com/dave/jennifer/jen"
	"github.com/iancoleman/strcase"
	"gopkg.in/yaml.v2"
)

const (
	labelsPath    = "%s/labels.go"
	runConfigsDir = "run_configs"
)

var (
	attackerLabelRe        = regexp.MustCompile(`(?m)^\s*(\w+)\s*=\s*"([^"]+)"`)
	myLibPackageImportPath = "github.com/skudasov/bidload"
)

type LabelKV struct {
	Label     string
	LabelName string
}

func NewLabelName(label string) string {
	return strcase.ToCamel(label + "Label")
}

func NewAttackerStructName(label string) string {
	return strcase.ToCamel(label + "Attack")
}

// CollectLabels read all labels in labels.go, missing file means no labels
func CollectLabels(dir string) ([]LabelKV, error) {
	data, err := ioutil.ReadFile(fmt.Sprintf(labelsPath, dir))
	if os.IsNotExist(err) {
		return []LabelKV{}, nil
	}
	if err != nil {
		return nil, err
	}
	labels := make([]LabelKV, 0)
	for _, m := range attackerLabelRe.FindAllStringSubmatch(string(data), -1) {
		labels = append(labels, LabelKV{Label: m[2], LabelName: m[1]})
	}
	return labels, nil
}

func packageName(dir string) string {
	return filepath.Base(dir)
}

// CodegenLabelsFile generates labels.go with one constant per label, sorted
func CodegenLabelsFile(dir string, labels []LabelKV) error {
	sort.Slice(labels, func(i, j int) bool { return labels[i].Label < labels[j].Label })
	defs := make([]Code, 0, len(labels))
	for _, l := range labels {
		defs = append(defs, Id(l.LabelName).Op("=").Lit(l.Label))
	}
	f := NewFile(packageName(dir))
	f.Const().Defs(defs...)
	return f.Save(fmt.Sprintf(labelsPath, dir))
}

// CodegenAttackersFile generates attacker factory code for every label, struct will be camelcased with Attack suffix:
//
//	func AttackerFromName(name string) loadgen.Attack {
//		switch name {
//		case "bid_request":
//			return loadgen.WithCSVMonitor(loadgen.WithMonitor(new(BidRequestAttack)))
//		default:
//			log.Fatalf("unknown attacker type: %s", name)
//			return nil
//		}
//	}
func CodegenAttackersFile(dir string, labels []LabelKV) error {
	cases := make([]Code, 0, len(labels)+1)
	for _, l := range labels {
		structName := NewAttackerStructName(l.Label)
		cases = append(cases, Case(Lit(l.Label)).Block(
			Return(Qual(myLibPackageImportPath, "WithCSVMonitor").Call(
				Qual(myLibPackageImportPath, "WithMonitor").Call(Id("new").Call(Id(structName))),
			)),
		))
	}
	cases = append(cases, Default().Block(
		Qual("log", "Fatalf").Call(Lit("unknown attacker type: %s"), Id("name")),
		Return(Nil()),
	))
	f := NewFile(packageName(dir))
	f.ImportName(myLibPackageImportPath, "loadgen")
	f.Func().Id("AttackerFromName").Params(
		Id("name").String(),
	).Qual(myLibPackageImportPath, "Attack").Block(
		Switch(Id("name")).Block(cases...),
	)
	return f.Save(path.Join(dir, "attackers.go"))
}

// CodegenChecksFile generates runtime check factory, stop_if from config is used when it returns nil
func CodegenChecksFile(dir string) error {
	f := NewFile(packageName(dir))
	f.ImportName(myLibPackageImportPath, "loadgen")
	f.Func().Id("CheckFromName").Params(
		Id("name").String(),
	).Qual(myLibPackageImportPath, "RuntimeCheckFunc").Block(
		Switch(Id("name")).Block(
			Default().Block(Return(Nil())),
		),
	)
	return f.Save(path.Join(dir, "checks.go"))
}

// CodegenAttackerFile generates attack stub for a label, existing file is kept
func CodegenAttackerFile(dir string, label string) error {
	fname := path.Join(dir, strcase.ToSnake(label)+"_attack.go")
	if _, err := os.Stat(fname); err == nil {
		log.Infof("attacker file %s exists, skipping", fname)
		return nil
	}
	structName := NewAttackerStructName(label)
	f := NewFile(packageName(dir))
	f.ImportName(myLibPackageImportPath, "loadgen")
	f.Type().Id(structName).Struct(
		Qual(myLibPackageImportPath, "WithRunner"),
	)
	f.Func().Params(Id("a").Op("*").Id(structName)).Id("Setup").Params(
		Id("hc").Qual(myLibPackageImportPath, "RunnerConfig"),
	).Error().Block(
		Return(Nil()),
	)
	f.Func().Params(Id("a").Op("*").Id(structName)).Id("Do").Params(
		Id("ctx").Qual("context", "Context"),
	).Qual(myLibPackageImportPath, "DoResult").Block(
		Return(Qual(myLibPackageImportPath, "DoResult").Values(Dict{
			Id("RequestLabel"): Id(NewLabelName(label)),
		})),
	)
	f.Func().Params(Id("a").Op("*").Id(structName)).Id("Clone").Params(
		Id("r").Op("*").Qual(myLibPackageImportPath, "Runner"),
	).Qual(myLibPackageImportPath, "Attack").Block(
		Return(Op("&").Id(structName).Values(Dict{
			Id("WithRunner"): Qual(myLibPackageImportPath, "WithRunner").Values(Dict{Id("R"): Id("r")}),
		})),
	)
	return f.Save(fname)
}

// CodegenMainFile generates cmd/load/main.go of the suite
func CodegenMainFile(dir string) error {
	mainDir := path.Join(dir, "cmd", "load")
	if err := os.MkdirAll(mainDir, os.ModePerm); err != nil {
		return err
	}
	suiteImportPath := path.Join(myLibPackageImportPath, dir)
	f := NewFile("main")
	f.ImportName(myLibPackageImportPath, "loadgen")
	f.ImportName(suiteImportPath, packageName(dir))
	f.Func().Id("main").Params().Block(
		Qual(myLibPackageImportPath, "Run").Call(
			Qual(suiteImportPath, "AttackerFromName"),
			Qual(suiteImportPath, "CheckFromName"),
			Nil(),
			Nil(),
		),
	)
	return f.Save(path.Join(mainDir, "main.go"))
}

// GenerateSingleRunConfig writes run_configs/<label>.yaml with one default handle
func GenerateSingleRunConfig(dir string, label string) error {
	cfgDir := path.Join(dir, runConfigsDir)
	if err := os.MkdirAll(cfgDir, os.ModePerm); err != nil {
		return err
	}
	cfg := SuiteConfig{
		HttpTimeout: DefaultHTTPTimeout,
		Steps: []Step{
			{
				Name:          label,
				ExecutionMode: SequenceMode,
				Handles: []RunnerConfig{
					{
						HandleName:   label,
						VUs:          DefaultVUs,
						DurationSec:  DefaultDurationSec,
						DoTimeoutSec: DefaultDoTimeoutSec,
					},
				},
			},
		},
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path.Join(cfgDir, label+".yaml"), data, 0644)
}
