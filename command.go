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
	"fmt"
	"os"
	"os/exec"
)

const (
	suiteBinaryName = "./load_suite"
	suiteMain       = "./%s/cmd/load"
)

// BuildSuiteCommand builds suite binary for linux or darwin
func BuildSuiteCommand(testDir string, platform string) error {
	cmd := exec.Command("go", "build", "-o", suiteBinaryName, fmt.Sprintf(suiteMain, testDir))
	cmd.Env = append(os.Environ(), "GOOS="+platform)
	res, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to build suite: out: %s err: %w", res, err)
	}
	return nil
}

// RunSuiteCommand runs built suite binary, output is streamed
func RunSuiteCommand(cfgPath string, genCfgPath string) error {
	cmd := exec.Command(suiteBinaryName, "-config", cfgPath, "-gen_config", genCfgPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to run suite: %w", err)
	}
	return nil
}

// GenerateNewTestCommand adds a label with attack stub, factories and run config to the suite dir
func GenerateNewTestCommand(testDir string, label string) error {
	labels, err := CollectLabels(testDir)
	if err != nil {
		return err
	}
	for _, l := range labels {
		if l.Label == label {
			return fmt.Errorf("label %s already exists", label)
		}
	}
	labels = append(labels, LabelKV{
		Label:     label,
		LabelName: NewLabelName(label),
	})
	if err := CodegenAttackersFile(testDir, labels); err != nil {
		return err
	}
	if err := CodegenChecksFile(testDir); err != nil {
		return err
	}
	if err := CodegenLabelsFile(testDir, labels); err != nil {
		return err
	}
	if err := CodegenAttackerFile(testDir, label); err != nil {
		return err
	}
	return GenerateSingleRunConfig(testDir, label)
}
