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
	"context"
	"flag"
	"os"
)

type attackerFactory func(string) Attack

type attackerChecksFactory func(string) RuntimeCheckFunc

type BeforeSuite func(config *GeneratorConfig) error
type AfterSuite func(config *GeneratorConfig) error

// Run default run mode for suite, with degradation checks
func Run(factory attackerFactory, checksFactory attackerChecksFactory, beforeSuite BeforeSuite, afterSuite AfterSuite) {
	cfgPath := flag.String("config", "", "loadtest attack profile config filepath")
	genCfgPath := flag.String("gen_config", "generator.yaml", "generator config filepath")
	flag.Parse()
	if *cfgPath == "" {
		log.Fatal("provide path to suite config, -config example.yaml")
	}
	if *genCfgPath == "" {
		log.Fatal("provide path to generator config, -gen_config example.yaml")
	}
	genConfig, err := LoadDefaultGeneratorConfig(*genCfgPath)
	if err != nil {
		log.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if genConfig.Host.CollectMetrics {
		log.Infof("starting host metrics monitor")
		osMetrics := NewHostOSMetrics(genConfig.Host.Name, genConfig.Host.NetworkIface)
		osMetrics.Watch(ctx, 1)
	}
	lm, err := SuiteFromSteps(factory, checksFactory, *cfgPath, genConfig)
	if err != nil {
		log.Fatal(err)
	}
	if *oSample > 0 {
		probeSuite(ctx, lm, *oSample)
		return
	}
	if beforeSuite != nil {
		if err := beforeSuite(genConfig); err != nil {
			log.Fatalf("before suite func failed: %s", err)
		}
	}
	if err := lm.RunSuite(ctx); err != nil {
		log.Fatal(err)
	}
	if afterSuite != nil {
		if err := afterSuite(genConfig); err != nil {
			log.Fatalf("after suite func failed: %s", err)
		}
	}
	if err := lm.CheckDegradation(); err != nil {
		log.Errorf("degradation check failed: %s", err)
	}
	if err := lm.StoreHandleReports(); err != nil {
		log.Errorf("failed to store reports: %s", err)
	}
	_ = log.Sync()
	if lm.Failed || lm.Degradation {
		os.Exit(1)
	}
}

// probeSuite does sample calls with every handle instead of running the suite
func probeSuite(ctx context.Context, lm *LoadManager, count int) {
	for _, s := range lm.Steps {
		for _, r := range s.Runners {
			if _, err := r.Probe(ctx, count); err != nil {
				log.Errorf("probe of %s failed: %s", r.Name(), err)
			}
		}
	}
}

// SuiteFromSteps create runners for every step
func SuiteFromSteps(factory attackerFactory, checksFactory attackerChecksFactory, cfgPath string, genCfg *GeneratorConfig) (*LoadManager, error) {
	cfg, err := LoadSuiteConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	lm, err := NewLoadManager(cfg, genCfg)
	if err != nil {
		return nil, err
	}
	for _, step := range lm.SuiteConfig.Steps {
		runners := make([]*Runner, 0)
		for _, handle := range step.Handles {
			applyFlagOverrides(&handle)
			if genCfg != nil && genCfg.Generator.Verbose {
				handle.Verbose = true
			}
			var check RuntimeCheckFunc
			if checksFactory != nil {
				check = checksFactory(handle.HandleName)
			}
			r, err := NewRunner(handle.HandleName, lm, factory(handle.HandleName), check, handle)
			if err != nil {
				return nil, err
			}
			runners = append(runners, r)
		}
		lm.Steps = append(lm.Steps, RunStep{
			Name:          step.Name,
			ExecutionMode: step.ExecutionMode,
			Runners:       runners,
		})
	}
	return lm, nil
}
