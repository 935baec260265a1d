package main

import (
	"errors"
	"log"
	"os"

	loadgen "github.com/skudasov/bidload"
	"github.com/urfave/cli/v2"
)

func main() {
	var cfg *loadgen.GeneratorConfig

	app := &cli.App{
		Name:  "loadcli",
		Usage: "scaffold, build and run bid request load suites",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "gen_config",
				Value: "generator.yaml",
				Usage: "generator config filepath",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			cfg, err = loadgen.LoadDefaultGeneratorConfig(c.String("gen_config"))
			return err
		},
		Commands: []*cli.Command{
			{
				Name:    "build",
				Aliases: []string{"b"},
				Usage:   "build load test for specified platform",
				Action: func(c *cli.Context) error {
					platform := c.Args().Get(0)
					if platform != "linux" && platform != "darwin" {
						return errors.New("platform must be one of: linux|darwin")
					}
					return loadgen.BuildSuiteCommand(cfg.LoadScriptsDir, platform)
				},
			},
			{
				Name:    "new",
				Aliases: []string{"n"},
				Usage:   "generates code for load test",
				Action: func(c *cli.Context) error {
					label := c.Args().Get(0)
					if label == "" {
						return errors.New("label must not be empty, prefer snake_case labels")
					}
					if err := loadgen.CodegenMainFile(cfg.LoadScriptsDir); err != nil {
						return err
					}
					return loadgen.GenerateNewTestCommand(cfg.LoadScriptsDir, label)
				},
			},
			{
				Name:    "run",
				Aliases: []string{"r"},
				Usage:   "run load test suite",
				Action: func(c *cli.Context) error {
					suiteCfg := c.Args().Get(0)
					if suiteCfg == "" {
						return errors.New("path to load suite config must be specified")
					}
					return loadgen.RunSuiteCommand(suiteCfg, c.String("gen_config"))
				},
			},
			{
				Name:    "chart",
				Aliases: []string{"c"},
				Usage:   "plot requests per second and ok percent from csv result log",
				Action: func(c *cli.Context) error {
					inputCSV := c.Args().Get(0)
					outputPNG := c.Args().Get(1)
					if inputCSV == "" || outputPNG == "" {
						return errors.New("usage: provide result csv file, and png name, ex: result.csv report.png")
					}
					return loadgen.ReportChart(inputCSV, outputPNG)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
