package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/delaneyj/statetree/plugins/logging"
	"github.com/delaneyj/statetree/plugins/metrics"
	"github.com/delaneyj/statetree/tracked"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

const (
	formatKey   = "format"
	logLevelKey = "log-level"
	metricsKey  = "metrics"
)

func main() {
	cmd := &cli.Command{
		Name:  "statectl",
		Usage: "Replay scenarios against a tracked store",
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Apply a scenario and print the journal and final snapshot",
				ArgsUsage: "<scenario.yaml>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  formatKey,
						Usage: "Output format: table or json",
						Value: "table",
						Validator: func(s string) error {
							if s != "table" && s != "json" {
								return fmt.Errorf("unknown format %q", s)
							}
							return nil
						},
					},
					&cli.StringFlag{
						Name:  logLevelKey,
						Usage: "Log store events to stderr at this level (debug, info, warn, error)",
					},
					&cli.BoolFlag{
						Name:  metricsKey,
						Usage: "Print the collected store metrics",
					},
				},
				Action: run,
			},
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected one scenario file, got %d arguments", cmd.Args().Len())
	}
	name := cmd.Args().First()

	start := time.Now()
	defer func() {
		log.Printf("%s replayed in %v", name, time.Since(start))
	}()

	sc, err := loadScenario(name)
	if err != nil {
		return err
	}

	var plugins []tracked.Plugin
	if level := cmd.String(logLevelKey); level != "" {
		plugins = append(plugins, logging.Plugin(logging.NewLogger(level, "text", os.Stderr), sc.Name))
	}
	var reg *prometheus.Registry
	if cmd.Bool(metricsKey) {
		reg = prometheus.NewRegistry()
		c, err := metrics.New(reg)
		if err != nil {
			return err
		}
		plugins = append(plugins, c.Plugin(sc.Name))
	}

	res, err := replay(sc, plugins...)
	if err != nil {
		return err
	}

	if cmd.String(formatKey) == "json" {
		err = writeJSON(os.Stdout, res)
	} else {
		err = writeTable(os.Stdout, res)
	}
	if err != nil {
		return err
	}
	if reg != nil {
		return writeMetrics(os.Stdout, reg)
	}
	return nil
}
