package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pavanmanishd/bump/tracker"
)

// runCommand executes a workload file.
type runCommand struct {
	verbose  *bool
	config   *string
	interval *time.Duration
	listen   *string
}

func (cmd *runCommand) run(_ *kingpin.ParseContext) error {
	logger := newLogger(*cmd.verbose)
	cfg, err := LoadConfig(*cmd.config)
	if err != nil {
		exitWithErr(err)
	}

	t := tracker.New(logger)
	if *cmd.listen != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(t)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*cmd.listen, mux); err != nil {
				level.Error(logger).Log("msg", "metrics server stopped", "err", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	if *cmd.interval > 0 {
		go func() {
			defer close(done)
			_ = t.Run(ctx, *cmd.interval)
		}()
	} else {
		close(done)
	}

	results, err := Execute(cfg, t, logger)
	cancel()
	<-done
	if err != nil {
		exitWithErr(err)
	}
	printResults(results)
	return nil
}

func printResults(results []ArenaResult) {
	bold := color.New(color.Bold)
	for _, r := range results {
		bold.Printf("Arena %s:\n", r.Name)
		fmt.Printf(
			"\tallocations: %d, requested: %v, failures: %d\n",
			r.Allocations,
			humanize.IBytes(r.Requested),
			r.Failures,
		)
		fmt.Printf(
			"\tblocks: %d, capacity: %v, in use: %v (%.1f%%)\n",
			r.Metrics.NumBlocks,
			humanize.IBytes(uint64(r.Metrics.Capacity)),
			humanize.IBytes(uint64(r.Metrics.SizeInUse)),
			r.Metrics.Utilization*100,
		)
		fmt.Printf(
			"\treserved: %v, freed: %v",
			humanize.IBytes(r.Metrics.Reserved),
			humanize.IBytes(r.Metrics.Freed),
		)
		if r.FreeBytes > 0 {
			fmt.Printf(", bucket free lists: %v", humanize.IBytes(uint64(r.FreeBytes)))
		}
		fmt.Println()
	}
}

func addRunCommand(app *kingpin.Application, verbose *bool) {
	cmd := &runCommand{verbose: verbose}
	run := app.Command("run", "Run a workload file.").Action(cmd.run)
	cmd.config = run.Arg("config", "Workload YAML file.").Required().ExistingFile()
	cmd.interval = run.Flag("interval", "Report interval; 0 reports once at the end.").Default("0s").Duration()
	cmd.listen = run.Flag("listen", "Serve Prometheus metrics on this address while running.").String()
}
