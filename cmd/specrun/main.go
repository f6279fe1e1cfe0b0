// Command specrun discovers test files, expands them into a plan of
// Tests, and runs that plan across a pool of worker child processes.
//
// The same compiled binary plays two roles: invoked normally it is the
// CLI entrypoint; invoked with the hidden --worker flag (always done by
// the dispatcher itself, never by a user) it instead becomes one worker
// process, reading protocol messages on stdin and writing them to
// stdout. Both roles share main() so there is exactly one binary to
// build and ship.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/specrun/specrun/dispatcher"
	"github.com/specrun/specrun/generator"
	"github.com/specrun/specrun/internal/config"
	"github.com/specrun/specrun/internal/discovery"
	"github.com/specrun/specrun/internal/rlog"
	"github.com/specrun/specrun/protocol"
	"github.com/specrun/specrun/registration"
	"github.com/specrun/specrun/reporters"
	"github.com/specrun/specrun/spectree"
	"github.com/specrun/specrun/workerproc"
)

// workerFlag arms worker mode. It is hidden from --help: a user never
// passes it by hand, only the dispatcher's NewWorkerCmd does, by
// re-executing os.Args[0].
var workerFlag = &cli.BoolFlag{Name: "worker", Hidden: true}

func main() {
	if isWorkerInvocation() {
		runWorker()
		return
	}

	app := &cli.App{
		Name:      "specrun",
		Usage:     "run test files in parallel across worker processes",
		ArgsUsage: "[testDir] [pathFilter...]",
		Flags:     append(append([]cli.Flag{}, config.Flags...), workerFlag),
		Action:    run,
	}

	if err := app.Run(os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func isWorkerInvocation() bool {
	for _, a := range os.Args[1:] {
		if a == "--worker" {
			return true
		}
	}
	return false
}

// runWorker is the entire lifetime of a worker process: read init, run
// groups until told to stop or the parent hangs up, then exit. A
// non-nil error here means the parent will observe this process exit
// uncleanly and treat it as a crash — that is the correct outcome, so
// there is nothing more to report.
func runWorker() {
	if err := workerproc.Run(os.Stdin, os.Stdout); err != nil {
		os.Exit(1)
	}
}

// run is the CLI entrypoint's Action: resolve configuration, discover
// and load test files, generate the plan, then either dump it
// (--list), or hand it to the Dispatcher and map the result to an exit
// code per the runner's 0/1/130 scheme.
func run(cliCtx *cli.Context) error {
	log := rlog.New(slog.LevelInfo, os.Stderr)

	cfg, err := config.NewRunConfig(cliCtx, log)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	disc, err := discovery.Discover(cfg.TestDir, discovery.Options{
		TestMatch:     cfg.TestMatch,
		TestIgnore:    cfg.TestIgnore,
		FixtureMatch:  cfg.FixtureMatch,
		FixtureIgnore: cfg.FixtureIgnore,
		NameFilters:   cfg.PathFilters,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("discovery: %v", err), 1)
	}

	loader := registration.NewLoader()
	for _, f := range disc.FixtureFiles {
		if err := registration.Load(loader, f); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}
	for _, f := range disc.TestFiles {
		if err := registration.Load(loader, f); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}
	tree := loader.Tree()

	if cfg.ForbidOnly {
		if err := loader.ForbidOnly(); err != nil {
			log.Error(err.Error())
			return cli.Exit(string(reporters.ResultForbidOnly), 1)
		}
	}

	tests, err := generator.Generate(tree, generator.Options{
		DefaultTimeout: cfg.Timeout,
		RepeatEach:     cfg.RepeatEach,
		Grep:           cfg.Grep,
		ShardIndex:     cfg.Shard.Index,
		ShardTotal:     cfg.Shard.Total,
		PathFilters:    cfg.PathFilters,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if cfg.List {
		dumpPlan(os.Stdout, tree, tests)
		return nil
	}

	if len(tests) == 0 {
		return cli.Exit(string(reporters.ResultNoTests), 1)
	}

	reporterList, err := reporters.Build(cfg.Reporters, cfg, log)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	mux := reporters.NewMultiplexer(log, reporterList...)

	exePath, err := os.Executable()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	interrupted := &atomic.Bool{}
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if interrupted.Swap(true) {
				// A second interrupt while we're still draining: the user
				// wants out now, not once in-flight groups settle.
				os.Exit(130)
			}
			log.Warn("interrupt received, draining in-flight work")
			cancel()
		}
	}()

	d := dispatcher.New(tree, tests, mux, dispatcher.Options{
		Workers:       cfg.Workers,
		MaxFailures:   cfg.MaxFailures,
		Retries:       cfg.Retries,
		GlobalTimeout: cfg.GlobalTimeout,
		Interrupted:   interrupted,
		NewWorkerCmd: func(index int) *exec.Cmd {
			cmd := exec.Command(exePath, "--worker")
			cmd.Env = os.Environ()
			return cmd
		},
		Config: protocol.ConfigSnapshot{
			Timeout:      cfg.Timeout,
			OutputDir:    cfg.OutputDir,
			SnapshotDir:  cfg.SnapshotDir,
			UpdateSnaps:  cfg.UpdateSnaps,
			Quiet:        cfg.Quiet,
			FixtureFiles: disc.FixtureFiles,
		},
	}, log)

	summary, err := d.Run(runCtx)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	switch summary.Result {
	case reporters.ResultSigint:
		return cli.Exit("interrupted", 130)
	case reporters.ResultPassed:
		return nil
	default:
		return cli.Exit(fmt.Sprintf("run result: %s", summary.Result), 1)
	}
}

// planEntry is one line of --list's output: one generated Test's id,
// full title, file, variant, repeat index and skip flag. It is its own
// record shape, not the protocol.Group a worker receives.
type planEntry struct {
	ID          int              `json:"id"`
	FullTitle   string           `json:"fullTitle"`
	File        string           `json:"file"`
	Variant     spectree.Variant `json:"variant,omitempty"`
	RepeatIndex int              `json:"repeatIndex"`
	Skipped     bool             `json:"skipped"`
}

// dumpPlan writes --list's output: one JSON object per Test, in
// generation order, without running anything.
func dumpPlan(w io.Writer, tree *spectree.Tree, tests []*spectree.Test) {
	enc := json.NewEncoder(w)
	for _, t := range tests {
		_ = enc.Encode(planEntry{
			ID:          t.ID,
			FullTitle:   tree.FullTitle(t.Spec),
			File:        tree.Spec(t.Spec).File,
			Variant:     t.Variant,
			RepeatIndex: t.RepeatIndex,
			Skipped:     t.Skipped,
		})
	}
}
