// Package config defines the CLI flag surface (urfave/cli/v2, matching
// the teacher's flags package) and the resolved RunConfig every other
// package is constructed from.
package config

import "github.com/urfave/cli/v2"

const EnvVarPrefix = "SPECRUN"

func envVar(name string) []string { return []string{EnvVarPrefix + "_" + name} }

var (
	ForbidOnly = &cli.BoolFlag{
		Name:    "forbid-only",
		Usage:   "Abort with exit 1 if any focus mark (only) exists",
		EnvVars: envVar("FORBID_ONLY"),
	}
	Grep = &cli.StringFlag{
		Name:    "grep",
		Aliases: []string{"g"},
		Usage:   "Filter by spec full title; /pattern/flags is treated as a regex",
		EnvVars: envVar("GREP"),
	}
	GlobalTimeout = &cli.DurationFlag{
		Name:    "global-timeout",
		Usage:   "Whole-run deadline; 0 = none",
		EnvVars: envVar("GLOBAL_TIMEOUT"),
	}
	Workers = &cli.IntFlag{
		Name:    "workers",
		Aliases: []string{"j"},
		Usage:   "Worker pool size",
		Value:   0, // 0 = max(1, NumCPU/2)
		EnvVars: envVar("WORKERS"),
	}
	List = &cli.BoolFlag{
		Name:    "list",
		Usage:   "Generate the run plan and dump it; do not run",
		EnvVars: envVar("LIST"),
	}
	MaxFailures = &cli.IntFlag{
		Name:    "max-failures",
		Usage:   "Stop after N failures",
		EnvVars: envVar("MAX_FAILURES"),
	}
	MaxFailuresShort = &cli.BoolFlag{
		Name:    "x",
		Usage:   "Shorthand for --max-failures=1",
		EnvVars: envVar("X"),
	}
	Output = &cli.StringFlag{
		Name:    "output",
		Usage:   "Per-test artifact root",
		Value:   "test-results",
		EnvVars: envVar("OUTPUT"),
	}
	Quiet = &cli.BoolFlag{
		Name:    "quiet",
		Usage:   "Suppress worker stdio capture to stdout",
		EnvVars: envVar("QUIET"),
	}
	RepeatEach = &cli.IntFlag{
		Name:    "repeat-each",
		Usage:   "Multiplicity per spec",
		Value:   1,
		EnvVars: envVar("REPEAT_EACH"),
	}
	Reporter = &cli.StringFlag{
		Name:    "reporter",
		Usage:   "Comma-separated built-in reporter names or file paths",
		Value:   "list",
		EnvVars: envVar("REPORTER"),
	}
	Retries = &cli.IntFlag{
		Name:    "retries",
		Usage:   "Max retry count on failure",
		EnvVars: envVar("RETRIES"),
	}
	ShardFlag = &cli.StringFlag{
		Name:    "shard",
		Usage:   "1-based shard selector, e.g. '2/4'",
		EnvVars: envVar("SHARD"),
	}
	SnapshotDir = &cli.StringFlag{
		Name:    "snapshot-dir",
		Usage:   "Snapshot root relative to test dir",
		Value:   "__snapshots__",
		EnvVars: envVar("SNAPSHOT_DIR"),
	}
	TestMatch = &cli.StringFlag{
		Name:    "test-match",
		Usage:   "Glob for discovering test files",
		Value:   "**/*.spec.go",
		EnvVars: envVar("TEST_MATCH"),
	}
	TestIgnore = &cli.StringFlag{
		Name:    "test-ignore",
		Usage:   "Glob excluding discovered test files",
		EnvVars: envVar("TEST_IGNORE"),
	}
	FixtureMatch = &cli.StringFlag{
		Name:    "fixture-match",
		Usage:   "Glob for fixture files, loaded before test files",
		Value:   "**/*.fixtures.go",
		EnvVars: envVar("FIXTURE_MATCH"),
	}
	FixtureIgnore = &cli.StringFlag{
		Name:    "fixture-ignore",
		Usage:   "Glob excluding discovered fixture files",
		EnvVars: envVar("FIXTURE_IGNORE"),
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Usage:   "Per-test default timeout",
		Value:   30_000_000_000, // 30s, expressed in ns to avoid importing time here
		EnvVars: envVar("TIMEOUT"),
	}
	UpdateSnapshots = &cli.BoolFlag{
		Name:    "update-snapshots",
		Aliases: []string{"u"},
		Usage:   "Rewrite snapshots on mismatch",
		EnvVars: envVar("UPDATE_SNAPSHOTS"),
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config-file",
		Usage:   "Optional YAML settings file (currently: the [remote] reporter section)",
		EnvVars: envVar("CONFIG_FILE"),
	}
)

// Flags is the full flag set registered on the urfave/cli App.
var Flags = []cli.Flag{
	ForbidOnly, Grep, GlobalTimeout, Workers, List, MaxFailures, MaxFailuresShort,
	Output, Quiet, RepeatEach, Reporter, Retries, ShardFlag, SnapshotDir,
	TestMatch, TestIgnore, FixtureMatch, FixtureIgnore, Timeout, UpdateSnapshots,
	ConfigFile,
}
