package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/specrun/specrun/internal/rlog"
)

// Shard is a 1-based (current, total) selector.
type Shard struct {
	Index int
	Total int
}

// RunConfig is the fully resolved configuration for one invocation,
// built from CLI flags plus an optional YAML settings file. It is the
// value threaded into the generator, dispatcher, and reporters.
type RunConfig struct {
	TestDir       string
	PathFilters   []string
	ForbidOnly    bool
	Grep          string
	GlobalTimeout time.Duration
	Workers       int
	List          bool
	MaxFailures   int
	OutputDir     string
	Quiet         bool
	RepeatEach    int
	Reporters     []string
	Retries       int
	Shard         Shard // Total == 0 means "no sharding"
	SnapshotDir   string
	TestMatch     string
	TestIgnore    string
	FixtureMatch  string
	FixtureIgnore string
	Timeout       time.Duration
	UpdateSnaps   bool

	// Remote is populated from the YAML settings file, if present; it is
	// nil when the run has no remote reporter configured.
	Remote *RemoteSettings

	Log rlog.Logger
}

// RemoteSettings configures the `remote` reporter — a summary/artifact
// upload endpoint, resolved once per run per Open Question 1 (the token
// is fetched and cached in onBegin, never refetched per artifact).
type RemoteSettings struct {
	Endpoint   string `yaml:"endpoint"`
	TokenURL   string `yaml:"tokenURL"`
	RunID      string `yaml:"runId"`
	StatusPort int    `yaml:"statusPort"`
}

// settingsFile is the optional YAML document a run may supply via
// --config-file or SPECRUN_CONFIG_FILE.
type settingsFile struct {
	Remote *RemoteSettings `yaml:"remote"`
}

// NewRunConfig resolves a RunConfig from ctx, the one construction point
// every CLI flag's effect is centralized in.
func NewRunConfig(ctx *cli.Context, log rlog.Logger) (*RunConfig, error) {
	testDir := "."
	pathFilters := ctx.Args().Slice()
	if len(pathFilters) > 0 && !strings.HasPrefix(pathFilters[0], "-") {
		if info, err := os.Stat(pathFilters[0]); err == nil && info.IsDir() {
			testDir = pathFilters[0]
			pathFilters = pathFilters[1:]
		}
	}

	maxFailures := ctx.Int(MaxFailures.Name)
	if ctx.Bool(MaxFailuresShort.Name) {
		maxFailures = 1
	}

	shard, err := parseShard(ctx.String(ShardFlag.Name))
	if err != nil {
		return nil, err
	}

	workers := ctx.Int(Workers.Name)
	if workers <= 0 {
		workers = max(1, runtime.NumCPU()/2)
	}

	cfg := &RunConfig{
		TestDir:       testDir,
		PathFilters:   pathFilters,
		ForbidOnly:    ctx.Bool(ForbidOnly.Name),
		Grep:          ctx.String(Grep.Name),
		GlobalTimeout: ctx.Duration(GlobalTimeout.Name),
		Workers:       workers,
		List:          ctx.Bool(List.Name),
		MaxFailures:   maxFailures,
		OutputDir:     ctx.String(Output.Name),
		Quiet:         ctx.Bool(Quiet.Name),
		RepeatEach:    ctx.Int(RepeatEach.Name),
		Reporters:     splitCSV(ctx.String(Reporter.Name)),
		Retries:       ctx.Int(Retries.Name),
		Shard:         shard,
		SnapshotDir:   ctx.String(SnapshotDir.Name),
		TestMatch:     ctx.String(TestMatch.Name),
		TestIgnore:    ctx.String(TestIgnore.Name),
		FixtureMatch:  ctx.String(FixtureMatch.Name),
		FixtureIgnore: ctx.String(FixtureIgnore.Name),
		Timeout:       ctx.Duration(Timeout.Name),
		UpdateSnaps:   ctx.Bool(UpdateSnapshots.Name),
		Log:           log,
	}

	if path := ctx.String(ConfigFile.Name); path != "" {
		remote, err := loadSettingsFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Remote = remote
	}

	return cfg, nil
}

func loadSettingsFile(path string) (*RemoteSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var doc settingsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return doc.Remote, nil
}

func parseShard(s string) (Shard, error) {
	if s == "" {
		return Shard{}, nil
	}
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return Shard{}, fmt.Errorf("invalid --shard %q, expected 'current/total'", s)
	}
	index, err := strconv.Atoi(parts[0])
	if err != nil {
		return Shard{}, fmt.Errorf("invalid --shard %q: %w", s, err)
	}
	total, err := strconv.Atoi(parts[1])
	if err != nil {
		return Shard{}, fmt.Errorf("invalid --shard %q: %w", s, err)
	}
	if index < 1 || total < 1 || index > total {
		return Shard{}, fmt.Errorf("invalid --shard %q: current must be in [1, total]", s)
	}
	return Shard{Index: index, Total: total}, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
