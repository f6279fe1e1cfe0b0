package reporters

import (
	"fmt"
	"io"
	"os"

	"github.com/specrun/specrun/internal/config"
	"github.com/specrun/specrun/internal/rlog"
)

// Build resolves the --reporter CSV into concrete Reporters. A name not
// in the built-in set is treated as a file path to a JUnit-style output
// file (matching the CLI's documented "comma-separated built-in names or
// file paths" behavior): "junit:path/to/report.xml" style prefixes pick
// the format, defaulting to junit when only a path is given.
func Build(names []string, cfg *config.RunConfig, log rlog.Logger) ([]Reporter, error) {
	if len(names) == 0 {
		names = []string{"list"}
	}
	var out []Reporter
	for _, name := range names {
		r, err := buildOne(name, cfg, log)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func buildOne(name string, cfg *config.RunConfig, log rlog.Logger) (Reporter, error) {
	switch name {
	case "dot":
		return NewDot(os.Stdout), nil
	case "list":
		return NewList(os.Stdout), nil
	case "line":
		return NewLine(os.Stdout), nil
	case "json":
		return NewJSON(os.Stdout), nil
	case "junit":
		return NewJUnit(os.Stdout), nil
	case "remote":
		if cfg.Remote == nil {
			return nil, fmt.Errorf("reporter %q requires a [remote] section in the config file", name)
		}
		r := NewRemote(cfg.Remote.Endpoint, cfg.Remote.TokenURL, log)
		r.StatusPort = cfg.Remote.StatusPort
		return r, nil
	default:
		return buildFileReporter(name)
	}
}

// buildFileReporter treats name as a path; everything before the first
// ':' (if any) selects the format, defaulting to junit.
func buildFileReporter(name string) (Reporter, error) {
	format, path := "junit", name
	for i, c := range name {
		if c == ':' {
			format, path = name[:i], name[i+1:]
			break
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("reporter %q: %w", name, err)
	}
	return fileFormat(format, f)
}

func fileFormat(format string, f io.WriteCloser) (Reporter, error) {
	switch format {
	case "junit":
		return &closingReporter{Reporter: NewJUnit(f), closer: f}, nil
	case "json":
		return &closingReporter{Reporter: NewJSON(f), closer: f}, nil
	default:
		_ = f.Close()
		return nil, fmt.Errorf("unknown reporter format %q", format)
	}
}

// closingReporter closes its backing file once the run ends.
type closingReporter struct {
	Reporter
	closer io.Closer
}

func (c *closingReporter) OnEnd(summary Summary) {
	c.Reporter.OnEnd(summary)
	_ = c.closer.Close()
}
