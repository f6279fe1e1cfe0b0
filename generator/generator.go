// Package generator expands a spectree.Tree of Suites and Specs into a
// flat, ordered list of Tests and applies the run's filter pipeline:
// focus, then skip propagation, then grep, then shard, then the bare
// positional path filters a CLI invocation may carry.
package generator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/specrun/specrun/spectree"
)

// Options controls expansion and filtering.
type Options struct {
	DefaultTimeout time.Duration
	RepeatEach     int // global --repeat-each; folded with any binding-level RepeatEach via max()
	Grep           string
	ShardIndex     int // 1-based; sharding applies only when ShardTotal > 1
	ShardTotal     int
	PathFilters    []string // bare positional args, OR-matched against each spec's file
}

// Generate expands tree against opts and returns the ordered Tests that
// survive the filter pipeline. The returned slice shares storage with
// tree.Tests; tree itself is mutated (NewTest calls during expansion).
func Generate(tree *spectree.Tree, opts Options) ([]*spectree.Test, error) {
	grep, err := compileGrep(opts.Grep)
	if err != nil {
		return nil, err
	}

	focusActive := tree.HasAnyFocusMark()
	var focused map[spectree.SpecIndex]bool
	if focusActive {
		focused = tree.FocusedSpecs()
	}

	var tests []*spectree.Test
	for specIdx := range tree.Specs {
		si := spectree.SpecIndex(specIdx)
		if focusActive && !focused[si] {
			continue
		}
		for _, t := range expandSpec(tree, si, opts) {
			tests = append(tests, t)
		}
	}

	if grep != nil {
		tests = filterTests(tests, func(t *spectree.Test) bool {
			title := tree.FullTitle(t.Spec)
			if t.VariantTag != "" && t.VariantTag != "default" {
				title = title + " [" + t.VariantTag + "]"
			}
			return grep.MatchString(title)
		})
	}

	if opts.ShardTotal > 1 {
		tests = filterIndexed(tests, func(i int) bool {
			return i%opts.ShardTotal == opts.ShardIndex-1
		})
	}

	if len(opts.PathFilters) > 0 {
		tests = filterTests(tests, func(t *spectree.Test) bool {
			file := tree.Spec(t.Spec).File
			for _, f := range opts.PathFilters {
				if strings.Contains(file, f) {
					return true
				}
			}
			return false
		})
	}

	return tests, nil
}

// expandSpec produces one Test per (env-variant combo × repeat index) for
// a single Spec, folding bindings inherited from its ancestor suites.
func expandSpec(tree *spectree.Tree, si spectree.SpecIndex, opts Options) []*spectree.Test {
	spec := tree.Spec(si)
	combos := combosForSuiteChain(tree, tree.AncestorChain(spec.Suite))

	var out []*spectree.Test
	for _, c := range combos {
		repeat := opts.RepeatEach
		if c.repeatEach > repeat {
			repeat = c.repeatEach
		}
		if repeat < 1 {
			repeat = 1
		}
		timeout := opts.DefaultTimeout
		for r := 0; r < repeat; r++ {
			idx := tree.NewTest(si, c.variant, c.variant.Tag(), r, timeout, c.chain)
			out = append(out, tree.Tests[idx])
		}
	}
	return out
}

// ResolveGroup re-derives the Tests a dispatched Group names out of a
// freshly loaded single-file Tree. A worker process calls this after
// loading the file a Group names: since an env's hook closures cross a
// process boundary as compiled Go code, not data, the worker cannot
// deserialize the Tests the dispatcher planned — it reloads the same
// file (replaying the same describe/it/runWith calls) and, for each
// spec ordinal the Group carries, rebuilds the one Test that spec's
// (variantTag, repeatIndex) combo would have produced.
//
// specOrdinals need not cover every spec the file declares: a Group is
// frequently a strict subset of a file's full test set (--grep,
// --shard, focus/only, a single-test retry, a crash-recovery tail), and
// specOrdinals is exactly how the dispatcher tells the worker which
// subset to rebuild, in the same order the Group's TestIDs carry them.
func ResolveGroup(tree *spectree.Tree, specOrdinals []int, variantTag string, repeatIndex int, timeout time.Duration) ([]*spectree.Test, error) {
	bySpecOrdinal := make(map[int]spectree.SpecIndex, len(tree.Specs))
	for i := range tree.Specs {
		si := spectree.SpecIndex(i)
		bySpecOrdinal[tree.Spec(si).FileOrdinal] = si
	}

	out := make([]*spectree.Test, 0, len(specOrdinals))
	for _, ord := range specOrdinals {
		si, ok := bySpecOrdinal[ord]
		if !ok {
			return nil, fmt.Errorf("resolve group: no spec at file ordinal %d", ord)
		}
		spec := tree.Spec(si)
		combos := combosForSuiteChain(tree, tree.AncestorChain(spec.Suite))
		var matched *combo
		for i := range combos {
			if combos[i].variant.Tag() == variantTag {
				matched = &combos[i]
				break
			}
		}
		if matched == nil {
			return nil, fmt.Errorf("resolve group: spec %q has no combo for variant %q", spec.Title, variantTag)
		}
		idx := tree.NewTest(si, matched.variant, matched.variant.Tag(), repeatIndex, timeout, matched.chain)
		out = append(out, tree.Tests[idx])
	}
	return out, nil
}

type combo struct {
	variant    spectree.Variant
	chain      []spectree.EnvHooks
	repeatEach int
}

// combosForSuiteChain folds each suite's Bindings (root to leaf) into the
// cross product of env-variant combinations a descendant Spec must
// expand into. A suite with no Bindings of its own is transparent: it
// does not multiply the combo set.
func combosForSuiteChain(tree *spectree.Tree, chain []spectree.SuiteIndex) []combo {
	combos := []combo{{variant: spectree.Variant{}}}
	for _, si := range chain {
		suite := tree.Suite(si)
		if len(suite.Bindings) == 0 {
			continue
		}
		next := make([]combo, 0, len(combos)*len(suite.Bindings))
		for _, c := range combos {
			for _, b := range suite.Bindings {
				merged := mergeVariant(c.variant, b.Variant)
				envChain := make([]spectree.EnvHooks, 0, len(c.chain)+len(b.Chain))
				envChain = append(envChain, c.chain...)
				envChain = append(envChain, b.Chain...)
				repeatEach := c.repeatEach
				if b.RepeatEach > repeatEach {
					repeatEach = b.RepeatEach
				}
				next = append(next, combo{variant: merged, chain: envChain, repeatEach: repeatEach})
			}
		}
		combos = next
	}
	return combos
}

func mergeVariant(base, add spectree.Variant) spectree.Variant {
	out := make(spectree.Variant, len(base)+len(add))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range add {
		out[k] = v
	}
	return out
}

func filterTests(in []*spectree.Test, keep func(*spectree.Test) bool) []*spectree.Test {
	out := make([]*spectree.Test, 0, len(in))
	for _, t := range in {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func filterIndexed(in []*spectree.Test, keep func(int) bool) []*spectree.Test {
	out := make([]*spectree.Test, 0, len(in))
	for i, t := range in {
		if keep(i) {
			out = append(out, t)
		}
	}
	return out
}

// compileGrep accepts either a plain substring (case-sensitive Contains)
// or a /pattern/flags form, where flags is any subset of "i" for
// case-insensitive matching.
func compileGrep(g string) (*regexp.Regexp, error) {
	if g == "" {
		return nil, nil
	}
	if len(g) >= 2 && g[0] == '/' {
		if end := strings.LastIndexByte(g, '/'); end > 0 {
			pattern := g[1:end]
			flags := g[end+1:]
			prefix := ""
			if strings.Contains(flags, "i") {
				prefix = "(?i)"
			}
			re, err := regexp.Compile(prefix + pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid --grep pattern %q: %w", g, err)
			}
			return re, nil
		}
	}
	return regexp.MustCompile(regexp.QuoteMeta(g)), nil
}
