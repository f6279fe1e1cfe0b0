package fixtures

import (
	"github.com/specrun/specrun/registration"
	"github.com/specrun/specrun/spectree"
)

// Factory is a node in the declare/extend composition DAG. A bare Factory
// (from NewFactory) has an empty chain; Extend returns a derived Factory
// whose env sits outside everything already composed into the parent —
// its beforeAll/beforeEach run first, its afterAll/afterEach run last.
// RunWith terminates the chain by binding a base env as the innermost
// layer and registering the fold against the suite currently loading.
type Factory struct {
	loader *registration.Loader
	chain  []*Env // outermost-first
}

// NewFactory returns a Factory with no composed layers yet, bound to
// loader so RunWith can register bindings against whichever suite is on
// top of that loader's stack at call time.
func NewFactory(loader *registration.Loader) *Factory {
	return &Factory{loader: loader}
}

// Declare starts a derived factory carrying the same composed chain as f.
// It exists so a file can name and type an intermediate factory before
// calling Extend on it, mirroring the author-facing declare<Deps>() step;
// functionally it is a copy.
func (f *Factory) Declare() *Factory {
	chain := make([]*Env, len(f.chain))
	copy(chain, f.chain)
	return &Factory{loader: f.loader, chain: chain}
}

// Extend returns a derived factory with env composed outside f's existing
// chain.
func (f *Factory) Extend(env *Env) *Factory {
	chain := make([]*Env, 0, len(f.chain)+1)
	chain = append(chain, env)
	chain = append(chain, f.chain...)
	return &Factory{loader: f.loader, chain: chain}
}

// RunOptions configures one runWith(env, options) call.
type RunOptions struct {
	// Tag names the variant for reporters and for --grep matching against
	// a test's variant-qualified title.
	Tag string
	// RepeatEach expands every spec under this binding's suite into this
	// many repeated Tests; the larger of this value and the global
	// --repeat-each flag applies.
	RepeatEach int
	// Variant is merged into each resulting Test's Variant map. A non-empty
	// Tag is also recorded under the "name" key unless Variant already has
	// one.
	Variant map[string]string
}

// RunWith binds env as the base layer beneath f's composed chain and
// registers the resulting binding against the suite currently loading.
// Every Spec in that suite's subtree will expand once per binding
// registered this way, folded with any bindings inherited from ancestor
// suites.
func (f *Factory) RunWith(env *Env, opts RunOptions) error {
	chain := make([]spectree.EnvHooks, 0, len(f.chain)+1)
	for _, e := range f.chain {
		chain = append(chain, e)
	}
	chain = append(chain, env)

	variant := opts.Variant
	if variant == nil {
		variant = map[string]string{}
	}
	if opts.Tag != "" {
		if _, ok := variant["name"]; !ok {
			variant["name"] = opts.Tag
		}
	}

	return f.loader.AddBinding(spectree.Binding{
		Tag:        opts.Tag,
		Variant:    variant,
		RepeatEach: opts.RepeatEach,
		Chain:      chain,
	})
}
