package reporters

import (
	"fmt"

	"github.com/specrun/specrun/internal/rlog"
	"github.com/specrun/specrun/spectree"
)

// Multiplexer fans every lifecycle event out to its delegates in
// registration order, isolating each call behind a recover() so a
// reporter that panics never corrupts the run — the Go analogue of the
// design's "a delegate that throws is logged and the run continues".
type Multiplexer struct {
	delegates []Reporter
	log       rlog.Logger
}

func NewMultiplexer(log rlog.Logger, delegates ...Reporter) *Multiplexer {
	return &Multiplexer{delegates: delegates, log: log}
}

func (m *Multiplexer) guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("reporter panicked, continuing", "reporter", name, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

func (m *Multiplexer) OnBegin(root *spectree.Tree, tests []*spectree.Test) {
	for _, d := range m.delegates {
		d := d
		m.guard("OnBegin", func() { d.OnBegin(root, tests) })
	}
}

func (m *Multiplexer) OnTestBegin(test *spectree.Test) {
	for _, d := range m.delegates {
		d := d
		m.guard("OnTestBegin", func() { d.OnTestBegin(test) })
	}
}

func (m *Multiplexer) OnStdout(test *spectree.Test, chunk string) {
	for _, d := range m.delegates {
		d := d
		m.guard("OnStdout", func() { d.OnStdout(test, chunk) })
	}
}

func (m *Multiplexer) OnStderr(test *spectree.Test, chunk string) {
	for _, d := range m.delegates {
		d := d
		m.guard("OnStderr", func() { d.OnStderr(test, chunk) })
	}
}

func (m *Multiplexer) OnTestEnd(test *spectree.Test, result *spectree.TestResult) {
	for _, d := range m.delegates {
		d := d
		m.guard("OnTestEnd", func() { d.OnTestEnd(test, result) })
	}
}

func (m *Multiplexer) OnTimeout() {
	for _, d := range m.delegates {
		d := d
		m.guard("OnTimeout", func() { d.OnTimeout() })
	}
}

func (m *Multiplexer) OnEnd(summary Summary) {
	for _, d := range m.delegates {
		d := d
		m.guard("OnEnd", func() { d.OnEnd(summary) })
	}
}

var _ Reporter = (*Multiplexer)(nil)
