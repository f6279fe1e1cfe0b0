package dispatcher

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/specrun/specrun/internal/rlog"
	"github.com/specrun/specrun/protocol"
)

// childWorker is one persistent OS worker process and the framed
// connection to it. It runs any number of Groups sequentially over its
// lifetime; it is replaced, never repaired, once its connection breaks.
type childWorker struct {
	index int
	cmd   *exec.Cmd // nil in tests that wire enc/dec directly over an in-memory pipe
	enc   *protocol.Encoder
	dec   *protocol.Decoder
	log   rlog.Logger
	err   *workerStderr
}

// spawnWorker starts a new child process via newCmd, completes the
// init/ready handshake, and returns the connected childWorker.
func spawnWorker(index int, newCmd func(index int) *exec.Cmd, cfg protocol.ConfigSnapshot, log rlog.Logger) (*childWorker, error) {
	cmd := newCmd(index)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker %d: stdin pipe: %w", index, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker %d: stdout pipe: %w", index, err)
	}
	stderr := &workerStderr{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("worker %d: start: %w", index, err)
	}

	w := &childWorker{
		index: index,
		cmd:   cmd,
		enc:   protocol.NewEncoder(stdin),
		dec:   protocol.NewDecoder(stdout),
		log:   log.New("worker", index),
		err:   stderr,
	}
	if err := w.handshake(index, cfg); err != nil {
		w.kill()
		return nil, err
	}
	return w, nil
}

func (w *childWorker) handshake(index int, cfg protocol.ConfigSnapshot) error {
	if err := w.enc.SendMethod(protocol.MethodInit, protocol.InitParams{WorkerIndex: index, Config: cfg}); err != nil {
		return fmt.Errorf("worker %d: sending init: %w", index, err)
	}
	msg, err := w.dec.Recv()
	if err != nil {
		return fmt.Errorf("worker %d: waiting for ready: %w", index, err)
	}
	if msg.Method != protocol.MethodReady {
		return fmt.Errorf("worker %d: expected ready, got %s", index, msg.Method)
	}
	return nil
}

// stop asks the worker to shut down cooperatively; it does not wait. A
// nil receiver (a pool slot whose respawn already failed) is a no-op.
func (w *childWorker) stop() {
	if w == nil {
		return
	}
	_ = w.enc.SendMethod(protocol.MethodStop, protocol.StopParams{})
}

// kill forcibly terminates the backing process, if any.
func (w *childWorker) kill() {
	if w == nil || w.cmd == nil || w.cmd.Process == nil {
		return
	}
	_ = w.cmd.Process.Kill()
	_ = w.cmd.Wait()
}

// stderrTail returns whatever the process wrote to stderr, for attaching
// to a crash report.
func (w *childWorker) stderrTail() string {
	if w == nil || w.err == nil {
		return ""
	}
	return w.err.String()
}

// workerStderr buffers a worker's stderr so a crash report can include
// its tail without interleaving raw bytes into the run's own output.
type workerStderr struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *workerStderr) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *workerStderr) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

var _ io.Writer = (*workerStderr)(nil)
