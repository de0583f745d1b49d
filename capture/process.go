package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultStopGrace bounds how long Stop waits for the decoder's output to
// drain after the process is gone.
const DefaultStopGrace = 2 * time.Second

// ErrDecoderExited is returned by a ProcessDevice source when the decoder
// exits without being stopped. The device can be started again.
var ErrDecoderExited = errors.New("decoder exited")

// ProcessConfig configures an external decoder process.
type ProcessConfig struct {
	// Path is the decoder binary, e.g. "zbarcam".
	Path string
	// Args are passed verbatim, e.g. ["--raw", "--nodisplay", "/dev/video0"].
	Args []string
	// TrimPrefix is stripped from each output line when present.
	TrimPrefix string
	// Stderr receives the decoder's stderr. Nil discards it.
	Stderr io.Writer
	// StopGrace overrides DefaultStopGrace.
	StopGrace time.Duration
}

// ProcessDevice runs an external decoder that prints one token per line.
// Start launches the process in its own process group; Stop kills the group.
// Every run delivers into the same source, so a source survives pause and
// resume, but tokens read by a run that has since been stopped are dropped.
type ProcessDevice struct {
	config ProcessConfig
	events chan processEvent
	gen    atomic.Uint64

	mu  sync.Mutex
	run *processRun
}

// processEvent is a decoded line, or the exit of a run that was not stopped.
type processEvent struct {
	gen   uint64
	token string
	err   error
}

type processRun struct {
	cmd    *exec.Cmd
	gen    uint64
	exited atomic.Bool
	stop   chan struct{}
	done   chan struct{}
}

// NewProcessDevice creates a stopped device.
func NewProcessDevice(cfg ProcessConfig) (*ProcessDevice, error) {
	if cfg.Path == "" {
		return nil, errors.New("decoder command is required")
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = DefaultStopGrace
	}
	return &ProcessDevice{
		config: cfg,
		events: make(chan processEvent, 64),
	}, nil
}

// ParseCommand splits a shell-style command line on whitespace.
// Quoting is not supported; wrap complex pipelines in a script.
func ParseCommand(line string) (ProcessConfig, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ProcessConfig{}, errors.New("empty decoder command")
	}
	return ProcessConfig{Path: fields[0], Args: fields[1:]}, nil
}

// Source returns a Source reading this device's tokens. It never reports
// io.EOF; an unrequested decoder exit surfaces as ErrDecoderExited.
func (d *ProcessDevice) Source() Source {
	return &processSource{dev: d}
}

// Start launches the decoder process.
func (d *ProcessDevice) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.run != nil {
		return errors.New("decoder already running")
	}

	pr, pw := io.Pipe()
	cmd := exec.CommandContext(ctx, d.config.Path, d.config.Args...)
	cmd.Env = os.Environ()
	cmd.Stdout = pw
	if d.config.Stderr != nil {
		cmd.Stderr = d.config.Stderr
	}
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	// A grandchild holding stdout open must not keep Wait blocked.
	cmd.WaitDelay = d.config.StopGrace

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		return fmt.Errorf("failed to start decoder: %w", err)
	}

	r := &processRun{
		cmd:  cmd,
		gen:  d.gen.Add(1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	d.run = r
	go d.supervise(r, pr, pw)
	return nil
}

// Stop kills the decoder's process group and waits for its run to finish.
// Tokens it had already read but not delivered are discarded.
func (d *ProcessDevice) Stop() error {
	d.mu.Lock()
	r := d.run
	d.run = nil
	if r != nil {
		d.gen.Add(1)
		close(r.stop)
	}
	d.mu.Unlock()

	if r == nil {
		return nil
	}

	var killErr error
	if !r.exited.Load() {
		if err := killProcessGroup(r.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
			killErr = fmt.Errorf("failed to kill decoder: %w", err)
		}
	}
	<-r.done
	return killErr
}

// Running reports whether a decoder process is active.
func (d *ProcessDevice) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.run != nil
}

// supervise pumps the run's output, reaps the process, and reports an exit
// nobody asked for.
func (d *ProcessDevice) supervise(r *processRun, pr *io.PipeReader, pw *io.PipeWriter) {
	defer close(r.done)

	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		// Closing the reader fails any pending write from exec's copy
		// goroutine once the pump gives up.
		defer func() { _ = pr.Close() }()
		d.pump(r, pr)
	}()

	waitErr := r.cmd.Wait()
	r.exited.Store(true)
	_ = pw.Close()
	<-pumped

	err := ErrDecoderExited
	if waitErr != nil && !errors.Is(waitErr, exec.ErrWaitDelay) {
		err = fmt.Errorf("%w: %w", ErrDecoderExited, waitErr)
	}
	select {
	case <-r.stop:
		return
	case d.events <- processEvent{gen: r.gen, err: err}:
	}

	d.mu.Lock()
	if d.run == r {
		d.run = nil
	}
	d.mu.Unlock()
}

func (d *ProcessDevice) pump(r *processRun, stdout io.Reader) {
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 4096), MaxTokenSize)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if d.config.TrimPrefix != "" {
			line = strings.TrimPrefix(line, d.config.TrimPrefix)
		}
		if line == "" {
			continue
		}
		select {
		case d.events <- processEvent{gen: r.gen, token: line}:
		case <-r.stop:
			return
		}
	}
}

type processSource struct {
	dev *ProcessDevice
}

// Next implements Source.
func (s *processSource) Next(ctx context.Context) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev := <-s.dev.events:
			if ev.gen != s.dev.gen.Load() {
				continue
			}
			if ev.err != nil {
				return "", ev.err
			}
			return ev.token, nil
		}
	}
}

var (
	_ Device = (*ProcessDevice)(nil)
	_ Source = (*processSource)(nil)
)
