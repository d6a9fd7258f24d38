// Package procmock fakes pkg/encodeproc's Process so orchestrator and
// encodeproc tests can exercise sink wiring without spawning a real
// encoder binary, mirroring the teacher pipeline's ffmock package.
package procmock

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"time"

	"github.com/bialy-nvr/compositor/pkg/encodeproc"
)

// Config controls one mockProcess's behavior.
type Config struct {
	ReturnErr bool
	Sleep     time.Duration
	OnStop    func()
}

// New returns a NewProcessFunc that ignores the *exec.Cmd it is given
// and constructs a mockProcess from cfg instead.
func New(cfg Config) encodeproc.NewProcessFunc {
	return func(*exec.Cmd) encodeproc.Process {
		return &mockProcess{cfg: cfg, stdin: &discardWriteCloser{}}
	}
}

type discardWriteCloser struct {
	bytes.Buffer
}

func (d *discardWriteCloser) Close() error { return nil }

type mockProcess struct {
	cfg   Config
	stdin io.WriteCloser
}

func (m *mockProcess) Stdin() io.WriteCloser { return m.stdin }

func (m *mockProcess) Start(ctx context.Context) error {
	if m.cfg.Sleep != 0 {
		select {
		case <-time.After(m.cfg.Sleep):
		case <-ctx.Done():
		}
	}
	if m.cfg.ReturnErr {
		return errors.New("mock encoder process failure")
	}
	<-ctx.Done()
	return nil
}

func (m *mockProcess) Stop() {
	if m.cfg.OnStop != nil {
		m.cfg.OnStop()
	}
}

func (m *mockProcess) SetTimeout(time.Duration)     {}
func (m *mockProcess) SetStdoutLogger(func(string)) {}
func (m *mockProcess) SetStderrLogger(func(string)) {}

// NewOK returns a mock encoder process that starts cleanly and runs
// until its context is cancelled.
var NewOK = New(Config{})

// NewErr returns a mock encoder process that fails to start.
var NewErr = New(Config{ReturnErr: true})
