package rpc

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// exitGrace is how long Close waits for the child to exit after stdin closes.
const exitGrace = 3 * time.Second

// process adapts a child's stdin and stdout to an io.ReadWriteCloser.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	once   sync.Once
	err    error
}

func (p *process) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p *process) Write(b []byte) (int, error) { return p.stdin.Write(b) }

// Close closes the child's stdin, then waits for it to exit, killing it after exitGrace.
func (p *process) Close() error {
	p.once.Do(func() {
		_ = p.stdin.Close()
		done := make(chan error, 1)
		go func() { done <- p.cmd.Wait() }()
		select {
		case p.err = <-done:
		case <-time.After(exitGrace):
			_ = p.cmd.Process.Kill()
			p.err = <-done
		}
	})
	return p.err
}

// Spawn starts command as a child process and returns a connection over its stdin and
// stdout. The child's stderr is passed through to this process's stderr.
//
// Precondition: command must be non-empty.
// Postcondition: the returned connection is in StateDisconnected; closing it stops the child.
func Spawn(command string, args []string, maxFrame int, logger *zap.Logger) (*Conn, error) {
	if command == "" {
		return nil, fmt.Errorf("spawn: server command is required")
	}
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("spawn %s: stdin: %w", command, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("spawn %s: stdout: %w", command, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", command, err)
	}
	logger.Info("battle server started", zap.String("command", command), zap.Int("pid", cmd.Process.Pid))
	return NewConn(&process{cmd: cmd, stdin: stdin, stdout: stdout}, maxFrame, logger), nil
}
