package russh

import (
	"errors"
	"io"

	"golang.org/x/crypto/ssh"
)

// execChannel is the slice of *ssh.Session the command handle drives. Tests
// substitute an in-memory implementation.
type execChannel interface {
	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.Reader, error)
	StderrPipe() (io.Reader, error)
	Start(command string) error
	Wait() error
	Close() error
}

var _ execChannel = (*ssh.Session)(nil)

// Exec is a handle to one running remote command. It owns the channel the
// command runs on plus three independent stream views: stdin, stdout, and
// the channel's dedicated stderr stream.
//
// Each of the four resources is one-shot: the first use consumes it, and
// later uses are harmless no-ops (writes are discarded, reads return "",
// ExitStatus returns 0). A nil field marks the consumed state.
type Exec struct {
	session execChannel
	stdin   io.WriteCloser
	stdout  io.Reader
	stderr  io.Reader
}

// startExec wires the three stream views into a handle and starts command on
// the channel. The pipes must be requested before the command starts.
func startExec(session execChannel, command string) (*Exec, error) {
	const op = "exec_command"

	stdin, err := session.StdinPipe()
	if err != nil {
		_ = session.Close()
		return nil, translateSessionErr(op, err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		_ = session.Close()
		return nil, translateSessionErr(op, err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		_ = session.Close()
		return nil, translateSessionErr(op, err)
	}

	if err := session.Start(command); err != nil {
		_ = session.Close()
		return nil, translateSessionErr(op, err)
	}

	return &Exec{
		session: session,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
	}, nil
}

// WriteStdin writes data to the command's standard input, then closes the
// stream so the remote process observes end-of-input. The stream is consumed
// by the first call; later calls silently discard their data.
func (e *Exec) WriteStdin(data []byte) error {
	const op = "write_stdin"
	if e.stdin == nil {
		return nil
	}
	stdin := e.stdin
	e.stdin = nil

	if _, err := stdin.Write(data); err != nil {
		_ = stdin.Close()
		return translateSessionErr(op, err)
	}
	if err := stdin.Close(); err != nil {
		return translateSessionErr(op, err)
	}
	return nil
}

// ReadStdout reads the command's standard output to completion and returns
// it. The stream is consumed by the first call; later calls return "".
func (e *Exec) ReadStdout() (string, error) {
	return e.drain(&e.stdout, "read_stdout")
}

// ReadStderr reads the command's standard error to completion and returns
// it. The stream is consumed by the first call; later calls return "".
func (e *Exec) ReadStderr() (string, error) {
	return e.drain(&e.stderr, "read_stderr")
}

func (e *Exec) drain(stream *io.Reader, op string) (string, error) {
	if *stream == nil {
		return "", nil
	}
	src := *stream
	*stream = nil

	data, err := io.ReadAll(src)
	if err != nil {
		return string(data), translateSessionErr(op, err)
	}
	return string(data), nil
}

// ExitStatus waits for the remote side to close the channel and returns the
// command's numeric exit code. Unread stdout/stderr content is discarded
// first: the remote process can block on a full output window, and waiting
// for channel closure without draining would deadlock. The channel is
// consumed by the first call; later calls return 0.
func (e *Exec) ExitStatus() (int, error) {
	const op = "exit_status"
	if e.session == nil {
		return 0, nil
	}

	if e.stdout != nil {
		_, _ = io.Copy(io.Discard, e.stdout)
		e.stdout = nil
	}
	if e.stderr != nil {
		_, _ = io.Copy(io.Discard, e.stderr)
		e.stderr = nil
	}

	session := e.session
	e.session = nil
	err := session.Wait()
	_ = session.Close()

	if err == nil {
		return 0, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	return 0, translateSessionErr(op, err)
}

// Close discards the stream views and closes the channel if it has not been
// consumed yet. It is idempotent.
func (e *Exec) Close() error {
	e.stdin = nil
	e.stdout = nil
	e.stderr = nil

	if e.session == nil {
		return nil
	}
	session := e.session
	e.session = nil

	if err := session.Close(); err != nil && !errors.Is(err, io.EOF) {
		return translateSessionErr("close", err)
	}
	return nil
}
