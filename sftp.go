package russh

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/sftp"
)

// DefaultDirMode is the permission set applied by Mkdir when the caller
// passes a zero mode.
const DefaultDirMode os.FileMode = 0o777

// sftpSubsystem is the slice of *sftp.Client the SFTP front end uses.
// Tests substitute an in-memory implementation.
type sftpSubsystem interface {
	Stat(path string) (os.FileInfo, error)
	Mkdir(path string) error
	Chmod(path string, mode os.FileMode) error
	Remove(path string) error
	RemoveDirectory(path string) error
	Open(path string) (sftpFile, error)
	OpenFile(path string, flags int) (sftpFile, error)
	Create(path string) (sftpFile, error)
	Close() error
}

// sftpFile abstracts one open remote file descriptor.
type sftpFile interface {
	io.Reader
	io.Writer
	io.Closer
}

// sftpClientWrapper adapts the real *sftp.Client to sftpSubsystem.
type sftpClientWrapper struct {
	client *sftp.Client
}

var _ sftpSubsystem = (*sftpClientWrapper)(nil)

func (w *sftpClientWrapper) Stat(path string) (os.FileInfo, error) { return w.client.Stat(path) }
func (w *sftpClientWrapper) Mkdir(path string) error               { return w.client.Mkdir(path) }
func (w *sftpClientWrapper) Remove(path string) error              { return w.client.Remove(path) }
func (w *sftpClientWrapper) Close() error                          { return w.client.Close() }

func (w *sftpClientWrapper) Chmod(path string, mode os.FileMode) error {
	return w.client.Chmod(path, mode)
}

func (w *sftpClientWrapper) RemoveDirectory(path string) error {
	return w.client.RemoveDirectory(path)
}

func (w *sftpClientWrapper) Open(path string) (sftpFile, error) {
	return w.client.Open(path)
}

func (w *sftpClientWrapper) OpenFile(path string, flags int) (sftpFile, error) {
	return w.client.OpenFile(path, flags)
}

func (w *sftpClientWrapper) Create(path string) (sftpFile, error) {
	return w.client.Create(path)
}

// SFTP wraps the SFTP subsystem of one session. It emulates a working
// directory on the client side: the remote filesystem protocol has no
// server-tracked directory state, so a stored base path is prefixed onto
// relative paths before they go over the wire.
type SFTP struct {
	client sftpSubsystem
	cwd    string
}

// Chdir sets the emulated working directory. An empty dir always succeeds
// and clears it. A non-empty dir is probed on the remote side first; on
// probe failure the stored directory is left unchanged. Only absolute paths
// are meaningfully supported.
func (s *SFTP) Chdir(dir string) error {
	const op = "chdir"
	if s.client == nil {
		return errNotOpen(op, "sftp subsystem")
	}
	if dir == "" {
		s.cwd = ""
		return nil
	}

	info, err := s.client.Stat(dir)
	if err != nil {
		return &Error{Kind: KindNotFound, Op: op, Err: err}
	}
	if !info.IsDir() {
		return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf("%s: not a directory", dir)}
	}

	s.cwd = dir
	return nil
}

// Getcwd returns the emulated working directory, or "" when unset. It
// performs no I/O.
func (s *SFTP) Getcwd() string {
	return s.cwd
}

// Mkdir creates a remote directory and applies perm to it. A zero perm means
// DefaultDirMode.
func (s *SFTP) Mkdir(dir string, perm os.FileMode) error {
	const op = "mkdir"
	if s.client == nil {
		return errNotOpen(op, "sftp subsystem")
	}
	path := s.resolve(dir)
	if err := s.client.Mkdir(path); err != nil {
		return translateSftpErr(op, err)
	}
	if perm == 0 {
		perm = DefaultDirMode
	}
	if err := s.client.Chmod(path, perm); err != nil {
		return translateSftpErr(op, err)
	}
	return nil
}

// Unlink removes a remote file.
func (s *SFTP) Unlink(path string) error {
	const op = "unlink"
	if s.client == nil {
		return errNotOpen(op, "sftp subsystem")
	}
	if err := s.client.Remove(s.resolve(path)); err != nil {
		return translateSftpErr(op, err)
	}
	return nil
}

// Rmdir removes a remote directory.
func (s *SFTP) Rmdir(dir string) error {
	const op = "rmdir"
	if s.client == nil {
		return errNotOpen(op, "sftp subsystem")
	}
	if err := s.client.RemoveDirectory(s.resolve(dir)); err != nil {
		return translateSftpErr(op, err)
	}
	return nil
}

// Open opens a remote file. The mode string follows the POSIX fopen
// convention:
//
//	"r"  read            "r+" read and write
//	"w"  write, truncate "w+" read and write, truncate
//	"a"  append, create  "a+" append and read/write, create
//
// An empty mode means "r"; anything else fails with an invalid-argument
// error. Files created this way get the subsystem's default permission bits.
func (s *SFTP) Open(name, mode string) (*File, error) {
	const op = "open"
	if s.client == nil {
		return nil, errNotOpen(op, "sftp subsystem")
	}
	flags, err := parseFileMode(mode)
	if err != nil {
		return nil, err
	}
	f, err := s.client.OpenFile(s.resolve(name), flags)
	if err != nil {
		return nil, translateSftpErr(op, err)
	}
	return &File{fd: f}, nil
}

// Get reads the remote file fully and overwrites the local path
// unconditionally. The transfer is whole-file and not resumable.
func (s *SFTP) Get(remotePath, localPath string) error {
	const op = "get"
	if s.client == nil {
		return errNotOpen(op, "sftp subsystem")
	}

	src, err := s.client.Open(s.resolve(remotePath))
	if err != nil {
		return translateSftpErr(op, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return translateLocalErr(op, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return translateSftpErr(op, err)
	}
	if err := dst.Close(); err != nil {
		return translateLocalErr(op, err)
	}
	return nil
}

// Put reads the local file fully and creates or overwrites the remote file
// with its content. The transfer is whole-file and not resumable.
func (s *SFTP) Put(localPath, remotePath string) error {
	const op = "put"
	if s.client == nil {
		return errNotOpen(op, "sftp subsystem")
	}

	src, err := os.Open(localPath)
	if err != nil {
		return translateLocalErr(op, err)
	}
	defer src.Close()

	dst, err := s.client.Create(s.resolve(remotePath))
	if err != nil {
		return translateSftpErr(op, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return translateSftpErr(op, err)
	}
	if err := dst.Close(); err != nil {
		return translateSftpErr(op, err)
	}
	return nil
}

// IsClosed reports whether the subsystem handle has been released.
func (s *SFTP) IsClosed() bool {
	return s.client == nil
}

// Close tears down the subsystem handle. It is idempotent.
func (s *SFTP) Close() error {
	if s.client == nil {
		return nil
	}
	client := s.client
	s.client = nil
	s.cwd = ""

	if err := client.Close(); err != nil {
		return translateSftpErr("close", err)
	}
	return nil
}

func (s *SFTP) resolve(path string) string {
	return joinRemote(s.cwd, path)
}

// joinRemote composes the emulated working directory with path. Composition
// is plain concatenation: no "." or ".." resolution, no normalization.
// Absolute paths bypass the working directory.
func joinRemote(cwd, path string) string {
	if cwd == "" || strings.HasPrefix(path, "/") {
		return path
	}
	return cwd + "/" + path
}

// parseFileMode translates a POSIX fopen-style mode string into the open
// flags sent to the remote side.
func parseFileMode(mode string) (int, error) {
	switch mode {
	case "", "r":
		return os.O_RDONLY, nil
	case "r+":
		return os.O_RDWR, nil
	case "w":
		return os.O_WRONLY | os.O_TRUNC, nil
	case "w+":
		return os.O_RDWR | os.O_TRUNC, nil
	case "a":
		return os.O_WRONLY | os.O_APPEND | os.O_CREATE, nil
	case "a+":
		return os.O_RDWR | os.O_APPEND | os.O_CREATE, nil
	}
	return 0, &Error{Kind: KindInvalidArgument, Op: "open", Err: fmt.Errorf("unsupported file mode %q", mode)}
}
