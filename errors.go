package russh

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"

	"github.com/pkg/sftp"
)

// ErrorKind classifies every failure surfaced by this package. Errors from
// the transport layer, the SFTP subsystem, and local file I/O are all mapped
// into this closed set before they reach the caller; raw collaborator errors
// never escape untranslated.
type ErrorKind int

const (
	// KindIO is the catch-all for generic I/O failures.
	KindIO ErrorKind = iota
	// KindConnect covers address resolution, TCP dial, refusal, and the
	// connect-phase timeout.
	KindConnect
	// KindSessionProtocol covers SSH-level failures: handshake, channel
	// open, and session requests.
	KindSessionProtocol
	// KindSftpProtocol covers SFTP-subsystem failures with no more
	// specific classification.
	KindSftpProtocol
	// KindNotFound indicates a missing remote or local path.
	KindNotFound
	// KindAlreadyExists indicates a path that already exists.
	KindAlreadyExists
	// KindPermissionDenied covers filesystem permission errors and
	// rejected authentication.
	KindPermissionDenied
	// KindInvalidArgument indicates unusable caller input, such as an
	// unrecognized file mode or an unparseable private key.
	KindInvalidArgument
	// KindNotConnected indicates an operation that requires a live
	// session on a client that has none.
	KindNotConnected
	// KindNotOpen indicates an operation on a closed SFTP subsystem or
	// file handle.
	KindNotOpen
)

// String returns a human-readable name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindConnect:
		return "connect error"
	case KindSessionProtocol:
		return "session protocol error"
	case KindSftpProtocol:
		return "sftp protocol error"
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindPermissionDenied:
		return "permission denied"
	case KindInvalidArgument:
		return "invalid argument"
	case KindNotConnected:
		return "not connected"
	case KindNotOpen:
		return "not open"
	default:
		return "i/o error"
	}
}

// Error is the tagged error type produced at every collaborator boundary.
// Kind carries the classification, Op names the operation that failed, and
// Err is the underlying cause (reachable through errors.Unwrap).
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from an error produced by this package.
// Errors without a classification report KindIO.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIO
}

func errNotConnected(op string) *Error {
	return &Error{Kind: KindNotConnected, Op: op, Err: errors.New("no live session; call Connect first")}
}

func errNotOpen(op, what string) *Error {
	return &Error{Kind: KindNotOpen, Op: op, Err: errors.New(what + " is closed")}
}

// classify maps well-known sentinel errors, SFTP status codes, and a small
// set of recognizable error messages to a kind. The second return value
// reports whether a specific classification was found.
func classify(err error) (ErrorKind, bool) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound, true
	case errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied, true
	case errors.Is(err, fs.ErrExist):
		return KindAlreadyExists, true
	case errors.Is(err, fs.ErrInvalid):
		return KindInvalidArgument, true
	}

	var status *sftp.StatusError
	if errors.As(err, &status) {
		switch status.FxCode() {
		case sftp.ErrSSHFxNoSuchFile:
			return KindNotFound, true
		case sftp.ErrSSHFxPermissionDenied:
			return KindPermissionDenied, true
		}
	}

	// Some servers only report these conditions through the status
	// message, so fall back to message matching for the common cases.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "file exists") || strings.Contains(msg, "already exists"):
		return KindAlreadyExists, true
	case strings.Contains(msg, "permission denied"):
		return KindPermissionDenied, true
	case strings.Contains(msg, "no such file") || strings.Contains(msg, "does not exist"):
		return KindNotFound, true
	}

	return KindIO, false
}

// translateSessionErr classifies an SSH transport or channel failure.
func translateSessionErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if kind, ok := classify(err); ok {
		return &Error{Kind: kind, Op: op, Err: err}
	}
	if strings.Contains(err.Error(), "ssh:") {
		return &Error{Kind: KindSessionProtocol, Op: op, Err: err}
	}
	return &Error{Kind: KindIO, Op: op, Err: err}
}

// translateSftpErr classifies an SFTP subsystem failure.
func translateSftpErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if kind, ok := classify(err); ok {
		return &Error{Kind: kind, Op: op, Err: err}
	}
	var status *sftp.StatusError
	if errors.As(err, &status) {
		return &Error{Kind: KindSftpProtocol, Op: op, Err: err}
	}
	if strings.Contains(err.Error(), "sftp:") || strings.Contains(err.Error(), "ssh:") {
		return &Error{Kind: KindSftpProtocol, Op: op, Err: err}
	}
	return &Error{Kind: KindIO, Op: op, Err: err}
}

// translateLocalErr classifies a local filesystem failure seen during Get or
// Put.
func translateLocalErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	kind, _ := classify(err)
	return &Error{Kind: kind, Op: op, Err: err}
}

// translateHandshakeErr classifies a failure from the combined SSH
// handshake+authentication exchange.
func translateHandshakeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindConnect, Op: op, Err: err}
	}
	if strings.Contains(err.Error(), "unable to authenticate") {
		return &Error{Kind: KindPermissionDenied, Op: op, Err: err}
	}
	return &Error{Kind: KindSessionProtocol, Op: op, Err: err}
}
