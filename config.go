package russh

import (
	"os/user"
	"time"
)

const (
	// DefaultPort is the SSH port used when Config.Port is zero.
	DefaultPort = 22

	// DefaultTimeout bounds the TCP connect and the handshake when
	// Config.Timeout is zero.
	DefaultTimeout = 30 * time.Second
)

// PasswordAuth is a password credential.
type PasswordAuth struct {
	// Password is the account password.
	Password string
}

// PrivateKeyAuth is a private-key credential.
type PrivateKeyAuth struct {
	// Key is the private key content (PEM encoded).
	// Mutually exclusive with Path.
	Key string

	// Path is the path to the private-key file.
	// Mutually exclusive with Key.
	Path string

	// Passphrase decrypts the key when it is encrypted.
	Passphrase string
}

// AuthMethods holds at most one credential of each kind. Credentials are
// attempted in a fixed priority order: the private key first, then the
// password. The first success wins; when every attempt fails, the error of
// the last attempted credential is surfaced and earlier failures are
// discarded. With no credentials set, authentication falls back to the SSH
// "none" method.
type AuthMethods struct {
	// Password is the password credential, if any.
	Password *PasswordAuth

	// PrivateKey is the private-key credential, if any.
	PrivateKey *PrivateKeyAuth
}

// Config holds SSH connection configuration for Client.Connect.
type Config struct {
	// Host is the target SSH server hostname or IP address.
	Host string

	// Port is the SSH port (default 22).
	Port int

	// User is the SSH username. When empty it is resolved through
	// CurrentUser.
	User string

	// Auth is the set of credentials to attempt.
	Auth AuthMethods

	// Timeout bounds the TCP connect and the handshake (default 30s).
	// Established sessions are not subject to it.
	Timeout time.Duration

	// KnownHostsFile is the path to a known_hosts file for host key
	// verification. If not set, defaults to ~/.ssh/known_hosts if it
	// exists.
	KnownHostsFile string

	// InsecureIgnoreHostKey skips host key verification.
	// WARNING: This is insecure and should only be used for testing.
	InsecureIgnoreHostKey bool

	// CurrentUser resolves the username when User is empty. Defaults to
	// the identity of the process owner.
	CurrentUser func() (string, error)
}

// WithDefaults returns a copy of the config with default values applied.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.CurrentUser == nil {
		c.CurrentUser = localUsername
	}
	return c
}

func localUsername() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return u.Username, nil
}
