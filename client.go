package russh

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Client is the top-level entry point. It owns at most one live SSH session
// at a time and spawns command handles and SFTP clients from it.
//
// A Client and everything derived from it are single-owner abstractions:
// channels and file descriptors are stateful and order-dependent, so
// concurrent use from multiple goroutines requires external synchronization.
type Client struct {
	conn *ssh.Client
}

// NewClient creates a disconnected client. Call Connect before using it.
func NewClient() *Client {
	return &Client{}
}

// Connect resolves host:port, opens a TCP connection bounded by the
// configured timeout, performs the SSH handshake, and authenticates with the
// configured credentials in priority order (see AuthMethods). On success any
// prior session held by the client is closed and replaced; on failure the
// client is left unchanged.
func (c *Client) Connect(config Config) error {
	const op = "connect"
	config = config.WithDefaults()

	username := config.User
	if username == "" {
		resolved, err := config.CurrentUser()
		if err != nil {
			return &Error{Kind: KindInvalidArgument, Op: op, Err: fmt.Errorf("resolve username: %w", err)}
		}
		username = resolved
	}

	hostKeyCallback, err := buildHostKeyCallback(config)
	if err != nil {
		return translateLocalErr(op, err)
	}

	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	attempts := config.Auth.attempts()

	var conn *ssh.Client
	if len(attempts) == 0 {
		// No credentials configured: attempt the connection anyway and
		// let the server decide whether "none" authentication is
		// acceptable.
		conn, err = dialSSH(addr, username, nil, hostKeyCallback, config.Timeout)
		if err != nil {
			return err
		}
	} else {
		// Try each credential over a fresh connection; servers may drop
		// the transport after a failed attempt. Only the error of the
		// last attempted credential survives.
		for _, attempt := range attempts {
			var method ssh.AuthMethod
			method, err = attempt.build()
			if err != nil {
				continue
			}
			conn, err = dialSSH(addr, username, []ssh.AuthMethod{method}, hostKeyCallback, config.Timeout)
			if err == nil {
				break
			}
		}
		if conn == nil {
			return err
		}
	}

	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	return nil
}

// Connected reports whether the client holds a live session.
func (c *Client) Connected() bool {
	return c.conn != nil
}

// ExecCommand opens a new channel on the live session, starts command on it,
// and returns a handle exposing the command's stdin, stdout, and stderr as
// independently consumable streams.
func (c *Client) ExecCommand(command string) (*Exec, error) {
	const op = "exec_command"
	if c.conn == nil {
		return nil, errNotConnected(op)
	}
	session, err := c.conn.NewSession()
	if err != nil {
		return nil, translateSessionErr(op, err)
	}
	return startExec(session, command)
}

// OpenSFTP initializes the SFTP subsystem on the live session and returns a
// client for it. The returned client starts with no working directory set.
func (c *Client) OpenSFTP() (*SFTP, error) {
	const op = "open_sftp"
	if c.conn == nil {
		return nil, errNotConnected(op)
	}
	client, err := sftp.NewClient(c.conn)
	if err != nil {
		return nil, translateSftpErr(op, err)
	}
	return &SFTP{client: &sftpClientWrapper{client: client}}, nil
}

// Close releases the live session. It is an idempotent no-op on a client
// with no session.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	_ = conn.Close()
	return nil
}

// dialSSH opens a TCP connection bounded by timeout and performs the SSH
// handshake and authentication over it. The same timeout also bounds the
// handshake via a connection deadline; the deadline is cleared once the
// session is established.
func dialSSH(addr, username string, methods []ssh.AuthMethod, hostKeyCallback ssh.HostKeyCallback, timeout time.Duration) (*ssh.Client, error) {
	const op = "connect"

	tcp, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, &Error{Kind: KindConnect, Op: op, Err: err}
	}
	if err := tcp.SetDeadline(time.Now().Add(timeout)); err != nil {
		_ = tcp.Close()
		return nil, &Error{Kind: KindConnect, Op: op, Err: err}
	}

	sshConfig := &ssh.ClientConfig{
		User:            username,
		Auth:            methods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	ncc, chans, reqs, err := ssh.NewClientConn(tcp, addr, sshConfig)
	if err != nil {
		_ = tcp.Close()
		return nil, translateHandshakeErr(op, err)
	}

	if err := tcp.SetDeadline(time.Time{}); err != nil {
		_ = ncc.Close()
		return nil, &Error{Kind: KindConnect, Op: op, Err: err}
	}

	return ssh.NewClient(ncc, chans, reqs), nil
}

func buildHostKeyCallback(config Config) (ssh.HostKeyCallback, error) {
	if config.InsecureIgnoreHostKey {
		log.Printf("[WARN] SSH host key verification disabled for %s:%d - this is insecure!", config.Host, config.Port)
		return ssh.InsecureIgnoreHostKey(), nil
	}

	if config.KnownHostsFile != "" {
		callback, err := knownhosts.New(config.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts file %s: %w", config.KnownHostsFile, err)
		}
		return callback, nil
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		defaultKnownHosts := filepath.Join(homeDir, ".ssh", "known_hosts")
		if _, err := os.Stat(defaultKnownHosts); err == nil {
			callback, err := knownhosts.New(defaultKnownHosts)
			if err == nil {
				return callback, nil
			}
			log.Printf("[WARN] Could not parse known_hosts file %s: %v", defaultKnownHosts, err)
		}
	}

	log.Printf("[WARN] No known_hosts file found for %s:%d - host key verification disabled.", config.Host, config.Port)
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		return nil
	}, nil
}
