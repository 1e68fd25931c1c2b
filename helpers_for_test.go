package russh

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/sftp"
	gossh "golang.org/x/crypto/ssh"
)

// generateTestRSAKey creates a test RSA private key and returns both the
// PEM-encoded key content and a path to a temp file containing the key.
func generateTestRSAKey(t testing.TB) (string, string) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	privateKeyBytes := x509.MarshalPKCS1PrivateKey(privateKey)
	privateKeyPEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: privateKeyBytes,
	}))

	tmpDir := t.TempDir()
	keyPath := filepath.Join(tmpDir, "test_key")
	if err := os.WriteFile(keyPath, []byte(privateKeyPEM), 0600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}

	return privateKeyPEM, keyPath
}

// publicKeyFor derives the SSH public key from a PEM-encoded RSA private key.
func publicKeyFor(t testing.TB, privateKeyPEM string) gossh.PublicKey {
	t.Helper()

	signer, err := gossh.ParsePrivateKey([]byte(privateKeyPEM))
	if err != nil {
		t.Fatalf("failed to parse private key: %v", err)
	}
	return signer.PublicKey()
}

func writeTestFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func readTestFile(t testing.TB, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(content)
}

// testServerOptions configures the in-process SSH server used by the
// end-to-end tests.
type testServerOptions struct {
	user          string
	password      string          // "" disables password authentication
	authorizedKey gossh.PublicKey // nil disables public-key authentication
	noClientAuth  bool            // accept connections without credentials
}

// testServer is a minimal in-process SSH server. It authenticates per the
// options, interprets a small fixed command set on exec channels, and serves
// the local filesystem on the sftp subsystem.
type testServer struct {
	listener net.Listener
	config   *gossh.ServerConfig
}

// startTestServer starts a server on an ephemeral loopback port and returns
// it together with its host and port. The server is stopped via t.Cleanup.
func startTestServer(t testing.TB, opts testServerOptions) (*testServer, string, int) {
	t.Helper()

	hostKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate host key: %v", err)
	}
	signer, err := gossh.NewSignerFromKey(hostKey)
	if err != nil {
		t.Fatalf("failed to create host signer: %v", err)
	}

	config := &gossh.ServerConfig{NoClientAuth: opts.noClientAuth}
	if opts.password != "" {
		config.PasswordCallback = func(meta gossh.ConnMetadata, pass []byte) (*gossh.Permissions, error) {
			if meta.User() == opts.user && string(pass) == opts.password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", meta.User())
		}
	}
	if opts.authorizedKey != nil {
		authorized := string(gossh.MarshalAuthorizedKey(opts.authorizedKey))
		config.PublicKeyCallback = func(meta gossh.ConnMetadata, key gossh.PublicKey) (*gossh.Permissions, error) {
			if meta.User() == opts.user && string(gossh.MarshalAuthorizedKey(key)) == authorized {
				return nil, nil
			}
			return nil, fmt.Errorf("public key rejected for %q", meta.User())
		}
	}
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	server := &testServer{listener: listener, config: config}
	go server.acceptConnections()
	t.Cleanup(server.stop)

	port := listener.Addr().(*net.TCPAddr).Port
	return server, "127.0.0.1", port
}

func (s *testServer) stop() {
	_ = s.listener.Close()
}

func (s *testServer) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConnection(conn)
	}
}

func (s *testServer) handleConnection(conn net.Conn) {
	defer conn.Close()

	sshConn, chans, reqs, err := gossh.NewServerConn(conn, s.config)
	if err != nil {
		return
	}
	defer sshConn.Close()

	go gossh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(gossh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go s.handleChannel(channel, requests)
	}
}

func (s *testServer) handleChannel(channel gossh.Channel, requests <-chan *gossh.Request) {
	defer channel.Close()

	for req := range requests {
		switch req.Type {
		case "exec":
			command := string(req.Payload[4:])
			_ = req.Reply(true, nil)
			s.runCommand(channel, command)
			return

		case "subsystem":
			if string(req.Payload[4:]) == "sftp" {
				_ = req.Reply(true, nil)
				server, err := sftp.NewServer(channel)
				if err != nil {
					return
				}
				if err := server.Serve(); err != nil && err != io.EOF {
					_ = server.Close()
				}
				return
			}
			_ = req.Reply(false, nil)

		default:
			_ = req.Reply(false, nil)
		}
	}
}

// runCommand interprets the small command language the tests use:
//
//	echo <args>  write args + newline to stdout, exit 0
//	err <args>   write args + newline to stderr, exit 0
//	cat          copy stdin to stdout until EOF, exit 0
//	upper        read all of stdin, write it upper-cased to stdout, exit 0
//	exit <n>     exit with status n
//	flood        write several megabytes to stdout, exit 0
func (s *testServer) runCommand(channel gossh.Channel, command string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		s.sendExitStatus(channel, 0)
		return
	}

	switch fields[0] {
	case "echo":
		fmt.Fprintln(channel, strings.Join(fields[1:], " "))
		s.sendExitStatus(channel, 0)

	case "err":
		fmt.Fprintln(channel.Stderr(), strings.Join(fields[1:], " "))
		s.sendExitStatus(channel, 0)

	case "cat":
		_, _ = io.Copy(channel, channel)
		s.sendExitStatus(channel, 0)

	case "upper":
		data, _ := io.ReadAll(channel)
		_, _ = channel.Write([]byte(strings.ToUpper(string(data))))
		s.sendExitStatus(channel, 0)

	case "exit":
		code, err := strconv.Atoi(fields[1])
		if err != nil {
			code = 1
		}
		s.sendExitStatus(channel, code)

	case "flood":
		// Exceeds the client's channel window so that an unread stdout
		// buffer blocks the writer until the client drains it.
		chunk := []byte(strings.Repeat("x", 32*1024))
		for written := 0; written < 3<<20; written += len(chunk) {
			if _, err := channel.Write(chunk); err != nil {
				return
			}
		}
		s.sendExitStatus(channel, 0)

	default:
		fmt.Fprintln(channel.Stderr(), "unknown command: "+fields[0])
		s.sendExitStatus(channel, 127)
	}
}

func (s *testServer) sendExitStatus(channel gossh.Channel, code int) {
	status := make([]byte, 4)
	binary.BigEndian.PutUint32(status, uint32(code))
	_, _ = channel.SendRequest("exit-status", false, status)
	_ = channel.CloseWrite()
}
