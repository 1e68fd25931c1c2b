package russh

import (
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

// authAttempt is one credential prepared for a handshake attempt. Building
// the transport-level method is deferred until the attempt runs so that an
// unreadable or unparseable key counts as that credential's failure and
// triggers fallback to the next credential.
type authAttempt struct {
	name  string
	build func() (ssh.AuthMethod, error)
}

// attempts returns the configured credentials in priority order: the private
// key first, then the password. An empty slice means authentication is
// skipped and the transport falls back to the SSH "none" method.
func (a AuthMethods) attempts() []authAttempt {
	var out []authAttempt
	if a.PrivateKey != nil {
		key := a.PrivateKey
		out = append(out, authAttempt{name: "private key", build: key.method})
	}
	if a.Password != nil {
		password := a.Password.Password
		out = append(out, authAttempt{
			name: "password",
			build: func() (ssh.AuthMethod, error) {
				return ssh.Password(password), nil
			},
		})
	}
	return out
}

// method loads and parses the private key into a transport auth method.
func (k *PrivateKeyAuth) method() (ssh.AuthMethod, error) {
	keyData := []byte(k.Key)
	if k.Key == "" {
		if k.Path == "" {
			return nil, &Error{
				Kind: KindInvalidArgument,
				Op:   "connect",
				Err:  fmt.Errorf("private-key credential has neither key content nor a path"),
			}
		}
		var err error
		keyData, err = os.ReadFile(k.Path)
		if err != nil {
			return nil, translateLocalErr("connect", fmt.Errorf("read private key: %w", err))
		}
	}

	var signer ssh.Signer
	var err error
	if k.Passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(k.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyData)
	}
	if err != nil {
		return nil, &Error{
			Kind: KindInvalidArgument,
			Op:   "connect",
			Err:  fmt.Errorf("parse private key: %w", err),
		}
	}

	return ssh.PublicKeys(signer), nil
}
