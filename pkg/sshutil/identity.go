package sshutil

import (
	"bytes"
	"crypto/x509"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/korasi/korasi/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Identity is a private key loaded once per process and used for
// public-key authentication.
type Identity struct {
	Path   string
	Signer ssh.Signer
}

// LoadIdentity reads and decodes the private key at path. The raw key
// bytes are zeroed once decoded. An encrypted key with no passphrase
// yields *EncryptedKeyError so the caller can prompt and try again.
func LoadIdentity(path string, passphrase []byte) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrAuth,
			fmt.Sprintf("Can't read SSH key %s", path),
			"Point --ssh-key or ssh.identity_file at the private key for this instance.")
	}
	defer clear(data)

	var signer ssh.Signer
	if len(passphrase) > 0 {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, passphrase)
	} else {
		signer, err = ssh.ParsePrivateKey(data)
	}
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || (len(passphrase) == 0 && isEncryptedPEM(data)) {
			return nil, &EncryptedKeyError{Path: path}
		}
		if stderrors.Is(err, x509.IncorrectPasswordError) { //nolint:staticcheck // still what ParsePrivateKeyWithPassphrase returns
			return nil, errors.WrapWithCode(err, errors.ErrAuth,
				fmt.Sprintf("Wrong passphrase for SSH key %s", path),
				"Try again, or use an unencrypted key.")
		}
		return nil, errors.WrapWithCode(err, errors.ErrAuth,
			fmt.Sprintf("Can't parse SSH key %s", path),
			"Make sure the file is a PEM or OpenSSH private key.")
	}

	return &Identity{Path: path, Signer: signer}, nil
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// isEncryptedPEM checks if PEM data contains encryption markers.
func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED")) ||
		bytes.Contains(data, []byte("Proc-Type: 4,ENCRYPTED"))
}
