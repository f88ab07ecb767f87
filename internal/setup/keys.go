package setup

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/korasi/korasi/internal/errors"
)

// PrivateKeyMode is the permission private keys are written with.
const PrivateKeyMode os.FileMode = 0400

// KeyPath returns ~/.ssh/<keyName>.pem.
func KeyPath(keyName string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("~", ".ssh", keyName+".pem")
	}
	return filepath.Join(home, ".ssh", keyName+".pem")
}

// KeyExists reports whether a regular file exists at path.
func KeyExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// WriteSecure writes material to path with the given mode. The parent
// directory is created 0700 if needed. The file is written under a
// temporary name and renamed into place, so a read-only file already at
// path is replaced rather than failing.
func WriteSecure(path string, material []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't create key directory %s", dir),
			"Check permissions on your home directory.")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't write key file in %s", dir), "")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(material); err != nil {
		tmp.Close()
		return errors.WrapWithCode(err, errors.ErrConfig, fmt.Sprintf("Can't write %s", path), "")
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, fmt.Sprintf("Can't write %s", path), "")
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, fmt.Sprintf("Can't restrict permissions on %s", path), "")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, fmt.Sprintf("Can't move key into place at %s", path), "")
	}
	return nil
}

// RemoveKey deletes the key file at path. It returns false without error
// when there was nothing to delete.
func RemoveKey(path string) (bool, error) {
	err := os.Remove(path)
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't remove key file %s", path),
			"Delete it by hand; the key pair it belonged to no longer exists.")
	}
}
