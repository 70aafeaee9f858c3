// Package file provides filesystem helpers that enforce restrictive
// permissions on everything the process writes.
package file

import (
	"os"

	"github.com/pkg/errors"
)

// MkdirAll takes in a path, expands it if necessary, and creates the directory
// accordingly with standardized, restrictive permissions.
func MkdirAll(dirPath string) error {
	exists, err := HasDir(dirPath)
	if err != nil {
		return err
	}
	if exists {
		info, err := os.Stat(dirPath)
		if err != nil {
			return err
		}
		if info.Mode().Perm() != 0700 {
			return errors.Errorf("dir %s already exists without proper 0700 permissions", dirPath)
		}
		return nil
	}
	return os.MkdirAll(dirPath, 0700)
}

// WriteFile is the static-analysis enforced method for writing binary data to
// a file, with standardized, restrictive permissions.
func WriteFile(fileName string, data []byte) error {
	if Exists(fileName) {
		info, err := os.Stat(fileName)
		if err != nil {
			return err
		}
		if info.Mode() != 0600 {
			return errors.Errorf("file %s already exists without proper 0600 permissions", fileName)
		}
	}
	return os.WriteFile(fileName, data, 0600)
}

// HasDir checks if a directory indeed exists at the specified path.
func HasDir(dirPath string) (bool, error) {
	info, err := os.Stat(dirPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if info == nil {
		return false, err
	}
	return info.IsDir(), err
}

// Exists returns true if a file is not a directory and exists at the specified path.
func Exists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
