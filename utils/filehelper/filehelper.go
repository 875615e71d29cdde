package filehelper

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CopyFile copies src to dest with the given permissions, replacing dest.
func CopyFile(src, dest string, perm os.FileMode) error {
	source, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open source file '%s' for copy", src)
	}
	defer source.Close()

	destination, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrapf(err, "failed to create destination file '%s' for copy", dest)
	}

	_, err = io.Copy(destination, source)
	closeErr := destination.Close()
	if err != nil {
		return errors.Wrapf(err, "failed to copy '%s' to '%s'", src, dest)
	}
	if closeErr != nil {
		return errors.Wrapf(closeErr, "failed to close destination file '%s'", dest)
	}

	return os.Chmod(dest, perm)
}

// InstallFile copies src into a temporary file beside dest and renames it
// into place, so dest is never observed half written.
func InstallFile(src, dest string, perm os.FileMode) error {
	destDir := filepath.Dir(dest)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create the destination directory '%s'", destDir)
	}

	tmpFile, err := os.CreateTemp(destDir, ".install-*")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary file in '%s'", destDir)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	if err := CopyFile(src, tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to move '%s' into place", dest)
	}

	return nil
}
