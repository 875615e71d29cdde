package archivehelper

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// safeJoin joins name onto outPath, refusing entries that escape it.
func safeJoin(outPath, name string) (string, error) {
	subOutPath := filepath.Join(outPath, name)
	rel, err := filepath.Rel(outPath, subOutPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("archive entry escapes output directory: %s", name)
	}
	return subOutPath, nil
}

func writeFile(subOutPath string, mode os.FileMode, src io.Reader) error {
	err := os.MkdirAll(filepath.Dir(subOutPath), 0755)
	if err != nil {
		return errors.Wrap(err, "failed to create parent directory")
	}

	outFile, err := os.OpenFile(subOutPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0600)
	if err != nil {
		return errors.Wrap(err, "failed to create out file")
	}
	defer outFile.Close()

	_, err = io.Copy(outFile, src)
	if err != nil {
		return errors.Wrap(err, "failed to copy out file")
	}

	return nil
}

// ExtractZip extracts every entry of the zip at zipPath into outPath and
// returns the relative names of the extracted files.
func ExtractZip(zipPath, outPath string) ([]string, error) {
	zipFile, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open zip file")
	}
	defer zipFile.Close()

	var names []string
	for _, f := range zipFile.File {
		subOutPath, err := safeJoin(outPath, f.Name)
		if err != nil {
			return nil, err
		}

		if f.FileInfo().IsDir() {
			err := os.MkdirAll(subOutPath, 0755)
			if err != nil {
				return nil, errors.Wrap(err, "failed to create zip out directory")
			}
			continue
		}

		subZipFile, err := f.Open()
		if err != nil {
			return nil, errors.Wrap(err, "failed to open file in zip")
		}

		err = writeFile(subOutPath, f.Mode(), subZipFile)
		_ = subZipFile.Close()
		if err != nil {
			return nil, errors.Wrap(err, "failed to extract zip entry")
		}

		names = append(names, f.Name)
	}

	return names, nil
}

// ExtractTarGz extracts a gzip compressed tarball into outPath and returns
// the relative names of the extracted files.
func ExtractTarGz(targzPath, outPath string) ([]string, error) {
	targzFile, err := os.Open(targzPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open targz file")
	}
	defer targzFile.Close()

	tarFile, err := gzip.NewReader(targzFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress with gzip")
	}

	tarRdr := tar.NewReader(tarFile)

	var names []string
	for {
		header, err := tarRdr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read next tar file")
		}

		subOutPath, err := safeJoin(outPath, header.Name)
		if err != nil {
			return nil, err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			err := os.MkdirAll(subOutPath, 0755)
			if err != nil {
				return nil, errors.Wrap(err, "failed to create tar out directory")
			}
		case tar.TypeReg:
			err := writeFile(subOutPath, header.FileInfo().Mode(), tarRdr)
			if err != nil {
				return nil, errors.Wrap(err, "failed to extract tar entry")
			}
			names = append(names, header.Name)
		default:
			return nil, errors.Errorf("encountered unexpected entry in tar file: %s", header.Name)
		}
	}

	return names, nil
}
