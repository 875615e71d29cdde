package archivehelper_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/edgeprobe/edgedns/utils/archivehelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestExtractZipNested(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "a.zip")
	writeZip(t, zipPath, map[string]string{"sub/tool": "bin"})

	out := filepath.Join(dir, "out")
	names, err := archivehelper.ExtractZip(zipPath, out)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/tool"}, names)

	content, err := os.ReadFile(filepath.Join(out, "sub", "tool"))
	require.NoError(t, err)
	assert.Equal(t, "bin", string(content))
}

func TestExtractZipRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "a.zip")
	writeZip(t, zipPath, map[string]string{"../evil": "x"})

	_, err := archivehelper.ExtractZip(zipPath, filepath.Join(dir, "out"))
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "evil"))
	assert.True(t, os.IsNotExist(statErr))
}
