package archiver_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zeebrow/ec2-price-tracker/internal/archiver"
)

func writeTree(t *testing.T, root, dataType, date string) {
	t.Helper()
	dir := filepath.Join(root, dataType, date, "Linux")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "us-east-1.csv"), []byte("date,instance_type\n"), 0o644))
}

func TestArchiveProducesExtractableZip(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "ec2", "2026-07-31")

	require.NoError(t, archiver.Archive(root, "ec2", "2026-07-31"))

	archivePath := filepath.Join(root, "ec2", "2026-07-31.archive")
	zr, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer zr.Close()

	require.Len(t, zr.File, 1)
	assert.Equal(t, "2026-07-31/Linux/us-east-1.csv", zr.File[0].Name)

	_, err = os.Stat(filepath.Join(root, "ec2", "2026-07-31"))
	assert.True(t, os.IsNotExist(err))
}

func TestArchiveReplacesExistingArchive(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "ec2", "2026-07-31")
	require.NoError(t, archiver.Archive(root, "ec2", "2026-07-31"))

	writeTree(t, root, "ec2", "2026-07-31")
	require.NoError(t, archiver.Archive(root, "ec2", "2026-07-31"))

	entries, err := os.ReadDir(filepath.Join(root, "ec2"))
	require.NoError(t, err)
	var archiveCount int
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".archive" {
			archiveCount++
		}
	}
	assert.Equal(t, 1, archiveCount, "no backup archive should remain after a successful replace")
}
