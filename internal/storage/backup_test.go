package storage

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackup_BundlesExistingSourcesAndSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	layout := NewLayout(dir)

	present := filepath.Join(dir, "validated.json")
	require.NoError(t, os.WriteFile(present, []byte(`{"ok":true}`), 0o644))
	missing := filepath.Join(dir, "does-not-exist.json")

	meta, err := Backup("20260806", []string{present, missing}, layout, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{present}, meta.SourceFiles, "expected only the present source file to be included")
	assert.NotEmpty(t, meta.Checksum, "expected a non-empty bundle checksum")
	assert.Equal(t, 30*24*time.Hour, meta.RetainUntil.Sub(meta.CreatedAt), "expected a 30-day retention window")

	_, err = os.Stat(layout.BackupBundle("20260806"))
	assert.NoError(t, err, "expected bundle file to exist")
	_, err = os.Stat(layout.BackupMetadata("20260806"))
	assert.NoError(t, err, "expected metadata sidecar to exist")

	verifyTarGzContains(t, layout.BackupBundle("20260806"), "validated.json")
}

func verifyTarGzContains(t *testing.T, bundlePath, wantName string) {
	t.Helper()
	f, err := os.Open(bundlePath)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			t.Fatalf("expected tar entry %q, found none", wantName)
		}
		require.NoError(t, err)
		if hdr.Name == wantName {
			return
		}
	}
}

func TestPruneExpired_RemovesOnlyPastRetention(t *testing.T) {
	dir := t.TempDir()
	layout := NewLayout(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.json"), []byte(`{}`), 0o644))
	_, err := Backup("keep", []string{filepath.Join(dir, "keep.json")}, layout, 30)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "expire.json"), []byte(`{}`), 0o644))
	// A negative retention window puts RetainUntil in the past at creation
	// time, so it reads as already-expired the moment PruneExpired runs.
	_, err = Backup("expire", []string{filepath.Join(dir, "expire.json")}, layout, -1)
	require.NoError(t, err)

	backupsDir := filepath.Dir(layout.BackupBundle("keep"))
	removed, err := PruneExpired(backupsDir, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, []string{layout.BackupBundle("expire")}, removed, "expected only the expired bundle to be pruned")
	_, err = os.Stat(layout.BackupBundle("keep"))
	assert.NoError(t, err, "expected the not-yet-expired bundle to survive")
}
