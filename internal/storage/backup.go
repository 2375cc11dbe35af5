package storage

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/tft-collector/tftcollector/internal/identity"
)

// BackupMetadata is written alongside the compressed bundle, matching the
// backups/backup_<cycleId>_metadata.json path of §6.
type BackupMetadata struct {
	CycleID     string    `json:"cycleId"`
	CreatedAt   time.Time `json:"createdAt"`
	BundlePath  string    `json:"bundlePath"`
	Checksum    string    `json:"checksum"`
	SourceFiles []string  `json:"sourceFiles"`
	RetainUntil time.Time `json:"retainUntil,omitempty"`
}

// Backup gzip-tars the given source files into bundlePath and writes a
// metadata sidecar, following the design note that full archive bundling
// (multi-volume, incremental, encrypted archives) is out of scope: this is a
// flat one-shot tar+gzip of a single cycle's already-materialized outputs,
// not a general-purpose archival subsystem.
func Backup(cycleID string, sources []string, layout Layout, retentionDays int) (BackupMetadata, error) {
	bundlePath := layout.BackupBundle(cycleID)
	if err := os.MkdirAll(filepath.Dir(bundlePath), 0o755); err != nil {
		return BackupMetadata{}, fmt.Errorf("storage: create backup dir: %w", err)
	}

	tmp := bundlePath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return BackupMetadata{}, fmt.Errorf("storage: create bundle: %w", err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	var included []string
	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			tw.Close()
			gz.Close()
			f.Close()
			return BackupMetadata{}, fmt.Errorf("storage: stat %s: %w", src, err)
		}
		data, err := os.ReadFile(src)
		if err != nil {
			tw.Close()
			gz.Close()
			f.Close()
			return BackupMetadata{}, fmt.Errorf("storage: read %s: %w", src, err)
		}
		hdr := &tar.Header{
			Name:    filepath.Base(src),
			Size:    info.Size(),
			Mode:    0o644,
			ModTime: info.ModTime(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			tw.Close()
			gz.Close()
			f.Close()
			return BackupMetadata{}, fmt.Errorf("storage: write tar header for %s: %w", src, err)
		}
		if _, err := tw.Write(data); err != nil {
			tw.Close()
			gz.Close()
			f.Close()
			return BackupMetadata{}, fmt.Errorf("storage: write tar body for %s: %w", src, err)
		}
		included = append(included, src)
	}

	if err := tw.Close(); err != nil {
		gz.Close()
		f.Close()
		return BackupMetadata{}, fmt.Errorf("storage: close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return BackupMetadata{}, fmt.Errorf("storage: close gzip writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return BackupMetadata{}, fmt.Errorf("storage: close bundle file: %w", err)
	}
	if err := os.Rename(tmp, bundlePath); err != nil {
		return BackupMetadata{}, fmt.Errorf("storage: rename bundle into place: %w", err)
	}

	bundleBytes, err := os.ReadFile(bundlePath)
	if err != nil {
		return BackupMetadata{}, fmt.Errorf("storage: read bundle for checksum: %w", err)
	}
	meta := BackupMetadata{
		CycleID:     cycleID,
		CreatedAt:   time.Now().UTC(),
		BundlePath:  bundlePath,
		Checksum:    identity.ChecksumBytes(bundleBytes),
		SourceFiles: included,
	}
	if retentionDays != 0 {
		meta.RetainUntil = meta.CreatedAt.AddDate(0, 0, retentionDays)
	}

	metaPath := layout.BackupMetadata(cycleID)
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return BackupMetadata{}, fmt.Errorf("storage: marshal backup metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaData, 0o644); err != nil {
		return BackupMetadata{}, fmt.Errorf("storage: write backup metadata: %w", err)
	}
	return meta, nil
}

// PruneExpired removes backup bundles (and their metadata sidecars) whose
// RetainUntil has passed, given the directory backups live in.
func PruneExpired(dir string, now time.Time) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: read backups dir: %w", err)
	}

	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		metaPath := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var meta BackupMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		if meta.RetainUntil.IsZero() || now.Before(meta.RetainUntil) {
			continue
		}
		os.Remove(meta.BundlePath)
		os.Remove(metaPath)
		removed = append(removed, meta.BundlePath)
	}
	return removed, nil
}
