// Package backup implements the nightly backup described in spec.md §6,
// grounded line-for-line on original_source/src/core/backup_manager.py:
// a timestamped ZIP, a 7-backup retention policy pruned newest-first, and
// an optional offsite copy. The original zips SQLite .db files directly;
// this Store is Postgres, so the Manager dumps it with pg_dump first and
// zips the dump instead.
package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"archive/zip"

	"github.com/rs/zerolog/log"

	"nexira/internal/config"
	"nexira/internal/objectstore"
)

const defaultMaxBackups = 7

// Offsiter uploads the finished backup archive somewhere durable outside
// the local disk. internal/objectstore.ObjectStore satisfies this.
type Offsiter interface {
	Put(ctx context.Context, key string, r io.Reader, opts objectstore.PutOptions) (string, error)
}

// Result summarizes one backup run, mirroring run_backup's return dict.
type Result struct {
	Timestamp time.Time
	Filename  string
	SizeKB    float64
	Files     []string
	Offsite   bool
}

// Manager creates, prunes, and (optionally) offsite-copies nightly backups.
type Manager struct {
	dir        string
	maxBackups int
	dsn        string
	configPath string
	offsite    Offsiter
	keyPrefix  string
	pgDumpBin  string
}

// New builds a Manager from config. dsn is the Store's connection string
// (pg_dump target); configPath, if non-empty, is included in the archive
// the way the Python includes default_config.json. offsite may be nil.
func New(cfg config.BackupConfig, dsn, configPath string, offsite Offsiter) *Manager {
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "data/backups"
	}
	return &Manager{
		dir:        dir,
		maxBackups: maxBackups,
		dsn:        dsn,
		configPath: configPath,
		offsite:    offsite,
		keyPrefix:  cfg.S3KeyPrefix,
		pgDumpBin:  "pg_dump",
	}
}

// Run creates one backup archive, uploads it offsite if configured, and
// prunes anything past the retention window. Matches run_backup's shape:
// failures are logged and returned as an error, never panicked.
func (m *Manager) Run(ctx context.Context) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	now := time.Now()
	name := fmt.Sprintf("nexira_backup_%s.zip", now.Format("20060102_150405"))
	zipPath := filepath.Join(m.dir, name)

	files, err := m.writeArchive(ctx, zipPath)
	if err != nil {
		return fmt.Errorf("write backup archive: %w", err)
	}

	info, err := os.Stat(zipPath)
	if err != nil {
		return fmt.Errorf("stat backup archive: %w", err)
	}
	result := Result{
		Timestamp: now,
		Filename:  name,
		SizeKB:    float64(info.Size()) / 1024,
		Files:     files,
	}
	log.Info().Str("file", name).Float64("size_kb", result.SizeKB).Int("files", len(files)).Msg("backup: created")

	if m.offsite != nil {
		if err := m.uploadOffsite(ctx, zipPath, name); err != nil {
			log.Error().Err(err).Msg("backup: offsite upload failed")
		} else {
			result.Offsite = true
		}
	}

	pruned, err := m.pruneOldBackups()
	if err != nil {
		log.Error().Err(err).Msg("backup: prune old backups")
	} else if len(pruned) > 0 {
		log.Info().Int("count", len(pruned)).Msg("backup: pruned old backups")
	}

	return nil
}

// writeArchive streams a pg_dump of the database straight into a zip entry,
// adds the config file alongside it (when configPath is set), and returns
// the archive member names added.
func (m *Manager) writeArchive(ctx context.Context, zipPath string) ([]string, error) {
	zf, err := os.Create(zipPath)
	if err != nil {
		return nil, fmt.Errorf("create zip: %w", err)
	}
	defer zf.Close()

	zw := zip.NewWriter(zf)
	defer zw.Close()

	var added []string

	dumpName := "database.sql"
	w, err := zw.Create(dumpName)
	if err != nil {
		return nil, fmt.Errorf("create zip entry %s: %w", dumpName, err)
	}
	if err := m.pgDump(ctx, w); err != nil {
		return nil, fmt.Errorf("pg_dump: %w", err)
	}
	added = append(added, dumpName)

	if m.configPath != "" {
		if err := addFileToZip(zw, m.configPath, filepath.Base(m.configPath)); err != nil {
			log.Warn().Err(err).Str("path", m.configPath).Msg("backup: config file not included")
		} else {
			added = append(added, filepath.Base(m.configPath))
		}
	}

	return added, nil
}

// pgDump shells out to pg_dump against the Store's DSN, streaming plain-SQL
// output directly into w.
func (m *Manager) pgDump(ctx context.Context, w io.Writer) error {
	if m.dsn == "" {
		return fmt.Errorf("no database connection string configured")
	}
	cmd := exec.CommandContext(ctx, m.pgDumpBin, m.dsn, "--format=plain", "--no-owner")
	cmd.Stdout = w
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func addFileToZip(zw *zip.Writer, srcPath, memberName string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.Create(memberName)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

// uploadOffsite puts the finished archive into the configured ObjectStore
// under S3KeyPrefix/<filename>.
func (m *Manager) uploadOffsite(ctx context.Context, zipPath, name string) error {
	f, err := os.Open(zipPath)
	if err != nil {
		return err
	}
	defer f.Close()

	key := name
	if m.keyPrefix != "" {
		key = filepath.Join(m.keyPrefix, name)
	}
	_, err = m.offsite.Put(ctx, key, f, objectstore.PutOptions{ContentType: "application/zip"})
	return err
}

// backupEntry is one local backup file's listing metadata.
type backupEntry struct {
	name    string
	path    string
	modTime time.Time
}

// BackupEntry is the public, read-only view of one local backup archive.
type BackupEntry struct {
	Name    string
	SizeKB  float64
	ModTime time.Time
}

// List returns every local backup archive, newest first (spec.md §6's
// GET /api/backups).
func (m *Manager) List() ([]BackupEntry, error) {
	entries, err := m.listBackups()
	if err != nil {
		return nil, err
	}
	out := make([]BackupEntry, 0, len(entries))
	for _, e := range entries {
		var sizeKB float64
		if info, err := os.Stat(e.path); err == nil {
			sizeKB = float64(info.Size()) / 1024
		}
		out = append(out, BackupEntry{Name: e.name, SizeKB: sizeKB, ModTime: e.modTime})
	}
	return out, nil
}

// listBackups mirrors list_backups: every nexira_backup_*.zip in dir,
// sorted newest-first by modification time.
func (m *Manager) listBackups() ([]backupEntry, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}
	var out []backupEntry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "nexira_backup_") || !strings.HasSuffix(name, ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, backupEntry{name: name, path: filepath.Join(m.dir, name), modTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].modTime.After(out[j].modTime) })
	return out, nil
}

// pruneOldBackups deletes everything past the retention window, mirroring
// _prune_old_backups's "already sorted newest-first, slice off the tail".
func (m *Manager) pruneOldBackups() ([]string, error) {
	backups, err := m.listBackups()
	if err != nil {
		return nil, err
	}
	if len(backups) <= m.maxBackups {
		return nil, nil
	}
	var deleted []string
	for _, b := range backups[m.maxBackups:] {
		if err := os.Remove(b.path); err != nil {
			log.Warn().Err(err).Str("file", b.name).Msg("backup: failed to prune")
			continue
		}
		deleted = append(deleted, b.name)
	}
	return deleted, nil
}
