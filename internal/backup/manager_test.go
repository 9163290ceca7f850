package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nexira/internal/config"
)

func touchBackup(t *testing.T, dir, name string, age time.Duration) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestListBackupsSortsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	touchBackup(t, dir, "nexira_backup_old.zip", 2*time.Hour)
	touchBackup(t, dir, "nexira_backup_new.zip", 1*time.Minute)
	touchBackup(t, dir, "unrelated.txt", 0)

	m := New(config.BackupConfig{Dir: dir}, "", "", nil)
	backups, err := m.listBackups()
	require.NoError(t, err)
	require.Len(t, backups, 2)
	require.Equal(t, "nexira_backup_new.zip", backups[0].name)
	require.Equal(t, "nexira_backup_old.zip", backups[1].name)
}

func TestPruneOldBackupsKeepsOnlyMaxBackups(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 10; i++ {
		touchBackup(t, dir, backupName(i), time.Duration(i)*time.Hour)
	}

	m := New(config.BackupConfig{Dir: dir, MaxBackups: 7}, "", "", nil)
	deleted, err := m.pruneOldBackups()
	require.NoError(t, err)
	require.Len(t, deleted, 3)

	remaining, err := m.listBackups()
	require.NoError(t, err)
	require.Len(t, remaining, 7)
}

func TestPruneOldBackupsNoopWhenUnderLimit(t *testing.T) {
	dir := t.TempDir()
	touchBackup(t, dir, "nexira_backup_a.zip", 0)

	m := New(config.BackupConfig{Dir: dir}, "", "", nil)
	deleted, err := m.pruneOldBackups()
	require.NoError(t, err)
	require.Empty(t, deleted)
}

func TestNewAppliesDefaults(t *testing.T) {
	m := New(config.BackupConfig{}, "", "", nil)
	require.Equal(t, defaultMaxBackups, m.maxBackups)
	require.Equal(t, "data/backups", m.dir)
}

func backupName(i int) string {
	return "nexira_backup_" + string(rune('a'+i)) + ".zip"
}
