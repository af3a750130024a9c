package reliability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestChecksumFileIsStableAndPrefixed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.db")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatalf("write fixture file: %v", err)
	}

	a, err := checksumFile(path)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	b, err := checksumFile(path)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	if a != b {
		t.Fatal("checksum of the same file must be stable")
	}
	if a[:7] != "sha256:" {
		t.Fatalf("expected a sha256: prefixed checksum, got %s", a)
	}
}

func TestRotateLocalSnapshotsKeepsNewestN(t *testing.T) {
	dir := t.TempDir()
	svc := &BackupService{backupDir: dir, log: zerolog.Nop()}

	names := []string{"orders-1.db", "orders-2.db", "orders-3.db"}
	for i, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("write fixture file: %v", err)
		}
		modTime := time.Now().Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	if err := svc.RotateLocalSnapshots(1); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 remaining snapshot, got %d", len(entries))
	}
	if entries[0].Name() != "orders-3.db" {
		t.Fatalf("expected the newest snapshot to survive, got %s", entries[0].Name())
	}
}

func TestRotateLocalSnapshotsNoOpOnMissingDirectory(t *testing.T) {
	svc := &BackupService{backupDir: filepath.Join(t.TempDir(), "does-not-exist"), log: zerolog.Nop()}
	if err := svc.RotateLocalSnapshots(3); err != nil {
		t.Fatalf("expected no error for a missing backup directory, got %v", err)
	}
}
