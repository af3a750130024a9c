// Package reliability provides the periodic SQLite backup/upload job that
// guards the paper/live relational store (spec.md section 5's durability
// note), adapted from the teacher's tiered BackupService/R2BackupService
// pair onto this core's single-database design.
package reliability

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aristath/inarbit/internal/database"
	"github.com/rs/zerolog"
)

// BackupService creates and rotates local point-in-time snapshots of the
// arbitrage core's one relational database (the "ledger" profile DB that
// holds every paper_/live_ table family, grounded on the teacher's
// backupDatabase's "VACUUM INTO" pattern).
type BackupService struct {
	db        *database.DB
	backupDir string
	log       zerolog.Logger
}

// NewBackupService creates a new backup service.
func NewBackupService(db *database.DB, backupDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		db:        db,
		backupDir: backupDir,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// Snapshot is one local backup file plus its metadata.
type Snapshot struct {
	Path      string
	Filename  string
	Checksum  string
	SizeBytes int64
	CreatedAt time.Time
}

// CreateSnapshot takes an atomic, WAL-free snapshot of the database via
// SQLite's VACUUM INTO and returns its path and checksum.
func (s *BackupService) CreateSnapshot() (*Snapshot, error) {
	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	now := time.Now().UTC()
	filename := fmt.Sprintf("%s-%s.db", s.db.Name(), now.Format("2006-01-02-150405"))
	path := filepath.Join(s.backupDir, filename)

	if _, err := s.db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", path)); err != nil {
		return nil, fmt.Errorf("VACUUM INTO failed: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}
	checksum, err := checksumFile(path)
	if err != nil {
		return nil, fmt.Errorf("checksum snapshot: %w", err)
	}

	s.log.Info().
		Str("path", path).
		Int64("size_bytes", info.Size()).
		Msg("database snapshot created")

	return &Snapshot{
		Path:      path,
		Filename:  filename,
		Checksum:  checksum,
		SizeBytes: info.Size(),
		CreatedAt: now,
	}, nil
}

// RotateLocalSnapshots deletes local snapshot files beyond keep, oldest
// first - the uploaded copies in object storage are the durable record,
// local files are only a staging area.
func (s *BackupService) RotateLocalSnapshots(keep int) error {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read backup directory: %w", err)
	}

	var files []os.FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, info)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ModTime().After(files[j].ModTime()) })

	for i := keep; i < len(files); i++ {
		path := filepath.Join(s.backupDir, files[i].Name())
		if err := os.Remove(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("failed to remove old local snapshot")
			continue
		}
		s.log.Debug().Str("path", path).Msg("removed old local snapshot")
	}
	return nil
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), nil
}
