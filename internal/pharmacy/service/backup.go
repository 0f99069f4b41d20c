package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/events"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/repository"
	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

// BackupService exports and restores the whole database as one JSON document
type BackupService struct {
	store     repository.Store
	publisher *events.Publisher
	dir       string
	clock     Clock
	logger    *logger.Logger
}

// NewBackupService creates a backup service writing files into dir
func NewBackupService(store repository.Store, publisher *events.Publisher, dir string, clock Clock, log *logger.Logger) *BackupService {
	return &BackupService{
		store:     store,
		publisher: publisher,
		dir:       dir,
		clock:     clock,
		logger:    log.WithComponent("backup"),
	}
}

// FileName is the backup file name for a day: BKP<dd><mm><yyyy>.json
func FileName(t time.Time) string {
	return fmt.Sprintf("BKP%02d%02d%04d.json", t.Day(), int(t.Month()), t.Year())
}

// safetyFileName tags the export written before an import with the time of day
func safetyFileName(t time.Time) string {
	return fmt.Sprintf("BKP%02d%02d%04d_%02d%02d%02d_pre_import.json",
		t.Day(), int(t.Month()), t.Year(), t.Hour(), t.Minute(), t.Second())
}

// Export returns the backup document
func (s *BackupService) Export(ctx context.Context) ([]byte, error) {
	return s.store.ExportAll(ctx)
}

// WriteBackup writes today's backup file, replacing one written earlier the same day
func (s *BackupService) WriteBackup(ctx context.Context) (string, error) {
	blob, err := s.Export(ctx)
	if err != nil {
		return "", err
	}
	path, err := s.write(FileName(s.clock.now()), blob)
	if err != nil {
		return "", err
	}

	s.logger.Info().Str("file", path).Int("bytes", len(blob)).Msg("Backup written")
	s.publisher.BackupCreated(ctx, path, len(blob))
	return path, nil
}

// Import validates blob, saves the current database to a safety file, then
// replaces every collection present in blob. It returns the safety file path.
func (s *BackupService) Import(ctx context.Context, blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", errors.BadRequest("empty backup").WithKey("errors.invalid_backup", nil)
	}
	// rejects a malformed document before the safety copy is written
	if err := repository.Validate(blob); err != nil {
		return "", err
	}

	current, err := s.Export(ctx)
	if err != nil {
		return "", err
	}
	safety, err := s.write(safetyFileName(s.clock.now()), current)
	if err != nil {
		return "", err
	}

	if err := s.store.ImportAll(ctx, blob); err != nil {
		s.logger.Error().Err(err).Str("safety_file", safety).Msg("Import failed")
		return safety, err
	}

	s.logger.Info().Str("safety_file", safety).Int("bytes", len(blob)).Msg("Database imported")
	s.publisher.DatabaseImported(ctx, safety, len(blob))
	return safety, nil
}

func (s *BackupService) write(name string, blob []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o640); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return path, nil
}
