package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// BackupConfig controls periodic database snapshots.
type BackupConfig struct {
	Enabled       bool
	Interval      time.Duration
	StoragePath   string
	RetentionDays int
}

type BackupService struct {
	db     *DB
	config BackupConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBackupService(db *DB, cfg BackupConfig, logger *zerolog.Logger) *BackupService {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &BackupService{
		db:     db,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Start runs a backup immediately and then every interval until ctx is done.
func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backup service is disabled")
		return
	}

	s.logger.Info().Dur("interval", s.config.Interval).Msg("Backup service started")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if _, err := s.PerformBackup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Initial backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PerformBackup(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Scheduled backup failed")
			}
			s.CleanupOldBackups()
		}
	}
}

// PerformBackup writes a consistent snapshot and returns its path.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	timestamp := s.now().Format("20060102_150405")
	backupPath := filepath.Join(s.config.StoragePath, fmt.Sprintf("backup_%s.db", timestamp))

	s.logger.Info().Str("path", backupPath).Msg("Performing database backup")

	// A plain file copy misses pages still in the WAL.
	escaped := strings.ReplaceAll(backupPath, "'", "''")
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", escaped)); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", backupPath, err)
	}

	s.logger.Info().Msg("Backup completed successfully")
	return backupPath, nil
}

// CleanupOldBackups removes snapshots older than the retention period.
func (s *BackupService) CleanupOldBackups() int {
	if s.config.RetentionDays <= 0 {
		return 0
	}

	files, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read backup directory for cleanup")
		return 0
	}

	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	removed := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), "backup_") {
			continue
		}

		info, err := file.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", file.Name()).Msg("Deleting old backup")
			if err := os.Remove(filepath.Join(s.config.StoragePath, file.Name())); err == nil {
				removed++
			}
		}
	}
	return removed
}
