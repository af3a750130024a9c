package di

import (
	"context"
	"fmt"

	"github.com/aristath/inarbit/internal/config"
	"github.com/aristath/inarbit/internal/reliability"
	"github.com/rs/zerolog"
)

// RegisterJobs starts every long-running loop (ingestor, both scanners,
// the decision service, and - when enabled - the backup job) against a
// context the caller controls the lifetime of.
func RegisterJobs(ctx context.Context, c *Container, cfg *config.Config, log zerolog.Logger) error {
	c.Ingestor.Start(ctx)
	c.Triangular.Start(ctx)
	c.CashCarry.Start(ctx)
	c.Decision.Start(ctx)

	if !cfg.BackupEnabled {
		log.Info().Msg("backup job disabled")
		return nil
	}
	if cfg.BackupBucket == "" {
		return fmt.Errorf("INARBIT_BACKUP_BUCKET must be set when backups are enabled")
	}

	c.Backups = reliability.NewBackupService(c.OrdersDB, cfg.DataDir+"/backup-staging", log)
	s3Backups, err := reliability.NewS3BackupService(ctx, c.Backups, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize s3 backup service: %w", err)
	}
	c.S3Backups = s3Backups
	c.S3Backups.Start(ctx, cfg.BackupInterval)

	log.Info().Str("bucket", cfg.BackupBucket).Dur("interval", cfg.BackupInterval).Msg("backup job started")
	return nil
}
