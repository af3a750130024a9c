package reliability

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/aristath/inarbit/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3BackupService periodically snapshots the relational store and uploads
// it to an S3-compatible bucket (Cloudflare R2 included, via a custom
// endpoint), grounded on the teacher's R2BackupService upload/list/rotate
// shape but pointed at this core's single-database backup.
type S3BackupService struct {
	client    *s3.Client
	uploader  *manager.Uploader
	backups   *BackupService
	bucket    string
	retention int
	log       zerolog.Logger

	ticker   *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewS3BackupService builds an S3/R2 client from the AWS default
// credential chain, optionally pointed at a custom endpoint for
// S3-compatible object stores.
func NewS3BackupService(ctx context.Context, backups *BackupService, cfg *config.Config, log zerolog.Logger) (*S3BackupService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BackupS3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BackupS3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3BackupService{
		client:    client,
		uploader:  manager.NewUploader(client),
		backups:   backups,
		bucket:    cfg.BackupBucket,
		retention: cfg.BackupRetentionDays,
		log:       log.With().Str("service", "s3_backup").Logger(),
		stopChan:  make(chan struct{}),
	}, nil
}

// Start runs one backup immediately, then repeats every interval until
// Stop is called (the same ticker+stopChan+sync.Once lifecycle the
// ingestor/scanners use).
func (s *S3BackupService) Start(ctx context.Context, interval time.Duration) {
	s.runOnce(ctx)
	s.ticker = time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.runOnce(ctx)
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the periodic backup loop.
func (s *S3BackupService) Stop() {
	s.stopOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopChan)
	})
}

func (s *S3BackupService) runOnce(ctx context.Context) {
	if err := s.BackupAndUpload(ctx); err != nil {
		s.log.Error().Err(err).Msg("backup and upload failed")
		return
	}
	if err := s.RotateRemote(ctx); err != nil {
		s.log.Warn().Err(err).Msg("remote backup rotation failed")
	}
}

// BackupAndUpload creates a local snapshot, uploads it, then removes the
// local copy (the bucket is the durable record; local disk is staging).
func (s *S3BackupService) BackupAndUpload(ctx context.Context) error {
	snap, err := s.backups.CreateSnapshot()
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(snap.Path)

	f, err := os.Open(snap.Path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(snap.Filename),
		Body:   f,
		Metadata: map[string]string{
			"checksum": snap.Checksum,
		},
	}); err != nil {
		return fmt.Errorf("upload to bucket %s: %w", s.bucket, err)
	}

	s.log.Info().
		Str("bucket", s.bucket).
		Str("key", snap.Filename).
		Int64("size_bytes", snap.SizeBytes).
		Msg("backup uploaded")

	if err := s.backups.RotateLocalSnapshots(0); err != nil {
		s.log.Warn().Err(err).Msg("failed to clean staging directory")
	}
	return nil
}

// RemoteBackup describes one object in the backup bucket.
type RemoteBackup struct {
	Key          string
	SizeBytes    int64
	LastModified time.Time
}

// ListRemote lists every backup object in the bucket, newest first.
func (s *S3BackupService) ListRemote(ctx context.Context) ([]RemoteBackup, error) {
	prefix := s.backups.db.Name() + "-"
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("list bucket %s: %w", s.bucket, err)
	}

	backups := make([]RemoteBackup, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key == nil {
			continue
		}
		rb := RemoteBackup{Key: *obj.Key}
		if obj.Size != nil {
			rb.SizeBytes = *obj.Size
		}
		if obj.LastModified != nil {
			rb.LastModified = *obj.LastModified
		}
		backups = append(backups, rb)
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].LastModified.After(backups[j].LastModified) })
	return backups, nil
}

// RotateRemote deletes bucket objects older than the retention window,
// always keeping at least minBackupsToKeep regardless of age.
const minBackupsToKeep = 3

func (s *S3BackupService) RotateRemote(ctx context.Context) error {
	if s.retention <= 0 {
		return nil
	}
	backups, err := s.ListRemote(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= minBackupsToKeep {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -s.retention)
	deleted := 0
	for i, b := range backups {
		if i < minBackupsToKeep || b.LastModified.After(cutoff) {
			continue
		}
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(b.Key),
		}); err != nil {
			s.log.Error().Err(err).Str("key", b.Key).Msg("failed to delete old backup")
			continue
		}
		deleted++
	}
	s.log.Info().Int("deleted", deleted).Int("remaining", len(backups)-deleted).Msg("remote backup rotation completed")
	return nil
}
