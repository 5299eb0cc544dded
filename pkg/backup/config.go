package backup

import (
	"context"

	"github.com/marmos91/distfs/pkg/config"
)

// TargetFromConfig picks the S3 target when a bucket is configured and the
// directory target otherwise.
func TargetFromConfig(ctx context.Context, cfg config.BackupConfig) (Target, error) {
	if cfg.S3.Bucket != "" {
		return NewS3TargetFromConfig(ctx, S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			ForcePathStyle:  cfg.S3.ForcePathStyle,
		})
	}
	return NewDirTarget(cfg.Directory)
}
