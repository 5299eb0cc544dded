package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tags and the rules that span several sections.
// Field errors are reported as "Section.Field: tag" lines.
func Validate(cfg *Config) error {
	if err := getValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msg := fmt.Sprintf("%s: failed on '%s'", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
				if fe.Param() != "" {
					msg += fmt.Sprintf(" (%s)", fe.Param())
				}
				msgs = append(msgs, msg)
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if cfg.Backup.Enabled {
		if cfg.Backup.Directory == "" && cfg.Backup.S3.Bucket == "" {
			return errors.New("backup: enabled but neither directory nor s3.bucket is set")
		}
		if _, err := ParseSchedule(cfg.Backup.Schedule); err != nil {
			return fmt.Errorf("backup.schedule: %w", err)
		}
	}

	return nil
}
