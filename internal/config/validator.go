package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// StorageDrivers lists the accepted storage.driver values.
var StorageDrivers = []string{"memory", "file", "sqlite", "redis"}

// RegisterCustomValidators registers the config-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("storage_driver", validateStorageDriver); err != nil {
		return fmt.Errorf("failed to register storage_driver validator: %w", err)
	}
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	return nil
}

func validateStorageDriver(fl validator.FieldLevel) bool {
	driver := fl.Field().String()
	for _, d := range StorageDrivers {
		if driver == d {
			return true
		}
	}
	return false
}

// validateDuration accepts any non-negative time.ParseDuration string.
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d >= 0
}

// Validate validates the Config using struct tags and cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	if err := c.Storage.validateBackend("storage"); err != nil {
		return err
	}
	if b := c.Backup.Storage; b != nil {
		if err := b.validateBackend("backup.storage"); err != nil {
			return err
		}
		if b.sameBackend(c.Storage) {
			return errors.New("backup.storage must differ from storage; omit it to share the primary backend")
		}
	}
	return nil
}

// validateBackend checks that the selected driver has what it needs.
func (s StorageConfig) validateBackend(section string) error {
	switch s.Driver {
	case "file":
		if s.Dir == "" {
			return fmt.Errorf("%s.dir is required for the file driver", section)
		}
	case "sqlite":
		if s.SQLitePath == "" {
			return fmt.Errorf("%s.sqlite_path is required for the sqlite driver", section)
		}
	case "redis":
		if s.RedisAddr == "" {
			return fmt.Errorf("%s.redis_addr is required for the redis driver", section)
		}
	}
	return nil
}

// sameBackend reports whether s and o would open the same on-disk data.
// Two file stores on one directory would contend for the same lock files.
func (s StorageConfig) sameBackend(o StorageConfig) bool {
	if s.Driver != o.Driver {
		return false
	}
	switch s.Driver {
	case "file":
		return s.Dir == o.Dir
	case "sqlite":
		return s.SQLitePath == o.SQLitePath
	}
	return false
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch tag := e.Tag(); tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "storage_driver":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(StorageDrivers, ", "))
	case "duration":
		return fmt.Sprintf("%s must be a duration like 500ms or 2s", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
