package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "store.redis.db")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLock()...)
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateLock validates the LockConfig
func (c *Config) validateLock() []ValidationError {
	var errors []ValidationError

	// Persisted timestamps are milliseconds; anything shorter cannot be represented
	if c.Lock.DefaultTTL < time.Millisecond {
		errors = append(errors, ValidationError{
			Field:   "lock.default_ttl",
			Value:   c.Lock.DefaultTTL,
			Message: "must be at least 1ms",
		})
	}

	return errors
}

// validateStore validates the StoreConfig and the settings of the selected backend
func (c *Config) validateStore() []ValidationError {
	var errors []ValidationError
	s := c.Store

	if !slices.Contains(ValidBackends(), s.Backend) {
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Value:   s.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
		return errors
	}

	switch s.Backend {
	case BackendFile:
		if strings.ContainsRune(s.File.Dir, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "store.file.dir",
				Value:   s.File.Dir,
				Message: "path contains invalid null character",
			})
		}
		if s.File.LockTimeout <= 0 {
			errors = append(errors, ValidationError{
				Field:   "store.file.lock_timeout",
				Value:   s.File.LockTimeout,
				Message: "must be positive",
			})
		}

	case BackendSQLite:
		if strings.ContainsRune(s.SQLite.Path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "store.sqlite.path",
				Value:   s.SQLite.Path,
				Message: "path contains invalid null character",
			})
		}

	case BackendRedis:
		if s.Redis.Addr == "" {
			errors = append(errors, ValidationError{
				Field:   "store.redis.addr",
				Value:   s.Redis.Addr,
				Message: "must not be empty",
			})
		}
		if s.Redis.DB < 0 {
			errors = append(errors, ValidationError{
				Field:   "store.redis.db",
				Value:   s.Redis.DB,
				Message: "must be non-negative",
			})
		}
		if s.Redis.MutexTTL <= 0 {
			errors = append(errors, ValidationError{
				Field:   "store.redis.mutex_ttl",
				Value:   s.Redis.MutexTTL,
				Message: "must be positive",
			})
		}

	case BackendEtcd:
		if len(s.Etcd.Endpoints) == 0 {
			errors = append(errors, ValidationError{
				Field:   "store.etcd.endpoints",
				Value:   s.Etcd.Endpoints,
				Message: "must list at least one endpoint",
			})
		}
		if s.Etcd.DialTimeout <= 0 {
			errors = append(errors, ValidationError{
				Field:   "store.etcd.dial_timeout",
				Value:   s.Etcd.DialTimeout,
				Message: "must be positive",
			})
		}
		if s.Etcd.MaxRetries < 1 {
			errors = append(errors, ValidationError{
				Field:   "store.etcd.max_retries",
				Value:   s.Etcd.MaxRetries,
				Message: "must be at least 1",
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be non-negative; 0 disables rotation
	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
