package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	if len(errs) != 0 {
		t.Errorf("Default config should be valid, got %d errors: %v", len(errs), errs)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(c *Config)
		wantField string
	}{
		{
			name:      "zero ttl",
			modify:    func(c *Config) { c.Lock.DefaultTTL = 0 },
			wantField: "lock.default_ttl",
		},
		{
			name:      "sub-millisecond ttl",
			modify:    func(c *Config) { c.Lock.DefaultTTL = time.Microsecond },
			wantField: "lock.default_ttl",
		},
		{
			name:      "unknown backend",
			modify:    func(c *Config) { c.Store.Backend = "consul" },
			wantField: "store.backend",
		},
		{
			name:      "file lock timeout",
			modify:    func(c *Config) { c.Store.File.LockTimeout = 0 },
			wantField: "store.file.lock_timeout",
		},
		{
			name: "sqlite null byte",
			modify: func(c *Config) {
				c.Store.Backend = BackendSQLite
				c.Store.SQLite.Path = "bad\x00path"
			},
			wantField: "store.sqlite.path",
		},
		{
			name: "redis empty addr",
			modify: func(c *Config) {
				c.Store.Backend = BackendRedis
				c.Store.Redis.Addr = ""
			},
			wantField: "store.redis.addr",
		},
		{
			name: "redis negative db",
			modify: func(c *Config) {
				c.Store.Backend = BackendRedis
				c.Store.Redis.DB = -1
			},
			wantField: "store.redis.db",
		},
		{
			name: "etcd no endpoints",
			modify: func(c *Config) {
				c.Store.Backend = BackendEtcd
				c.Store.Etcd.Endpoints = nil
			},
			wantField: "store.etcd.endpoints",
		},
		{
			name: "etcd zero retries",
			modify: func(c *Config) {
				c.Store.Backend = BackendEtcd
				c.Store.Etcd.MaxRetries = 0
			},
			wantField: "store.etcd.max_retries",
		},
		{
			name:      "bad log level",
			modify:    func(c *Config) { c.Logging.Level = "verbose" },
			wantField: "logging.level",
		},
		{
			name:      "negative max size",
			modify:    func(c *Config) { c.Logging.MaxSizeMB = -1 },
			wantField: "logging.max_size_mb",
		},
		{
			name:      "negative backups",
			modify:    func(c *Config) { c.Logging.MaxBackups = -1 },
			wantField: "logging.max_backups",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("Validate() returned %d errors, want 1: %v", len(errs), errs)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestConfig_Validate_InactiveBackendIgnored(t *testing.T) {
	cfg := Default()
	cfg.Store.Redis.Addr = ""
	cfg.Store.Etcd.Endpoints = nil

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("settings of an unused backend should not be validated, got %v", errs)
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Lock.DefaultTTL = -time.Second
	cfg.Logging.Level = "loud"

	if errs := cfg.Validate(); len(errs) != 2 {
		t.Errorf("Validate() returned %d errors, want 2: %v", len(errs), errs)
	}
}

func TestValidLogLevels(t *testing.T) {
	want := []string{"debug", "info", "warn", "error"}
	got := ValidLogLevels()
	if len(got) != len(want) {
		t.Fatalf("ValidLogLevels() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ValidLogLevels()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
