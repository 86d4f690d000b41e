package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRotatingWriterRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", LogFileName)
	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer rw.Close()

	chunk := bytes.Repeat([]byte("x"), 600<<10)
	for i := range 4 {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write #%d failed: %v", i, err)
		}
	}

	for _, name := range []string{path, path + ".1", path + ".2"} {
		info, err := os.Stat(name)
		if err != nil {
			t.Errorf("expected %s to exist: %v", filepath.Base(name), err)
			continue
		}
		if info.Size() != int64(len(chunk)) {
			t.Errorf("%s size = %d, want %d", filepath.Base(name), info.Size(), len(chunk))
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Errorf("expected no third backup, stat error = %v", err)
	}
}

func TestRotatingWriterWithoutBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), LogFileName)
	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 0})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer rw.Close()

	chunk := bytes.Repeat([]byte("y"), 700<<10)
	for range 2 {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() != int64(len(chunk)) {
		t.Errorf("size = %d, want %d", info.Size(), len(chunk))
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Errorf("expected no backup, stat error = %v", err)
	}
}

func TestRotatingWriterDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), LogFileName)
	rw, err := NewRotatingWriter(path, RotationConfig{})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer rw.Close()

	chunk := bytes.Repeat([]byte("z"), 512<<10)
	for range 4 {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Errorf("rotation happened with MaxSizeMB = 0")
	}
}

func TestRotatingWriterClosed(t *testing.T) {
	rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), LogFileName), DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close returned error: %v", err)
	}
	if _, err := rw.Write([]byte("late")); err == nil {
		t.Error("Write after Close succeeded")
	}
}
