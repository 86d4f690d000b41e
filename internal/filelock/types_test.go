package filelock

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFileLockExpired(t *testing.T) {
	lock := FileLock{FilePath: "a.go", Owner: "A", AcquiredAt: 0, ExpiresAt: 300000}

	tests := []struct {
		now  int64
		want bool
	}{
		{now: 0, want: false},
		{now: 299999, want: false},
		{now: 300000, want: true},
		{now: 300001, want: true},
	}
	for _, tt := range tests {
		if got := lock.Expired(at(tt.now)); got != tt.want {
			t.Errorf("Expired(%d) = %v, want %v", tt.now, got, tt.want)
		}
	}
}

func TestFileLockRemaining(t *testing.T) {
	lock := FileLock{ExpiresAt: 60000}

	if got := lock.Remaining(at(30000)); got != 30*time.Second {
		t.Errorf("Remaining() = %v, want 30s", got)
	}
	if got := lock.Remaining(at(90000)); got != 0 {
		t.Errorf("Remaining() after expiry = %v, want 0", got)
	}
}

func TestConflictError(t *testing.T) {
	err := error(&ConflictError{FilePath: "/src/a.ts", Owner: "A", ExpiresAt: 300000})

	if !errors.Is(err, ErrLockConflict) {
		t.Error("errors.Is(ConflictError, ErrLockConflict) = false")
	}
	if errors.Is(err, ErrNotOwner) {
		t.Error("errors.Is(ConflictError, ErrNotOwner) = true")
	}
	msg := err.Error()
	for _, want := range []string{"/src/a.ts", "held by A", "until"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
}

func TestRegistrySweep(t *testing.T) {
	reg := NewRegistry(at(0))
	reg.Locks = []FileLock{
		{FilePath: "a.go", Owner: "A", ExpiresAt: 100},
		{FilePath: "b.go", Owner: "B", ExpiresAt: 500},
		{FilePath: "c.go", Owner: "C", ExpiresAt: 200},
	}

	expired := reg.Sweep(at(200))
	if len(expired) != 2 {
		t.Fatalf("Sweep() dropped %d locks, want 2", len(expired))
	}
	if len(reg.Locks) != 1 || reg.Locks[0].FilePath != "b.go" {
		t.Errorf("Locks after Sweep() = %v, want only b.go", reg.Locks)
	}

	expired = reg.Sweep(at(500))
	if len(expired) != 1 || reg.Locks == nil || len(reg.Locks) != 0 {
		t.Errorf("second Sweep() = %v, Locks = %v; want b.go dropped and an empty slice", expired, reg.Locks)
	}
}

func TestRegistryLive(t *testing.T) {
	reg := NewRegistry(at(0))
	reg.Locks = []FileLock{
		{FilePath: "z.go", ExpiresAt: 500},
		{FilePath: "m.go", ExpiresAt: 100},
		{FilePath: "a.go", ExpiresAt: 500},
	}

	live := reg.Live(at(100))
	if len(live) != 2 || live[0].FilePath != "a.go" || live[1].FilePath != "z.go" {
		t.Errorf("Live() = %v, want a.go and z.go", live)
	}
	if len(reg.Locks) != 3 {
		t.Errorf("Live() modified the registry: %v", reg.Locks)
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	reg := NewRegistry(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	reg.Locks = []FileLock{
		{FilePath: "/src/a.ts", Owner: "A", AcquiredAt: 1000, ExpiresAt: 301000},
		{FilePath: "/src/b.ts", Owner: "B", AcquiredAt: 2000, ExpiresAt: 302000},
	}

	data, err := EncodeRegistry(reg)
	if err != nil {
		t.Fatalf("EncodeRegistry() error: %v", err)
	}
	for _, field := range []string{`"locks"`, `"lastUpdated"`, `"filePath"`, `"acquiredAt"`, `"expiresAt"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("encoded registry missing %s", field)
		}
	}

	got, err := DecodeRegistry(data)
	if err != nil {
		t.Fatalf("DecodeRegistry() error: %v", err)
	}
	if !got.LastUpdated.Equal(reg.LastUpdated) {
		t.Errorf("LastUpdated = %v, want %v", got.LastUpdated, reg.LastUpdated)
	}
	if len(got.Locks) != len(reg.Locks) {
		t.Fatalf("decoded %d locks, want %d", len(got.Locks), len(reg.Locks))
	}
	for i := range reg.Locks {
		if got.Locks[i] != reg.Locks[i] {
			t.Errorf("lock %d = %+v, want %+v", i, got.Locks[i], reg.Locks[i])
		}
	}
}

func TestDecodeRegistry(t *testing.T) {
	reg, err := DecodeRegistry([]byte(`{"lastUpdated":"2025-03-01T12:00:00Z"}`))
	if err != nil {
		t.Fatalf("DecodeRegistry() error: %v", err)
	}
	if reg.Locks == nil {
		t.Error("Locks = nil, want empty slice")
	}

	if _, err := DecodeRegistry([]byte(`{not json`)); err == nil {
		t.Error("DecodeRegistry() of garbage succeeded")
	}
}

func TestDecodeRegistryCollapsesDuplicatePaths(t *testing.T) {
	data := []byte(`{"locks":[
		{"filePath":"/src/a.ts","owner":"A","acquiredAt":0,"expiresAt":300000},
		{"filePath":"/src/b.ts","owner":"B","acquiredAt":0,"expiresAt":300000},
		{"filePath":"/src/a.ts","owner":"C","acquiredAt":100000,"expiresAt":400000},
		{"filePath":"/src/a.ts","owner":"D","acquiredAt":0,"expiresAt":200000}
	],"lastUpdated":"2025-03-01T12:00:00Z"}`)

	reg, err := DecodeRegistry(data)
	if err != nil {
		t.Fatalf("DecodeRegistry() error: %v", err)
	}
	want := []FileLock{
		{FilePath: "/src/a.ts", Owner: "C", AcquiredAt: 100000, ExpiresAt: 400000},
		{FilePath: "/src/b.ts", Owner: "B", AcquiredAt: 0, ExpiresAt: 300000},
	}
	if len(reg.Locks) != len(want) {
		t.Fatalf("decoded %d locks, want %d: %+v", len(reg.Locks), len(want), reg.Locks)
	}
	for i := range want {
		if reg.Locks[i] != want[i] {
			t.Errorf("lock %d = %+v, want %+v", i, reg.Locks[i], want[i])
		}
	}
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "src/a.ts", want: "src/a.ts"},
		{in: "./src/a.ts", want: "src/a.ts"},
		{in: "src//pkg/../a.ts", want: "src/a.ts"},
		{in: "/abs/path.go", want: "/abs/path.go"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CleanPath(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidLock) {
				t.Errorf("CleanPath(%q) error = %v, want ErrInvalidLock", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("CleanPath(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestScopeKey(t *testing.T) {
	a := ScopeKey("/home/dev/project")
	if !strings.HasPrefix(a, "project-") {
		t.Errorf("ScopeKey() = %q, want project- prefix", a)
	}
	if a != ScopeKey("/home/dev/project/") {
		t.Error("ScopeKey() differs for equivalent paths")
	}
	if a == ScopeKey("/home/other/project") {
		t.Error("ScopeKey() collides for distinct paths with the same base name")
	}
	if got := ScopeKey("/"); !strings.HasPrefix(got, "root-") {
		t.Errorf("ScopeKey(/) = %q, want root- prefix", got)
	}
}

func TestMemoryStoreLoadDefault(t *testing.T) {
	store := NewMemoryStore()
	def := NewRegistry(at(0))

	got, err := store.Load(t.Context(), "scope", def)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got != def {
		t.Error("Load() of an absent scope did not return the default")
	}
}
