package adbconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// resetCache clears the package-level memoized Config so each test starts
// from Load's zero state instead of whatever an earlier test cached.
func resetCache(t *testing.T) {
	t.Helper()
	cached = nil
	loaded = false
	t.Cleanup(func() {
		cached = nil
		loaded = false
	})
}

func TestLoadAppliesDefaultsWithNoEnvFile(t *testing.T) {
	resetCache(t)
	t.Chdir(t.TempDir())

	cfg := Load()
	if cfg.AuthTimeoutMs != 100 || cfg.TCPPort != 5555 || cfg.FastbootChunkKB != 1024 {
		t.Errorf("defaults = %+v, want AuthTimeoutMs=100 TCPPort=5555 FastbootChunkKB=1024", cfg)
	}
}

func TestLoadReadsEnvFileFromProjectRoot(t *testing.T) {
	resetCache(t)
	dir := t.TempDir()
	envFile := "ADB_DEFAULT_SERIAL=emulator-5554\nADB_TCP_PORT=5557\n# comment line\n\nADB_KEY_PATH = /tmp/adbkey\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(envFile), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Chdir(dir)

	cfg := Load()
	if cfg.DefaultSerial != "emulator-5554" {
		t.Errorf("DefaultSerial = %q, want %q", cfg.DefaultSerial, "emulator-5554")
	}
	if cfg.TCPPort != 5557 {
		t.Errorf("TCPPort = %d, want 5557", cfg.TCPPort)
	}
	if cfg.KeyPath != "/tmp/adbkey" {
		t.Errorf("KeyPath = %q, want %q", cfg.KeyPath, "/tmp/adbkey")
	}
}

func TestLoadEnvVarsOverrideEnvFile(t *testing.T) {
	resetCache(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ADB_TCP_PORT=5557\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Chdir(dir)
	t.Setenv("ADB_TCP_PORT", "6000")

	cfg := Load()
	if cfg.TCPPort != 6000 {
		t.Errorf("TCPPort = %d, want 6000 (env var should win over .env file)", cfg.TCPPort)
	}
}

func TestLoadCachesAcrossCalls(t *testing.T) {
	resetCache(t)
	t.Chdir(t.TempDir())
	t.Setenv("ADB_TCP_PORT", "7000")

	first := Load()
	t.Setenv("ADB_TCP_PORT", "8000")
	second := Load()

	if first != second {
		t.Error("Load() returned a different *Config on the second call, want the cached instance")
	}
	if second.TCPPort != 7000 {
		t.Errorf("TCPPort = %d, want 7000 (cached value, not the later env change)", second.TCPPort)
	}
}

func TestAuthTimeoutConvertsMillisecondsToDuration(t *testing.T) {
	cfg := &Config{AuthTimeoutMs: 250}
	if got := cfg.AuthTimeout(); got != 250*time.Millisecond {
		t.Errorf("AuthTimeout() = %v, want %v", got, 250*time.Millisecond)
	}
}
