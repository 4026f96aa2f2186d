package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if *cfg != (Config{}) {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestSaveLoadRoundTripAndPerms(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "kb")
	n := 3
	want := &Config{ServerURL: "http://kb.test", APIKey: "kb_live_abc", ProjectID: "p_1", Retries: &n}
	if err := Save(dir, want); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(filepath.Join(dir, configFile))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config perms: %v", info.Mode().Perm())
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got.ServerURL != want.ServerURL || got.APIKey != want.APIKey || got.Retries == nil || *got.Retries != 3 {
		t.Fatalf("round trip: %+v", got)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, configFile), []byte("{"), 0600)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSet(t *testing.T) {
	dir := t.TempDir()
	if err := Set(dir, "server_url", "http://kb.test/"); err != nil {
		t.Fatal(err)
	}
	if err := Set(dir, "refresh_interval", "10s"); err != nil {
		t.Fatal(err)
	}
	if err := Set(dir, "retries", "0"); err != nil {
		t.Fatal(err)
	}

	for _, bad := range [][2]string{
		{"refresh_interval", "soon"},
		{"retries", "-1"},
		{"colour", "blue"},
	} {
		if err := Set(dir, bad[0], bad[1]); err == nil {
			t.Errorf("Set(%q, %q): expected error", bad[0], bad[1])
		}
	}

	cfg, _ := Load(dir)
	if cfg.ServerURL != "http://kb.test" || cfg.RefreshInterval != "10s" || *cfg.Retries != 0 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	dir := t.TempDir()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := Update(dir, func(c *Config) error {
				n := 0
				if c.Retries != nil {
					n = *c.Retries
				}
				n++
				c.Retries = &n
				return nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	cfg, _ := Load(dir)
	if cfg.Retries == nil || *cfg.Retries != 10 {
		t.Fatalf("lost updates: %+v", cfg.Retries)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("KB_SERVER_URL", "")
	t.Setenv("KB_API_KEY", "")
	t.Setenv("KB_PROJECT", "")

	s := Resolve(&Config{})
	if s.ServerURL != DefaultServerURL || s.RefreshInterval != DefaultRefreshInterval || s.Retries != DefaultRetries {
		t.Fatalf("defaults: %+v", s)
	}

	s = Resolve(&Config{ServerURL: "http://file", APIKey: "file-key", ProjectID: "p_file", RefreshInterval: "5s"})
	if s.ServerURL != "http://file" || s.ProjectID != "p_file" || s.RefreshInterval != 5*time.Second {
		t.Fatalf("file values: %+v", s)
	}

	t.Setenv("KB_SERVER_URL", "http://env/")
	t.Setenv("KB_API_KEY", "env-key")
	t.Setenv("KB_PROJECT", "p_env")
	s = Resolve(&Config{ServerURL: "http://file", APIKey: "file-key", ProjectID: "p_file"})
	if s.ServerURL != "http://env" || s.APIKey != "env-key" || s.ProjectID != "p_env" {
		t.Fatalf("env overrides: %+v", s)
	}
}

func TestDirOverride(t *testing.T) {
	t.Setenv("KB_CONFIG_DIR", "/tmp/kb-test-config")
	dir, err := Dir()
	if err != nil || dir != "/tmp/kb-test-config" {
		t.Fatalf("Dir: %q %v", dir, err)
	}
}

func TestMaskedKey(t *testing.T) {
	if got := MaskedKey("kb_live_abcdefghijkl"); got != "kb_live_abcd********" {
		t.Errorf("MaskedKey: %q", got)
	}
	if got := MaskedKey("short"); got != "*****" {
		t.Errorf("MaskedKey short: %q", got)
	}
}
