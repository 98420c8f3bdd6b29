package prebuild

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, path string, content []byte) {
	if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
		t.Fatalf("Couldn't create folder for %s: %s", path, err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Couldn't write %s: %s", path, err)
	}
}

// Create an input folder holding every required image
func makeInputDir(t *testing.T) string {
	dir := t.TempDir()
	for _, name := range RequiredImages {
		writeTestFile(t, filepath.Join(dir, name), []byte(name+" content"))
	}
	return dir
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prebuild.toml")
	writeTestFile(t, path, []byte("dtc = \"/opt/dtc/bin/dtc\"\ndebug = true\n"))
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Couldn't load config: %s", err)
	}
	if cfg.DtcPath != "/opt/dtc/bin/dtc" {
		t.Fatalf("Expected dtc override, got %s", cfg.DtcPath)
	}
	if !cfg.Debug {
		t.Fatalf("Expected debug to be set")
	}
	// Unset keys keep their defaults
	if cfg.Magiskboot != "magiskboot" {
		t.Fatalf("Expected default magiskboot, got %s", cfg.Magiskboot)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatalf("Expected error for missing config file")
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	writeTestFile(t, path, []byte("dtc = [unclosed"))
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("Expected error for malformed config file")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InputDir = makeInputDir(t)
	cfg.OutDir = filepath.Join(t.TempDir(), "out")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected valid config, got %s", err)
	}
	if !filepath.IsAbs(cfg.InputDir) || !filepath.IsAbs(cfg.OutDir) {
		t.Fatalf("Expected absolute paths after validation")
	}
}

func TestConfigValidate_MissingPaths(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Expected error for empty input folder")
	}
	cfg.InputDir = t.TempDir()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Expected error for empty output folder")
	}
}

func TestConfigValidate_MissingImages(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "boot.img"), []byte("boot"))
	cfg := DefaultConfig()
	cfg.InputDir = dir
	cfg.OutDir = filepath.Join(t.TempDir(), "out")
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("Expected error for missing input images")
	}
}
