package prebuild

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
)

// Everything a prebuild run needs. Usually filled from flags, optionally
// seeded from a TOML file first.
type Config struct {
	InputDir   string `toml:"input"`      // folder holding the factory img files
	OutDir     string `toml:"out"`        // destination for the prebuilt files
	KernelImg  string `toml:"kernel_img"` // optional custom kernel (zip or image)
	DtcPath    string `toml:"dtc"`        // device tree compiler executable
	Magiskboot string `toml:"magiskboot"` // magiskboot executable
	Debug      bool   `toml:"debug"`      // surface external tool output
}

func DefaultConfig() Config {
	return Config{
		DtcPath:    "dtc",
		Magiskboot: "magiskboot",
	}
}

// Load a config file on top of the defaults. Values a caller sets afterwards
// (e.g. from flags) win over the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// The img files a run cannot proceed without
var RequiredImages = []string{
	"vendor_kernel_boot.img",
	"dtbo.img",
	"vendor_dlkm.img",
	"system_dlkm.img",
	"boot.img",
}

// Validate paths and make them absolute (external tools run with varying
// working directories, so relative paths would silently break them).
func (c *Config) Validate() error {
	if c.InputDir == "" {
		return errors.New("input folder is required")
	}
	if c.OutDir == "" {
		return errors.New("output folder is required")
	}
	var err error
	if c.InputDir, err = filepath.Abs(c.InputDir); err != nil {
		return err
	}
	if c.OutDir, err = filepath.Abs(c.OutDir); err != nil {
		return err
	}
	if c.KernelImg != "" {
		if c.KernelImg, err = filepath.Abs(c.KernelImg); err != nil {
			return err
		}
	}
	missing := make([]string, 0)
	for _, name := range RequiredImages {
		if _, err := os.Stat(filepath.Join(c.InputDir, name)); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing input images: %v", missing)
	}
	return nil
}
