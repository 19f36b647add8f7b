// Package bootcfg loads the kernel's boot configuration from a TOML
// file, following the same read-file/unmarshal-onto-defaults/missing-
// file-means-defaults shape used elsewhere in the ecosystem for small
// CLI tool configs.
package bootcfg

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

/// Config is the boot-time configuration surface: how much physical
/// memory to simulate, how verbose to log, and the address-space
/// layout handed to every new process.
type Config struct {
	LogLevel string `toml:"log_level"`

	Memory struct {
		Frames int `toml:"frames"`
	} `toml:"memory"`

	AddressSpace struct {
		MinAddr uint64 `toml:"min_addr"`
		MaxAddr uint64 `toml:"max_addr"`
	} `toml:"address_space"`
}

/// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{LogLevel: "info"}
	c.Memory.Frames = 4096
	c.AddressSpace.MinAddr = 0x1000
	c.AddressSpace.MaxAddr = 0x0000800000000000
	return c
}

/// Load reads path and unmarshals it onto the defaults. A missing file
/// is not an error — Default() is returned unchanged — since a fresh
/// checkout shouldn't require hand-authoring a config file before the
/// kernel will boot.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading boot config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing boot config: %w", err)
	}
	return cfg, nil
}
