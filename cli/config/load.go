package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory.
const FileName = "netbackup.yaml"

// Load reads a YAML config file, expands environment variables, and
// decodes it over Defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SearchPaths lists where Resolve looks for a config file, in order.
func SearchPaths() []string {
	paths := []string{FileName}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "netbackup", "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".netbackup.yaml"))
	}
	return paths
}

// Resolve loads explicit when set. Otherwise it loads the first file
// found on SearchPaths, or returns Defaults when there is none.
// The returned path is empty when defaults are used.
func Resolve(explicit string) (*Config, string, error) {
	if explicit != "" {
		cfg, err := Load(explicit)
		return cfg, explicit, err
	}
	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := Load(path)
		return cfg, path, err
	}
	return Defaults(), "", nil
}

const defaultHeader = `# netbackup configuration
#
# Values support ${VAR} and ${VAR:-default} environment expansion.
# The password is hashed into a static token; anyone who can read the
# network traffic can replay it.

`

// WriteDefault writes the default configuration to path.
// It refuses to overwrite an existing file.
func WriteDefault(path string) error {
	body, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("config file already exists: %s", path)
		}
		return fmt.Errorf("create config file: %w", err)
	}
	if _, err := f.WriteString(defaultHeader); err != nil {
		_ = f.Close()
		return fmt.Errorf("write config file: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		return fmt.Errorf("write config file: %w", err)
	}
	return f.Close()
}
