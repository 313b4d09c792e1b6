package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - CMSBACKUP_CONFIG_PATH: config file location (default: ~/.config/cmsbackup.toml)
//   - CMSBACKUP_HOME: base directory for catalog, vault and logs (default: ~/.local/share/cmsbackup)
func GetDefaults() (map[string]string, error) {
	configPath, err := envOrHome("CMSBACKUP_CONFIG_PATH", ".config", "cmsbackup.toml")
	if err != nil {
		return nil, err
	}

	baseDir, err := envOrHome("CMSBACKUP_HOME", ".local", "share", "cmsbackup")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns $name when set, otherwise the path under the home directory.
func envOrHome(name string, elem ...string) (string, error) {
	if path := os.Getenv(name); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
