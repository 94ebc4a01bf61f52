// conf/utils.go various util functions for configuration package
package conf

import (
	"os"
	"path/filepath"

	"github.com/tphakala/voicekit/internal/errors"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml, in
// order: working directory, user config directory, system directory.
func GetDefaultConfigPaths() ([]string, error) {
	userDir, err := userConfigDir()
	if err != nil {
		return nil, err
	}

	return []string{".", userDir, "/etc/voicekit"}, nil
}

// FindConfigFile returns the first config.yaml found in the default paths.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}

	for _, path := range configPaths {
		candidate := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.Newf("config file not found in %v", configPaths).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Context("operation", "find-config-file").
		Build()
}

func userConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}
	return filepath.Join(homeDir, ".config", "voicekit"), nil
}
