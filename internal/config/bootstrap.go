package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Exists checks if a configuration file exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CreateDefault writes the default configuration to path
func CreateDefault(path string) error {
	return Write(path, Default())
}

// Write writes cfg to path with the header comment
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	content := configHeader + string(data)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// configHeader is the comment header for printdesk.yaml
const configHeader = `# PrintDesk Configuration
#
# Environment Variable Support:
#   - Use ${VAR_NAME} or ${VAR_NAME:-default} in values
#   - Or set overrides:
#     PRINTDESK_API_URL, PRINTDESK_API_TOKEN, CHROME_PATH
#     PRINTDESK_SERVER_HOST, PRINTDESK_SERVER_PORT, PRINTDESK_SERVER_DEBUG
#     PRINTDESK_DB_PATH, PRINTDESK_LOG_LEVEL, PRINTDESK_LOG_FORMAT
#

`
