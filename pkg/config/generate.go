package config

import (
	"strings"

	gotoml "github.com/pelletier/go-toml/v2"
)

// GenerateConfigContent renders the built-in defaults as a starter config
// file with every value commented out
func GenerateConfigContent() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}

	rendered, err := gotoml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	return commentOutConfigValues(string(rendered)), nil
}

// commentOutConfigValues comments out all assignment lines, keeping blank
// lines, comments and section headers as-is
func commentOutConfigValues(content string) string {
	lines := strings.Split(content, "\n")
	var result []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			result = append(result, line)
			continue
		}

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			result = append(result, line)
			continue
		}

		result = append(result, "# "+line)
	}

	return strings.Join(result, "\n")
}
