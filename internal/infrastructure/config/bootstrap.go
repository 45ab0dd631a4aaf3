package config

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Bootstrap ensures ~/.bytebot exists with a default config.yaml on first
// run. Existing files are never touched.
func Bootstrap(logger *zap.Logger) error {
	dir := GlobalDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	defaults := map[string]any{
		"server": map[string]any{
			"host": "0.0.0.0",
			"port": 9991,
			"mode": "local",
		},
		"database": map[string]any{
			"type": "sqlite",
			"dsn":  filepath.Join(dir, "bytebot-agent.db"),
		},
		"log": map[string]any{
			"level":  "info",
			"format": "json",
		},
		"agent": map[string]any{
			"desktop_url":  "http://localhost:9990",
			"proxy_models": []string{},
		},
	}

	data, err := yaml.Marshal(defaults)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}

	logger.Info("Wrote default config", zap.String("path", path))
	return nil
}
