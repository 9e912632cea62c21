package donations

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Config captures optional settings for a session. The zero value runs a
// plain interactive session with no auditing and no sync targets.
type Config struct {
	File        string            `json:"file"`
	AuditDB     string            `json:"audit_db"`
	Shell       ShellTargetConfig `json:"shell"`
	Meilisearch MeilisearchConfig `json:"meilisearch"`
}

// ShellTargetConfig names a command that receives change sets on stdin.
type ShellTargetConfig struct {
	Command string `json:"command"`
}

// IsEmpty reports whether no command is configured.
func (c ShellTargetConfig) IsEmpty() bool {
	return strings.TrimSpace(c.Command) == ""
}

// MeilisearchConfig captures connection settings for optional search synchronization.
type MeilisearchConfig struct {
	Host   string `json:"host"`
	APIKey string `json:"api_key"`
	Index  string `json:"index"`
}

// LoadConfig reads a JSON configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
