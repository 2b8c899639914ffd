// Package config loads a clone's configuration: defaults, an optional YAML
// settings file with environment expansion, then environment variables, in
// that order of increasing precedence. Validation runs at startup so a
// misconfigured clone never starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/omegalab/clonenet/pkg/clone"
)

// LLMConfig is the backend adapter configuration.
type LLMConfig struct {
	APIKey         string `yaml:"apiKey"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"baseUrl"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	TestMode       bool   `yaml:"testMode"`
}

// Timeout returns the per-request backend deadline.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Config is the complete configuration of one clone process.
type Config struct {
	Role               string            `yaml:"role"`
	Port               int               `yaml:"port"`
	WorkspaceRoot      string            `yaml:"workspaceRoot"`
	AuditRetentionDays int               `yaml:"auditRetentionDays"`
	PeerHost           string            `yaml:"peerHost"`
	Peers              map[string]string `yaml:"peers"`
	LLM                LLMConfig         `yaml:"llm"`
}

// AuditDir is where the day-rotated audit log lives.
func (c *Config) AuditDir() string {
	return filepath.Join(c.WorkspaceRoot, "audit")
}

// Defaults returns the baseline configuration before file and environment
// overrides. The port default is the generic worker port; role-specific
// default ports apply only when neither PORT nor the settings file set one.
func Defaults() *Config {
	return &Config{
		Port:               3001,
		WorkspaceRoot:      filepath.Join(os.TempDir(), "clonenet"),
		AuditRetentionDays: 30,
		PeerHost:           "localhost",
		LLM: LLMConfig{
			TimeoutSeconds: 60,
		},
	}
}

// Validate enforces startup invariants. A failure here is a configuration
// error: the process should exit with the diagnostic rather than run.
func (c *Config) Validate() error {
	if _, err := clone.RoleByID(c.Role); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid configuration: port %d is outside 1-65535", c.Port)
	}
	if c.AuditRetentionDays < 1 {
		return fmt.Errorf("invalid configuration: audit retention must be at least 1 day, got %d", c.AuditRetentionDays)
	}
	if c.WorkspaceRoot == "" {
		return fmt.Errorf("invalid configuration: workspace root must not be empty")
	}
	if !c.LLM.TestMode && c.LLM.APIKey == "" {
		return fmt.Errorf("invalid configuration: LLM_API_KEY is required outside test mode")
	}
	return nil
}
