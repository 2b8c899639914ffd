package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/omegalab/clonenet/pkg/clone"
)

// Load assembles the configuration for roleID: defaults, then the optional
// YAML settings file (settingsPath or CLONENET_CONFIG; env-expanded), then
// environment variables. The result is validated.
func Load(roleID, settingsPath string) (*Config, error) {
	cfg := Defaults()
	cfg.Role = roleID

	if settingsPath == "" {
		settingsPath = os.Getenv("CLONENET_CONFIG")
	}
	if settingsPath != "" {
		if err := applySettingsFile(cfg, settingsPath); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	// Role-specific default port when nothing overrode the generic one.
	if cfg.Port == 3001 && os.Getenv("PORT") == "" {
		if role, err := clone.RoleByID(cfg.Role); err == nil {
			cfg.Port = role.DefaultPort
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySettingsFile decodes the env-expanded YAML settings over cfg.
func applySettingsFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settings file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(ExpandEnv(data), cfg); err != nil {
		return fmt.Errorf("parse settings file %s: %w", path, err)
	}
	slog.Info("Loaded settings file", "path", path)
	return nil
}

// applyEnv overrides cfg from environment variables, the highest-precedence
// source.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CLONE_ROLE"); v != "" {
		cfg.Role = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		} else {
			slog.Warn("Ignoring non-integer PORT", "value", v)
		}
	}
	if v := os.Getenv("WORKSPACE_ROOT"); v != "" {
		cfg.WorkspaceRoot = v
	}
	if v := os.Getenv("AUDIT_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			cfg.AuditRetentionDays = days
		} else {
			slog.Warn("Ignoring non-integer AUDIT_RETENTION_DAYS", "value", v)
		}
	}
	if v := os.Getenv("CLONE_PEER_HOST"); v != "" {
		cfg.PeerHost = v
	}
	if v := os.Getenv("CLONE_PEERS"); v != "" {
		if cfg.Peers == nil {
			cfg.Peers = make(map[string]string)
		}
		for id, url := range parsePeers(v) {
			cfg.Peers[id] = url
		}
	}

	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.LLM.TimeoutSeconds = secs
		} else {
			slog.Warn("Ignoring non-integer LLM_TIMEOUT_SECONDS", "value", v)
		}
	}
	if v := os.Getenv("LLM_TEST_MODE"); v != "" {
		cfg.LLM.TestMode = v == "true" || v == "1"
	}
}

// parsePeers decodes comma-separated id=url pairs: "beta=http://b:3002".
func parsePeers(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, url, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(id) == "" || strings.TrimSpace(url) == "" {
			slog.Warn("Ignoring malformed peer entry", "entry", pair)
			continue
		}
		out[strings.TrimSpace(id)] = strings.TrimSpace(url)
	}
	return out
}
