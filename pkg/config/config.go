// Copyright 2026 © The Arbiter Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads Arbiter configuration from YAML files and the
// environment. Precedence is defaults < file < profile overlay < env.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Dispatch  DispatchConfig  `koanf:"dispatch"`
	Storage   StorageConfig   `koanf:"storage"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Chat      ChatConfig      `koanf:"chat"`
	MCP       MCPConfig       `koanf:"mcp"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type DispatchConfig struct {
	AgentName string        `koanf:"agent_name"`
	Deadline  time.Duration `koanf:"deadline"`
	LogBuffer int           `koanf:"log_buffer"`
}

type StorageConfig struct {
	Driver string `koanf:"driver"` // memory, sqlite
	Path   string `koanf:"path"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type ChatConfig struct {
	Playbook string `koanf:"playbook"`
	Window   int    `koanf:"window"`
}

type MCPConfig struct {
	Servers []MCPServerConfig `koanf:"servers"`
}

type MCPServerConfig struct {
	Name    string        `koanf:"name"`
	Command string        `koanf:"command"`
	Args    []string      `koanf:"args"`
	Timeout time.Duration `koanf:"timeout"`
}

// Load reads configuration from the given YAML file (optional) and the
// environment (ARBITER_DISPATCH_DEADLINE -> dispatch.deadline).
func Load(path string) (*Config, error) {
	var paths []string
	if path != "" {
		paths = append(paths, path)
	}
	return loadLayers(paths)
}

// LoadWithProfile loads the base config and, if a sibling file named
// config.<profile>.yaml exists, layers it on top of the base values.
func LoadWithProfile(path, profile string) (*Config, error) {
	var paths []string
	if path != "" {
		paths = append(paths, path)
	}
	if overlay := profileConfigPath(path, profile); overlay != "" {
		paths = append(paths, overlay)
	}
	return loadLayers(paths)
}

func loadLayers(paths []string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("dispatch.agent_name", "agent-main")
	k.Set("dispatch.deadline", "10s")
	k.Set("dispatch.log_buffer", 256)
	k.Set("storage.driver", "memory")
	k.Set("storage.path", "arbiter.db")
	k.Set("telemetry.exporter", "stdout")
	k.Set("telemetry.otlp_insecure", false)
	k.Set("chat.window", 20)

	for _, path := range paths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Section names never contain underscores; the key after the section may
	// (ARBITER_DISPATCH_AGENT_NAME -> dispatch.agent_name), so only the first
	// underscore separates section from key.
	if err := k.Load(env.Provider("ARBITER_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "ARBITER_"))
		return strings.Replace(key, "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// profileConfigPath resolves config.yaml + "dev" to config.dev.yaml if the
// overlay file exists, or "" otherwise.
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	overlay := strings.TrimSuffix(base, ext) + "." + profile + ext
	if _, err := os.Stat(overlay); err != nil {
		return ""
	}
	return overlay
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}
	switch c.Telemetry.Exporter {
	case "", "stdout", "otlp":
	default:
		return fmt.Errorf("unknown telemetry exporter: %s", c.Telemetry.Exporter)
	}
	if c.Dispatch.Deadline < 0 {
		return fmt.Errorf("dispatch deadline must not be negative")
	}
	return nil
}
