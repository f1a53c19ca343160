package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/tailscale/hujson"

	"github.com/blockmindJS/blockmind/internal/command"
)

// ChannelKindConfig overrides or adds an outbound channel kind.
type ChannelKindConfig struct {
	Template *string `json:"template"`
	PaceMs   *int    `json:"pace_ms"`
}

// Config holds all application configuration loaded from config.json and
// the environment.
type Config struct {
	BridgeURL         string
	BridgeToken       string
	BridgeRedial      time.Duration
	ServerHost        string
	CommandPrefix     string
	DBPath            string
	LogLevel          string
	LogFormat         string
	APIAddr           string
	CooldownSweep     time.Duration
	ReplyTimeout      time.Duration
	NotifyBlacklisted bool
	CommandsDir       string
	CommandsPoll      time.Duration
	ChannelKinds      map[string]ChannelKindConfig
	Commands          map[string]command.Override
	Groups            map[string][]string
	Members           map[string][]string
	Messages          command.Messages
	HomeDir           string
}

// jsonConfig is an intermediate struct for JSON unmarshalling.
// Pointer types for numerics distinguish "missing" (nil) from "zero".
type jsonConfig struct {
	BridgeURL         string                       `json:"bridge_url"`
	BridgeToken       string                       `json:"bridge_token"`
	BridgeRedialSec   *int                         `json:"bridge_redial_sec"`
	ServerHost        string                       `json:"server_host"`
	CommandPrefix     string                       `json:"command_prefix"`
	DBPath            string                       `json:"db_path"`
	LogLevel          string                       `json:"log_level"`
	LogFormat         string                       `json:"log_format"`
	APIAddr           *string                      `json:"api_addr"`
	CooldownSweepSec  *int                         `json:"cooldown_sweep_sec"`
	ReplyTimeoutSec   *int                         `json:"reply_timeout_sec"`
	NotifyBlacklisted *bool                        `json:"notify_blacklisted"`
	CommandsDir       string                       `json:"commands_dir"`
	CommandsPollSec   *int                         `json:"commands_poll_sec"`
	ChannelKinds      map[string]ChannelKindConfig `json:"channel_kinds"`
	Commands          map[string]command.Override  `json:"commands"`
	Groups            map[string][]string          `json:"groups"`
	Members           map[string][]string          `json:"members"`
	Messages          map[string]string            `json:"messages"`
}

// envConfig holds the settings that may come from the environment. Set
// values win over config.json.
type envConfig struct {
	BridgeURL   string `env:"BLOCKMIND_BRIDGE_URL"`
	BridgeToken string `env:"BLOCKMIND_BRIDGE_TOKEN"`
	ServerHost  string `env:"BLOCKMIND_SERVER_HOST"`
	LogLevel    string `env:"BLOCKMIND_LOG_LEVEL"`
	DBPath      string `env:"BLOCKMIND_DB_PATH"`
	APIAddr     string `env:"BLOCKMIND_API_ADDR"`
}

// userHomeDir is a package-level variable to allow overriding in tests.
var userHomeDir = os.UserHomeDir

// readFile is a package-level variable to allow overriding in tests.
var readFile = os.ReadFile

// loadDotEnv is a package-level variable to allow overriding in tests.
var loadDotEnv = func(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Dir returns the blockmind home directory (~/.blockmind).
func Dir() (string, error) {
	home, err := userHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".blockmind"), nil
}

// Load reads ~/.blockmind/config.json, applies .env files and environment
// overrides, and returns a Config. A missing config file is allowed as long
// as the environment provides the required fields.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	if err := loadDotEnv(".env", filepath.Join(dir, ".env")); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	data, err := readFile(filepath.Join(dir, "config.json"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		data = []byte("{}")
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	standardJSON, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	var jc jsonConfig
	if err := json.Unmarshal(standardJSON, &jc); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg := &Config{
		BridgeURL:         stringDefault(ec.BridgeURL, jc.BridgeURL),
		BridgeToken:       stringDefault(ec.BridgeToken, jc.BridgeToken),
		BridgeRedial:      time.Duration(intPtrDefault(jc.BridgeRedialSec, 5)) * time.Second,
		ServerHost:        stringDefault(ec.ServerHost, jc.ServerHost),
		CommandPrefix:     stringDefault(jc.CommandPrefix, "@"),
		DBPath:            stringDefault(ec.DBPath, stringDefault(jc.DBPath, filepath.Join(dir, "blockmind.db"))),
		LogLevel:          stringDefault(ec.LogLevel, stringDefault(jc.LogLevel, "info")),
		LogFormat:         stringDefault(jc.LogFormat, "text"),
		APIAddr:           stringDefault(ec.APIAddr, stringPtrDefault(jc.APIAddr, "127.0.0.1:8333")),
		CooldownSweep:     time.Duration(intPtrDefault(jc.CooldownSweepSec, 300)) * time.Second,
		ReplyTimeout:      time.Duration(intPtrDefault(jc.ReplyTimeoutSec, 10)) * time.Second,
		NotifyBlacklisted: boolPtrDefault(jc.NotifyBlacklisted, true),
		CommandsDir:       jc.CommandsDir,
		CommandsPoll:      time.Duration(intPtrDefault(jc.CommandsPollSec, 5)) * time.Second,
		ChannelKinds:      jc.ChannelKinds,
		Commands:          jc.Commands,
		Groups:            jc.Groups,
		Members:           jc.Members,
		Messages:          mergeMessages(command.DefaultMessages(), jc.Messages),
		HomeDir:           dir,
	}

	var missing []string
	if cfg.BridgeURL == "" {
		missing = append(missing, "bridge_url")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required config fields: %v", missing)
	}
	for name, k := range cfg.ChannelKinds {
		if k.PaceMs != nil && *k.PaceMs < 0 {
			return nil, fmt.Errorf("channel kind %q: pace_ms must not be negative", name)
		}
	}

	return cfg, nil
}

// mergeMessages overlays configured rejection texts on the defaults. An
// explicitly empty text silences that rejection.
func mergeMessages(m command.Messages, overrides map[string]string) command.Messages {
	fields := map[string]*string{
		"invalid_arguments":        &m.InvalidArguments,
		"invalid_chat_type":        &m.InvalidChatType,
		"insufficient_permissions": &m.InsufficientPermissions,
		"blacklisted":              &m.Blacklisted,
		"not_active":               &m.NotActive,
		"on_cooldown":              &m.OnCooldown,
		"handler_error":            &m.HandlerError,
	}
	for k, v := range overrides {
		if f, ok := fields[k]; ok {
			*f = v
		}
	}
	return m
}

func stringDefault(val, def string) string {
	if val != "" {
		return val
	}
	return def
}

func stringPtrDefault(val *string, def string) string {
	if val != nil {
		return *val
	}
	return def
}

func intPtrDefault(val *int, def int) int {
	if val != nil {
		return *val
	}
	return def
}

func boolPtrDefault(val *bool, def bool) bool {
	if val != nil {
		return *val
	}
	return def
}
