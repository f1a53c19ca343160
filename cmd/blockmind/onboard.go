package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tailscale/hujson"

	"github.com/blockmindJS/blockmind/internal/config"
)

var (
	configDir   = config.Dir
	osStat      = os.Stat
	osMkdirAll  = os.MkdirAll
	osWriteFile = os.WriteFile
)

func newOnboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "onboard",
		Aliases: []string{"o", "setup"},
		Short:   "Initialize configuration at ~/.blockmind/",
		Long:    "Copies the example config to ~/.blockmind/config.json for first-time setup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, _ := cmd.Flags().GetBool("force")
			bridgeURL, _ := cmd.Flags().GetString("bridge-url")
			path, err := onboard(force, bridgeURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite existing config")
	cmd.Flags().String("bridge-url", "", "Bridge websocket URL to write into the config")
	return cmd
}

func onboard(force bool, bridgeURL string) (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	configPath := filepath.Join(dir, "config.json")

	if _, err := osStat(configPath); err == nil && !force {
		return "", fmt.Errorf("config already exists at %s (use --force to overwrite)", configPath)
	}

	if err := osMkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	data := config.ExampleConfig
	if bridgeURL != "" {
		if data, err = setBridgeURL(data, bridgeURL); err != nil {
			return "", err
		}
	}

	if err := osWriteFile(configPath, data, 0o600); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return configPath, nil
}

// setBridgeURL rewrites bridge_url in a commented config, keeping the
// comments and layout intact.
func setBridgeURL(data []byte, url string) ([]byte, error) {
	v, err := hujson.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing example config: %w", err)
	}
	patch, err := json.Marshal([]map[string]any{
		{"op": "replace", "path": "/bridge_url", "value": url},
	})
	if err != nil {
		return nil, err
	}
	if err := v.Patch(patch); err != nil {
		return nil, fmt.Errorf("setting bridge_url: %w", err)
	}
	return v.Pack(), nil
}
