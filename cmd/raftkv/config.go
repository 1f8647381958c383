package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// serveFlags holds the resolved configuration for the serve command, after
// flags have been overlaid with an optional --config file.
type serveFlags struct {
	NodeID      uint64   `yaml:"node_id"`
	RaftAddress string   `yaml:"raft_addr"`
	KVAddress   string   `yaml:"kv_addr"`
	DataDir     string   `yaml:"data_dir"`
	Peers       []string `yaml:"peers"`
	MetricsAddr string   `yaml:"metrics_addr"`
}

// loadServeConfig reads serve's flags, then applies any field set in
// --config on top of them. The config file is for static peer lists and
// deployment-specific overrides; flags remain the primary interface and
// still win for anything the file leaves zero-valued.
func loadServeConfig(cmd *cobra.Command) (serveFlags, error) {
	var f serveFlags
	var err error

	if f.NodeID, err = cmd.Flags().GetUint64("node-id"); err != nil {
		return f, err
	}
	if f.RaftAddress, err = cmd.Flags().GetString("raft-addr"); err != nil {
		return f, err
	}
	if f.KVAddress, err = cmd.Flags().GetString("kv-addr"); err != nil {
		return f, err
	}
	if f.DataDir, err = cmd.Flags().GetString("data-dir"); err != nil {
		return f, err
	}
	if f.Peers, err = cmd.Flags().GetStringSlice("peers"); err != nil {
		return f, err
	}
	if f.MetricsAddr, err = cmd.Flags().GetString("metrics-addr"); err != nil {
		return f, err
	}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return f, err
	}
	if configPath == "" {
		return f, nil
	}

	overlay, err := loadConfigFile(configPath)
	if err != nil {
		return f, err
	}

	if overlay.NodeID != 0 {
		f.NodeID = overlay.NodeID
	}
	if overlay.RaftAddress != "" {
		f.RaftAddress = overlay.RaftAddress
	}
	if overlay.KVAddress != "" {
		f.KVAddress = overlay.KVAddress
	}
	if overlay.DataDir != "" {
		f.DataDir = overlay.DataDir
	}
	if len(overlay.Peers) > 0 {
		f.Peers = overlay.Peers
	}
	if overlay.MetricsAddr != "" {
		f.MetricsAddr = overlay.MetricsAddr
	}

	if f.NodeID == 0 {
		return f, fmt.Errorf("node id must be nonzero (set --node-id or node_id in %s)", configPath)
	}
	return f, nil
}

func loadConfigFile(path string) (serveFlags, error) {
	var f serveFlags
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f, nil
}
