package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/brbranch/reclass_bridge/internal/bootstrap"
	"github.com/brbranch/reclass_bridge/internal/config"
)

// ErrConfigExists は設定ファイルが既に存在する場合のエラー
var ErrConfigExists = errors.New("config file already exists")

func newConfigCommand() *cobra.Command {
	var configPath string

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	configCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: ~/.reclass-bridge/config.json)")

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd.OutOrStdout(), configPath, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config (file and environment applied)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd.OutOrStdout(), configPath)
		},
	}

	configCmd.AddCommand(initCmd, showCmd)
	return configCmd
}

// runConfigInit はデフォルト設定を書き出す
func runConfigInit(w io.Writer, configPath string, force bool) error {
	mgr, err := config.NewManager(configPath)
	if err != nil {
		return err
	}
	path := mgr.GetConfigPath()

	if _, err := os.Stat(path); err == nil {
		if !force {
			return fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, path)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := mgr.Save(); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %s\n", path)
	return nil
}

// runConfigShow は起動時と同じ手順で読み込んだ設定を表示する
func runConfigShow(w io.Writer, configPath string) error {
	cfg, err := bootstrap.LoadConfig(configPath)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}
