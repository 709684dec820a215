package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brbranch/reclass_bridge/internal/bootstrap"
	"github.com/brbranch/reclass_bridge/internal/model"
)

// ビルド時変数（-ldflags で変更可能）
var version = "dev"

// Options はserveコマンドのCLI引数
type Options struct {
	ConfigPath string
	Port       int
	LogLevel   string
	Target     string
	PID        int
	Store      string
	StorePath  string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand はルートコマンドを作成する
// サブコマンドなしの場合はserveとして動作
func newRootCommand() *cobra.Command {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:   "reclass-bridge",
		Short: "Memory-model bridge server",
		Long: `reclass-bridge exposes a class/node memory model and the attached
process memory over a line-delimited JSON command protocol on 127.0.0.1.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	bindServeFlags(rootCmd, opts)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	bindServeFlags(serveCmd, opts)

	rootCmd.AddCommand(serveCmd, newCallCommand(), newPipeCommand(), newConfigCommand(), newVersionCommand())
	return rootCmd
}

func bindServeFlags(cmd *cobra.Command, opts *Options) {
	f := cmd.Flags()
	f.StringVarP(&opts.ConfigPath, "config", "c", "", "Config file path (default: ~/.reclass-bridge/config.json)")
	f.IntVarP(&opts.Port, "port", "p", model.DefaultPort, "TCP port on 127.0.0.1")
	f.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&opts.Target, "target", "", "Target mode: none, procfs, simulated")
	f.IntVar(&opts.PID, "pid", 0, "Process ID for procfs target")
	f.StringVar(&opts.Store, "store", "", "Project store: memory, sqlite")
	f.StringVar(&opts.StorePath, "store-path", "", "SQLite database path (implies --store sqlite)")
}

// overrides は明示的に指定されたフラグだけを設定に反映するOptionを返す
func overrides(cmd *cobra.Command, opts *Options) []bootstrap.Option {
	changed := cmd.Flags().Changed
	var out []bootstrap.Option

	if changed("port") {
		out = append(out, func(cfg *model.Config) { cfg.Server.Port = opts.Port })
	}
	if changed("log-level") {
		out = append(out, func(cfg *model.Config) { cfg.Log.Level = opts.LogLevel })
	}
	if changed("target") {
		out = append(out, func(cfg *model.Config) { cfg.Target.Mode = opts.Target })
	}
	if changed("pid") {
		out = append(out, func(cfg *model.Config) {
			cfg.Target.PID = opts.PID
			// --pid のみ指定された場合は procfs
			if !changed("target") {
				cfg.Target.Mode = model.TargetProcfs
			}
		})
	}
	if changed("store") {
		out = append(out, func(cfg *model.Config) { cfg.Store.Type = opts.Store })
	}
	if changed("store-path") {
		out = append(out, func(cfg *model.Config) {
			path := opts.StorePath
			cfg.Store.Path = &path
			if !changed("store") {
				cfg.Store.Type = model.StoreTypeSQLite
			}
		})
	}
	return out
}

// runServe はserveコマンドを実行
func runServe(cmd *cobra.Command, opts *Options) error {
	cfg, err := bootstrap.LoadConfig(opts.ConfigPath, overrides(cmd, opts)...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg)
}

// serve は設定済みのアプリを起動し、ctx がキャンセルされるまでブロックする
func serve(ctx context.Context, cfg *model.Config) error {
	logger, err := bootstrap.NewLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	app, cleanup, err := bootstrap.Initialize(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := app.Run(ctx); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return err
	}
	logger.Info("reclass-bridge stopped")
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

// printVersion prints the version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "reclass-bridge version %s\n", version)
}
