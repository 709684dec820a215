package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brbranch/reclass_bridge/internal/model"
	"github.com/brbranch/reclass_bridge/internal/transport/stdio"
	"github.com/brbranch/reclass_bridge/internal/transport/tcp"
)

// PipeOptions はpipeコマンドのオプション
type PipeOptions struct {
	Port    int
	Timeout time.Duration
}

func newPipeCommand() *cobra.Command {
	opts := &PipeOptions{}

	pipeCmd := &cobra.Command{
		Use:   "pipe",
		Short: "Forward request lines from stdin to a running server",
		Long: `pipe reads one JSON request per line from stdin, sends each to the
server over a single connection and writes each response line to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runPipe(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}

	pipeCmd.Flags().IntVarP(&opts.Port, "port", "p", model.DefaultPort, "Server port on 127.0.0.1")
	pipeCmd.Flags().DurationVar(&opts.Timeout, "timeout", DefaultCallTimeout, "Connect and per-request timeout")
	return pipeCmd
}

// runPipe は入力がEOFになるまでサーバーへ転送する
func runPipe(ctx context.Context, in io.Reader, out io.Writer, opts *PipeOptions) error {
	client, err := tcp.Dial(opts.Port, opts.Timeout)
	if err != nil {
		return err
	}
	defer client.Close()

	return stdio.New(client, stdio.WithReader(in), stdio.WithWriter(out)).Run(ctx)
}
