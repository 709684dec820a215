package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/brbranch/reclass_bridge/internal/model"
	"github.com/brbranch/reclass_bridge/internal/transport/tcp"
)

// DefaultCallTimeout はcallコマンドの既定タイムアウト
const DefaultCallTimeout = 10 * time.Second

// ErrCommandFailed はサーバーが success:false を返した場合のエラー
var ErrCommandFailed = errors.New("command failed")

// CallOptions はcallコマンドのオプション
type CallOptions struct {
	Port    int
	Timeout time.Duration
	Compact bool
}

func newCallCommand() *cobra.Command {
	opts := &CallOptions{}

	callCmd := &cobra.Command{
		Use:   "call <command> [json-args]",
		Short: "Send one command to a running server and print the response",
		Example: `  reclass-bridge call ping
  reclass-bridge call read_memory '{"address": "game.exe+0x10", "size": 16}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rawArgs string
			if len(args) > 1 {
				rawArgs = args[1]
			}
			return runCall(cmd.OutOrStdout(), opts, args[0], rawArgs)
		},
	}

	callCmd.Flags().IntVarP(&opts.Port, "port", "p", model.DefaultPort, "Server port on 127.0.0.1")
	callCmd.Flags().DurationVar(&opts.Timeout, "timeout", DefaultCallTimeout, "Connect and response timeout")
	callCmd.Flags().BoolVar(&opts.Compact, "compact", false, "Print the response as a single line")
	return callCmd
}

// buildRequest はコマンド名と引数（JSONオブジェクト文字列）からリクエスト行を作る
func buildRequest(command, rawArgs string) ([]byte, error) {
	req := model.Request{Command: &command}
	if rawArgs != "" {
		var args map[string]any
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return nil, fmt.Errorf("args must be a JSON object: %w", err)
		}
		req.Args = args
	}
	return append(model.EncodeLine(req), '\n'), nil
}

// runCall はサーバーに1コマンドを送り、応答を出力する
func runCall(w io.Writer, opts *CallOptions, command, rawArgs string) error {
	line, err := buildRequest(command, rawArgs)
	if err != nil {
		return err
	}

	client, err := tcp.Dial(opts.Port, opts.Timeout)
	if err != nil {
		return err
	}
	defer client.Close()

	reply, err := client.RoundTrip(line)
	if err != nil {
		return err
	}

	var resp map[string]any
	if err := json.Unmarshal(reply, &resp); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}

	if opts.Compact {
		_, err = fmt.Fprintln(w, string(reply))
	} else {
		var out []byte
		out, err = json.MarshalIndent(resp, "", "  ")
		if err == nil {
			fmt.Fprintln(w, string(out))
		}
	}
	if err != nil {
		return err
	}

	if ok, _ := resp["success"].(bool); !ok {
		msg, _ := resp["error"].(string)
		return fmt.Errorf("%w: %s", ErrCommandFailed, msg)
	}
	return nil
}
