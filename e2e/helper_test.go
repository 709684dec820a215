//go:build e2e

package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/brbranch/reclass_bridge/internal/bootstrap"
	"github.com/brbranch/reclass_bridge/internal/config"
	"github.com/brbranch/reclass_bridge/internal/model"
)

// Response はワイヤ上の1レスポンス
type Response map[string]any

func (r Response) OK() bool {
	ok, _ := r["success"].(bool)
	return ok
}

func (r Response) ErrMsg() string {
	msg, _ := r["error"].(string)
	return msg
}

func (r Response) Str(key string) string {
	s, _ := r[key].(string)
	return s
}

func (r Response) Int(key string) int {
	n, _ := r[key].(float64)
	return int(n)
}

func (r Response) Object(key string) Response {
	m, _ := r[key].(map[string]any)
	return Response(m)
}

func (r Response) List(key string) []Response {
	items, _ := r[key].([]any)
	out := make([]Response, 0, len(items))
	for _, item := range items {
		m, _ := item.(map[string]any)
		out = append(out, Response(m))
	}
	return out
}

// testConfig はポート0・シミュレーション対象の設定を返す
func testConfig(t *testing.T) *model.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig(filepath.Join(dir, "config.json"), filepath.Join(dir, "data"))
	cfg.Server.Port = 0
	return cfg
}

// startApp はアプリを起動し、待ち受けアドレスと停止関数を返す
func startApp(t *testing.T, cfg *model.Config) (string, func()) {
	t.Helper()

	app, cleanup, err := bootstrap.Initialize(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool { return app.Server.Addr() != nil }, 5*time.Second, 10*time.Millisecond)

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("app did not stop")
		}
		cleanup()
	}
	t.Cleanup(stop)
	return app.Server.Addr().String(), stop
}

// Client は1本の接続で複数コマンドを送るテスト用クライアント
type Client struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, addr string) *Client {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &Client{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

// Raw は1行をそのまま送り、応答をパースする
func (c *Client) Raw(line string) Response {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetDeadline(time.Now().Add(5*time.Second)))
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)

	reply, err := c.reader.ReadBytes('\n')
	require.NoError(c.t, err)

	var resp Response
	require.NoError(c.t, json.Unmarshal(reply, &resp), "reply: %s", reply)
	return resp
}

// Call はコマンドを送る。args が nil の場合は省略する
func (c *Client) Call(command string, args map[string]any) Response {
	c.t.Helper()
	req := map[string]any{"command": command}
	if args != nil {
		req["args"] = args
	}
	line, err := json.Marshal(req)
	require.NoError(c.t, err)
	return c.Raw(string(line))
}

// MustCall は成功を前提にコマンドを送る
func (c *Client) MustCall(command string, args map[string]any) Response {
	c.t.Helper()
	resp := c.Call(command, args)
	require.True(c.t, resp.OK(), "%s failed: %s", command, resp.ErrMsg())
	return resp
}
