package tcp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/brbranch/reclass_bridge/internal/model"
)

// Client は1本の接続でコマンドを順に送るクライアント
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

// Dial は 127.0.0.1:port に接続する
// timeout は接続と各往復の両方に使う
func Dial(port int, timeout time.Duration) (*Client, error) {
	addr := net.JoinHostPort(ListenHost, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &Client{
		conn:    conn,
		reader:  bufio.NewReaderSize(conn, 64*1024),
		timeout: timeout,
	}, nil
}

// RoundTrip は1行を送り、応答の1行（改行なし）を返す
func (c *Client) RoundTrip(line []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, err
		}
	}

	line = bytes.TrimRight(line, "\r\n")
	msg := make([]byte, 0, len(line)+1)
	msg = append(append(msg, line...), '\n')
	if _, err := c.conn.Write(msg); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	reply, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return bytes.TrimRight(reply, "\r\n"), nil
}

// Handle はサーバーへの転送をハンドラーとして提供する
// 通信エラーはエラーレスポンスとして返す
func (c *Client) Handle(ctx context.Context, line []byte) []byte {
	reply, err := c.RoundTrip(line)
	if err != nil {
		return model.EncodeLine(model.NewErrorEnvelope(err.Error()))
	}
	return reply
}

func (c *Client) Close() error {
	return c.conn.Close()
}
