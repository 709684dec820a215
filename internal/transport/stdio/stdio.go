// Package stdio implements the line protocol over stdin/stdout.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"

	"github.com/brbranch/reclass_bridge/internal/model"
)

// Handler は1行のリクエストを処理して1行のレスポンスを返す
type Handler interface {
	Handle(ctx context.Context, line []byte) []byte
}

// Server は標準入力から1行ずつ読み、応答を標準出力に書く
type Server struct {
	handler Handler
	reader  io.Reader
	writer  io.Writer
}

// Option はサーバーオプション
type Option func(*Server)

// WithReader はreaderを設定（テスト用）
func WithReader(r io.Reader) Option {
	return func(s *Server) {
		s.reader = r
	}
}

// WithWriter はwriterを設定（テスト用）
func WithWriter(w io.Writer) Option {
	return func(s *Server) {
		s.writer = w
	}
}

// New は新しいServerを生成
func New(handler Handler, opts ...Option) *Server {
	s := &Server{
		handler: handler,
		reader:  os.Stdin,
		writer:  os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run は入力がEOFになるか ctx がキャンセルされるまで処理する
// キャンセルは行の間でのみ確認する
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.reader)
	// バッファサイズをTCPセッションと同じ1MBに拡張
	scanner.Buffer(make([]byte, 0, 64*1024), model.MaxLineSize)
	out := bufio.NewWriter(s.writer)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		response := s.handler.Handle(ctx, line)
		if _, err := out.Write(response); err != nil {
			return err
		}
		if err := out.WriteByte('\n'); err != nil {
			return err
		}
		// 1行ごとに相手へ届ける
		if err := out.Flush(); err != nil {
			return err
		}
	}
	return scanner.Err()
}
