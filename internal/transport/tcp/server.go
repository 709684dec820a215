// Package tcp implements the loopback TCP transport for reclass-bridge.
//
// One JSON request per line in, one JSON response per line out. Each
// accepted connection is served by its own goroutine.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ListenHost はループバックのみで listen する
const ListenHost = "127.0.0.1"

// 既定値
const (
	DefaultReadTimeout   = 30 * time.Second
	DefaultWriteTimeout  = 30 * time.Second
	DefaultShutdownGrace = 5 * time.Second
)

// ErrAlreadyStarted は Start が2回呼ばれた場合のエラー
var ErrAlreadyStarted = errors.New("server already started")

// Handler はリクエスト1行を処理するインターフェース
type Handler interface {
	Handle(ctx context.Context, requestBytes []byte) []byte
}

// Config はTCPサーバー設定
type Config struct {
	Port          int           // 0 なら空きポート（テスト用）
	ReadTimeout   time.Duration // 1行を待つ最大時間
	WriteTimeout  time.Duration // 1レスポンスの書き込み最大時間
	ShutdownGrace time.Duration // Stop 時に処理中セッションを待つ時間
}

// BindError は listen できなかった場合のエラー
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Server はTCPサーバー
type Server struct {
	handler Handler
	config  Config
	logger  *zap.Logger

	mu         sync.Mutex
	listener   net.Listener
	acceptDone chan struct{}
	live       map[uint64]*session

	// baseCtx はセッションに渡すコンテキスト。猶予期間の後にキャンセルする
	baseCtx context.Context
	cancel  context.CancelFunc

	sessions sync.WaitGroup
	active   atomic.Int64
	nextID   atomic.Uint64
	stopping atomic.Bool
	stopOnce sync.Once
}

// New は新しいServerを生成
func New(handler Handler, config Config, logger *zap.Logger) *Server {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = DefaultShutdownGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handler: handler,
		config:  config,
		logger:  logger.Named("tcp"),
		baseCtx: ctx,
		cancel:  cancel,
		live:    make(map[uint64]*session),
	}
}

// Start は listen して accept ループを開始する（ブロックしない）
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil || s.stopping.Load() {
		return ErrAlreadyStarted
	}

	addr := net.JoinHostPort(ListenHost, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &BindError{Addr: addr, Err: err}
	}

	s.listener = ln
	s.acceptDone = make(chan struct{})
	go s.acceptLoop(ln, s.acceptDone)

	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr は listen 中のアドレスを返す（未起動ならnil）
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ActiveSessions は処理中のセッション数を返す
func (s *Server) ActiveSessions() int {
	return int(s.active.Load())
}

// Run はサーバーを起動し、contextがキャンセルされるまで実行
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownGrace)
	defer cancel()
	return s.Stop(stopCtx)
}

// Stop は新規接続の受付を止め、処理中のセッションを猶予期間だけ待つ
// 待機中のセッションはすぐに閉じる
// 何度呼んでもよい。猶予を超えたセッションは強制終了せずに放置する
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)

		s.mu.Lock()
		ln, acceptDone := s.listener, s.acceptDone
		s.mu.Unlock()

		if ln != nil {
			if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("failed to close listener", zap.Error(err))
			}
			// accept ループが終わってから待つ（WaitGroup.Add との競合を避ける）
			<-acceptDone
		}

		// 待機中のセッションを起こす。処理中のものは応答を返してから終わる
		s.mu.Lock()
		live := make([]*session, 0, len(s.live))
		for _, sess := range s.live {
			live = append(live, sess)
		}
		s.mu.Unlock()
		for _, sess := range live {
			sess.interrupt()
		}

		done := make(chan struct{})
		go func() {
			s.sessions.Wait()
			close(done)
		}()

		grace := time.NewTimer(s.config.ShutdownGrace)
		defer grace.Stop()

		select {
		case <-done:
			s.logger.Info("server stopped")
		case <-grace.C:
			s.logger.Warn("shutdown grace period exceeded, abandoning sessions",
				zap.Int("active", s.ActiveSessions()))
		case <-ctx.Done():
			s.logger.Warn("shutdown interrupted, abandoning sessions",
				zap.Int("active", s.ActiveSessions()))
		}
		s.cancel()
	})
	return nil
}

func (s *Server) forget(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, id)
}

// acceptLoop は listener が閉じられるまで接続を受け付ける
func (s *Server) acceptLoop(ln net.Listener, done chan struct{}) {
	defer close(done)

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.stopping.Load() {
				return
			}
			// 一時的なエラーは待って再試行
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff *= 2
			}
			if backoff > time.Second {
				backoff = time.Second
			}
			s.logger.Warn("accept failed, retrying", zap.Error(err), zap.Duration("backoff", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		s.sessions.Add(1)
		s.active.Add(1)
		sess := newSession(s.nextID.Add(1), conn, s)
		s.mu.Lock()
		s.live[sess.id] = sess
		s.mu.Unlock()

		go func() {
			defer s.sessions.Done()
			defer s.active.Add(-1)
			defer s.forget(sess.id)
			sess.serve(s.baseCtx)
		}()
	}
}
