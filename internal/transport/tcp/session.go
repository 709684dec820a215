package tcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brbranch/reclass_bridge/internal/model"
)

// readBufferSize は接続ごとの読み込みバッファ
const readBufferSize = 64 * 1024

// errLineTooLong は1行が上限を超えた場合のエラー
var errLineTooLong = errors.New(model.MsgLineTooLong)

// session は1接続を最初から最後まで担当する
type session struct {
	id      uint64
	conn    net.Conn
	server  *Server
	logger  *zap.Logger
	handled int

	// mu は読み込み期限の設定と Stop による中断を直列化する
	mu sync.Mutex
}

func newSession(id uint64, conn net.Conn, server *Server) *session {
	return &session{
		id:     id,
		conn:   conn,
		server: server,
		logger: server.logger.With(
			zap.Uint64("session", id),
			zap.String("remote", conn.RemoteAddr().String()),
		),
	}
}

// serve は接続が閉じられるかトランスポートエラーになるまで処理する
// 1行ごとのエラーはレスポンスとして返し、接続は維持する
func (s *session) serve(ctx context.Context) {
	defer func() {
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Debug("failed to close connection", zap.Error(err))
		}
		s.logger.Info("session closed", zap.Int("handled", s.handled))
	}()
	s.logger.Info("session opened")

	reader := bufio.NewReaderSize(s.conn, readBufferSize)

	for {
		ok, err := s.armRead()
		if err != nil {
			s.logTransportError("set read deadline", err)
			return
		}
		if !ok {
			return
		}

		raw, err := readLine(reader, model.MaxLineSize)

		var response []byte
		switch {
		case errors.Is(err, errLineTooLong):
			// 行は読み捨て済みなので接続は維持できる
			s.logger.Warn("request line too long", zap.Int("limit", model.MaxLineSize))
			response = model.EncodeLine(model.NewErrorEnvelope(model.MsgLineTooLong))
		case err != nil:
			// EOFまたはトランスポートエラー
			s.logTransportError("read", err)
			return
		default:
			line := bytes.TrimSpace(raw)
			// 空行はスキップ
			if len(line) == 0 {
				continue
			}
			response = s.server.handler.Handle(ctx, line)
		}
		s.handled++

		if err := s.write(response); err != nil {
			s.logTransportError("write", err)
			return
		}

		// 停止中は処理中のリクエストを返したら終了
		if s.server.stopping.Load() {
			return
		}
	}
}

// readLine は改行までの1行を改行付きで返す
// limit を超えた行は次の改行まで読み捨てて errLineTooLong を返す
// 改行なしで EOF になった場合は残りを1行として返す
func readLine(r *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')

		n := len(chunk)
		if err == nil {
			n-- // 改行は上限に含めない
		}
		if !tooLong {
			if len(line)+n > limit {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}

		switch {
		case err == nil:
			if tooLong {
				return nil, errLineTooLong
			}
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(line) > 0:
			return line, nil
		default:
			return nil, err
		}
	}
}

// armRead は次の1行の読み込み期限を設定する。停止中なら false
func (s *session) armRead() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server.stopping.Load() {
		return false, nil
	}
	return true, s.conn.SetReadDeadline(time.Now().Add(s.server.config.ReadTimeout))
}

// interrupt は待機中の読み込みを即座に終わらせる
// 処理中のリクエストの書き込みには影響しない
func (s *session) interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetReadDeadline(time.Now()); err != nil {
		s.logger.Debug("failed to interrupt session", zap.Error(err))
	}
}

// write はレスポンスを1行として書き込む
func (s *session) write(response []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.server.config.WriteTimeout)); err != nil {
		return err
	}
	out := make([]byte, 0, len(response)+1)
	out = append(out, response...)
	out = append(out, '\n')
	_, err := s.conn.Write(out)
	return err
}

func (s *session) logTransportError(op string, err error) {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		s.logger.Debug("connection closed", zap.String("op", op))
	case errors.Is(err, os.ErrDeadlineExceeded) && s.server.stopping.Load():
		s.logger.Debug("session interrupted by shutdown", zap.String("op", op))
	case errors.Is(err, os.ErrDeadlineExceeded):
		s.logger.Info("session timed out", zap.String("op", op))
	default:
		s.logger.Warn("transport error", zap.String("op", op), zap.Error(err))
	}
}
