// Package jsonrpc implements the line-delimited JSON command dispatcher for reclass-bridge.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brbranch/reclass_bridge/internal/model"
	"github.com/brbranch/reclass_bridge/internal/service"
)

// Handler はコマンドリクエストを処理する
type Handler struct {
	bridge service.Bridge
	logger *zap.Logger
}

// New は新しいHandlerを生成
func New(bridge service.Bridge, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		bridge: bridge,
		logger: logger.Named("jsonrpc"),
	}
}

// commandFunc は1コマンドの処理。戻り値は success 以外のレスポンスフィールド
type commandFunc func(h *Handler, ctx context.Context, args Args) (map[string]any, error)

// commands はコマンド名（小文字）からハンドラーへのテーブル
var commands = map[string]commandFunc{
	"ping":             (*Handler).handlePing,
	"get_status":       (*Handler).handleGetStatus,
	"get_process_info": (*Handler).handleGetProcessInfo,
	"read_memory":      (*Handler).handleReadMemory,
	"write_memory":     (*Handler).handleWriteMemory,
	"parse_address":    (*Handler).handleParseAddress,
	"get_modules":      (*Handler).handleGetModules,
	"get_sections":     (*Handler).handleGetSections,
	"get_classes":      (*Handler).handleGetClasses,
	"get_class":        (*Handler).handleGetClass,
	"get_nodes":        (*Handler).handleGetNodes,
	"create_class":     (*Handler).handleCreateClass,
	"add_node":         (*Handler).handleAddNode,
	"rename_node":      (*Handler).handleRenameNode,
	"set_comment":      (*Handler).handleSetComment,
	"change_node_type": (*Handler).handleChangeNodeType,
}

// Handle は1行のリクエストをパースしてディスパッチ
// 戻り値は改行を含まない1行のJSON
func (h *Handler) Handle(ctx context.Context, line []byte) []byte {
	// 1. パース
	req, err := decodeRequest(line)
	if err != nil {
		return model.EncodeLine(model.NewErrorEnvelope(model.MsgInvalidJSON + err.Error()))
	}

	// 2. command確認
	if req.Command == nil || *req.Command == "" {
		return model.EncodeLine(model.NewErrorEnvelope(model.MsgMissingCommand))
	}

	// 3. 実行
	return model.EncodeLine(h.Execute(ctx, *req.Command, req.Args))
}

// Execute はコマンドを実行してレスポンスエンベロープを返す
// コマンド名は大文字小文字を区別しない。パニックはエラーエンベロープに変換する
func (h *Handler) Execute(ctx context.Context, name string, args map[string]any) (resp any) {
	fn, ok := commands[strings.ToLower(name)]
	if !ok {
		return model.NewErrorEnvelope(model.MsgUnknownCommand + name)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("command panicked", zap.String("command", name), zap.Any("panic", r))
			resp = model.NewErrorEnvelope(fmt.Sprintf("internal error: %v", r))
		}
	}()

	result, err := fn(h, ctx, Args(args))
	if err != nil {
		return h.mapError(name, err)
	}

	h.logger.Debug("command executed",
		zap.String("command", name),
		zap.Duration("elapsed", time.Since(start)))
	return model.NewSuccess(result)
}

// decodeRequest は数値を json.Number のまま保持してデコードする
func decodeRequest(line []byte) (*model.Request, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var req model.Request
	if err := dec.Decode(&req); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after request object")
	}
	return &req, nil
}

// mapError はエラーをエラーエンベロープに変換（ログレベルのみ分類する）
func (h *Handler) mapError(name string, err error) *model.ErrorEnvelope {
	switch {
	// validation error
	case errors.Is(err, ErrMissingParam),
		errors.Is(err, ErrInvalidParam),
		errors.Is(err, service.ErrInvalidAddress),
		errors.Is(err, service.ErrInvalidSize),
		errors.Is(err, service.ErrInvalidData),
		errors.Is(err, service.ErrNameRequired),
		errors.Is(err, service.ErrUnknownNodeType),
		errors.Is(err, service.ErrInvalidNodeIndex),
		errors.Is(err, service.ErrClassNotFound):
		h.logger.Debug("command rejected", zap.String("command", name), zap.Error(err))

	// domain error
	case errors.Is(err, service.ErrNoProcess),
		errors.Is(err, service.ErrNoProject),
		errors.Is(err, service.ErrReadFailed),
		errors.Is(err, service.ErrWriteFailed):
		h.logger.Info("command failed", zap.String("command", name), zap.Error(err))

	default:
		h.logger.Error("command error", zap.String("command", name), zap.Error(err))
	}
	return model.NewErrorEnvelope(err.Error())
}
