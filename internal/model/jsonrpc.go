package model

import "encoding/json"

// Request はワイヤ上の1リクエスト（1行のJSON）
type Request struct {
	Command *string        `json:"command"`        // 必須
	Args    map[string]any `json:"args,omitempty"` // 省略可
}

// ErrorEnvelope は失敗時のレスポンス
type ErrorEnvelope struct {
	Success bool   `json:"success"` // 常に false
	Error   string `json:"error"`
}

// NewErrorEnvelope はエラーレスポンスを生成
func NewErrorEnvelope(message string) *ErrorEnvelope {
	return &ErrorEnvelope{Success: false, Error: message}
}

// NewSuccess は成功レスポンスを生成する
// fields はトップレベルにそのまま展開される
func NewSuccess(fields map[string]any) map[string]any {
	resp := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		resp[k] = v
	}
	resp["success"] = true
	return resp
}

// MaxLineSize はリクエスト1行の最大サイズ（1MB、改行を除く）
const MaxLineSize = 1024 * 1024

// エラーメッセージ（プロトコルエラー）
const (
	MsgMissingCommand = "Missing 'command' field"
	MsgInvalidJSON    = "Invalid JSON: "
	MsgUnknownCommand = "Unknown command: "
	MsgLineTooLong    = "request line too long"
)

// EncodeLine はレスポンスを改行を含まない1行のJSONにする
// 文字列中の改行は json.Marshal がエスケープする
func EncodeLine(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(NewErrorEnvelope("failed to encode response: " + err.Error()))
	}
	return b
}
