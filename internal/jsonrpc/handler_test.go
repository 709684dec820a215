package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/brbranch/reclass_bridge/internal/model"
	"github.com/brbranch/reclass_bridge/internal/service"
	"github.com/brbranch/reclass_bridge/internal/target"
)

// inlineOwner はテスト用のOwner（呼び出し元でそのまま実行）
type inlineOwner struct{}

func (inlineOwner) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memoryHost はテスト用のProjectHost
type memoryHost struct {
	project *model.Project
}

func (h *memoryHost) CurrentProject() *model.Project   { return h.project }
func (h *memoryHost) Commit(ctx context.Context) error { return nil }

// panicBridge は ListClasses でパニックするBridge
type panicBridge struct {
	service.Bridge
}

func (panicBridge) ListClasses(ctx context.Context) ([]service.ClassSummary, error) {
	panic("boom")
}

func newTestHandler(t *testing.T) (*Handler, *target.Image) {
	t.Helper()
	img := target.NewDemoImage()
	host := &memoryHost{project: model.NewProject()}
	bridge := service.NewBridge(inlineOwner{}, host, img, zaptest.NewLogger(t))
	return New(bridge, zaptest.NewLogger(t)), img
}

// call は1行を処理してレスポンスをデコードする
func call(t *testing.T, h *Handler, line string) map[string]any {
	t.Helper()
	out := h.Handle(context.Background(), []byte(line))
	require.False(t, bytes.ContainsAny(out, "\r\n"), "response must be a single line: %s", out)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(out, &resp), "response is not JSON: %s", out)
	return resp
}

// command は command と args からリクエスト行を作る
func command(t *testing.T, name string, args map[string]any) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{"command": name, "args": args})
	require.NoError(t, err)
	return string(b)
}

func requireSuccess(t *testing.T, resp map[string]any) {
	t.Helper()
	require.Equal(t, true, resp["success"], "expected success, got %v", resp)
}

func requireError(t *testing.T, resp map[string]any, contains string) {
	t.Helper()
	require.Equal(t, false, resp["success"], "expected failure, got %v", resp)
	assert.Contains(t, resp["error"], contains)
}

func TestHandle_ProtocolErrors(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name    string
		line    string
		wantErr string
	}{
		{"malformed json", `{"command": "ping"`, "Invalid JSON: "},
		{"not an object", `[1, 2]`, "Invalid JSON: "},
		{"trailing data", `{"command":"ping"} {}`, "Invalid JSON: "},
		{"missing command", `{"args": {}}`, "Missing 'command' field"},
		{"empty command", `{"command": ""}`, "Missing 'command' field"},
		{"unknown command", `{"command": "explode"}`, "Unknown command: explode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, h, tt.line)
			requireError(t, resp, tt.wantErr)
		})
	}

	// メッセージは完全一致
	resp := call(t, h, `{"command": "Nope"}`)
	assert.Equal(t, "Unknown command: Nope", resp["error"])
	resp = call(t, h, `{}`)
	assert.Equal(t, "Missing 'command' field", resp["error"])
}

func TestHandle_PingCaseInsensitive(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, name := range []string{"ping", "PING", "Ping"} {
		resp := call(t, h, fmt.Sprintf(`{"command": %q}`, name))
		requireSuccess(t, resp)
		assert.Equal(t, "pong", resp["message"])
	}
}

func TestHandle_StatusAndProcess(t *testing.T) {
	h, img := newTestHandler(t)

	resp := call(t, h, `{"command": "get_status"}`)
	requireSuccess(t, resp)
	assert.Equal(t, true, resp["attached"])
	assert.Equal(t, "game.exe", resp["process_name"])
	assert.EqualValues(t, 4242, resp["process_id"])

	resp = call(t, h, `{"command": "get_modules"}`)
	requireSuccess(t, resp)
	modules := resp["modules"].([]any)
	require.Len(t, modules, 2)
	assert.Equal(t, "0x400000", modules[0].(map[string]any)["start"])

	resp = call(t, h, `{"command": "get_sections"}`)
	requireSuccess(t, resp)
	assert.EqualValues(t, 2, resp["count"])

	img.Detach()
	for _, name := range []string{"get_process_info", "get_modules", "get_sections"} {
		resp = call(t, h, fmt.Sprintf(`{"command": %q}`, name))
		requireError(t, resp, "no process attached")
	}
	resp = call(t, h, `{"command": "get_status"}`)
	requireSuccess(t, resp)
	assert.Equal(t, false, resp["attached"])
}

func TestHandle_ParseAddress(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		formula     string
		wantHex     string
		wantDecimal float64
	}{
		{"0x10", "0x10", 16},
		{"16", "0x10", 16},
		{"game.exe+0x10", "0x400010", 0x400010},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			resp := call(t, h, command(t, "parse_address", map[string]any{"formula": tt.formula}))
			requireSuccess(t, resp)
			assert.Equal(t, tt.wantHex, resp["hex"])
			assert.Equal(t, tt.wantDecimal, resp["decimal"])
		})
	}

	resp := call(t, h, command(t, "parse_address", map[string]any{"formula": "nowhere+1"}))
	requireError(t, resp, "nowhere+1")
	resp = call(t, h, command(t, "parse_address", map[string]any{"formula": "game.exe+0xFFFFFFFFFFFFFFFF"}))
	requireError(t, resp, "game.exe+0xFFFFFFFFFFFFFFFF")
	resp = call(t, h, `{"command": "parse_address"}`)
	requireError(t, resp, "formula")
}

func TestHandle_ReadWriteMemory(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := call(t, h, command(t, "write_memory", map[string]any{"address": "game.exe+0x20", "data": "0102ABcd"}))
	requireSuccess(t, resp)
	assert.EqualValues(t, 4, resp["bytes_written"])

	// size は数値文字列でも受け付ける
	resp = call(t, h, command(t, "read_memory", map[string]any{"address": "0x400020", "size": "4"}))
	requireSuccess(t, resp)
	assert.Equal(t, "0102abcd", resp["data"])

	for _, size := range []int{1, 16, 65536} {
		resp = call(t, h, command(t, "read_memory", map[string]any{"address": "0x10000000", "size": size}))
		requireSuccess(t, resp)
		assert.Len(t, resp["data"], size*2)
	}

	for _, size := range []any{0, 65537, -4, "abc", 1.5} {
		resp = call(t, h, command(t, "read_memory", map[string]any{"address": "0x10000000", "size": size}))
		requireError(t, resp, "size")
	}

	resp = call(t, h, command(t, "write_memory", map[string]any{"address": "0x10000000", "data": "abc"}))
	requireError(t, resp, "even-length")
	resp = call(t, h, command(t, "write_memory", map[string]any{"address": "0x10000000", "data": "zz"}))
	requireError(t, resp, "data")
	resp = call(t, h, command(t, "read_memory", map[string]any{"address": "0x1", "size": 4}))
	requireError(t, resp, "failed to read memory")
	resp = call(t, h, command(t, "read_memory", map[string]any{"size": 4}))
	requireError(t, resp, "address")
}

func TestHandle_ClassLifecycle(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := call(t, h, command(t, "create_class", map[string]any{"name": "Player", "address": "game.exe+0x100"}))
	requireSuccess(t, resp)
	id := resp["id"].(string)
	require.NotEmpty(t, id)

	resp = call(t, h, command(t, "add_node", map[string]any{"class_id": id, "type": "int32", "name": "hp"}))
	requireSuccess(t, resp)
	resp = call(t, h, command(t, "add_node", map[string]any{"class_name": "player", "type": "ClassInstanceNode", "name": "pos"}))
	requireSuccess(t, resp)
	resp = call(t, h, command(t, "add_node", map[string]any{"class_name": "player", "type": "array"}))
	requireSuccess(t, resp)
	node := resp["node"].(map[string]any)
	assert.Equal(t, "ArrayNode", node["type"])
	assert.Equal(t, "Hex8Node", node["inner_type"])
	assert.EqualValues(t, 1, node["count"])
	assert.Equal(t, "N00000004", node["name"])

	// id と name で同一の結果
	byID := call(t, h, command(t, "get_class", map[string]any{"id": id}))
	byName := call(t, h, command(t, "get_class", map[string]any{"name": "PLAYER"}))
	requireSuccess(t, byID)
	assert.Equal(t, byID, byName)

	class := byID["class"].(map[string]any)
	nodes := class["nodes"].([]any)
	require.Len(t, nodes, 3)
	pos := nodes[1].(map[string]any)
	assert.Equal(t, []any{}, pos["children"])
	_, hasChildren := nodes[0].(map[string]any)["children"]
	assert.False(t, hasChildren, "scalar nodes must not carry children")

	resp = call(t, h, command(t, "get_classes", nil))
	requireSuccess(t, resp)
	assert.EqualValues(t, 1, resp["count"])

	resp = call(t, h, command(t, "get_class", map[string]any{"id": "Missing"}))
	assert.Equal(t, "class not found: Missing", resp["error"])
	resp = call(t, h, command(t, "get_nodes", map[string]any{}))
	requireError(t, resp, "class_id or class_name")
}

func TestHandle_AddNode_UnknownType(t *testing.T) {
	h, _ := newTestHandler(t)
	requireSuccess(t, call(t, h, command(t, "create_class", map[string]any{"name": "Player"})))
	requireSuccess(t, call(t, h, command(t, "add_node", map[string]any{"class_name": "Player", "type": "int8"})))

	resp := call(t, h, command(t, "add_node", map[string]any{"class_name": "Player", "type": "not_a_type"}))
	requireError(t, resp, "unknown node type")

	resp = call(t, h, command(t, "get_nodes", map[string]any{"class_name": "Player"}))
	requireSuccess(t, resp)
	assert.EqualValues(t, 1, resp["count"])
}

func TestHandle_NodeEdits(t *testing.T) {
	h, _ := newTestHandler(t)
	requireSuccess(t, call(t, h, command(t, "create_class", map[string]any{"name": "Player"})))
	for i := 0; i < 3; i++ {
		requireSuccess(t, call(t, h, command(t, "add_node", map[string]any{"class_name": "Player", "type": "int32"})))
	}

	// node_index == count は範囲外
	resp := call(t, h, command(t, "rename_node", map[string]any{"class_name": "Player", "node_index": 3, "name": "x"}))
	requireError(t, resp, "invalid node index")

	resp = call(t, h, command(t, "rename_node", map[string]any{"class_name": "Player", "node_index": 2, "name": "health"}))
	requireSuccess(t, resp)

	resp = call(t, h, command(t, "get_nodes", map[string]any{"class_name": "Player"}))
	requireSuccess(t, resp)
	nodes := resp["nodes"].([]any)
	last := nodes[2].(map[string]any)
	assert.Equal(t, "health", last["name"])
	assert.EqualValues(t, 2, last["index"])

	resp = call(t, h, command(t, "set_comment", map[string]any{"class_name": "Player", "node_index": 0, "comment": "flags"}))
	requireSuccess(t, resp)
	resp = call(t, h, command(t, "change_node_type", map[string]any{"class_name": "Player", "node_index": 0, "type": "Hex64Node"}))
	requireSuccess(t, resp)
	node := resp["node"].(map[string]any)
	assert.Equal(t, "Hex64Node", node["type"])
	assert.Equal(t, "flags", node["comment"])
	assert.EqualValues(t, 8, node["size"])

	resp = call(t, h, command(t, "set_comment", map[string]any{"class_name": "Player", "node_index": 0}))
	requireError(t, resp, "comment")
	resp = call(t, h, command(t, "change_node_type", map[string]any{"class_name": "Player", "node_index": "x", "type": "int8"}))
	requireError(t, resp, "node_index")
}

func TestExecute_RecoversPanic(t *testing.T) {
	h := New(panicBridge{}, zaptest.NewLogger(t))

	resp := h.Execute(context.Background(), "get_classes", nil)
	env, ok := resp.(*model.ErrorEnvelope)
	require.True(t, ok, "expected error envelope, got %T", resp)
	assert.False(t, env.Success)
	assert.True(t, strings.Contains(env.Error, "boom"))

	// パニック後も処理を続けられる
	out := call(t, h, `{"command": "ping"}`)
	requireSuccess(t, out)
}
