package jsonrpc

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/brbranch/reclass_bridge/internal/model"
	"github.com/brbranch/reclass_bridge/internal/service"
)

// classKeys / getClassKeys はクラス識別子として受け付けるパラメータ名（優先順）
var (
	classKeys    = []string{"class_id", "class_name"}
	getClassKeys = []string{"id", "name", "class_id", "class_name"}
)

// handlePing は ping を処理
func (h *Handler) handlePing(ctx context.Context, args Args) (map[string]any, error) {
	return map[string]any{"message": "pong"}, nil
}

// handleGetStatus は get_status を処理
func (h *Handler) handleGetStatus(ctx context.Context, args Args) (map[string]any, error) {
	st := h.bridge.Status(ctx)
	return map[string]any{
		"attached":     st.Attached,
		"process_name": st.ProcessName,
		"process_id":   st.ProcessID,
	}, nil
}

// handleGetProcessInfo は get_process_info を処理
func (h *Handler) handleGetProcessInfo(ctx context.Context, args Args) (map[string]any, error) {
	info, err := h.bridge.ProcessInfo(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"process_id":    info.ID,
		"process_name":  info.Name,
		"process_path":  info.Path,
		"module_count":  info.ModuleCount,
		"section_count": info.SectionCount,
	}, nil
}

// handleReadMemory は read_memory を処理
func (h *Handler) handleReadMemory(ctx context.Context, args Args) (map[string]any, error) {
	address, err := args.RequireString("address")
	if err != nil {
		return nil, err
	}
	size, err := args.RequireInt("size")
	if err != nil {
		return nil, err
	}

	resp, err := h.bridge.ReadMemory(ctx, address, size)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"address": formatAddress(resp.Address),
		"size":    len(resp.Data),
		"data":    hex.EncodeToString(resp.Data),
	}, nil
}

// handleWriteMemory は write_memory を処理
func (h *Handler) handleWriteMemory(ctx context.Context, args Args) (map[string]any, error) {
	address, err := args.RequireString("address")
	if err != nil {
		return nil, err
	}
	data, err := args.RequireString("data")
	if err != nil {
		return nil, err
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: data must be an even-length hex string", ErrInvalidParam)
	}
	raw, err := hex.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: data is not valid hex: %v", ErrInvalidParam, err)
	}

	resp, err := h.bridge.WriteMemory(ctx, address, raw)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"address":       formatAddress(resp.Address),
		"bytes_written": resp.BytesWritten,
	}, nil
}

// handleParseAddress は parse_address を処理
func (h *Handler) handleParseAddress(ctx context.Context, args Args) (map[string]any, error) {
	formula, err := args.RequireString("formula")
	if err != nil {
		return nil, err
	}

	address, err := h.bridge.ParseAddress(ctx, formula)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"formula": formula,
		"hex":     formatAddress(address),
		"decimal": address,
	}, nil
}

// handleGetModules は get_modules を処理
func (h *Handler) handleGetModules(ctx context.Context, args Args) (map[string]any, error) {
	modules, err := h.bridge.Modules(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, len(modules))
	for i, m := range modules {
		items[i] = map[string]any{
			"name":  m.Name,
			"path":  m.Path,
			"start": formatAddress(m.Start),
			"end":   formatAddress(m.End),
			"size":  m.Size,
		}
	}
	return map[string]any{
		"modules": items,
		"count":   len(items),
	}, nil
}

// handleGetSections は get_sections を処理
func (h *Handler) handleGetSections(ctx context.Context, args Args) (map[string]any, error) {
	sections, err := h.bridge.Sections(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, len(sections))
	for i, s := range sections {
		items[i] = map[string]any{
			"name":        s.Name,
			"category":    s.Category,
			"protection":  s.Protection,
			"type":        s.Type,
			"start":       formatAddress(s.Start),
			"end":         formatAddress(s.End),
			"size":        s.Size,
			"module_name": s.ModuleName,
		}
	}
	return map[string]any{
		"sections": items,
		"count":    len(items),
	}, nil
}

// handleGetClasses は get_classes を処理
func (h *Handler) handleGetClasses(ctx context.Context, args Args) (map[string]any, error) {
	classes, err := h.bridge.ListClasses(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, len(classes))
	for i, c := range classes {
		items[i] = classToMap(c)
	}
	return map[string]any{
		"classes": items,
		"count":   len(items),
	}, nil
}

// handleGetClass は get_class を処理（ノードツリー全体）
func (h *Handler) handleGetClass(ctx context.Context, args Args) (map[string]any, error) {
	identifier, err := args.RequireIdentifier(getClassKeys...)
	if err != nil {
		return nil, err
	}

	detail, err := h.bridge.GetClass(ctx, identifier)
	if err != nil {
		return nil, err
	}
	c := classToMap(detail.ClassSummary)
	c["nodes"] = nodesToMaps(detail.Nodes)
	return map[string]any{"class": c}, nil
}

// handleGetNodes は get_nodes を処理（直下のノードのみ）
func (h *Handler) handleGetNodes(ctx context.Context, args Args) (map[string]any, error) {
	identifier, err := args.RequireIdentifier(classKeys...)
	if err != nil {
		return nil, err
	}

	detail, err := h.bridge.GetNodes(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"class_id":   detail.ID,
		"class_name": detail.Name,
		"nodes":      nodesToMaps(detail.Nodes),
		"count":      len(detail.Nodes),
	}, nil
}

// handleCreateClass は create_class を処理
func (h *Handler) handleCreateClass(ctx context.Context, args Args) (map[string]any, error) {
	name, err := args.RequireString("name")
	if err != nil {
		return nil, err
	}
	address, err := args.OptionalString("address")
	if err != nil {
		return nil, err
	}

	c, err := h.bridge.CreateClass(ctx, &service.CreateClassRequest{Name: name, Address: address})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":      c.ID,
		"name":    c.Name,
		"address": c.Address,
	}, nil
}

// handleAddNode は add_node を処理
func (h *Handler) handleAddNode(ctx context.Context, args Args) (map[string]any, error) {
	identifier, err := args.RequireIdentifier(classKeys...)
	if err != nil {
		return nil, err
	}
	typ, err := args.RequireString("type")
	if err != nil {
		return nil, err
	}
	name, err := args.OptionalString("name")
	if err != nil {
		return nil, err
	}

	node, err := h.bridge.AddNode(ctx, &service.AddNodeRequest{Class: identifier, Type: typ, Name: name})
	if err != nil {
		return nil, err
	}
	return map[string]any{"node": nodeToMap(*node)}, nil
}

// handleRenameNode は rename_node を処理
func (h *Handler) handleRenameNode(ctx context.Context, args Args) (map[string]any, error) {
	req, err := nodeEditParams(args, "name")
	if err != nil {
		return nil, err
	}
	return h.nodeResult(h.bridge.RenameNode(ctx, req))
}

// handleSetComment は set_comment を処理
func (h *Handler) handleSetComment(ctx context.Context, args Args) (map[string]any, error) {
	req, err := nodeEditParams(args, "comment")
	if err != nil {
		return nil, err
	}
	return h.nodeResult(h.bridge.SetComment(ctx, req))
}

// handleChangeNodeType は change_node_type を処理
func (h *Handler) handleChangeNodeType(ctx context.Context, args Args) (map[string]any, error) {
	req, err := nodeEditParams(args, "type")
	if err != nil {
		return nil, err
	}
	return h.nodeResult(h.bridge.ChangeNodeType(ctx, req))
}

func (h *Handler) nodeResult(node *service.NodeRecord, err error) (map[string]any, error) {
	if err != nil {
		return nil, err
	}
	return map[string]any{"node": nodeToMap(*node)}, nil
}

// nodeEditParams は class_id|class_name, node_index, valueKey を読む
func nodeEditParams(args Args, valueKey string) (*service.NodeEditRequest, error) {
	identifier, err := args.RequireIdentifier(classKeys...)
	if err != nil {
		return nil, err
	}
	index, err := args.RequireInt("node_index")
	if err != nil {
		return nil, err
	}
	value, err := args.RequireString(valueKey)
	if err != nil {
		return nil, err
	}
	return &service.NodeEditRequest{Class: identifier, Index: index, Value: value}, nil
}

func formatAddress(address uint64) string {
	return fmt.Sprintf("0x%X", address)
}

func classToMap(c service.ClassSummary) map[string]any {
	return map[string]any{
		"id":         c.ID,
		"name":       c.Name,
		"address":    c.Address,
		"comment":    c.Comment,
		"size":       c.Size,
		"node_count": c.NodeCount,
	}
}

func nodesToMaps(nodes []service.NodeRecord) []map[string]any {
	out := make([]map[string]any, len(nodes))
	for i, n := range nodes {
		out[i] = nodeToMap(n)
	}
	return out
}

// nodeToMap はノードレコードをレスポンス用に変換
// children はコンテナのみ、inner_type はラッパーのみ、count は配列のみ
func nodeToMap(n service.NodeRecord) map[string]any {
	m := map[string]any{
		"index":   n.Index,
		"type":    n.Type,
		"name":    n.Name,
		"offset":  n.Offset,
		"size":    n.Size,
		"comment": n.Comment,
	}
	if n.Container {
		m["children"] = nodesToMaps(n.Children)
	}
	if n.InnerType != "" {
		m["inner_type"] = n.InnerType
	}
	if n.Type == model.KindArray.TypeName() {
		m["count"] = n.Count
	}
	return m
}
