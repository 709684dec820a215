package model

// NodeKind はノードの型タグ（閉じた列挙）
type NodeKind int

const (
	KindInt8 NodeKind = iota
	KindInt16
	KindInt32
	KindInt64
	KindUInt8
	KindUInt16
	KindUInt32
	KindUInt64
	KindFloat
	KindDouble
	KindHex8
	KindHex16
	KindHex32
	KindHex64
	KindBool
	KindUtf8Text
	KindUtf16Text
	KindUtf32Text
	KindUtf8TextPtr
	KindUtf16TextPtr
	KindUtf32TextPtr
	KindVector2
	KindVector3
	KindVector4
	KindMatrix3x3
	KindMatrix3x4
	KindMatrix4x4
	KindPointer
	KindArray
	KindFunction
	KindFunctionPtr
	KindVirtualMethodTable
	KindClassInstance
)

// Shape はノードの構造的な種類
type Shape int

const (
	ShapeScalar    Shape = iota // 固定サイズ
	ShapeContainer              // 子ノード列を持つ
	ShapeWrapper                // 内部ノードを1つだけ持つ
)

const (
	// PointerSize はターゲットプロセスのポインタサイズ（x64前提）
	PointerSize = 8
	// DefaultTextLength はテキストノードの既定文字数
	DefaultTextLength = 8
)

type kindInfo struct {
	typeName string
	shape    Shape
	size     int // scalar のみ有効
}

// kinds は型タグごとの静的情報
var kinds = map[NodeKind]kindInfo{
	KindInt8:               {"Int8Node", ShapeScalar, 1},
	KindInt16:              {"Int16Node", ShapeScalar, 2},
	KindInt32:              {"Int32Node", ShapeScalar, 4},
	KindInt64:              {"Int64Node", ShapeScalar, 8},
	KindUInt8:              {"UInt8Node", ShapeScalar, 1},
	KindUInt16:             {"UInt16Node", ShapeScalar, 2},
	KindUInt32:             {"UInt32Node", ShapeScalar, 4},
	KindUInt64:             {"UInt64Node", ShapeScalar, 8},
	KindFloat:              {"FloatNode", ShapeScalar, 4},
	KindDouble:             {"DoubleNode", ShapeScalar, 8},
	KindHex8:               {"Hex8Node", ShapeScalar, 1},
	KindHex16:              {"Hex16Node", ShapeScalar, 2},
	KindHex32:              {"Hex32Node", ShapeScalar, 4},
	KindHex64:              {"Hex64Node", ShapeScalar, 8},
	KindBool:               {"BoolNode", ShapeScalar, 1},
	KindUtf8Text:           {"Utf8TextNode", ShapeScalar, DefaultTextLength},
	KindUtf16Text:          {"Utf16TextNode", ShapeScalar, DefaultTextLength * 2},
	KindUtf32Text:          {"Utf32TextNode", ShapeScalar, DefaultTextLength * 4},
	KindUtf8TextPtr:        {"Utf8TextPtrNode", ShapeScalar, PointerSize},
	KindUtf16TextPtr:       {"Utf16TextPtrNode", ShapeScalar, PointerSize},
	KindUtf32TextPtr:       {"Utf32TextPtrNode", ShapeScalar, PointerSize},
	KindVector2:            {"Vector2Node", ShapeScalar, 8},
	KindVector3:            {"Vector3Node", ShapeScalar, 12},
	KindVector4:            {"Vector4Node", ShapeScalar, 16},
	KindMatrix3x3:          {"Matrix3x3Node", ShapeScalar, 36},
	KindMatrix3x4:          {"Matrix3x4Node", ShapeScalar, 48},
	KindMatrix4x4:          {"Matrix4x4Node", ShapeScalar, 64},
	KindPointer:            {"PointerNode", ShapeWrapper, PointerSize},
	KindArray:              {"ArrayNode", ShapeWrapper, 0},
	KindFunction:           {"FunctionNode", ShapeScalar, PointerSize},
	KindFunctionPtr:        {"FunctionPtrNode", ShapeScalar, PointerSize},
	KindVirtualMethodTable: {"VirtualMethodTableNode", ShapeScalar, PointerSize},
	KindClassInstance:      {"ClassInstanceNode", ShapeContainer, 0},
}

// TypeName はワイヤ上の型名を返す（例: "Int32Node"）
func (k NodeKind) TypeName() string {
	if info, ok := kinds[k]; ok {
		return info.typeName
	}
	return "UnknownNode"
}

// String は fmt 用
func (k NodeKind) String() string {
	return k.TypeName()
}

// Shape はノードの構造的な種類を返す
func (k NodeKind) Shape() Shape {
	return kinds[k].shape
}

// Node はクラス内の1フィールドを表す（型タグ + 種類ごとのペイロード）
// Offset は親が再レイアウト時に計算する。直接設定しないこと
type Node struct {
	Kind    NodeKind
	Name    string
	Comment string
	Offset  int

	// ShapeContainer のみ
	Children []*Node

	// ShapeWrapper のみ
	Inner *Node
	Count int // KindArray の要素数
}

// Size はノードのバイトサイズを返す
func (n *Node) Size() int {
	info := kinds[n.Kind]
	switch info.shape {
	case ShapeContainer:
		size := 0
		for _, c := range n.Children {
			size += c.Size()
		}
		return size
	case ShapeWrapper:
		if n.Kind == KindArray {
			if n.Inner == nil {
				return 0
			}
			return n.Count * n.Inner.Size()
		}
		return info.size
	default:
		return info.size
	}
}

// IsContainer は子ノード列を持つかどうか
func (n *Node) IsContainer() bool {
	return n.Kind.Shape() == ShapeContainer
}

// IsWrapper は内部ノードを持つかどうか
func (n *Node) IsWrapper() bool {
	return n.Kind.Shape() == ShapeWrapper
}

// AppendChild はコンテナに子ノードを追加する（所有権は移る）
func (n *Node) AppendChild(child *Node) {
	n.Children = append(n.Children, child)
	layout(n.Children)
}

// Clone はノードツリーのディープコピーを返す
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		Kind:    n.Kind,
		Name:    n.Name,
		Comment: n.Comment,
		Offset:  n.Offset,
		Count:   n.Count,
		Inner:   n.Inner.Clone(),
	}
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// layout は兄弟ノードのオフセットを先頭から再計算する
func layout(nodes []*Node) {
	offset := 0
	for _, n := range nodes {
		n.Offset = offset
		if n.IsContainer() {
			layout(n.Children)
		}
		offset += n.Size()
	}
}
