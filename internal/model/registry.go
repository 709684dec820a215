package model

import "strings"

// shortNames はクライアントが使う短い型名 → 型タグ
var shortNames = map[string]NodeKind{
	"int8":               KindInt8,
	"int16":              KindInt16,
	"int32":              KindInt32,
	"int64":              KindInt64,
	"uint8":              KindUInt8,
	"uint16":             KindUInt16,
	"uint32":             KindUInt32,
	"uint64":             KindUInt64,
	"float":              KindFloat,
	"double":             KindDouble,
	"hex8":               KindHex8,
	"hex16":              KindHex16,
	"hex32":              KindHex32,
	"hex64":              KindHex64,
	"bool":               KindBool,
	"utf8text":           KindUtf8Text,
	"utf16text":          KindUtf16Text,
	"utf32text":          KindUtf32Text,
	"utf8textptr":        KindUtf8TextPtr,
	"utf16textptr":       KindUtf16TextPtr,
	"utf32textptr":       KindUtf32TextPtr,
	"vector2":            KindVector2,
	"vector3":            KindVector3,
	"vector4":            KindVector4,
	"matrix3x3":          KindMatrix3x3,
	"matrix3x4":          KindMatrix3x4,
	"matrix4x4":          KindMatrix4x4,
	"pointer":            KindPointer,
	"array":              KindArray,
	"function":           KindFunction,
	"functionptr":        KindFunctionPtr,
	"virtualmethodtable": KindVirtualMethodTable,
	"classinstance":      KindClassInstance,
}

// typeNames はワイヤ型名（小文字） → 型タグ
var typeNames = func() map[string]NodeKind {
	m := make(map[string]NodeKind, len(kinds))
	for k, info := range kinds {
		m[strings.ToLower(info.typeName)] = k
	}
	return m
}()

// LookupKind は型名を型タグに解決する（大文字小文字は区別しない）
// 短い名前、ワイヤ型名、"Node" 接尾辞を除いた名前の順に探す
func LookupKind(name string) (NodeKind, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return 0, false
	}
	if k, ok := shortNames[key]; ok {
		return k, true
	}
	if k, ok := typeNames[key]; ok {
		return k, true
	}
	if trimmed, found := strings.CutSuffix(key, "node"); found && trimmed != "" {
		if k, ok := shortNames[trimmed]; ok {
			return k, true
		}
	}
	return 0, false
}

// constructors は型タグごとの既定ペイロード
var constructors = map[Shape]func(k NodeKind) *Node{
	ShapeScalar: func(k NodeKind) *Node {
		return &Node{Kind: k}
	},
	ShapeContainer: func(k NodeKind) *Node {
		return &Node{Kind: k, Children: []*Node{}}
	},
	ShapeWrapper: func(k NodeKind) *Node {
		if k == KindArray {
			return &Node{Kind: k, Inner: &Node{Kind: KindHex8}, Count: 1}
		}
		return &Node{Kind: k, Inner: &Node{Kind: KindHex64}}
	},
}

// NewNode は型タグから新しいノードを構築する
func NewNode(kind NodeKind, name string) *Node {
	n := constructors[kind.Shape()](kind)
	n.Name = name
	return n
}
