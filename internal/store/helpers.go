package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/brbranch/reclass_bridge/internal/model"
)

// classDoc は保存用のクラス表現
type classDoc struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Address string    `json:"address"`
	Comment string    `json:"comment,omitempty"`
	Nodes   []nodeDoc `json:"nodes"`
}

// nodeDoc は保存用のノード表現（型はワイヤ型名で持つ）
// オフセットは保存しない。読み込み時に再計算する
type nodeDoc struct {
	Type     string    `json:"type"`
	Name     string    `json:"name,omitempty"`
	Comment  string    `json:"comment,omitempty"`
	Children []nodeDoc `json:"children,omitempty"`
	Inner    *nodeDoc  `json:"inner,omitempty"`
	Count    int       `json:"count,omitempty"`
}

func encodeClass(c *model.Class) classDoc {
	return classDoc{
		ID:      c.ID.String(),
		Name:    c.Name,
		Address: c.AddressFormula,
		Comment: c.Comment,
		Nodes:   encodeNodes(c.Nodes),
	}
}

func encodeNodes(nodes []*model.Node) []nodeDoc {
	docs := make([]nodeDoc, len(nodes))
	for i, n := range nodes {
		docs[i] = encodeNode(n)
	}
	return docs
}

func encodeNode(n *model.Node) nodeDoc {
	doc := nodeDoc{
		Type:    n.Kind.TypeName(),
		Name:    n.Name,
		Comment: n.Comment,
		Count:   n.Count,
	}
	if n.IsContainer() {
		doc.Children = encodeNodes(n.Children)
	}
	if n.IsWrapper() && n.Inner != nil {
		inner := encodeNode(n.Inner)
		doc.Inner = &inner
	}
	return doc
}

func decodeClass(doc classDoc) (*model.Class, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: class id %q: %v", ErrCorruptProject, doc.ID, err)
	}
	c := &model.Class{
		ID:             id,
		Name:           doc.Name,
		AddressFormula: doc.Address,
		Comment:        doc.Comment,
		Nodes:          []*model.Node{},
	}
	for _, nd := range doc.Nodes {
		n, err := decodeNode(nd)
		if err != nil {
			return nil, err
		}
		c.AddNode(n)
	}
	return c, nil
}

func decodeNode(doc nodeDoc) (*model.Node, error) {
	kind, ok := model.LookupKind(doc.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown node type %q", ErrCorruptProject, doc.Type)
	}
	n := model.NewNode(kind, doc.Name)
	n.Comment = doc.Comment

	if n.IsContainer() {
		for _, cd := range doc.Children {
			child, err := decodeNode(cd)
			if err != nil {
				return nil, err
			}
			n.AppendChild(child)
		}
	}
	if n.IsWrapper() {
		if doc.Inner != nil {
			inner, err := decodeNode(*doc.Inner)
			if err != nil {
				return nil, err
			}
			n.Inner = inner
		}
		if doc.Count > 0 {
			n.Count = doc.Count
		}
	}
	return n, nil
}
