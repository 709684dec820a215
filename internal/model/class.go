package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultAddressFormula は address 未指定時のクラスのアドレス式
const DefaultAddressFormula = "0"

var (
	ErrDuplicateClassID = errors.New("duplicate class id")
	ErrNodeIndex        = errors.New("node index out of range")
)

// Class はユーザー定義のメモリレイアウト
// ID は生成後不変。Nodes の並び順がオフセットを決める
type Class struct {
	ID             uuid.UUID
	Name           string
	AddressFormula string
	Comment        string
	Nodes          []*Node
}

// NewClass は新しいUUIDを持つ空のクラスを生成する
func NewClass(name, addressFormula string) *Class {
	if addressFormula == "" {
		addressFormula = DefaultAddressFormula
	}
	return &Class{
		ID:             uuid.New(),
		Name:           name,
		AddressFormula: addressFormula,
		Nodes:          []*Node{},
	}
}

// Size はクラス全体のバイトサイズ（ノードから導出）
func (c *Class) Size() int {
	size := 0
	for _, n := range c.Nodes {
		size += n.Size()
	}
	return size
}

// AddNode は末尾にノードを追加し、追加位置を返す
func (c *Class) AddNode(n *Node) int {
	c.Nodes = append(c.Nodes, n)
	layout(c.Nodes)
	return len(c.Nodes) - 1
}

// Node は index 番目のノードを返す
func (c *Class) Node(index int) (*Node, error) {
	if index < 0 || index >= len(c.Nodes) {
		return nil, fmt.Errorf("%w: %d (class has %d nodes)", ErrNodeIndex, index, len(c.Nodes))
	}
	return c.Nodes[index], nil
}

// ReplaceNode は index 番目のノードを差し替え、後続のオフセットを再計算する
func (c *Class) ReplaceNode(index int, n *Node) error {
	if _, err := c.Node(index); err != nil {
		return err
	}
	c.Nodes[index] = n
	layout(c.Nodes)
	return nil
}

// Clone はクラスのディープコピーを返す（IDは保持）
func (c *Class) Clone() *Class {
	nodes := make([]*Node, len(c.Nodes))
	for i, n := range c.Nodes {
		nodes[i] = n.Clone()
	}
	return &Class{
		ID:             c.ID,
		Name:           c.Name,
		AddressFormula: c.AddressFormula,
		Comment:        c.Comment,
		Nodes:          nodes,
	}
}

// Project は現在ロードされているクラスの集合
type Project struct {
	classes []*Class
}

// NewProject は空のプロジェクトを生成する
func NewProject() *Project {
	return &Project{}
}

// AddClass はクラスを登録する。UUIDはプロジェクト内で一意
func (p *Project) AddClass(c *Class) error {
	for _, existing := range p.classes {
		if existing.ID == c.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateClassID, c.ID)
		}
	}
	p.classes = append(p.classes, c)
	return nil
}

// Classes は登録順のクラス一覧を返す
func (p *Project) Classes() []*Class {
	return p.classes
}

// ResolveClass は識別子からクラスを探す
// UUIDとして一致するものを優先し、次に名前（大文字小文字無視）で探す。最初の一致を返す
func (p *Project) ResolveClass(identifier string) (*Class, bool) {
	if id, err := uuid.Parse(identifier); err == nil {
		for _, c := range p.classes {
			if c.ID == id {
				return c, true
			}
		}
	}
	for _, c := range p.classes {
		if strings.EqualFold(c.Name, identifier) {
			return c, true
		}
	}
	return nil, false
}
