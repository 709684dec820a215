package service

import "github.com/brbranch/reclass_bridge/internal/model"

// SerializeNodes はノード列をレコード列に変換する（ツリーは変更しない）
// recursive が false の場合コンテナの子は含めない
func SerializeNodes(nodes []*model.Node, recursive bool) []NodeRecord {
	records := make([]NodeRecord, 0, len(nodes))
	for i, n := range nodes {
		records = append(records, serializeNode(i, n, recursive))
	}
	return records
}

func serializeNode(index int, n *model.Node, recursive bool) NodeRecord {
	r := NodeRecord{
		Index:   index,
		Type:    n.Kind.TypeName(),
		Name:    n.Name,
		Offset:  n.Offset,
		Size:    n.Size(),
		Comment: n.Comment,
	}
	switch {
	case n.IsContainer():
		r.Container = true
		if recursive {
			r.Children = SerializeNodes(n.Children, true)
		} else {
			r.Children = []NodeRecord{}
		}
	case n.IsWrapper():
		if n.Inner != nil {
			r.InnerType = n.Inner.Kind.TypeName()
		}
		if n.Kind == model.KindArray {
			r.Count = n.Count
		}
	}
	return r
}

func summarize(c *model.Class) ClassSummary {
	return ClassSummary{
		ID:        c.ID.String(),
		Name:      c.Name,
		Address:   c.AddressFormula,
		Comment:   c.Comment,
		Size:      c.Size(),
		NodeCount: len(c.Nodes),
	}
}
