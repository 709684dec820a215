package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/brbranch/reclass_bridge/internal/model"
)

// newSampleProject はコンテナ・ラッパーを含むプロジェクトを作る
func newSampleProject(t *testing.T) *model.Project {
	t.Helper()

	player := model.NewClass("Player", "game.exe+0x1000")
	player.Comment = "local player"
	player.AddNode(model.NewNode(model.KindInt32, "hp"))

	pos := model.NewNode(model.KindClassInstance, "pos")
	pos.AppendChild(model.NewNode(model.KindFloat, "x"))
	pos.AppendChild(model.NewNode(model.KindFloat, "y"))
	player.AddNode(pos)

	arr := model.NewNode(model.KindArray, "slots")
	arr.Inner = model.NewNode(model.KindInt16, "slot")
	arr.Count = 6
	arr.Comment = "inventory"
	player.AddNode(arr)
	player.AddNode(model.NewNode(model.KindPointer, "target"))

	weapon := model.NewClass("Weapon", "")

	p := model.NewProject()
	for _, c := range []*model.Class{player, weapon} {
		if err := p.AddClass(c); err != nil {
			t.Fatalf("AddClass failed: %v", err)
		}
	}
	return p
}

// projectDocs は比較用にプロジェクトを保存表現に変換する
func projectDocs(p *model.Project) []classDoc {
	var docs []classDoc
	for _, c := range p.Classes() {
		docs = append(docs, encodeClass(c))
	}
	return docs
}

// storeFactories はStore実装ごとのテスト用コンストラクタ
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"sqlite": func() Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "project.db"), nil)
			if err != nil {
				t.Fatalf("NewSQLiteStore failed: %v", err)
			}
			return s
		},
	}
}

// TestStore_SaveLoad は保存したプロジェクトが同じツリーとして復元されることをテスト
func TestStore_SaveLoad(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory()
			defer s.Close()

			if err := s.Initialize(ctx); err != nil {
				t.Fatalf("Initialize failed: %v", err)
			}

			empty, err := s.LoadProject(ctx)
			if err != nil {
				t.Fatalf("LoadProject failed: %v", err)
			}
			if len(empty.Classes()) != 0 {
				t.Fatalf("expected empty project, got %d classes", len(empty.Classes()))
			}

			orig := newSampleProject(t)
			if err := s.SaveProject(ctx, orig); err != nil {
				t.Fatalf("SaveProject failed: %v", err)
			}

			loaded, err := s.LoadProject(ctx)
			if err != nil {
				t.Fatalf("LoadProject failed: %v", err)
			}
			if diff := cmp.Diff(projectDocs(orig), projectDocs(loaded)); diff != "" {
				t.Errorf("loaded project mismatch (-want +got):\n%s", diff)
			}

			// オフセットは読み込み時に再計算される
			player := loaded.Classes()[0]
			if player.Nodes[2].Offset != 12 || player.Size() != 32 {
				t.Errorf("unexpected layout: offset=%d size=%d", player.Nodes[2].Offset, player.Size())
			}
			if player.ID != orig.Classes()[0].ID {
				t.Error("class id was not preserved")
			}
		})
	}
}

// TestStore_NotInitialized は未初期化のストアがErrNotInitializedを返すことをテスト
func TestStore_NotInitialized(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			defer s.Close()

			if _, err := s.LoadProject(context.Background()); !errors.Is(err, ErrNotInitialized) {
				t.Errorf("expected ErrNotInitialized, got %v", err)
			}
			if err := s.SaveProject(context.Background(), model.NewProject()); !errors.Is(err, ErrNotInitialized) {
				t.Errorf("expected ErrNotInitialized, got %v", err)
			}
		})
	}
}

// TestDecodeNode_UnknownType は未知の型名が破損扱いになることをテスト
func TestDecodeNode_UnknownType(t *testing.T) {
	_, err := decodeNode(nodeDoc{Type: "BogusNode"})
	if !errors.Is(err, ErrCorruptProject) {
		t.Errorf("expected ErrCorruptProject, got %v", err)
	}
}
