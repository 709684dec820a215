package workspace

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/brbranch/reclass_bridge/internal/model"
	"github.com/brbranch/reclass_bridge/internal/store"
)

// TestWorkspace_CommitAndLoad はコミットした内容が別のWorkspaceから読めることをテスト
func TestWorkspace_CommitAndLoad(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := st.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	ws := New(st, zaptest.NewLogger(t))
	if ws.CurrentProject() != nil {
		t.Fatal("expected no project before Load")
	}
	if err := ws.Commit(ctx); !errors.Is(err, errNoProject) {
		t.Errorf("expected errNoProject, got %v", err)
	}

	if err := ws.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	c := model.NewClass("Player", "")
	if err := ws.CurrentProject().AddClass(c); err != nil {
		t.Fatal(err)
	}
	if err := ws.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	other := New(st, nil)
	if err := other.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := other.CurrentProject().ResolveClass(c.ID.String()); !ok {
		t.Error("expected committed class to be loaded")
	}
}

// TestWorkspace_LoadError はストアのエラーがラップされて返ることをテスト
func TestWorkspace_LoadError(t *testing.T) {
	ws := New(store.NewMemoryStore(), nil)
	err := ws.Load(context.Background())
	if !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if ws.CurrentProject() != nil {
		t.Error("expected no project after failed Load")
	}
}
