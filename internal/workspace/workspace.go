// Package workspace holds the current project on behalf of the host.
//
// A Workspace is owned by the model-owner goroutine (see package
// mainthread). None of its methods are safe to call from anywhere else.
package workspace

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/brbranch/reclass_bridge/internal/model"
	"github.com/brbranch/reclass_bridge/internal/store"
)

// errNoProject はLoad前にCommitした場合のエラー
// ブリッジは自前の ErrNoProject で先に弾くので外には出さない
var errNoProject = errors.New("no project loaded")

// Workspace は現在のプロジェクトと保存先を保持する
type Workspace struct {
	store   store.Store
	logger  *zap.Logger
	current *model.Project
}

// New は新しいWorkspaceを生成（プロジェクトは未ロード）
func New(st store.Store, logger *zap.Logger) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{
		store:  st,
		logger: logger.Named("workspace"),
	}
}

// Load は保存先からプロジェクトを読み込み、現在のプロジェクトにする
func (w *Workspace) Load(ctx context.Context) error {
	project, err := w.store.LoadProject(ctx)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	w.current = project
	w.logger.Info("project loaded", zap.Int("classes", len(project.Classes())))
	return nil
}

// CurrentProject は現在のプロジェクトを返す（未ロードならnil）
func (w *Workspace) CurrentProject() *model.Project {
	return w.current
}

// Commit は現在のプロジェクトを保存先に書き出す
func (w *Workspace) Commit(ctx context.Context) error {
	if w.current == nil {
		return errNoProject
	}
	if err := w.store.SaveProject(ctx, w.current); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	w.logger.Debug("project saved", zap.Int("classes", len(w.current.Classes())))
	return nil
}
