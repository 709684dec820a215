// Package store provides project persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/brbranch/reclass_bridge/internal/model"
)

// Store はプロジェクト保存先の抽象インターフェース
// 呼び出しはモデル所有goroutineからのみ行う
type Store interface {
	// プロジェクト操作
	LoadProject(ctx context.Context) (*model.Project, error)
	SaveProject(ctx context.Context, project *model.Project) error

	// 初期化・終了
	Initialize(ctx context.Context) error
	Close() error
}
