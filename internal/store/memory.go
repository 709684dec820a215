package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/brbranch/reclass_bridge/internal/model"
)

// MemoryStore はインメモリのStore実装（テスト・既定値）
// 保存時にディープコピーするので、呼び出し側のプロジェクトとは共有しない
type MemoryStore struct {
	mu          sync.RWMutex
	classes     []classDoc
	initialized bool
}

// NewMemoryStore はMemoryStoreを作成する
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Initialize はストアを初期化する
func (s *MemoryStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	return nil
}

// Close はストアをクローズする
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.classes = nil
	s.initialized = false
	return nil
}

// LoadProject は保存済みのプロジェクトを復元する（未保存なら空）
func (s *MemoryStore) LoadProject(ctx context.Context) (*model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	project := model.NewProject()
	for _, doc := range s.classes {
		c, err := decodeClass(doc)
		if err != nil {
			return nil, err
		}
		if err := project.AddClass(c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptProject, err)
		}
	}
	return project, nil
}

// SaveProject はプロジェクト全体のスナップショットを保存する
func (s *MemoryStore) SaveProject(ctx context.Context, project *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	classes := project.Classes()
	docs := make([]classDoc, len(classes))
	for i, c := range classes {
		docs[i] = encodeClass(c)
	}
	s.classes = docs
	return nil
}
