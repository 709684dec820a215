package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/brbranch/reclass_bridge/internal/model"
)

// bridge はBridgeの実装
type bridge struct {
	owner   Owner
	host    ProjectHost
	process Process
	logger  *zap.Logger
}

// NewBridge はBridgeの新しいインスタンスを作成
func NewBridge(owner Owner, host ProjectHost, process Process, logger *zap.Logger) Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &bridge{
		owner:   owner,
		host:    host,
		process: process,
		logger:  logger.Named("bridge"),
	}
}

// Status はアタッチ状態を返す（未アタッチでもエラーにしない）
func (b *bridge) Status(ctx context.Context) *StatusResponse {
	if !b.process.IsAttached() {
		return &StatusResponse{}
	}
	id := b.process.Identity()
	return &StatusResponse{
		Attached:    true,
		ProcessName: id.Name,
		ProcessID:   id.ID,
	}
}

// ProcessInfo はプロセスの詳細を返す
func (b *bridge) ProcessInfo(ctx context.Context) (*ProcessInfoResponse, error) {
	if !b.process.IsAttached() {
		return nil, ErrNoProcess
	}
	id := b.process.Identity()
	return &ProcessInfoResponse{
		ID:           id.ID,
		Name:         id.Name,
		Path:         id.Path,
		ModuleCount:  len(b.process.Modules()),
		SectionCount: len(b.process.Sections()),
	}, nil
}

// Modules はロード済みモジュールを返す
func (b *bridge) Modules(ctx context.Context) ([]model.Module, error) {
	if !b.process.IsAttached() {
		return nil, ErrNoProcess
	}
	return b.process.Modules(), nil
}

// Sections はメモリセクションを返す
func (b *bridge) Sections(ctx context.Context) ([]model.Section, error) {
	if !b.process.IsAttached() {
		return nil, ErrNoProcess
	}
	return b.process.Sections(), nil
}

// ParseAddress はアドレス式を解決する
// 未アタッチ時はモジュール式だけが解決できない
func (b *bridge) ParseAddress(ctx context.Context, formula string) (uint64, error) {
	var modules []model.Module
	if b.process.IsAttached() {
		modules = b.process.Modules()
	}
	return ParseAddressFormula(formula, modules)
}

// ReadMemory は size バイトを読み出す
func (b *bridge) ReadMemory(ctx context.Context, formula string, size int) (*ReadMemoryResponse, error) {
	// バリデーション
	if size < 1 || size > MaxReadSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	if !b.process.IsAttached() {
		return nil, ErrNoProcess
	}
	address, err := ParseAddressFormula(formula, b.process.Modules())
	if err != nil {
		return nil, err
	}

	data := b.process.ReadMemory(address, size)
	if data == nil {
		return nil, fmt.Errorf("%w at 0x%X", ErrReadFailed, address)
	}
	return &ReadMemoryResponse{Address: address, Data: data}, nil
}

// WriteMemory は data を書き込む
func (b *bridge) WriteMemory(ctx context.Context, formula string, data []byte) (*WriteMemoryResponse, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}
	if !b.process.IsAttached() {
		return nil, ErrNoProcess
	}
	address, err := ParseAddressFormula(formula, b.process.Modules())
	if err != nil {
		return nil, err
	}

	if !b.process.WriteMemory(address, data) {
		return nil, fmt.Errorf("%w at 0x%X", ErrWriteFailed, address)
	}
	b.logger.Debug("memory written", zap.Uint64("address", address), zap.Int("bytes", len(data)))
	return &WriteMemoryResponse{Address: address, BytesWritten: len(data)}, nil
}

// ListClasses は全クラスの概要を登録順に返す
func (b *bridge) ListClasses(ctx context.Context) ([]ClassSummary, error) {
	var summaries []ClassSummary
	err := b.owner.Do(ctx, func(ctx context.Context) error {
		project := b.host.CurrentProject()
		if project == nil {
			return ErrNoProject
		}
		summaries = make([]ClassSummary, 0, len(project.Classes()))
		for _, c := range project.Classes() {
			summaries = append(summaries, summarize(c))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// GetClass はクラスとノードツリー全体を返す
func (b *bridge) GetClass(ctx context.Context, identifier string) (*ClassDetail, error) {
	return b.detail(ctx, identifier, true)
}

// GetNodes はクラス直下のノードを添字付きで返す
func (b *bridge) GetNodes(ctx context.Context, identifier string) (*ClassDetail, error) {
	return b.detail(ctx, identifier, false)
}

func (b *bridge) detail(ctx context.Context, identifier string, recursive bool) (*ClassDetail, error) {
	var detail *ClassDetail
	err := b.withClass(ctx, identifier, func(c *model.Class) error {
		detail = &ClassDetail{
			ClassSummary: summarize(c),
			Nodes:        SerializeNodes(c.Nodes, recursive),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// CreateClass は新しいクラスを作成する
func (b *bridge) CreateClass(ctx context.Context, req *CreateClassRequest) (*ClassSummary, error) {
	if req.Name == "" {
		return nil, ErrNameRequired
	}

	var summary ClassSummary
	err := b.owner.Do(ctx, func(ctx context.Context) error {
		project := b.host.CurrentProject()
		if project == nil {
			return ErrNoProject
		}
		c := model.NewClass(req.Name, req.Address)
		if err := project.AddClass(c); err != nil {
			return err
		}
		summary = summarize(c)
		b.commit(ctx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("class created",
		zap.String("id", summary.ID),
		zap.String("name", summary.Name),
		zap.String("address", summary.Address))
	return &summary, nil
}

// AddNode はクラス末尾にノードを追加する
func (b *bridge) AddNode(ctx context.Context, req *AddNodeRequest) (*NodeRecord, error) {
	// 型解決は所有スレッドに投入する前に行う
	kind, err := resolveKind(req.Type)
	if err != nil {
		return nil, err
	}

	var record NodeRecord
	err = b.withClass(ctx, req.Class, func(c *model.Class) error {
		name := req.Name
		if name == "" {
			name = fmt.Sprintf("N%08X", c.Size())
		}
		index := c.AddNode(model.NewNode(kind, name))
		record = serializeNode(index, c.Nodes[index], true)
		b.commit(ctx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Debug("node added",
		zap.String("class", req.Class),
		zap.String("type", record.Type),
		zap.Int("index", record.Index))
	return &record, nil
}

// RenameNode はノード名を変更する
func (b *bridge) RenameNode(ctx context.Context, req *NodeEditRequest) (*NodeRecord, error) {
	if req.Value == "" {
		return nil, ErrNameRequired
	}
	return b.editNode(ctx, "node renamed", req, func(c *model.Class, n *model.Node) error {
		n.Name = req.Value
		return nil
	})
}

// SetComment はノードのコメントを設定する（空文字でクリア）
func (b *bridge) SetComment(ctx context.Context, req *NodeEditRequest) (*NodeRecord, error) {
	return b.editNode(ctx, "node comment set", req, func(c *model.Class, n *model.Node) error {
		n.Comment = req.Value
		return nil
	})
}

// ChangeNodeType はノードを別の型に差し替える（名前とコメントは引き継ぐ）
func (b *bridge) ChangeNodeType(ctx context.Context, req *NodeEditRequest) (*NodeRecord, error) {
	kind, err := resolveKind(req.Value)
	if err != nil {
		return nil, err
	}
	return b.editNode(ctx, "node type changed", req, func(c *model.Class, n *model.Node) error {
		replacement := model.NewNode(kind, n.Name)
		replacement.Comment = n.Comment
		return c.ReplaceNode(req.Index, replacement)
	})
}

// editNode は添字を検証してから edit を所有スレッド上で適用する
func (b *bridge) editNode(ctx context.Context, event string, req *NodeEditRequest, edit func(c *model.Class, n *model.Node) error) (*NodeRecord, error) {
	var record NodeRecord
	err := b.withClass(ctx, req.Class, func(c *model.Class) error {
		n, err := c.Node(req.Index)
		if err != nil {
			return fmt.Errorf("%w: %d (class has %d nodes)", ErrInvalidNodeIndex, req.Index, len(c.Nodes))
		}
		if err := edit(c, n); err != nil {
			return err
		}
		record = serializeNode(req.Index, c.Nodes[req.Index], true)
		b.commit(ctx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Debug(event, zap.String("class", req.Class), zap.Int("index", req.Index))
	return &record, nil
}

// withClass は所有スレッド上でクラスを解決して fn を実行する
func (b *bridge) withClass(ctx context.Context, identifier string, fn func(c *model.Class) error) error {
	return b.owner.Do(ctx, func(ctx context.Context) error {
		project := b.host.CurrentProject()
		if project == nil {
			return ErrNoProject
		}
		c, ok := project.ResolveClass(identifier)
		if !ok {
			return fmt.Errorf("%w: %s", ErrClassNotFound, identifier)
		}
		return fn(c)
	})
}

// commit は変更後のプロジェクトを保存する
// 保存の失敗はログのみ（モデル上の変更は取り消さない）
func (b *bridge) commit(ctx context.Context) {
	if err := b.host.Commit(ctx); err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("failed to commit project", zap.Error(err))
	}
}

func resolveKind(name string) (model.NodeKind, error) {
	kind, ok := model.LookupKind(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownNodeType, name)
	}
	return kind, nil
}
