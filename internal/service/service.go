package service

import (
	"context"
	"errors"

	"github.com/brbranch/reclass_bridge/internal/model"
)

// Bridge はコマンドとメモリモデル・対象プロセスの間をつなぐ
type Bridge interface {
	// プロセス（読み取り専用、所有スレッドを経由しない）
	Status(ctx context.Context) *StatusResponse
	ProcessInfo(ctx context.Context) (*ProcessInfoResponse, error)
	Modules(ctx context.Context) ([]model.Module, error)
	Sections(ctx context.Context) ([]model.Section, error)
	ParseAddress(ctx context.Context, formula string) (uint64, error)
	ReadMemory(ctx context.Context, formula string, size int) (*ReadMemoryResponse, error)
	WriteMemory(ctx context.Context, formula string, data []byte) (*WriteMemoryResponse, error)

	// クラス参照
	ListClasses(ctx context.Context) ([]ClassSummary, error)
	GetClass(ctx context.Context, identifier string) (*ClassDetail, error)
	GetNodes(ctx context.Context, identifier string) (*ClassDetail, error)

	// クラス変更（所有スレッド上で実行）
	CreateClass(ctx context.Context, req *CreateClassRequest) (*ClassSummary, error)
	AddNode(ctx context.Context, req *AddNodeRequest) (*NodeRecord, error)
	RenameNode(ctx context.Context, req *NodeEditRequest) (*NodeRecord, error)
	SetComment(ctx context.Context, req *NodeEditRequest) (*NodeRecord, error)
	ChangeNodeType(ctx context.Context, req *NodeEditRequest) (*NodeRecord, error)
}

// Owner はモデル所有スレッドへの投入口（mainthread.Loop）
type Owner interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProjectHost はホストが所有するプロジェクトへのアクセサ
// 所有スレッド上でのみ呼ばれる
type ProjectHost interface {
	CurrentProject() *model.Project
	Commit(ctx context.Context) error
}

// Process は対象プロセスへのアクセサ
type Process interface {
	IsAttached() bool
	ReadMemory(address uint64, size int) []byte
	WriteMemory(address uint64, data []byte) bool
	Modules() []model.Module
	Sections() []model.Section
	Identity() model.ProcessIdentity
}

// MaxReadSize は read_memory で一度に読める最大バイト数
const MaxReadSize = 65536

// エラー定義
var (
	ErrNoProcess        = errors.New("no process attached")
	ErrNoProject        = errors.New("no project loaded")
	ErrClassNotFound    = errors.New("class not found")
	ErrUnknownNodeType  = errors.New("unknown node type")
	ErrInvalidNodeIndex = errors.New("invalid node index")
	ErrInvalidAddress   = errors.New("invalid address formula")
	ErrInvalidSize      = errors.New("size must be between 1 and 65536")
	ErrInvalidData      = errors.New("data must not be empty")
	ErrNameRequired     = errors.New("name is required")
	ErrReadFailed       = errors.New("failed to read memory")
	ErrWriteFailed      = errors.New("failed to write memory")
)
