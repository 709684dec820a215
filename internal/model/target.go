package model

// Module はターゲットプロセスにロードされたモジュール
type Module struct {
	Name  string
	Path  string
	Start uint64
	End   uint64
	Size  uint64
}

// Section はターゲットプロセスのメモリセクション
type Section struct {
	Name       string
	Category   string // "code" | "data" | "heap" | "stack" | "unknown"
	Protection string // 例: "r-x"
	Type       string // "private" | "shared" | "image"
	Start      uint64
	End        uint64
	Size       uint64
	ModuleName string
}

// ProcessIdentity はアタッチ中プロセスの識別情報
type ProcessIdentity struct {
	ID   int
	Name string
	Path string
}
