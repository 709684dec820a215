package model

// Config はサーバー全体の設定を表す
type Config struct {
	Server ServerConfig `json:"server"`
	Target TargetConfig `json:"target"`
	Store  StoreConfig  `json:"store"`
	Log    LogConfig    `json:"log"`
	Paths  PathsConfig  `json:"paths"`
}

// ServerConfig はTCPサーバー設定
// ポートは起動時に固定され、実行中は変更できない
type ServerConfig struct {
	Port                 int `json:"port"`                 // 127.0.0.1 のみで listen
	ReadTimeoutSeconds   int `json:"readTimeoutSeconds"`   // セッションの読み込みタイムアウト
	WriteTimeoutSeconds  int `json:"writeTimeoutSeconds"`  // セッションの書き込みタイムアウト
	ShutdownGraceSeconds int `json:"shutdownGraceSeconds"` // stop 時に処理中セッションを待つ時間
}

// TargetConfig はアタッチ先プロセスの設定
type TargetConfig struct {
	Mode string `json:"mode"`          // "none" | "procfs" | "simulated"
	PID  int    `json:"pid,omitempty"` // procfs のみ
}

// StoreConfig はプロジェクト保存先の設定
type StoreConfig struct {
	Type string  `json:"type"`           // "memory" | "sqlite"
	Path *string `json:"path,omitempty"` // nullable（SQLite用）
}

// LogConfig はログ設定
type LogConfig struct {
	Level string `json:"level"` // "debug" | "info" | "warn" | "error"
}

// PathsConfig はファイルパス設定
type PathsConfig struct {
	ConfigPath string `json:"configPath"` // 設定ファイルパス
	DataDir    string `json:"dataDir"`    // データディレクトリ
}

// DefaultPort は既定の待ち受けポート
const DefaultPort = 27015

// Target Mode定数
const (
	TargetNone      = "none"
	TargetProcfs    = "procfs"
	TargetSimulated = "simulated"
)

// Store Type定数
const (
	StoreTypeMemory = "memory"
	StoreTypeSQLite = "sqlite"
)
