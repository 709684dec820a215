package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/brbranch/reclass_bridge/internal/model"
)

// ErrInvalidConfig は設定値が不正な場合のエラー
var ErrInvalidConfig = errors.New("invalid config")

// Manager は設定の読み書きを管理する
type Manager struct {
	mu         sync.RWMutex
	config     *model.Config
	configPath string
}

// NewManager は新しいManagerを作成する
// configPathが空文字の場合、デフォルトパス（~/.reclass-bridge/config.json）を使用
func NewManager(configPath string) (*Manager, error) {
	// configPathが空の場合はデフォルトパスを使用
	if configPath == "" {
		defaultPath, err := GetDefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get default config path: %w", err)
		}
		configPath = defaultPath
	}

	// デフォルトのデータディレクトリを取得
	dataDir, err := GetDefaultDataDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get default data dir: %w", err)
	}

	return &Manager{
		config:     DefaultConfig(configPath, dataDir),
		configPath: configPath,
	}, nil
}

// Load は設定ファイルを読み込む
// ファイルが存在しない場合はデフォルト設定を使用（エラーなし）
// ファイルにないフィールドはデフォルト値のまま残る
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// デフォルト値の上にパース
	config := cloneConfig(m.config)
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	// パスは常に実際の読み込み元
	config.Paths.ConfigPath = m.configPath

	if err := Validate(&config); err != nil {
		return err
	}

	m.config = &config
	return nil
}

// Save は設定ファイルを保存する
func (m *Manager) Save() error {
	m.mu.RLock()
	config := m.config
	m.mu.RUnlock()

	// ディレクトリを作成
	configDir := filepath.Dir(m.configPath)
	if err := EnsureDir(configDir); err != nil {
		return err
	}

	// JSONにエンコード
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 一時ファイルに書き込み（atomicな保存のため）
	tmpFile := m.configPath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}

	// 一時ファイルを本番ファイルにリネーム
	if err := os.Rename(tmpFile, m.configPath); err != nil {
		os.Remove(tmpFile) // クリーンアップ
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	return nil
}

// GetConfig は現在の設定を返す（ロード済みの場合）
func (m *Manager) GetConfig() *model.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetConfigPath は設定ファイルパスを返す
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// Update は設定を変更して検証する。検証に失敗した場合は変更しない
// 起動前（CLIフラグ・環境変数の反映）にのみ使う
func (m *Manager) Update(fn func(cfg *model.Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := cloneConfig(m.config)
	fn(&next)

	if err := Validate(&next); err != nil {
		return err
	}
	m.config = &next
	return nil
}

// cloneConfig はポインタフィールドも含めて設定をコピーする
func cloneConfig(c *model.Config) model.Config {
	out := *c
	if c.Store.Path != nil {
		path := *c.Store.Path
		out.Store.Path = &path
	}
	return out
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig(configPath, dataDir string) *model.Config {
	return &model.Config{
		Server: model.ServerConfig{
			Port:                 model.DefaultPort,
			ReadTimeoutSeconds:   30,
			WriteTimeoutSeconds:  30,
			ShutdownGraceSeconds: 5,
		},
		Target: model.TargetConfig{
			Mode: model.TargetSimulated,
		},
		Store: model.StoreConfig{
			Type: model.StoreTypeMemory,
			Path: nil,
		},
		Log: model.LogConfig{
			Level: "info",
		},
		Paths: model.PathsConfig{
			ConfigPath: configPath,
			DataDir:    dataDir,
		},
	}
}

// Validate は設定値を検証する
func Validate(cfg *model.Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be between 0 and 65535: %d", ErrInvalidConfig, cfg.Server.Port)
	}
	if cfg.Server.ReadTimeoutSeconds < 0 || cfg.Server.WriteTimeoutSeconds < 0 || cfg.Server.ShutdownGraceSeconds < 0 {
		return fmt.Errorf("%w: server timeouts must not be negative", ErrInvalidConfig)
	}

	switch cfg.Target.Mode {
	case model.TargetNone, model.TargetSimulated:
	case model.TargetProcfs:
		if cfg.Target.PID <= 0 {
			return fmt.Errorf("%w: target.pid is required for procfs mode", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown target.mode %q", ErrInvalidConfig, cfg.Target.Mode)
	}

	switch cfg.Store.Type {
	case model.StoreTypeMemory, model.StoreTypeSQLite:
	default:
		return fmt.Errorf("%w: unknown store.type %q", ErrInvalidConfig, cfg.Store.Type)
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log.level %q", ErrInvalidConfig, cfg.Log.Level)
	}
	return nil
}
