package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/brbranch/reclass_bridge/internal/model"
)

// 環境変数名の定数
const (
	EnvPort      = "RECLASS_BRIDGE_PORT"
	EnvLogLevel  = "RECLASS_BRIDGE_LOG_LEVEL"
	EnvStorePath = "RECLASS_BRIDGE_STORE_PATH"
)

// ApplyEnvOverrides は環境変数による設定上書きを適用する
// config を直接変更する
func ApplyEnvOverrides(config *model.Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer: %q", ErrInvalidConfig, EnvPort, v)
		}
		config.Server.Port = port
	}

	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		config.Log.Level = strings.ToLower(v)
	}

	// ストアパスを指定した場合はSQLiteを使う
	if v := os.Getenv(EnvStorePath); v != "" {
		config.Store.Type = model.StoreTypeSQLite
		config.Store.Path = &v
	}
	return nil
}
