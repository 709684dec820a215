// Package bootstrap provides common initialization logic for reclass-bridge.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brbranch/reclass_bridge/internal/config"
	"github.com/brbranch/reclass_bridge/internal/jsonrpc"
	"github.com/brbranch/reclass_bridge/internal/mainthread"
	"github.com/brbranch/reclass_bridge/internal/model"
	"github.com/brbranch/reclass_bridge/internal/service"
	"github.com/brbranch/reclass_bridge/internal/store"
	"github.com/brbranch/reclass_bridge/internal/target"
	"github.com/brbranch/reclass_bridge/internal/transport/tcp"
	"github.com/brbranch/reclass_bridge/internal/workspace"
)

// App は初期化されたコンポーネント群を保持
type App struct {
	Config    *model.Config
	Logger    *zap.Logger
	Loop      *mainthread.Loop
	Workspace *workspace.Workspace
	Process   service.Process
	Bridge    service.Bridge
	Handler   *jsonrpc.Handler
	Server    *tcp.Server
}

// Option は設定読み込み後の上書き（CLIフラグなど）
type Option func(cfg *model.Config)

// LoadConfig は設定ファイル・環境変数・オプションの順に反映した設定を返す
func LoadConfig(configPath string, opts ...Option) (*model.Config, error) {
	// 設定マネージャーの作成
	configManager, err := config.NewManager(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	// 設定ファイルの読み込み
	if err := configManager.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 環境変数 → CLIフラグの順で上書き
	var envErr error
	err = configManager.Update(func(cfg *model.Config) {
		envErr = config.ApplyEnvOverrides(cfg)
		for _, opt := range opts {
			opt(cfg)
		}
	})
	if envErr != nil {
		return nil, envErr
	}
	if err != nil {
		return nil, err
	}
	return configManager.GetConfig(), nil
}

// NewLogger はログレベルを指定したproduction loggerを生成（出力はstderr）
func NewLogger(level string) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()

	logLevel := zap.InfoLevel
	if level != "" {
		if err := logLevel.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	zapConfig.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := zapConfig.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// Initialize は設定に従って必要なコンポーネントを初期化する
// logger が nil の場合は設定のログレベルで生成する
func Initialize(ctx context.Context, cfg *model.Config, logger *zap.Logger) (*App, func(), error) {
	if logger == nil {
		var err error
		logger, err = NewLogger(cfg.Log.Level)
		if err != nil {
			return nil, nil, err
		}
	}

	// 1. Store初期化
	st, err := NewStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	// 2. 対象プロセス
	process, err := NewProcess(cfg.Target)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	// 3. 所有ループとブリッジ
	loop := mainthread.New()
	ws := workspace.New(st, logger)
	bridge := service.NewBridge(loop, ws, process, logger)
	handler := jsonrpc.New(bridge, logger)

	// 4. TCPサーバー
	server := tcp.New(handler, tcp.Config{
		Port:          cfg.Server.Port,
		ReadTimeout:   seconds(cfg.Server.ReadTimeoutSeconds),
		WriteTimeout:  seconds(cfg.Server.WriteTimeoutSeconds),
		ShutdownGrace: seconds(cfg.Server.ShutdownGraceSeconds),
	}, logger)

	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Loop:      loop,
		Workspace: ws,
		Process:   process,
		Bridge:    bridge,
		Handler:   handler,
		Server:    server,
	}, cleanup, nil
}

// Run は所有ループとTCPサーバーを起動し、ctx がキャンセルされるまで実行する
// プロジェクトの読み込みは所有ループ上で行う
func (a *App) Run(ctx context.Context) error {
	// ループはサーバー停止後に止める
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Loop.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer stopLoop()

		if err := a.Loop.Do(gctx, a.Workspace.Load); err != nil {
			return err
		}
		a.Logger.Info("reclass-bridge started",
			zap.Int("port", a.Config.Server.Port),
			zap.String("target", a.Config.Target.Mode),
			zap.String("store", a.Config.Store.Type))
		return a.Server.Run(gctx)
	})

	err := g.Wait()
	// 起動途中でキャンセルされた場合も正常終了
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// NewStore は設定に応じたStoreを作成して初期化する
func NewStore(ctx context.Context, cfg *model.Config, logger *zap.Logger) (store.Store, error) {
	var st store.Store
	switch cfg.Store.Type {
	case model.StoreTypeSQLite:
		// SQLiteのDBパスを決定
		dbPath, err := config.ResolveStorePath(cfg)
		if err != nil {
			return nil, err
		}
		// DBファイルの親ディレクトリを作成
		if err := config.EnsureDir(filepath.Dir(dbPath)); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		sqlite, err := store.NewSQLiteStore(dbPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite store: %w", err)
		}
		st = sqlite
	default:
		st = store.NewMemoryStore()
	}

	if err := st.Initialize(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return st, nil
}

// NewProcess は設定に応じた対象プロセスのアクセサを作成する
func NewProcess(cfg model.TargetConfig) (service.Process, error) {
	switch cfg.Mode {
	case model.TargetProcfs:
		p, err := target.Attach(cfg.PID)
		if err != nil {
			return nil, fmt.Errorf("failed to attach to process %d: %w", cfg.PID, err)
		}
		return p, nil
	case model.TargetSimulated:
		return target.NewDemoImage(), nil
	default:
		return target.Detached{}, nil
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
