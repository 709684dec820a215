package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/brbranch/reclass_bridge/internal/model"
)

const (
	// classCountWarningThreshold は警告を出すクラス件数の閾値
	classCountWarningThreshold = 5000
)

// SQLiteStore はSQLiteを使用したStore実装
// ノードツリーはクラスごとに JSON ドキュメントとして保存する
type SQLiteStore struct {
	mu          sync.RWMutex
	db          *sql.DB
	dbPath      string
	logger      *zap.Logger
	initialized bool
}

// NewSQLiteStore はSQLiteStoreを作成する
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WALモードを有効化
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		logger: logger.Named("store"),
	}, nil
}

// Initialize はストアを初期化する
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// classesテーブル作成
	classesSQL := `
	CREATE TABLE IF NOT EXISTS classes (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		comment TEXT,
		nodes TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_classes_position ON classes(position);
	`

	if _, err := s.db.ExecContext(ctx, classesSQL); err != nil {
		return fmt.Errorf("failed to create classes table: %w", err)
	}

	s.initialized = true
	return nil
}

// Close はストアをクローズする
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = false
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LoadProject は保存済みのクラスを登録順に読み込む
func (s *SQLiteStore) LoadProject(ctx context.Context) (*model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, comment, nodes
		FROM classes
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer rows.Close()

	project := model.NewProject()
	for rows.Next() {
		var (
			doc       classDoc
			comment   sql.NullString
			nodesJSON string
		)
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Address, &comment, &nodesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		doc.Comment = comment.String
		if err := json.Unmarshal([]byte(nodesJSON), &doc.Nodes); err != nil {
			return nil, fmt.Errorf("%w: class %s nodes: %v", ErrCorruptProject, doc.ID, err)
		}

		c, err := decodeClass(doc)
		if err != nil {
			return nil, err
		}
		if err := project.AddClass(c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptProject, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate classes: %w", err)
	}

	return project, nil
}

// SaveProject はプロジェクト全体を1トランザクションで置き換える
func (s *SQLiteStore) SaveProject(ctx context.Context, project *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM classes`); err != nil {
		return fmt.Errorf("failed to clear classes: %w", err)
	}

	classes := project.Classes()
	for i, c := range classes {
		doc := encodeClass(c)
		nodesJSON, err := json.Marshal(doc.Nodes)
		if err != nil {
			return fmt.Errorf("failed to marshal nodes: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO classes (id, position, name, address, comment, nodes)
			VALUES (?, ?, ?, ?, ?, ?)
		`, doc.ID, i, doc.Name, doc.Address, doc.Comment, string(nodesJSON))
		if err != nil {
			return fmt.Errorf("failed to insert class: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project: %w", err)
	}

	// 件数チェックと警告
	if len(classes) >= classCountWarningThreshold {
		s.logger.Warn("class count exceeded threshold",
			zap.Int("count", len(classes)),
			zap.Int("threshold", classCountWarningThreshold),
			zap.String("recommendation", "every mutation rewrites the whole project"))
	}

	return nil
}
