package store

import "errors"

// エラー定義
var (
	ErrNotInitialized = errors.New("store not initialized")
	ErrCorruptProject = errors.New("stored project is corrupt")
)
