// Package mainthread marshals work onto the single goroutine that owns the
// project model.
//
// The owning goroutine calls Run. Any other goroutine hands work to it with
// Do, which blocks until the work has executed and returns its error. Work
// that is already running on the owner receives a context tagged with the
// loop, so nested Do calls execute in place instead of deadlocking.
package mainthread

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrLoopStopped は Run が終了した後に Do が呼ばれた場合のエラー
var ErrLoopStopped = errors.New("owner loop is not running")

// ErrLoopRunning は Run が2回以上呼ばれた場合のエラー（Loopは再利用できない）
var ErrLoopRunning = errors.New("owner loop has already been started")

type ownerKey struct{}

type task struct {
	fn   func(ctx context.Context) error
	done chan error
}

// Loop はモデル所有goroutineへのタスクキュー
type Loop struct {
	tasks   chan task
	stopped chan struct{}

	mu      sync.Mutex
	running bool
	exited  bool
}

// New は新しいLoopを生成
func New() *Loop {
	return &Loop{
		// バッファなし: 送信成功 = 所有goroutineが受け取った
		tasks:   make(chan task),
		stopped: make(chan struct{}),
	}
}

// Run は ctx がキャンセルされるまでタスクを1つずつ実行する
// 呼び出したgoroutineがモデルの所有者になる
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running || l.exited {
		l.mu.Unlock()
		return ErrLoopRunning
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.exited = true
		l.mu.Unlock()
		close(l.stopped)
	}()

	ownerCtx := context.WithValue(ctx, ownerKey{}, l)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-l.tasks:
			t.done <- invoke(ownerCtx, t.fn)
		}
	}
}

// Do は fn を所有goroutine上で実行し、完了まで待つ
// 既に所有goroutine上（ctx がタスクのもの）ならその場で実行する
func (l *Loop) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if l.IsOwner(ctx) {
		return fn(ctx)
	}

	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case l.tasks <- t:
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// 受け取られたタスクは必ず実行されるので結果だけを待つ
	return <-t.done
}

// IsOwner は ctx が所有goroutine上のタスクのものかどうか
func (l *Loop) IsOwner(ctx context.Context) bool {
	owner, _ := ctx.Value(ownerKey{}).(*Loop)
	return owner == l
}

// invoke はタスクのpanicをエラーに変換する（所有goroutineは止めない）
func invoke(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in owner task: %v", r)
		}
	}()
	return fn(ctx)
}
