package mainthread

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// startLoop はテスト用にLoopを起動し、終了関数を返す
func startLoop(t *testing.T) (*Loop, func()) {
	t.Helper()
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	return l, func() {
		cancel()
		<-done
	}
}

// TestLoop_Do_RunsOnOwner はタスクが所有goroutine上で実行されることをテスト
func TestLoop_Do_RunsOnOwner(t *testing.T) {
	l, stop := startLoop(t)
	defer stop()

	var onOwner bool
	err := l.Do(context.Background(), func(ctx context.Context) error {
		onOwner = l.IsOwner(ctx)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, onOwner)
	assert.False(t, l.IsOwner(context.Background()))
}

// TestLoop_Do_ReturnsTaskError はタスクのエラーが呼び出し元に返ることをテスト
func TestLoop_Do_ReturnsTaskError(t *testing.T) {
	l, stop := startLoop(t)
	defer stop()

	want := errors.New("boom")
	err := l.Do(context.Background(), func(ctx context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

// TestLoop_Do_Reentrant は所有goroutine上からのDoがその場で実行されることをテスト
func TestLoop_Do_Reentrant(t *testing.T) {
	l, stop := startLoop(t)
	defer stop()

	calls := 0
	err := l.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return l.Do(ctx, func(ctx context.Context) error {
			calls++
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

// TestLoop_Do_SerializesMutations はロックなしのカウンタが並行Doで失われないことをテスト
// -race で実行するとデータ競合がないことも確認できる
func TestLoop_Do_SerializesMutations(t *testing.T) {
	l, stop := startLoop(t)
	defer stop()

	counter := 0
	const workers, perWorker = 8, 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_ = l.Do(context.Background(), func(ctx context.Context) error {
					counter++
					return nil
				})
			}
		}()
	}
	wg.Wait()

	var got int
	err := l.Do(context.Background(), func(ctx context.Context) error {
		got = counter
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker, got)
}

// TestLoop_Do_RecoversPanic はタスクのpanicがエラーになりループが継続することをテスト
func TestLoop_Do_RecoversPanic(t *testing.T) {
	l, stop := startLoop(t)
	defer stop()

	err := l.Do(context.Background(), func(ctx context.Context) error {
		panic("bad task")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad task")

	err = l.Do(context.Background(), func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

// TestLoop_Do_AfterStop は停止後のDoがErrLoopStoppedを返すことをテスト
func TestLoop_Do_AfterStop(t *testing.T) {
	l, stop := startLoop(t)
	stop()

	err := l.Do(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLoopStopped)
	assert.ErrorIs(t, l.Run(context.Background()), ErrLoopRunning)
}

// TestLoop_Do_CallerCancelled は投入前に呼び出し元がキャンセルした場合をテスト
func TestLoop_Do_CallerCancelled(t *testing.T) {
	// Run していないLoopには投入できない
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Do(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
