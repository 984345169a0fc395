package browserless

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter はバックエンドへの同時リクエスト数を制限するプロセス共通のセマフォです
// 複数のジョブが同時に動作していても、同じLimiterを共有するクライアント全体で上限が守られます
type Limiter struct {
	sem      *semaphore.Weighted
	size     int64
	inFlight atomic.Int64
}

// NewLimiter は指定した同時実行数のLimiterを作成します
func NewLimiter(size int) *Limiter {
	if size < 1 {
		size = 1
	}
	return &Limiter{
		sem:  semaphore.NewWeighted(int64(size)),
		size: int64(size),
	}
}

// Acquire はスロットを1つ取得します
// Acquire が nil を返した場合、呼び出し側は必ず Release を呼ぶこと（通常はdefer文で）
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.inFlight.Add(1)
	return nil
}

// Release はスロットを解放します
func (l *Limiter) Release() {
	l.inFlight.Add(-1)
	l.sem.Release(1)
}

// Status は現在の状態を返す（デバッグ・監視用）
func (l *Limiter) Status() LimiterStatus {
	return LimiterStatus{
		Size:     int(l.size),
		InFlight: int(l.inFlight.Load()),
	}
}

// LimiterStatus はLimiterの状態
type LimiterStatus struct {
	Size     int
	InFlight int
}

// String はステータスを文字列表現で返す
func (s LimiterStatus) String() string {
	return fmt.Sprintf("Limiter: size=%d, inFlight=%d", s.Size, s.InFlight)
}
