package domain

import (
	"context"
	"math/rand/v2"
	"time"
)

// DelayBounds は待機時間の下限と上限です
type DelayBounds struct {
	Min time.Duration
	Max time.Duration
}

// SecondsBounds は秒単位の設定値からDelayBoundsを作成します
func SecondsBounds(minSeconds, maxSeconds float64) DelayBounds {
	return DelayBounds{
		Min: time.Duration(minSeconds * float64(time.Second)),
		Max: time.Duration(maxSeconds * float64(time.Second)),
	}
}

// Delayer はリクエスト間に挿入する待機のポリシーです
type Delayer interface {
	Wait(ctx context.Context, bounds DelayBounds) error
}

// RandomDelayer は下限と上限の間で一様に選んだ時間だけ待機します
type RandomDelayer struct{}

// Wait は待機します。コンテキストがキャンセルされた場合はそのエラーを返します
func (RandomDelayer) Wait(ctx context.Context, bounds DelayBounds) error {
	d := Jitter(bounds, rand.Float64())
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Jitter は [0,1) の値 r に対応する待機時間を返します
func Jitter(bounds DelayBounds, r float64) time.Duration {
	lo, hi := bounds.Min, bounds.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + time.Duration(r*float64(hi-lo))
}

// NoDelay は待機しないポリシーです（テスト用）
type NoDelay struct{}

// Wait は即座に戻ります
func (NoDelay) Wait(ctx context.Context, _ DelayBounds) error {
	return ctx.Err()
}
