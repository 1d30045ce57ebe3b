package openai

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"syscall"
	"time"

	"github.com/openai/openai-go/v3"
)

const (
	// DefaultMaxRetries はリトライ回数のデフォルト上限
	DefaultMaxRetries = 5
	// DefaultRetryBaseDelay は初回リトライまでの待機時間
	DefaultRetryBaseDelay = time.Second
)

// retryPolicy は一時的なAPI障害に対する指数バックオフを実装する。
// 待機時間は試行ごとに倍増し、同時リトライの集中を避けるために
// 50〜100%の範囲でジッタを掛ける。
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration

	// テストから差し替えるためのフック
	sleep func(ctx context.Context, d time.Duration) error
	randF func() float64
}

func newRetryPolicy(maxRetries int, baseDelay time.Duration) *retryPolicy {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultRetryBaseDelay
	}
	return &retryPolicy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      sleepContext,
		randF:      rand.Float64,
	}
}

// do は op をリトライ付きで実行する。リトライ対象外のエラーは即座に返す。
func (p *retryPolicy) do(ctx context.Context, op func() error) error {
	delay := p.baseDelay

	var err error
	for attempt := 0; ; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt >= p.maxRetries || !isRetryable(err) {
			return err
		}

		if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
		delay = time.Duration(float64(delay) * 2 * (0.5 + p.randF()*0.5))
	}
}

// isRetryable はリトライする価値のある一時的エラーかどうかを判定する。
// 対象はレート制限（429）、サーバーエラー（500/503）、接続リセット、
// ネットワークタイムアウト。
func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 503:
			return true
		}
		return false
	}

	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
