package openai

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (e *timeoutError) Error() string { return "i/o timeout" }
func (e *timeoutError) Timeout() bool { return true }

// net.Error 互換であることの確認
func (e *timeoutError) Temporary() bool { return false }

// fakeSleep は実際に待機せず、要求された待機時間を記録する
type fakeSleep struct {
	delays []time.Duration
}

func (s *fakeSleep) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func newTestPolicy(maxRetries int) (*retryPolicy, *fakeSleep) {
	policy := newRetryPolicy(maxRetries, time.Second)
	sleeper := &fakeSleep{}
	policy.sleep = sleeper.sleep
	policy.randF = func() float64 { return 1.0 } // ジッタを最大値に固定
	return policy, sleeper
}

func TestRetryPolicyDo(t *testing.T) {
	t.Run("成功したら即座に返す", func(t *testing.T) {
		policy, sleeper := newTestPolicy(5)

		calls := 0
		err := policy.do(context.Background(), func() error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Empty(t, sleeper.delays)
	})

	t.Run("レート制限エラーはリトライして回復する", func(t *testing.T) {
		policy, sleeper := newTestPolicy(5)

		calls := 0
		err := policy.do(context.Background(), func() error {
			calls++
			if calls <= 2 {
				return &openai.Error{StatusCode: 429}
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)

		// ジッタ固定時は待機時間が倍増する
		require.Len(t, sleeper.delays, 2)
		assert.Equal(t, time.Second, sleeper.delays[0])
		assert.Equal(t, 2*time.Second, sleeper.delays[1])
	})

	t.Run("リトライ上限を超えたら最後のエラーを返す", func(t *testing.T) {
		policy, sleeper := newTestPolicy(2)

		calls := 0
		apiErr := &openai.Error{StatusCode: 503}
		err := policy.do(context.Background(), func() error {
			calls++
			return apiErr
		})

		require.Error(t, err)
		assert.Equal(t, 3, calls) // 初回 + リトライ2回
		assert.Len(t, sleeper.delays, 2)
	})

	t.Run("リトライ対象外のエラーは即座に返す", func(t *testing.T) {
		policy, sleeper := newTestPolicy(5)

		calls := 0
		err := policy.do(context.Background(), func() error {
			calls++
			return &openai.Error{StatusCode: 401}
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Empty(t, sleeper.delays)
	})

	t.Run("待機中のキャンセルはコンテキストエラーを返す", func(t *testing.T) {
		policy := newRetryPolicy(5, time.Second)
		policy.randF = func() float64 { return 1.0 }

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := policy.do(ctx, func() error {
			return &openai.Error{StatusCode: 429}
		})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("ジッタにより待機時間が1〜2倍の範囲で伸びる", func(t *testing.T) {
		policy, sleeper := newTestPolicy(5)
		policy.randF = func() float64 { return 0.0 } // ジッタを最小値に固定

		calls := 0
		err := policy.do(context.Background(), func() error {
			calls++
			if calls <= 2 {
				return &openai.Error{StatusCode: 429}
			}
			return nil
		})

		require.NoError(t, err)
		require.Len(t, sleeper.delays, 2)
		assert.Equal(t, time.Second, sleeper.delays[0])
		// 最小ジッタでも待機時間は前回と同じかそれ以上
		assert.Equal(t, time.Second, sleeper.delays[1])
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"レート制限", &openai.Error{StatusCode: 429}, true},
		{"サーバーエラー500", &openai.Error{StatusCode: 500}, true},
		{"サーバーエラー503", &openai.Error{StatusCode: 503}, true},
		{"認証エラー", &openai.Error{StatusCode: 401}, false},
		{"不正リクエスト", &openai.Error{StatusCode: 400}, false},
		{"接続リセット", fmt.Errorf("request failed: %w", syscall.ECONNRESET), true},
		{"ネットワークタイムアウト", &timeoutError{}, true},
		{"通常のエラー", errors.New("something broke"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}
