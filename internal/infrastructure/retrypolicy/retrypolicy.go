// Package retrypolicy 封装外部调用的有限次退避重试。
package retrypolicy

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy 描述一次调用的重试次数与退避基数。
type Policy struct {
	MaxRetries uint64
	Base       time.Duration
	MaxBackoff time.Duration
}

// Default 适用于向量库与事件发布：最多 3 次重试，Fibonacci 退避。
var Default = Policy{MaxRetries: 3, Base: 100 * time.Millisecond, MaxBackoff: 2 * time.Second}

// Do 执行 task，非永久错误按策略重试。上下文取消或超时立即返回。
func Do(ctx context.Context, p Policy, task func(ctx context.Context) error) error {
	b := retry.NewFibonacci(p.Base)
	if p.MaxBackoff > 0 {
		b = retry.WithCappedDuration(p.MaxBackoff, b)
	}
	return retry.Do(ctx, retry.WithMaxRetries(p.MaxRetries, b), func(ctx context.Context) error {
		err := task(ctx)
		if err == nil || !ShouldRetry(err) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// Permanent 标记不可重试的错误。
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// ShouldRetry 判断错误是否值得重试。
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perm *permanentError
	return !errors.As(err, &perm)
}
