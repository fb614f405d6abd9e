package retry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// Config 重试策略：有上限的指数退避 + 随机抖动，所有尝试串行执行
type Config struct {
	MaxAttempts int           // 总尝试次数（含第一次）
	InitialWait time.Duration // 第一次重试前的等待
	MaxWait     time.Duration // 退避上限
	Multiplier  float64
	Jitter      time.Duration // 每次等待额外叠加 [0, Jitter) 的随机时长

	// Retryable 为 nil 时所有错误都重试
	Retryable func(error) bool
	// Sleep 为 nil 时使用真实等待，测试中可替换
	Sleep func(ctx context.Context, d time.Duration) error
	// Name 用于日志
	Name string
}

// Default 适用于普通 HTTP 调用
var Default = Config{
	MaxAttempts: 3,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     10 * time.Second,
	Multiplier:  2.0,
	Retryable:   IsTransient,
}

// Backoff 计算第 attempt 次失败后的等待时长（attempt 从 0 开始，不含抖动）
func (c Config) Backoff(attempt int) time.Duration {
	mult := c.Multiplier
	if mult <= 0 {
		mult = 2
	}
	wait := time.Duration(float64(c.InitialWait) * math.Pow(mult, float64(attempt)))
	if c.MaxWait > 0 && wait > c.MaxWait {
		wait = c.MaxWait
	}
	return wait
}

// Do 执行 fn，失败时按配置退避后重试；fn 收到的 attempt 从 1 开始
func Do[T any](ctx context.Context, c Config, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		if c.Retryable != nil && !c.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		wait := c.Backoff(attempt - 1)
		if c.Jitter > 0 {
			wait += time.Duration(rand.Int64N(int64(c.Jitter)))
		}
		slog.Debug("retrying",
			slog.String("op", c.Name),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err))
		if err := c.sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func (c Config) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

// Sleep 可被 context 打断的等待
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HTTP 执行 HTTP 请求并对可重试的状态码重试
func HTTP(ctx context.Context, c Config, fn func() (*http.Response, error)) (*http.Response, error) {
	return Do(ctx, c, func(int) (*http.Response, error) {
		resp, err := fn()
		if err != nil {
			return nil, err
		}
		if IsRetryableStatus(resp.StatusCode) {
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
}

// StatusError 可重试的 HTTP 状态码
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return "HTTP " + http.StatusText(e.StatusCode)
}

// IsTransient 判断是否为值得重试的临时错误
func IsTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return IsRetryableStatus(statusErr.StatusCode)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// IsRetryableStatus 429 和 5xx 网关类错误可以重试
func IsRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
