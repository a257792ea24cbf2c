package api

import "time"

// RetryPolicy 重试次数不含首次请求；第 n 次重试前等待 Backoff * 2^(n-1)。
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	Statuses   []int
}

// DefaultRetryPolicy 3 次重试，1s→2s→4s，限流与网关类状态码重试。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		Backoff:    time.Second,
		Statuses:   []int{429, 500, 502, 503, 504},
	}
}

func (p RetryPolicy) Retryable(status int) bool {
	for _, s := range p.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.Backoff * time.Duration(1<<(attempt-1))
}

// Budget 单次请求在该策略下的最长耗时：每次尝试都超时，并等满全部退避。
func (p RetryPolicy) Budget(timeout time.Duration) time.Duration {
	total := time.Duration(p.MaxRetries+1) * timeout
	for i := 1; i <= p.MaxRetries; i++ {
		total += p.Delay(i)
	}
	return total
}
