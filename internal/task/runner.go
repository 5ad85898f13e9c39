package task

import (
	"context"
	"log"
	"time"

	"genmedia-service/internal/adapter"
	"genmedia-service/internal/profile"
)

// QueryFunc 查询一次 Provider 侧任务状态
type QueryFunc func(ctx context.Context, entry *profile.Entry, providerTaskID string) (*adapter.GenerationResult, error)

// Runner 异步任务轮询器。提交后的任务由它按 Profile 配置的间隔轮询，
// 直到终态或超时。
type Runner struct {
	query QueryFunc
}

func NewRunner(query QueryFunc) *Runner {
	return &Runner{query: query}
}

// Poll 查询一次并归一化状态
func (r *Runner) Poll(ctx context.Context, entry *profile.Entry, providerTaskID string) (Status, *adapter.GenerationResult, error) {
	result, err := r.query(ctx, entry, providerTaskID)
	if err != nil {
		return StatusProcessing, nil, err
	}
	return Normalize(result.RawStatus, entry.Profile.StatusMap), result, nil
}

// WaitUntilTerminal 轮询直到任务进入终态。
// 状态只会单调推进，每次成功轮询后通过 onUpdate 通知（可为 nil），
// 包括状态未变的轮询。
// 瞬时错误（网络抖动、5xx、429）只打日志并继续轮询，直到截止时间；
// 4xx 与格式错误视为不可恢复，立即返回。
func (r *Runner) WaitUntilTerminal(ctx context.Context, entry *profile.Entry, providerTaskID string, onUpdate func(Status, *adapter.GenerationResult)) (*adapter.GenerationResult, error) {
	interval := entry.Profile.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	maxWait := entry.Profile.MaxWait
	if maxWait <= 0 {
		maxWait = 10 * time.Minute
	}

	started := time.Now()
	deadline := started.Add(maxWait)
	current := StatusPending

	for {
		status, result, err := r.Poll(ctx, entry, providerTaskID)
		switch {
		case err == nil:
			if next, changed := Advance(current, status); changed {
				current = next
			}
			if onUpdate != nil {
				onUpdate(current, result)
			}
			if current == StatusCompleted {
				return result, nil
			}
			if current == StatusFailed {
				return result, &FailedError{
					TaskID:    providerTaskID,
					RawStatus: result.RawStatus,
					Message:   result.Message,
				}
			}
		case !isTransient(err):
			return nil, err
		default:
			// 瞬时故障不终止等待，由截止时间兜底
			log.Printf("[TaskRunner] 任务 %s 轮询出错，继续重试: %v", providerTaskID, err)
		}

		if time.Now().Add(interval).After(deadline) {
			return nil, &TimeoutError{TaskID: providerTaskID, Waited: time.Since(started)}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// isTransient 判断轮询错误是否值得重试
func isTransient(err error) bool {
	switch e := err.(type) {
	case *adapter.ProviderHTTPError:
		return e.Status >= 500 || e.Status == 429
	case *adapter.ProviderFormatError:
		return false
	}
	// 其余按网络抖动处理
	return true
}
