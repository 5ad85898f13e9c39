package task

import (
	"fmt"
	"time"
)

// SubmissionError 提交阶段失败：请求成功但响应里拿不到任务 ID，或提交本身被拒
type SubmissionError struct {
	Provider string
	Reason   string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("任务提交失败 [%s]: %s", e.Provider, e.Reason)
}

// TimeoutError 轮询超出最大等待时间，任务在 Provider 侧可能仍在运行
type TimeoutError struct {
	TaskID string
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("任务 %s 等待超时 (已等待 %s)", e.TaskID, e.Waited)
}

// FailedError Provider 报告任务失败
type FailedError struct {
	TaskID    string
	RawStatus string
	Message   string
}

func (e *FailedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("任务 %s 失败 [%s]: %s", e.TaskID, e.RawStatus, e.Message)
	}
	return fmt.Sprintf("任务 %s 失败 [%s]", e.TaskID, e.RawStatus)
}
