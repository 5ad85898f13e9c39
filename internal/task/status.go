package task

import "strings"

// Status 任务的归一化状态。只有四个值，终态为 completed 与 failed。
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal 终态判断
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	}
	return 1
}

// 各家 Provider 状态词的同义词表。完全匹配，不做子串匹配
// （"precancelled" 这类词不能撞上 "cancelled"）。
var statusSynonyms = map[string]Status{
	"not_start": StatusPending,
	"pending":   StatusPending,
	"queued":    StatusPending,
	"queueing":  StatusPending,
	"submitted": StatusPending,
	"waiting":   StatusPending,
	"created":   StatusPending,

	"in_progress": StatusProcessing,
	"processing":  StatusProcessing,
	"running":     StatusProcessing,
	"generating":  StatusProcessing,
	"in_queue":    StatusProcessing,
	"started":     StatusProcessing,

	"success":   StatusCompleted,
	"succeed":   StatusCompleted,
	"succeeded": StatusCompleted,
	"completed": StatusCompleted,
	"complete":  StatusCompleted,
	"finished":  StatusCompleted,
	"done":      StatusCompleted,

	"failed":    StatusFailed,
	"fail":      StatusFailed,
	"failure":   StatusFailed,
	"error":     StatusFailed,
	"canceled":  StatusFailed,
	"cancelled": StatusFailed,
	"expired":   StatusFailed,
}

var canonical = map[string]Status{
	"pending":    StatusPending,
	"processing": StatusProcessing,
	"completed":  StatusCompleted,
	"failed":     StatusFailed,
}

// Normalize 把 Provider 的原始状态词翻译为归一化状态。
// Profile 的 StatusMap 优先（原文精确匹配），其次查全局同义词表（忽略大小写），
// 都不认识的词按 processing 处理，轮询继续。
func Normalize(raw string, statusMap map[string]string) Status {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return StatusProcessing
	}

	if statusMap != nil {
		if mapped, ok := statusMap[trimmed]; ok {
			if s, ok := canonical[strings.ToLower(mapped)]; ok {
				return s
			}
		}
	}

	if s, ok := statusSynonyms[strings.ToLower(trimmed)]; ok {
		return s
	}
	return StatusProcessing
}

// Advance 单调推进状态：已到达的状态不允许回退，终态不允许再变。
// 返回推进后的状态与是否发生了变化。
func Advance(current, next Status) (Status, bool) {
	if current.IsTerminal() {
		return current, false
	}
	if next.rank() < current.rank() {
		return current, false
	}
	if next == current {
		return current, false
	}
	return next, true
}
