package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"genmedia-service/internal/adapter"
	"genmedia-service/internal/profile"
)

func TestNormalizeSynonyms(t *testing.T) {
	cases := []struct {
		raw  string
		want Status
	}{
		{"SUCCESS", StatusCompleted},
		{"succeed", StatusCompleted},
		{"Finished", StatusCompleted},
		{"FAILURE", StatusFailed},
		{"cancelled", StatusFailed},
		{"NOT_START", StatusPending},
		{"queued", StatusPending},
		{"IN_PROGRESS", StatusProcessing},
		{"generating", StatusProcessing},
		{"", StatusProcessing},
		{"某种新状态", StatusProcessing},
		// 完全匹配，不做子串匹配
		{"precancelled", StatusProcessing},
		{"successor", StatusProcessing},
	}
	for _, c := range cases {
		if got := Normalize(c.raw, nil); got != c.want {
			t.Errorf("Normalize(%q) = %s, want %s", c.raw, got, c.want)
		}
	}
}

func TestNormalizeStatusMapTakesPrecedence(t *testing.T) {
	// Provider 把 "pending" 当作失败态用，显式映射必须压过同义词表
	statusMap := map[string]string{"pending": "failed"}
	if got := Normalize("pending", statusMap); got != StatusFailed {
		t.Errorf("显式映射未生效: %s", got)
	}
	// 映射表没覆盖的词仍走同义词表
	if got := Normalize("succeed", statusMap); got != StatusCompleted {
		t.Errorf("同义词兜底未生效: %s", got)
	}
	// 映射表是原文精确匹配，大小写不同不命中
	if got := Normalize("PENDING", statusMap); got != StatusPending {
		t.Errorf("大小写不同不应命中映射表: %s", got)
	}
}

func TestAdvanceMonotonic(t *testing.T) {
	// 正常推进
	if s, changed := Advance(StatusPending, StatusProcessing); s != StatusProcessing || !changed {
		t.Errorf("pending→processing: %s %v", s, changed)
	}
	// 不允许回退
	if s, changed := Advance(StatusProcessing, StatusPending); s != StatusProcessing || changed {
		t.Errorf("processing 不应回退: %s %v", s, changed)
	}
	// 终态冻结
	if s, changed := Advance(StatusCompleted, StatusFailed); s != StatusCompleted || changed {
		t.Errorf("终态不应再变: %s %v", s, changed)
	}
	if s, changed := Advance(StatusFailed, StatusProcessing); s != StatusFailed || changed {
		t.Errorf("终态不应再变: %s %v", s, changed)
	}
	// 允许跳级
	if s, changed := Advance(StatusPending, StatusCompleted); s != StatusCompleted || !changed {
		t.Errorf("pending→completed: %s %v", s, changed)
	}
}

func pollEntry() *profile.Entry {
	return &profile.Entry{
		Profile: profile.Profile{
			PollInterval: time.Millisecond,
			MaxWait:      time.Second,
		},
	}
}

func TestWaitUntilTerminalSuccess(t *testing.T) {
	statuses := []string{"NOT_START", "IN_PROGRESS", "SUCCESS"}
	calls := 0
	runner := NewRunner(func(ctx context.Context, entry *profile.Entry, id string) (*adapter.GenerationResult, error) {
		result := &adapter.GenerationResult{RawStatus: statuses[calls]}
		if statuses[calls] == "SUCCESS" {
			result.MediaURL = "https://cdn.example.com/out.mp4"
		}
		if calls < len(statuses)-1 {
			calls++
		}
		return result, nil
	})

	var seen []Status
	result, err := runner.WaitUntilTerminal(context.Background(), pollEntry(), "tid", func(s Status, _ *adapter.GenerationResult) {
		seen = append(seen, s)
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.MediaURL != "https://cdn.example.com/out.mp4" {
		t.Errorf("MediaURL = %q", result.MediaURL)
	}
	// 每次轮询都通知一次，状态单调推进
	want := []Status{StatusPending, StatusProcessing, StatusCompleted}
	if len(seen) != len(want) {
		t.Fatalf("状态序列 = %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("状态序列 = %v", seen)
			break
		}
	}
}

func TestWaitUntilTerminalFailed(t *testing.T) {
	runner := NewRunner(func(ctx context.Context, entry *profile.Entry, id string) (*adapter.GenerationResult, error) {
		return &adapter.GenerationResult{RawStatus: "FAILURE", Message: "内容违规"}, nil
	})

	_, err := runner.WaitUntilTerminal(context.Background(), pollEntry(), "tid", nil)
	var failed *FailedError
	if !errors.As(err, &failed) {
		t.Fatalf("err 类型 = %T", err)
	}
	if failed.Message != "内容违规" {
		t.Errorf("Message = %q", failed.Message)
	}
}

func TestWaitUntilTerminalTimeout(t *testing.T) {
	runner := NewRunner(func(ctx context.Context, entry *profile.Entry, id string) (*adapter.GenerationResult, error) {
		return &adapter.GenerationResult{RawStatus: "IN_PROGRESS"}, nil
	})

	entry := pollEntry()
	entry.Profile.MaxWait = 10 * time.Millisecond

	_, err := runner.WaitUntilTerminal(context.Background(), entry, "tid", nil)
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("err 类型 = %T", err)
	}
}

func TestWaitUntilTerminalAbsorbsTransientErrors(t *testing.T) {
	// 连续多次 5xx 也不放弃，恢复后正常拿到结果
	calls := 0
	runner := NewRunner(func(ctx context.Context, entry *profile.Entry, id string) (*adapter.GenerationResult, error) {
		calls++
		if calls <= 5 {
			return nil, &adapter.ProviderHTTPError{Status: 503, BodyExcerpt: "upstream busy"}
		}
		return &adapter.GenerationResult{RawStatus: "SUCCESS"}, nil
	})

	_, err := runner.WaitUntilTerminal(context.Background(), pollEntry(), "tid", nil)
	if err != nil {
		t.Fatalf("瞬时错误应被吸收: %v", err)
	}
	if calls != 6 {
		t.Errorf("调用次数 = %d", calls)
	}
}

func TestWaitUntilTerminalTransientErrorsBoundedByDeadline(t *testing.T) {
	// 一直 5xx 时由最大等待时间兜底，返回超时而非轮询错误
	runner := NewRunner(func(ctx context.Context, entry *profile.Entry, id string) (*adapter.GenerationResult, error) {
		return nil, &adapter.ProviderHTTPError{Status: 503}
	})

	entry := pollEntry()
	entry.Profile.MaxWait = 10 * time.Millisecond

	_, err := runner.WaitUntilTerminal(context.Background(), entry, "tid", nil)
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("err 类型 = %T, want *TimeoutError", err)
	}
}

func TestWaitUntilTerminalFatalClientError(t *testing.T) {
	calls := 0
	runner := NewRunner(func(ctx context.Context, entry *profile.Entry, id string) (*adapter.GenerationResult, error) {
		calls++
		return nil, &adapter.ProviderHTTPError{Status: 404, BodyExcerpt: "task not found"}
	})

	_, err := runner.WaitUntilTerminal(context.Background(), pollEntry(), "tid", nil)
	var httpErr *adapter.ProviderHTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != 404 {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("4xx 不应重试, 调用次数 = %d", calls)
	}
}

func TestWaitUntilTerminalContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := NewRunner(func(ctx context.Context, entry *profile.Entry, id string) (*adapter.GenerationResult, error) {
		cancel()
		return &adapter.GenerationResult{RawStatus: "IN_PROGRESS"}, nil
	})

	_, err := runner.WaitUntilTerminal(ctx, pollEntry(), "tid", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}
