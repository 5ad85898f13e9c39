package task

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"genmedia-service/internal/adapter"
	"genmedia-service/internal/model"
	"genmedia-service/internal/profile"
)

func textExecutor(t *testing.T, apiBase string, recorded *[]*model.UsageLog) *Executor {
	t.Helper()
	entry := &profile.Entry{
		Profile:   profile.Defaults(profile.ModalityText, "openai"),
		APIBase:   apiBase,
		APIKey:    "test-key",
		ModelName: "test-model",
	}
	e := &Executor{
		Text:  adapter.NewTextAdapter(nil),
		Image: adapter.NewImageAdapter(nil),
		Video: adapter.NewVideoAdapter(nil),
		Voice: adapter.NewVoiceAdapter(nil),
		Lookup: func(m profile.Modality, provider string) (*profile.Entry, bool) {
			return entry, true
		},
		RecordUsage: func(entryLog *model.UsageLog) {
			*recorded = append(*recorded, entryLog)
		},
	}
	e.Setup()
	return e
}

func TestExecuteRecordsUsageWithSnapshots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "生成结果"}},
			},
			"usage": map[string]interface{}{
				"prompt_tokens": 3, "completion_tokens": 7,
			},
		})
	}))
	defer srv.Close()

	var logs []*model.UsageLog
	e := textExecutor(t, srv.URL, &logs)

	record := &model.GenerationTask{TaskID: "t-1", Modality: "text", ProviderName: "openai"}
	req := &adapter.TextRequest{Messages: []adapter.ChatMessage{{Role: "user", Content: "写一句话"}}}
	result, err := e.Execute(context.Background(), record, req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Content != "生成结果" {
		t.Errorf("Content = %q", result.Content)
	}

	if len(logs) != 1 {
		t.Fatalf("用量记录条数 = %d", len(logs))
	}
	entry := logs[0]
	if entry.Status != "success" || entry.TokensIn != 3 || entry.TokensOut != 7 {
		t.Errorf("用量记录 = %+v", entry)
	}
	if !strings.Contains(entry.RequestSnapshot, "写一句话") {
		t.Errorf("请求快照未包含原始请求: %q", entry.RequestSnapshot)
	}
	if !strings.Contains(entry.ResponseSnapshot, "生成结果") {
		t.Errorf("响应快照未包含 Provider 响应: %q", entry.ResponseSnapshot)
	}
}

func TestExecuteRecordsFailureWithoutSnapshottingNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"无效的 API Key"}}`))
	}))
	defer srv.Close()

	var logs []*model.UsageLog
	e := textExecutor(t, srv.URL, &logs)

	record := &model.GenerationTask{TaskID: "t-2", Modality: "text", ProviderName: "openai"}
	req := &adapter.TextRequest{Messages: []adapter.ChatMessage{{Role: "user", Content: "hi"}}}
	if _, err := e.Execute(context.Background(), record, req, nil); err == nil {
		t.Fatal("401 应返回错误")
	}

	if len(logs) != 1 {
		t.Fatalf("用量记录条数 = %d", len(logs))
	}
	entry := logs[0]
	if entry.Status != "failed" || entry.ErrorMessage == "" {
		t.Errorf("用量记录 = %+v", entry)
	}
	if entry.RequestSnapshot == "" {
		t.Error("失败调用也应保留请求快照")
	}
	if entry.ResponseSnapshot != "" {
		t.Errorf("没有成功响应时响应快照应为空: %q", entry.ResponseSnapshot)
	}
}
