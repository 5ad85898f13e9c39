package task

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"genmedia-service/internal/adapter"
	"genmedia-service/internal/model"
)

func TestStopInterruptsInflightJob(t *testing.T) {
	model.InitDB(filepath.Join(t.TempDir(), "test.db"))

	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 必须先读完请求体，服务端才会监听连接断开并取消 r.Context()
		io.Copy(io.Discard, r.Body)
		close(started)
		// 模拟一直不返回的 Provider，直到请求被取消
		<-r.Context().Done()
	}))
	defer srv.Close()

	var logs []*model.UsageLog
	e := textExecutor(t, srv.URL, &logs)

	InitPool(1, 4, e)
	GlobalPool.Start()

	record := &model.GenerationTask{
		TaskID:       "t-stop",
		Modality:     "text",
		ProviderName: "openai",
		Status:       string(StatusPending),
	}
	if err := model.DB.Create(record).Error; err != nil {
		t.Fatal(err)
	}
	req := &adapter.TextRequest{Messages: []adapter.ChatMessage{{Role: "user", Content: "hi"}}}
	if !GlobalPool.Submit(&Job{Record: record, Request: req}) {
		t.Fatal("提交失败")
	}
	<-started

	// Stop 必须打断进行中的调用尽快返回，而不是等它自然结束
	done := make(chan struct{})
	go func() {
		GlobalPool.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop 未及时返回")
	}

	// 被打断的任务不标记失败，留给重启恢复
	var got model.GenerationTask
	if err := model.DB.Where("task_id = ?", "t-stop").First(&got).Error; err != nil {
		t.Fatal(err)
	}
	if got.Status == string(StatusFailed) {
		t.Errorf("停机中断的任务不应标记失败: %s", got.Status)
	}
}
