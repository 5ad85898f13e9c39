package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"genmedia-service/internal/model"
)

// memStore 测试用内存存储
type memStore struct {
	mu      sync.Mutex
	records map[string]*model.ResourceDownload
	nextID  uint
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*model.ResourceDownload)}
}

func (s *memStore) Get(resourceType, resourceID string) (*model.ResourceDownload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[resourceType+":"+resourceID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) Save(record *model.ResourceDownload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == 0 {
		s.nextID++
		record.ID = s.nextID
	}
	cp := *record
	s.records[record.ResourceType+":"+record.ResourceID] = &cp
	return nil
}

func (s *memStore) ListByNamespace(namespace string) ([]model.ResourceDownload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ResourceDownload
	for _, r := range s.records {
		if r.Namespace == namespace {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memStore) DeleteByNamespace(namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, r := range s.records {
		if r.Namespace == namespace {
			delete(s.records, k)
		}
	}
	return nil
}

func newTestManager(t *testing.T) (*Manager, *memStore, string) {
	t.Helper()
	root := t.TempDir()
	store := newMemStore()
	return NewManager(store, nil, func() string { return root }, 0), store, root
}

func TestDownloadAndCacheHit(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	m, _, _ := newTestManager(t)
	req := Request{ResourceType: "video", ResourceID: "v1", Namespace: "proj-1", RemoteURL: srv.URL + "/v1.mp4"}

	record, cached, err := m.Download(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if cached {
		t.Error("首次下载不应命中缓存")
	}
	if record.Status != StateCompleted {
		t.Errorf("Status = %q", record.Status)
	}
	data, err := os.ReadFile(record.LocalPath)
	if err != nil || string(data) != "video-bytes" {
		t.Errorf("落盘内容 = %q, err = %v", data, err)
	}

	// 第二次同 key 请求直接复用
	record2, cached, err := m.Download(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !cached {
		t.Error("应命中缓存")
	}
	if record2.LocalPath != record.LocalPath {
		t.Errorf("LocalPath 不一致: %q vs %q", record2.LocalPath, record.LocalPath)
	}
	if hits != 1 {
		t.Errorf("服务端命中 %d 次", hits)
	}
}

func TestDownloadRedownloadsWhenFileMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	m, _, _ := newTestManager(t)
	req := Request{ResourceType: "image", ResourceID: "i1", RemoteURL: srv.URL + "/i1.png"}

	record, _, err := m.Download(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	os.Remove(record.LocalPath)

	_, cached, err := m.Download(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if cached {
		t.Error("文件丢失后不应报告缓存命中")
	}
	if _, err := os.Stat(record.LocalPath); err != nil {
		t.Errorf("文件未重新落盘: %v", err)
	}
}

func TestConcurrentDuplicateRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		<-release
		w.Write([]byte("slow"))
	}))
	defer srv.Close()

	m, _, _ := newTestManager(t)
	req := Request{ResourceType: "video", ResourceID: "dup", RemoteURL: srv.URL + "/d.mp4"}

	firstDone := make(chan error, 1)
	go func() {
		_, _, err := m.Download(context.Background(), req)
		firstDone <- err
	}()

	// 等第一个请求占住 key
	<-started
	var dupErr error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, _, err := m.Download(context.Background(), req)
		var dup *DuplicateInProgressError
		if errors.As(err, &dup) {
			dupErr = err
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(release)

	if dupErr == nil {
		t.Error("并发重复请求未被拒绝")
	}
	if err := <-firstDone; err != nil {
		t.Errorf("第一个下载失败: %v", err)
	}
}

func TestFailedDownloadAndRetry(t *testing.T) {
	broken := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if broken {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	m, store, _ := newTestManager(t)
	req := Request{ResourceType: "audio", ResourceID: "a1", RemoteURL: srv.URL + "/a1.mp3"}

	record, _, err := m.Download(context.Background(), req)
	var transferErr *TransferError
	if !errors.As(err, &transferErr) {
		t.Fatalf("err 类型 = %T", err)
	}
	if record.Status != StateFailed {
		t.Errorf("Status = %q", record.Status)
	}
	if record.ErrorMessage == "" {
		t.Error("失败记录缺少错误信息")
	}
	if _, statErr := os.Stat(record.LocalPath); statErr == nil {
		t.Error("失败后不应留下文件")
	}

	broken = false
	retried, err := m.Retry(context.Background(), "audio", "a1")
	if err != nil {
		t.Fatal(err)
	}
	if retried.Status != StateCompleted {
		t.Errorf("重试后 Status = %q", retried.Status)
	}

	saved, _ := store.Get("audio", "a1")
	if saved.ErrorMessage != "" {
		t.Errorf("重试成功后错误信息未清空: %q", saved.ErrorMessage)
	}
}

func TestRedirectFollowedWithinBound(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hop1":
			http.Redirect(w, r, srv.URL+"/hop2", http.StatusFound)
		case "/hop2":
			http.Redirect(w, r, srv.URL+"/final.bin", http.StatusFound)
		default:
			w.Write([]byte("payload"))
		}
	}))
	defer srv.Close()

	m, _, _ := newTestManager(t)
	record, _, err := m.Download(context.Background(), Request{
		ResourceType: "file", ResourceID: "r1", RemoteURL: srv.URL + "/hop1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if record.FileSize != int64(len("payload")) {
		t.Errorf("FileSize = %d", record.FileSize)
	}
}

func TestRedirectLoopFails(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path, http.StatusFound)
	}))
	defer srv.Close()

	m, _, _ := newTestManager(t)
	record, _, err := m.Download(context.Background(), Request{
		ResourceType: "file", ResourceID: "loop", RemoteURL: srv.URL + "/loop",
	})
	var transferErr *TransferError
	if !errors.As(err, &transferErr) {
		t.Fatalf("err 类型 = %T: %v", err, err)
	}
	if record.Status != StateFailed {
		t.Errorf("Status = %q", record.Status)
	}
}

func TestStatusProgress(t *testing.T) {
	m, store, _ := newTestManager(t)

	store.Save(&model.ResourceDownload{
		ResourceType: "video", ResourceID: "p1",
		Status: StateDownloading, FileSize: 200, DownloadedSize: 50,
	})

	info, err := m.Status("video", "p1")
	if err != nil {
		t.Fatal(err)
	}
	if info.ProgressPercent != 25 {
		t.Errorf("ProgressPercent = %v", info.ProgressPercent)
	}

	if info, _ := m.Status("video", "不存在"); info != nil {
		t.Error("未知资源应返回 nil")
	}
}

func TestPurgeNamespace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	m, store, _ := newTestManager(t)
	var paths []string
	for i := 0; i < 3; i++ {
		record, _, err := m.Download(context.Background(), Request{
			ResourceType: "image",
			ResourceID:   fmt.Sprintf("img-%d", i),
			Namespace:    "proj-x",
			RemoteURL:    srv.URL + fmt.Sprintf("/%d.png", i),
		})
		if err != nil {
			t.Fatal(err)
		}
		paths = append(paths, record.LocalPath)
	}

	removed, err := m.PurgeNamespace("proj-x")
	if err != nil {
		t.Fatal(err)
	}
	if removed != 3 {
		t.Errorf("removed = %d", removed)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			t.Errorf("文件 %s 未删除", p)
		}
	}
	if records, _ := store.ListByNamespace("proj-x"); len(records) != 0 {
		t.Errorf("记录未清空: %d", len(records))
	}
}
