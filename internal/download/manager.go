package download

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"genmedia-service/internal/model"
)

// 下载记录状态
const (
	StatePending     = "pending"
	StateDownloading = "downloading"
	StateCompleted   = "completed"
	StateFailed      = "failed"
)

// DuplicateInProgressError 同一资源的下载已在进行中
type DuplicateInProgressError struct {
	ResourceType string
	ResourceID   string
}

func (e *DuplicateInProgressError) Error() string {
	return fmt.Sprintf("资源 %s/%s 正在下载中", e.ResourceType, e.ResourceID)
}

// Request 一次资源下载请求。同一 (ResourceType, ResourceID) 只会成功落盘一次。
type Request struct {
	ResourceType string
	ResourceID   string
	Namespace    string
	RemoteURL    string
}

// Manager 资源下载管理器。以 (resource_type, resource_id) 为幂等键：
// 已完成且文件还在直接复用，进行中的重复请求被拒绝，失败的可以重试。
type Manager struct {
	store  Store
	client *http.Client
	rootFn func() string

	mu       sync.Mutex
	inflight map[string]bool
}

// NewManager rootFn 解析资源根目录（运行期可改，所以不在构造时固定）。
// maxRedirects <= 0 时使用默认上限。
func NewManager(store Store, client *http.Client, rootFn func() string, maxRedirects int) *Manager {
	return &Manager{
		store:    store,
		client:   newTransferClient(client, maxRedirects),
		rootFn:   rootFn,
		inflight: make(map[string]bool),
	}
}

func downloadKey(resourceType, resourceID string) string {
	return resourceType + ":" + resourceID
}

// Download 执行（或复用）一次资源下载。
// 返回值第二项表示是否直接命中了已完成的本地文件。
func (m *Manager) Download(ctx context.Context, req Request) (*model.ResourceDownload, bool, error) {
	if req.ResourceType == "" || req.ResourceID == "" || req.RemoteURL == "" {
		return nil, false, fmt.Errorf("resource_type、resource_id、remote_url 均不能为空")
	}

	key := downloadKey(req.ResourceType, req.ResourceID)

	m.mu.Lock()
	if m.inflight[key] {
		m.mu.Unlock()
		return nil, false, &DuplicateInProgressError{ResourceType: req.ResourceType, ResourceID: req.ResourceID}
	}

	record, err := m.store.Get(req.ResourceType, req.ResourceID)
	if err != nil {
		m.mu.Unlock()
		return nil, false, err
	}

	// 已完成且文件还在：直接复用
	if record != nil && record.Status == StateCompleted {
		if fileExists(record.LocalPath) {
			m.mu.Unlock()
			return record, true, nil
		}
		// 文件被外部删除，重新下载
		log.Printf("[Download] 资源 %s 本地文件丢失，重新下载", key)
	}

	if record == nil {
		record = &model.ResourceDownload{
			ResourceType: req.ResourceType,
			ResourceID:   req.ResourceID,
		}
	}
	record.Namespace = req.Namespace
	record.RemoteURL = req.RemoteURL
	record.Status = StatePending
	record.DownloadedSize = 0
	record.FileSize = 0
	record.ErrorMessage = ""
	if err := m.store.Save(record); err != nil {
		m.mu.Unlock()
		return nil, false, err
	}

	m.inflight[key] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inflight, key)
		m.mu.Unlock()
	}()

	return m.perform(ctx, record)
}

func (m *Manager) perform(ctx context.Context, record *model.ResourceDownload) (*model.ResourceDownload, bool, error) {
	destPath := m.localPath(record)

	record.Status = StateDownloading
	record.LocalPath = destPath
	if err := m.store.Save(record); err != nil {
		return nil, false, err
	}

	// 进度落库做了节流，避免大文件把数据库写爆
	var lastPersisted int64
	size, err := transfer(ctx, m.client, record.RemoteURL, destPath, func(downloaded, total int64) {
		record.DownloadedSize = downloaded
		if total > 0 {
			record.FileSize = total
		}
		if downloaded-lastPersisted >= 512*1024 {
			lastPersisted = downloaded
			if err := m.store.Save(record); err != nil {
				log.Printf("[Download] 保存进度出错: %v", err)
			}
		}
	})
	if err != nil {
		record.Status = StateFailed
		record.ErrorMessage = err.Error()
		if saveErr := m.store.Save(record); saveErr != nil {
			log.Printf("[Download] 保存失败状态出错: %v", saveErr)
		}
		return record, false, err
	}

	record.Status = StateCompleted
	record.FileSize = size
	record.DownloadedSize = size
	record.ErrorMessage = ""
	if err := m.store.Save(record); err != nil {
		return nil, false, err
	}

	log.Printf("[Download] 资源 %s/%s 下载完成: %d 字节", record.ResourceType, record.ResourceID, size)
	return record, false, nil
}

// Retry 重试一个失败的下载。pending/failed 可重试，其余状态拒绝。
func (m *Manager) Retry(ctx context.Context, resourceType, resourceID string) (*model.ResourceDownload, error) {
	record, err := m.store.Get(resourceType, resourceID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("资源 %s/%s 没有下载记录", resourceType, resourceID)
	}
	if record.Status == StateCompleted && fileExists(record.LocalPath) {
		return record, nil
	}
	if record.Status == StateDownloading {
		m.mu.Lock()
		busy := m.inflight[downloadKey(resourceType, resourceID)]
		m.mu.Unlock()
		if busy {
			return nil, &DuplicateInProgressError{ResourceType: resourceType, ResourceID: resourceID}
		}
		// 进程重启后遗留的 downloading 记录，当作失败重试
	}

	result, _, err := m.Download(ctx, Request{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Namespace:    record.Namespace,
		RemoteURL:    record.RemoteURL,
	})
	return result, err
}

// StatusInfo 下载状态查询结果
type StatusInfo struct {
	Record          *model.ResourceDownload `json:"record"`
	ProgressPercent float64                 `json:"progress_percent"`
}

// Status 查询资源的下载状态与进度
func (m *Manager) Status(resourceType, resourceID string) (*StatusInfo, error) {
	record, err := m.store.Get(resourceType, resourceID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	info := &StatusInfo{Record: record}
	switch {
	case record.Status == StateCompleted:
		info.ProgressPercent = 100
	case record.FileSize > 0:
		info.ProgressPercent = float64(record.DownloadedSize) / float64(record.FileSize) * 100
	}
	return info, nil
}

// PurgeNamespace 删除一个归属目录下的所有资源文件与记录
func (m *Manager) PurgeNamespace(namespace string) (int, error) {
	if namespace == "" {
		return 0, fmt.Errorf("namespace 不能为空")
	}

	records, err := m.store.ListByNamespace(namespace)
	if err != nil {
		return 0, err
	}
	for i := range records {
		if records[i].LocalPath != "" {
			if err := os.Remove(records[i].LocalPath); err != nil && !os.IsNotExist(err) {
				log.Printf("[Download] 删除文件 %s 失败: %v", records[i].LocalPath, err)
			}
		}
	}
	if err := m.store.DeleteByNamespace(namespace); err != nil {
		return 0, err
	}

	// 归属目录整体移除，连带清掉类型子目录
	dir := filepath.Join(m.rootFn(), sanitizeSegment(namespace))
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("[Download] 移除目录 %s 失败: %v", dir, err)
	}

	return len(records), nil
}

// localPath 资源的落盘路径: <root>/<namespace>/<resource_type>/<resource_id><ext>
func (m *Manager) localPath(record *model.ResourceDownload) string {
	ext := remoteExt(record.RemoteURL)
	name := sanitizeSegment(record.ResourceID) + ext
	segments := []string{m.rootFn()}
	if record.Namespace != "" {
		segments = append(segments, sanitizeSegment(record.Namespace))
	}
	segments = append(segments, sanitizeSegment(record.ResourceType), name)
	return filepath.Join(segments...)
}

// remoteExt 从 URL 路径里取扩展名，取不到则为空
func remoteExt(remoteURL string) string {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return ""
	}
	ext := path.Ext(u.Path)
	if len(ext) > 10 {
		return ""
	}
	return ext
}

// sanitizeSegment 过滤路径分隔符，防止记录字段拼出越界路径
func sanitizeSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "..", "_")
	if s == "" {
		return "_"
	}
	return s
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
