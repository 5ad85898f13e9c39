package profile

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// Provider 形态预设：内置 JSON 随版本发布，支持从远端刷新，
// 中转站新增或调整接口形态时无需改代码发版。

const maxPresetBytes = 1 * 1024 * 1024

//go:embed assets/presets.json
var presetAssets embed.FS

// PresetPayload 预设集合: modality → provider → Profile 覆盖项
type PresetPayload struct {
	Version   string                                       `json:"version"`
	UpdatedAt string                                       `json:"updated_at"`
	Profiles  map[string]map[string]map[string]interface{} `json:"profiles"`
}

type presetStore struct {
	mu        sync.RWMutex
	payload   PresetPayload
	source    string // embedded | remote
	remoteURL string
	timeout   time.Duration
}

var presets = &presetStore{}

// InitPresets 加载内置预设，并尝试用远端版本覆盖。远端失败不影响启动。
func InitPresets(remoteURL string, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	presets.remoteURL = remoteURL
	presets.timeout = timeout

	if err := presets.loadEmbedded(); err != nil {
		log.Printf("加载内置 Provider 预设失败: %v", err)
	}

	if remoteURL == "" {
		return
	}
	if err := presets.refreshRemote(context.Background()); err != nil {
		log.Printf("拉取远端 Provider 预设失败，使用内置版本: %v", err)
	}
}

// RefreshPresets 手动触发远端刷新（管理接口调用）
func RefreshPresets(ctx context.Context) error {
	if presets.remoteURL == "" {
		return errors.New("未配置远端预设地址")
	}
	return presets.refreshRemote(ctx)
}

// PresetInfo 返回当前预设来源与版本
func PresetInfo() (source, version string) {
	presets.mu.RLock()
	defer presets.mu.RUnlock()
	return presets.source, presets.payload.Version
}

func (s *presetStore) loadEmbedded() error {
	data, err := presetAssets.ReadFile("assets/presets.json")
	if err != nil {
		return err
	}
	var payload PresetPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	s.mu.Lock()
	s.payload = payload
	s.source = "embedded"
	s.mu.Unlock()
	return nil
}

func (s *presetStore) refreshRemote(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.remoteURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New("远端预设响应状态异常: " + resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPresetBytes+1))
	if err != nil {
		return err
	}
	if len(data) > maxPresetBytes {
		return errors.New("远端预设内容超过大小限制")
	}

	var payload PresetPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if payload.Profiles == nil {
		return errors.New("远端预设缺少 profiles 字段")
	}

	s.mu.Lock()
	s.payload = payload
	s.source = "remote"
	s.mu.Unlock()
	log.Printf("Provider 预设已刷新 (version: %s)", payload.Version)
	return nil
}

// presetOverrides 查询某组合的预设覆盖项，没有时返回 nil
func presetOverrides(modality Modality, provider string) map[string]interface{} {
	presets.mu.RLock()
	defer presets.mu.RUnlock()
	byProvider, ok := presets.payload.Profiles[string(modality)]
	if !ok {
		return nil
	}
	return byProvider[provider]
}
