package profile

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"genmedia-service/internal/config"
	"genmedia-service/internal/model"
)

// Entry 一个可调用的 Provider 接入：形态 Profile + 凭据与连接参数。
// Registry 中的 Entry 初始化后只读。
type Entry struct {
	Profile   Profile
	APIBase   string
	APIKey    string
	ModelName string
	Timeout   time.Duration
}

type registryKey struct {
	modality Modality
	provider string
}

var (
	registry   = make(map[registryKey]*Entry)
	registryMu sync.RWMutex
	initMu     sync.Mutex // 确保 InitRegistry 不会被并发调用
)

// Lookup 获取一个 Provider 接入配置
func Lookup(modality Modality, provider string) (*Entry, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[registryKey{modality, provider}]
	return e, ok
}

// List 返回当前生效的所有接入（用于管理接口展示）
func List() []*Entry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]*Entry, 0, len(registry))
	for _, e := range registry {
		out = append(out, e)
	}
	return out
}

// Replace 原子替换整个 Registry（测试与重载共用）
func Replace(entries []*Entry) {
	next := make(map[registryKey]*Entry, len(entries))
	for _, e := range entries {
		next[registryKey{e.Profile.Modality, e.Profile.Provider}] = e
	}
	registryMu.Lock()
	registry = next
	registryMu.Unlock()
}

// InitRegistry 从配置与数据库初始化所有已启用的 Provider 接入。
// 配置文件中的条目先同步到数据库（不存在时创建），随后以数据库为准重建 Registry。
func InitRegistry() {
	initMu.Lock()
	defer initMu.Unlock()

	// 1. 配置文件 → 数据库
	for modalityName, providers := range config.GlobalConfig.Providers {
		for providerName, cfg := range providers {
			if !cfg.Enabled {
				continue
			}

			var rec model.ProviderProfileRecord
			err := model.DB.Where("modality = ? AND provider_name = ?", modalityName, providerName).
				First(&rec).Error
			if err == nil {
				continue
			}

			profileJSON := ""
			if len(cfg.Profile) > 0 {
				if b, err := json.Marshal(cfg.Profile); err == nil {
					profileJSON = string(b)
				}
			}
			rec = model.ProviderProfileRecord{
				Modality:     modalityName,
				ProviderName: providerName,
				DisplayName:  providerName,
				APIBase:      cfg.APIBase,
				APIKey:       cfg.APIKey,
				ModelName:    cfg.Model,
				Enabled:      true,
				ProfileJSON:  profileJSON,
			}
			model.DB.Create(&rec)
		}
	}

	// 2. 查询数据库中所有已启用的配置
	var records []model.ProviderProfileRecord
	if err := model.DB.Where("enabled = ?", true).Find(&records).Error; err != nil {
		log.Printf("查询已启用 Provider 配置失败: %v", err)
		return
	}

	// 3. 重建 Registry
	entries := make([]*Entry, 0, len(records))
	for _, rec := range records {
		entry, err := BuildEntry(&rec)
		if err != nil {
			log.Printf("构建 Provider 接入失败 (%s/%s): %v", rec.Modality, rec.ProviderName, err)
			continue
		}
		entries = append(entries, entry)
		log.Printf("Provider %s/%s 已加载 (BaseURL: %s)", rec.Modality, rec.ProviderName, rec.APIBase)
	}

	Replace(entries)
	log.Printf("Provider Registry 已重新加载，当前生效数量: %d", len(entries))
}

// BuildEntry 由数据库记录构建接入配置：内置默认叠加 profile_json 覆盖项。
func BuildEntry(rec *model.ProviderProfileRecord) (*Entry, error) {
	var overrides map[string]interface{}
	if rec.ProfileJSON != "" {
		if err := json.Unmarshal([]byte(rec.ProfileJSON), &overrides); err != nil {
			return nil, err
		}
	}

	timeout := time.Duration(rec.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 150 * time.Second
	}

	// 叠加顺序：内置默认 → 预设 → 数据库覆盖项
	modality := Modality(rec.Modality)
	p := Defaults(modality, rec.ProviderName).
		applyOverrides(presetOverrides(modality, rec.ProviderName)).
		applyOverrides(overrides)

	return &Entry{
		Profile:   p,
		APIBase:   rec.APIBase,
		APIKey:    rec.APIKey,
		ModelName: rec.ModelName,
		Timeout:   timeout,
	}, nil
}
