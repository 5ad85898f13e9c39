package model

import (
	"time"

	"gorm.io/gorm"
)

// ProviderProfileRecord 对应 provider_profiles 表，按 (modality, provider_name) 存储
// 各生成类型下不同 Provider 的接入配置。profile_json 中是对内置默认形态的覆盖项。
type ProviderProfileRecord struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Modality       string         `gorm:"uniqueIndex:idx_modality_provider;not null" json:"modality"`
	ProviderName   string         `gorm:"uniqueIndex:idx_modality_provider;not null" json:"provider_name"`
	DisplayName    string         `json:"display_name"`
	APIBase        string         `json:"api_base"`
	APIKey         string         `json:"api_key"`
	ModelName      string         `json:"model_name"`
	Enabled        bool           `gorm:"default:true" json:"enabled"`
	TimeoutSeconds int            `gorm:"default:150" json:"timeout_seconds"`
	ProfileJSON    string         `json:"profile_json"` // Profile 覆盖项 JSON
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// GenerationTask 对应 generation_tasks 表，记录一次生成调用的状态与产物。
// 异步类型（视频等）先落 pending，由后台轮询推进到终态。
type GenerationTask struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	TaskID         string         `gorm:"uniqueIndex;not null" json:"task_id"` // 对外的唯一 ID
	Modality       string         `gorm:"index" json:"modality"`
	ProviderName   string         `gorm:"index" json:"provider_name"`
	ModelName      string         `json:"model_name"`
	Prompt         string         `gorm:"index" json:"prompt"`
	ProviderTaskID string         `gorm:"index" json:"provider_task_id"` // Provider 侧任务 ID
	Status         string         `gorm:"index:idx_status_created;not null" json:"status"`
	ErrorMessage   string         `json:"error_message"`
	ContentText    string         `json:"content_text"` // 文本类结果
	MediaURL       string         `json:"media_url"`    // 图片/视频/音频远端地址
	LocalPath      string         `json:"local_path"`
	ThumbnailPath  string         `json:"thumbnail_path"`
	TokensIn       int            `json:"tokens_in"`
	TokensOut      int            `json:"tokens_out"`
	SubmittedAt    *time.Time     `json:"submitted_at"`
	CompletedAt    *time.Time     `json:"completed_at"`
	CreatedAt      time.Time      `gorm:"index:idx_status_created;index" json:"created_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// ResourceDownload 对应 resource_downloads 表，按 (resource_type, resource_id)
// 唯一记录一个远端资源的本地落盘状态。同一 key 只会成功落盘一次。
type ResourceDownload struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ResourceType   string    `gorm:"uniqueIndex:idx_resource_key;not null" json:"resource_type"`
	ResourceID     string    `gorm:"uniqueIndex:idx_resource_key;not null" json:"resource_id"`
	Namespace      string    `gorm:"index" json:"namespace"` // 归属实体（如项目）目录名
	RemoteURL      string    `json:"remote_url"`
	LocalPath      string    `json:"local_path"`
	Status         string    `gorm:"index;not null" json:"status"` // pending | downloading | completed | failed
	FileSize       int64     `json:"file_size"`
	DownloadedSize int64     `json:"downloaded_size"`
	ErrorMessage   string    `json:"error_message"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UsageLog 对应 usage_logs 表，每次 Provider 调用与每次终态轮询各记一条。
// 记录失败不影响主流程。
type UsageLog struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Modality         string    `gorm:"index" json:"modality"`
	ProviderName     string    `gorm:"index" json:"provider_name"`
	ModelName        string    `json:"model_name"`
	Status           string    `gorm:"index" json:"status"` // success | failed
	LatencyMs        int64     `json:"latency_ms"`
	TokensIn         int       `json:"tokens_in"`
	TokensOut        int       `json:"tokens_out"`
	Cost             float64   `json:"cost"`
	ErrorMessage     string    `json:"error_message"`
	RequestSnapshot  string    `json:"request_snapshot"`
	ResponseSnapshot string    `json:"response_snapshot"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}

// Setting 对应 settings 表，少量运行期可改的键值（如资源根目录）。
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
