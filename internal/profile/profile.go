package profile

import (
	"time"
)

// Modality 生成类型
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityVideo Modality = "video"
	ModalityVoice Modality = "voice"
)

// Profile 描述一个 (modality, provider) 组合的请求/响应形态。
// 启动时加载，运行期只读，可被多个并发调用安全共享。
type Profile struct {
	Modality Modality `json:"modality"`
	Provider string   `json:"provider"`

	// Scheme 请求体构造策略 key。为空时与 Provider 相同。
	// 大部分 Provider 只是字段名不同，用数据描述即可；
	// 形态差异过大的（如 azure-tts 的 SSML、gemini 原生接口）用独立策略实现。
	Scheme string `json:"scheme,omitempty"`

	// 端点。异步任务型 Provider 区分提交端点与状态查询端点，
	// 状态端点中的 {task_id} 会被替换。
	Endpoint       string `json:"endpoint,omitempty"`
	SubmitEndpoint string `json:"submit_endpoint,omitempty"`
	StatusEndpoint string `json:"status_endpoint,omitempty"`

	// 认证
	AuthHeader   string            `json:"auth_header,omitempty"` // 默认 Authorization
	AuthPrefix   string            `json:"auth_prefix"`           // 默认 "Bearer "，可为空串（如 x-api-key）
	ExtraHeaders map[string]string `json:"extra_headers,omitempty"`

	// RequestMapping 请求体字段重命名表，最后应用，覆盖同名 key
	RequestMapping map[string]string `json:"request_mapping,omitempty"`

	// 响应解析路径
	ResponsePath   string `json:"response_path,omitempty"`    // 文本内容
	MediaURLPath   string `json:"media_url_path,omitempty"`   // 图片/视频地址
	AudioDataPath  string `json:"audio_data_path,omitempty"`  // 音频数据（base64 或 url）
	TaskIDPath     string `json:"task_id_path,omitempty"`     // 异步任务 ID
	TaskStatusPath string `json:"task_status_path,omitempty"` // 异步任务状态

	// ResponseType 语音响应类型: stream | base64 | url
	ResponseType string `json:"response_type,omitempty"`

	// SeparateSystemPrompt Anthropic 风格：system 从 messages 中单独提取
	SeparateSystemPrompt bool `json:"separate_system_prompt,omitempty"`

	// Async 该 Provider 是否为异步任务模式（提交后轮询）
	Async bool `json:"async,omitempty"`

	// StatusMap 可选的 Provider 级状态词映射（原始状态 → pending/processing/completed/failed）。
	// 设置后优先于全局同义词表，避免模糊匹配带来的误判。
	StatusMap map[string]string `json:"status_map,omitempty"`

	// DefaultParams 请求体默认参数（temperature、size、duration、voice 等）
	DefaultParams map[string]interface{} `json:"default_params,omitempty"`

	// 轮询节奏
	PollInterval time.Duration `json:"-"`
	MaxWait      time.Duration `json:"-"`

	// 配置中以毫秒表示，加载时换算到上面两个字段
	PollIntervalMs int `json:"poll_interval_ms,omitempty"`
	MaxWaitMs      int `json:"max_wait_ms,omitempty"`
}

// SchemeKey 返回请求体构造策略 key
func (p *Profile) SchemeKey() string {
	if p.Scheme != "" {
		return p.Scheme
	}
	return p.Provider
}

// EffectiveAuthHeader 认证头名称，默认 Authorization
func (p *Profile) EffectiveAuthHeader() string {
	if p.AuthHeader != "" {
		return p.AuthHeader
	}
	return "Authorization"
}

// EffectiveSubmitEndpoint 异步提交端点
func (p *Profile) EffectiveSubmitEndpoint() string {
	if p.SubmitEndpoint != "" {
		return p.SubmitEndpoint
	}
	return p.Endpoint
}

func (p *Profile) normalizeDurations() {
	if p.PollIntervalMs > 0 {
		p.PollInterval = time.Duration(p.PollIntervalMs) * time.Millisecond
	}
	if p.MaxWaitMs > 0 {
		p.MaxWait = time.Duration(p.MaxWaitMs) * time.Millisecond
	}
	if p.PollInterval <= 0 {
		p.PollInterval = 5 * time.Second
	}
	if p.MaxWait <= 0 {
		p.MaxWait = 10 * time.Minute
	}
}

// applyOverrides 把用户配置（DB 中的 JSON 对象）叠加到内置默认值上。
// 按 key 存在性判断是否覆盖，因此可以显式设置空串（如 auth_prefix: ""）。
func (p Profile) applyOverrides(raw map[string]interface{}) Profile {
	if raw == nil {
		p.normalizeDurations()
		return p
	}

	getStr := func(key string, dst *string) {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok {
				*dst = s
			}
		}
	}
	getBool := func(key string, dst *bool) {
		if v, ok := raw[key]; ok {
			if b, ok := v.(bool); ok {
				*dst = b
			}
		}
	}
	getStrMap := func(key string, dst *map[string]string) {
		v, ok := raw[key]
		if !ok {
			return
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return
		}
		out := make(map[string]string, len(m))
		for k, val := range m {
			if s, ok := val.(string); ok {
				out[k] = s
			}
		}
		*dst = mergeStringMaps(*dst, out)
	}
	getInt := func(key string, dst *int) {
		if v, ok := raw[key]; ok {
			if f, ok := v.(float64); ok {
				*dst = int(f)
			}
		}
	}

	getStr("scheme", &p.Scheme)
	getStr("endpoint", &p.Endpoint)
	getStr("submit_endpoint", &p.SubmitEndpoint)
	getStr("status_endpoint", &p.StatusEndpoint)
	getStr("auth_header", &p.AuthHeader)
	getStr("auth_prefix", &p.AuthPrefix)
	getStr("response_path", &p.ResponsePath)
	getStr("media_url_path", &p.MediaURLPath)
	getStr("audio_data_path", &p.AudioDataPath)
	getStr("task_id_path", &p.TaskIDPath)
	getStr("task_status_path", &p.TaskStatusPath)
	getStr("response_type", &p.ResponseType)
	getBool("separate_system_prompt", &p.SeparateSystemPrompt)
	getBool("async", &p.Async)
	getStrMap("extra_headers", &p.ExtraHeaders)
	getStrMap("request_mapping", &p.RequestMapping)
	getStrMap("status_map", &p.StatusMap)
	getInt("poll_interval_ms", &p.PollIntervalMs)
	getInt("max_wait_ms", &p.MaxWaitMs)

	if v, ok := raw["default_params"]; ok {
		if m, ok := v.(map[string]interface{}); ok {
			merged := make(map[string]interface{}, len(p.DefaultParams)+len(m))
			for k, val := range p.DefaultParams {
				merged[k] = val
			}
			for k, val := range m {
				merged[k] = val
			}
			p.DefaultParams = merged
		}
	}

	p.normalizeDurations()
	return p
}

func mergeStringMaps(base, overlay map[string]string) map[string]string {
	if len(base) == 0 {
		return overlay
	}
	out := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
