package adapter

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// 各生成类型的标准化请求/结果。调用方只面对这些结构，
// Provider 间的差异由 Profile 数据与 Scheme 策略吸收。

// ChatMessage 对话消息
type ChatMessage struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// TextRequest 文本生成请求
type TextRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// ImageRequest 图片生成请求
type ImageRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Size           string `json:"size,omitempty"`
	N              int    `json:"n,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"` // url | b64_json
	// ReferenceImages 图生图参考图（base64 或 data URL）
	ReferenceImages []string `json:"reference_images,omitempty"`
}

// VideoRequest 视频生成请求
type VideoRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Duration       int     `json:"duration,omitempty"`
	Resolution     string  `json:"resolution,omitempty"`
	AspectRatio    string  `json:"aspect_ratio,omitempty"`
	FPS            int     `json:"fps,omitempty"`
	ImageURL       string  `json:"image_url,omitempty"` // 图生视频的输入图
	Style          string  `json:"style,omitempty"`
	Seed           *int    `json:"seed,omitempty"`
	CFGScale       float64 `json:"cfg_scale,omitempty"`
}

// VoiceRequest 语音合成请求
type VoiceRequest struct {
	Text       string  `json:"text"`
	Voice      string  `json:"voice,omitempty"`
	Speed      float64 `json:"speed,omitempty"`
	Pitch      float64 `json:"pitch,omitempty"`
	Volume     float64 `json:"volume,omitempty"`
	Format     string  `json:"format,omitempty"` // mp3 | wav | ogg | pcm
	SampleRate int     `json:"sample_rate,omitempty"`
}

// Usage 用量计数。不同 Provider 字段名不一，解析时做多候选匹配。
type Usage struct {
	TokensIn    int `json:"tokens_in"`
	TokensOut   int `json:"tokens_out"`
	TokensTotal int `json:"tokens_total"`
}

// ImageArtifact 单张生成图片
type ImageArtifact struct {
	URL    string `json:"url,omitempty"`
	Base64 string `json:"base64,omitempty"`
}

// Bytes 解码 Base64 图片数据。仅有 URL 时返回 (nil, nil)，由调用方决定是否拉取。
func (a ImageArtifact) Bytes() ([]byte, error) {
	if a.Base64 == "" {
		return nil, nil
	}
	data := a.Base64
	// 兼容 data URL 形式（data:image/png;base64,xxx）
	if idx := strings.Index(data, ","); idx != -1 && strings.HasPrefix(data, "data:") {
		data = data[idx+1:]
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("图片 base64 解码失败: %w", err)
	}
	return decoded, nil
}

// DecodeAudioBase64 解码语音 base64 数据，兼容 data URL 前缀
func DecodeAudioBase64(s string) ([]byte, error) {
	if idx := strings.Index(s, ","); idx != -1 && strings.HasPrefix(s, "data:") {
		s = s[idx+1:]
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("音频 base64 解码失败: %w", err)
	}
	return decoded, nil
}

// GenerationResult 标准化结果。
// 同步类型直接携带内容；异步类型携带 Provider 任务 ID 与原始状态词，由任务层接管。
type GenerationResult struct {
	Content string          `json:"content,omitempty"` // 文本内容
	Images  []ImageArtifact `json:"images,omitempty"`
	// 媒体产物（视频/音频完成后的 URL，或语音的字节/base64）
	MediaURL    string `json:"media_url,omitempty"`
	AudioData   []byte `json:"-"`
	AudioBase64 string `json:"audio_base64,omitempty"`

	// 异步任务信息
	TaskID    string `json:"task_id,omitempty"`
	RawStatus string `json:"raw_status,omitempty"`

	Message string      `json:"message,omitempty"` // Provider 附带的说明/失败原因
	Model   string      `json:"model,omitempty"`
	Usage   *Usage      `json:"usage,omitempty"`
	Raw     interface{} `json:"-"` // 原始响应，遥测快照用
}

// HTTPRequest BuildRequest 的产物：一次待发出的 Provider 调用。
// 构造过程无副作用，便于单测与请求快照。
type HTTPRequest struct {
	Method      string
	URL         string
	Headers     map[string]string
	Body        []byte
	ContentType string
}
