package optimize

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"genmedia-service/internal/profile"
)

// Optimizer 提示词优化器。把用户的简短描述改写为更适合生成模型的提示词，
// 复用文本模态里配置的 OpenAI 兼容 Provider。
type Optimizer struct {
	client       *openai.Client
	modelName    string
	systemPrompt string
}

func NewOptimizer(entry *profile.Entry, systemPrompt string) *Optimizer {
	timeout := entry.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(entry.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithHeader("User-Agent", "genmedia-service/1.0"),
	}
	if base := NormalizeBaseURL(entry.APIBase); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	client := openai.NewClient(opts...)

	return &Optimizer{
		client:       &client,
		modelName:    entry.ModelName,
		systemPrompt: systemPrompt,
	}
}

// Optimize 改写提示词。modality 用于提示改写方向（图像/视频/语音措辞不同）。
func (o *Optimizer) Optimize(ctx context.Context, prompt, modality string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt 不能为空")
	}

	system := o.systemPrompt
	if modality != "" {
		system = fmt.Sprintf("%s\n目标生成类型: %s", system, modality)
	}

	log.Printf("[Optimize] 改写提示词, Model: %s, 长度: %d", o.modelName, len(prompt))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("改写请求失败: %s", formatClientError(err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("改写接口未返回内容")
	}

	optimized := strings.TrimSpace(resp.Choices[0].Message.Content)
	if optimized == "" {
		return "", fmt.Errorf("改写结果为空")
	}
	return optimized, nil
}

// NormalizeBaseURL 归一化 OpenAI 兼容接口的 BaseURL，确保以 /v1 结尾。
// 用户经常把完整的 /chat/completions 地址填进来，这里一并纠正。
func NormalizeBaseURL(apiBase string) string {
	base := strings.TrimSpace(apiBase)
	if base == "" {
		return ""
	}

	base = strings.TrimRight(base, "/")
	if strings.Contains(base, "/chat/completions") {
		base = strings.TrimRight(strings.Split(base, "/chat/completions")[0], "/")
	}
	if strings.Contains(base, "/v1/") {
		return strings.Split(base, "/v1/")[0] + "/v1"
	}
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

func formatClientError(err error) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = strings.TrimSpace(apiErr.RawJSON())
		}
		if msg != "" {
			return msg
		}
	}
	return err.Error()
}
