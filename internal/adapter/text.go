package adapter

import (
	"context"
	"encoding/json"
	"net/http"

	"genmedia-service/internal/fieldpath"
	"genmedia-service/internal/profile"
)

// TextAdapter 文本对话适配器。所有 provider 共享同一套请求构造流程，
// 差异完全由 Profile 描述（认证头、字段映射、响应路径）。
type TextAdapter struct {
	caller *httpCaller
}

func NewTextAdapter(client *http.Client) *TextAdapter {
	return &TextAdapter{caller: newHTTPCaller(client)}
}

// BuildRequest 构造文本生成请求
func (a *TextAdapter) BuildRequest(entry *profile.Entry, req *TextRequest) (*HTTPRequest, error) {
	p := entry.Profile

	messages := req.Messages
	body := map[string]interface{}{
		"model": entry.ModelName,
	}

	// Anthropic 风格：system 提示词单独放顶层字段
	if p.SeparateSystemPrompt {
		var system string
		rest := make([]map[string]interface{}, 0, len(messages))
		for _, m := range messages {
			if m.Role == "system" && system == "" {
				system = m.Content
				continue
			}
			rest = append(rest, map[string]interface{}{"role": m.Role, "content": m.Content})
		}
		if system != "" {
			body["system"] = system
		}
		body["messages"] = rest
	} else {
		list := make([]map[string]interface{}, 0, len(messages))
		for _, m := range messages {
			list = append(list, map[string]interface{}{"role": m.Role, "content": m.Content})
		}
		body["messages"] = list
	}

	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		body["max_tokens"] = *req.MaxTokens
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	if req.Stream {
		body["stream"] = true
	}

	// Profile 默认参数只补缺，不覆盖调用方显式传入的字段
	for k, v := range p.DefaultParams {
		if _, exists := body[k]; !exists {
			body[k] = v
		}
	}

	// 字段重命名最后执行
	applyRequestMapping(body, p.RequestMapping)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	return &HTTPRequest{
		Method:  http.MethodPost,
		URL:     joinURL(entry.APIBase, p.Endpoint),
		Headers: buildHeaders(entry, "application/json"),
		Body:    payload,
	}, nil
}

// ParseResponse 按 Profile 的响应路径提取文本内容
func (a *TextAdapter) ParseResponse(entry *profile.Entry, raw []byte) (*GenerationResult, error) {
	data, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}

	path := entry.Profile.ResponsePath
	if path == "" {
		path = "choices[0].message.content"
	}
	content := fieldpath.GetString(data, path)
	if content == "" {
		if _, ok := fieldpath.Get(data, path); !ok {
			return nil, &ProviderFormatError{Reason: "响应中找不到文本内容", AttemptedPath: path}
		}
	}

	return &GenerationResult{
		Content: content,
		Model:   fieldpath.GetString(data, "model"),
		Usage:   extractUsage(data),
		Raw:     data,
	}, nil
}

// Generate 一次完成请求构造、调用与解析
func (a *TextAdapter) Generate(ctx context.Context, entry *profile.Entry, req *TextRequest) (*GenerationResult, error) {
	httpReq, err := a.BuildRequest(entry, req)
	if err != nil {
		return nil, err
	}
	raw, err := a.caller.do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	return a.ParseResponse(entry, raw)
}
