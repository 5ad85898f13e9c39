package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"genmedia-service/internal/fieldpath"
	"genmedia-service/internal/profile"
)

// VideoAdapter 视频生成适配器。视频 provider 几乎全部异步：
// 提交拿任务 ID，之后用状态端点轮询。
type VideoAdapter struct {
	caller *httpCaller
}

func NewVideoAdapter(client *http.Client) *VideoAdapter {
	return &VideoAdapter{caller: newHTTPCaller(client)}
}

// BuildSubmitRequest 按 Scheme 构造提交请求
func (a *VideoAdapter) BuildSubmitRequest(entry *profile.Entry, req *VideoRequest) (*HTTPRequest, error) {
	p := entry.Profile

	var body map[string]interface{}
	switch p.SchemeKey() {
	case "runway":
		body = map[string]interface{}{
			"promptText": req.Prompt,
		}
		if req.ImageURL != "" {
			body["promptImage"] = req.ImageURL
		}
		if req.Duration > 0 {
			body["duration"] = req.Duration
		}
		if req.AspectRatio != "" {
			body["ratio"] = req.AspectRatio
		}
	case "kling":
		body = map[string]interface{}{
			"prompt": req.Prompt,
		}
		if req.NegativePrompt != "" {
			body["negative_prompt"] = req.NegativePrompt
		}
		if req.ImageURL != "" {
			body["image"] = req.ImageURL
		}
		if req.Duration > 0 {
			body["duration"] = req.Duration
		}
		if req.AspectRatio != "" {
			body["aspect_ratio"] = req.AspectRatio
		}
		if req.CFGScale > 0 {
			body["cfg_scale"] = req.CFGScale
		}
	case "fal-video":
		body = map[string]interface{}{
			"prompt": req.Prompt,
		}
		if req.ImageURL != "" {
			body["image_url"] = req.ImageURL
		}
		if req.AspectRatio != "" {
			body["aspect_ratio"] = req.AspectRatio
		}
	default:
		// sora / zhipu-video / bltcy / generic
		body = map[string]interface{}{
			"prompt": req.Prompt,
		}
		if req.NegativePrompt != "" {
			body["negative_prompt"] = req.NegativePrompt
		}
		if req.ImageURL != "" {
			body["image_url"] = req.ImageURL
		}
		if req.Duration > 0 {
			body["duration"] = req.Duration
		}
		if req.Resolution != "" {
			body["resolution"] = req.Resolution
		}
		if req.AspectRatio != "" {
			body["aspect_ratio"] = req.AspectRatio
		}
		if req.FPS > 0 {
			body["fps"] = req.FPS
		}
		if req.Style != "" {
			body["style"] = req.Style
		}
		if req.Seed != nil {
			body["seed"] = *req.Seed
		}
	}

	if _, ok := body["model"]; !ok {
		body["model"] = entry.ModelName
	}
	for k, v := range p.DefaultParams {
		if _, exists := body[k]; !exists {
			body[k] = v
		}
	}
	applyRequestMapping(body, p.RequestMapping)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	return &HTTPRequest{
		Method:  http.MethodPost,
		URL:     joinURL(entry.APIBase, p.EffectiveSubmitEndpoint()),
		Headers: buildHeaders(entry, "application/json"),
		Body:    payload,
	}, nil
}

// ParseSubmitResponse 从提交响应中提取 Provider 侧任务 ID。
// 同步 Profile（Async=false）直接走结果解析。
func (a *VideoAdapter) ParseSubmitResponse(entry *profile.Entry, raw []byte) (*GenerationResult, error) {
	data, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}
	p := entry.Profile

	if !p.Async {
		return a.parseResult(entry, data)
	}

	idPath := p.TaskIDPath
	if idPath == "" {
		idPath = "id"
	}
	taskID := fieldpath.GetString(data, idPath)
	if taskID == "" {
		return nil, &ProviderFormatError{Reason: "提交响应中找不到任务 ID", AttemptedPath: idPath}
	}
	return &GenerationResult{TaskID: taskID, Raw: data}, nil
}

// BuildStatusRequest 构造任务状态查询请求，端点中的 {task_id} 占位符被替换
func (a *VideoAdapter) BuildStatusRequest(entry *profile.Entry, providerTaskID string) *HTTPRequest {
	p := entry.Profile
	endpoint := strings.ReplaceAll(p.StatusEndpoint, "{task_id}", providerTaskID)
	return &HTTPRequest{
		Method:  http.MethodGet,
		URL:     joinURL(entry.APIBase, endpoint),
		Headers: buildHeaders(entry, "application/json"),
	}
}

// ParseTaskResult 解析轮询响应：原始状态字符串 + 成功时的媒体地址
func (a *VideoAdapter) ParseTaskResult(entry *profile.Entry, raw []byte) (*GenerationResult, error) {
	data, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}
	return a.parseResult(entry, data)
}

func (a *VideoAdapter) parseResult(entry *profile.Entry, data map[string]interface{}) (*GenerationResult, error) {
	p := entry.Profile
	result := &GenerationResult{Raw: data}

	if p.TaskStatusPath != "" {
		result.RawStatus = fieldpath.GetString(data, p.TaskStatusPath)
	}
	for _, path := range []string{"message", "error.message", "fail_reason", "task_status_msg"} {
		if msg := fieldpath.GetString(data, path); msg != "" {
			result.Message = msg
			break
		}
	}

	path := p.MediaURLPath
	if path == "" {
		path = p.ResponsePath
	}
	if path != "" {
		result.MediaURL = fieldpath.GetString(data, path)
	}
	return result, nil
}

// Submit 提交视频生成任务
func (a *VideoAdapter) Submit(ctx context.Context, entry *profile.Entry, req *VideoRequest) (*GenerationResult, error) {
	httpReq, err := a.BuildSubmitRequest(entry, req)
	if err != nil {
		return nil, err
	}
	raw, err := a.caller.do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	return a.ParseSubmitResponse(entry, raw)
}

// QueryTask 查询任务状态
func (a *VideoAdapter) QueryTask(ctx context.Context, entry *profile.Entry, providerTaskID string) (*GenerationResult, error) {
	raw, err := a.caller.do(ctx, a.BuildStatusRequest(entry, providerTaskID))
	if err != nil {
		return nil, err
	}
	return a.ParseTaskResult(entry, raw)
}
