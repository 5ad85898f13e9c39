package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"genmedia-service/internal/fieldpath"
	"genmedia-service/internal/profile"
)

// ImageAdapter 图像生成适配器。同步 provider 直接返回图像，
// 异步 provider（qwen-image 等）返回任务 ID 交给任务轮询层。
type ImageAdapter struct {
	caller *httpCaller
}

func NewImageAdapter(client *http.Client) *ImageAdapter {
	return &ImageAdapter{caller: newHTTPCaller(client)}
}

// BuildRequest 按 Scheme 构造图像生成请求体
func (a *ImageAdapter) BuildRequest(entry *profile.Entry, req *ImageRequest) (*HTTPRequest, error) {
	p := entry.Profile

	var body map[string]interface{}
	switch p.SchemeKey() {
	case "stability":
		prompts := []map[string]interface{}{{"text": req.Prompt, "weight": 1}}
		if req.NegativePrompt != "" {
			prompts = append(prompts, map[string]interface{}{"text": req.NegativePrompt, "weight": -1})
		}
		body = map[string]interface{}{
			"text_prompts": prompts,
		}
		if req.N > 0 {
			body["samples"] = req.N
		}
	case "qwen-image":
		// DashScope 异步接口：参数包在 input/parameters 两层里
		input := map[string]interface{}{"prompt": req.Prompt}
		if req.NegativePrompt != "" {
			input["negative_prompt"] = req.NegativePrompt
		}
		params := map[string]interface{}{}
		if req.Size != "" {
			params["size"] = req.Size
		}
		if req.N > 0 {
			params["n"] = req.N
		}
		body = map[string]interface{}{
			"model":      entry.ModelName,
			"input":      input,
			"parameters": params,
		}
	case "fal":
		body = map[string]interface{}{
			"prompt": req.Prompt,
		}
		if req.Size != "" {
			body["image_size"] = req.Size
		}
		if req.N > 0 {
			body["num_images"] = req.N
		}
	default:
		// openai / zhipu-image / generic 都是扁平的 prompt+size 结构
		body = map[string]interface{}{
			"model":  entry.ModelName,
			"prompt": req.Prompt,
		}
		if req.NegativePrompt != "" {
			body["negative_prompt"] = req.NegativePrompt
		}
		if req.Size != "" {
			body["size"] = req.Size
		}
		if req.N > 0 {
			body["n"] = req.N
		}
		if req.Quality != "" {
			body["quality"] = req.Quality
		}
		if req.Style != "" {
			body["style"] = req.Style
		}
		if req.ResponseFormat != "" {
			body["response_format"] = req.ResponseFormat
		}
		if len(req.ReferenceImages) > 0 {
			body["image"] = req.ReferenceImages
		}
	}

	if p.SchemeKey() != "qwen-image" {
		if _, ok := body["model"]; !ok {
			body["model"] = entry.ModelName
		}
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

// ParseResponse 解析同步图像响应；异步 Profile 只提取任务 ID
func (a *ImageAdapter) ParseResponse(entry *profile.Entry, raw []byte) (*GenerationResult, error) {
	data, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}
	p := entry.Profile

	if p.Async {
		idPath := p.TaskIDPath
		if idPath == "" {
			idPath = "task_id"
		}
		taskID := fieldpath.GetString(data, idPath)
		if taskID == "" {
			return nil, &ProviderFormatError{Reason: "异步提交响应中找不到任务 ID", AttemptedPath: idPath}
		}
		return &GenerationResult{TaskID: taskID, Raw: data}, nil
	}

	result := &GenerationResult{Usage: extractUsage(data), Raw: data}

	path := p.MediaURLPath
	if path == "" {
		path = p.ResponsePath
	}
	if path == "" {
		path = "data[0].url"
	}
	value := fieldpath.GetString(data, path)
	if value == "" {
		return nil, &ProviderFormatError{Reason: "响应中找不到图像数据", AttemptedPath: path}
	}

	if p.ResponseType == "base64" {
		result.Images = []ImageArtifact{{Base64: value}}
	} else {
		result.Images = []ImageArtifact{{URL: value}}
		result.MediaURL = value
	}
	return result, nil
}

// QueryTask 查询异步图像任务状态，端点中的 {task_id} 占位符被替换
func (a *ImageAdapter) QueryTask(ctx context.Context, entry *profile.Entry, providerTaskID string) (*GenerationResult, error) {
	p := entry.Profile
	endpoint := strings.ReplaceAll(p.StatusEndpoint, "{task_id}", providerTaskID)
	raw, err := a.caller.do(ctx, &HTTPRequest{
		Method:  http.MethodGet,
		URL:     joinURL(entry.APIBase, endpoint),
		Headers: buildHeaders(entry, "application/json"),
	})
	if err != nil {
		return nil, err
	}

	data, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}
	result := &GenerationResult{Raw: data}
	if p.TaskStatusPath != "" {
		result.RawStatus = fieldpath.GetString(data, p.TaskStatusPath)
	}
	for _, path := range []string{"output.message", "message", "error.message"} {
		if msg := fieldpath.GetString(data, path); msg != "" {
			result.Message = msg
			break
		}
	}
	if p.MediaURLPath != "" {
		if url := fieldpath.GetString(data, p.MediaURLPath); url != "" {
			result.MediaURL = url
			result.Images = []ImageArtifact{{URL: url}}
		}
	}
	return result, nil
}

// Generate 执行同步图像生成或异步任务提交
func (a *ImageAdapter) Generate(ctx context.Context, entry *profile.Entry, req *ImageRequest) (*GenerationResult, error) {
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
