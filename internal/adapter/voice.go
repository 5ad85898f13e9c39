package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"genmedia-service/internal/fieldpath"
	"genmedia-service/internal/profile"
)

// VoiceAdapter 语音合成适配器。响应形态差异最大：
// 二进制音频流、base64 字段、可下载 URL 三种都有。
type VoiceAdapter struct {
	caller *httpCaller
}

func NewVoiceAdapter(client *http.Client) *VoiceAdapter {
	return &VoiceAdapter{caller: newHTTPCaller(client)}
}

// BuildRequest 按 Scheme 构造语音合成请求
func (a *VoiceAdapter) BuildRequest(entry *profile.Entry, req *VoiceRequest) (*HTTPRequest, error) {
	p := entry.Profile

	endpoint := p.Endpoint
	if req.Voice != "" {
		endpoint = strings.ReplaceAll(endpoint, "{voice_id}", req.Voice)
	}

	contentType := "application/json"
	var payload []byte
	var body map[string]interface{}

	switch p.SchemeKey() {
	case "azure-tts":
		// Azure 走 SSML 文本体，不是 JSON
		contentType = "application/ssml+xml"
		voice := req.Voice
		if voice == "" {
			voice = entry.ModelName
		}
		rate := ""
		if req.Speed > 0 && req.Speed != 1 {
			rate = fmt.Sprintf(` rate="%+.0f%%"`, (req.Speed-1)*100)
		}
		ssml := fmt.Sprintf(
			`<speak version="1.0" xml:lang="zh-CN"><voice name="%s"><prosody%s>%s</prosody></voice></speak>`,
			voice, rate, escapeXML(req.Text))
		payload = []byte(ssml)
	case "elevenlabs":
		body = map[string]interface{}{
			"text": req.Text,
		}
		if entry.ModelName != "" {
			body["model_id"] = entry.ModelName
		}
	case "minimax-tts":
		body = map[string]interface{}{
			"model": entry.ModelName,
			"text":  req.Text,
		}
		voiceSetting := map[string]interface{}{}
		if req.Voice != "" {
			voiceSetting["voice_id"] = req.Voice
		}
		if req.Speed > 0 {
			voiceSetting["speed"] = req.Speed
		}
		if len(voiceSetting) > 0 {
			body["voice_setting"] = voiceSetting
		}
	case "aliyun-tts":
		input := map[string]interface{}{"text": req.Text}
		if req.Voice != "" {
			input["voice"] = req.Voice
		}
		body = map[string]interface{}{
			"model": entry.ModelName,
			"input": input,
		}
	default:
		// openai-tts / generic
		body = map[string]interface{}{
			"model": entry.ModelName,
			"input": req.Text,
		}
		if req.Voice != "" {
			body["voice"] = req.Voice
		}
		if req.Speed > 0 {
			body["speed"] = req.Speed
		}
		if req.Format != "" {
			body["response_format"] = req.Format
		}
	}

	if body != nil {
		for k, v := range p.DefaultParams {
			if _, exists := body[k]; !exists {
				body[k] = v
			}
		}
		applyRequestMapping(body, p.RequestMapping)
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	return &HTTPRequest{
		Method:  http.MethodPost,
		URL:     joinURL(entry.APIBase, endpoint),
		Headers: buildHeaders(entry, contentType),
		Body:    payload,
	}, nil
}

// ParseResponse 按响应类型提取音频：stream 直接是二进制，
// base64 与 url 按 Profile 路径取字段。
func (a *VoiceAdapter) ParseResponse(entry *profile.Entry, raw []byte) (*GenerationResult, error) {
	p := entry.Profile

	switch p.ResponseType {
	case "base64":
		data, err := decodeJSON(raw)
		if err != nil {
			return nil, err
		}
		path := p.AudioDataPath
		if path == "" {
			path = "data.audio"
		}
		encoded := fieldpath.GetString(data, path)
		if encoded == "" {
			return nil, &ProviderFormatError{Reason: "响应中找不到音频数据", AttemptedPath: path}
		}
		return &GenerationResult{AudioBase64: encoded, Raw: data}, nil
	case "url":
		data, err := decodeJSON(raw)
		if err != nil {
			return nil, err
		}
		path := p.AudioDataPath
		if path == "" {
			path = p.ResponsePath
		}
		url := fieldpath.GetString(data, path)
		if url == "" {
			return nil, &ProviderFormatError{Reason: "响应中找不到音频地址", AttemptedPath: path}
		}
		return &GenerationResult{MediaURL: url, Raw: data}, nil
	default:
		// stream：响应体即音频。返回 JSON 说明出错了（部分服务错误也给 200）。
		trimmed := strings.TrimSpace(string(raw))
		if strings.HasPrefix(trimmed, "{") {
			if msg := extractErrorMessage(raw); msg != "" {
				return nil, &ProviderFormatError{Reason: "语音接口返回错误: " + msg}
			}
		}
		if len(raw) == 0 {
			return nil, &ProviderFormatError{Reason: "语音接口返回了空响应"}
		}
		return &GenerationResult{AudioData: raw}, nil
	}
}

// Generate 执行语音合成
func (a *VoiceAdapter) Generate(ctx context.Context, entry *profile.Entry, req *VoiceRequest) (*GenerationResult, error) {
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

func escapeXML(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(s)
}
