package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"genmedia-service/internal/fieldpath"
	"genmedia-service/internal/profile"
)

const bodyExcerptLimit = 500

// buildHeaders 按 Profile 构造请求头。认证头默认 Authorization: Bearer <key>。
func buildHeaders(entry *profile.Entry, contentType string) map[string]string {
	headers := map[string]string{
		"Content-Type": contentType,
	}
	headers[entry.Profile.EffectiveAuthHeader()] = entry.Profile.AuthPrefix + entry.APIKey
	for k, v := range entry.Profile.ExtraHeaders {
		headers[k] = v
	}
	return headers
}

// applyRequestMapping 应用字段重命名表，最后执行，覆盖已存在的目标 key
func applyRequestMapping(body map[string]interface{}, mapping map[string]string) {
	for from, to := range mapping {
		if from == to {
			continue
		}
		if val, ok := body[from]; ok {
			body[to] = val
			delete(body, from)
		}
	}
}

// joinURL 拼接 BaseURL 与端点。处理多余斜杠，并去除 base 末尾与端点开头的重复路径段
// （常见于中转站直接把完整提交地址填进 BaseURL 的情况）。
func joinURL(base, endpoint string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	endpoint = "/" + strings.TrimLeft(endpoint, "/")
	if endpoint == "/" {
		return base
	}

	parts := strings.Split(strings.Trim(endpoint, "/"), "/")

	// 找到 base 末尾与 endpoint 开头的最长重叠
	overlap := -1
	for i := range parts {
		sub := "/" + strings.Join(parts[:i+1], "/")
		if strings.HasSuffix(base, sub) {
			overlap = i
		}
	}
	if overlap >= 0 {
		rest := parts[overlap+1:]
		if len(rest) == 0 {
			return base
		}
		endpoint = "/" + strings.Join(rest, "/")
	}

	return base + endpoint
}

// decodeJSON 解析响应体。HTML（API 地址配置错误时的典型返回）与无法解析的 JSON
// 都归为格式错误，而不是笼统的解析失败。
func decodeJSON(raw []byte) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "<!") || strings.HasPrefix(strings.ToLower(trimmed), "<html") {
		return nil, &ProviderFormatError{Reason: "返回了 HTML 而非 JSON，请检查 API URL 配置"}
	}

	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		excerpt := trimmed
		if len(excerpt) > bodyExcerptLimit {
			excerpt = excerpt[:bodyExcerptLimit]
		}
		return nil, &ProviderFormatError{Reason: "无法解析为 JSON: " + excerpt}
	}
	return data, nil
}

// extractUsage 尽力解析用量计数，兼容 prompt_tokens/input_tokens 等多种命名
func extractUsage(data map[string]interface{}) *Usage {
	raw, ok := fieldpath.Get(data, "usage")
	if !ok {
		return nil
	}
	usageMap, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}

	pick := func(keys ...string) int {
		for _, k := range keys {
			if n, ok := fieldpath.GetNumber(usageMap, k); ok {
				return int(n)
			}
		}
		return 0
	}

	return &Usage{
		TokensIn:    pick("prompt_tokens", "input_tokens"),
		TokensOut:   pick("completion_tokens", "output_tokens"),
		TokensTotal: pick("total_tokens"),
	}
}

// extractErrorMessage 从失败响应中提取可读的错误信息
func extractErrorMessage(raw []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	for _, path := range []string{"error.message", "message", "error", "fail_reason"} {
		if msg := fieldpath.GetString(payload, path); msg != "" {
			return msg
		}
	}
	return ""
}

// httpCaller 发出 Provider HTTP 调用并做统一的状态码处理
type httpCaller struct {
	client *http.Client
}

func newHTTPCaller(client *http.Client) *httpCaller {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpCaller{client: client}
}

// do 执行请求。非 2xx 返回 ProviderHTTPError，错误体尽量解析出可读信息。
func (c *httpCaller) do(ctx context.Context, req *HTTPRequest) ([]byte, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := extractErrorMessage(raw)
		if excerpt == "" {
			excerpt = strings.TrimSpace(string(raw))
			if len(excerpt) > bodyExcerptLimit {
				excerpt = excerpt[:bodyExcerptLimit]
			}
		}
		return nil, &ProviderHTTPError{Status: resp.StatusCode, BodyExcerpt: excerpt}
	}

	return raw, nil
}
