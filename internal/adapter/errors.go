package adapter

import "fmt"

// ProviderHTTPError Provider 返回非 2xx 状态码
type ProviderHTTPError struct {
	Status      int
	BodyExcerpt string
}

func (e *ProviderHTTPError) Error() string {
	if e.BodyExcerpt != "" {
		return fmt.Sprintf("Provider 返回异常状态 %d: %s", e.Status, e.BodyExcerpt)
	}
	return fmt.Sprintf("Provider 返回异常状态 %d", e.Status)
}

// ProviderFormatError 响应格式不符合预期：非 JSON（如配置错误时返回的 HTML 页面）、
// JSON 解析失败、或预期路径下没有内容。AttemptedPath 记录取值时尝试的路径便于排查。
type ProviderFormatError struct {
	Reason        string
	AttemptedPath string
}

func (e *ProviderFormatError) Error() string {
	if e.AttemptedPath != "" {
		return fmt.Sprintf("Provider 响应格式错误: %s (解析路径: %s)", e.Reason, e.AttemptedPath)
	}
	return "Provider 响应格式错误: " + e.Reason
}
