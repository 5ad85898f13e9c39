package fieldpath

import (
	"strconv"
	"strings"
)

// 路径解析工具：按 "a.b[0].c" 或 "a.b.0.c" 形式的路径读写嵌套结构。
// 仅处理 JSON 反序列化产生的 map[string]interface{} / []interface{}，
// 不包含任何与具体 Provider 相关的逻辑。

// splitPath 把 "a[0].b" 规范化成 ["a", "0", "b"]
func splitPath(path string) []string {
	var out []string
	var seg strings.Builder

	flush := func() {
		if seg.Len() > 0 {
			out = append(out, seg.String())
			seg.Reset()
		}
	}

	for _, r := range path {
		switch r {
		case '.', '[':
			flush()
		case ']':
			flush()
		default:
			seg.WriteRune(r)
		}
	}
	flush()
	return out
}

// Get 按路径从对象中取值。中间节点缺失时返回 (nil, false)，不会 panic。
func Get(root interface{}, path string) (interface{}, bool) {
	current := root
	for _, part := range splitPath(path) {
		if current == nil {
			return nil, false
		}
		switch node := current.(type) {
		case map[string]interface{}:
			val, ok := node[part]
			if !ok {
				return nil, false
			}
			current = val
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// GetString 取字符串值，非字符串或缺失时返回空串。
func GetString(root interface{}, path string) string {
	val, ok := Get(root, path)
	if !ok {
		return ""
	}
	s, _ := val.(string)
	return s
}

// GetNumber 取数值。JSON 解码后的数字都是 float64，这里同时兼容整型。
func GetNumber(root interface{}, path string) (float64, bool) {
	val, ok := Get(root, path)
	if !ok {
		return 0, false
	}
	switch n := val.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Set 按路径写入值，自动创建缺失的中间节点。
// 中间节点统一按 map 创建（下标段作为字符串 key），Get 对两种形态都能读回。
// 已存在的非 map 中间节点会被覆盖。
func Set(root map[string]interface{}, path string, value interface{}) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return
	}

	current := root
	for _, part := range parts[:len(parts)-1] {
		switch node := current[part].(type) {
		case map[string]interface{}:
			current = node
		default:
			child := make(map[string]interface{})
			current[part] = child
			current = child
		}
	}

	current[parts[len(parts)-1]] = value
}
