package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"genmedia-service/internal/profile"
)

func TestOptimizeHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("请求路径 = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "优化后的提示词"}},
			},
		})
	}))
	defer backend.Close()

	profile.Replace([]*profile.Entry{{
		Profile:   profile.Defaults(profile.ModalityText, "openai"),
		APIBase:   backend.URL,
		APIKey:    "test-key",
		ModelName: "gpt-4o",
	}})

	r := gin.New()
	r.POST("/optimize", OptimizeHandler)

	body, _ := json.Marshal(map[string]string{"prompt": "一只猫", "modality": "image"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/optimize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("HTTP 状态码 = %d, body: %s", w.Code, w.Body.String())
	}
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != 200 {
		t.Fatalf("业务码 = %d, message: %s", resp.Code, resp.Message)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Data 类型异常: %T", resp.Data)
	}
	if data["prompt"] != "优化后的提示词" {
		t.Errorf("优化结果 = %v", data["prompt"])
	}
}

func TestOptimizeHandlerUnknownProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)
	profile.Replace(nil)

	r := gin.New()
	r.POST("/optimize", OptimizeHandler)

	body, _ := json.Marshal(map[string]string{"prompt": "一只猫", "provider": "nonexistent"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/optimize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("HTTP 状态码 = %d", w.Code)
	}
}

func TestMaskKey(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "*****"},
		{"sk-1234567890abcdef", "sk-1******cdef"},
	}
	for _, c := range cases {
		if got := maskKey(c.in); got != c.want {
			t.Errorf("maskKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
