package profile

import (
	"testing"
	"time"
)

func TestDefaultsKnownProvider(t *testing.T) {
	p := Defaults(ModalityText, "anthropic")

	if p.EffectiveAuthHeader() != "x-api-key" {
		t.Fatalf("auth header = %q", p.EffectiveAuthHeader())
	}
	if p.AuthPrefix != "" {
		t.Fatalf("anthropic auth prefix should be empty, got %q", p.AuthPrefix)
	}
	if !p.SeparateSystemPrompt {
		t.Fatal("anthropic should separate system prompt")
	}
	if p.ResponsePath != "content[0].text" {
		t.Fatalf("response path = %q", p.ResponsePath)
	}
}

func TestDefaultsUnknownProviderFallsBack(t *testing.T) {
	p := Defaults(ModalityImage, "some-relay")
	if p.SchemeKey() != "generic" {
		t.Fatalf("scheme = %q, want generic", p.SchemeKey())
	}
	if p.MediaURLPath != "data[0].url" {
		t.Fatalf("media url path = %q", p.MediaURLPath)
	}
	if p.Provider != "some-relay" {
		t.Fatalf("provider = %q", p.Provider)
	}
}

func TestMergeOverrides(t *testing.T) {
	p := Merge(ModalityText, "openai", map[string]interface{}{
		"response_path": "result.text",
		"auth_prefix":   "",
		"extra_headers": map[string]interface{}{"x-relay-token": "abc"},
		"default_params": map[string]interface{}{
			"temperature": 0.3,
		},
	})

	if p.ResponsePath != "result.text" {
		t.Fatalf("response path = %q", p.ResponsePath)
	}
	// 显式设置空串应生效，而不是回落到默认 "Bearer "
	if p.AuthPrefix != "" {
		t.Fatalf("auth prefix = %q, want empty", p.AuthPrefix)
	}
	if p.ExtraHeaders["x-relay-token"] != "abc" {
		t.Fatalf("extra headers = %v", p.ExtraHeaders)
	}
	if p.DefaultParams["temperature"] != 0.3 {
		t.Fatalf("default params = %v", p.DefaultParams)
	}
}

func TestMergeKeepsDefaultsWhenKeyAbsent(t *testing.T) {
	p := Merge(ModalityText, "openai", map[string]interface{}{
		"endpoint": "/custom/chat",
	})
	if p.Endpoint != "/custom/chat" {
		t.Fatalf("endpoint = %q", p.Endpoint)
	}
	if p.AuthPrefix != "Bearer " {
		t.Fatalf("auth prefix = %q, want Bearer", p.AuthPrefix)
	}
}

func TestVideoDefaultsPolling(t *testing.T) {
	p := Defaults(ModalityVideo, "kling")
	p = p.applyOverrides(nil)

	if !p.Async {
		t.Fatal("kling should be async")
	}
	if p.PollInterval != 5*time.Second {
		t.Fatalf("poll interval = %v", p.PollInterval)
	}
	if p.MaxWait != 10*time.Minute {
		t.Fatalf("max wait = %v", p.MaxWait)
	}
	if p.TaskIDPath != "data.task_id" {
		t.Fatalf("task id path = %q", p.TaskIDPath)
	}
}

func TestMergePollIntervalOverride(t *testing.T) {
	p := Merge(ModalityVideo, "sora", map[string]interface{}{
		"poll_interval_ms": float64(2000),
		"max_wait_ms":      float64(30000),
	})
	if p.PollInterval != 2*time.Second {
		t.Fatalf("poll interval = %v", p.PollInterval)
	}
	if p.MaxWait != 30*time.Second {
		t.Fatalf("max wait = %v", p.MaxWait)
	}
}

func TestEmbeddedPresetsLoad(t *testing.T) {
	store := &presetStore{}
	if err := store.loadEmbedded(); err != nil {
		t.Fatalf("load embedded presets: %v", err)
	}
	if store.payload.Profiles == nil {
		t.Fatal("embedded presets missing profiles")
	}
	if _, ok := store.payload.Profiles["video"]["bltcy"]; !ok {
		t.Fatal("embedded presets should carry bltcy status map")
	}
}
