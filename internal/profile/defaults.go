package profile

// 内置 Provider 形态默认值。新增 Provider 优先用数据描述，
// 只有形态差异无法用字段路径表达时才新增 Scheme 策略。

var textDefaults = map[string]Profile{
	"openai": {
		Endpoint:     "/chat/completions",
		AuthHeader:   "Authorization",
		AuthPrefix:   "Bearer ",
		ResponsePath: "choices[0].message.content",
	},
	"anthropic": {
		Endpoint:             "/v1/messages",
		AuthHeader:           "x-api-key",
		AuthPrefix:           "",
		ExtraHeaders:         map[string]string{"anthropic-version": "2023-06-01"},
		ResponsePath:         "content[0].text",
		SeparateSystemPrompt: true,
	},
	"qwen": {
		Endpoint:     "/compatible-mode/v1/chat/completions",
		AuthHeader:   "Authorization",
		AuthPrefix:   "Bearer ",
		ResponsePath: "choices[0].message.content",
	},
	"zhipu": {
		Endpoint:     "/api/paas/v4/chat/completions",
		AuthHeader:   "Authorization",
		AuthPrefix:   "Bearer ",
		ResponsePath: "choices[0].message.content",
	},
	"baidu": {
		Endpoint:     "/rpc/2.0/ai_custom/v1/wenxinworkshop/chat/completions",
		AuthHeader:   "Authorization",
		AuthPrefix:   "Bearer ",
		ResponsePath: "result",
	},
}

var imageDefaults = map[string]Profile{
	"openai": {
		Endpoint:     "/v1/images/generations",
		AuthHeader:   "Authorization",
		AuthPrefix:   "Bearer ",
		MediaURLPath: "data[0].url",
		DefaultParams: map[string]interface{}{
			"size": "1024x1024",
			"n":    1,
		},
	},
	"stability": {
		Scheme:       "stability",
		Endpoint:     "/v1/generation/stable-diffusion-xl-1024-v1-0/text-to-image",
		AuthHeader:   "Authorization",
		AuthPrefix:   "Bearer ",
		ResponseType: "base64",
		MediaURLPath: "artifacts[0].base64",
	},
	"qwen-image": {
		Scheme:         "qwen-image",
		Endpoint:       "/api/v1/services/aigc/text2image/image-synthesis",
		StatusEndpoint: "/api/v1/tasks/{task_id}",
		AuthHeader:     "Authorization",
		AuthPrefix:     "Bearer ",
		Async:          true,
		TaskIDPath:     "output.task_id",
		TaskStatusPath: "output.task_status",
		MediaURLPath:   "output.results[0].url",
	},
	"zhipu-image": {
		Endpoint:     "/api/paas/v4/images/generations",
		AuthHeader:   "Authorization",
		AuthPrefix:   "Bearer ",
		MediaURLPath: "data[0].url",
	},
	"fal": {
		Scheme:       "fal",
		Endpoint:     "/fal-ai/flux/dev",
		AuthHeader:   "Authorization",
		AuthPrefix:   "Key ",
		MediaURLPath: "images[0].url",
	},
	"gemini-native": {
		Scheme: "gemini-native",
	},
}

var videoDefaults = map[string]Profile{
	"sora": {
		SubmitEndpoint: "/v1/video/generations",
		StatusEndpoint: "/v1/video/generations/{task_id}",
		AuthHeader:     "Authorization",
		AuthPrefix:     "Bearer ",
		Async:          true,
		TaskIDPath:     "id",
		TaskStatusPath: "status",
		MediaURLPath:   "video.url",
		PollIntervalMs: 5000,
		MaxWaitMs:      600000,
		DefaultParams: map[string]interface{}{
			"duration":   5,
			"resolution": "1080p",
		},
	},
	"runway": {
		Scheme:         "runway",
		SubmitEndpoint: "/v1/generations",
		StatusEndpoint: "/v1/generations/{task_id}",
		AuthHeader:     "Authorization",
		AuthPrefix:     "Bearer ",
		Async:          true,
		TaskIDPath:     "id",
		TaskStatusPath: "status",
		MediaURLPath:   "output[0]",
		PollIntervalMs: 3000,
		MaxWaitMs:      300000,
	},
	"kling": {
		Scheme:         "kling",
		SubmitEndpoint: "/v1/videos/text2video",
		StatusEndpoint: "/v1/videos/text2video/{task_id}",
		AuthHeader:     "Authorization",
		AuthPrefix:     "Bearer ",
		Async:          true,
		TaskIDPath:     "data.task_id",
		TaskStatusPath: "data.task_status",
		MediaURLPath:   "data.task_result.videos[0].url",
		PollIntervalMs: 5000,
		MaxWaitMs:      600000,
	},
	"zhipu-video": {
		SubmitEndpoint: "/api/paas/v4/videos/generations",
		StatusEndpoint: "/api/paas/v4/async-result/{task_id}",
		AuthHeader:     "Authorization",
		AuthPrefix:     "Bearer ",
		Async:          true,
		TaskIDPath:     "id",
		TaskStatusPath: "task_status",
		MediaURLPath:   "video_result[0].url",
		PollIntervalMs: 5000,
		MaxWaitMs:      600000,
	},
	"fal-video": {
		SubmitEndpoint: "/fal-ai/sora-2/text-to-video",
		AuthHeader:     "Authorization",
		AuthPrefix:     "Key ",
		Async:          true,
		TaskIDPath:     "request_id",
		MediaURLPath:   "video.url",
		PollIntervalMs: 5000,
		MaxWaitMs:      600000,
	},
	"bltcy": {
		Scheme:         "bltcy",
		SubmitEndpoint: "/v2/videos/generations",
		StatusEndpoint: "/v2/videos/generations/{task_id}",
		AuthHeader:     "Authorization",
		AuthPrefix:     "Bearer ",
		Async:          true,
		TaskIDPath:     "id",
		TaskStatusPath: "status",
		MediaURLPath:   "video_url",
		PollIntervalMs: 5000,
		MaxWaitMs:      600000,
		DefaultParams: map[string]interface{}{
			"duration":     10,
			"aspect_ratio": "16:9",
		},
	},
}

var voiceDefaults = map[string]Profile{
	"openai-tts": {
		Endpoint:     "/v1/audio/speech",
		AuthHeader:   "Authorization",
		AuthPrefix:   "Bearer ",
		ResponseType: "stream",
		DefaultParams: map[string]interface{}{
			"voice": "alloy",
			"speed": 1.0,
		},
	},
	"elevenlabs": {
		Scheme:       "elevenlabs",
		Endpoint:     "/v1/text-to-speech/{voice_id}",
		AuthHeader:   "xi-api-key",
		AuthPrefix:   "",
		ResponseType: "stream",
		DefaultParams: map[string]interface{}{
			"voice": "21m00Tcm4TlvDq8ikWAM",
		},
	},
	"azure-tts": {
		Scheme:       "azure-tts",
		Endpoint:     "/cognitiveservices/v1",
		AuthHeader:   "Ocp-Apim-Subscription-Key",
		AuthPrefix:   "",
		ResponseType: "stream",
	},
	"aliyun-tts": {
		Scheme:        "aliyun-tts",
		Endpoint:      "/v1/services/aigc/text-to-speech/synthesis",
		AuthHeader:    "Authorization",
		AuthPrefix:    "Bearer ",
		ResponseType:  "url",
		AudioDataPath: "output.audio_url",
		DefaultParams: map[string]interface{}{
			"voice": "xiaoyun",
		},
	},
	"minimax-tts": {
		Scheme:        "minimax-tts",
		Endpoint:      "/v1/t2a_v2",
		AuthHeader:    "Authorization",
		AuthPrefix:    "Bearer ",
		ResponseType:  "base64",
		AudioDataPath: "data.audio",
	},
}

var defaultsByModality = map[Modality]map[string]Profile{
	ModalityText:  textDefaults,
	ModalityImage: imageDefaults,
	ModalityVideo: videoDefaults,
	ModalityVoice: voiceDefaults,
}

// 自定义 Provider 兜底
var genericDefaults = map[Modality]Profile{
	ModalityText: {
		Endpoint:     "/chat/completions",
		AuthHeader:   "Authorization",
		AuthPrefix:   "Bearer ",
		ResponsePath: "choices[0].message.content",
	},
	ModalityImage: {
		Endpoint:     "/v1/images/generations",
		AuthHeader:   "Authorization",
		AuthPrefix:   "Bearer ",
		MediaURLPath: "data[0].url",
	},
	ModalityVideo: {
		SubmitEndpoint: "/v1/video/generations",
		StatusEndpoint: "/v1/video/generations/{task_id}",
		AuthHeader:     "Authorization",
		AuthPrefix:     "Bearer ",
		Async:          true,
		TaskIDPath:     "id",
		TaskStatusPath: "status",
		MediaURLPath:   "video.url",
	},
	ModalityVoice: {
		Endpoint:     "/v1/audio/speech",
		AuthHeader:   "Authorization",
		AuthPrefix:   "Bearer ",
		ResponseType: "stream",
	},
}

// Defaults 返回指定组合的内置默认 Profile。未知 Provider 回落到该 Modality 的通用形态。
func Defaults(modality Modality, provider string) Profile {
	var p Profile
	if table, ok := defaultsByModality[modality]; ok {
		if d, ok := table[provider]; ok {
			p = d
		} else {
			p = genericDefaults[modality]
			p.Scheme = "generic"
		}
	} else {
		p = genericDefaults[ModalityText]
	}
	p.Modality = modality
	p.Provider = provider
	return p
}

// Merge 用用户配置叠加内置默认值，返回归一化后的 Profile。
func Merge(modality Modality, provider string, overrides map[string]interface{}) Profile {
	return Defaults(modality, provider).applyOverrides(overrides)
}
