package main

import (
	"log"

	"genmedia-service/internal/model"
)

// 预置常用 Provider 配置，API Key 由用户替换
func main() {
	model.InitDB("storage/local/service.db")

	seeds := []model.ProviderProfileRecord{
		{
			Modality:       "text",
			ProviderName:   "openai",
			DisplayName:    "OpenAI",
			APIBase:        "https://api.openai.com/v1",
			APIKey:         "YOUR_API_KEY_HERE",
			ModelName:      "gpt-4o",
			Enabled:        true,
			TimeoutSeconds: 150,
		},
		{
			Modality:       "image",
			ProviderName:   "gemini-native",
			DisplayName:    "Google Gemini",
			APIBase:        "https://generativelanguage.googleapis.com",
			APIKey:         "YOUR_API_KEY_HERE",
			ModelName:      "gemini-2.5-flash-image",
			Enabled:        true,
			TimeoutSeconds: 500,
		},
		{
			Modality:       "video",
			ProviderName:   "kling",
			DisplayName:    "Kling",
			APIBase:        "https://api.klingai.com",
			APIKey:         "YOUR_API_KEY_HERE",
			ModelName:      "kling-v1",
			Enabled:        true,
			TimeoutSeconds: 600,
		},
		{
			Modality:       "voice",
			ProviderName:   "openai-tts",
			DisplayName:    "OpenAI TTS",
			APIBase:        "https://api.openai.com/v1",
			APIKey:         "YOUR_API_KEY_HERE",
			ModelName:      "tts-1",
			Enabled:        true,
			TimeoutSeconds: 150,
		},
	}

	for _, seed := range seeds {
		cond := model.ProviderProfileRecord{Modality: seed.Modality, ProviderName: seed.ProviderName}
		record := seed
		if err := model.DB.Where(cond).FirstOrCreate(&record).Error; err != nil {
			log.Fatalf("初始化 %s/%s 配置失败: %v", seed.Modality, seed.ProviderName, err)
		}
	}

	log.Println("默认 Provider 配置已初始化")
}
