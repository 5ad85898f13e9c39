package adapter

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"google.golang.org/genai"

	"genmedia-service/internal/profile"
)

// GeminiImageAdapter gemini-native Scheme 的图像策略。
// 不走通用的 HTTP 请求构造，直接用官方 SDK 调 GenerateContent。
type GeminiImageAdapter struct {
	client *genai.Client
	model  string
}

func NewGeminiImageAdapter(entry *profile.Entry) (*GeminiImageAdapter, error) {
	ctx := context.Background()

	log.Printf("[Gemini] 正在初始化: BaseURL=%s, KeyLen=%d\n", entry.APIBase, len(entry.APIKey))

	timeout := entry.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Second
	}

	// 完全禁用连接复用，每次请求新建 TCP 连接，
	// 规避长连接下偶发的 "bad file descriptor"
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DisableKeepAlives:   true,
			ForceAttemptHTTP2:   false,
			MaxIdleConns:        0,
			MaxIdleConnsPerHost: 0,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: false,
				MinVersion:         tls.VersionTLS12,
			},
		},
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     entry.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}

	// 中转 API 需要去掉末尾的 /
	if entry.APIBase != "" && entry.APIBase != "https://generativelanguage.googleapis.com" {
		apiBase := strings.TrimRight(entry.APIBase, "/")
		log.Printf("[Gemini] 使用自定义 BaseURL: %s\n", apiBase)
		clientConfig.HTTPOptions = genai.HTTPOptions{
			BaseURL: apiBase,
		}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}

	return &GeminiImageAdapter{
		client: client,
		model:  entry.ModelName,
	}, nil
}

// Generate 文生图 / 图生图，参考图存在时走图生图
func (a *GeminiImageAdapter) Generate(ctx context.Context, req *ImageRequest) (*GenerationResult, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("缺少 prompt 参数")
	}

	// Imagen 系列建议同时包含 TEXT 和 IMAGE，
	// 只设 IMAGE 部分中转会处理不当
	genConfig := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	if req.AspectRatio != "" {
		genConfig.ImageConfig = &genai.ImageConfig{
			AspectRatio: strings.TrimSpace(req.AspectRatio),
		}
	}
	if req.Quality != "" {
		if genConfig.ImageConfig == nil {
			genConfig.ImageConfig = &genai.ImageConfig{}
		}
		// 分辨率级别大写 (1K, 2K, 4K)
		genConfig.ImageConfig.ImageSize = strings.ToUpper(strings.TrimSpace(req.Quality))
	}

	// 放开安全过滤，避免空响应
	genConfig.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
	}

	if req.N > 0 {
		genConfig.CandidateCount = int32(req.N)
	}

	parts := []*genai.Part{}

	// 图生图：参考图在前，文本在后
	for i, ref := range req.ReferenceImages {
		base64Data := ref
		if strings.Contains(base64Data, ",") {
			base64Data = strings.Split(base64Data, ",")[1]
		}
		imgBytes, err := base64.StdEncoding.DecodeString(base64Data)
		if err != nil {
			return nil, fmt.Errorf("解码第 %d 张参考图失败: %w", i, err)
		}

		mimeType := http.DetectContentType(imgBytes)
		if !strings.HasPrefix(mimeType, "image/") {
			mimeType = "image/jpeg"
		}

		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: mimeType,
				Data:     imgBytes,
			},
		})
	}

	parts = append(parts, &genai.Part{Text: removeMarkdownImages(req.Prompt)})

	log.Printf("[Gemini] 调用 GenerateContent, Model: %s, Parts: %d\n", a.model, len(parts))

	resp, err := a.client.Models.GenerateContent(ctx, a.model, []*genai.Content{
		{Role: "user", Parts: parts},
	}, genConfig)
	if err != nil {
		return nil, fmt.Errorf("GenerateContent 调用失败: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &ProviderFormatError{Reason: "API 未返回有效内容 (可能触发了安全过滤或配额限制)"}
	}

	candidate := resp.Candidates[0]

	var images []ImageArtifact
	for _, part := range candidate.Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			images = append(images, ImageArtifact{
				Base64: base64.StdEncoding.EncodeToString(part.InlineData.Data),
			})
		}
	}

	if len(images) == 0 {
		var reason strings.Builder
		reason.WriteString(fmt.Sprintf("未在响应中找到图片数据 (FinishReason: %s)", candidate.FinishReason))
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				reason.WriteString(fmt.Sprintf(" | 文本响应: %s", part.Text))
			}
		}
		if len(candidate.SafetyRatings) > 0 {
			for _, rating := range candidate.SafetyRatings {
				if rating.Probability != "NEGLIGIBLE" && rating.Probability != "" {
					reason.WriteString(fmt.Sprintf(" | 安全警告: %s(%s)", rating.Category, rating.Probability))
				}
			}
		}
		return nil, &ProviderFormatError{Reason: reason.String()}
	}

	return &GenerationResult{
		Images: images,
		Model:  a.model,
	}, nil
}

// removeMarkdownImages 移除提示词中的 Markdown 图片语法 ![alt](url)，保留 alt 文字
func removeMarkdownImages(text string) string {
	re := regexp.MustCompile(`!\[(.*?)\]\([^\)]+\)`)
	return re.ReplaceAllStringFunc(text, func(match string) string {
		submatch := re.FindStringSubmatch(match)
		if len(submatch) > 1 {
			return strings.TrimSpace(submatch[1])
		}
		return ""
	})
}
