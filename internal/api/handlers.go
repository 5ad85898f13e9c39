package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"genmedia-service/internal/adapter"
	"genmedia-service/internal/config"
	"genmedia-service/internal/download"
	"genmedia-service/internal/model"
	"genmedia-service/internal/optimize"
	"genmedia-service/internal/profile"
	"genmedia-service/internal/task"
	"genmedia-service/internal/usage"
)

// Response 统一 API 响应结构
type Response struct {
	Code    int         `json:"code"`    // 业务状态码: 200 为成功，其他为失败
	Message string      `json:"message"` // 提示信息
	Data    interface{} `json:"data"`    // 返回数据
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// 由 main 注入的共享组件
var (
	Downloads     *download.Manager
	UsageRecorder *usage.GormRecorder
)

// GenerateRequest 生成请求。params 中是各生成类型自己的参数
// （size、duration、voice 等），命名与 Provider 无关。
type GenerateRequest struct {
	Modality string                 `json:"modality" binding:"required"`
	Provider string                 `json:"provider" binding:"required"`
	Prompt   string                 `json:"prompt"`
	Messages []adapter.ChatMessage  `json:"messages"`
	Params   map[string]interface{} `json:"params"`
}

func paramString(params map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := params[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func paramInt(params map[string]interface{}, keys ...string) int {
	for _, k := range keys {
		switch v := params[k].(type) {
		case float64:
			return int(v)
		case int:
			return v
		}
	}
	return 0
}

func paramFloat(params map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := params[k].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

// buildAdapterRequest 把统一的生成请求翻译为对应模态的适配器请求
func buildAdapterRequest(req *GenerateRequest) (interface{}, string) {
	params := req.Params
	if params == nil {
		params = map[string]interface{}{}
	}

	switch profile.Modality(req.Modality) {
	case profile.ModalityText:
		messages := req.Messages
		if len(messages) == 0 {
			if req.Prompt == "" {
				return nil, "文本生成需要 prompt 或 messages"
			}
			messages = []adapter.ChatMessage{{Role: "user", Content: req.Prompt}}
		}
		textReq := &adapter.TextRequest{Messages: messages}
		if v, ok := paramFloat(params, "temperature"); ok {
			textReq.Temperature = &v
		}
		if v, ok := paramFloat(params, "top_p"); ok {
			textReq.TopP = &v
		}
		if n := paramInt(params, "max_tokens"); n > 0 {
			textReq.MaxTokens = &n
		}
		return textReq, ""

	case profile.ModalityImage:
		if req.Prompt == "" {
			return nil, "图像生成需要 prompt"
		}
		imageReq := &adapter.ImageRequest{
			Prompt:         req.Prompt,
			NegativePrompt: paramString(params, "negative_prompt"),
			Size:           paramString(params, "size"),
			Quality:        paramString(params, "quality", "resolution_level"),
			Style:          paramString(params, "style"),
			ResponseFormat: paramString(params, "response_format"),
			AspectRatio:    paramString(params, "aspect_ratio", "aspectRatio"),
			N:              paramInt(params, "n", "count"),
		}
		if refs, ok := params["reference_images"].([]interface{}); ok {
			for _, r := range refs {
				if s, ok := r.(string); ok && s != "" {
					imageReq.ReferenceImages = append(imageReq.ReferenceImages, s)
				}
			}
		}
		return imageReq, ""

	case profile.ModalityVideo:
		if req.Prompt == "" {
			return nil, "视频生成需要 prompt"
		}
		videoReq := &adapter.VideoRequest{
			Prompt:         req.Prompt,
			NegativePrompt: paramString(params, "negative_prompt"),
			Resolution:     paramString(params, "resolution"),
			AspectRatio:    paramString(params, "aspect_ratio", "aspectRatio"),
			ImageURL:       paramString(params, "image_url"),
			Style:          paramString(params, "style"),
			Duration:       paramInt(params, "duration"),
			FPS:            paramInt(params, "fps"),
		}
		if v, ok := paramFloat(params, "cfg_scale"); ok {
			videoReq.CFGScale = v
		}
		if v, ok := paramFloat(params, "seed"); ok {
			seed := int(v)
			videoReq.Seed = &seed
		}
		return videoReq, ""

	case profile.ModalityVoice:
		text := req.Prompt
		if t := paramString(params, "text"); t != "" {
			text = t
		}
		if text == "" {
			return nil, "语音合成需要 prompt 或 params.text"
		}
		voiceReq := &adapter.VoiceRequest{
			Text:   text,
			Voice:  paramString(params, "voice"),
			Format: paramString(params, "format"),
		}
		if v, ok := paramFloat(params, "speed"); ok {
			voiceReq.Speed = v
		}
		if n := paramInt(params, "sample_rate"); n > 0 {
			voiceReq.SampleRate = n
		}
		return voiceReq, ""
	}

	return nil, "不支持的生成类型: " + req.Modality
}

// GenerateHandler 创建生成任务并提交到任务池
func GenerateHandler(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, 400, err.Error())
		return
	}

	if _, ok := profile.Lookup(profile.Modality(req.Modality), req.Provider); !ok {
		Error(c, http.StatusBadRequest, 400, "未找到已启用的 Provider: "+req.Modality+"/"+req.Provider)
		return
	}

	adapterReq, errMsg := buildAdapterRequest(&req)
	if errMsg != "" {
		Error(c, http.StatusBadRequest, 400, errMsg)
		return
	}

	submitTask(c, &req, adapterReq)
}

func submitTask(c *gin.Context, req *GenerateRequest, adapterReq interface{}) {
	entry, _ := profile.Lookup(profile.Modality(req.Modality), req.Provider)

	prompt := req.Prompt
	if prompt == "" && len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}

	record := &model.GenerationTask{
		TaskID:       uuid.New().String(),
		Modality:     req.Modality,
		ProviderName: req.Provider,
		ModelName:    entry.ModelName,
		Prompt:       prompt,
		Status:       string(task.StatusPending),
	}
	if err := model.DB.Create(record).Error; err != nil {
		Error(c, http.StatusInternalServerError, 500, "创建任务失败")
		return
	}

	if !task.GlobalPool.Submit(&task.Job{Record: record, Request: adapterReq}) {
		model.DB.Model(record).Updates(map[string]interface{}{
			"status":        string(task.StatusFailed),
			"error_message": "任务队列已满，请稍后再试",
		})
		Error(c, http.StatusServiceUnavailable, 503, "服务器繁忙，请稍后再试")
		return
	}

	Success(c, record)
}

// GetTaskHandler 查询任务状态
func GetTaskHandler(c *gin.Context) {
	taskID := c.Param("task_id")
	var record model.GenerationTask
	if err := model.DB.Where("task_id = ?", taskID).First(&record).Error; err != nil {
		Error(c, http.StatusNotFound, 404, "任务未找到")
		return
	}
	Success(c, record)
}

// ListTasksHandler 任务列表（支持按类型过滤与关键词搜索）
func ListTasksHandler(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize <= 0 {
		pageSize = 20
	} else if pageSize > 100 {
		pageSize = 100
	}

	query := model.DB.Model(&model.GenerationTask{})
	if modality := c.Query("modality"); modality != "" {
		query = query.Where("modality = ?", modality)
	}
	if keyword := c.Query("keyword"); keyword != "" {
		query = query.Where("prompt LIKE ?", "%"+keyword+"%")
	}

	var total int64
	query.Count(&total)

	var records []model.GenerationTask
	offset := (page - 1) * pageSize
	if err := query.Order("status='processing' DESC, status='pending' DESC, created_at DESC").
		Offset(offset).Limit(pageSize).Find(&records).Error; err != nil {
		Error(c, http.StatusInternalServerError, 500, "查询失败")
		return
	}

	Success(c, gin.H{
		"total": total,
		"list":  records,
	})
}

// ProfileRequest 新建/更新 Provider 接入配置
type ProfileRequest struct {
	Modality     string                 `json:"modality" binding:"required"`
	ProviderName string                 `json:"provider_name" binding:"required"`
	DisplayName  string                 `json:"display_name"`
	APIBase      string                 `json:"api_base" binding:"required"`
	APIKey       string                 `json:"api_key"`
	ModelName    string                 `json:"model_name"`
	Enabled      *bool                  `json:"enabled"`
	TimeoutSecs  *int                   `json:"timeout_seconds"`
	Profile      map[string]interface{} `json:"profile"`
}

// UpdateProfileHandler 写入接入配置并重载 Registry
func UpdateProfileHandler(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, 400, "参数验证失败: "+err.Error())
		return
	}

	log.Printf("[API] 收到接入配置更新: %s/%s, Base=%s, KeyLen=%d",
		req.Modality, req.ProviderName, req.APIBase, len(req.APIKey))

	profileJSON := ""
	if len(req.Profile) > 0 {
		b, err := json.Marshal(req.Profile)
		if err != nil {
			Error(c, http.StatusBadRequest, 400, "profile 字段无法序列化: "+err.Error())
			return
		}
		profileJSON = string(b)
	}

	var rec model.ProviderProfileRecord
	err := model.DB.Where("modality = ? AND provider_name = ?", req.Modality, req.ProviderName).
		First(&rec).Error
	if err != nil {
		rec = model.ProviderProfileRecord{
			Modality:     req.Modality,
			ProviderName: req.ProviderName,
			DisplayName:  req.DisplayName,
			APIBase:      req.APIBase,
			APIKey:       req.APIKey,
			ModelName:    req.ModelName,
			Enabled:      req.Enabled == nil || *req.Enabled,
			ProfileJSON:  profileJSON,
		}
		if req.TimeoutSecs != nil {
			rec.TimeoutSeconds = *req.TimeoutSecs
		}
		if createErr := model.DB.Create(&rec).Error; createErr != nil {
			Error(c, http.StatusInternalServerError, 500, "保存配置失败: "+createErr.Error())
			return
		}
	} else {
		updates := map[string]interface{}{
			"api_base": req.APIBase,
		}
		if req.APIKey != "" {
			updates["api_key"] = req.APIKey
		}
		if req.DisplayName != "" {
			updates["display_name"] = req.DisplayName
		}
		if req.ModelName != "" {
			updates["model_name"] = req.ModelName
		}
		if req.Enabled != nil {
			updates["enabled"] = *req.Enabled
		}
		if req.TimeoutSecs != nil {
			updates["timeout_seconds"] = *req.TimeoutSecs
		}
		if profileJSON != "" {
			updates["profile_json"] = profileJSON
		}
		if updateErr := model.DB.Model(&rec).Updates(updates).Error; updateErr != nil {
			Error(c, http.StatusInternalServerError, 500, "更新配置失败: "+updateErr.Error())
			return
		}
	}

	profile.InitRegistry()
	Success(c, "配置已更新并生效")
}

// ListProfilesHandler 列出所有接入配置，API Key 打码
func ListProfilesHandler(c *gin.Context) {
	var records []model.ProviderProfileRecord
	if err := model.DB.Find(&records).Error; err != nil {
		Error(c, http.StatusInternalServerError, 500, "获取配置失败")
		return
	}
	for i := range records {
		records[i].APIKey = maskKey(records[i].APIKey)
	}
	Success(c, records)
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", 6) + key[len(key)-4:]
}

// PresetsInfoHandler 远端预设状态
func PresetsInfoHandler(c *gin.Context) {
	source, version := profile.PresetInfo()
	Success(c, gin.H{"source": source, "version": version})
}

// RefreshPresetsHandler 手动刷新远端预设并重载 Registry
func RefreshPresetsHandler(c *gin.Context) {
	if err := profile.RefreshPresets(c.Request.Context()); err != nil {
		Error(c, http.StatusBadGateway, 502, "刷新预设失败: "+err.Error())
		return
	}
	profile.InitRegistry()
	source, version := profile.PresetInfo()
	Success(c, gin.H{"source": source, "version": version})
}

// OptimizeRequest 提示词优化请求
type OptimizeRequest struct {
	Provider string `json:"provider"`
	Prompt   string `json:"prompt" binding:"required"`
	Modality string `json:"modality"`
}

// OptimizeHandler 提示词优化，走文本模态里配置的 OpenAI 兼容 Provider
func OptimizeHandler(c *gin.Context) {
	var req OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, 400, err.Error())
		return
	}

	providerName := strings.TrimSpace(strings.ToLower(req.Provider))
	if providerName == "" {
		providerName = "openai"
	}
	entry, ok := profile.Lookup(profile.ModalityText, providerName)
	if !ok {
		Error(c, http.StatusBadRequest, 400, "未找到已启用的文本 Provider: "+providerName)
		return
	}
	if strings.TrimSpace(entry.APIKey) == "" {
		Error(c, http.StatusBadRequest, 400, "Provider API Key 未配置")
		return
	}

	systemPrompt := strings.TrimSpace(config.GlobalConfig.Prompts.OptimizeSystem)
	if systemPrompt == "" {
		systemPrompt = config.DefaultOptimizeSystemPrompt
	}

	optimized, err := optimize.NewOptimizer(entry, systemPrompt).Optimize(c.Request.Context(), req.Prompt, req.Modality)
	if err != nil {
		Error(c, http.StatusBadRequest, 400, err.Error())
		return
	}
	Success(c, gin.H{"prompt": optimized})
}

// UsageSummaryHandler 用量统计
func UsageSummaryHandler(c *gin.Context) {
	if UsageRecorder == nil {
		Error(c, http.StatusInternalServerError, 500, "用量组件未初始化")
		return
	}
	rows, err := UsageRecorder.Summarize()
	if err != nil {
		Error(c, http.StatusInternalServerError, 500, "统计失败: "+err.Error())
		return
	}
	Success(c, rows)
}

// DownloadFileHandler 下载任务的本地产物文件
func DownloadFileHandler(c *gin.Context) {
	taskID := c.Param("task_id")
	var record model.GenerationTask
	if err := model.DB.Where("task_id = ?", taskID).First(&record).Error; err != nil {
		Error(c, http.StatusNotFound, 404, "任务未找到")
		return
	}
	if record.LocalPath == "" {
		Error(c, http.StatusNotFound, 404, "任务没有本地产物")
		return
	}
	c.FileAttachment(record.LocalPath, taskID+pathExt(record.LocalPath))
}

func pathExt(p string) string {
	if idx := strings.LastIndex(p, "."); idx >= 0 {
		return p[idx:]
	}
	return ""
}
