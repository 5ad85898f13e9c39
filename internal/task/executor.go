package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"genmedia-service/internal/adapter"
	"genmedia-service/internal/model"
	"genmedia-service/internal/profile"
)

// Executor 执行一次生成调用：按 Modality 分发到对应适配器，
// 异步 Provider 提交后交给 Runner 轮询到终态。
type Executor struct {
	Text  *adapter.TextAdapter
	Image *adapter.ImageAdapter
	Video *adapter.VideoAdapter
	Voice *adapter.VoiceAdapter

	// Lookup 解析 (modality, provider) 的运行期配置，通常是 profile.Lookup
	Lookup func(modality profile.Modality, provider string) (*profile.Entry, bool)

	// SaveMedia 成功后落盘产物（含缩略图），返回本地路径。为 nil 时跳过存储。
	SaveMedia func(ctx context.Context, record *model.GenerationTask, result *adapter.GenerationResult) (localPath, thumbPath string, err error)

	// RecordUsage 用量上报钩子，失败不影响主流程。为 nil 时跳过。
	RecordUsage func(entry *model.UsageLog)

	imageRunner *Runner
	videoRunner *Runner
}

// Setup 构建各模态的轮询器，必须在使用前调用一次
func (e *Executor) Setup() {
	e.imageRunner = NewRunner(e.Image.QueryTask)
	e.videoRunner = NewRunner(e.Video.QueryTask)
}

// Execute 执行 record 描述的生成任务。req 为对应模态的请求结构。
// onUpdate 在任务状态推进时回调（可为 nil）。
func (e *Executor) Execute(ctx context.Context, record *model.GenerationTask, req interface{}, onUpdate func(Status, *adapter.GenerationResult)) (*adapter.GenerationResult, error) {
	entry, ok := e.Lookup(profile.Modality(record.Modality), record.ProviderName)
	if !ok {
		return nil, fmt.Errorf("provider %s/%s 未配置或未启用", record.Modality, record.ProviderName)
	}

	started := time.Now()
	result, err := e.dispatch(ctx, entry, record, req, onUpdate)
	e.report(record, entry, req, result, err, time.Since(started))
	return result, err
}

func (e *Executor) dispatch(ctx context.Context, entry *profile.Entry, record *model.GenerationTask, req interface{}, onUpdate func(Status, *adapter.GenerationResult)) (*adapter.GenerationResult, error) {
	switch profile.Modality(record.Modality) {
	case profile.ModalityText:
		textReq, ok := req.(*adapter.TextRequest)
		if !ok {
			return nil, fmt.Errorf("文本任务的请求类型错误: %T", req)
		}
		return e.Text.Generate(ctx, entry, textReq)

	case profile.ModalityImage:
		imageReq, ok := req.(*adapter.ImageRequest)
		if !ok {
			return nil, fmt.Errorf("图像任务的请求类型错误: %T", req)
		}
		if entry.Profile.SchemeKey() == "gemini-native" {
			gemini, err := adapter.NewGeminiImageAdapter(entry)
			if err != nil {
				return nil, err
			}
			return gemini.Generate(ctx, imageReq)
		}
		result, err := e.Image.Generate(ctx, entry, imageReq)
		if err != nil {
			return nil, err
		}
		if entry.Profile.Async {
			if result.TaskID == "" {
				return nil, &SubmissionError{Provider: record.ProviderName, Reason: "提交成功但未返回任务 ID"}
			}
			record.ProviderTaskID = result.TaskID
			if onUpdate != nil {
				onUpdate(StatusProcessing, result)
			}
			return e.imageRunner.WaitUntilTerminal(ctx, entry, result.TaskID, onUpdate)
		}
		return result, nil

	case profile.ModalityVideo:
		videoReq, ok := req.(*adapter.VideoRequest)
		if !ok {
			return nil, fmt.Errorf("视频任务的请求类型错误: %T", req)
		}
		submitted, err := e.Video.Submit(ctx, entry, videoReq)
		if err != nil {
			return nil, err
		}
		if !entry.Profile.Async {
			return submitted, nil
		}
		if submitted.TaskID == "" {
			return nil, &SubmissionError{Provider: record.ProviderName, Reason: "提交成功但未返回任务 ID"}
		}
		record.ProviderTaskID = submitted.TaskID
		if onUpdate != nil {
			onUpdate(StatusProcessing, submitted)
		}
		return e.videoRunner.WaitUntilTerminal(ctx, entry, submitted.TaskID, onUpdate)

	case profile.ModalityVoice:
		voiceReq, ok := req.(*adapter.VoiceRequest)
		if !ok {
			return nil, fmt.Errorf("语音任务的请求类型错误: %T", req)
		}
		return e.Voice.Generate(ctx, entry, voiceReq)
	}

	return nil, fmt.Errorf("不支持的生成类型: %s", record.Modality)
}

// Resume 恢复一个已有 Provider 任务 ID 的异步任务的轮询（服务重启后使用）
func (e *Executor) Resume(ctx context.Context, record *model.GenerationTask, onUpdate func(Status, *adapter.GenerationResult)) (*adapter.GenerationResult, error) {
	entry, ok := e.Lookup(profile.Modality(record.Modality), record.ProviderName)
	if !ok {
		return nil, fmt.Errorf("provider %s/%s 未配置或未启用", record.Modality, record.ProviderName)
	}

	var runner *Runner
	switch profile.Modality(record.Modality) {
	case profile.ModalityImage:
		runner = e.imageRunner
	case profile.ModalityVideo:
		runner = e.videoRunner
	default:
		return nil, fmt.Errorf("生成类型 %s 不支持恢复轮询", record.Modality)
	}

	started := time.Now()
	result, err := runner.WaitUntilTerminal(ctx, entry, record.ProviderTaskID, onUpdate)
	e.report(record, entry, nil, result, err, time.Since(started))
	return result, err
}

func (e *Executor) report(record *model.GenerationTask, entry *profile.Entry, req interface{}, result *adapter.GenerationResult, err error, latency time.Duration) {
	if e.RecordUsage == nil {
		return
	}
	entryLog := &model.UsageLog{
		Modality:     record.Modality,
		ProviderName: record.ProviderName,
		ModelName:    entry.ModelName,
		Status:       "success",
		LatencyMs:    latency.Milliseconds(),
	}
	if err != nil {
		entryLog.Status = "failed"
		entryLog.ErrorMessage = err.Error()
	}
	if result != nil && result.Usage != nil {
		entryLog.TokensIn = result.Usage.TokensIn
		entryLog.TokensOut = result.Usage.TokensOut
	}
	// 请求与最后一次 Provider 响应的快照，排查形态问题用
	if req != nil {
		if b, marshalErr := json.Marshal(req); marshalErr == nil {
			entryLog.RequestSnapshot = string(b)
		}
	}
	if result != nil && result.Raw != nil {
		if b, marshalErr := json.Marshal(result.Raw); marshalErr == nil {
			entryLog.ResponseSnapshot = string(b)
		}
	}
	e.RecordUsage(entryLog)
}
