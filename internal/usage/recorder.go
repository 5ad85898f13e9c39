package usage

import (
	"log"

	"gorm.io/gorm"

	"genmedia-service/internal/model"
)

// Recorder 用量记录接口。实现必须是 fire-and-forget：
// 记录失败只打日志，绝不把错误传回生成主流程。
type Recorder interface {
	Record(entry *model.UsageLog)
}

// GormRecorder 把用量写入 usage_logs 表
type GormRecorder struct {
	db *gorm.DB
}

func NewGormRecorder(db *gorm.DB) *GormRecorder {
	return &GormRecorder{db: db}
}

func (r *GormRecorder) Record(entry *model.UsageLog) {
	if entry == nil {
		return
	}
	if entry.Cost == 0 {
		entry.Cost = EstimateCost(entry)
	}
	// 异步落库，不阻塞生成流程
	go func() {
		if err := r.db.Create(entry).Error; err != nil {
			log.Printf("[Usage] 记录用量失败: %v", err)
		}
	}()
}

// 估算费率。文本按千 token，图像按张，视频/语音按次。
// 只用于仪表盘粗略展示，不是计费依据。
var costRates = map[string]struct {
	perThousandTokensIn  float64
	perThousandTokensOut float64
	perCall              float64
}{
	"text":  {perThousandTokensIn: 0.002, perThousandTokensOut: 0.006},
	"image": {perCall: 0.04},
	"video": {perCall: 0.5},
	"voice": {perCall: 0.015},
}

// EstimateCost 估算一次调用的费用，失败调用不计费
func EstimateCost(entry *model.UsageLog) float64 {
	if entry.Status != "success" {
		return 0
	}
	rate, ok := costRates[entry.Modality]
	if !ok {
		return 0
	}
	cost := rate.perCall
	cost += float64(entry.TokensIn) / 1000 * rate.perThousandTokensIn
	cost += float64(entry.TokensOut) / 1000 * rate.perThousandTokensOut
	return cost
}

// Summary 按 Provider 聚合的用量统计
type Summary struct {
	Modality     string  `json:"modality"`
	ProviderName string  `json:"provider_name"`
	Calls        int64   `json:"calls"`
	Failures     int64   `json:"failures"`
	TokensIn     int64   `json:"tokens_in"`
	TokensOut    int64   `json:"tokens_out"`
	TotalCost    float64 `json:"total_cost"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Summarize 聚合全部用量记录
func (r *GormRecorder) Summarize() ([]Summary, error) {
	var rows []Summary
	err := r.db.Model(&model.UsageLog{}).
		Select(`modality, provider_name,
			COUNT(*) AS calls,
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS failures,
			SUM(tokens_in) AS tokens_in,
			SUM(tokens_out) AS tokens_out,
			SUM(cost) AS total_cost,
			AVG(latency_ms) AS avg_latency_ms`).
		Group("modality, provider_name").
		Order("modality, provider_name").
		Scan(&rows).Error
	return rows, err
}
