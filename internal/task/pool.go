package task

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"genmedia-service/internal/adapter"
	"genmedia-service/internal/model"
)

// Job 一个排队中的生成任务
type Job struct {
	Record  *model.GenerationTask
	Request interface{}
	// resume 为 true 时不重新提交，只恢复对已有 ProviderTaskID 的轮询
	resume bool
}

// Pool 生成任务池。所有生成调用都经由固定数量的 Worker 串行消费，
// 避免对 Provider 的并发冲击不可控。
type Pool struct {
	workerCount int
	jobQueue    chan *Job
	executor    *Executor
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

var GlobalPool *Pool

// InitPool 初始化全局任务池
func InitPool(workerCount, queueSize int, executor *Executor) {
	ctx, cancel := context.WithCancel(context.Background())
	GlobalPool = &Pool{
		workerCount: workerCount,
		jobQueue:    make(chan *Job, queueSize),
		executor:    executor,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start 启动所有 Worker
func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Printf("任务池已启动，Worker 数量: %d", p.workerCount)
}

// Stop 停止任务池：先取消 Context 打断进行中的轮询，再等 Worker 退出。
// 被打断与未消费的任务留在数据库里，重启时由 RecoverUnfinished 接手。
func (p *Pool) Stop() {
	p.cancel()
	close(p.jobQueue)
	p.wg.Wait()
	log.Println("任务池已停止")
}

// Submit 提交任务到队列，队列满时返回 false
func (p *Pool) Submit(job *Job) bool {
	select {
	case p.jobQueue <- job:
		return true
	default:
		return false
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			log.Printf("Worker %d 收到停止信号", id)
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.process(job)
		}
	}
}

func (p *Pool) process(job *Job) {
	record := job.Record
	now := time.Now()
	model.DB.Model(record).Updates(map[string]interface{}{
		"status":       string(StatusProcessing),
		"submitted_at": &now,
	})

	// 行状态只随轮询单调推进，重复或回退的通知不落库
	current := StatusProcessing
	savedTaskID := ""
	onUpdate := func(status Status, result *adapter.GenerationResult) {
		updates := map[string]interface{}{}
		if next, changed := Advance(current, status); changed {
			current = next
			updates["status"] = string(current)
		}
		if record.ProviderTaskID != "" && record.ProviderTaskID != savedTaskID {
			savedTaskID = record.ProviderTaskID
			updates["provider_task_id"] = record.ProviderTaskID
		}
		if len(updates) > 0 {
			model.DB.Model(record).Updates(updates)
		}
	}

	var result *adapter.GenerationResult
	var err error
	if job.resume {
		result, err = p.executor.Resume(p.ctx, record, onUpdate)
	} else {
		result, err = p.executor.Execute(p.ctx, record, job.Request, onUpdate)
	}
	if err != nil {
		p.fail(record, err)
		return
	}

	updates := map[string]interface{}{
		"status": string(StatusCompleted),
	}
	if result.Content != "" {
		updates["content_text"] = result.Content
	}
	if result.MediaURL != "" {
		updates["media_url"] = result.MediaURL
	}
	if result.Usage != nil {
		updates["tokens_in"] = result.Usage.TokensIn
		updates["tokens_out"] = result.Usage.TokensOut
	}

	if p.executor.SaveMedia != nil {
		localPath, thumbPath, saveErr := p.executor.SaveMedia(p.ctx, record, result)
		if saveErr != nil {
			p.fail(record, saveErr)
			return
		}
		if localPath != "" {
			updates["local_path"] = localPath
		}
		if thumbPath != "" {
			updates["thumbnail_path"] = thumbPath
		}
		// SaveMedia 可能回填远端地址（如 OSS 镜像）
		if record.MediaURL != "" {
			updates["media_url"] = record.MediaURL
		}
	}

	completedAt := time.Now()
	updates["completed_at"] = &completedAt
	model.DB.Model(record).Updates(updates)
	log.Printf("任务 %s 处理完成", record.TaskID)
}

func (p *Pool) fail(record *model.GenerationTask, err error) {
	// 停机打断不算失败，状态保持原样等重启恢复
	if errors.Is(err, context.Canceled) {
		log.Printf("任务 %s 因停机中断，等待重启恢复", record.TaskID)
		return
	}
	status := StatusFailed
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		log.Printf("任务 %s 等待超时: %v", record.TaskID, err)
	} else {
		log.Printf("任务 %s 失败: %v", record.TaskID, err)
	}
	model.DB.Model(record).Updates(map[string]interface{}{
		"status":        string(status),
		"error_message": err.Error(),
	})
}

// RecoverUnfinished 服务重启后处理遗留任务：
// 有 Provider 任务 ID 的异步任务重新排队恢复轮询，其余非终态任务标记失败。
func (p *Pool) RecoverUnfinished() {
	var records []model.GenerationTask
	if err := model.DB.Where("status IN ?", []string{string(StatusPending), string(StatusProcessing)}).Find(&records).Error; err != nil {
		log.Printf("查询遗留任务失败: %v", err)
		return
	}

	recovered, abandoned := 0, 0
	for i := range records {
		record := &records[i]
		if record.ProviderTaskID != "" {
			if p.Submit(&Job{Record: record, resume: true}) {
				recovered++
				continue
			}
		}
		model.DB.Model(record).Updates(map[string]interface{}{
			"status":        string(StatusFailed),
			"error_message": "服务重启导致任务中断",
		})
		abandoned++
	}
	if recovered+abandoned > 0 {
		log.Printf("遗留任务处理完成: 恢复轮询 %d 个, 标记失败 %d 个", recovered, abandoned)
	}
}
