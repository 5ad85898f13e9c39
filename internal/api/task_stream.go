package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"genmedia-service/internal/model"
)

const (
	taskStreamPollInterval = 1 * time.Second
	taskStreamKeepAlive    = 3 * time.Second
)

// StreamTaskHandler 通过 SSE 推送任务状态变化，终态后关闭连接
func StreamTaskHandler(c *gin.Context) {
	taskID := c.Param("task_id")

	var record model.GenerationTask
	if err := model.DB.Where("task_id = ?", taskID).First(&record).Error; err != nil {
		Error(c, http.StatusNotFound, 404, "任务未找到")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		Error(c, http.StatusInternalServerError, 500, "Streaming unsupported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	lastSignature := taskSignature(&record)
	if !writeTaskEvent(c.Writer, flusher, &record) {
		return
	}
	if record.Status == "completed" || record.Status == "failed" {
		return
	}

	ticker := time.NewTicker(taskStreamPollInterval)
	defer ticker.Stop()
	keepAliveTicker := time.NewTicker(taskStreamKeepAlive)
	defer keepAliveTicker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			var latest model.GenerationTask
			if err := model.DB.Where("task_id = ?", taskID).First(&latest).Error; err != nil {
				return
			}

			signature := taskSignature(&latest)
			if signature != lastSignature {
				if !writeTaskEvent(c.Writer, flusher, &latest) {
					return
				}
				lastSignature = signature
			}

			if latest.Status == "completed" || latest.Status == "failed" {
				return
			}
		case <-keepAliveTicker.C:
			if _, err := fmt.Fprintf(c.Writer, "event: ping\ndata: {}\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeTaskEvent(w http.ResponseWriter, flusher http.Flusher, record *model.GenerationTask) bool {
	payload, err := json.Marshal(record)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

func taskSignature(record *model.GenerationTask) string {
	completedAt := ""
	if record.CompletedAt != nil {
		completedAt = record.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s",
		record.Status,
		record.ErrorMessage,
		record.ProviderTaskID,
		record.ContentText,
		record.MediaURL,
		record.LocalPath,
		completedAt,
	)
}
