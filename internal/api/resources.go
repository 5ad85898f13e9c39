package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"genmedia-service/internal/download"
)

// DownloadResourceRequest 资源下载请求
type DownloadResourceRequest struct {
	ResourceType string `json:"resource_type" binding:"required"`
	ResourceID   string `json:"resource_id" binding:"required"`
	Namespace    string `json:"namespace"`
	RemoteURL    string `json:"remote_url" binding:"required"`
}

// DownloadResourceHandler 落盘一个远端资源。
// 同一资源重复请求直接复用本地文件，进行中的重复请求返回 409。
func DownloadResourceHandler(c *gin.Context) {
	var req DownloadResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, 400, err.Error())
		return
	}

	record, cached, err := Downloads.Download(c.Request.Context(), download.Request{
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Namespace:    req.Namespace,
		RemoteURL:    req.RemoteURL,
	})
	if err != nil {
		var dup *download.DuplicateInProgressError
		if errors.As(err, &dup) {
			Error(c, http.StatusConflict, 409, err.Error())
			return
		}
		var transferErr *download.TransferError
		if errors.As(err, &transferErr) {
			Error(c, http.StatusBadGateway, 502, err.Error())
			return
		}
		Error(c, http.StatusInternalServerError, 500, err.Error())
		return
	}

	Success(c, gin.H{
		"record": record,
		"cached": cached,
	})
}

// ResourceStatusHandler 查询资源下载状态与进度
func ResourceStatusHandler(c *gin.Context) {
	info, err := Downloads.Status(c.Param("type"), c.Param("id"))
	if err != nil {
		Error(c, http.StatusInternalServerError, 500, err.Error())
		return
	}
	if info == nil {
		Error(c, http.StatusNotFound, 404, "资源没有下载记录")
		return
	}
	Success(c, info)
}

// RetryResourceHandler 重试一个失败的下载
func RetryResourceHandler(c *gin.Context) {
	record, err := Downloads.Retry(c.Request.Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		var dup *download.DuplicateInProgressError
		if errors.As(err, &dup) {
			Error(c, http.StatusConflict, 409, err.Error())
			return
		}
		var transferErr *download.TransferError
		if errors.As(err, &transferErr) {
			Error(c, http.StatusBadGateway, 502, err.Error())
			return
		}
		Error(c, http.StatusBadRequest, 400, err.Error())
		return
	}
	Success(c, record)
}

// PurgeNamespaceHandler 删除归属目录下的所有资源
func PurgeNamespaceHandler(c *gin.Context) {
	removed, err := Downloads.PurgeNamespace(c.Param("namespace"))
	if err != nil {
		Error(c, http.StatusInternalServerError, 500, err.Error())
		return
	}
	Success(c, gin.H{"removed": removed})
}
