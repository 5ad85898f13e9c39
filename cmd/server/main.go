package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"genmedia-service/internal/adapter"
	"genmedia-service/internal/api"
	"genmedia-service/internal/config"
	"genmedia-service/internal/download"
	"genmedia-service/internal/model"
	"genmedia-service/internal/profile"
	"genmedia-service/internal/storage"
	"genmedia-service/internal/task"
	"genmedia-service/internal/usage"
)

func main() {
	// 1. 初始化配置
	config.InitConfig()

	// 2. 初始化数据库
	model.InitDB(config.GlobalConfig.Database.Path)

	// 3. 初始化存储
	var ossConfig *storage.OSSConfig
	if config.GlobalConfig.Storage.OSS.Enabled {
		ossConfig = &storage.OSSConfig{
			Endpoint:        config.GlobalConfig.Storage.OSS.Endpoint,
			AccessKeyID:     config.GlobalConfig.Storage.OSS.AccessKeyID,
			AccessKeySecret: config.GlobalConfig.Storage.OSS.AccessKeySecret,
			BucketName:      config.GlobalConfig.Storage.OSS.BucketName,
			Domain:          config.GlobalConfig.Storage.OSS.Domain,
		}
	}
	storage.InitStorage(config.GlobalConfig.Storage.LocalDir, ossConfig)

	// 4. 加载 Provider 形态预设与 Registry
	profile.InitPresets(config.GlobalConfig.Profiles.RemoteURL,
		time.Duration(config.GlobalConfig.Profiles.FetchTimeoutSeconds)*time.Second)
	profile.InitRegistry()

	// 5. 组装生成链路
	recorder := usage.NewGormRecorder(model.DB)
	executor := &task.Executor{
		Text:   adapter.NewTextAdapter(nil),
		Image:  adapter.NewImageAdapter(nil),
		Video:  adapter.NewVideoAdapter(nil),
		Voice:  adapter.NewVoiceAdapter(nil),
		Lookup: profile.Lookup,
		SaveMedia: func(ctx context.Context, record *model.GenerationTask, result *adapter.GenerationResult) (string, string, error) {
			return saveTaskMedia(record, result)
		},
		RecordUsage: recorder.Record,
	}
	executor.Setup()

	task.InitPool(config.GlobalConfig.Worker.Count, config.GlobalConfig.Worker.QueueSize, executor)
	task.GlobalPool.Start()
	task.GlobalPool.RecoverUnfinished()

	// 6. 资源下载管理器。资源根目录运行期可通过 settings 表调整。
	api.Downloads = download.NewManager(
		download.NewGormStore(model.DB),
		&http.Client{Timeout: 10 * time.Minute},
		resourceRoot,
		config.GlobalConfig.Download.MaxRedirects,
	)
	api.UsageRecorder = recorder

	// 7. 设置路由
	r := gin.Default()
	r.Use(corsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		api.Success(c, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/generate", api.GenerateHandler)
		v1.POST("/generate/with-images", api.GenerateWithImagesHandler)
		v1.GET("/tasks", api.ListTasksHandler)
		v1.GET("/tasks/:task_id", api.GetTaskHandler)
		v1.GET("/tasks/:task_id/stream", api.StreamTaskHandler)
		v1.GET("/tasks/:task_id/file", api.DownloadFileHandler)
		v1.POST("/tasks/export", api.ExportMediaHandler)

		v1.POST("/resources/download", api.DownloadResourceHandler)
		v1.GET("/resources/:type/:id/status", api.ResourceStatusHandler)
		v1.POST("/resources/:type/:id/retry", api.RetryResourceHandler)
		v1.DELETE("/resources/namespace/:namespace", api.PurgeNamespaceHandler)

		v1.GET("/profiles", api.ListProfilesHandler)
		v1.POST("/profiles", api.UpdateProfileHandler)
		v1.GET("/profiles/presets", api.PresetsInfoHandler)
		v1.POST("/profiles/presets/refresh", api.RefreshPresetsHandler)

		v1.POST("/optimize", api.OptimizeHandler)
		v1.GET("/usage/summary", api.UsageSummaryHandler)
	}

	// 静态资源访问（与数据库中的 storage/... 路径对应）
	r.Static("/storage", config.GlobalConfig.Storage.LocalDir)

	// 8. 优雅启动与关闭
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.GlobalConfig.Server.Port),
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("启动服务失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭服务...")

	task.GlobalPool.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("服务器强制关闭:", err)
	}

	log.Println("服务已安全退出")
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// resourceRoot 资源落盘根目录，settings 表里的值优先于配置文件
func resourceRoot() string {
	if v := model.GetSetting("resource_root"); v != "" {
		return v
	}
	return filepath.Join(config.GlobalConfig.Storage.LocalDir, "resources")
}

// saveTaskMedia 把生成结果落盘：图像走缩略图流程，音频直接写文件
func saveTaskMedia(record *model.GenerationTask, result *adapter.GenerationResult) (string, string, error) {
	switch {
	case len(result.Images) > 0:
		content, err := result.Images[0].Bytes()
		if err != nil {
			return "", "", err
		}
		if content == nil {
			// 只有远端 URL 的图像交给资源下载接口按需落盘
			return "", "", nil
		}
		saved, err := storage.GlobalStorage.SaveImage(
			filepath.Join("images", record.TaskID+".png"), bytes.NewReader(content))
		if err != nil {
			return "", "", err
		}
		if saved.RemoteURL != "" && record.MediaURL == "" {
			record.MediaURL = saved.RemoteURL
		}
		return saved.LocalPath, saved.ThumbLocalPath, nil

	case len(result.AudioData) > 0:
		saved, err := storage.GlobalStorage.Save(
			filepath.Join("audio", record.TaskID+".mp3"), bytes.NewReader(result.AudioData))
		if err != nil {
			return "", "", err
		}
		return saved.LocalPath, "", nil

	case result.AudioBase64 != "":
		content, err := adapter.DecodeAudioBase64(result.AudioBase64)
		if err != nil {
			return "", "", err
		}
		saved, err := storage.GlobalStorage.Save(
			filepath.Join("audio", record.TaskID+".mp3"), bytes.NewReader(content))
		if err != nil {
			return "", "", err
		}
		return saved.LocalPath, "", nil
	}

	// 文本结果或仅有远端 URL 的视频不在这里落盘
	return "", "", nil
}
