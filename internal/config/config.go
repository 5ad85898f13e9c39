package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type ProviderEntry struct {
	APIKey  string                 `mapstructure:"api_key"`
	APIBase string                 `mapstructure:"api_base"`
	Model   string                 `mapstructure:"model"`
	Enabled bool                   `mapstructure:"enabled"`
	Profile map[string]interface{} `mapstructure:"profile"` // Profile 覆盖项
}

type Config struct {
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Storage struct {
		LocalDir string `mapstructure:"local_dir"`
		OSS      struct {
			Enabled         bool   `mapstructure:"enabled"`
			Endpoint        string `mapstructure:"endpoint"`
			AccessKeyID     string `mapstructure:"access_key_id"`
			AccessKeySecret string `mapstructure:"access_key_secret"`
			BucketName      string `mapstructure:"bucket_name"`
			Domain          string `mapstructure:"domain"`
		} `mapstructure:"oss"`
	} `mapstructure:"storage"`
	Download struct {
		MaxRedirects int `mapstructure:"max_redirects"`
	} `mapstructure:"download"`
	Worker struct {
		Count     int `mapstructure:"count"`
		QueueSize int `mapstructure:"queue_size"`
	} `mapstructure:"worker"`
	// Providers 按生成类型分组: providers.text.openai、providers.video.kling ...
	Providers map[string]map[string]ProviderEntry `mapstructure:"providers"`
	Prompts   struct {
		OptimizeSystem string `mapstructure:"optimize_system"`
	} `mapstructure:"prompts"`
	Profiles struct {
		RemoteURL           string `mapstructure:"remote_url"`
		FetchTimeoutSeconds int    `mapstructure:"fetch_timeout_seconds"`
	} `mapstructure:"profiles"`
}

var GlobalConfig Config

const DefaultOptimizeSystemPrompt = `你是一个提示词改写助手。将用户输入的生成描述等价改写为更清晰、更具体、更适合生成模型理解的表达。
语义必须等价：不新增用户未提及的风格、技术参数或具体元素；输出语言与输入一致；只输出改写后的正文，不加任何前缀或解释。`

func InitConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")

	// 设置默认值
	viper.SetDefault("database.path", "data.db")
	viper.SetDefault("storage.local_dir", "storage")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("download.max_redirects", 5)
	viper.SetDefault("worker.count", 6)
	viper.SetDefault("worker.queue_size", 100)
	viper.SetDefault("prompts.optimize_system", DefaultOptimizeSystemPrompt)
	viper.SetDefault("profiles.fetch_timeout_seconds", 4)

	// 支持环境变量
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("未找到配置文件，将使用环境变量或默认值: %v", err)
	}

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("解析配置失败: %v", err)
	}
}
