package model

import (
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB 初始化 SQLite 数据库
func InitDB(dbPath string) {
	var err error
	DB, err = gorm.Open(sqlite.Open(dbPath+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("无法连接数据库: %v", err)
	}

	// 设置连接池参数
	sqlDB, err := DB.DB()
	if err == nil {
		sqlDB.SetMaxOpenConns(1) // SQLite 写操作建议单连接
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	// 自动迁移表结构
	err = DB.AutoMigrate(
		&ProviderProfileRecord{},
		&GenerationTask{},
		&ResourceDownload{},
		&UsageLog{},
		&Setting{},
	)
	if err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	log.Println("数据库初始化成功")
}

// GetSetting 读取设置项，不存在时返回空串
func GetSetting(key string) string {
	if DB == nil {
		return ""
	}
	var s Setting
	if err := DB.Where("key = ?", key).First(&s).Error; err != nil {
		return ""
	}
	return s.Value
}

// SetSetting 写入设置项
func SetSetting(key, value string) error {
	if DB == nil {
		return nil
	}
	s := Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	return DB.Save(&s).Error
}
