package download

import (
	"errors"

	"gorm.io/gorm"

	"genmedia-service/internal/model"
)

// Store 下载记录的持久化接口
type Store interface {
	Get(resourceType, resourceID string) (*model.ResourceDownload, error)
	Save(record *model.ResourceDownload) error
	ListByNamespace(namespace string) ([]model.ResourceDownload, error)
	DeleteByNamespace(namespace string) error
}

// GormStore 基于 gorm 的下载记录存储
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(resourceType, resourceID string) (*model.ResourceDownload, error) {
	var record model.ResourceDownload
	err := s.db.Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *GormStore) Save(record *model.ResourceDownload) error {
	return s.db.Save(record).Error
}

func (s *GormStore) ListByNamespace(namespace string) ([]model.ResourceDownload, error) {
	var records []model.ResourceDownload
	err := s.db.Where("namespace = ?", namespace).Find(&records).Error
	return records, err
}

func (s *GormStore) DeleteByNamespace(namespace string) error {
	return s.db.Where("namespace = ?", namespace).Delete(&model.ResourceDownload{}).Error
}
