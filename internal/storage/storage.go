package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/disintegration/imaging"
)

// SavedMedia 一次产物落盘的结果
type SavedMedia struct {
	LocalPath      string
	RemoteURL      string
	ThumbLocalPath string
	ThumbRemoteURL string
	Width          int
	Height         int
}

// Storage 生成产物的存储接口。图像产物额外生成缩略图，
// 音视频产物只做原样落盘。
type Storage interface {
	Save(name string, reader io.Reader) (*SavedMedia, error)
	SaveImage(name string, reader io.Reader) (*SavedMedia, error)
	Delete(name string) error
}

// LocalStorage 本地目录存储
type LocalStorage struct {
	BaseDir string
}

func (l *LocalStorage) Save(name string, reader io.Reader) (*SavedMedia, error) {
	path := filepath.Join(l.BaseDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("创建本地文件失败: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return nil, fmt.Errorf("写入本地文件失败: %w", err)
	}

	return &SavedMedia{LocalPath: path}, nil
}

func (l *LocalStorage) SaveImage(name string, reader io.Reader) (*SavedMedia, error) {
	saved, err := l.Save(name, reader)
	if err != nil {
		return nil, err
	}

	srcImg, err := imaging.Open(saved.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("打开原图生成缩略图失败: %w", err)
	}
	saved.Width = srcImg.Bounds().Dx()
	saved.Height = srcImg.Bounds().Dy()

	// 256x256 等比例缩略图
	thumbPath := filepath.Join(l.BaseDir, thumbName(name))
	dstImg := imaging.Thumbnail(srcImg, 256, 256, imaging.Lanczos)
	if err := imaging.Save(dstImg, thumbPath); err != nil {
		return nil, fmt.Errorf("保存缩略图失败: %w", err)
	}
	saved.ThumbLocalPath = thumbPath

	return saved, nil
}

func (l *LocalStorage) Delete(name string) error {
	err := os.Remove(filepath.Join(l.BaseDir, name))
	_ = os.Remove(filepath.Join(l.BaseDir, thumbName(name)))
	return err
}

// OSSStorage 阿里云 OSS 镜像存储
type OSSStorage struct {
	Bucket *oss.Bucket
	Domain string
}

func (s *OSSStorage) Save(name string, reader io.Reader) (*SavedMedia, error) {
	if err := s.Bucket.PutObject(name, reader); err != nil {
		return nil, fmt.Errorf("OSS 上传失败: %w", err)
	}
	return &SavedMedia{RemoteURL: fmt.Sprintf("https://%s/%s", s.Domain, name)}, nil
}

func (s *OSSStorage) SaveImage(name string, reader io.Reader) (*SavedMedia, error) {
	// reader 只能读一次，先读进内存再分别上传原图与缩略图
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	saved, err := s.Save(name, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return saved, fmt.Errorf("解码图片失败: %w", err)
	}
	saved.Width = img.Bounds().Dx()
	saved.Height = img.Bounds().Dy()

	dstImg := imaging.Thumbnail(img, 256, 256, imaging.Lanczos)
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, dstImg, imaging.JPEG); err != nil {
		return saved, fmt.Errorf("编码缩略图失败: %w", err)
	}

	thumb, err := s.Save(thumbName(name), buf)
	if err != nil {
		return saved, fmt.Errorf("上传缩略图到 OSS 失败: %w", err)
	}
	saved.ThumbRemoteURL = thumb.RemoteURL

	return saved, nil
}

func (s *OSSStorage) Delete(name string) error {
	err := s.Bucket.DeleteObject(name)
	_ = s.Bucket.DeleteObject(thumbName(name))
	return err
}

// CompositeStorage 本地落盘 + 可选 OSS 镜像。OSS 上传失败不影响本地结果。
type CompositeStorage struct {
	Local *LocalStorage
	OSS   *OSSStorage
}

func (c *CompositeStorage) Save(name string, reader io.Reader) (*SavedMedia, error) {
	saved, err := c.Local.Save(name, reader)
	if err != nil {
		return nil, err
	}

	if c.OSS != nil {
		if file, openErr := os.Open(saved.LocalPath); openErr == nil {
			if remote, ossErr := c.OSS.Save(name, file); ossErr == nil {
				saved.RemoteURL = remote.RemoteURL
			}
			file.Close()
		}
	}
	return saved, nil
}

func (c *CompositeStorage) SaveImage(name string, reader io.Reader) (*SavedMedia, error) {
	saved, err := c.Local.SaveImage(name, reader)
	if err != nil {
		return nil, err
	}

	if c.OSS != nil {
		if file, openErr := os.Open(saved.LocalPath); openErr == nil {
			if remote, ossErr := c.OSS.Save(name, file); ossErr == nil {
				saved.RemoteURL = remote.RemoteURL
			}
			file.Close()
		}
		if file, openErr := os.Open(saved.ThumbLocalPath); openErr == nil {
			if remote, ossErr := c.OSS.Save(thumbName(name), file); ossErr == nil {
				saved.ThumbRemoteURL = remote.RemoteURL
			}
			file.Close()
		}
	}
	return saved, nil
}

func (c *CompositeStorage) Delete(name string) error {
	var errs []string
	if err := c.Local.Delete(name); err != nil {
		errs = append(errs, fmt.Sprintf("本地删除失败: %v", err))
	}
	if c.OSS != nil {
		if err := c.OSS.Delete(name); err != nil {
			errs = append(errs, fmt.Sprintf("OSS 删除失败: %v", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("删除过程出错: %s", strings.Join(errs, "; "))
	}
	return nil
}

func thumbName(name string) string {
	dir, base := filepath.Split(name)
	return dir + "thumb_" + base
}

var GlobalStorage Storage

// OSSConfig 阿里云 OSS 配置
type OSSConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	BucketName      string
	Domain          string
}

// InitStorage 初始化存储组件。OSS 配置缺失或初始化失败时退化为纯本地。
func InitStorage(localDir string, ossConfig *OSSConfig) {
	local := &LocalStorage{BaseDir: localDir}

	var ossStorage *OSSStorage
	if ossConfig != nil && ossConfig.Endpoint != "" {
		client, err := oss.New(ossConfig.Endpoint, ossConfig.AccessKeyID, ossConfig.AccessKeySecret)
		if err == nil {
			bucket, err := client.Bucket(ossConfig.BucketName)
			if err == nil {
				ossStorage = &OSSStorage{
					Bucket: bucket,
					Domain: ossConfig.Domain,
				}
			}
		}
	}

	GlobalStorage = &CompositeStorage{
		Local: local,
		OSS:   ossStorage,
	}
}
