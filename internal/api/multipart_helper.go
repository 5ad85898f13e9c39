package api

import (
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mazrean/formstream"
	ginform "github.com/mazrean/formstream/gin"

	"genmedia-service/internal/adapter"
	"genmedia-service/internal/profile"
)

// MultipartGenerateRequest 图生图请求解析后的数据
type MultipartGenerateRequest struct {
	Provider    string
	Prompt      string
	AspectRatio string
	Quality     string
	Count       int
	RefImages   [][]byte
}

// ParseGenerateRequestFromMultipart 使用 formstream 流式解析图生图请求
func ParseGenerateRequestFromMultipart(c *gin.Context) (*MultipartGenerateRequest, error) {
	req := &MultipartGenerateRequest{
		Count: 1,
	}

	p, err := ginform.NewParser(c)
	if err != nil {
		return nil, fmt.Errorf("创建解析器失败: %w", err)
	}

	stringField := func(dst *string) func(io.Reader, formstream.Header) error {
		return func(reader io.Reader, header formstream.Header) error {
			data, err := io.ReadAll(reader)
			if err != nil {
				return err
			}
			*dst = string(data)
			return nil
		}
	}

	p.Parser.Register("provider", stringField(&req.Provider))
	p.Parser.Register("prompt", stringField(&req.Prompt))
	p.Parser.Register("aspect_ratio", stringField(&req.AspectRatio))
	p.Parser.Register("quality", stringField(&req.Quality))
	p.Parser.Register("count", func(reader io.Reader, header formstream.Header) error {
		data, err := io.ReadAll(reader)
		if err != nil {
			return err
		}
		if count, err := strconv.Atoi(string(data)); err == nil {
			req.Count = count
		}
		return nil
	})
	p.Parser.Register("reference_images", func(reader io.Reader, header formstream.Header) error {
		content, err := io.ReadAll(reader)
		if err != nil {
			return fmt.Errorf("读取参考图失败: %w", err)
		}
		req.RefImages = append(req.RefImages, content)
		return nil
	})

	if err := p.Parse(); err != nil {
		// formstream 对字段顺序有要求，解析失败回退到标准库
		log.Printf("[回退] formstream 解析失败: %v, 尝试使用标准库", err)
		return parseWithStandardLibrary(c)
	}

	return req, nil
}

// parseWithStandardLibrary 标准库回退解析逻辑
func parseWithStandardLibrary(c *gin.Context) (*MultipartGenerateRequest, error) {
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("解析表单失败: %w", err)
	}

	req := &MultipartGenerateRequest{
		Provider:    c.PostForm("provider"),
		Prompt:      c.PostForm("prompt"),
		AspectRatio: c.PostForm("aspect_ratio"),
		Quality:     c.PostForm("quality"),
		Count:       1,
	}
	if countStr := c.PostForm("count"); countStr != "" {
		if count, err := strconv.Atoi(countStr); err == nil {
			req.Count = count
		}
	}

	form, err := c.MultipartForm()
	if err == nil && form.File != nil {
		for _, fileHeader := range form.File["reference_images"] {
			file, err := fileHeader.Open()
			if err != nil {
				continue
			}
			content, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				continue
			}
			req.RefImages = append(req.RefImages, content)
		}
	}

	return req, nil
}

// GenerateWithImagesHandler 图生图：multipart 上传参考图并创建图像任务
func GenerateWithImagesHandler(c *gin.Context) {
	req, err := ParseGenerateRequestFromMultipart(c)
	if err != nil {
		Error(c, http.StatusBadRequest, 400, "解析请求失败: "+err.Error())
		return
	}
	if req.Prompt == "" {
		Error(c, http.StatusBadRequest, 400, "prompt 不能为空")
		return
	}
	if req.Provider == "" {
		Error(c, http.StatusBadRequest, 400, "provider 不能为空")
		return
	}
	log.Printf("[API] 图生图请求: Provider=%s, Images=%d", req.Provider, len(req.RefImages))

	if _, ok := profile.Lookup(profile.ModalityImage, req.Provider); !ok {
		Error(c, http.StatusBadRequest, 400, "未找到已启用的 Provider: image/"+req.Provider)
		return
	}

	imageReq := &adapter.ImageRequest{
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		Quality:     req.Quality,
		N:           req.Count,
	}
	for _, content := range req.RefImages {
		imageReq.ReferenceImages = append(imageReq.ReferenceImages, base64.StdEncoding.EncodeToString(content))
	}

	submitTask(c, &GenerateRequest{
		Modality: string(profile.ModalityImage),
		Provider: req.Provider,
		Prompt:   req.Prompt,
	}, imageReq)
}
