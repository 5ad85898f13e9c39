package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// MaxRedirects 下载允许的最大重定向跳数
const MaxRedirects = 5

const copyChunkSize = 32 * 1024

// TransferError 下载传输失败（HTTP 状态异常、重定向超限、写盘失败等）
type TransferError struct {
	URL    string
	Reason string
	Cause  error
}

func (e *TransferError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("下载 %s 失败: %s: %v", e.URL, e.Reason, e.Cause)
	}
	return fmt.Sprintf("下载 %s 失败: %s", e.URL, e.Reason)
}

func (e *TransferError) Unwrap() error { return e.Cause }

// ProgressFunc 下载进度回调。total 未知时为 -1。
type ProgressFunc func(downloaded, total int64)

// newTransferClient 构造带重定向上限的下载客户端。maxRedirects <= 0 时使用默认值。
func newTransferClient(base *http.Client, maxRedirects int) *http.Client {
	if maxRedirects <= 0 {
		maxRedirects = MaxRedirects
	}
	client := &http.Client{}
	if base != nil {
		client.Transport = base.Transport
		client.Timeout = base.Timeout
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("重定向超过 %d 次", maxRedirects)
		}
		return nil
	}
	return client
}

// transfer 把远端资源流式落盘。失败时删除不完整的文件。
func transfer(ctx context.Context, client *http.Client, remoteURL, destPath string, onProgress ProgressFunc) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return 0, &TransferError{URL: remoteURL, Reason: "构造请求失败", Cause: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, &TransferError{URL: remoteURL, Reason: "请求失败", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &TransferError{URL: remoteURL, Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, &TransferError{URL: remoteURL, Reason: "创建目录失败", Cause: err}
	}

	file, err := os.Create(destPath)
	if err != nil {
		return 0, &TransferError{URL: remoteURL, Reason: "创建文件失败", Cause: err}
	}

	total := resp.ContentLength
	var downloaded int64
	buf := make([]byte, copyChunkSize)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				file.Close()
				os.Remove(destPath)
				return 0, &TransferError{URL: remoteURL, Reason: "写入文件失败", Cause: writeErr}
			}
			downloaded += int64(n)
			if onProgress != nil {
				onProgress(downloaded, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			file.Close()
			os.Remove(destPath)
			return 0, &TransferError{URL: remoteURL, Reason: "读取响应失败", Cause: readErr}
		}
	}

	if err := file.Close(); err != nil {
		os.Remove(destPath)
		return 0, &TransferError{URL: remoteURL, Reason: "关闭文件失败", Cause: err}
	}

	// Content-Length 已知时校验完整性
	if total > 0 && downloaded != total {
		os.Remove(destPath)
		return 0, &TransferError{URL: remoteURL, Reason: fmt.Sprintf("大小不符: 已下载 %d, 期望 %d", downloaded, total)}
	}

	return downloaded, nil
}
