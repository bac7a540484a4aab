package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

var fetchClient = &http.Client{Timeout: 10 * time.Minute}

// UploadFromURL 拉取远端文件并转存到存储
// 生成服务返回的是临时 URL，任务处理器用这个方法把结果转为永久地址
func UploadFromURL(ctx context.Context, s Storage, key, srcURL, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := fetchClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch source: status code %d", resp.StatusCode)
	}

	if contentType == "" {
		contentType = resp.Header.Get("Content-Type")
	}

	url, err := s.Upload(ctx, key, resp.Body, contentType)
	if err != nil {
		return "", fmt.Errorf("upload to storage: %w", err)
	}
	return url, nil
}
