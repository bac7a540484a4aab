package ark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"playlet/internal/config"
)

const defaultBaseURL = "https://ark.cn-beijing.volces.com/api/v3"

// ImageClient Ark 图片生成客户端
// 调用火山引擎 Ark API 的 images/generations 接口
// 同一个接口同时支持文生图和图生图：请求中带 image 字段即为图生图
type ImageClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewImageClient 创建 Ark 图片生成客户端
func NewImageClient(cfg *config.ArkConfig) (*ImageClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ark api_key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.ImageModel
	if model == "" {
		model = "doubao-seedream-3-0-t2i-250415" // 默认图片生成模型
	}

	return &ImageClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 3 * time.Minute},
	}, nil
}

// ImageRequest 图片生成请求
type ImageRequest struct {
	Prompt            string // 提示词（必需）
	ReferenceImageURL string // 参考图 URL，非空时走图生图
	Size              string // 分辨率，如 "720x1280"，默认 720x1280
}

// ImageResult 图片生成结果
// URL 是 Ark 返回的临时地址，有效期有限，调用方需要转存
type ImageResult struct {
	URL  string
	Seed int64
}

// GenerateImage 生成图片（同步接口）
func (c *ImageClient) GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	size := req.Size
	if size == "" {
		size = "720x1280"
	}

	body := map[string]any{
		"model":           c.model,
		"prompt":          req.Prompt,
		"size":            size,
		"response_format": "url",
		"watermark":       false,
	}
	if req.ReferenceImageURL != "" {
		body["image"] = req.ReferenceImageURL
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	apiURL := fmt.Sprintf("%s/images/generations", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		log.Error().
			Int("status_code", resp.StatusCode).
			Str("model", c.model).
			Str("response_body", string(respBody)).
			Msg("Ark 图片生成请求失败")
		return nil, fmt.Errorf("ark image API failed: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Data []struct {
			URL  string `json:"url"`
			Seed int64  `json:"seed,omitempty"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Data) == 0 || apiResp.Data[0].URL == "" {
		return nil, fmt.Errorf("no image URL in response")
	}

	first := apiResp.Data[0]
	log.Info().
		Str("model", c.model).
		Bool("image_to_image", req.ReferenceImageURL != "").
		Int64("seed", first.Seed).
		Msg("Ark 图片生成成功")

	return &ImageResult{URL: first.URL, Seed: first.Seed}, nil
}
