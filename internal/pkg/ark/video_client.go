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

// VideoClient Ark 视频生成客户端
// 调用火山引擎 Ark API 生成视频（参考图+提示词 → 视频）
// 视频生成是异步任务：先 tasks.create 提交，拿到 task_id 后轮询 tasks.get
type VideoClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client

	pollInterval time.Duration
	maxWait      time.Duration
}

// NewVideoClient 创建 Ark 视频生成客户端
func NewVideoClient(cfg *config.ArkConfig) (*VideoClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ark api_key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.VideoModel
	if model == "" {
		model = "doubao-seedance-1-0-lite-i2v-250428" // 默认图生视频模型
	}

	return &VideoClient{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		model:        model,
		httpClient:   &http.Client{Timeout: 10 * time.Minute},
		pollInterval: 5 * time.Second,
		maxWait:      30 * time.Minute,
	}, nil
}

// VideoRequest 视频生成请求
type VideoRequest struct {
	Prompt            string // 视频动态描述提示词
	ReferenceImageURL string // 首帧参考图 URL（必需）
	Ratio             string // 画幅比例，如 "9:16"，默认 9:16
	Resolution        string // 分辨率档位，如 "720p"
	DurationSeconds   int    // 时长（秒），最大 12
}

// VideoResult 视频生成结果
// URL 是 Ark 返回的临时地址，调用方需要转存
type VideoResult struct {
	URL  string
	Seed int64
}

// GenerateVideo 生成视频（同步等待，内部轮询异步任务直到完成）
func (c *VideoClient) GenerateVideo(ctx context.Context, req *VideoRequest) (*VideoResult, error) {
	if req.ReferenceImageURL == "" {
		return nil, fmt.Errorf("reference image URL is required")
	}

	duration := req.DurationSeconds
	if duration <= 0 {
		duration = 5
	}
	if duration > 12 {
		log.Warn().Int("requested", duration).Msg("视频时长超过 Ark 上限，截断为 12 秒")
		duration = 12
	}

	ratio := req.Ratio
	if ratio == "" {
		ratio = "9:16"
	}

	taskID, err := c.createTask(ctx, req.Prompt, req.ReferenceImageURL, ratio, req.Resolution, duration)
	if err != nil {
		return nil, fmt.Errorf("create video task: %w", err)
	}

	log.Info().Str("task_id", taskID).Int("duration", duration).Msg("视频生成任务提交成功")

	startTime := time.Now()
	for {
		if time.Since(startTime) > c.maxWait {
			return nil, fmt.Errorf("video generation timeout after %v", c.maxWait)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		status, result, err := c.getTask(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("get task status: %w", err)
		}

		switch status {
		case "succeeded", "completed":
			if result.URL == "" {
				return nil, fmt.Errorf("video task succeeded but URL is empty: task_id=%s", taskID)
			}
			log.Info().Str("task_id", taskID).Msg("视频生成成功")
			return result, nil
		case "failed", "cancelled":
			return nil, fmt.Errorf("video generation task %s: task_id=%s", status, taskID)
		default:
			log.Debug().Str("task_id", taskID).Str("status", status).Msg("视频生成中，继续等待")
		}
	}
}

// createTask 提交视频生成任务
// API: POST {base}/contents/generations/tasks
func (c *VideoClient) createTask(ctx context.Context, prompt, imageURL, ratio, resolution string, duration int) (string, error) {
	body := map[string]any{
		"model": c.model,
		"content": []map[string]any{
			{"type": "text", "text": prompt},
			{"type": "image_url", "image_url": map[string]any{"url": imageURL}},
		},
		"ratio":     ratio,
		"duration":  duration,
		"watermark": false,
	}
	if resolution != "" {
		body["resolution"] = resolution
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request body: %w", err)
	}

	apiURL := fmt.Sprintf("%s/contents/generations/tasks", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		log.Error().
			Int("status_code", resp.StatusCode).
			Str("model", c.model).
			Str("response_body", string(respBody)).
			Msg("创建视频生成任务失败")
		return "", fmt.Errorf("ark video API failed: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.ID == "" {
		return "", fmt.Errorf("task ID is empty in response")
	}
	return apiResp.ID, nil
}

// getTask 查询视频生成任务状态
// API: GET {base}/contents/generations/tasks/{task_id}
func (c *VideoClient) getTask(ctx context.Context, taskID string) (string, *VideoResult, error) {
	apiURL := fmt.Sprintf("%s/contents/generations/tasks/%s", c.baseURL, taskID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", nil, fmt.Errorf("ark task query failed: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Status  string `json:"status"`
		Seed    int64  `json:"seed,omitempty"`
		Content struct {
			VideoURL string `json:"video_url"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", nil, fmt.Errorf("decode response: %w", err)
	}

	return apiResp.Status, &VideoResult{URL: apiResp.Content.VideoURL, Seed: apiResp.Seed}, nil
}
