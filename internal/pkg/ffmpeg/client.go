package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"playlet/internal/pkg/id"
)

// Client FFmpeg 客户端
// 用于封装 FFmpeg/FFprobe 命令调用（仅用于视频封面帧提取和时长探测，
// 视频本体的生成和拼接由外部服务完成）
type Client struct {
	ffmpegPath  string // FFmpeg 可执行文件路径（默认: ffmpeg）
	ffprobePath string // FFprobe 可执行文件路径（默认: ffprobe）
	httpClient  *http.Client
}

// NewClient 创建 FFmpeg 客户端
func NewClient() *Client {
	ffmpegPath := os.Getenv("FFMPEG_PATH")
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	ffprobePath := os.Getenv("FFPROBE_PATH")
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	return &Client{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
	}
}

// ExtractThumbnail 从视频 URL 提取封面帧（首秒），返回 JPEG 数据
// 先将视频下载到临时文件再处理，避免 ffmpeg 直连远端地址的兼容性问题
func (c *Client) ExtractThumbnail(ctx context.Context, videoURL string) ([]byte, error) {
	tmpVideoPath, err := c.downloadToTemp(ctx, videoURL)
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}
	defer os.Remove(tmpVideoPath)

	tmpThumbPath := filepath.Join(os.TempDir(), fmt.Sprintf("thumb_%s.jpg", id.New()))
	defer os.Remove(tmpThumbPath)

	// ffmpeg -y -ss 1 -i video.mp4 -frames:v 1 -q:v 3 thumb.jpg
	cmd := exec.CommandContext(ctx, c.ffmpegPath,
		"-y",
		"-ss", "1",
		"-i", tmpVideoPath,
		"-frames:v", "1",
		"-q:v", "3",
		tmpThumbPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg extract frame failed: %w, stderr: %s", err, stderr.String())
	}

	data, err := os.ReadFile(tmpThumbPath)
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	return data, nil
}

// ProbeDuration 探测视频时长（毫秒）
func (c *Client) ProbeDuration(ctx context.Context, videoURL string) (int64, error) {
	tmpVideoPath, err := c.downloadToTemp(ctx, videoURL)
	if err != nil {
		return 0, fmt.Errorf("download video: %w", err)
	}
	defer os.Remove(tmpVideoPath)

	// ffprobe -v error -show_entries format=duration -of json video.mp4
	cmd := exec.CommandContext(ctx, c.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		tmpVideoPath,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}

	seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", probe.Format.Duration, err)
	}
	return int64(seconds * 1000), nil
}

// downloadToTemp 将远端视频下载到临时文件，返回文件路径
func (c *Client) downloadToTemp(ctx context.Context, videoURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch video: status code %d", resp.StatusCode)
	}

	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("video_%s.mp4", id.New()))
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("copy video data: %w", err)
	}
	f.Close()

	return tmpPath, nil
}
