package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"playlet/internal/model/drama"
	jobmodel "playlet/internal/model/job"
)

// processFinalExport 成片导出
// 只做编单：按调用方给定的ID顺序（不是创建时间）汇总已完成的视频，
// 累加时长并产出有序清单；拼接由下游另行处理
func (s *jobService) processFinalExport(ctx context.Context, j *jobmodel.Job) (string, error) {
	var in ExportInput
	if err := json.Unmarshal([]byte(j.InputData), &in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(in.VideoIDs) > MaxVideosPerExport {
		return "", fmt.Errorf("%w: 成片清单最多 %d 个视频", ErrInvalidInput, MaxVideosPerExport)
	}
	if err := s.verifyProjectOwnership(ctx, in.ProjectID, j.UserID); err != nil {
		return "", err
	}
	s.reportProgress(ctx, j.ID, 20, "正在汇总视频")

	assets, err := s.assetRepo.FindByIDs(ctx, in.VideoIDs)
	if err != nil {
		return "", fmt.Errorf("查询视频资产: %w", err)
	}
	byID := make(map[string]*drama.VideoAsset, len(assets))
	for _, a := range assets {
		if a.ProjectID != in.ProjectID {
			return "", ErrUnauthorized
		}
		byID[a.ID] = a
	}
	s.reportProgress(ctx, j.ID, 60, "正在生成成片清单")

	result := ExportResult{}
	for _, videoID := range in.VideoIDs {
		asset, ok := byID[videoID]
		if !ok {
			log.Warn().Str("job_id", j.ID).Str("video_id", videoID).Msg("成片清单引用的视频不存在，跳过")
			continue
		}
		if asset.Status != drama.GenStatusCompleted || asset.VideoURL == "" {
			log.Warn().Str("job_id", j.ID).Str("video_id", videoID).Msg("视频尚未生成完成，跳过")
			continue
		}
		result.Clips = append(result.Clips, ExportClip{
			URL:        asset.VideoURL,
			DurationMS: asset.DurationMS,
		})
		result.TotalDurationMS += asset.DurationMS
	}
	if len(result.Clips) == 0 {
		return "", fmt.Errorf("%w: 没有可用的已完成视频", ErrMissingPrerequisite)
	}
	result.Count = len(result.Clips)

	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("序列化结果: %w", err)
	}
	return string(data), nil
}
