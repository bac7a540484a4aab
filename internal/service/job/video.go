package job

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"

	creditmodel "playlet/internal/model/credit"
	"playlet/internal/model/drama"
	jobmodel "playlet/internal/model/job"
	"playlet/internal/pkg/ark"
	"playlet/internal/pkg/id"
)

// processVideoGeneration 单资产视频生成
// 生成参数从资产行上已存的 generation_config 加载，不从请求重新推导，
// 同一资产的重试因此是确定性的
func (s *jobService) processVideoGeneration(ctx context.Context, j *jobmodel.Job) (string, error) {
	var in VideoGenerationInput
	if err := json.Unmarshal([]byte(j.InputData), &in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.verifyProjectOwnership(ctx, in.ProjectID, j.UserID); err != nil {
		return "", err
	}

	asset, err := s.assetRepo.FindByID(ctx, in.AssetID)
	if err != nil {
		return "", fmt.Errorf("%w: 视频资产不存在", ErrInvalidInput)
	}
	if asset.ProjectID != in.ProjectID {
		return "", ErrUnauthorized
	}

	result, err := s.runVideoPipeline(ctx, j, asset)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("序列化结果: %w", err)
	}
	return string(data), nil
}

// processShotVideoGeneration 分镜视频生成
// 先用分镜上的提示词和首帧图创建新版本占位资产，再走统一的生成流程
// 新版本不自动激活，由用户确认后切换
func (s *jobService) processShotVideoGeneration(ctx context.Context, j *jobmodel.Job) (string, error) {
	var in VideoGenerationInput
	if err := json.Unmarshal([]byte(j.InputData), &in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.verifyProjectOwnership(ctx, in.ProjectID, j.UserID); err != nil {
		return "", err
	}

	shot, err := s.shotRepo.FindByID(ctx, in.ShotID)
	if err != nil {
		return "", fmt.Errorf("%w: 分镜不存在", ErrInvalidInput)
	}
	if shot.ProjectID != in.ProjectID {
		return "", ErrUnauthorized
	}
	if strings.TrimSpace(shot.VideoPrompt) == "" {
		return "", fmt.Errorf("%w: 分镜缺少视频提示词", ErrInvalidInput)
	}
	if shot.ImageURL == "" {
		return "", fmt.Errorf("%w: 分镜还没有首帧图，请先生成分镜图片", ErrMissingPrerequisite)
	}

	asset := &drama.VideoAsset{}
	if in.AssetID != "" {
		// 重新生成：复用已有资产行上的参数
		asset, err = s.assetRepo.FindByID(ctx, in.AssetID)
		if err != nil {
			return "", fmt.Errorf("%w: 视频资产不存在", ErrInvalidInput)
		}
		if asset.ShotID != shot.ID {
			return "", ErrUnauthorized
		}
	} else {
		version, err := s.assetRepo.NextVersion(ctx, shot.ID)
		if err != nil {
			return "", fmt.Errorf("分配版本号: %w", err)
		}
		asset = &drama.VideoAsset{
			ID:        id.New(),
			ProjectID: shot.ProjectID,
			ShotID:    shot.ID,
			Version:   version,
			IsActive:  false,
			Status:    drama.GenStatusPending,
			GenerationConfig: &drama.GenerationConfig{
				Prompt:            shot.VideoPrompt,
				ReferenceImageURL: shot.ImageURL,
				DurationSeconds:   defaultVideoDurationSeconds,
			},
		}
		if err := s.assetRepo.Create(ctx, asset); err != nil {
			return "", fmt.Errorf("创建视频资产: %w", err)
		}
	}

	result, err := s.runVideoPipeline(ctx, j, asset)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("序列化结果: %w", err)
	}
	return string(data), nil
}

// processBatchVideo 视频批量生成
// 每个资产独立扣费和补偿，单个失败不打断批次；全部失败时任务整体失败
func (s *jobService) processBatchVideo(ctx context.Context, j *jobmodel.Job) (string, error) {
	var in BatchVideoInput
	if err := json.Unmarshal([]byte(j.InputData), &in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(in.AssetIDs) > MaxAssetsPerBatch {
		return "", fmt.Errorf("%w: 批量视频最多 %d 个资产", ErrInvalidInput, MaxAssetsPerBatch)
	}
	if err := s.verifyProjectOwnership(ctx, in.ProjectID, j.UserID); err != nil {
		return "", err
	}

	result := BatchVideoResult{}
	for i, assetID := range in.AssetIDs {
		progress := 5 + i*90/len(in.AssetIDs)
		s.reportProgress(ctx, j.ID, progress, fmt.Sprintf("正在生成第 %d/%d 个视频", i+1, len(in.AssetIDs)))

		asset, err := s.assetRepo.FindByID(ctx, assetID)
		if err != nil || asset.ProjectID != in.ProjectID {
			result.Failed = append(result.Failed, assetID)
			continue
		}
		if _, err := s.runVideoPipeline(ctx, j, asset); err != nil {
			log.Warn().Err(err).Str("job_id", j.ID).Str("asset_id", assetID).Msg("批量视频中单个资产生成失败")
			result.Failed = append(result.Failed, assetID)
			continue
		}
		result.Succeeded = append(result.Succeeded, assetID)
		if asset.GenerationConfig != nil {
			// 计费口径与 runVideoPipeline 的兜底时长保持一致
			seconds := asset.GenerationConfig.DurationSeconds
			if seconds <= 0 {
				seconds = defaultVideoDurationSeconds
			}
			result.TotalCost += s.ledger.VideoCost(seconds)
		}
	}
	if len(result.Succeeded) == 0 {
		return "", fmt.Errorf("%w: 批量视频生成全部失败", ErrProviderFailure)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("序列化结果: %w", err)
	}
	return string(data), nil
}

const defaultVideoDurationSeconds = 5

// runVideoPipeline 单个视频资产的生成流程
// 扣费在外部调用前；生成失败或转存失败精确退款一次；
// 封面提取失败只记日志（视频本身可用，不退款也不失败）；
// 资产行最后一次性写入，失败路径不会留下半更新的行
func (s *jobService) runVideoPipeline(ctx context.Context, j *jobmodel.Job, asset *drama.VideoAsset) (*VideoGenerationResult, error) {
	cfg := asset.GenerationConfig
	if cfg == nil || strings.TrimSpace(cfg.Prompt) == "" {
		return nil, fmt.Errorf("%w: 资产缺少生成参数", ErrInvalidInput)
	}
	if cfg.ReferenceImageURL == "" {
		return nil, fmt.Errorf("%w: 资产缺少首帧参考图", ErrMissingPrerequisite)
	}
	duration := cfg.DurationSeconds
	if duration <= 0 {
		duration = defaultVideoDurationSeconds
	}

	s.reportProgress(ctx, j.ID, 10, "正在扣减积分")
	tx, err := s.ledger.SpendForVideo(ctx, j.UserID, j.ID, asset.ID, duration, "视频生成")
	if err != nil {
		// 扣费失败发生在任何外部调用之前，无需补偿
		return nil, err
	}

	if err := s.assetRepo.Update(ctx, asset.ID, bson.M{"status": drama.GenStatusProcessing}); err != nil {
		log.Warn().Err(err).Str("asset_id", asset.ID).Msg("更新资产状态失败")
	}
	s.reportProgress(ctx, j.ID, 20, "正在生成视频")

	generated, err := s.videoGen.GenerateVideo(ctx, &ark.VideoRequest{
		Prompt:            cfg.Prompt,
		ReferenceImageURL: cfg.ReferenceImageURL,
		Ratio:             cfg.Ratio,
		Resolution:        cfg.Resolution,
		DurationSeconds:   duration,
	})
	if err != nil {
		s.refundAndMarkFailed(ctx, j, asset, tx, "视频生成失败")
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	s.reportProgress(ctx, j.ID, 70, "正在转存视频")

	// 视频的临时地址不是可接受的长期产物，转存失败按致命处理并退款
	key := fmt.Sprintf("projects/%s/shots/%s/%s.mp4", asset.ProjectID, asset.ShotID, asset.ID)
	videoURL, err := s.uploader.UploadFromURL(ctx, key, generated.URL, "video/mp4")
	if err != nil {
		s.refundAndMarkFailed(ctx, j, asset, tx, "视频转存失败")
		return nil, fmt.Errorf("%w: %v", ErrUploadFailure, err)
	}
	s.reportProgress(ctx, j.ID, 90, "正在提取封面")

	// 封面是锦上添花，失败不影响任务结果
	var thumbnailURL string
	if s.thumbnailer != nil {
		if frame, thErr := s.thumbnailer.ExtractThumbnail(ctx, videoURL); thErr != nil {
			log.Warn().Err(thErr).Str("asset_id", asset.ID).Msg("封面提取失败，跳过")
		} else {
			thumbKey := fmt.Sprintf("projects/%s/shots/%s/%s_thumb.jpg", asset.ProjectID, asset.ShotID, asset.ID)
			if url, upErr := s.uploader.Upload(ctx, thumbKey, bytes.NewReader(frame), "image/jpeg"); upErr != nil {
				log.Warn().Err(upErr).Str("asset_id", asset.ID).Msg("封面转存失败，跳过")
			} else {
				thumbnailURL = url
			}
		}
	}

	durationMS := int64(duration) * 1000
	if s.thumbnailer != nil {
		if probed, prErr := s.thumbnailer.ProbeDuration(ctx, videoURL); prErr == nil && probed > 0 {
			durationMS = probed
		}
	}

	updates := bson.M{
		"video_url":   videoURL,
		"duration_ms": durationMS,
		"seed":        generated.Seed,
		"status":      drama.GenStatusCompleted,
	}
	if thumbnailURL != "" {
		updates["thumbnail_url"] = thumbnailURL
	}
	if err := s.assetRepo.Update(ctx, asset.ID, updates); err != nil {
		return nil, fmt.Errorf("更新视频资产: %w", err)
	}

	return &VideoGenerationResult{
		AssetID:      asset.ID,
		VideoURL:     videoURL,
		ThumbnailURL: thumbnailURL,
		DurationMS:   durationMS,
	}, nil
}

// refundAndMarkFailed 生成失败后的补偿：退款一次并标记资产失败
func (s *jobService) refundAndMarkFailed(ctx context.Context, j *jobmodel.Job, asset *drama.VideoAsset, tx *creditmodel.Transaction, reason string) {
	if err := s.ledger.Refund(ctx, tx, reason); err != nil {
		log.Error().Err(err).Str("job_id", j.ID).Str("asset_id", asset.ID).Msg("补偿退款失败")
	}
	if err := s.assetRepo.Update(ctx, asset.ID, bson.M{
		"status":        drama.GenStatusFailed,
		"error_message": reason,
	}); err != nil {
		log.Warn().Err(err).Str("asset_id", asset.ID).Msg("标记资产失败状态失败")
	}
}
