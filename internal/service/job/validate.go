package job

import (
	"context"
	"encoding/json"
	"fmt"

	jobmodel "playlet/internal/model/job"
)

// 输入规模限制，防止无界的提示词构造和批量调用
const (
	MaxEpisodesPerExtraction = 20      // 单次提取最多引用的剧集数
	MaxScriptBytes           = 409600  // 拼接后剧本的字节上限（400KB）
	MaxScriptWords           = 100000  // 拼接后剧本的分词词数上限，比字节数更贴近 token 消耗
	MaxShotsPerBatch         = 50      // 批量生图最多处理的分镜数
	MaxAssetsPerBatch        = 20      // 批量视频最多处理的资产数
	MaxVideosPerExport       = 200     // 成片清单最多引用的视频数
)

// verifyProjectOwnership 校验项目归属
// 任务可能在入队后很久才被执行，归属在执行时必须重新断言
func (s *jobService) verifyProjectOwnership(ctx context.Context, projectID, userID string) error {
	if projectID == "" {
		return fmt.Errorf("%w: project_id 不能为空", ErrInvalidInput)
	}
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("%w: 项目不存在", ErrUnauthorized)
	}
	if project.UserID != userID {
		return ErrUnauthorized
	}
	return nil
}

// verifyEpisodeOwnership 校验剧集批次归属：全部属于该项目才通过，部分命中整体拒绝
func (s *jobService) verifyEpisodeOwnership(ctx context.Context, episodeIDs []string, projectID string) error {
	if len(episodeIDs) == 0 {
		return fmt.Errorf("%w: episode_ids 不能为空", ErrInvalidInput)
	}
	episodes, err := s.episodeRepo.FindByIDs(ctx, episodeIDs)
	if err != nil {
		return fmt.Errorf("查询剧集: %w", err)
	}
	found := make(map[string]bool, len(episodes))
	for _, ep := range episodes {
		if ep.ProjectID != projectID {
			return ErrUnauthorized
		}
		found[ep.ID] = true
	}
	for _, id := range episodeIDs {
		if !found[id] {
			return fmt.Errorf("%w: 剧集不存在或不属于该项目: %s", ErrUnauthorized, id)
		}
	}
	return nil
}

// validateInput 入队时的输入校验，返回任务关联的项目ID
// 执行时处理器还会再做一次归属校验，这里挡掉明显无效的请求
func (s *jobService) validateInput(ctx context.Context, userID string, jobType jobmodel.Type, inputData []byte) (string, error) {
	switch jobType {
	case jobmodel.TypeCharacterExtraction, jobmodel.TypeSceneExtraction:
		var in ExtractionInput
		if err := json.Unmarshal(inputData, &in); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if len(in.EpisodeIDs) > MaxEpisodesPerExtraction {
			return "", fmt.Errorf("%w: 单次提取最多 %d 个剧集", ErrInvalidInput, MaxEpisodesPerExtraction)
		}
		if err := s.verifyProjectOwnership(ctx, in.ProjectID, userID); err != nil {
			return "", err
		}
		if err := s.verifyEpisodeOwnership(ctx, in.EpisodeIDs, in.ProjectID); err != nil {
			return "", err
		}
		return in.ProjectID, nil

	case jobmodel.TypeCharacterImageGeneration, jobmodel.TypeSceneImageGeneration:
		var in ImageGenerationInput
		if err := json.Unmarshal(inputData, &in); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if in.ImageID == "" {
			return "", fmt.Errorf("%w: image_id 不能为空", ErrInvalidInput)
		}
		if err := s.verifyProjectOwnership(ctx, in.ProjectID, userID); err != nil {
			return "", err
		}
		return in.ProjectID, nil

	case jobmodel.TypeStoryboardGeneration, jobmodel.TypeStoryboardBasicExtraction, jobmodel.TypeStoryboardMatching:
		var in StoryboardInput
		if err := json.Unmarshal(inputData, &in); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if in.EpisodeID == "" {
			return "", fmt.Errorf("%w: episode_id 不能为空", ErrInvalidInput)
		}
		if err := s.verifyProjectOwnership(ctx, in.ProjectID, userID); err != nil {
			return "", err
		}
		if err := s.verifyEpisodeOwnership(ctx, []string{in.EpisodeID}, in.ProjectID); err != nil {
			return "", err
		}
		return in.ProjectID, nil

	case jobmodel.TypeBatchImageGeneration:
		var in BatchImageInput
		if err := json.Unmarshal(inputData, &in); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if len(in.ShotIDs) == 0 {
			return "", fmt.Errorf("%w: shot_ids 不能为空", ErrInvalidInput)
		}
		if len(in.ShotIDs) > MaxShotsPerBatch {
			return "", fmt.Errorf("%w: 批量生图最多 %d 个分镜", ErrInvalidInput, MaxShotsPerBatch)
		}
		if err := s.verifyProjectOwnership(ctx, in.ProjectID, userID); err != nil {
			return "", err
		}
		return in.ProjectID, nil

	case jobmodel.TypeVideoGeneration, jobmodel.TypeShotVideoGeneration:
		var in VideoGenerationInput
		if err := json.Unmarshal(inputData, &in); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if jobType == jobmodel.TypeVideoGeneration && in.AssetID == "" {
			return "", fmt.Errorf("%w: asset_id 不能为空", ErrInvalidInput)
		}
		if jobType == jobmodel.TypeShotVideoGeneration && in.ShotID == "" {
			return "", fmt.Errorf("%w: shot_id 不能为空", ErrInvalidInput)
		}
		if err := s.verifyProjectOwnership(ctx, in.ProjectID, userID); err != nil {
			return "", err
		}
		return in.ProjectID, nil

	case jobmodel.TypeBatchVideoGeneration:
		var in BatchVideoInput
		if err := json.Unmarshal(inputData, &in); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if len(in.AssetIDs) == 0 {
			return "", fmt.Errorf("%w: asset_ids 不能为空", ErrInvalidInput)
		}
		if len(in.AssetIDs) > MaxAssetsPerBatch {
			return "", fmt.Errorf("%w: 批量视频最多 %d 个资产", ErrInvalidInput, MaxAssetsPerBatch)
		}
		if err := s.verifyProjectOwnership(ctx, in.ProjectID, userID); err != nil {
			return "", err
		}
		return in.ProjectID, nil

	case jobmodel.TypeFinalVideoExport:
		var in ExportInput
		if err := json.Unmarshal(inputData, &in); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if len(in.VideoIDs) == 0 {
			return "", fmt.Errorf("%w: video_ids 不能为空", ErrInvalidInput)
		}
		if len(in.VideoIDs) > MaxVideosPerExport {
			return "", fmt.Errorf("%w: 成片清单最多 %d 个视频", ErrInvalidInput, MaxVideosPerExport)
		}
		if err := s.verifyProjectOwnership(ctx, in.ProjectID, userID); err != nil {
			return "", err
		}
		return in.ProjectID, nil

	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownType, jobType)
	}
}
