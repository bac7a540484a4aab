package job

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"

	"playlet/internal/ai"
	"playlet/internal/model/drama"
	jobmodel "playlet/internal/model/job"
	"playlet/internal/pkg/id"
	"playlet/internal/pkg/jsonx"
	"playlet/internal/pkg/scripttools"
)

const storyboardSystemPrompt = `你是一位短剧导演。把给定的单集剧本拆解为按顺序的分镜列表。

对每个分镜给出：
- sequence: 镜号，从1开始递增
- dialogue: 该镜头的台词或旁白（没有则留空字符串）
- image_prompt: 该镜头首帧画面的文生图中文提示词（构图、人物动作、环境、镜头景别）
- video_prompt: 该镜头的动态描述提示词（人物动作和镜头运动，5秒以内可完成）
- character_name: 画面主体角色的姓名（没有明确主体则留空）
- scene_name: 所在场景名称

分镜粒度以一个连续镜头为准，一集通常拆为10到40个分镜。

返回 JSON 对象：{"shots": [{"sequence": 1, "dialogue": "...", "image_prompt": "...", "video_prompt": "...", "character_name": "...", "scene_name": "..."}]}`

// processStoryboardBasicExtraction 分镜基础拆解
// 把单集剧本拆为分镜并写入分镜表（重新拆解会清掉该集旧分镜）
func (s *jobService) processStoryboardBasicExtraction(ctx context.Context, j *jobmodel.Job) (string, error) {
	in, episode, err := s.loadStoryboardEpisode(ctx, j)
	if err != nil {
		return "", err
	}
	s.reportProgress(ctx, j.ID, 20, "正在拆解分镜")

	shots, err := s.extractShots(ctx, episode.ScriptContent)
	if err != nil {
		return "", err
	}
	s.reportProgress(ctx, j.ID, 80, "正在写入分镜")

	if err := s.replaceShots(ctx, in.ProjectID, in.EpisodeID, shots); err != nil {
		return "", err
	}

	result := StoryboardResult{Shots: shots, Count: len(shots)}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("序列化结果: %w", err)
	}
	return string(data), nil
}

// processStoryboardMatching 分镜角色/场景匹配
// 按名称把分镜关联到项目中已导入的角色和场景，未命中保持未关联
func (s *jobService) processStoryboardMatching(ctx context.Context, j *jobmodel.Job) (string, error) {
	var in StoryboardInput
	if err := json.Unmarshal([]byte(j.InputData), &in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.verifyProjectOwnership(ctx, in.ProjectID, j.UserID); err != nil {
		return "", err
	}
	s.reportProgress(ctx, j.ID, 10, "正在读取分镜")

	var shots []*drama.Shot
	var err error
	if len(in.ShotIDs) > 0 {
		shots, err = s.shotRepo.FindByIDs(ctx, in.ShotIDs)
	} else {
		shots, err = s.shotRepo.FindByEpisodeID(ctx, in.EpisodeID)
	}
	if err != nil {
		return "", fmt.Errorf("查询分镜: %w", err)
	}
	if len(shots) == 0 {
		return "", fmt.Errorf("%w: 该剧集还没有分镜", ErrMissingPrerequisite)
	}
	for _, shot := range shots {
		if shot.ProjectID != in.ProjectID {
			return "", ErrUnauthorized
		}
	}
	s.reportProgress(ctx, j.ID, 40, "正在匹配角色和场景")

	matched, unmatched, err := s.matchShots(ctx, in.ProjectID, shots)
	if err != nil {
		return "", err
	}

	result := MatchingResult{Matched: matched, Unmatched: unmatched}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("序列化结果: %w", err)
	}
	return string(data), nil
}

// processStoryboardGeneration 分镜生成：拆解和匹配一次完成
func (s *jobService) processStoryboardGeneration(ctx context.Context, j *jobmodel.Job) (string, error) {
	in, episode, err := s.loadStoryboardEpisode(ctx, j)
	if err != nil {
		return "", err
	}
	s.reportProgress(ctx, j.ID, 20, "正在拆解分镜")

	extracted, err := s.extractShots(ctx, episode.ScriptContent)
	if err != nil {
		return "", err
	}
	s.reportProgress(ctx, j.ID, 60, "正在写入分镜")

	if err := s.replaceShots(ctx, in.ProjectID, in.EpisodeID, extracted); err != nil {
		return "", err
	}
	s.reportProgress(ctx, j.ID, 80, "正在匹配角色和场景")

	shots, err := s.shotRepo.FindByEpisodeID(ctx, in.EpisodeID)
	if err != nil {
		return "", fmt.Errorf("查询分镜: %w", err)
	}
	if _, _, err := s.matchShots(ctx, in.ProjectID, shots); err != nil {
		return "", err
	}

	result := StoryboardResult{Shots: extracted, Count: len(extracted)}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("序列化结果: %w", err)
	}
	return string(data), nil
}

// processBatchImage 分镜首帧图批量生成
// 每个分镜独立扣费和补偿，单个失败不打断批次
func (s *jobService) processBatchImage(ctx context.Context, j *jobmodel.Job) (string, error) {
	var in BatchImageInput
	if err := json.Unmarshal([]byte(j.InputData), &in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(in.ShotIDs) > MaxShotsPerBatch {
		return "", fmt.Errorf("%w: 批量生图最多 %d 个分镜", ErrInvalidInput, MaxShotsPerBatch)
	}
	if err := s.verifyProjectOwnership(ctx, in.ProjectID, j.UserID); err != nil {
		return "", err
	}

	result := BatchImageResult{}
	for i, shotID := range in.ShotIDs {
		progress := 5 + i*90/len(in.ShotIDs)
		s.reportProgress(ctx, j.ID, progress, fmt.Sprintf("正在生成第 %d/%d 张分镜图", i+1, len(in.ShotIDs)))

		if err := s.generateShotImage(ctx, j, in.ProjectID, shotID); err != nil {
			log.Warn().Err(err).Str("job_id", j.ID).Str("shot_id", shotID).Msg("分镜图生成失败")
			result.Failed = append(result.Failed, shotID)
			continue
		}
		result.Succeeded = append(result.Succeeded, shotID)
	}
	result.Count = len(result.Succeeded)
	if result.Count == 0 {
		return "", fmt.Errorf("%w: 批量分镜图生成全部失败", ErrProviderFailure)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("序列化结果: %w", err)
	}
	return string(data), nil
}

// generateShotImage 生成单个分镜的首帧图并写回分镜行
func (s *jobService) generateShotImage(ctx context.Context, j *jobmodel.Job, projectID, shotID string) error {
	shot, err := s.shotRepo.FindByID(ctx, shotID)
	if err != nil {
		return fmt.Errorf("%w: 分镜不存在", ErrInvalidInput)
	}
	if shot.ProjectID != projectID {
		return ErrUnauthorized
	}
	if strings.TrimSpace(shot.ImagePrompt) == "" {
		return fmt.Errorf("%w: 分镜缺少生图提示词", ErrInvalidInput)
	}

	prompt := s.composePrompt(ctx, projectID, shot.ImagePrompt)
	res, err := s.generateAndStore(ctx, j, generateImageParams{
		prompt:     prompt,
		storageKey: fmt.Sprintf("projects/%s/shots/%s/frame.jpg", projectID, shot.ID),
		assetID:    shot.ID,
	})
	if err != nil {
		return err
	}
	return s.shotRepo.Update(ctx, shot.ID, bson.M{
		"image_url": res.ImageURL,
		"seed":      res.Seed,
		"status":    drama.GenStatusCompleted,
	})
}

// loadStoryboardEpisode 分镜任务的通用前置：归属校验 + 加载剧集
func (s *jobService) loadStoryboardEpisode(ctx context.Context, j *jobmodel.Job) (*StoryboardInput, *drama.Episode, error) {
	var in StoryboardInput
	if err := json.Unmarshal([]byte(j.InputData), &in); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.verifyProjectOwnership(ctx, in.ProjectID, j.UserID); err != nil {
		return nil, nil, err
	}
	if err := s.verifyEpisodeOwnership(ctx, []string{in.EpisodeID}, in.ProjectID); err != nil {
		return nil, nil, err
	}
	episode, err := s.episodeRepo.FindByID(ctx, in.EpisodeID)
	if err != nil {
		return nil, nil, fmt.Errorf("查询剧集: %w", err)
	}
	return &in, episode, nil
}

// extractShots 调用大模型把剧本拆为分镜列表
func (s *jobService) extractShots(ctx context.Context, script string) ([]ExtractedShot, error) {
	cleaner, err := scripttools.NewScriptCleaner()
	if err != nil {
		return nil, fmt.Errorf("初始化剧本清洗器: %w", err)
	}
	script = cleaner.Clean(script)
	if strings.TrimSpace(script) == "" {
		return nil, ErrNoScriptContent
	}
	if words := cleaner.WordCount(script); words > MaxScriptWords {
		return nil, fmt.Errorf("%w: 剧本词数超出上限（%d > %d）", ErrInvalidInput, words, MaxScriptWords)
	}

	content, err := s.llm.Complete(ctx, &ai.CompletionRequest{
		System: storyboardSystemPrompt,
		Prompt: script,
		Options: &ai.CompletionOptions{
			Temperature: extractionTemperature,
			MaxTokens:   extractionMaxTokens,
			JSONOnly:    true,
			Reasoning:   true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	var parsed StoryboardResult
	if err := jsonx.Unmarshal(content, &parsed); err != nil {
		return nil, fmt.Errorf("%w: 模型输出无法解析为 JSON: %v", ErrNoUsableResult, err)
	}

	shots := make([]ExtractedShot, 0, len(parsed.Shots))
	for _, shot := range parsed.Shots {
		if strings.TrimSpace(shot.ImagePrompt) == "" {
			continue
		}
		shots = append(shots, shot)
	}
	if len(shots) == 0 {
		return nil, ErrNoUsableResult
	}
	// 镜号按过滤后的顺序重排
	for i := range shots {
		shots[i].Sequence = i + 1
	}
	return shots, nil
}

// replaceShots 清掉剧集的旧分镜并写入新分镜，分镜ID回填到结果里
func (s *jobService) replaceShots(ctx context.Context, projectID, episodeID string, shots []ExtractedShot) error {
	if err := s.shotRepo.DeleteByEpisodeID(ctx, episodeID); err != nil {
		return fmt.Errorf("清理旧分镜: %w", err)
	}
	rows := make([]*drama.Shot, 0, len(shots))
	for i := range shots {
		shotID := id.New()
		shots[i].ShotID = shotID
		rows = append(rows, &drama.Shot{
			ID:            shotID,
			ProjectID:     projectID,
			EpisodeID:     episodeID,
			Sequence:      shots[i].Sequence,
			Dialogue:      shots[i].Dialogue,
			ImagePrompt:   shots[i].ImagePrompt,
			VideoPrompt:   shots[i].VideoPrompt,
			CharacterName: shots[i].CharacterName,
			SceneName:     shots[i].SceneName,
			Status:        drama.GenStatusPending,
		})
	}
	if err := s.shotRepo.CreateMany(ctx, rows); err != nil {
		return fmt.Errorf("写入分镜: %w", err)
	}
	return nil
}

// matchShots 按名称匹配角色和场景并写回分镜行
func (s *jobService) matchShots(ctx context.Context, projectID string, shots []*drama.Shot) (matched, unmatched int, err error) {
	characters, err := s.characterRepo.FindByProjectID(ctx, projectID)
	if err != nil {
		return 0, 0, fmt.Errorf("查询角色: %w", err)
	}
	scenes, err := s.sceneRepo.FindByProjectID(ctx, projectID)
	if err != nil {
		return 0, 0, fmt.Errorf("查询场景: %w", err)
	}
	charByName := make(map[string]string, len(characters))
	for _, c := range characters {
		charByName[c.Name] = c.ID
	}
	sceneByName := make(map[string]string, len(scenes))
	for _, sc := range scenes {
		sceneByName[sc.Name] = sc.ID
	}

	for _, shot := range shots {
		updates := bson.M{}
		hit := false
		if cid, ok := charByName[shot.CharacterName]; ok && shot.CharacterName != "" {
			updates["character_id"] = cid
			hit = true
		}
		if sid, ok := sceneByName[shot.SceneName]; ok && shot.SceneName != "" {
			updates["scene_id"] = sid
			hit = true
		}
		if !hit {
			unmatched++
			continue
		}
		if err := s.shotRepo.Update(ctx, shot.ID, updates); err != nil {
			return matched, unmatched, fmt.Errorf("更新分镜匹配结果: %w", err)
		}
		matched++
	}
	return matched, unmatched, nil
}
