package job

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"playlet/internal/ai"
	jobmodel "playlet/internal/model/job"
	"playlet/internal/pkg/jsonx"
	"playlet/internal/pkg/scripttools"
)

// 提取任务的大模型参数：推理模式 + 大输出预算，输出必须是严格 JSON
const (
	extractionMaxTokens   = 16384
	extractionTemperature = 0.3
)

const characterExtractionSystemPrompt = `你是一位短剧制作的美术指导。阅读给定的剧本，提取其中出场的角色。

对每个角色给出：
- name: 角色姓名（剧本中出现的称呼）
- personality: 性格简述（一两句话）
- appearance: 固定外貌特征（发型、体型、年龄感等在不同造型下不变的部分）
- styles: 2到5个造型，每个造型包含 label（造型名称，如"日常装"、"婚礼礼服"）和 image_prompt（可直接用于文生图的中文提示词，包含外貌特征与该造型的服装细节）

只提取有名有姓或有明确称呼的角色，路人和群演不要提取。

返回 JSON 对象：{"characters": [{"name": "...", "personality": "...", "appearance": "...", "styles": [{"label": "...", "image_prompt": "..."}]}]}`

const sceneExtractionSystemPrompt = `你是一位短剧制作的场景设计师。阅读给定的剧本，提取其中出现的拍摄场景。

对每个场景给出：
- name: 场景名称（如"顾家别墅客厅"、"医院走廊"）
- description: 纯视觉描述（空间布局、光线、陈设、氛围），不要包含任何角色和剧情

同一地点只提取一次。

返回 JSON 对象：{"scenes": [{"name": "...", "description": "..."}]}`

// processCharacterExtraction 角色提取
// 结果只写入 result_data，角色表的写入由用户确认导入后另行触发
func (s *jobService) processCharacterExtraction(ctx context.Context, j *jobmodel.Job) (string, error) {
	script, err := s.collectScript(ctx, j)
	if err != nil {
		return "", err
	}
	s.reportProgress(ctx, j.ID, 20, "正在分析剧本角色")

	content, err := s.llm.Complete(ctx, &ai.CompletionRequest{
		System: characterExtractionSystemPrompt,
		Prompt: script,
		Options: &ai.CompletionOptions{
			Temperature: extractionTemperature,
			MaxTokens:   extractionMaxTokens,
			JSONOnly:    true,
			Reasoning:   true,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	s.reportProgress(ctx, j.ID, 80, "正在解析提取结果")

	var parsed CharacterExtractionResult
	if err := jsonx.Unmarshal(content, &parsed); err != nil {
		return "", fmt.Errorf("%w: 模型输出无法解析为 JSON: %v", ErrNoUsableResult, err)
	}

	// 过滤：无名角色丢弃，没有任何有效造型的角色也丢弃
	characters := make([]ExtractedCharacter, 0, len(parsed.Characters))
	for _, c := range parsed.Characters {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		styles := make([]CharacterStyle, 0, len(c.Styles))
		for _, st := range c.Styles {
			if strings.TrimSpace(st.ImagePrompt) == "" {
				continue
			}
			styles = append(styles, st)
		}
		if len(styles) == 0 {
			log.Warn().Str("job_id", j.ID).Str("name", c.Name).Msg("角色没有有效造型，丢弃")
			continue
		}
		c.Styles = styles
		characters = append(characters, c)
	}
	if len(characters) == 0 {
		return "", ErrNoUsableResult
	}

	result := CharacterExtractionResult{Characters: characters, Count: len(characters)}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("序列化提取结果: %w", err)
	}
	return string(data), nil
}

// processSceneExtraction 场景提取
func (s *jobService) processSceneExtraction(ctx context.Context, j *jobmodel.Job) (string, error) {
	script, err := s.collectScript(ctx, j)
	if err != nil {
		return "", err
	}
	s.reportProgress(ctx, j.ID, 20, "正在分析剧本场景")

	content, err := s.llm.Complete(ctx, &ai.CompletionRequest{
		System: sceneExtractionSystemPrompt,
		Prompt: script,
		Options: &ai.CompletionOptions{
			Temperature: extractionTemperature,
			MaxTokens:   extractionMaxTokens,
			JSONOnly:    true,
			Reasoning:   true,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	s.reportProgress(ctx, j.ID, 80, "正在解析提取结果")

	var parsed SceneExtractionResult
	if err := jsonx.Unmarshal(content, &parsed); err != nil {
		return "", fmt.Errorf("%w: 模型输出无法解析为 JSON: %v", ErrNoUsableResult, err)
	}

	scenes := make([]ExtractedScene, 0, len(parsed.Scenes))
	for _, sc := range parsed.Scenes {
		if strings.TrimSpace(sc.Name) == "" {
			continue
		}
		scenes = append(scenes, sc)
	}
	if len(scenes) == 0 {
		return "", ErrNoUsableResult
	}

	result := SceneExtractionResult{Scenes: scenes, Count: len(scenes)}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("序列化提取结果: %w", err)
	}
	return string(data), nil
}

// collectScript 归属校验 + 拼接剧本
// 空剧本的剧集直接跳过，全部为空时返回与"模型无可用输出"区分的错误
func (s *jobService) collectScript(ctx context.Context, j *jobmodel.Job) (string, error) {
	var in ExtractionInput
	if err := json.Unmarshal([]byte(j.InputData), &in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(in.EpisodeIDs) > MaxEpisodesPerExtraction {
		return "", fmt.Errorf("%w: 单次提取最多 %d 个剧集", ErrInvalidInput, MaxEpisodesPerExtraction)
	}
	if err := s.verifyProjectOwnership(ctx, in.ProjectID, j.UserID); err != nil {
		return "", err
	}
	if err := s.verifyEpisodeOwnership(ctx, in.EpisodeIDs, in.ProjectID); err != nil {
		return "", err
	}
	s.reportProgress(ctx, j.ID, 10, "正在读取剧本")

	episodes, err := s.episodeRepo.FindByIDs(ctx, in.EpisodeIDs)
	if err != nil {
		return "", fmt.Errorf("查询剧集: %w", err)
	}

	cleaner, err := scripttools.NewScriptCleaner()
	if err != nil {
		return "", fmt.Errorf("初始化剧本清洗器: %w", err)
	}
	titles := make([]string, 0, len(episodes))
	scripts := make([]string, 0, len(episodes))
	for _, ep := range episodes {
		titles = append(titles, ep.Title)
		scripts = append(scripts, cleaner.Clean(ep.ScriptContent))
	}
	script := cleaner.JoinEpisodes(titles, scripts)
	if strings.TrimSpace(script) == "" {
		return "", ErrNoScriptContent
	}
	if len(script) > MaxScriptBytes {
		return "", fmt.Errorf("%w: 剧本总长度超出上限", ErrInvalidInput)
	}
	words := cleaner.WordCount(script)
	if words > MaxScriptWords {
		return "", fmt.Errorf("%w: 剧本词数超出上限（%d > %d）", ErrInvalidInput, words, MaxScriptWords)
	}
	log.Debug().
		Str("job_id", j.ID).
		Int("episodes", len(episodes)).
		Int("words", words).
		Msg("剧本拼接完成")
	return script, nil
}
