package job

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"

	"playlet/internal/model/drama"
	jobmodel "playlet/internal/model/job"
	"playlet/internal/pkg/ark"
)

// processCharacterImage 角色造型图生成
// 对已创建的占位图片记录生成图片并原地写回 URL 和种子（重新生成同一条记录即覆盖）
func (s *jobService) processCharacterImage(ctx context.Context, j *jobmodel.Job) (string, error) {
	var in ImageGenerationInput
	if err := json.Unmarshal([]byte(j.InputData), &in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.verifyProjectOwnership(ctx, in.ProjectID, j.UserID); err != nil {
		return "", err
	}
	s.reportProgress(ctx, j.ID, 10, "正在准备生成参数")

	image, err := s.charImageRepo.FindByID(ctx, in.ImageID)
	if err != nil {
		return "", fmt.Errorf("%w: 角色图记录不存在", ErrInvalidInput)
	}
	character, err := s.characterRepo.FindByID(ctx, image.CharacterID)
	if err != nil {
		return "", fmt.Errorf("查询角色: %w", err)
	}
	if character.ProjectID != in.ProjectID {
		return "", ErrUnauthorized
	}
	if strings.TrimSpace(image.ImagePrompt) == "" {
		return "", fmt.Errorf("%w: 造型缺少生图提示词", ErrInvalidInput)
	}

	prompt := s.composePrompt(ctx, in.ProjectID, image.ImagePrompt)
	s.reportProgress(ctx, j.ID, 20, "正在生成图片")

	// 角色图都是文生图；扣费在调用前，生成失败按笔退款
	result, err := s.generateAndStore(ctx, j, generateImageParams{
		prompt:     prompt,
		storageKey: fmt.Sprintf("projects/%s/characters/%s/%s.jpg", in.ProjectID, character.ID, image.ID),
		assetID:    image.ID,
	})
	if err != nil {
		return "", err
	}

	s.reportProgress(ctx, j.ID, 90, "正在写入结果")
	if err := s.charImageRepo.Update(ctx, image.ID, bson.M{
		"image_url": result.ImageURL,
		"seed":      result.Seed,
		"status":    drama.GenStatusCompleted,
	}); err != nil {
		return "", fmt.Errorf("更新角色图记录: %w", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("序列化结果: %w", err)
	}
	return string(data), nil
}

// processSceneImage 场景图生成
// 主布局图走文生图；衍生视角图必须以激活的主布局图为参考走图生图，
// 主布局图没有 URL 时直接失败，不发起生成调用
func (s *jobService) processSceneImage(ctx context.Context, j *jobmodel.Job) (string, error) {
	var in ImageGenerationInput
	if err := json.Unmarshal([]byte(j.InputData), &in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.verifyProjectOwnership(ctx, in.ProjectID, j.UserID); err != nil {
		return "", err
	}
	s.reportProgress(ctx, j.ID, 10, "正在准备生成参数")

	image, err := s.sceneImageRepo.FindByID(ctx, in.ImageID)
	if err != nil {
		return "", fmt.Errorf("%w: 场景图记录不存在", ErrInvalidInput)
	}
	scene, err := s.sceneRepo.FindByID(ctx, image.SceneID)
	if err != nil {
		return "", fmt.Errorf("查询场景: %w", err)
	}
	if scene.ProjectID != in.ProjectID {
		return "", ErrUnauthorized
	}
	if strings.TrimSpace(image.ImagePrompt) == "" {
		return "", fmt.Errorf("%w: 场景图缺少生图提示词", ErrInvalidInput)
	}

	var referenceURL string
	if image.ImageType == drama.SceneImageTypeQuarterView {
		master, err := s.sceneImageRepo.FindActiveBySceneAndType(ctx, image.SceneID, drama.SceneImageTypeMasterLayout)
		if err != nil || master.ImageURL == "" {
			return "", fmt.Errorf("%w: 生成衍生视角图前需要先生成主布局图", ErrMissingPrerequisite)
		}
		referenceURL = master.ImageURL
	}

	prompt := s.composePrompt(ctx, in.ProjectID, image.ImagePrompt)
	s.reportProgress(ctx, j.ID, 20, "正在生成图片")

	result, err := s.generateAndStore(ctx, j, generateImageParams{
		prompt:       prompt,
		referenceURL: referenceURL,
		storageKey:   fmt.Sprintf("projects/%s/scenes/%s/%s.jpg", in.ProjectID, scene.ID, image.ID),
		assetID:      image.ID,
	})
	if err != nil {
		return "", err
	}

	s.reportProgress(ctx, j.ID, 90, "正在写入结果")
	if err := s.sceneImageRepo.Update(ctx, image.ID, bson.M{
		"image_url": result.ImageURL,
		"seed":      result.Seed,
		"status":    drama.GenStatusCompleted,
	}); err != nil {
		return "", fmt.Errorf("更新场景图记录: %w", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("序列化结果: %w", err)
	}
	return string(data), nil
}

type generateImageParams struct {
	prompt       string
	referenceURL string // 非空时走图生图
	storageKey   string
	assetID      string
}

// generateAndStore 扣费、调用生成服务、转存
// 转存失败降级使用生成服务的临时地址并记日志，图片任务不因转存失败退款
func (s *jobService) generateAndStore(ctx context.Context, j *jobmodel.Job, p generateImageParams) (*ImageGenerationResult, error) {
	tx, err := s.ledger.SpendForImage(ctx, j.UserID, j.ID, p.assetID, "图片生成")
	if err != nil {
		return nil, err
	}

	generated, err := s.imageGen.GenerateImage(ctx, &ark.ImageRequest{
		Prompt:            p.prompt,
		ReferenceImageURL: p.referenceURL,
	})
	if err != nil {
		if refundErr := s.ledger.Refund(ctx, tx, "图片生成失败"); refundErr != nil {
			log.Error().Err(refundErr).Str("job_id", j.ID).Msg("图片生成失败后退款也失败")
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	s.reportProgress(ctx, j.ID, 70, "正在转存图片")

	finalURL := generated.URL
	if s.uploader != nil {
		stored, upErr := s.uploader.UploadFromURL(ctx, p.storageKey, generated.URL, "image/jpeg")
		if upErr != nil {
			// 临时地址仍然可用，任务继续成功，不退款
			log.Warn().
				Err(upErr).
				Str("job_id", j.ID).
				Str("key", p.storageKey).
				Msg("图片转存失败，降级使用生成服务临时地址")
		} else {
			finalURL = stored
		}
	}

	return &ImageGenerationResult{
		ImageID:  p.assetID,
		ImageURL: finalURL,
		Seed:     generated.Seed,
	}, nil
}

// composePrompt 在造型提示词后追加项目统一画风
func (s *jobService) composePrompt(ctx context.Context, projectID, base string) string {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil || strings.TrimSpace(project.ArtStylePrompt) == "" {
		return base
	}
	return base + "。画风：" + project.ArtStylePrompt
}
