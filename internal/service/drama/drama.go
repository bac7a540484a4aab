package drama

import (
	"context"
	"errors"
	"fmt"

	dramamodel "playlet/internal/model/drama"
	dramarepo "playlet/internal/repository/drama"
)

// ErrUnauthorized 资源不属于发起用户
var ErrUnauthorized = errors.New("无权访问该资源")

// Service 剧集资产服务接口
// 负责资产版本的一致性操作：同一逻辑资产至多一个激活版本，
// 切换原子完成，删除激活版本时自动顶替
type Service interface {
	// SwitchCharacterImage 切换角色的激活图片
	SwitchCharacterImage(ctx context.Context, userID, characterID, imageID string) error

	// SwitchSceneImage 切换场景指定类型的激活图片
	SwitchSceneImage(ctx context.Context, userID, sceneID string, imageType dramamodel.SceneImageType, imageID string) error

	// SwitchVideoVersion 切换分镜的激活视频版本
	SwitchVideoVersion(ctx context.Context, userID, shotID, assetID string) error

	// DeleteVideoVersion 删除分镜的一个视频版本，删的是激活版本时顶替最新的剩余版本
	DeleteVideoVersion(ctx context.Context, userID, shotID, assetID string) error

	// ListCharacterImages 查询角色的全部图片版本
	ListCharacterImages(ctx context.Context, userID, characterID string) ([]*dramamodel.CharacterImage, error)

	// ListSceneImages 查询场景的全部图片版本
	ListSceneImages(ctx context.Context, userID, sceneID string) ([]*dramamodel.SceneImage, error)

	// ListVideoVersions 查询分镜的全部视频版本
	ListVideoVersions(ctx context.Context, userID, shotID string) ([]*dramamodel.VideoAsset, error)
}

type dramaService struct {
	projectRepo    dramarepo.ProjectRepository
	characterRepo  dramarepo.CharacterRepository
	charImageRepo  dramarepo.CharacterImageRepository
	sceneRepo      dramarepo.SceneRepository
	sceneImageRepo dramarepo.SceneImageRepository
	shotRepo       dramarepo.ShotRepository
	assetRepo      dramarepo.VideoAssetRepository
}

// NewService 创建剧集资产服务
func NewService(
	projectRepo dramarepo.ProjectRepository,
	characterRepo dramarepo.CharacterRepository,
	charImageRepo dramarepo.CharacterImageRepository,
	sceneRepo dramarepo.SceneRepository,
	sceneImageRepo dramarepo.SceneImageRepository,
	shotRepo dramarepo.ShotRepository,
	assetRepo dramarepo.VideoAssetRepository,
) Service {
	return &dramaService{
		projectRepo:    projectRepo,
		characterRepo:  characterRepo,
		charImageRepo:  charImageRepo,
		sceneRepo:      sceneRepo,
		sceneImageRepo: sceneImageRepo,
		shotRepo:       shotRepo,
		assetRepo:      assetRepo,
	}
}

func (s *dramaService) SwitchCharacterImage(ctx context.Context, userID, characterID, imageID string) error {
	if err := s.verifyCharacter(ctx, userID, characterID); err != nil {
		return err
	}
	return s.charImageRepo.SetActive(ctx, characterID, imageID)
}

func (s *dramaService) SwitchSceneImage(ctx context.Context, userID, sceneID string, imageType dramamodel.SceneImageType, imageID string) error {
	if err := s.verifyScene(ctx, userID, sceneID); err != nil {
		return err
	}
	return s.sceneImageRepo.SetActive(ctx, sceneID, imageType, imageID)
}

func (s *dramaService) SwitchVideoVersion(ctx context.Context, userID, shotID, assetID string) error {
	if err := s.verifyShot(ctx, userID, shotID); err != nil {
		return err
	}
	return s.assetRepo.SetActive(ctx, shotID, assetID)
}

func (s *dramaService) DeleteVideoVersion(ctx context.Context, userID, shotID, assetID string) error {
	if err := s.verifyShot(ctx, userID, shotID); err != nil {
		return err
	}
	return s.assetRepo.DeleteWithPromotion(ctx, shotID, assetID)
}

func (s *dramaService) ListCharacterImages(ctx context.Context, userID, characterID string) ([]*dramamodel.CharacterImage, error) {
	if err := s.verifyCharacter(ctx, userID, characterID); err != nil {
		return nil, err
	}
	return s.charImageRepo.FindByCharacterID(ctx, characterID)
}

func (s *dramaService) ListSceneImages(ctx context.Context, userID, sceneID string) ([]*dramamodel.SceneImage, error) {
	if err := s.verifyScene(ctx, userID, sceneID); err != nil {
		return nil, err
	}
	return s.sceneImageRepo.FindBySceneID(ctx, sceneID)
}

func (s *dramaService) ListVideoVersions(ctx context.Context, userID, shotID string) ([]*dramamodel.VideoAsset, error) {
	if err := s.verifyShot(ctx, userID, shotID); err != nil {
		return nil, err
	}
	return s.assetRepo.FindByShotID(ctx, shotID)
}

func (s *dramaService) verifyProject(ctx context.Context, userID, projectID string) error {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("%w: 项目不存在", ErrUnauthorized)
	}
	if project.UserID != userID {
		return ErrUnauthorized
	}
	return nil
}

func (s *dramaService) verifyCharacter(ctx context.Context, userID, characterID string) error {
	character, err := s.characterRepo.FindByID(ctx, characterID)
	if err != nil {
		return fmt.Errorf("%w: 角色不存在", ErrUnauthorized)
	}
	return s.verifyProject(ctx, userID, character.ProjectID)
}

func (s *dramaService) verifyScene(ctx context.Context, userID, sceneID string) error {
	scene, err := s.sceneRepo.FindByID(ctx, sceneID)
	if err != nil {
		return fmt.Errorf("%w: 场景不存在", ErrUnauthorized)
	}
	return s.verifyProject(ctx, userID, scene.ProjectID)
}

func (s *dramaService) verifyShot(ctx context.Context, userID, shotID string) error {
	shot, err := s.shotRepo.FindByID(ctx, shotID)
	if err != nil {
		return fmt.Errorf("%w: 分镜不存在", ErrUnauthorized)
	}
	return s.verifyProject(ctx, userID, shot.ProjectID)
}
