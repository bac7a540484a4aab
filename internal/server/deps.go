package server

import (
	"context"
	"fmt"

	"playlet/internal/ai"
	"playlet/internal/config"
	"playlet/internal/pkg/ark"
	"playlet/internal/pkg/cache"
	"playlet/internal/pkg/ffmpeg"
	"playlet/internal/pkg/mongodb"
	"playlet/internal/pkg/storagefactory"
	creditrepo "playlet/internal/repository/credit"
	dramarepo "playlet/internal/repository/drama"
	jobrepo "playlet/internal/repository/job"
	creditsvc "playlet/internal/service/credit"
	dramasvc "playlet/internal/service/drama"
	jobsvc "playlet/internal/service/job"
)

// Services 组合好的服务集合，serve 和 worker 两个入口共用同一套装配
type Services struct {
	Job    jobsvc.Service
	Drama  dramasvc.Service
	Credit creditsvc.Service
}

// BuildServices 装配服务依赖
// redisCache 可以为 nil，此时进度快照缓存被跳过
func BuildServices(ctx context.Context, cfg *config.Config, mongoClient *mongodb.Client, redisCache *cache.RedisCache) (*Services, error) {
	db := mongoClient.Database()

	projectRepo := dramarepo.NewProjectRepo(db)
	episodeRepo := dramarepo.NewEpisodeRepo(db)
	characterRepo := dramarepo.NewCharacterRepo(db)
	charImageRepo := dramarepo.NewCharacterImageRepo(db)
	sceneRepo := dramarepo.NewSceneRepo(db)
	sceneImageRepo := dramarepo.NewSceneImageRepo(db)
	shotRepo := dramarepo.NewShotRepo(db)
	assetRepo := dramarepo.NewVideoAssetRepo(db)

	llmClient, err := ai.NewClient(ctx, &cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("初始化大模型客户端: %w", err)
	}
	imageClient, err := ark.NewImageClient(&cfg.Ark)
	if err != nil {
		return nil, fmt.Errorf("初始化图片生成客户端: %w", err)
	}
	videoClient, err := ark.NewVideoClient(&cfg.Ark)
	if err != nil {
		return nil, fmt.Errorf("初始化视频生成客户端: %w", err)
	}
	store, err := storagefactory.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("初始化存储: %w", err)
	}

	ledger := creditsvc.NewService(creditrepo.NewRepo(db), cfg.Credit)

	var progress jobsvc.ProgressCache
	if redisCache != nil {
		progress = redisCache
	}

	jobService := jobsvc.NewService(jobsvc.Deps{
		Worker:         cfg.Worker,
		JobRepo:        jobrepo.NewRepo(db),
		ProjectRepo:    projectRepo,
		EpisodeRepo:    episodeRepo,
		CharacterRepo:  characterRepo,
		CharImageRepo:  charImageRepo,
		SceneRepo:      sceneRepo,
		SceneImageRepo: sceneImageRepo,
		ShotRepo:       shotRepo,
		AssetRepo:      assetRepo,
		LLM:            llmClient,
		ImageGen:       imageClient,
		VideoGen:       videoClient,
		Uploader:       &jobsvc.StorageUploader{S: store},
		Thumbnailer:    ffmpeg.NewClient(),
		Ledger:         ledger,
		Progress:       progress,
	})

	dramaService := dramasvc.NewService(
		projectRepo, characterRepo, charImageRepo,
		sceneRepo, sceneImageRepo, shotRepo, assetRepo,
	)

	return &Services{
		Job:    jobService,
		Drama:  dramaService,
		Credit: ledger,
	}, nil
}
