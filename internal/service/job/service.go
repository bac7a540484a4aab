package job

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"playlet/internal/ai"
	"playlet/internal/config"
	jobmodel "playlet/internal/model/job"
	"playlet/internal/pkg/ark"
	"playlet/internal/pkg/cache"
	"playlet/internal/pkg/id"
	"playlet/internal/pkg/storage"
	dramarepo "playlet/internal/repository/drama"
	jobrepo "playlet/internal/repository/job"
	creditsvc "playlet/internal/service/credit"
)

// LLM 提取类任务需要的大模型能力
type LLM interface {
	Complete(ctx context.Context, req *ai.CompletionRequest) (string, error)
}

// ImageGenerator 图片生成能力
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req *ark.ImageRequest) (*ark.ImageResult, error)
}

// VideoGenerator 视频生成能力
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, req *ark.VideoRequest) (*ark.VideoResult, error)
}

// Uploader 产物转存能力（从生成服务的临时地址拉取后写入永久存储）
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)
	UploadFromURL(ctx context.Context, key, srcURL, contentType string) (string, error)
}

// StorageUploader 把存储实现适配为 Uploader
type StorageUploader struct {
	S storage.Storage
}

func (u *StorageUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	return u.S.Upload(ctx, key, data, contentType)
}

func (u *StorageUploader) UploadFromURL(ctx context.Context, key, srcURL, contentType string) (string, error) {
	return storage.UploadFromURL(ctx, u.S, key, srcURL, contentType)
}

// Thumbnailer 视频封面提取能力
type Thumbnailer interface {
	ExtractThumbnail(ctx context.Context, videoURL string) ([]byte, error)
	ProbeDuration(ctx context.Context, videoURL string) (int64, error)
}

// ProgressCache 任务进度快照缓存（供 UI 轮询，丢失无害）
type ProgressCache interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Service 任务服务接口
type Service interface {
	// Enqueue 创建任务（入队前校验归属与输入限制）
	Enqueue(ctx context.Context, userID string, jobType jobmodel.Type, input any) (*jobmodel.Job, error)

	// Get 查询任务（校验归属）
	Get(ctx context.Context, userID, jobID string) (*jobmodel.Job, error)

	// ListByUser 查询用户的任务列表
	ListByUser(ctx context.Context, userID string, jobType jobmodel.Type, status jobmodel.Status, limit int64) ([]*jobmodel.Job, error)

	// ListByProject 查询项目的任务列表（校验项目归属）
	ListByProject(ctx context.Context, userID, projectID string, jobType jobmodel.Type, limit int64) ([]*jobmodel.Job, error)

	// Cancel 取消尚未开始的任务
	Cancel(ctx context.Context, userID, jobID string) error

	// MarkImported 用户确认导入提取结果后打标
	MarkImported(ctx context.Context, userID, jobID string) error

	// ProcessJob 执行任务（worker 调用，唯一的失败边界）
	ProcessJob(ctx context.Context, j *jobmodel.Job) error

	// NextPending 拉取待执行任务（worker 轮询）
	NextPending(ctx context.Context, limit int64) ([]*jobmodel.Job, error)
}

type jobService struct {
	cfg config.WorkerConfig

	jobRepo        jobrepo.Repository
	projectRepo    dramarepo.ProjectRepository
	episodeRepo    dramarepo.EpisodeRepository
	characterRepo  dramarepo.CharacterRepository
	charImageRepo  dramarepo.CharacterImageRepository
	sceneRepo      dramarepo.SceneRepository
	sceneImageRepo dramarepo.SceneImageRepository
	shotRepo       dramarepo.ShotRepository
	assetRepo      dramarepo.VideoAssetRepository

	llm         LLM
	imageGen    ImageGenerator
	videoGen    VideoGenerator
	uploader    Uploader
	thumbnailer Thumbnailer
	ledger      creditsvc.Service
	progress    ProgressCache

	processors map[jobmodel.Type]processorFunc
}

// Deps 任务服务依赖集合
type Deps struct {
	Worker config.WorkerConfig

	JobRepo        jobrepo.Repository
	ProjectRepo    dramarepo.ProjectRepository
	EpisodeRepo    dramarepo.EpisodeRepository
	CharacterRepo  dramarepo.CharacterRepository
	CharImageRepo  dramarepo.CharacterImageRepository
	SceneRepo      dramarepo.SceneRepository
	SceneImageRepo dramarepo.SceneImageRepository
	ShotRepo       dramarepo.ShotRepository
	AssetRepo      dramarepo.VideoAssetRepository

	LLM         LLM
	ImageGen    ImageGenerator
	VideoGen    VideoGenerator
	Uploader    Uploader
	Thumbnailer Thumbnailer
	Ledger      creditsvc.Service
	Progress    ProgressCache
}

// NewService 创建任务服务并注册全部处理器
func NewService(deps Deps) Service {
	s := &jobService{
		cfg:            deps.Worker,
		jobRepo:        deps.JobRepo,
		projectRepo:    deps.ProjectRepo,
		episodeRepo:    deps.EpisodeRepo,
		characterRepo:  deps.CharacterRepo,
		charImageRepo:  deps.CharImageRepo,
		sceneRepo:      deps.SceneRepo,
		sceneImageRepo: deps.SceneImageRepo,
		shotRepo:       deps.ShotRepo,
		assetRepo:      deps.AssetRepo,
		llm:            deps.LLM,
		imageGen:       deps.ImageGen,
		videoGen:       deps.VideoGen,
		uploader:       deps.Uploader,
		thumbnailer:    deps.Thumbnailer,
		ledger:         deps.Ledger,
		progress:       deps.Progress,
	}
	s.processors = map[jobmodel.Type]processorFunc{
		jobmodel.TypeCharacterExtraction:       s.processCharacterExtraction,
		jobmodel.TypeSceneExtraction:           s.processSceneExtraction,
		jobmodel.TypeCharacterImageGeneration:  s.processCharacterImage,
		jobmodel.TypeSceneImageGeneration:      s.processSceneImage,
		jobmodel.TypeStoryboardGeneration:      s.processStoryboardGeneration,
		jobmodel.TypeStoryboardBasicExtraction: s.processStoryboardBasicExtraction,
		jobmodel.TypeStoryboardMatching:        s.processStoryboardMatching,
		jobmodel.TypeBatchImageGeneration:      s.processBatchImage,
		jobmodel.TypeVideoGeneration:           s.processVideoGeneration,
		jobmodel.TypeShotVideoGeneration:       s.processShotVideoGeneration,
		jobmodel.TypeBatchVideoGeneration:      s.processBatchVideo,
		jobmodel.TypeFinalVideoExport:          s.processFinalExport,
	}
	return s
}

// Enqueue 创建任务
func (s *jobService) Enqueue(ctx context.Context, userID string, jobType jobmodel.Type, input any) (*jobmodel.Job, error) {
	if !jobType.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, jobType)
	}
	inputData, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("序列化任务输入: %w", err)
	}

	projectID, err := s.validateInput(ctx, userID, jobType, inputData)
	if err != nil {
		return nil, err
	}

	j := &jobmodel.Job{
		ID:        id.New(),
		UserID:    userID,
		ProjectID: projectID,
		Type:      jobType,
		InputData: string(inputData),
	}
	if err := s.jobRepo.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("创建任务: %w", err)
	}
	log.Info().
		Str("job_id", j.ID).
		Str("type", string(jobType)).
		Str("user_id", userID).
		Msg("任务已入队")
	return j, nil
}

// Get 查询任务
func (s *jobService) Get(ctx context.Context, userID, jobID string) (*jobmodel.Job, error) {
	j, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("查询任务: %w", err)
	}
	if j.UserID != userID {
		return nil, ErrUnauthorized
	}
	return j, nil
}

// ListByUser 查询用户的任务列表
func (s *jobService) ListByUser(ctx context.Context, userID string, jobType jobmodel.Type, status jobmodel.Status, limit int64) ([]*jobmodel.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.jobRepo.FindByUserID(ctx, userID, jobType, status, limit)
}

// ListByProject 查询项目的任务列表
func (s *jobService) ListByProject(ctx context.Context, userID, projectID string, jobType jobmodel.Type, limit int64) ([]*jobmodel.Job, error) {
	if err := s.verifyProjectOwnership(ctx, projectID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.jobRepo.FindByProjectID(ctx, projectID, jobType, limit)
}

// Cancel 取消任务（仅 pending 状态可取消，执行中的任务不提供中断）
func (s *jobService) Cancel(ctx context.Context, userID, jobID string) error {
	j, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return err
	}
	if err := s.jobRepo.Cancel(ctx, j.ID); err != nil {
		return fmt.Errorf("取消任务: %w", err)
	}
	return nil
}

// MarkImported 提取结果导入确认
func (s *jobService) MarkImported(ctx context.Context, userID, jobID string) error {
	j, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return err
	}
	if j.Status != jobmodel.StatusCompleted {
		return fmt.Errorf("%w: 任务尚未完成，无法导入", ErrInvalidInput)
	}
	if j.Type != jobmodel.TypeCharacterExtraction && j.Type != jobmodel.TypeSceneExtraction {
		return fmt.Errorf("%w: 该任务类型没有导入流程", ErrInvalidInput)
	}
	return s.jobRepo.MarkImported(ctx, j.ID)
}

// NextPending 拉取待执行任务
func (s *jobService) NextPending(ctx context.Context, limit int64) ([]*jobmodel.Job, error) {
	return s.jobRepo.FindPending(ctx, limit)
}

// progressSnapshot 写入 redis 的进度快照
type progressSnapshot struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
}

// reportProgress 更新任务进度并镜像到缓存
// 缓存写失败只记日志，进度以库内为准
func (s *jobService) reportProgress(ctx context.Context, jobID string, progress int, message string) {
	if err := s.jobRepo.UpdateProgress(ctx, jobID, progress, message); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Int("progress", progress).Msg("更新任务进度失败")
		return
	}
	if s.progress == nil {
		return
	}
	snap := progressSnapshot{JobID: jobID, Status: string(jobmodel.StatusProcessing), Progress: progress, Message: message}
	if err := s.progress.Set(ctx, cache.JobProgressKey(jobID), snap, cache.JobProgressTTL); err != nil {
		log.Debug().Err(err).Str("job_id", jobID).Msg("写入进度缓存失败")
	}
}

// clearProgress 任务终态后清理进度快照
func (s *jobService) clearProgress(ctx context.Context, jobID string) {
	if s.progress == nil {
		return
	}
	if err := s.progress.Delete(ctx, cache.JobProgressKey(jobID)); err != nil {
		log.Debug().Err(err).Str("job_id", jobID).Msg("清理进度缓存失败")
	}
}
