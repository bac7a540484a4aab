package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"playlet/internal/config"
	jobmodel "playlet/internal/model/job"
	jobsvc "playlet/internal/service/job"
)

// Worker 任务执行器
// 轮询任务表拉取待执行任务，并发交给派发器处理；
// 领取互斥由任务仓库的原子置换保证，多个 worker 实例可以同时跑
type Worker struct {
	cfg config.WorkerConfig
	svc jobsvc.Service
}

// New 创建任务执行器
func New(cfg config.WorkerConfig, svc jobsvc.Service) *Worker {
	return &Worker{cfg: cfg, svc: svc}
}

// Run 启动轮询循环，阻塞直到 ctx 取消；在途任务会执行完再返回
func (w *Worker) Run(ctx context.Context) error {
	concurrency := w.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	pollInterval := w.cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}

	log.Info().
		Int("concurrency", concurrency).
		Dur("poll_interval", pollInterval).
		Msg("任务执行器已启动")

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("任务执行器收到退出信号，等待在途任务完成")
			wg.Wait()
			log.Info().Msg("任务执行器已退出")
			return ctx.Err()
		case <-ticker.C:
		}

		jobs, err := w.svc.NextPending(ctx, int64(concurrency))
		if err != nil {
			log.Error().Err(err).Msg("拉取待执行任务失败")
			continue
		}

		for _, j := range jobs {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				wg.Wait()
				return ctx.Err()
			}
			wg.Add(1)
			go w.runOne(&wg, sem, j)
		}
	}
}

// runOne 执行单个任务，超时由任务级 context 控制
func (w *Worker) runOne(wg *sync.WaitGroup, sem chan struct{}, j *jobmodel.Job) {
	defer wg.Done()
	defer func() { <-sem }()

	// 退出信号不打断在途任务，任务上下文与轮询上下文分离
	jobCtx := context.Background()
	if w.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, w.cfg.JobTimeout)
		defer cancel()
	}

	if err := w.svc.ProcessJob(jobCtx, j); err != nil {
		log.Error().Err(err).Str("job_id", j.ID).Msg("任务处理出错")
	}
}
