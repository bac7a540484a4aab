package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	jobmodel "playlet/internal/model/job"
	jobrepo "playlet/internal/repository/job"
)

// processorFunc 单个任务类型的处理函数
// 返回序列化后的结果载荷；返回错误即任务失败，由派发器统一落库
type processorFunc func(ctx context.Context, j *jobmodel.Job) (string, error)

// ProcessJob 执行一个任务
// 这里是唯一的失败边界：领取、派发、把处理器错误转换为任务失败，
// 处理器内部不允许悄悄吞错
func (s *jobService) ProcessJob(ctx context.Context, j *jobmodel.Job) error {
	claimed, err := s.jobRepo.Start(ctx, j.ID)
	if err != nil {
		if errors.Is(err, jobrepo.ErrNotClaimable) {
			// 已被其他执行者领取或已取消，不算错误
			log.Debug().Str("job_id", j.ID).Msg("任务不可领取，跳过")
			return nil
		}
		return fmt.Errorf("领取任务: %w", err)
	}

	log.Info().
		Str("job_id", claimed.ID).
		Str("type", string(claimed.Type)).
		Str("user_id", claimed.UserID).
		Msg("开始执行任务")

	processor, ok := s.processors[claimed.Type]
	if !ok {
		// 未知类型是硬失败，不能静默跳过
		failErr := fmt.Errorf("%w: %s", ErrUnknownType, claimed.Type)
		s.failJob(ctx, claimed, failErr)
		return nil
	}

	resultData, procErr := processor(ctx, claimed)
	if procErr != nil {
		s.failJob(ctx, claimed, procErr)
		return nil
	}

	if err := s.jobRepo.Complete(ctx, claimed.ID, resultData); err != nil {
		log.Error().Err(err).Str("job_id", claimed.ID).Msg("写入任务完成状态失败")
		return fmt.Errorf("完成任务: %w", err)
	}
	s.clearProgress(ctx, claimed.ID)
	log.Info().
		Str("job_id", claimed.ID).
		Str("type", string(claimed.Type)).
		Msg("任务执行成功")
	return nil
}

// failJob 把处理器错误落为任务失败
func (s *jobService) failJob(ctx context.Context, j *jobmodel.Job, procErr error) {
	log.Error().
		Err(procErr).
		Str("job_id", j.ID).
		Str("type", string(j.Type)).
		Msg("任务执行失败")
	if err := s.jobRepo.Fail(ctx, j.ID, procErr.Error()); err != nil {
		log.Error().Err(err).Str("job_id", j.ID).Msg("写入任务失败状态失败")
	}
	s.clearProgress(ctx, j.ID)
}
