package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"playlet/internal/config"
	creditmodel "playlet/internal/model/credit"
	creditrepo "playlet/internal/repository/credit"
)

// ErrInsufficientCredits 余额不足
var ErrInsufficientCredits = errors.New("积分余额不足")

// Service 积分服务接口
// 扣费返回流水，退款以扣费流水为凭据，保证每笔扣费至多补偿一次
type Service interface {
	// SpendForImage 按图片单价扣费
	SpendForImage(ctx context.Context, userID, jobID, assetID, description string) (*creditmodel.Transaction, error)

	// SpendForVideo 按秒单价乘以时长扣费
	SpendForVideo(ctx context.Context, userID, jobID, assetID string, durationSeconds int, description string) (*creditmodel.Transaction, error)

	// Refund 对一笔扣费做反向补偿（幂等，重复调用不会二次加款）
	Refund(ctx context.Context, spendTx *creditmodel.Transaction, reason string) error

	// VideoCost 计算视频生成费用
	VideoCost(durationSeconds int) int64

	// Balance 查询余额
	Balance(ctx context.Context, userID string) (int64, error)

	// History 查询流水
	History(ctx context.Context, userID string, limit int64) ([]*creditmodel.Transaction, error)
}

type creditService struct {
	repo creditrepo.Repository
	cfg  config.CreditConfig
}

// NewService 创建积分服务
func NewService(repo creditrepo.Repository, cfg config.CreditConfig) Service {
	return &creditService{repo: repo, cfg: cfg}
}

func (s *creditService) SpendForImage(ctx context.Context, userID, jobID, assetID, description string) (*creditmodel.Transaction, error) {
	return s.spend(ctx, userID, jobID, assetID, s.cfg.ImageCost, description)
}

func (s *creditService) SpendForVideo(ctx context.Context, userID, jobID, assetID string, durationSeconds int, description string) (*creditmodel.Transaction, error) {
	return s.spend(ctx, userID, jobID, assetID, s.VideoCost(durationSeconds), description)
}

func (s *creditService) spend(ctx context.Context, userID, jobID, assetID string, amount int64, description string) (*creditmodel.Transaction, error) {
	if amount <= 0 {
		return nil, nil
	}
	tx, err := s.repo.Spend(ctx, userID, amount, description, jobID, assetID)
	if err != nil {
		if errors.Is(err, creditrepo.ErrInsufficientBalance) {
			return nil, ErrInsufficientCredits
		}
		return nil, fmt.Errorf("扣费失败: %w", err)
	}
	log.Info().
		Str("user_id", userID).
		Str("job_id", jobID).
		Int64("amount", amount).
		Str("tx_id", tx.ID).
		Msg("积分扣费成功")
	return tx, nil
}

func (s *creditService) Refund(ctx context.Context, spendTx *creditmodel.Transaction, reason string) error {
	if spendTx == nil {
		return nil
	}
	tx, err := s.repo.Refund(ctx, spendTx, reason)
	if err != nil {
		if errors.Is(err, creditrepo.ErrAlreadyRefunded) {
			log.Warn().
				Str("spend_tx_id", spendTx.ID).
				Msg("该笔扣费已退款，跳过")
			return nil
		}
		return fmt.Errorf("退款失败: %w", err)
	}
	log.Info().
		Str("user_id", spendTx.UserID).
		Str("spend_tx_id", spendTx.ID).
		Str("refund_tx_id", tx.ID).
		Int64("amount", tx.Amount).
		Str("reason", reason).
		Msg("积分退款成功")
	return nil
}

func (s *creditService) VideoCost(durationSeconds int) int64 {
	if durationSeconds <= 0 {
		return 0
	}
	return s.cfg.VideoCostPerSecond * int64(durationSeconds)
}

func (s *creditService) Balance(ctx context.Context, userID string) (int64, error) {
	return s.repo.Balance(ctx, userID)
}

func (s *creditService) History(ctx context.Context, userID string, limit int64) ([]*creditmodel.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.Transactions(ctx, userID, limit)
}
