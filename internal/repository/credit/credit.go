package credit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"playlet/internal/model/credit"
)

var (
	// ErrInsufficientBalance 余额不足
	ErrInsufficientBalance = errors.New("积分余额不足")
	// ErrAlreadyRefunded 该笔扣费已退款
	ErrAlreadyRefunded = errors.New("该笔扣费已退款")
)

// Repository 积分仓库接口
type Repository interface {
	GetOrCreateAccount(ctx context.Context, userID string) (*credit.Account, error)
	Spend(ctx context.Context, userID string, amount int64, description, jobID, assetID string) (*credit.Transaction, error)
	Refund(ctx context.Context, spendTx *credit.Transaction, description string) (*credit.Transaction, error)
	Balance(ctx context.Context, userID string) (int64, error)
	Transactions(ctx context.Context, userID string, limit int64) ([]*credit.Transaction, error)
}

// Repo 积分仓库
type Repo struct {
	accounts *mongo.Collection
	txs      *mongo.Collection
}

// NewRepo 创建积分仓库
func NewRepo(db *mongo.Database) *Repo {
	var a credit.Account
	var t credit.Transaction
	return &Repo{
		accounts: db.Collection(a.Collection()),
		txs:      db.Collection(t.Collection()),
	}
}

// GetOrCreateAccount 查询账户，不存在时创建零余额账户
func (r *Repo) GetOrCreateAccount(ctx context.Context, userID string) (*credit.Account, error) {
	now := time.Now()
	update := bson.M{
		"$setOnInsert": bson.M{
			"id":         uuid.NewString(),
			"user_id":    userID,
			"balance":    int64(0),
			"created_at": now,
		},
		"$set": bson.M{"updated_at": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var account credit.Account
	if err := r.accounts.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&account); err != nil {
		return nil, err
	}
	return &account, nil
}

// Spend 扣费：余额充足时原子扣减并写入流水
// 余额条件放在过滤器里，并发扣费不会把余额扣成负数
func (r *Repo) Spend(ctx context.Context, userID string, amount int64, description, jobID, assetID string) (*credit.Transaction, error) {
	if _, err := r.GetOrCreateAccount(ctx, userID); err != nil {
		return nil, err
	}

	res, err := r.accounts.UpdateOne(
		ctx,
		bson.M{"user_id": userID, "balance": bson.M{"$gte": amount}},
		bson.M{
			"$inc": bson.M{"balance": -amount},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, ErrInsufficientBalance
	}

	tx := &credit.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        credit.TxTypeSpend,
		Amount:      amount,
		Description: description,
		JobID:       jobID,
		AssetID:     assetID,
		CreatedAt:   time.Now(),
	}
	if _, err := r.txs.InsertOne(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Refund 退款：对一笔扣费流水做反向补偿
// refund_of 唯一索引保证同一笔扣费至多退款一次，重复退款返回 ErrAlreadyRefunded
func (r *Repo) Refund(ctx context.Context, spendTx *credit.Transaction, description string) (*credit.Transaction, error) {
	tx := &credit.Transaction{
		ID:          uuid.NewString(),
		UserID:      spendTx.UserID,
		Type:        credit.TxTypeRefund,
		Amount:      spendTx.Amount,
		Description: description,
		JobID:       spendTx.JobID,
		AssetID:     spendTx.AssetID,
		RefundOf:    spendTx.ID,
		CreatedAt:   time.Now(),
	}
	if _, err := r.txs.InsertOne(ctx, tx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrAlreadyRefunded
		}
		return nil, err
	}

	_, err := r.accounts.UpdateOne(
		ctx,
		bson.M{"user_id": spendTx.UserID},
		bson.M{
			"$inc": bson.M{"balance": spendTx.Amount},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Balance 查询余额
func (r *Repo) Balance(ctx context.Context, userID string) (int64, error) {
	account, err := r.GetOrCreateAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// Transactions 查询流水（最新在前）
func (r *Repo) Transactions(ctx context.Context, userID string, limit int64) ([]*credit.Transaction, error) {
	filter := bson.M{"user_id": userID}
	opts := options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(limit)
	cur, err := r.txs.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var txs []*credit.Transaction
	if err := cur.All(ctx, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}
