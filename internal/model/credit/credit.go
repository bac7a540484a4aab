package credit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TxType 流水类型
type TxType string

const (
	TxTypeSpend  TxType = "spend"  // 扣费
	TxTypeRefund TxType = "refund" // 退款（补偿）
)

// Account 用户积分账户
type Account struct {
	ID        string    `bson:"id" json:"id"`           // 账户ID（UUID）
	UserID    string    `bson:"user_id" json:"user_id"` // 用户ID
	Balance   int64     `bson:"balance" json:"balance"` // 当前余额（非负）
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Collection 返回集合名称
func (a *Account) Collection() string { return "credit_accounts" }

// EnsureIndexes 创建和维护索引
func (a *Account) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(a.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_user").SetUnique(true),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}

// Transaction 积分流水（追加写入，不可修改）
// RefundOf 指向被退款的扣费流水ID，唯一索引保证同一笔扣费至多退款一次
type Transaction struct {
	ID          string    `bson:"id" json:"id"`           // 流水ID（UUID）
	UserID      string    `bson:"user_id" json:"user_id"` // 用户ID
	Type        TxType    `bson:"type" json:"type"`       // spend / refund
	Amount      int64     `bson:"amount" json:"amount"`   // 金额（正数）
	Description string    `bson:"description" json:"description"`
	JobID       string    `bson:"job_id,omitempty" json:"job_id,omitempty"`       // 关联任务ID
	AssetID     string    `bson:"asset_id,omitempty" json:"asset_id,omitempty"`   // 关联资产ID
	RefundOf    string    `bson:"refund_of,omitempty" json:"refund_of,omitempty"` // 被退款的流水ID
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// Collection 返回集合名称
func (t *Transaction) Collection() string { return "credit_transactions" }

// EnsureIndexes 创建和维护索引
func (t *Transaction) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(t.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_user_created"),
		},
		{
			// 退款幂等：同一笔扣费只允许一条退款流水
			Keys: bson.D{{Key: "refund_of", Value: 1}},
			Options: options.Index().SetName("idx_refund_of").SetUnique(true).
				SetPartialFilterExpression(bson.M{"refund_of": bson.M{"$type": "string"}}),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
