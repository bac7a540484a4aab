package drama

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GenerationConfig 视频生成参数
// 创建资产时写入，重新生成时原样复用，保证重试的确定性
type GenerationConfig struct {
	Prompt            string `bson:"prompt" json:"prompt"`                           // 动态描述提示词
	ReferenceImageURL string `bson:"reference_image_url" json:"reference_image_url"` // 首帧参考图URL
	Ratio             string `bson:"ratio,omitempty" json:"ratio,omitempty"`         // 画幅比例
	Resolution        string `bson:"resolution,omitempty" json:"resolution,omitempty"`
	DurationSeconds   int    `bson:"duration_seconds" json:"duration_seconds"` // 请求时长（秒）
}

// VideoAsset 视频资产（一个分镜可有多个版本，至多一个激活）
// 占位创建时只有生成参数；视频任务完成后回填 URL、封面和实际时长
type VideoAsset struct {
	ID               string            `bson:"id" json:"id"`                 // 资产ID（UUID）
	ProjectID        string            `bson:"project_id" json:"project_id"` // 所属项目ID
	ShotID           string            `bson:"shot_id" json:"shot_id"`       // 所属分镜ID
	Version          int               `bson:"version" json:"version"`       // 版本号（同一分镜内递增）
	IsActive         bool              `bson:"is_active" json:"is_active"`   // 是否为当前激活版本
	VideoURL         string            `bson:"video_url,omitempty" json:"video_url,omitempty"`
	ThumbnailURL     string            `bson:"thumbnail_url,omitempty" json:"thumbnail_url,omitempty"`
	DurationMS       int64             `bson:"duration_ms,omitempty" json:"duration_ms,omitempty"` // 实际时长（毫秒）
	Seed             int64             `bson:"seed,omitempty" json:"seed,omitempty"`
	GenerationConfig *GenerationConfig `bson:"generation_config,omitempty" json:"generation_config,omitempty"`
	Status           GenStatus         `bson:"status" json:"status"`
	ErrorMessage     string            `bson:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt        time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `bson:"updated_at" json:"updated_at"`
	DeletedAt        *time.Time        `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

// Collection 返回集合名称
func (v *VideoAsset) Collection() string { return "video_assets" }

// EnsureIndexes 创建和维护索引
func (v *VideoAsset) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(v.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "shot_id", Value: 1}, {Key: "version", Value: 1}},
			Options: options.Index().SetName("idx_shot_version"),
		},
		{
			Keys:    bson.D{{Key: "shot_id", Value: 1}, {Key: "is_active", Value: 1}},
			Options: options.Index().SetName("idx_shot_active"),
		},
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_project_status"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
