package drama

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Project 短剧项目实体
// 一个项目对应一部短剧，下挂剧集、角色、场景、分镜和视频资产
type Project struct {
	ID             string        `bson:"id" json:"id"`                                                 // 项目ID（UUID）
	UserID         string        `bson:"user_id" json:"user_id"`                                       // 所属用户ID
	Title          string        `bson:"title" json:"title"`                                           // 项目标题
	ArtStylePrompt string        `bson:"art_style_prompt,omitempty" json:"art_style_prompt,omitempty"` // 全局画风提示词，拼接在所有图片提示词之后
	Status         ProjectStatus `bson:"status" json:"status"`                                         // 状态
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time    `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

// Collection 返回集合名称
func (p *Project) Collection() string { return "projects" }

// EnsureIndexes 创建和维护索引
func (p *Project) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(p.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_user_created"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}

// Episode 剧集实体
// 剧本文本按集存储，提取类任务按 episode_ids 拼接剧本
type Episode struct {
	ID            string     `bson:"id" json:"id"`                                             // 剧集ID（UUID）
	ProjectID     string     `bson:"project_id" json:"project_id"`                             // 所属项目ID
	Sequence      int        `bson:"sequence" json:"sequence"`                                 // 集数（从1开始）
	Title         string     `bson:"title" json:"title"`                                       // 剧集标题
	ScriptContent string     `bson:"script_content,omitempty" json:"script_content,omitempty"` // 剧本文本
	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

// Collection 返回集合名称
func (e *Episode) Collection() string { return "episodes" }

// EnsureIndexes 创建和维护索引
func (e *Episode) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(e.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "sequence", Value: 1}},
			Options: options.Index().SetName("idx_project_sequence"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
