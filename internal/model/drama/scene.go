package drama

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Scene 场景实体
// 描述只包含视觉要素（环境、光线、陈设），不含角色和剧情
type Scene struct {
	ID          string     `bson:"id" json:"id"`                                       // 场景ID（UUID）
	ProjectID   string     `bson:"project_id" json:"project_id"`                       // 所属项目ID
	Name        string     `bson:"name" json:"name"`                                   // 场景名称
	Description string     `bson:"description,omitempty" json:"description,omitempty"` // 视觉描述
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

// Collection 返回集合名称
func (s *Scene) Collection() string { return "scenes" }

// EnsureIndexes 创建和维护索引
func (s *Scene) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(s.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}},
			Options: options.Index().SetName("idx_project_id"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}

// SceneImage 场景图片（一个场景可有多张图，主视角 + 派生视角，至多一张激活）
// quarter_view 必须在同场景的 master_layout 有 URL 之后才能生成（图生图）
type SceneImage struct {
	ID           string         `bson:"id" json:"id"`                 // 图片ID（UUID）
	SceneID      string         `bson:"scene_id" json:"scene_id"`     // 所属场景ID
	ProjectID    string         `bson:"project_id" json:"project_id"` // 所属项目ID（冗余，便于校验归属）
	ImageType    SceneImageType `bson:"image_type" json:"image_type"` // master_layout / quarter_view
	ImagePrompt  string         `bson:"image_prompt,omitempty" json:"image_prompt,omitempty"`
	ImageURL     string         `bson:"image_url,omitempty" json:"image_url,omitempty"`
	ThumbnailURL string         `bson:"thumbnail_url,omitempty" json:"thumbnail_url,omitempty"`
	Seed         int64          `bson:"seed,omitempty" json:"seed,omitempty"`
	IsActive     bool           `bson:"is_active" json:"is_active"` // 同一场景同一类型至多一张激活
	Status       GenStatus      `bson:"status" json:"status"`
	CreatedAt    time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `bson:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time     `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

// Collection 返回集合名称
func (si *SceneImage) Collection() string { return "scene_images" }

// EnsureIndexes 创建和维护索引
func (si *SceneImage) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(si.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "scene_id", Value: 1}, {Key: "image_type", Value: 1}},
			Options: options.Index().SetName("idx_scene_type"),
		},
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}},
			Options: options.Index().SetName("idx_project_id"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
