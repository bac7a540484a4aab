package drama

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Character 角色实体
// 由提取任务提出、用户确认导入后落库
type Character struct {
	ID          string     `bson:"id" json:"id"`                                       // 角色ID（UUID）
	ProjectID   string     `bson:"project_id" json:"project_id"`                       // 所属项目ID
	Name        string     `bson:"name" json:"name"`                                   // 角色姓名
	Personality string     `bson:"personality,omitempty" json:"personality,omitempty"` // 性格简述
	Appearance  string     `bson:"appearance,omitempty" json:"appearance,omitempty"`   // 固定外貌描述
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

// Collection 返回集合名称
func (c *Character) Collection() string { return "characters" }

// EnsureIndexes 创建和维护索引
func (c *Character) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(c.Collection())
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

// CharacterImage 角色造型图片（一个角色可有多个造型版本，至多一个激活）
// 创建时只有 label 和 image_prompt，占位状态；图片生成任务完成后回填 URL
type CharacterImage struct {
	ID           string     `bson:"id" json:"id"`                                         // 图片ID（UUID）
	CharacterID  string     `bson:"character_id" json:"character_id"`                     // 所属角色ID
	ProjectID    string     `bson:"project_id" json:"project_id"`                         // 所属项目ID（冗余，便于校验归属）
	Label        string     `bson:"label" json:"label"`                                   // 造型名称，如"战损""常服"
	ImagePrompt  string     `bson:"image_prompt,omitempty" json:"image_prompt,omitempty"` // 图片生成提示词
	ImageURL     string     `bson:"image_url,omitempty" json:"image_url,omitempty"`       // 生成成功后的图片URL
	ThumbnailURL string     `bson:"thumbnail_url,omitempty" json:"thumbnail_url,omitempty"`
	Seed         int64      `bson:"seed,omitempty" json:"seed,omitempty"` // 生成服务返回的种子
	IsActive     bool       `bson:"is_active" json:"is_active"`           // 是否为当前激活造型（同一角色至多一个）
	Status       GenStatus  `bson:"status" json:"status"`                 // 生成状态
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

// Collection 返回集合名称
func (ci *CharacterImage) Collection() string { return "character_images" }

// EnsureIndexes 创建和维护索引
func (ci *CharacterImage) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ci.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "character_id", Value: 1}, {Key: "is_active", Value: 1}},
			Options: options.Index().SetName("idx_character_active"),
		},
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}},
			Options: options.Index().SetName("idx_project_id"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
