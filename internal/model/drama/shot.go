package drama

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Shot 分镜实体
// 分镜先由基础提取任务从剧本切出（台词+画面描述），再由匹配任务
// 关联到已导入的角色和场景，最后由批量图片任务生成分镜图
type Shot struct {
	ID            string     `bson:"id" json:"id"`                                             // 分镜ID（UUID）
	ProjectID     string     `bson:"project_id" json:"project_id"`                             // 所属项目ID
	EpisodeID     string     `bson:"episode_id" json:"episode_id"`                             // 所属剧集ID
	Sequence      int        `bson:"sequence" json:"sequence"`                                 // 分镜序号（从1开始）
	Dialogue      string     `bson:"dialogue,omitempty" json:"dialogue,omitempty"`             // 台词/旁白
	ImagePrompt   string     `bson:"image_prompt,omitempty" json:"image_prompt,omitempty"`     // 分镜画面提示词
	VideoPrompt   string     `bson:"video_prompt,omitempty" json:"video_prompt,omitempty"`     // 分镜动态提示词
	CharacterName string     `bson:"character_name,omitempty" json:"character_name,omitempty"` // 拆解出的角色名（匹配前）
	SceneName     string     `bson:"scene_name,omitempty" json:"scene_name,omitempty"`         // 拆解出的场景名（匹配前）
	CharacterID   string     `bson:"character_id,omitempty" json:"character_id,omitempty"`     // 匹配到的角色ID
	SceneID       string     `bson:"scene_id,omitempty" json:"scene_id,omitempty"`             // 匹配到的场景ID
	ImageURL      string     `bson:"image_url,omitempty" json:"image_url,omitempty"`           // 分镜图URL
	Seed          int64      `bson:"seed,omitempty" json:"seed,omitempty"`
	Status        GenStatus  `bson:"status" json:"status"`
	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

// Collection 返回集合名称
func (s *Shot) Collection() string { return "shots" }

// EnsureIndexes 创建和维护索引
func (s *Shot) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(s.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "episode_id", Value: 1}, {Key: "sequence", Value: 1}},
			Options: options.Index().SetName("idx_episode_sequence"),
		},
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}},
			Options: options.Index().SetName("idx_project_id"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
