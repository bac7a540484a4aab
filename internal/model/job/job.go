package job

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Type 任务类型
type Type string

const (
	TypeCharacterExtraction       Type = "character_extraction"        // 角色提取
	TypeSceneExtraction           Type = "scene_extraction"            // 场景提取
	TypeCharacterImageGeneration  Type = "character_image_generation"  // 角色图生成
	TypeSceneImageGeneration      Type = "scene_image_generation"      // 场景图生成
	TypeStoryboardGeneration      Type = "storyboard_generation"       // 分镜生成（单集完整流程）
	TypeStoryboardBasicExtraction Type = "storyboard_basic_extraction" // 分镜基础拆解
	TypeStoryboardMatching        Type = "storyboard_matching"         // 分镜角色/场景匹配
	TypeBatchImageGeneration      Type = "batch_image_generation"      // 分镜首帧图批量生成
	TypeVideoGeneration           Type = "video_generation"            // 单资产视频生成
	TypeShotVideoGeneration       Type = "shot_video_generation"       // 分镜视频生成（含占位资产创建）
	TypeBatchVideoGeneration      Type = "batch_video_generation"      // 视频批量生成
	TypeFinalVideoExport          Type = "final_video_export"          // 成片导出清单
)

// AllTypes 返回全部有效任务类型
func AllTypes() []Type {
	return []Type{
		TypeCharacterExtraction,
		TypeSceneExtraction,
		TypeCharacterImageGeneration,
		TypeSceneImageGeneration,
		TypeStoryboardGeneration,
		TypeStoryboardBasicExtraction,
		TypeStoryboardMatching,
		TypeBatchImageGeneration,
		TypeVideoGeneration,
		TypeShotVideoGeneration,
		TypeBatchVideoGeneration,
		TypeFinalVideoExport,
	}
}

// Valid 判断任务类型是否有效
func (t Type) Valid() bool {
	for _, v := range AllTypes() {
		if t == v {
			return true
		}
	}
	return false
}

func (t Type) String() string { return string(t) }

// Status 任务状态
type Status string

const (
	StatusPending    Status = "pending"    // 等待执行
	StatusProcessing Status = "processing" // 执行中
	StatusCompleted  Status = "completed"  // 成功完成
	StatusFailed     Status = "failed"     // 执行失败
	StatusCancelled  Status = "cancelled"  // 执行前取消
)

// Terminal 判断是否终态（终态不可再迁移）
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

func (s Status) String() string { return string(s) }

// Job 异步生成任务
// InputData/ResultData 存储序列化后的 JSON 字符串，具体结构由任务类型决定
type Job struct {
	ID              string     `bson:"id" json:"id"`                                                 // 任务ID（UUID）
	UserID          string     `bson:"user_id" json:"user_id"`                                       // 发起用户ID
	ProjectID       string     `bson:"project_id" json:"project_id"`                                 // 关联项目ID
	Type            Type       `bson:"type" json:"type"`                                             // 任务类型
	Status          Status     `bson:"status" json:"status"`                                         // 当前状态
	Progress        int        `bson:"progress" json:"progress"`                                     // 进度百分比 0-100
	ProgressMessage string     `bson:"progress_message,omitempty" json:"progress_message,omitempty"` // 当前阶段说明
	InputData       string     `bson:"input_data" json:"input_data"`                                 // 输入参数（JSON字符串）
	ResultData      string     `bson:"result_data,omitempty" json:"result_data,omitempty"`           // 成功结果（仅 completed）
	ErrorMessage    string     `bson:"error_message,omitempty" json:"error_message,omitempty"`       // 失败原因（仅 failed）
	IsImported      bool       `bson:"is_imported" json:"is_imported"`                               // 提取结果是否已导入实体表
	StartedAt       *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	FinishedAt      *time.Time `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
	CreatedAt       time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

// Collection 返回集合名称
func (j *Job) Collection() string { return "generation_jobs" }

// EnsureIndexes 创建和维护索引
func (j *Job) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(j.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			// 轮询拉取：按状态取最早创建的任务
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_status_created"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_user_created"),
		},
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "type", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_project_type_created"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
