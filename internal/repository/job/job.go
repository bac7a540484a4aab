package job

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"playlet/internal/model/job"
)

// ErrNotClaimable 任务不处于可领取状态（已被其他执行者领取、已取消或已结束）
var ErrNotClaimable = errors.New("任务不可领取")

// Repository 任务仓库接口（供 service 与 worker 依赖）
type Repository interface {
	Create(ctx context.Context, j *job.Job) error
	FindByID(ctx context.Context, id string) (*job.Job, error)
	FindPending(ctx context.Context, limit int64) ([]*job.Job, error)
	FindByUserID(ctx context.Context, userID string, jobType job.Type, status job.Status, limit int64) ([]*job.Job, error)
	FindByProjectID(ctx context.Context, projectID string, jobType job.Type, limit int64) ([]*job.Job, error)
	Start(ctx context.Context, id string) (*job.Job, error)
	UpdateProgress(ctx context.Context, id string, progress int, message string) error
	Complete(ctx context.Context, id string, resultData string) error
	Fail(ctx context.Context, id string, errorMessage string) error
	Cancel(ctx context.Context, id string) error
	MarkImported(ctx context.Context, id string) error
}

// Repo 任务仓库
type Repo struct {
	coll *mongo.Collection
}

// NewRepo 创建任务仓库
func NewRepo(db *mongo.Database) *Repo {
	var j job.Job
	return &Repo{coll: db.Collection(j.Collection())}
}

// Create 创建任务（初始状态 pending，进度 0）
func (r *Repo) Create(ctx context.Context, j *job.Job) error {
	now := time.Now()
	j.Status = job.StatusPending
	j.Progress = 0
	j.CreatedAt = now
	j.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, j)
	return err
}

// FindByID 根据ID查询
func (r *Repo) FindByID(ctx context.Context, id string) (*job.Job, error) {
	var j job.Job
	if err := r.coll.FindOne(ctx, bson.M{"id": id, "deleted_at": nil}).Decode(&j); err != nil {
		return nil, err
	}
	return &j, nil
}

// FindPending 查询待执行任务（最早创建的优先）
func (r *Repo) FindPending(ctx context.Context, limit int64) ([]*job.Job, error) {
	filter := bson.M{"status": job.StatusPending, "deleted_at": nil}
	opts := options.Find().SetSort(bson.M{"created_at": 1}).SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var jobs []*job.Job
	if err := cur.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindByUserID 查询用户的任务，类型和状态为空时不过滤
func (r *Repo) FindByUserID(ctx context.Context, userID string, jobType job.Type, status job.Status, limit int64) ([]*job.Job, error) {
	filter := bson.M{"user_id": userID, "deleted_at": nil}
	if jobType != "" {
		filter["type"] = jobType
	}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var jobs []*job.Job
	if err := cur.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindByProjectID 查询项目的任务，类型为空时不过滤
func (r *Repo) FindByProjectID(ctx context.Context, projectID string, jobType job.Type, limit int64) ([]*job.Job, error) {
	filter := bson.M{"project_id": projectID, "deleted_at": nil}
	if jobType != "" {
		filter["type"] = jobType
	}
	opts := options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var jobs []*job.Job
	if err := cur.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Start 领取任务：pending -> processing 的原子检查置换
// 同一任务只有一个执行者能领取成功，其余拿到 ErrNotClaimable
func (r *Repo) Start(ctx context.Context, id string) (*job.Job, error) {
	now := time.Now()
	update := bson.M{"$set": bson.M{
		"status":     job.StatusProcessing,
		"started_at": now,
		"updated_at": now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var j job.Job
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"id": id, "status": job.StatusPending, "deleted_at": nil},
		update,
		opts,
	).Decode(&j)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotClaimable
		}
		return nil, err
	}
	return &j, nil
}

// UpdateProgress 更新进度（只增不减，过期的小值直接忽略）
func (r *Repo) UpdateProgress(ctx context.Context, id string, progress int, message string) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	updates := bson.M{
		"progress":   progress,
		"updated_at": time.Now(),
	}
	if message != "" {
		updates["progress_message"] = message
	}
	_, err := r.coll.UpdateOne(
		ctx,
		bson.M{"id": id, "status": job.StatusProcessing, "progress": bson.M{"$lt": progress}},
		bson.M{"$set": updates},
	)
	return err
}

// Complete 标记成功：写入结果、进度置满、清空错误信息
func (r *Repo) Complete(ctx context.Context, id string, resultData string) error {
	now := time.Now()
	_, err := r.coll.UpdateOne(
		ctx,
		bson.M{"id": id, "status": job.StatusProcessing},
		bson.M{
			"$set": bson.M{
				"status":      job.StatusCompleted,
				"progress":    100,
				"result_data": resultData,
				"finished_at": now,
				"updated_at":  now,
			},
			"$unset": bson.M{"error_message": ""},
		},
	)
	return err
}

// Fail 标记失败：写入错误信息、清空结果
func (r *Repo) Fail(ctx context.Context, id string, errorMessage string) error {
	now := time.Now()
	_, err := r.coll.UpdateOne(
		ctx,
		bson.M{"id": id, "status": job.StatusProcessing},
		bson.M{
			"$set": bson.M{
				"status":        job.StatusFailed,
				"error_message": errorMessage,
				"finished_at":   now,
				"updated_at":    now,
			},
			"$unset": bson.M{"result_data": ""},
		},
	)
	return err
}

// Cancel 取消任务：只有尚未开始执行的任务可以取消
func (r *Repo) Cancel(ctx context.Context, id string) error {
	now := time.Now()
	res, err := r.coll.UpdateOne(
		ctx,
		bson.M{"id": id, "status": job.StatusPending, "deleted_at": nil},
		bson.M{"$set": bson.M{
			"status":      job.StatusCancelled,
			"finished_at": now,
			"updated_at":  now,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotClaimable
	}
	return nil
}

// MarkImported 标记提取结果已导入实体表
func (r *Repo) MarkImported(ctx context.Context, id string) error {
	_, err := r.coll.UpdateOne(
		ctx,
		bson.M{"id": id, "status": job.StatusCompleted},
		bson.M{"$set": bson.M{
			"is_imported": true,
			"updated_at":  time.Now(),
		}},
	)
	return err
}
