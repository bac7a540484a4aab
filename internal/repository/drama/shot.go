package drama

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"playlet/internal/model/drama"
)

// ShotRepository 分镜仓库接口
type ShotRepository interface {
	Create(ctx context.Context, shot *drama.Shot) error
	CreateMany(ctx context.Context, shots []*drama.Shot) error
	FindByID(ctx context.Context, id string) (*drama.Shot, error)
	FindByIDs(ctx context.Context, ids []string) ([]*drama.Shot, error)
	FindByEpisodeID(ctx context.Context, episodeID string) ([]*drama.Shot, error)
	Update(ctx context.Context, id string, updates bson.M) error
	DeleteByEpisodeID(ctx context.Context, episodeID string) error
	Delete(ctx context.Context, id string) error
}

// ShotRepo 分镜仓库
type ShotRepo struct {
	coll *mongo.Collection
}

// NewShotRepo 创建分镜仓库
func NewShotRepo(db *mongo.Database) *ShotRepo {
	var s drama.Shot
	return &ShotRepo{coll: db.Collection(s.Collection())}
}

// Create 创建分镜
func (r *ShotRepo) Create(ctx context.Context, shot *drama.Shot) error {
	now := time.Now()
	shot.CreatedAt = now
	shot.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, shot)
	return err
}

// CreateMany 批量创建分镜（分镜生成结果导入时使用）
func (r *ShotRepo) CreateMany(ctx context.Context, shots []*drama.Shot) error {
	if len(shots) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]interface{}, 0, len(shots))
	for _, s := range shots {
		s.CreatedAt = now
		s.UpdatedAt = now
		docs = append(docs, s)
	}
	_, err := r.coll.InsertMany(ctx, docs)
	return err
}

// FindByID 根据ID查询
func (r *ShotRepo) FindByID(ctx context.Context, id string) (*drama.Shot, error) {
	var shot drama.Shot
	if err := r.coll.FindOne(ctx, bson.M{"id": id, "deleted_at": nil}).Decode(&shot); err != nil {
		return nil, err
	}
	return &shot, nil
}

// FindByIDs 按ID列表批量查询
func (r *ShotRepo) FindByIDs(ctx context.Context, ids []string) ([]*drama.Shot, error) {
	filter := bson.M{"id": bson.M{"$in": ids}, "deleted_at": nil}
	cur, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var shots []*drama.Shot
	if err := cur.All(ctx, &shots); err != nil {
		return nil, err
	}
	return shots, nil
}

// FindByEpisodeID 查询剧集的所有分镜（按镜号排序）
func (r *ShotRepo) FindByEpisodeID(ctx context.Context, episodeID string) ([]*drama.Shot, error) {
	filter := bson.M{"episode_id": episodeID, "deleted_at": nil}
	opts := options.Find().SetSort(bson.M{"sequence": 1})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var shots []*drama.Shot
	if err := cur.All(ctx, &shots); err != nil {
		return nil, err
	}
	return shots, nil
}

// Update 部分更新
func (r *ShotRepo) Update(ctx context.Context, id string, updates bson.M) error {
	updates["updated_at"] = time.Now()
	_, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": updates})
	return err
}

// DeleteByEpisodeID 软删除剧集的全部分镜（重新生成分镜前清场）
func (r *ShotRepo) DeleteByEpisodeID(ctx context.Context, episodeID string) error {
	now := time.Now()
	_, err := r.coll.UpdateMany(
		ctx,
		bson.M{"episode_id": episodeID, "deleted_at": nil},
		bson.M{"$set": bson.M{"deleted_at": now, "updated_at": now}},
	)
	return err
}

// Delete 软删除
func (r *ShotRepo) Delete(ctx context.Context, id string) error {
	_, err := r.coll.UpdateOne(
		ctx,
		bson.M{"id": id},
		bson.M{"$set": bson.M{
			"deleted_at": time.Now(),
			"updated_at": time.Now(),
		}},
	)
	return err
}
