package drama

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"playlet/internal/model/drama"
)

// EpisodeRepository 剧集仓库接口
type EpisodeRepository interface {
	Create(ctx context.Context, episode *drama.Episode) error
	FindByID(ctx context.Context, id string) (*drama.Episode, error)
	FindByIDs(ctx context.Context, ids []string) ([]*drama.Episode, error)
	FindByProjectID(ctx context.Context, projectID string) ([]*drama.Episode, error)
	Update(ctx context.Context, id string, updates bson.M) error
	Delete(ctx context.Context, id string) error
}

// EpisodeRepo 剧集仓库
type EpisodeRepo struct {
	coll *mongo.Collection
}

// NewEpisodeRepo 创建剧集仓库
func NewEpisodeRepo(db *mongo.Database) *EpisodeRepo {
	var e drama.Episode
	return &EpisodeRepo{coll: db.Collection(e.Collection())}
}

// Create 创建剧集
func (r *EpisodeRepo) Create(ctx context.Context, episode *drama.Episode) error {
	now := time.Now()
	episode.CreatedAt = now
	episode.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, episode)
	return err
}

// FindByID 根据ID查询
func (r *EpisodeRepo) FindByID(ctx context.Context, id string) (*drama.Episode, error) {
	var episode drama.Episode
	if err := r.coll.FindOne(ctx, bson.M{"id": id, "deleted_at": nil}).Decode(&episode); err != nil {
		return nil, err
	}
	return &episode, nil
}

// FindByIDs 按ID列表批量查询，返回顺序与库内 sequence 一致
func (r *EpisodeRepo) FindByIDs(ctx context.Context, ids []string) ([]*drama.Episode, error) {
	filter := bson.M{"id": bson.M{"$in": ids}, "deleted_at": nil}
	opts := options.Find().SetSort(bson.M{"sequence": 1})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var episodes []*drama.Episode
	if err := cur.All(ctx, &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

// FindByProjectID 查询项目的所有剧集（按集序排序）
func (r *EpisodeRepo) FindByProjectID(ctx context.Context, projectID string) ([]*drama.Episode, error) {
	filter := bson.M{"project_id": projectID, "deleted_at": nil}
	opts := options.Find().SetSort(bson.M{"sequence": 1})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var episodes []*drama.Episode
	if err := cur.All(ctx, &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

// Update 部分更新
func (r *EpisodeRepo) Update(ctx context.Context, id string, updates bson.M) error {
	updates["updated_at"] = time.Now()
	_, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": updates})
	return err
}

// Delete 软删除
func (r *EpisodeRepo) Delete(ctx context.Context, id string) error {
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
