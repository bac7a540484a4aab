package drama

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"playlet/internal/model/drama"
)

// SceneRepository 场景仓库接口
type SceneRepository interface {
	Create(ctx context.Context, scene *drama.Scene) error
	CreateMany(ctx context.Context, scenes []*drama.Scene) error
	FindByID(ctx context.Context, id string) (*drama.Scene, error)
	FindByProjectID(ctx context.Context, projectID string) ([]*drama.Scene, error)
	FindByProjectIDAndNames(ctx context.Context, projectID string, names []string) ([]*drama.Scene, error)
	Update(ctx context.Context, id string, updates bson.M) error
	Delete(ctx context.Context, id string) error
}

// SceneRepo 场景仓库
type SceneRepo struct {
	coll *mongo.Collection
}

// NewSceneRepo 创建场景仓库
func NewSceneRepo(db *mongo.Database) *SceneRepo {
	var s drama.Scene
	return &SceneRepo{coll: db.Collection(s.Collection())}
}

// Create 创建场景
func (r *SceneRepo) Create(ctx context.Context, scene *drama.Scene) error {
	now := time.Now()
	scene.CreatedAt = now
	scene.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, scene)
	return err
}

// CreateMany 批量创建场景（提取结果导入时使用）
func (r *SceneRepo) CreateMany(ctx context.Context, scenes []*drama.Scene) error {
	if len(scenes) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]interface{}, 0, len(scenes))
	for _, s := range scenes {
		s.CreatedAt = now
		s.UpdatedAt = now
		docs = append(docs, s)
	}
	_, err := r.coll.InsertMany(ctx, docs)
	return err
}

// FindByID 根据ID查询
func (r *SceneRepo) FindByID(ctx context.Context, id string) (*drama.Scene, error) {
	var scene drama.Scene
	if err := r.coll.FindOne(ctx, bson.M{"id": id, "deleted_at": nil}).Decode(&scene); err != nil {
		return nil, err
	}
	return &scene, nil
}

// FindByProjectID 查询项目的所有场景
func (r *SceneRepo) FindByProjectID(ctx context.Context, projectID string) ([]*drama.Scene, error) {
	filter := bson.M{"project_id": projectID, "deleted_at": nil}
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var scenes []*drama.Scene
	if err := cur.All(ctx, &scenes); err != nil {
		return nil, err
	}
	return scenes, nil
}

// FindByProjectIDAndNames 按名称列表查询（分镜匹配时使用）
func (r *SceneRepo) FindByProjectIDAndNames(ctx context.Context, projectID string, names []string) ([]*drama.Scene, error) {
	filter := bson.M{
		"project_id": projectID,
		"name":       bson.M{"$in": names},
		"deleted_at": nil,
	}
	cur, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var scenes []*drama.Scene
	if err := cur.All(ctx, &scenes); err != nil {
		return nil, err
	}
	return scenes, nil
}

// Update 部分更新
func (r *SceneRepo) Update(ctx context.Context, id string, updates bson.M) error {
	updates["updated_at"] = time.Now()
	_, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": updates})
	return err
}

// Delete 软删除
func (r *SceneRepo) Delete(ctx context.Context, id string) error {
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
