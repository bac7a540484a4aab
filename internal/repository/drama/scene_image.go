package drama

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"playlet/internal/model/drama"
)

// SceneImageRepository 场景图仓库接口
type SceneImageRepository interface {
	Create(ctx context.Context, image *drama.SceneImage) error
	FindByID(ctx context.Context, id string) (*drama.SceneImage, error)
	FindBySceneID(ctx context.Context, sceneID string) ([]*drama.SceneImage, error)
	FindActiveBySceneAndType(ctx context.Context, sceneID string, imageType drama.SceneImageType) (*drama.SceneImage, error)
	SetActive(ctx context.Context, sceneID string, imageType drama.SceneImageType, imageID string) error
	Update(ctx context.Context, id string, updates bson.M) error
	Delete(ctx context.Context, id string) error
}

// SceneImageRepo 场景图仓库
type SceneImageRepo struct {
	coll *mongo.Collection
}

// NewSceneImageRepo 创建场景图仓库
func NewSceneImageRepo(db *mongo.Database) *SceneImageRepo {
	var s drama.SceneImage
	return &SceneImageRepo{coll: db.Collection(s.Collection())}
}

// Create 创建场景图记录
func (r *SceneImageRepo) Create(ctx context.Context, image *drama.SceneImage) error {
	now := time.Now()
	image.CreatedAt = now
	image.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, image)
	return err
}

// FindByID 根据ID查询
func (r *SceneImageRepo) FindByID(ctx context.Context, id string) (*drama.SceneImage, error) {
	var image drama.SceneImage
	if err := r.coll.FindOne(ctx, bson.M{"id": id, "deleted_at": nil}).Decode(&image); err != nil {
		return nil, err
	}
	return &image, nil
}

// FindBySceneID 查询场景的所有图片版本
func (r *SceneImageRepo) FindBySceneID(ctx context.Context, sceneID string) ([]*drama.SceneImage, error) {
	filter := bson.M{"scene_id": sceneID, "deleted_at": nil}
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var images []*drama.SceneImage
	if err := cur.All(ctx, &images); err != nil {
		return nil, err
	}
	return images, nil
}

// FindActiveBySceneAndType 查询场景指定类型当前激活的图片
// 衍生视角图以主布局图为参考，生成前需要先拿到激活的主布局图
func (r *SceneImageRepo) FindActiveBySceneAndType(ctx context.Context, sceneID string, imageType drama.SceneImageType) (*drama.SceneImage, error) {
	var image drama.SceneImage
	filter := bson.M{
		"scene_id":   sceneID,
		"image_type": imageType,
		"is_active":  true,
		"deleted_at": nil,
	}
	if err := r.coll.FindOne(ctx, filter).Decode(&image); err != nil {
		return nil, err
	}
	return &image, nil
}

// SetActive 切换激活版本（激活位按场景+图片类型维度互斥）
func (r *SceneImageRepo) SetActive(ctx context.Context, sceneID string, imageType drama.SceneImageType, imageID string) error {
	now := time.Now()
	if _, err := r.coll.UpdateMany(
		ctx,
		bson.M{"scene_id": sceneID, "image_type": imageType, "is_active": true, "id": bson.M{"$ne": imageID}},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": now}},
	); err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(
		ctx,
		bson.M{"id": imageID, "scene_id": sceneID, "image_type": imageType, "deleted_at": nil},
		bson.M{"$set": bson.M{"is_active": true, "updated_at": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("场景图不存在: %s", imageID)
	}
	return nil
}

// Update 部分更新
func (r *SceneImageRepo) Update(ctx context.Context, id string, updates bson.M) error {
	updates["updated_at"] = time.Now()
	_, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": updates})
	return err
}

// Delete 软删除
func (r *SceneImageRepo) Delete(ctx context.Context, id string) error {
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
