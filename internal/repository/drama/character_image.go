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

// CharacterImageRepository 角色图仓库接口
type CharacterImageRepository interface {
	Create(ctx context.Context, image *drama.CharacterImage) error
	FindByID(ctx context.Context, id string) (*drama.CharacterImage, error)
	FindByCharacterID(ctx context.Context, characterID string) ([]*drama.CharacterImage, error)
	FindActiveByCharacterID(ctx context.Context, characterID string) (*drama.CharacterImage, error)
	SetActive(ctx context.Context, characterID, imageID string) error
	Update(ctx context.Context, id string, updates bson.M) error
	Delete(ctx context.Context, id string) error
}

// CharacterImageRepo 角色图仓库
type CharacterImageRepo struct {
	coll *mongo.Collection
}

// NewCharacterImageRepo 创建角色图仓库
func NewCharacterImageRepo(db *mongo.Database) *CharacterImageRepo {
	var c drama.CharacterImage
	return &CharacterImageRepo{coll: db.Collection(c.Collection())}
}

// Create 创建角色图记录
func (r *CharacterImageRepo) Create(ctx context.Context, image *drama.CharacterImage) error {
	now := time.Now()
	image.CreatedAt = now
	image.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, image)
	return err
}

// FindByID 根据ID查询
func (r *CharacterImageRepo) FindByID(ctx context.Context, id string) (*drama.CharacterImage, error) {
	var image drama.CharacterImage
	if err := r.coll.FindOne(ctx, bson.M{"id": id, "deleted_at": nil}).Decode(&image); err != nil {
		return nil, err
	}
	return &image, nil
}

// FindByCharacterID 查询角色的所有图片版本
func (r *CharacterImageRepo) FindByCharacterID(ctx context.Context, characterID string) ([]*drama.CharacterImage, error) {
	filter := bson.M{"character_id": characterID, "deleted_at": nil}
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var images []*drama.CharacterImage
	if err := cur.All(ctx, &images); err != nil {
		return nil, err
	}
	return images, nil
}

// FindActiveByCharacterID 查询角色当前激活的图片
func (r *CharacterImageRepo) FindActiveByCharacterID(ctx context.Context, characterID string) (*drama.CharacterImage, error) {
	var image drama.CharacterImage
	filter := bson.M{"character_id": characterID, "is_active": true, "deleted_at": nil}
	if err := r.coll.FindOne(ctx, filter).Decode(&image); err != nil {
		return nil, err
	}
	return &image, nil
}

// SetActive 切换激活版本：先取消同角色的其它激活位，再点亮目标图片
func (r *CharacterImageRepo) SetActive(ctx context.Context, characterID, imageID string) error {
	now := time.Now()
	if _, err := r.coll.UpdateMany(
		ctx,
		bson.M{"character_id": characterID, "is_active": true, "id": bson.M{"$ne": imageID}},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": now}},
	); err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(
		ctx,
		bson.M{"id": imageID, "character_id": characterID, "deleted_at": nil},
		bson.M{"$set": bson.M{"is_active": true, "updated_at": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("角色图不存在: %s", imageID)
	}
	return nil
}

// Update 部分更新
func (r *CharacterImageRepo) Update(ctx context.Context, id string, updates bson.M) error {
	updates["updated_at"] = time.Now()
	_, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": updates})
	return err
}

// Delete 软删除
func (r *CharacterImageRepo) Delete(ctx context.Context, id string) error {
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
