package drama

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"playlet/internal/model/drama"
)

// VideoAssetRepository 视频资产仓库接口
type VideoAssetRepository interface {
	Create(ctx context.Context, asset *drama.VideoAsset) error
	FindByID(ctx context.Context, id string) (*drama.VideoAsset, error)
	FindByIDs(ctx context.Context, ids []string) ([]*drama.VideoAsset, error)
	FindByShotID(ctx context.Context, shotID string) ([]*drama.VideoAsset, error)
	FindActiveByShotID(ctx context.Context, shotID string) (*drama.VideoAsset, error)
	NextVersion(ctx context.Context, shotID string) (int, error)
	SetActive(ctx context.Context, shotID, assetID string) error
	DeleteWithPromotion(ctx context.Context, shotID, assetID string) error
	Update(ctx context.Context, id string, updates bson.M) error
}

// VideoAssetRepo 视频资产仓库
type VideoAssetRepo struct {
	coll *mongo.Collection
}

// NewVideoAssetRepo 创建视频资产仓库
func NewVideoAssetRepo(db *mongo.Database) *VideoAssetRepo {
	var v drama.VideoAsset
	return &VideoAssetRepo{coll: db.Collection(v.Collection())}
}

// Create 创建视频资产（占位记录，版本号由调用方通过 NextVersion 分配）
func (r *VideoAssetRepo) Create(ctx context.Context, asset *drama.VideoAsset) error {
	now := time.Now()
	asset.CreatedAt = now
	asset.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, asset)
	return err
}

// FindByID 根据ID查询
func (r *VideoAssetRepo) FindByID(ctx context.Context, id string) (*drama.VideoAsset, error) {
	var asset drama.VideoAsset
	if err := r.coll.FindOne(ctx, bson.M{"id": id, "deleted_at": nil}).Decode(&asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// FindByIDs 按ID列表批量查询
func (r *VideoAssetRepo) FindByIDs(ctx context.Context, ids []string) ([]*drama.VideoAsset, error) {
	filter := bson.M{"id": bson.M{"$in": ids}, "deleted_at": nil}
	cur, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var assets []*drama.VideoAsset
	if err := cur.All(ctx, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// FindByShotID 查询分镜的所有视频版本（新版本在前）
func (r *VideoAssetRepo) FindByShotID(ctx context.Context, shotID string) ([]*drama.VideoAsset, error) {
	filter := bson.M{"shot_id": shotID, "deleted_at": nil}
	opts := options.Find().SetSort(bson.M{"version": -1})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var assets []*drama.VideoAsset
	if err := cur.All(ctx, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// FindActiveByShotID 查询分镜当前激活的视频
func (r *VideoAssetRepo) FindActiveByShotID(ctx context.Context, shotID string) (*drama.VideoAsset, error) {
	var asset drama.VideoAsset
	filter := bson.M{"shot_id": shotID, "is_active": true, "deleted_at": nil}
	if err := r.coll.FindOne(ctx, filter).Decode(&asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// NextVersion 计算分镜的下一个版本号（当前最大版本+1，首个版本为1）
func (r *VideoAssetRepo) NextVersion(ctx context.Context, shotID string) (int, error) {
	var latest drama.VideoAsset
	opts := options.FindOne().SetSort(bson.M{"version": -1})
	err := r.coll.FindOne(ctx, bson.M{"shot_id": shotID, "deleted_at": nil}, opts).Decode(&latest)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 1, nil
		}
		return 0, err
	}
	return latest.Version + 1, nil
}

// SetActive 切换激活版本：先取消同分镜的其它激活位，再点亮目标资产
func (r *VideoAssetRepo) SetActive(ctx context.Context, shotID, assetID string) error {
	now := time.Now()
	if _, err := r.coll.UpdateMany(
		ctx,
		bson.M{"shot_id": shotID, "is_active": true, "id": bson.M{"$ne": assetID}},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": now}},
	); err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(
		ctx,
		bson.M{"id": assetID, "shot_id": shotID, "deleted_at": nil},
		bson.M{"$set": bson.M{"is_active": true, "updated_at": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("视频资产不存在: %s", assetID)
	}
	return nil
}

// DeleteWithPromotion 软删除指定版本；若删除的是激活版本，则将剩余最新版本顶为激活
func (r *VideoAssetRepo) DeleteWithPromotion(ctx context.Context, shotID, assetID string) error {
	asset, err := r.FindByID(ctx, assetID)
	if err != nil {
		return err
	}
	if asset.ShotID != shotID {
		return fmt.Errorf("视频资产不属于该分镜: %s", assetID)
	}

	now := time.Now()
	if _, err := r.coll.UpdateOne(
		ctx,
		bson.M{"id": assetID},
		bson.M{"$set": bson.M{"deleted_at": now, "updated_at": now, "is_active": false}},
	); err != nil {
		return err
	}
	if !asset.IsActive {
		return nil
	}

	// 被删的是激活版本，剩余版本中取最新的一个顶上
	var latest drama.VideoAsset
	opts := options.FindOne().SetSort(bson.M{"version": -1})
	err = r.coll.FindOne(ctx, bson.M{"shot_id": shotID, "deleted_at": nil}, opts).Decode(&latest)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return err
	}
	_, err = r.coll.UpdateOne(
		ctx,
		bson.M{"id": latest.ID},
		bson.M{"$set": bson.M{"is_active": true, "updated_at": now}},
	)
	return err
}

// Update 部分更新
func (r *VideoAssetRepo) Update(ctx context.Context, id string, updates bson.M) error {
	updates["updated_at"] = time.Now()
	_, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": updates})
	return err
}
