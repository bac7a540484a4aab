package drama

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"playlet/internal/model/drama"
)

// ProjectRepository 项目仓库接口（供 service 层依赖）
type ProjectRepository interface {
	Create(ctx context.Context, project *drama.Project) error
	FindByID(ctx context.Context, id string) (*drama.Project, error)
	FindByUserID(ctx context.Context, userID string) ([]*drama.Project, error)
	Update(ctx context.Context, id string, updates bson.M) error
	Delete(ctx context.Context, id string) error
}

// ProjectRepo 项目仓库
type ProjectRepo struct {
	coll *mongo.Collection
}

// NewProjectRepo 创建项目仓库
func NewProjectRepo(db *mongo.Database) *ProjectRepo {
	var p drama.Project
	return &ProjectRepo{coll: db.Collection(p.Collection())}
}

// Create 创建项目
func (r *ProjectRepo) Create(ctx context.Context, project *drama.Project) error {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, project)
	return err
}

// FindByID 根据ID查询
func (r *ProjectRepo) FindByID(ctx context.Context, id string) (*drama.Project, error) {
	var project drama.Project
	if err := r.coll.FindOne(ctx, bson.M{"id": id, "deleted_at": nil}).Decode(&project); err != nil {
		return nil, err
	}
	return &project, nil
}

// FindByUserID 查询用户的所有项目
func (r *ProjectRepo) FindByUserID(ctx context.Context, userID string) ([]*drama.Project, error) {
	filter := bson.M{"user_id": userID, "deleted_at": nil}
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var projects []*drama.Project
	if err := cur.All(ctx, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Update 部分更新
func (r *ProjectRepo) Update(ctx context.Context, id string, updates bson.M) error {
	updates["updated_at"] = time.Now()
	_, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": updates})
	return err
}

// Delete 软删除
func (r *ProjectRepo) Delete(ctx context.Context, id string) error {
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
