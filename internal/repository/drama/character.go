package drama

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"playlet/internal/model/drama"
)

// CharacterRepository 角色仓库接口
type CharacterRepository interface {
	Create(ctx context.Context, character *drama.Character) error
	CreateMany(ctx context.Context, characters []*drama.Character) error
	FindByID(ctx context.Context, id string) (*drama.Character, error)
	FindByProjectID(ctx context.Context, projectID string) ([]*drama.Character, error)
	FindByProjectIDAndNames(ctx context.Context, projectID string, names []string) ([]*drama.Character, error)
	Update(ctx context.Context, id string, updates bson.M) error
	Delete(ctx context.Context, id string) error
}

// CharacterRepo 角色仓库
type CharacterRepo struct {
	coll *mongo.Collection
}

// NewCharacterRepo 创建角色仓库
func NewCharacterRepo(db *mongo.Database) *CharacterRepo {
	var c drama.Character
	return &CharacterRepo{coll: db.Collection(c.Collection())}
}

// Create 创建角色
func (r *CharacterRepo) Create(ctx context.Context, character *drama.Character) error {
	now := time.Now()
	character.CreatedAt = now
	character.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, character)
	return err
}

// CreateMany 批量创建角色（提取结果导入时使用）
func (r *CharacterRepo) CreateMany(ctx context.Context, characters []*drama.Character) error {
	if len(characters) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]interface{}, 0, len(characters))
	for _, c := range characters {
		c.CreatedAt = now
		c.UpdatedAt = now
		docs = append(docs, c)
	}
	_, err := r.coll.InsertMany(ctx, docs)
	return err
}

// FindByID 根据ID查询
func (r *CharacterRepo) FindByID(ctx context.Context, id string) (*drama.Character, error) {
	var character drama.Character
	if err := r.coll.FindOne(ctx, bson.M{"id": id, "deleted_at": nil}).Decode(&character); err != nil {
		return nil, err
	}
	return &character, nil
}

// FindByProjectID 查询项目的所有角色
func (r *CharacterRepo) FindByProjectID(ctx context.Context, projectID string) ([]*drama.Character, error) {
	filter := bson.M{"project_id": projectID, "deleted_at": nil}
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var characters []*drama.Character
	if err := cur.All(ctx, &characters); err != nil {
		return nil, err
	}
	return characters, nil
}

// FindByProjectIDAndNames 按名称列表查询（分镜匹配时使用）
func (r *CharacterRepo) FindByProjectIDAndNames(ctx context.Context, projectID string, names []string) ([]*drama.Character, error) {
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

	var characters []*drama.Character
	if err := cur.All(ctx, &characters); err != nil {
		return nil, err
	}
	return characters, nil
}

// Update 部分更新
func (r *CharacterRepo) Update(ctx context.Context, id string, updates bson.M) error {
	updates["updated_at"] = time.Now()
	_, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": updates})
	return err
}

// Delete 软删除
func (r *CharacterRepo) Delete(ctx context.Context, id string) error {
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
