package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"playlet/internal/model/credit"
	"playlet/internal/model/drama"
	"playlet/internal/model/job"
)

// EnsureIndexes 创建所有模型的索引
// 应用启动时统一调用，模型通过 Model 接口自描述索引
func EnsureIndexes(db *mongo.Database) error {
	ctx := context.Background()

	models := []Model{
		&drama.Project{},
		&drama.Episode{},
		&drama.Character{},
		&drama.CharacterImage{},
		&drama.Scene{},
		&drama.SceneImage{},
		&drama.Shot{},
		&drama.VideoAsset{},
		&job.Job{},
		&credit.Account{},
		&credit.Transaction{},
	}

	return EnsureAllIndexes(ctx, db, models...)
}
