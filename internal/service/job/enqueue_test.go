package job

import (
	"context"
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	jobmodel "playlet/internal/model/job"
)

func TestEnqueueValidation(t *testing.T) {
	ctx := context.Background()

	Convey("入队校验", t, func() {
		env := newTestEnv()
		env.addProject("p1", "u1")
		env.addEpisode("e1", "p1", 1, "第一集", "内容")

		Convey("未知任务类型拒绝入队", func() {
			_, err := env.svc.Enqueue(ctx, "u1", jobmodel.Type("alchemy"), ExtractionInput{})
			So(errors.Is(err, ErrUnknownType), ShouldBeTrue)
		})

		Convey("项目不存在或不属于用户时拒绝入队", func() {
			_, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeCharacterExtraction, ExtractionInput{
				ProjectID:  "ghost",
				EpisodeIDs: []string{"e1"},
			})
			So(errors.Is(err, ErrUnauthorized), ShouldBeTrue)

			_, err = env.svc.Enqueue(ctx, "u2", jobmodel.TypeCharacterExtraction, ExtractionInput{
				ProjectID:  "p1",
				EpisodeIDs: []string{"e1"},
			})
			So(errors.Is(err, ErrUnauthorized), ShouldBeTrue)
		})

		Convey("提取任务的剧集数量受上限约束", func() {
			ids := make([]string, MaxEpisodesPerExtraction+1)
			for i := range ids {
				ids[i] = fmt.Sprintf("e%d", i)
			}
			_, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeSceneExtraction, ExtractionInput{
				ProjectID:  "p1",
				EpisodeIDs: ids,
			})
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
		})

		Convey("必填字段缺失时拒绝入队", func() {
			_, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeCharacterImageGeneration, ImageGenerationInput{
				ProjectID: "p1",
			})
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)

			_, err = env.svc.Enqueue(ctx, "u1", jobmodel.TypeShotVideoGeneration, VideoGenerationInput{
				ProjectID: "p1",
			})
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)

			_, err = env.svc.Enqueue(ctx, "u1", jobmodel.TypeVideoGeneration, VideoGenerationInput{
				ProjectID: "p1",
			})
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)

			_, err = env.svc.Enqueue(ctx, "u1", jobmodel.TypeBatchImageGeneration, BatchImageInput{
				ProjectID: "p1",
			})
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)

			_, err = env.svc.Enqueue(ctx, "u1", jobmodel.TypeFinalVideoExport, ExportInput{
				ProjectID: "p1",
			})
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
		})

		Convey("批量任务受规模上限约束", func() {
			shotIDs := make([]string, MaxShotsPerBatch+1)
			for i := range shotIDs {
				shotIDs[i] = fmt.Sprintf("sh%d", i)
			}
			_, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeBatchImageGeneration, BatchImageInput{
				ProjectID: "p1",
				ShotIDs:   shotIDs,
			})
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)

			assetIDs := make([]string, MaxAssetsPerBatch+1)
			for i := range assetIDs {
				assetIDs[i] = fmt.Sprintf("a%d", i)
			}
			_, err = env.svc.Enqueue(ctx, "u1", jobmodel.TypeBatchVideoGeneration, BatchVideoInput{
				ProjectID: "p1",
				AssetIDs:  assetIDs,
			})
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
		})

		Convey("校验失败时不会留下任务记录", func() {
			_, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeCharacterExtraction, ExtractionInput{
				ProjectID:  "p1",
				EpisodeIDs: []string{"e1", "ghost"},
			})
			So(err, ShouldNotBeNil)

			list, err := env.svc.ListByUser(ctx, "u1", "", "", 10)
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 0)
		})

		Convey("入队成功的任务带有完整的初始字段", func() {
			j, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeCharacterExtraction, ExtractionInput{
				ProjectID:  "p1",
				EpisodeIDs: []string{"e1"},
			})
			So(err, ShouldBeNil)
			So(j.ID, ShouldNotBeEmpty)
			So(j.ProjectID, ShouldEqual, "p1")
			So(j.Status, ShouldEqual, jobmodel.StatusPending)
			So(j.Progress, ShouldEqual, 0)
			So(j.InputData, ShouldContainSubstring, `"project_id":"p1"`)
		})
	})
}
