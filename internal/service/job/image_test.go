package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"playlet/internal/model/drama"
	jobmodel "playlet/internal/model/job"
)

func TestCharacterImageGeneration(t *testing.T) {
	ctx := context.Background()

	Convey("角色造型图生成", t, func() {
		env := newTestEnv()
		p := env.addProject("p1", "u1")
		p.ArtStylePrompt = "赛博朋克插画风"
		env.credits.balances["u1"] = 100
		env.characters.chars["c1"] = &drama.Character{ID: "c1", ProjectID: "p1", Name: "顾沉舟"}
		env.charImages.images["img1"] = &drama.CharacterImage{
			ID:          "img1",
			CharacterID: "c1",
			ProjectID:   "p1",
			Label:       "日常装",
			ImagePrompt: "黑色西装的年轻总裁",
			Status:      drama.GenStatusPending,
		}

		enqueue := func() *jobmodel.Job {
			j, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeCharacterImageGeneration, ImageGenerationInput{
				ProjectID:   "p1",
				CharacterID: "c1",
				ImageID:     "img1",
			})
			So(err, ShouldBeNil)
			return j
		}

		Convey("生成成功后图片记录写回永久地址和种子，扣费一次", func() {
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusCompleted)

			img := env.charImages.images["img1"]
			So(img.ImageURL, ShouldEqual, "https://cdn.example.com/projects/p1/characters/c1/img1.jpg")
			So(img.Seed, ShouldEqual, 42)
			So(img.Status, ShouldEqual, drama.GenStatusCompleted)

			balance, _ := env.credits.Balance(ctx, "u1")
			So(balance, ShouldEqual, 100-testImageCost)

			var result ImageGenerationResult
			So(json.Unmarshal([]byte(stored.ResultData), &result), ShouldBeNil)
			So(result.ImageID, ShouldEqual, "img1")
			So(result.ImageURL, ShouldEqual, img.ImageURL)
		})

		Convey("提示词拼接项目统一画风", func() {
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			So(env.imageGen.lastReq, ShouldNotBeNil)
			So(env.imageGen.lastReq.Prompt, ShouldContainSubstring, "黑色西装的年轻总裁")
			So(env.imageGen.lastReq.Prompt, ShouldContainSubstring, "赛博朋克插画风")
		})

		Convey("生成服务失败时按笔退款，任务失败", func() {
			env.imageGen.err = errors.New("provider 500")
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusFailed)
			So(stored.ErrorMessage, ShouldContainSubstring, ErrProviderFailure.Error())

			balance, _ := env.credits.Balance(ctx, "u1")
			So(balance, ShouldEqual, 100)
			So(env.credits.refundCount(), ShouldEqual, 1)
		})

		Convey("转存失败降级使用临时地址，任务成功且不退款", func() {
			env.uploader.failFromURL = true
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusCompleted)

			img := env.charImages.images["img1"]
			So(img.ImageURL, ShouldEqual, "https://ark.example.com/tmp/img.jpg")
			So(env.credits.refundCount(), ShouldEqual, 0)

			balance, _ := env.credits.Balance(ctx, "u1")
			So(balance, ShouldEqual, 100-testImageCost)
		})

		Convey("余额不足时任务失败且不发起生成调用", func() {
			env.credits.balances["u1"] = testImageCost - 1
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusFailed)
			So(env.imageGen.calls, ShouldEqual, 0)
		})

		Convey("造型缺少提示词时任务失败", func() {
			env.charImages.images["img1"].ImagePrompt = "  "
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusFailed)
			So(env.imageGen.calls, ShouldEqual, 0)
		})
	})
}

func TestSceneImageGeneration(t *testing.T) {
	ctx := context.Background()

	Convey("场景图生成", t, func() {
		env := newTestEnv()
		env.addProject("p1", "u1")
		env.credits.balances["u1"] = 100
		env.scenes.scenes["s1"] = &drama.Scene{ID: "s1", ProjectID: "p1", Name: "顾家别墅客厅"}

		Convey("主布局图走文生图", func() {
			env.sceneImages.images["si1"] = &drama.SceneImage{
				ID:          "si1",
				SceneID:     "s1",
				ProjectID:   "p1",
				ImageType:   drama.SceneImageTypeMasterLayout,
				ImagePrompt: "挑高客厅全景",
				Status:      drama.GenStatusPending,
			}
			j, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeSceneImageGeneration, ImageGenerationInput{
				ProjectID: "p1",
				SceneID:   "s1",
				ImageID:   "si1",
			})
			So(err, ShouldBeNil)
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusCompleted)
			So(env.imageGen.lastReq.ReferenceImageURL, ShouldBeEmpty)
			So(env.sceneImages.images["si1"].Status, ShouldEqual, drama.GenStatusCompleted)
		})

		Convey("衍生视角图必须以激活的主布局图为参考", func() {
			env.sceneImages.images["si2"] = &drama.SceneImage{
				ID:          "si2",
				SceneID:     "s1",
				ProjectID:   "p1",
				ImageType:   drama.SceneImageTypeQuarterView,
				ImagePrompt: "四分之三视角",
				Status:      drama.GenStatusPending,
			}
			j, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeSceneImageGeneration, ImageGenerationInput{
				ProjectID: "p1",
				SceneID:   "s1",
				ImageID:   "si2",
			})
			So(err, ShouldBeNil)

			Convey("没有激活的主布局图时直接失败，不调用生成也不扣费", func() {
				So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

				stored, _ := env.jobs.FindByID(ctx, j.ID)
				So(stored.Status, ShouldEqual, jobmodel.StatusFailed)
				So(stored.ErrorMessage, ShouldContainSubstring, ErrMissingPrerequisite.Error())
				So(env.imageGen.calls, ShouldEqual, 0)

				balance, _ := env.credits.Balance(ctx, "u1")
				So(balance, ShouldEqual, 100)
			})

			Convey("主布局图存在但还没有 URL 时同样失败", func() {
				env.sceneImages.images["master"] = &drama.SceneImage{
					ID:        "master",
					SceneID:   "s1",
					ProjectID: "p1",
					ImageType: drama.SceneImageTypeMasterLayout,
					IsActive:  true,
					Status:    drama.GenStatusPending,
				}
				So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

				stored, _ := env.jobs.FindByID(ctx, j.ID)
				So(stored.Status, ShouldEqual, jobmodel.StatusFailed)
				So(env.imageGen.calls, ShouldEqual, 0)
			})

			Convey("主布局图就绪后走图生图", func() {
				env.sceneImages.images["master"] = &drama.SceneImage{
					ID:        "master",
					SceneID:   "s1",
					ProjectID: "p1",
					ImageType: drama.SceneImageTypeMasterLayout,
					ImageURL:  "https://cdn.example.com/projects/p1/scenes/s1/master.jpg",
					IsActive:  true,
					Status:    drama.GenStatusCompleted,
				}
				So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

				stored, _ := env.jobs.FindByID(ctx, j.ID)
				So(stored.Status, ShouldEqual, jobmodel.StatusCompleted)
				So(env.imageGen.lastReq.ReferenceImageURL, ShouldEqual, "https://cdn.example.com/projects/p1/scenes/s1/master.jpg")
			})
		})
	})
}
