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

func TestShotVideoGeneration(t *testing.T) {
	ctx := context.Background()

	Convey("分镜视频生成", t, func() {
		env := newTestEnv()
		env.addProject("p1", "u1")
		env.credits.balances["u1"] = 300
		env.shots.shots["sh1"] = &drama.Shot{
			ID:          "sh1",
			ProjectID:   "p1",
			EpisodeID:   "e1",
			Sequence:    1,
			VideoPrompt: "镜头缓慢推近，男人转身",
			ImageURL:    "https://cdn.example.com/projects/p1/shots/sh1/frame.jpg",
		}

		enqueue := func() *jobmodel.Job {
			j, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeShotVideoGeneration, VideoGenerationInput{
				ProjectID: "p1",
				ShotID:    "sh1",
			})
			So(err, ShouldBeNil)
			return j
		}

		findAsset := func() *drama.VideoAsset {
			assets, err := env.assets.FindByShotID(ctx, "sh1")
			So(err, ShouldBeNil)
			So(len(assets), ShouldEqual, 1)
			return assets[0]
		}

		Convey("成功路径：创建新版本占位资产并完整写回", func() {
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusCompleted)

			asset := findAsset()
			So(asset.Version, ShouldEqual, 1)
			So(asset.IsActive, ShouldBeFalse)
			So(asset.Status, ShouldEqual, drama.GenStatusCompleted)
			So(asset.VideoURL, ShouldEqual, "https://cdn.example.com/projects/p1/shots/sh1/"+asset.ID+".mp4")
			So(asset.ThumbnailURL, ShouldNotBeEmpty)
			So(asset.DurationMS, ShouldEqual, 5200)
			So(asset.Seed, ShouldEqual, 7)

			// 默认 5 秒视频按秒计费
			balance, _ := env.credits.Balance(ctx, "u1")
			So(balance, ShouldEqual, 300-5*testVideoCostPerSecond)

			var result VideoGenerationResult
			So(json.Unmarshal([]byte(stored.ResultData), &result), ShouldBeNil)
			So(result.AssetID, ShouldEqual, asset.ID)
			So(result.DurationMS, ShouldEqual, 5200)
		})

		Convey("生成参数取自分镜的提示词和首帧图", func() {
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			So(env.videoGen.lastReq, ShouldNotBeNil)
			So(env.videoGen.lastReq.Prompt, ShouldEqual, "镜头缓慢推近，男人转身")
			So(env.videoGen.lastReq.ReferenceImageURL, ShouldEqual, "https://cdn.example.com/projects/p1/shots/sh1/frame.jpg")
			So(env.videoGen.lastReq.DurationSeconds, ShouldEqual, defaultVideoDurationSeconds)
		})

		Convey("生成服务失败时退款并标记资产失败", func() {
			env.videoGen.err = errors.New("provider 500")
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusFailed)
			So(stored.ErrorMessage, ShouldContainSubstring, ErrProviderFailure.Error())

			asset := findAsset()
			So(asset.Status, ShouldEqual, drama.GenStatusFailed)
			So(asset.ErrorMessage, ShouldNotBeEmpty)
			So(asset.VideoURL, ShouldBeEmpty)

			balance, _ := env.credits.Balance(ctx, "u1")
			So(balance, ShouldEqual, 300)
			So(env.credits.refundCount(), ShouldEqual, 1)
		})

		Convey("视频转存失败按致命处理：退款且任务失败", func() {
			env.uploader.failFromURL = true
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusFailed)
			So(stored.ErrorMessage, ShouldContainSubstring, ErrUploadFailure.Error())

			asset := findAsset()
			So(asset.Status, ShouldEqual, drama.GenStatusFailed)

			balance, _ := env.credits.Balance(ctx, "u1")
			So(balance, ShouldEqual, 300)
			So(env.credits.refundCount(), ShouldEqual, 1)
		})

		Convey("封面提取失败不影响任务结果", func() {
			env.thumb.frameErr = errors.New("ffmpeg not available")
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusCompleted)

			asset := findAsset()
			So(asset.Status, ShouldEqual, drama.GenStatusCompleted)
			So(asset.ThumbnailURL, ShouldBeEmpty)
			So(env.credits.refundCount(), ShouldEqual, 0)
		})

		Convey("时长探测失败时回退到请求时长", func() {
			env.thumb.durationMS = 0
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			asset := findAsset()
			So(asset.DurationMS, ShouldEqual, int64(defaultVideoDurationSeconds)*1000)
		})

		Convey("分镜没有首帧图时不扣费直接失败", func() {
			env.shots.shots["sh1"].ImageURL = ""
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusFailed)
			So(stored.ErrorMessage, ShouldContainSubstring, ErrMissingPrerequisite.Error())
			So(env.videoGen.calls, ShouldEqual, 0)

			balance, _ := env.credits.Balance(ctx, "u1")
			So(balance, ShouldEqual, 300)
		})

		Convey("重复生成同一分镜产生递增版本号", func() {
			So(env.svc.ProcessJob(ctx, enqueue()), ShouldBeNil)
			So(env.svc.ProcessJob(ctx, enqueue()), ShouldBeNil)

			assets, err := env.assets.FindByShotID(ctx, "sh1")
			So(err, ShouldBeNil)
			So(len(assets), ShouldEqual, 2)
			So(assets[0].Version, ShouldEqual, 2)
			So(assets[1].Version, ShouldEqual, 1)
		})
	})
}

func TestVideoGenerationFromAsset(t *testing.T) {
	ctx := context.Background()

	Convey("已有资产的视频生成（重试路径）", t, func() {
		env := newTestEnv()
		env.addProject("p1", "u1")
		env.credits.balances["u1"] = 500

		env.assets.assets["a1"] = &drama.VideoAsset{
			ID:        "a1",
			ProjectID: "p1",
			ShotID:    "sh1",
			Version:   1,
			Status:    drama.GenStatusFailed,
			GenerationConfig: &drama.GenerationConfig{
				Prompt:            "雨夜街头，镜头横移",
				ReferenceImageURL: "https://cdn.example.com/frame.jpg",
				DurationSeconds:   10,
			},
		}

		Convey("生成参数从资产行加载，重试是确定性的", func() {
			j, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeVideoGeneration, VideoGenerationInput{
				ProjectID: "p1",
				AssetID:   "a1",
			})
			So(err, ShouldBeNil)
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusCompleted)
			So(env.videoGen.lastReq.Prompt, ShouldEqual, "雨夜街头，镜头横移")
			So(env.videoGen.lastReq.DurationSeconds, ShouldEqual, 10)

			// 10 秒视频按秒计费
			balance, _ := env.credits.Balance(ctx, "u1")
			So(balance, ShouldEqual, 500-10*testVideoCostPerSecond)
		})

		Convey("资产缺少首帧参考图时失败且不扣费", func() {
			env.assets.assets["a1"].GenerationConfig.ReferenceImageURL = ""
			j, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeVideoGeneration, VideoGenerationInput{
				ProjectID: "p1",
				AssetID:   "a1",
			})
			So(err, ShouldBeNil)
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusFailed)
			So(stored.ErrorMessage, ShouldContainSubstring, ErrMissingPrerequisite.Error())

			balance, _ := env.credits.Balance(ctx, "u1")
			So(balance, ShouldEqual, 500)
		})
	})
}

func TestBatchVideoGeneration(t *testing.T) {
	ctx := context.Background()

	Convey("视频批量生成", t, func() {
		env := newTestEnv()
		env.addProject("p1", "u1")
		env.credits.balances["u1"] = 1000

		env.assets.assets["a1"] = &drama.VideoAsset{
			ID: "a1", ProjectID: "p1", ShotID: "sh1", Version: 1,
			GenerationConfig: &drama.GenerationConfig{
				Prompt:            "镜头一",
				ReferenceImageURL: "https://cdn.example.com/f1.jpg",
				DurationSeconds:   5,
			},
		}
		// 缺少生成参数的资产，批量里单独失败
		env.assets.assets["a2"] = &drama.VideoAsset{ID: "a2", ProjectID: "p1", ShotID: "sh2", Version: 1}

		Convey("单个失败不打断批次，结果分别记录", func() {
			j, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeBatchVideoGeneration, BatchVideoInput{
				ProjectID: "p1",
				AssetIDs:  []string{"a1", "a2"},
			})
			So(err, ShouldBeNil)
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusCompleted)

			var result BatchVideoResult
			So(json.Unmarshal([]byte(stored.ResultData), &result), ShouldBeNil)
			So(result.Succeeded, ShouldResemble, []string{"a1"})
			So(result.Failed, ShouldResemble, []string{"a2"})
			So(result.TotalCost, ShouldEqual, 5*testVideoCostPerSecond)
		})

		Convey("零时长配置按兜底时长计费，汇总口径与扣费一致", func() {
			env.assets.assets["a3"] = &drama.VideoAsset{
				ID: "a3", ProjectID: "p1", ShotID: "sh3", Version: 1,
				GenerationConfig: &drama.GenerationConfig{
					Prompt:            "镜头三",
					ReferenceImageURL: "https://cdn.example.com/f3.jpg",
				},
			}
			j, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeBatchVideoGeneration, BatchVideoInput{
				ProjectID: "p1",
				AssetIDs:  []string{"a3"},
			})
			So(err, ShouldBeNil)
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			var result BatchVideoResult
			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(json.Unmarshal([]byte(stored.ResultData), &result), ShouldBeNil)
			So(result.Succeeded, ShouldResemble, []string{"a3"})
			So(result.TotalCost, ShouldEqual, defaultVideoDurationSeconds*testVideoCostPerSecond)

			balance, _ := env.credits.Balance(ctx, "u1")
			So(balance, ShouldEqual, 1000-result.TotalCost)
		})

		Convey("全部失败时任务整体失败", func() {
			env.videoGen.err = errors.New("provider down")
			j, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeBatchVideoGeneration, BatchVideoInput{
				ProjectID: "p1",
				AssetIDs:  []string{"a1", "a2"},
			})
			So(err, ShouldBeNil)
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusFailed)

			// a1 扣了费也退了费
			balance, _ := env.credits.Balance(ctx, "u1")
			So(balance, ShouldEqual, 1000)
		})
	})
}
