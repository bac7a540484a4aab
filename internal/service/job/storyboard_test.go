package job

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"playlet/internal/model/drama"
	jobmodel "playlet/internal/model/job"
)

const llmShotsJSON = `{"shots": [
	{"sequence": 1, "dialogue": "你回来了。", "image_prompt": "别墅客厅近景，男人背对镜头", "video_prompt": "男人缓缓转身", "character_name": "顾沉舟", "scene_name": "顾家别墅客厅"},
	{"sequence": 2, "dialogue": "", "image_prompt": "", "video_prompt": "空镜", "character_name": "", "scene_name": ""},
	{"sequence": 3, "dialogue": "嗯。", "image_prompt": "门口逆光女性剪影", "video_prompt": "女人走进画面", "character_name": "林晚晚", "scene_name": "未知场景"}
]}`

func TestStoryboardBasicExtraction(t *testing.T) {
	ctx := context.Background()

	Convey("分镜基础拆解", t, func() {
		env := newTestEnv()
		env.addProject("p1", "u1")
		env.addEpisode("e1", "p1", 1, "第一集", "顾沉舟推门而入，林晚晚站在窗边。")
		env.llm.response = llmShotsJSON

		enqueue := func() *jobmodel.Job {
			j, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeStoryboardBasicExtraction, StoryboardInput{
				ProjectID: "p1",
				EpisodeID: "e1",
			})
			So(err, ShouldBeNil)
			return j
		}

		Convey("拆解结果写入分镜表，缺提示词的分镜被过滤并重排镜号", func() {
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusCompleted)

			var result StoryboardResult
			So(json.Unmarshal([]byte(stored.ResultData), &result), ShouldBeNil)
			So(result.Count, ShouldEqual, 2)
			So(result.Shots[0].Sequence, ShouldEqual, 1)
			So(result.Shots[1].Sequence, ShouldEqual, 2)
			So(result.Shots[0].ShotID, ShouldNotBeEmpty)

			shots, err := env.shots.FindByEpisodeID(ctx, "e1")
			So(err, ShouldBeNil)
			So(len(shots), ShouldEqual, 2)
			So(shots[0].CharacterName, ShouldEqual, "顾沉舟")
			So(shots[0].Status, ShouldEqual, drama.GenStatusPending)
		})

		Convey("重新拆解会替换该集旧分镜", func() {
			env.shots.shots["old"] = &drama.Shot{ID: "old", ProjectID: "p1", EpisodeID: "e1", Sequence: 1, ImagePrompt: "旧分镜"}
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			shots, err := env.shots.FindByEpisodeID(ctx, "e1")
			So(err, ShouldBeNil)
			So(len(shots), ShouldEqual, 2)
			for _, shot := range shots {
				So(shot.ID, ShouldNotEqual, "old")
			}
		})

		Convey("所有分镜都被过滤时任务失败", func() {
			env.llm.response = `{"shots": [{"sequence": 1, "image_prompt": "  "}]}`
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusFailed)
			So(stored.ErrorMessage, ShouldContainSubstring, ErrNoUsableResult.Error())
		})

		Convey("剧本词数超出上限时任务失败且不调用模型", func() {
			env.episodes.episodes["e1"].ScriptContent = strings.Repeat("赵队长 走进 客厅\n", 40001)
			j := enqueue()
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusFailed)
			So(stored.ErrorMessage, ShouldContainSubstring, "词数超出上限")
			So(env.llm.calls, ShouldEqual, 0)
		})
	})
}

func TestStoryboardMatching(t *testing.T) {
	ctx := context.Background()

	Convey("分镜角色/场景匹配", t, func() {
		env := newTestEnv()
		env.addProject("p1", "u1")
		env.addEpisode("e1", "p1", 1, "第一集", "内容")
		env.characters.chars["c1"] = &drama.Character{ID: "c1", ProjectID: "p1", Name: "顾沉舟"}
		env.scenes.scenes["s1"] = &drama.Scene{ID: "s1", ProjectID: "p1", Name: "顾家别墅客厅"}

		env.shots.shots["sh1"] = &drama.Shot{
			ID: "sh1", ProjectID: "p1", EpisodeID: "e1", Sequence: 1,
			ImagePrompt: "x", CharacterName: "顾沉舟", SceneName: "顾家别墅客厅",
		}
		env.shots.shots["sh2"] = &drama.Shot{
			ID: "sh2", ProjectID: "p1", EpisodeID: "e1", Sequence: 2,
			ImagePrompt: "y", CharacterName: "路人甲", SceneName: "没有的场景",
		}

		enqueue := func(shotIDs []string) *jobmodel.Job {
			j, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeStoryboardMatching, StoryboardInput{
				ProjectID: "p1",
				EpisodeID: "e1",
				ShotIDs:   shotIDs,
			})
			So(err, ShouldBeNil)
			return j
		}

		Convey("按名称命中的分镜写回角色和场景ID，未命中保持未关联", func() {
			j := enqueue(nil)
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusCompleted)

			var result MatchingResult
			So(json.Unmarshal([]byte(stored.ResultData), &result), ShouldBeNil)
			So(result.Matched, ShouldEqual, 1)
			So(result.Unmatched, ShouldEqual, 1)

			So(env.shots.shots["sh1"].CharacterID, ShouldEqual, "c1")
			So(env.shots.shots["sh1"].SceneID, ShouldEqual, "s1")
			So(env.shots.shots["sh2"].CharacterID, ShouldBeEmpty)
			So(env.shots.shots["sh2"].SceneID, ShouldBeEmpty)
		})

		Convey("指定 shot_ids 时只匹配给定分镜", func() {
			j := enqueue([]string{"sh2"})
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			var result MatchingResult
			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(json.Unmarshal([]byte(stored.ResultData), &result), ShouldBeNil)
			So(result.Matched, ShouldEqual, 0)
			So(result.Unmatched, ShouldEqual, 1)
			So(env.shots.shots["sh1"].CharacterID, ShouldBeEmpty)
		})

		Convey("剧集没有分镜时任务失败", func() {
			So(env.shots.DeleteByEpisodeID(ctx, "e1"), ShouldBeNil)
			j := enqueue(nil)
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusFailed)
			So(stored.ErrorMessage, ShouldContainSubstring, ErrMissingPrerequisite.Error())
		})
	})
}

func TestStoryboardGeneration(t *testing.T) {
	ctx := context.Background()

	Convey("分镜生成（拆解+匹配一次完成）", t, func() {
		env := newTestEnv()
		env.addProject("p1", "u1")
		env.addEpisode("e1", "p1", 1, "第一集", "顾沉舟推门而入。")
		env.characters.chars["c1"] = &drama.Character{ID: "c1", ProjectID: "p1", Name: "顾沉舟"}
		env.scenes.scenes["s1"] = &drama.Scene{ID: "s1", ProjectID: "p1", Name: "顾家别墅客厅"}
		env.llm.response = llmShotsJSON

		j, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeStoryboardGeneration, StoryboardInput{
			ProjectID: "p1",
			EpisodeID: "e1",
		})
		So(err, ShouldBeNil)
		So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

		stored, _ := env.jobs.FindByID(ctx, j.ID)
		So(stored.Status, ShouldEqual, jobmodel.StatusCompleted)

		shots, err := env.shots.FindByEpisodeID(ctx, "e1")
		So(err, ShouldBeNil)
		So(len(shots), ShouldEqual, 2)
		So(shots[0].CharacterID, ShouldEqual, "c1")
		So(shots[0].SceneID, ShouldEqual, "s1")
		So(shots[1].CharacterID, ShouldBeEmpty)
	})
}

func TestBatchImageGeneration(t *testing.T) {
	ctx := context.Background()

	Convey("分镜首帧图批量生成", t, func() {
		env := newTestEnv()
		env.addProject("p1", "u1")
		env.credits.balances["u1"] = 100
		env.shots.shots["sh1"] = &drama.Shot{
			ID: "sh1", ProjectID: "p1", EpisodeID: "e1", Sequence: 1, ImagePrompt: "别墅客厅近景",
		}
		// 缺少提示词的分镜，批量里单独失败
		env.shots.shots["sh2"] = &drama.Shot{
			ID: "sh2", ProjectID: "p1", EpisodeID: "e1", Sequence: 2,
		}

		enqueue := func(shotIDs []string) *jobmodel.Job {
			j, err := env.svc.Enqueue(ctx, "u1", jobmodel.TypeBatchImageGeneration, BatchImageInput{
				ProjectID: "p1",
				ShotIDs:   shotIDs,
			})
			So(err, ShouldBeNil)
			return j
		}

		Convey("单个失败不打断批次，成功的分镜写回首帧图", func() {
			j := enqueue([]string{"sh1", "sh2"})
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusCompleted)

			var result BatchImageResult
			So(json.Unmarshal([]byte(stored.ResultData), &result), ShouldBeNil)
			So(result.Succeeded, ShouldResemble, []string{"sh1"})
			So(result.Failed, ShouldResemble, []string{"sh2"})

			So(env.shots.shots["sh1"].ImageURL, ShouldEqual, "https://cdn.example.com/projects/p1/shots/sh1/frame.jpg")
			So(env.shots.shots["sh1"].Status, ShouldEqual, drama.GenStatusCompleted)
			So(env.shots.shots["sh2"].ImageURL, ShouldBeEmpty)

			// 只有成功的分镜扣费
			balance, _ := env.credits.Balance(ctx, "u1")
			So(balance, ShouldEqual, 100-testImageCost)
		})

		Convey("全部失败时任务整体失败", func() {
			env.imageGen.err = errors.New("provider down")
			j := enqueue([]string{"sh1", "sh2"})
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusFailed)

			// sh1 扣了费也退了费
			balance, _ := env.credits.Balance(ctx, "u1")
			So(balance, ShouldEqual, 100)
			So(env.credits.refundCount(), ShouldEqual, 1)
		})

		Convey("引用其他项目的分镜在批量里单独失败", func() {
			env.addProject("p2", "u2")
			env.shots.shots["foreign"] = &drama.Shot{ID: "foreign", ProjectID: "p2", EpisodeID: "e9", ImagePrompt: "x"}

			j := enqueue([]string{"sh1", "foreign"})
			So(env.svc.ProcessJob(ctx, j), ShouldBeNil)

			var result BatchImageResult
			stored, _ := env.jobs.FindByID(ctx, j.ID)
			So(stored.Status, ShouldEqual, jobmodel.StatusCompleted)
			So(json.Unmarshal([]byte(stored.ResultData), &result), ShouldBeNil)
			So(result.Failed, ShouldResemble, []string{"foreign"})
		})
	})
}
