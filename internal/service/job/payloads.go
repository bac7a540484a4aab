package job

// 各任务类型的输入与结果载荷
// 序列化为 JSON 字符串后存入 Job.InputData / Job.ResultData

// ExtractionInput 角色/场景提取任务输入
type ExtractionInput struct {
	ProjectID  string   `json:"project_id"`
	EpisodeIDs []string `json:"episode_ids"`
}

// CharacterStyle 提取出的角色造型
type CharacterStyle struct {
	Label       string `json:"label"`        // 造型名称
	ImagePrompt string `json:"image_prompt"` // 生图提示词
}

// ExtractedCharacter 提取出的角色
type ExtractedCharacter struct {
	Name        string           `json:"name"`
	Personality string           `json:"personality"` // 性格简述
	Appearance  string           `json:"appearance"`  // 固定外貌特征
	Styles      []CharacterStyle `json:"styles"`      // 2-5 个造型
}

// CharacterExtractionResult 角色提取结果
type CharacterExtractionResult struct {
	Characters []ExtractedCharacter `json:"characters"`
	Count      int                  `json:"count"`
}

// ExtractedScene 提取出的场景（仅视觉描述，不含角色和剧情）
type ExtractedScene struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SceneExtractionResult 场景提取结果
type SceneExtractionResult struct {
	Scenes []ExtractedScene `json:"scenes"`
	Count  int              `json:"count"`
}

// ImageGenerationInput 角色图/场景图生成任务输入
// ImageID 指向已创建的占位图片记录，重新生成时原地覆盖其 URL 和种子
type ImageGenerationInput struct {
	ProjectID   string `json:"project_id"`
	CharacterID string `json:"character_id,omitempty"`
	SceneID     string `json:"scene_id,omitempty"`
	ImageID     string `json:"image_id"`
}

// ImageGenerationResult 图片生成结果
type ImageGenerationResult struct {
	ImageID  string `json:"image_id"`
	ImageURL string `json:"image_url"`
	Seed     int64  `json:"seed,omitempty"`
}

// StoryboardInput 分镜类任务输入
type StoryboardInput struct {
	ProjectID string   `json:"project_id"`
	EpisodeID string   `json:"episode_id"`
	ShotIDs   []string `json:"shot_ids,omitempty"` // 仅 matching 使用
}

// ExtractedShot 拆解出的分镜
type ExtractedShot struct {
	ShotID        string `json:"shot_id,omitempty"` // 写库后回填
	Sequence      int    `json:"sequence"`
	Dialogue      string `json:"dialogue"`
	ImagePrompt   string `json:"image_prompt"`
	VideoPrompt   string `json:"video_prompt"`
	CharacterName string `json:"character_name,omitempty"` // 匹配前的角色名
	SceneName     string `json:"scene_name,omitempty"`     // 匹配前的场景名
	CharacterID   string `json:"character_id,omitempty"`   // 匹配后的角色ID
	SceneID       string `json:"scene_id,omitempty"`       // 匹配后的场景ID
}

// StoryboardResult 分镜拆解/生成结果
type StoryboardResult struct {
	Shots []ExtractedShot `json:"shots"`
	Count int             `json:"count"`
}

// MatchingResult 分镜匹配结果
type MatchingResult struct {
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
}

// BatchImageInput 分镜首帧图批量生成任务输入
type BatchImageInput struct {
	ProjectID string   `json:"project_id"`
	ShotIDs   []string `json:"shot_ids"`
}

// BatchImageResult 批量生图结果
type BatchImageResult struct {
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`
	Count     int      `json:"count"`
}

// VideoGenerationInput 视频生成任务输入
// ShotID 仅 shot_video_generation 使用（先创建占位资产再生成）
type VideoGenerationInput struct {
	ProjectID string `json:"project_id"`
	ShotID    string `json:"shot_id,omitempty"`
	AssetID   string `json:"asset_id"`
}

// VideoGenerationResult 视频生成结果
type VideoGenerationResult struct {
	AssetID      string `json:"asset_id"`
	VideoURL     string `json:"video_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

// BatchVideoInput 视频批量生成任务输入
type BatchVideoInput struct {
	ProjectID string   `json:"project_id"`
	AssetIDs  []string `json:"asset_ids"`
}

// BatchVideoResult 批量视频生成结果
type BatchVideoResult struct {
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`
	TotalCost int64    `json:"total_cost"`
}

// ExportInput 成片导出任务输入，视频顺序以调用方给定的ID顺序为准
type ExportInput struct {
	ProjectID string   `json:"project_id"`
	VideoIDs  []string `json:"video_ids"`
}

// ExportClip 成片清单中的一个片段
type ExportClip struct {
	URL        string `json:"url"`
	DurationMS int64  `json:"duration_ms"`
}

// ExportResult 成片导出清单（只做编单，不做拼接）
type ExportResult struct {
	Clips           []ExportClip `json:"clips"`
	TotalDurationMS int64        `json:"total_duration_ms"`
	Count           int          `json:"count"`
}
