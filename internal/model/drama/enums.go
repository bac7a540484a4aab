package drama

// GenStatus 生成类资产状态（用于 CharacterImage, SceneImage, Shot, VideoAsset）
type GenStatus string

const (
	GenStatusPending    GenStatus = "pending"    // 占位创建，尚未生成
	GenStatusProcessing GenStatus = "processing" // 生成中
	GenStatusCompleted  GenStatus = "completed"  // 已生成，URL 可用
	GenStatusFailed     GenStatus = "failed"     // 生成失败
)

// String 返回状态的字符串表示
func (s GenStatus) String() string {
	return string(s)
}

// SceneImageType 场景图片类型
// master_layout 是场景主视角图；quarter_view 是基于主视角图生图派生的侧视角图
type SceneImageType string

const (
	SceneImageTypeMasterLayout SceneImageType = "master_layout"
	SceneImageTypeQuarterView  SceneImageType = "quarter_view"
)

// String 返回类型的字符串表示
func (t SceneImageType) String() string {
	return string(t)
}

// ProjectStatus 项目状态
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusArchived ProjectStatus = "archived"
)

// String 返回状态的字符串表示
func (s ProjectStatus) String() string {
	return string(s)
}
