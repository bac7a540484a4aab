package job

import "errors"

// 任务处理错误分类
// 处理器返回错误，由派发器统一转换为任务失败，错误信息写入 error_message
var (
	// ErrUnauthorized 归属校验失败（项目/剧集/资产不属于发起用户）
	ErrUnauthorized = errors.New("无权访问该资源")

	// ErrInvalidInput 输入参数缺失、为空或超出限制
	ErrInvalidInput = errors.New("任务输入参数无效")

	// ErrMissingPrerequisite 前置产物缺失（如衍生视角图缺少主布局图）
	ErrMissingPrerequisite = errors.New("前置产物缺失")

	// ErrNoScriptContent 所有剧集的剧本内容为空
	ErrNoScriptContent = errors.New("剧本内容为空，无可提取内容")

	// ErrNoUsableResult 模型有输出但过滤后没有可用实体
	ErrNoUsableResult = errors.New("模型输出中没有可用的提取结果")

	// ErrProviderFailure 生成服务调用失败或返回无可用结果
	ErrProviderFailure = errors.New("生成服务调用失败")

	// ErrUploadFailure 产物转存失败（视频为致命错误，图片降级为临时地址）
	ErrUploadFailure = errors.New("产物上传失败")

	// ErrUnknownType 未注册的任务类型
	ErrUnknownType = errors.New("未知的任务类型")
)
