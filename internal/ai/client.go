package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"playlet/internal/ai/component"
	"playlet/internal/config"
)

// Client 大模型客户端
// 职责: 封装提取类任务需要的大模型调用（单轮，返回完整文本）
type Client struct {
	cfg       *config.AIConfig
	chatModel model.ChatModel
}

// NewClient 创建大模型客户端
func NewClient(ctx context.Context, cfg *config.AIConfig) (*Client, error) {
	chatModel, err := component.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	return &Client{
		cfg:       cfg,
		chatModel: chatModel,
	}, nil
}

// CompletionRequest 单轮补全请求
type CompletionRequest struct {
	System  string             // 系统提示词
	Prompt  string             // 用户提示词
	Options *CompletionOptions // 可选参数覆盖
}

// CompletionOptions 单次调用的参数覆盖
type CompletionOptions struct {
	Temperature float64 // >0 时覆盖配置中的温度
	MaxTokens   int     // >0 时覆盖配置中的输出 token 上限
	JSONOnly    bool    // 要求只返回 JSON（通过提示词约束，配合 jsonx 容错解析）
	Reasoning   bool    // 开启深度思考模式（Ark thinking 开关；推理文本由 jsonx 提取时剥离）
}

// jsonOnlyInstruction 追加在系统提示词末尾的 JSON 约束
// 即便模型开了推理模式，最终输出也必须落在一个 JSON 对象内
const jsonOnlyInstruction = "\n\n输出要求：只返回一个合法的 JSON 对象，不要输出任何解释、前言或 markdown 代码块标记。"

// Complete 同步执行单轮补全，返回模型输出的完整文本
func (c *Client) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	system := req.System
	opts := req.Options
	if opts == nil {
		opts = &CompletionOptions{}
	}
	if opts.JSONOnly {
		system += jsonOnlyInstruction
	}

	var messages []*schema.Message
	if system != "" {
		messages = append(messages, schema.SystemMessage(system))
	}
	messages = append(messages, schema.UserMessage(req.Prompt))

	var modelOpts []model.Option
	if opts.Temperature > 0 {
		modelOpts = append(modelOpts, model.WithTemperature(float32(opts.Temperature)))
	}
	if opts.MaxTokens > 0 {
		modelOpts = append(modelOpts, model.WithMaxTokens(opts.MaxTokens))
	}
	// 推理模式映射为 Ark 的 thinking 开关，不支持的 Provider 忽略该选项
	modelOpts = append(modelOpts, component.WithThinking(opts.Reasoning))

	response, err := c.chatModel.Generate(ctx, messages, modelOpts...)
	if err != nil {
		return "", fmt.Errorf("chat model generate: %w", err)
	}

	if response.Content == "" {
		return "", fmt.Errorf("empty response from chat model")
	}

	log.Debug().
		Str("model", c.cfg.Model).
		Int("response_len", len(response.Content)).
		Bool("json_only", opts.JSONOnly).
		Bool("reasoning", opts.Reasoning).
		Msg("大模型调用完成")

	return response.Content, nil
}
