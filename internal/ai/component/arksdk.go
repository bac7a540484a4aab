package component

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	arkmodel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"

	"playlet/internal/config"
)

// arkSDKChatModel 基于官方 volcengine-go-sdk 的 ChatModel 实现
// eino-ext 的 ark 模块跟不上 Ark API 的节奏时可以切到这个实现
// 参考: https://github.com/volcengine/volcengine-go-sdk
type arkSDKChatModel struct {
	client *arkruntime.Client
	cfg    *config.AIConfig
}

// arkSDKOptions ark-sdk 专属的调用级选项，通过 eino 的 impl-specific 机制传递
type arkSDKOptions struct {
	thinking *arkmodel.Thinking
}

// WithThinking 控制本次调用的深度思考模式
// 其他 Provider 会忽略该选项（eino 按选项类型分发）
func WithThinking(enabled bool) einomodel.Option {
	t := arkmodel.ThinkingTypeDisabled
	if enabled {
		t = arkmodel.ThinkingTypeEnabled
	}
	return einomodel.WrapImplSpecificOptFn(func(o *arkSDKOptions) {
		o.thinking = &arkmodel.Thinking{Type: t}
	})
}

// newArkSDKChatModel 创建基于官方 SDK 的 ChatModel（Provider: ark-sdk）
func newArkSDKChatModel(cfg *config.AIConfig) (einomodel.ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ark api key is required")
	}

	var opts []arkruntime.ConfigOption
	if cfg.BaseURL != "" {
		opts = append(opts, arkruntime.WithBaseUrl(cfg.BaseURL))
	}
	client := arkruntime.NewClientWithApiKey(cfg.APIKey, opts...)

	return &arkSDKChatModel{client: client, cfg: cfg}, nil
}

func (m *arkSDKChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	input := m.buildRequest(in, opts...)

	output, err := m.client.CreateChatCompletion(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("ark chat completion: %w", err)
	}
	if len(output.Choices) == 0 {
		return nil, fmt.Errorf("no choices in ark response")
	}

	choice := output.Choices[0]
	var content string
	if choice.Message.Content != nil && choice.Message.Content.StringValue != nil {
		content = *choice.Message.Content.StringValue
	}

	msg := &schema.Message{
		Role:    schema.Assistant,
		Content: content,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: string(choice.FinishReason),
			Usage: &schema.TokenUsage{
				PromptTokens:     output.Usage.PromptTokens,
				CompletionTokens: output.Usage.CompletionTokens,
				TotalTokens:      output.Usage.TotalTokens,
			},
		},
	}
	return msg, nil
}

// buildRequest 组装一次补全请求，调用级选项优先于配置默认值
func (m *arkSDKChatModel) buildRequest(in []*schema.Message, opts ...einomodel.Option) *arkmodel.CreateChatCompletionRequest {
	options := einomodel.GetCommonOptions(&einomodel.Options{}, opts...)
	arkOpts := einomodel.GetImplSpecificOptions(&arkSDKOptions{}, opts...)

	modelName := m.cfg.Model
	if options.Model != nil && *options.Model != "" {
		modelName = *options.Model
	}

	input := &arkmodel.CreateChatCompletionRequest{
		Model:    modelName,
		Messages: convertToArkMessages(in),
	}

	if options.MaxTokens != nil {
		input.MaxTokens = options.MaxTokens
	} else if m.cfg.Options.MaxTokens > 0 {
		maxTokens := m.cfg.Options.MaxTokens
		input.MaxTokens = &maxTokens
	}
	if options.Temperature != nil {
		input.Temperature = options.Temperature
	} else if m.cfg.Options.Temperature > 0 {
		temperature := float32(m.cfg.Options.Temperature)
		input.Temperature = &temperature
	}
	if m.cfg.Options.TopP > 0 {
		topP := float32(m.cfg.Options.TopP)
		input.TopP = &topP
	}
	if arkOpts.thinking != nil {
		input.Thinking = arkOpts.thinking
	}
	return input
}

// Stream 以单块流的形式返回完整结果，SDK 的流式接口暂未接入
func (m *arkSDKChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *arkSDKChatModel) BindTools(tools []*schema.ToolInfo) error {
	return fmt.Errorf("ark sdk chat model does not support tool binding")
}

// convertToArkMessages 转换消息格式
func convertToArkMessages(messages []*schema.Message) []*arkmodel.ChatCompletionMessage {
	result := make([]*arkmodel.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		content := msg.Content
		result[i] = &arkmodel.ChatCompletionMessage{
			Role: string(msg.Role),
			Content: &arkmodel.ChatCompletionMessageContent{
				StringValue: &content,
			},
		}
	}
	return result
}
