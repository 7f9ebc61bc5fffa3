package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const (
	bedrockClientTimeout = 30 * time.Second
	defaultBedrockModel  = "us.meta.llama3-3-70b-instruct-v1:0"
)

func init() {
	RegisterFactory("bedrock", func(config map[string]any) (Provider, error) {
		region := ""
		if r, ok := config["region"].(string); ok {
			region = r
		}
		return NewBedrockProvider(region)
	})
}

// BedrockProvider implements Provider for Amazon Bedrock using the
// Converse API.
type BedrockProvider struct {
	client *bedrockruntime.Client
}

// NewBedrockProvider creates a new Bedrock provider using the default
// AWS credential chain. An empty region defers to the environment.
func NewBedrockProvider(region string) (*BedrockProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), bedrockClientTimeout)
	defer cancel()

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &BedrockProvider{
		client: bedrockruntime.NewFromConfig(cfg),
	}, nil
}

// Name returns the provider name
func (p *BedrockProvider) Name() string {
	return "bedrock"
}

// CreateCompletion creates a completion
func (p *BedrockProvider) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultBedrockModel
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(model),
	}

	inferenceCfg := &types.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inferenceCfg.MaxTokens = aws.Int32(int32(req.MaxTokens))
	}
	if req.Temperature > 0 {
		inferenceCfg.Temperature = aws.Float32(float32(req.Temperature))
	}
	input.InferenceConfig = inferenceCfg

	for _, m := range req.Messages {
		if m.Role == "system" {
			input.System = append(input.System, &types.SystemContentBlockMemberText{
				Value: m.Content,
			})
			continue
		}

		role := types.ConversationRoleUser
		if m.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		input.Messages = append(input.Messages, types.Message{
			Role: role,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: m.Content},
			},
		})
	}

	resp, err := p.client.Converse(ctx, input)
	if err != nil {
		return nil, NewProviderError("bedrock", ErrorCodeUnknown, err.Error(), err)
	}

	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, NewProviderError("bedrock", ErrorCodeUnknown, "unexpected output type", nil)
	}

	var content string
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			content += text.Value
		}
	}

	var usage Usage
	if resp.Usage != nil {
		usage.PromptTokens = int(aws.ToInt32(resp.Usage.InputTokens))
		usage.CompletionTokens = int(aws.ToInt32(resp.Usage.OutputTokens))
		usage.TotalTokens = int(aws.ToInt32(resp.Usage.TotalTokens))
	}

	return &CompletionResponse{
		Content:      content,
		FinishReason: string(resp.StopReason),
		Usage:        usage,
	}, nil
}
