package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jinford/study-rag/internal/core/apperr"
	"github.com/jinford/study-rag/internal/core/llm"
	"github.com/jinford/study-rag/internal/platform/retry"
)

const (
	// DefaultModel はデフォルトで使用するOpenAIモデル
	DefaultModel = "gpt-4o-mini"

	// JSONParseMaxRetries はJSON解析エラー時の最大再要求回数
	JSONParseMaxRetries = 1
)

// Client は OpenAI API を使用した LLM クライアント実装
type Client struct {
	client openai.Client
	model  string
	policy retry.Policy
	logger *slog.Logger
}

type clientOptions struct {
	model   string
	baseURL string
	policy  retry.Policy
	logger  *slog.Logger
}

// ClientOption は Client のオプション設定
type ClientOption func(*clientOptions)

// WithModel はモデル名を上書きする
func WithModel(model string) ClientOption {
	return func(o *clientOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithBaseURL はAPIのベースURLを上書きする
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithRetryPolicy はタイムアウトとリトライ方針を上書きする
func WithRetryPolicy(p retry.Policy) ClientOption {
	return func(o *clientOptions) {
		o.policy = p
	}
}

// WithClientLogger はロガーを設定する
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// NewClient は新しい Client を作成する
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	options := clientOptions{
		model:  DefaultModel,
		policy: retry.DefaultPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Client{
		client: openai.NewClient(requestOptions(apiKey, options.baseURL)...),
		model:  options.model,
		policy: options.policy,
		logger: options.logger,
	}, nil
}

// requestOptions は SDK 側の自動リトライを無効化したリクエストオプションを返す
func requestOptions(apiKey, baseURL string) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return opts
}

// ModelName はモデル名を返す
func (c *Client) ModelName() string {
	return c.model
}

// GenerateCompletion は OpenAI API を使用してテキストを生成する。
// JSON形式を要求して不正なJSONが返った場合は1回だけ再要求する。
func (c *Client) GenerateCompletion(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	var jsonParseRetries int
	for {
		resp, err := retry.Do(ctx, c.policy, "chat completion", func(ctx context.Context) (llm.CompletionResponse, error) {
			return c.complete(ctx, model, req)
		})
		if err != nil {
			return llm.CompletionResponse{}, err
		}

		if req.ResponseFormat == llm.ResponseFormatJSON && !isValidJSON(resp.Content) {
			jsonParseRetries++
			if jsonParseRetries > JSONParseMaxRetries {
				return llm.CompletionResponse{}, fmt.Errorf("%w: JSON parse failed after %d retries", apperr.ErrGeneration, JSONParseMaxRetries)
			}
			c.logger.Warn("不正なJSONが返されたため再要求します", "model", model)
			continue
		}

		return resp, nil
	}
}

func (c *Client) complete(ctx context.Context, model string, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Messages:    toMessageParams(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}

	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	if req.ResponseFormat == llm.ResponseFormatJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError("chat completion", err)
	}

	if len(completion.Choices) == 0 {
		return llm.CompletionResponse{}, fmt.Errorf("%w: no completion choices returned", apperr.ErrGeneration)
	}

	content := completion.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return llm.CompletionResponse{}, fmt.Errorf("%w: empty completion", apperr.ErrGeneration)
	}

	return llm.CompletionResponse{
		Content:    content,
		TokensUsed: int(completion.Usage.TotalTokens),
		Model:      string(completion.Model),
	}, nil
}

func toMessageParams(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}
	return params
}

func isValidJSON(s string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(s), &js) == nil
}

// インターフェース実装の確認
var _ llm.Client = (*Client)(nil)
