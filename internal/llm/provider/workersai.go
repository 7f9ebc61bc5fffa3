package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	workersAIBaseURL    = "https://api.cloudflare.com/client/v4"
	workersAIMaxRetries = 3

	// DefaultWorkersAIModel is the model used when a request does not
	// name one.
	DefaultWorkersAIModel = "@cf/meta/llama-3.3-70b-instruct-fp8-fast"
)

func init() {
	RegisterFactory("workersai", func(config map[string]any) (Provider, error) {
		apiToken := ""
		if tok, ok := config["api_token"].(string); ok {
			apiToken = tok
		}
		if apiToken == "" {
			apiToken = os.Getenv("CLOUDFLARE_API_TOKEN")
		}
		if apiToken == "" {
			return nil, fmt.Errorf("CLOUDFLARE_API_TOKEN not set")
		}

		accountID := ""
		if id, ok := config["account_id"].(string); ok {
			accountID = id
		}
		if accountID == "" {
			accountID = os.Getenv("CLOUDFLARE_ACCOUNT_ID")
		}
		if accountID == "" {
			return nil, fmt.Errorf("CLOUDFLARE_ACCOUNT_ID not set")
		}

		baseURL := workersAIBaseURL
		if url, ok := config["base_url"].(string); ok && url != "" {
			baseURL = url
		}

		return NewWorkersAIProvider(apiToken, accountID, baseURL), nil
	})
}

// WorkersAIProvider implements Provider for the Cloudflare Workers AI
// REST API.
type WorkersAIProvider struct {
	apiToken  string
	accountID string
	baseURL   string
	client    *http.Client
}

// NewWorkersAIProvider creates a new Workers AI provider
func NewWorkersAIProvider(apiToken, accountID, baseURL string) *WorkersAIProvider {
	return &WorkersAIProvider{
		apiToken:  apiToken,
		accountID: accountID,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client:    &http.Client{Timeout: 120 * time.Second},
	}
}

// Name returns the provider name
func (p *WorkersAIProvider) Name() string {
	return "workersai"
}

// workersAIRequest represents the Workers AI chat request format
type workersAIRequest struct {
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type workersAIResponse struct {
	Result struct {
		Response string `json:"response"`
	} `json:"result"`
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// CreateCompletion creates a completion
func (p *WorkersAIProvider) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = DefaultWorkersAIModel
	}

	waReq := workersAIRequest{
		Messages:    req.Messages,
		Stream:      false,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	endpoint := fmt.Sprintf("/accounts/%s/ai/run/%s", p.accountID, model)

	var resp workersAIResponse
	if err := p.doRequestWithRetry(ctx, endpoint, waReq, &resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		message := "request failed"
		if len(resp.Errors) > 0 {
			message = resp.Errors[0].Message
		}
		return nil, NewProviderError("workersai", ErrorCodeUnknown, message, nil)
	}

	return &CompletionResponse{
		Content:      resp.Result.Response,
		FinishReason: "stop",
	}, nil
}

func (p *WorkersAIProvider) doRequestWithRetry(ctx context.Context, endpoint string, reqBody any, result any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < workersAIMaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.apiToken)

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = NewProviderError("workersai", ErrorCodeTimeout, err.Error(), err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = p.handleErrorResponse(resp)
			_ = resp.Body.Close()
			continue
		}

		if resp.StatusCode != http.StatusOK {
			err := p.handleErrorResponse(resp)
			_ = resp.Body.Close()
			return err
		}

		err = json.NewDecoder(resp.Body).Decode(result)
		_ = resp.Body.Close()
		return err
	}

	return lastErr
}

func (p *WorkersAIProvider) handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	code := ErrorCodeUnknown
	switch resp.StatusCode {
	case 401, 403:
		code = ErrorCodeAuthentication
	case 429:
		code = ErrorCodeRateLimit
	case 400:
		code = ErrorCodeInvalidRequest
	case 404:
		code = ErrorCodeModelNotFound
	default:
		if resp.StatusCode >= 500 {
			code = ErrorCodeServerError
		}
	}

	message := string(body)
	var errResp workersAIResponse
	if err := json.Unmarshal(body, &errResp); err == nil && len(errResp.Errors) > 0 {
		message = errResp.Errors[0].Message
	}

	return &ProviderError{
		Provider:    "workersai",
		Code:        code,
		Message:     message,
		StatusCode:  resp.StatusCode,
		IsRetryable: isRetryableError(code),
	}
}
