package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voyagerhq/voyager/internal/domain"
)

const (
	envOpenAIAPIKey    = "OPENAI_API_KEY"
	envOpenAIModel     = "OPENAI_MODEL"
	envOpenAIBaseURL   = "OPENAI_BASE_URL"
	defaultOpenAIModel = "gpt-4o"
	defaultOpenAIURL   = "https://api.openai.com/v1/chat/completions"

	openAIMaxTokens = 2000
)

// OpenAIClient implements Handler against an OpenAI-compatible
// chat-completions endpoint. Screenshots ride along as image attachments
// and the response is forced into JSON mode.
type OpenAIClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewOpenAIFromEnv builds a client from OPENAI_API_KEY, OPENAI_MODEL and
// OPENAI_BASE_URL.
func NewOpenAIFromEnv(timeout time.Duration, logger zerolog.Logger) (*OpenAIClient, error) {
	key := strings.TrimSpace(os.Getenv(envOpenAIAPIKey))
	if key == "" {
		return nil, fmt.Errorf("missing %s", envOpenAIAPIKey)
	}
	model := strings.TrimSpace(os.Getenv(envOpenAIModel))
	if model == "" {
		model = defaultOpenAIModel
	}
	baseURL := strings.TrimSpace(os.Getenv(envOpenAIBaseURL))
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	return &OpenAIClient{
		apiKey:  key,
		model:   model,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

type chatPayload struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Call implements Handler.
func (c *OpenAIClient) Call(ctx context.Context, prompt string, step *domain.Step, screenshots [][]byte) (map[string]any, error) {
	content := []chatContent{{Type: "text", Text: prompt}}
	for _, screenshot := range screenshots {
		content = append(content, chatContent{
			Type: "image_url",
			ImageURL: &chatImageURL{
				URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(screenshot),
			},
		})
	}

	payload := chatPayload{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: content}},
		MaxTokens:      openAIMaxTokens,
		Temperature:    0,
		ResponseFormat: &chatFormat{Type: "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build llm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read llm response: %w", err)
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode llm response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("llm error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("llm response has no choices")
	}

	c.logger.Debug().
		Str("step_id", step.ID).
		Str("finish_reason", decoded.Choices[0].FinishReason).
		Msg("llm call completed")

	var result map[string]any
	if err := json.Unmarshal([]byte(decoded.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("llm response content is not a json object: %w", err)
	}
	return result, nil
}
