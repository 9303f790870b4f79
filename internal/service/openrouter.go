package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/set-night/saboteur/internal/config"
	"github.com/set-night/saboteur/internal/domain"
	"github.com/shopspring/decimal"
)

// OpenRouterService is the low-level OpenRouter client. It knows nothing
// about the game; it sends chat completions, extracts generated images
// and keeps a running total of what the session has cost.
type OpenRouterService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	mu        sync.Mutex
	totalCost decimal.Decimal
}

func NewOpenRouterService(apiKey string) *OpenRouterService {
	return &OpenRouterService{
		apiKey:     apiKey,
		baseURL:    "https://openrouter.ai/api/v1",
		httpClient: &http.Client{Timeout: config.ImageTimeout},
		totalCost:  decimal.Zero,
	}
}

type ChatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	Modalities  []string      `json:"modalities,omitempty"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Images  []struct {
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int     `json:"prompt_tokens"`
		CompletionTokens int     `json:"completion_tokens"`
		TotalCost        float64 `json:"total_cost"`
	} `json:"usage"`
}

func (s *OpenRouterService) Chat(ctx context.Context, messages []ChatMessage, model string, temperature *float64) (*ChatResponse, error) {
	return s.send(ctx, ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	})
}

// GenerateImage asks an image-capable model for a picture. When input is
// non-nil it is passed along so the model edits the existing image
// instead of drawing a fresh one.
func (s *OpenRouterService) GenerateImage(ctx context.Context, model, prompt string, input *domain.ImageHandle) (*domain.ImageHandle, error) {
	var content interface{} = prompt
	if input != nil {
		url := input.URL
		if url == "" {
			url = input.Data
		}
		content = []interface{}{
			map[string]interface{}{"type": "text", "text": prompt},
			map[string]interface{}{
				"type":      "image_url",
				"image_url": map[string]string{"url": url},
			},
		}
	}

	resp, err := s.send(ctx, ChatRequest{
		Model:      model,
		Messages:   []ChatMessage{{Role: "user", Content: content}},
		Modalities: []string{"image", "text"},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.Images) == 0 {
		return nil, fmt.Errorf("no image in response")
	}
	return domain.NewImageHandle(resp.Choices[0].Message.Images[0].ImageURL.URL, ""), nil
}

// TotalCost returns the accumulated API cost for this process.
func (s *OpenRouterService) TotalCost() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalCost
}

func (s *OpenRouterService) send(ctx context.Context, chatReq ChatRequest) (*ChatResponse, error) {
	payload, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited by OpenRouter (429)")
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("OpenRouter service unavailable (503)")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if chatResp.Usage.TotalCost > 0 {
		s.mu.Lock()
		s.totalCost = s.totalCost.Add(decimal.NewFromFloat(chatResp.Usage.TotalCost))
		s.mu.Unlock()
	}

	return &chatResp, nil
}
