package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mnemochat/internal/models"

	ollama "github.com/ollama/ollama/api"
)

// Ollama 是一个用于本地 Ollama 服务的 LLM 客户端。
type Ollama struct {
	client *ollama.Client // Ollama 客户端实例。
	model  string         // 默认使用的模型名称。
}

// NewOllama 创建一个新的 Ollama 客户端。
func NewOllama(model, baseURL string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("无效的 Ollama base URL: %w", err)
	}

	client := ollama.NewClient(parsedURL, &http.Client{Timeout: 120 * time.Second})
	return &Ollama{
		client: client,
		model:  model,
	}, nil
}

// GenerateContent 使用 Ollama API 生成内容。
func (o *Ollama) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	ollamaReq := o.toOllamaRequest(req)
	stream := false
	ollamaReq.Stream = &stream

	var out strings.Builder
	err := o.client.Generate(ctx, ollamaReq, func(resp ollama.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	return &models.GenerateContentResponse{
		Content: []models.Content{
			{
				Parts: []*models.Part{{Text: out.String()}},
				Role:  models.SpeakerAssistant,
			},
		},
		ModelVersion: o.model,
	}, nil
}

// GenerateContentStream 使用 Ollama API 以流式方式生成内容。
func (o *Ollama) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	ollamaReq := o.toOllamaRequest(req)
	stream := true
	ollamaReq.Stream = &stream

	respChan := make(chan *models.GenerateContentResponse)

	go func() {
		defer close(respChan)
		_ = o.client.Generate(ctx, ollamaReq, func(resp ollama.GenerateResponse) error {
			respChan <- &models.GenerateContentResponse{
				Content: []models.Content{
					{
						Parts: []*models.Part{{Text: resp.Response}},
						Role:  models.SpeakerAssistant,
					},
				},
				ModelVersion: o.model,
			}
			return nil
		})
	}()

	return respChan, nil
}

// toOllamaRequest 将内部请求格式转换为 Ollama 格式。
// Ollama 的 Generate 接口只接受单段 prompt，这里把多轮内容
// 按角色前缀拼接，系统内容单独放入 System 字段。
func (o *Ollama) toOllamaRequest(req *models.GenerateContentRequest) *ollama.GenerateRequest {
	var system string
	var prompt strings.Builder
	for _, content := range req.Content {
		text := joinParts(content)
		if text == "" {
			continue
		}
		if content.Role == models.SpeakerSystem {
			system = text
			continue
		}
		fmt.Fprintf(&prompt, "%s: %s\n", content.Role, text)
	}

	ollamaReq := &ollama.GenerateRequest{
		Model:  o.model,
		Prompt: prompt.String(),
		System: system,
	}

	if s := req.Settings; s != nil {
		ollamaReq.Options = map[string]any{
			"temperature": s.Temperature,
			"top_p":       s.TopP,
		}
		if s.MaxTokens > 0 {
			ollamaReq.Options["num_predict"] = s.MaxTokens
		}
	}

	return ollamaReq
}
