package llm

import (
	"context"
	"errors"
	"fmt"

	"mnemochat/internal/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Gemini 是一个实现了 LLM 接口的结构体，用于与 Gemini API 交互。
type Gemini struct {
	client *genai.Client // GenAI 客户端实例。
	model  string        // 默认使用的模型名称。
}

// NewGemini 创建一个新的 Gemini 客户端。
func NewGemini(ctx context.Context, model, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// GenerateContent 向 Gemini API 发送请求并返回响应。
func (g *Gemini) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	gm := g.generativeModel(req)

	resp, err := gm.GenerateContent(ctx, toGenaiParts(req.Content)...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	return fromGenaiResponse(resp), nil
}

// GenerateContentStream 向 Gemini API 发送请求并返回响应通道。
func (g *Gemini) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	gm := g.generativeModel(req)

	ch := make(chan *models.GenerateContentResponse)
	iter := gm.GenerateContentStream(ctx, toGenaiParts(req.Content)...)

	go func() {
		defer close(ch)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				return
			}
			ch <- fromGenaiResponse(resp)
		}
	}()

	return ch, nil
}

// generativeModel 为单次请求构建模型句柄。系统指令与采样参数
// 都按请求设置，客户端本身无状态。
func (g *Gemini) generativeModel(req *models.GenerateContentRequest) *genai.GenerativeModel {
	gm := g.client.GenerativeModel(g.model)

	for _, c := range req.Content {
		if c.Role == models.SpeakerSystem {
			gm.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(joinParts(c))},
			}
			break
		}
	}

	if s := req.Settings; s != nil {
		gm.SetTemperature(s.Temperature)
		gm.SetTopP(s.TopP)
		if s.MaxTokens > 0 {
			gm.SetMaxOutputTokens(int32(s.MaxTokens))
		}
	}

	return gm
}

// toGenaiParts 将内部内容格式展开为 GenAI 部分，系统指令除外。
func toGenaiParts(content []models.Content) []genai.Part {
	var parts []genai.Part
	for _, c := range content {
		if c.Role == models.SpeakerSystem {
			continue // 由 SystemInstruction 承载。
		}
		for _, p := range c.Parts {
			if p != nil && p.Text != "" {
				parts = append(parts, genai.Text(fmt.Sprintf("%s: %s", c.Role, p.Text)))
			}
		}
	}
	return parts
}

// fromGenaiResponse 将 GenAI 响应转换为内部响应格式。
func fromGenaiResponse(resp *genai.GenerateContentResponse) *models.GenerateContentResponse {
	var content []models.Content
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		var parts []*models.Part
		for _, p := range cand.Content.Parts {
			if text, ok := p.(genai.Text); ok {
				parts = append(parts, &models.Part{Text: string(text)})
			}
		}
		content = append(content, models.Content{
			Parts: parts,
			Role:  models.SpeakerAssistant,
		})
	}

	return &models.GenerateContentResponse{Content: content}
}

func joinParts(c models.Content) string {
	var out string
	for _, p := range c.Parts {
		if p != nil {
			out += p.Text
		}
	}
	return out
}
