package models

// Content 是发送给 LLM 或由 LLM 返回的一段内容。
type Content struct {
	// Parts 是内容的组成部分。
	Parts []*Part `json:"parts,omitempty"`
	// Role 是内容发送者的角色。
	Role SpeakerRole `json:"role,omitempty"`
}

// Part 是内容的最小单元。本系统只处理文本。
type Part struct {
	Text string `json:"text,omitempty"`
}

// NewTextContent 构造一段单文本内容。
func NewTextContent(role SpeakerRole, text string) Content {
	return Content{Role: role, Parts: []*Part{{Text: text}}}
}

// GenerateContentRequest 是生成内容的统一请求格式。
type GenerateContentRequest struct {
	Content []Content // 请求的内容（系统指令与对话历史按序排列）。
	// Settings 为本次调用的模型参数；为 nil 时使用提供商默认值。
	Settings *ChatSettings
}

// GenerateContentResponse 是生成内容的统一响应格式。
type GenerateContentResponse struct {
	Content      []Content // 响应的内容。
	ResponseID   string    // 响应的唯一标识。
	ModelVersion string    // 生成响应的模型版本。
}

// Text 返回响应中第一段内容的拼接文本，没有内容时返回空串。
func (r *GenerateContentResponse) Text() string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	var out string
	for _, p := range r.Content[0].Parts {
		if p != nil {
			out += p.Text
		}
	}
	return out
}
